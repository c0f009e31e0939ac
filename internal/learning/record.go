package learning

import (
	"strings"
	"time"

	"github.com/valueadders/papito/internal/value"
)

// ActionOutcome is what eventually happened to a gated action.
type ActionOutcome string

const (
	OutcomeSuccess  ActionOutcome = "executed_success"
	OutcomeNeutral  ActionOutcome = "executed_neutral"
	OutcomeFailure  ActionOutcome = "executed_failure"
	OutcomeBlocked  ActionOutcome = "blocked"
	OutcomeDeferred ActionOutcome = "deferred"
	OutcomeError    ActionOutcome = "error"
)

// ActionRecord is one feedback sample: the score the gate saw plus the
// observed outcome. Records are the only input to Analyze.
type ActionRecord struct {
	ActionID   string           `json:"action_id"`
	ActionType value.ActionType `json:"action_type"`
	Content    string           `json:"content,omitempty"`
	Outcome    ActionOutcome    `json:"outcome"`

	Score        float64                    `json:"score"`
	Threshold    float64                    `json:"threshold"`
	PillarScores map[value.PillarID]float64 `json:"pillar_scores,omitempty"`
	WeakPillars  []value.PillarID           `json:"weak_pillars,omitempty"`

	Engagement map[string]any `json:"engagement,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	ErrorMsg   string         `json:"error,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}

// InsightKind classifies what an insight recommends changing.
type InsightKind string

const (
	InsightThreshold      InsightKind = "threshold_adjustment"
	InsightPillarWeight   InsightKind = "pillar_weight"
	InsightContentPattern InsightKind = "content_pattern"
)

// Insight is one derived recommendation with enough supporting data to
// audit it later. Only threshold and weight insights mutate config.
type Insight struct {
	ID             string         `json:"id"`
	Kind           InsightKind    `json:"kind"`
	Pillar         value.PillarID `json:"pillar,omitempty"`
	Delta          float64        `json:"delta,omitempty"`
	Confidence     float64        `json:"confidence"`
	Description    string         `json:"description"`
	Recommendation string         `json:"recommendation"`
	Evidence       int            `json:"evidence_count"`
	Supporting     map[string]any `json:"supporting_data,omitempty"`
	Applied        bool           `json:"applied"`
	AppliedAt      *time.Time     `json:"applied_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// contentTagRules pairs a tag with its substring markers.
var contentTagRules = []struct {
	tag     string
	markers []string
}{
	{"fire_emoji", []string{"🔥"}},
	{"heart_emoji", []string{"❤️", "💜", "💙"}},
	{"vibes_word", []string{"vibes", "vibe"}},
	{"love_word", []string{"love"}},
	{"gratitude", []string{"thank", "grateful", "appreciate"}},
	{"question", []string{"?"}},
	{"exclamation", []string{"!"}},
}

// contentTags extracts pattern tags from action content.
func contentTags(content string) []string {
	if content == "" {
		return nil
	}
	lower := strings.ToLower(content)
	var tags []string
	for _, rule := range contentTagRules {
		for _, m := range rule.markers {
			if strings.Contains(lower, m) {
				tags = append(tags, rule.tag)
				break
			}
		}
	}
	return tags
}

// engagementScore collapses an engagement payload into one number:
// likes + 3x replies + 2x reposts. Unknown keys are ignored.
func engagementScore(engagement map[string]any) float64 {
	return num(engagement["likes"]) +
		3*num(engagement["replies"]) +
		2*num(engagement["reposts"])
}

func num(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
