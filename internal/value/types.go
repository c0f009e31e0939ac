package value

import "time"

// ActionType enumerates the outbound actions that pass through the gate.
type ActionType string

const (
	ActionTweet           ActionType = "tweet"
	ActionReply           ActionType = "reply"
	ActionQuote           ActionType = "quote"
	ActionRetweet         ActionType = "retweet"
	ActionLike            ActionType = "like"
	ActionFollow          ActionType = "follow"
	ActionDM              ActionType = "dm"
	ActionContentCreate   ActionType = "content_create"
	ActionContentSchedule ActionType = "content_schedule"
	ActionCollabRequest   ActionType = "collab_request"
	ActionShoutout        ActionType = "shoutout"
	ActionTrendResponse   ActionType = "trend_response"
	ActionFanEngage       ActionType = "fan_engage"
)

// PillarID names one of the eight fixed scoring dimensions.
type PillarID string

const (
	Awareness  PillarID = "awareness"
	Define     PillarID = "define"
	Devise     PillarID = "devise"
	Validate   PillarID = "validate"
	ActUpon    PillarID = "act_upon"
	Learn      PillarID = "learn"
	Understand PillarID = "understand"
	Evolve     PillarID = "evolve"
)

// Pillars is the fixed evaluation order. The set never changes at runtime.
var Pillars = [8]PillarID{Awareness, Define, Devise, Validate, ActUpon, Learn, Understand, Evolve}

// WeakPillarCutoff is the score below which a pillar counts as weak.
const WeakPillarCutoff = 50.0

// PillarScore is the result of one pillar rule.
type PillarScore struct {
	Pillar    PillarID `json:"pillar"`
	Score     float64  `json:"score"` // 0..100
	Weight    float64  `json:"weight"`
	Reasoning string   `json:"reasoning,omitempty"`
	Evidence  []string `json:"evidence,omitempty"`
}

// Weighted returns score x weight.
func (p PillarScore) Weighted() float64 { return p.Score * p.Weight }

// Weak reports whether this pillar drags the action down.
func (p PillarScore) Weak() bool { return p.Score < WeakPillarCutoff }

// Context carries the situational facts a pillar rule may draw evidence
// from. Zero values simply skip the associated bonus; scoring never fails
// on missing context.
type Context struct {
	UserID           string  `json:"user_id,omitempty"`
	UserName         string  `json:"user_name,omitempty"`
	FollowerCount    int     `json:"follower_count,omitempty"`
	RelationshipTier string  `json:"relationship_tier,omitempty"` // e.g. "engaged_fan", "super_fan"
	Verified         bool    `json:"verified,omitempty"`
	AccountAgeDays   int     `json:"account_age_days,omitempty"`
	TheirMessage     string  `json:"their_message,omitempty"`
	OriginalContent  string  `json:"original_content,omitempty"`
	EventTime        string  `json:"event_time,omitempty"` // RFC3339 if known
	Goal             string  `json:"goal,omitempty"`
	DetectedIntent   string  `json:"detected_intent,omitempty"`
	IntentConfidence float64 `json:"intent_confidence,omitempty"` // 0..1
	EngagementPattern string `json:"engagement_pattern,omitempty"`
	PastInteractions  bool   `json:"past_interactions,omitempty"`
	PastPositive      bool   `json:"past_positive_outcome,omitempty"`
	SuccessRate       float64 `json:"similar_action_success_rate,omitempty"` // 0..1
	TrendingTopic     string  `json:"trending_topic,omitempty"`
	GrowthPotential   string  `json:"growth_potential,omitempty"`
	BlockedReason     string  `json:"blocked_reason,omitempty"`
	Override          bool    `json:"override,omitempty"` // gate override flag
}

// Score is the complete value assessment of one candidate action.
// TotalScore is the weight-normalized mean of the pillars present;
// ShouldExecute is TotalScore >= Threshold. Both are fixed at construction.
type Score struct {
	ActionID   string     `json:"action_id"`
	ActionType ActionType `json:"action_type"`
	Content    string     `json:"content"`

	Pillars map[PillarID]*PillarScore `json:"pillars,omitempty"`

	TotalScore    float64 `json:"total_score"`
	Threshold     float64 `json:"threshold"`
	ShouldExecute bool    `json:"should_execute"`

	Context      Context       `json:"context,omitempty"`
	CalculatedAt time.Time     `json:"calculated_at"`
	Elapsed      time.Duration `json:"calculation_time,omitempty"`
}

// recompute derives TotalScore and ShouldExecute from the pillars present.
// Zero pillars scored means total 0 and no execution.
func (s *Score) recompute() {
	var weightSum, weightedSum float64
	for _, id := range Pillars {
		p := s.Pillars[id]
		if p == nil {
			continue
		}
		weightSum += p.Weight
		weightedSum += p.Weighted()
	}
	if weightSum <= 0 {
		s.TotalScore = 0
		s.ShouldExecute = false
		return
	}
	s.TotalScore = weightedSum / weightSum
	s.ShouldExecute = s.TotalScore >= s.Threshold
}

// WeakPillars lists scored pillars below the cutoff, in fixed pillar order.
func (s *Score) WeakPillars() []PillarID {
	var weak []PillarID
	for _, id := range Pillars {
		if p := s.Pillars[id]; p != nil && p.Weak() {
			weak = append(weak, id)
		}
	}
	return weak
}

// PillarSummary flattens pillar scores for storage; unscored pillars read 0.
func (s *Score) PillarSummary() map[PillarID]float64 {
	out := make(map[PillarID]float64, len(Pillars))
	for _, id := range Pillars {
		if p := s.Pillars[id]; p != nil {
			out[id] = p.Score
		} else {
			out[id] = 0
		}
	}
	return out
}
