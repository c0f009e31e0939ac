package learning

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valueadders/papito/internal/gate"
	"github.com/valueadders/papito/internal/value"
)

func newTestLearner(t *testing.T) *Learner {
	t.Helper()
	return NewLearner(value.DefaultScoringConfig(), nil, zerolog.Nop())
}

func resultFixture(decision gate.Decision, total float64) *gate.Result {
	return &gate.Result{
		Decision:   decision,
		ActionID:   value.NewActionID(),
		ActionType: value.ActionReply,
		Content:    "love the vibes, thank you! 🔥",
		Score: &value.Score{
			ActionID:   value.NewActionID(),
			ActionType: value.ActionReply,
			TotalScore: total,
			Threshold:  65,
			Pillars: map[value.PillarID]*value.PillarScore{
				value.Awareness: {Pillar: value.Awareness, Score: total, Weight: 2.0},
			},
		},
		EvaluatedAt: time.Now().UTC(),
	}
}

func TestRecordExecutedClassifiesByEngagement(t *testing.T) {
	l := newTestLearner(t)

	l.RecordExecuted(resultFixture(gate.DecisionPass, 80), map[string]any{"likes": 2})
	l.RecordExecuted(resultFixture(gate.DecisionPass, 80), nil)

	records := l.Records(0)
	require.Len(t, records, 2)
	assert.Equal(t, OutcomeSuccess, records[0].Outcome)
	assert.Equal(t, OutcomeNeutral, records[1].Outcome)
}

func TestRecordBlockedCapturesTagsAndPillars(t *testing.T) {
	l := newTestLearner(t)

	l.RecordBlocked(resultFixture(gate.DecisionBlock, 40))

	records := l.Records(0)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, OutcomeBlocked, rec.Outcome)
	assert.Contains(t, rec.Tags, "love_word")
	assert.Contains(t, rec.Tags, "vibes_word")
	assert.Contains(t, rec.Tags, "gratitude")
	assert.Contains(t, rec.Tags, "fire_emoji")
	assert.Equal(t, 40.0, rec.PillarScores[value.Awareness])
}

func TestUpdateEngagementReclassifies(t *testing.T) {
	l := newTestLearner(t)

	res := resultFixture(gate.DecisionPass, 80)
	l.RecordExecuted(res, nil)
	require.Equal(t, OutcomeNeutral, l.Records(0)[0].Outcome)

	ok := l.UpdateEngagement(res.ActionID, map[string]any{"likes": 1, "replies": 2})
	require.True(t, ok)
	assert.Equal(t, OutcomeSuccess, l.Records(0)[0].Outcome)

	assert.False(t, l.UpdateEngagement("missing", nil))
}

func TestEngagementScoreWeighting(t *testing.T) {
	score := engagementScore(map[string]any{"likes": 1, "replies": 2, "reposts": 3})
	assert.Equal(t, 13.0, score)
	assert.Equal(t, 0.0, engagementScore(nil))
}

func TestAnalyzeNeedsMinimumSamples(t *testing.T) {
	l := newTestLearner(t)
	for i := 0; i < minSamples-1; i++ {
		l.RecordBlocked(resultFixture(gate.DecisionBlock, 40))
	}
	assert.Nil(t, l.Analyze(time.Now()))
}

func TestAnalyzeSmallGapLowersThreshold(t *testing.T) {
	l := newTestLearner(t)
	now := time.Now().UTC()

	// Blocked actions score almost as well as successful ones, even
	// though every block sat far under its own bar.
	for i := 0; i < 12; i++ {
		l.records = append(l.records, &ActionRecord{
			ActionID:   fmt.Sprintf("b%d", i),
			ActionType: value.ActionTweet,
			Outcome:    OutcomeBlocked,
			Score:      30,
			Threshold:  70,
			RecordedAt: now.Add(-time.Hour),
		})
		l.records = append(l.records, &ActionRecord{
			ActionID:   fmt.Sprintf("s%d", i),
			ActionType: value.ActionTweet,
			Outcome:    OutcomeSuccess,
			Score:      35,
			RecordedAt: now.Add(-time.Hour),
		})
	}

	insights := l.Analyze(now)
	require.NotEmpty(t, insights)
	ins := insights[0]
	assert.Equal(t, InsightThreshold, ins.Kind)
	assert.Equal(t, -5.0, ins.Delta)
	assert.InDelta(t, 0.7, ins.Confidence, 1e-9)
	assert.Equal(t, 24, ins.Evidence)
	assert.NotEmpty(t, ins.Recommendation)

	before := l.cfg.DefaultThresholdValue()
	require.True(t, l.ApplyInsight(ins))
	assert.Equal(t, before-5, l.cfg.DefaultThresholdValue())
	assert.True(t, ins.Applied)
	require.NotNil(t, ins.AppliedAt)
	assert.False(t, ins.AppliedAt.IsZero())
}

func TestAnalyzeLargeGapRaisesThreshold(t *testing.T) {
	l := newTestLearner(t)
	now := time.Now().UTC()

	for i := 0; i < 12; i++ {
		l.records = append(l.records, &ActionRecord{
			Outcome:    OutcomeBlocked,
			Score:      30,
			Threshold:  70,
			RecordedAt: now.Add(-time.Hour),
		})
	}
	for i := 0; i < 6; i++ {
		l.records = append(l.records, &ActionRecord{
			Outcome:    OutcomeSuccess,
			Score:      70,
			RecordedAt: now.Add(-time.Hour),
		})
	}

	insights := l.Analyze(now)
	require.NotEmpty(t, insights)
	assert.Equal(t, 2.0, insights[0].Delta)
	assert.InDelta(t, 0.6, insights[0].Confidence, 1e-9)
}

func TestAnalyzeThresholdNeedsBothClasses(t *testing.T) {
	l := newTestLearner(t)
	now := time.Now().UTC()

	// Blocks alone say nothing about where successful actions land.
	for i := 0; i < 12; i++ {
		l.records = append(l.records, &ActionRecord{
			Outcome:    OutcomeBlocked,
			Score:      65,
			Threshold:  70,
			RecordedAt: now.Add(-time.Hour),
		})
	}
	assert.Nil(t, l.Analyze(now))
}

func TestAnalyzeFindsDiscriminatingPillar(t *testing.T) {
	l := newTestLearner(t)
	now := time.Now().UTC()

	// Awareness separates the classes; the rest sit in the middle. Use
	// middling gaps so no threshold insight fires alongside.
	for i := 0; i < 10; i++ {
		l.records = append(l.records, &ActionRecord{
			Outcome:   OutcomeBlocked,
			Score:     50,
			Threshold: 70,
			PillarScores: map[value.PillarID]float64{
				value.Awareness: 30,
				value.Devise:    55,
			},
			RecordedAt: now.Add(-time.Hour),
		})
		l.records = append(l.records, &ActionRecord{
			Outcome: OutcomeSuccess,
			Score:   80,
			PillarScores: map[value.PillarID]float64{
				value.Awareness: 85,
				value.Devise:    55,
			},
			RecordedAt: now.Add(-time.Hour),
		})
	}

	insights := l.Analyze(now)
	var pillar *Insight
	for _, ins := range insights {
		if ins.Kind == InsightPillarWeight {
			pillar = ins
		}
	}
	require.NotNil(t, pillar)
	assert.Equal(t, value.Awareness, pillar.Pillar)
	assert.Equal(t, 0.2, pillar.Delta)

	before := l.cfg.WeightValue(value.Awareness)
	require.True(t, l.ApplyInsight(pillar))
	assert.InDelta(t, before+0.2, l.cfg.WeightValue(value.Awareness), 1e-9)
}

func TestAnalyzeRanksContentPatterns(t *testing.T) {
	l := newTestLearner(t)
	now := time.Now().UTC()

	for i := 0; i < 12; i++ {
		l.records = append(l.records, &ActionRecord{
			Outcome:    OutcomeSuccess,
			Tags:       []string{"fire_emoji", "gratitude"},
			Engagement: map[string]any{"likes": 10},
			RecordedAt: now.Add(-time.Hour),
		})
	}

	insights := l.Analyze(now)
	var pattern *Insight
	for _, ins := range insights {
		if ins.Kind == InsightContentPattern {
			pattern = ins
		}
	}
	require.NotNil(t, pattern)
	assert.InDelta(t, 0.65, pattern.Confidence, 1e-9)
	assert.Contains(t, pattern.Supporting, "fire_emoji")

	// Informational only: never mutates config.
	assert.False(t, l.ApplyInsight(pattern))
}

func TestContentPatternIgnoresUndersampledTags(t *testing.T) {
	l := newTestLearner(t)
	now := time.Now().UTC()

	for i := 0; i < 10; i++ {
		l.records = append(l.records, &ActionRecord{
			Outcome:    OutcomeSuccess,
			Tags:       []string{"gratitude"},
			Engagement: map[string]any{"likes": 8},
			RecordedAt: now.Add(-time.Hour),
		})
	}
	// One lucky record must not top the ranking.
	l.records = append(l.records, &ActionRecord{
		Outcome:    OutcomeSuccess,
		Tags:       []string{"fire_emoji"},
		Engagement: map[string]any{"likes": 100},
		RecordedAt: now.Add(-time.Hour),
	})

	insights := l.Analyze(now)
	var pattern *Insight
	for _, ins := range insights {
		if ins.Kind == InsightContentPattern {
			pattern = ins
		}
	}
	require.NotNil(t, pattern)
	assert.Contains(t, pattern.Supporting, "gratitude")
	assert.NotContains(t, pattern.Supporting, "fire_emoji")
	assert.Contains(t, pattern.Recommendation, "gratitude")
}

func TestContentPatternInsightSkipsWeakEngagement(t *testing.T) {
	l := newTestLearner(t)
	now := time.Now().UTC()

	for i := 0; i < 12; i++ {
		l.records = append(l.records, &ActionRecord{
			Outcome:    OutcomeNeutral,
			Tags:       []string{"question"},
			Engagement: map[string]any{"likes": 1},
			RecordedAt: now.Add(-time.Hour),
		})
	}

	for _, ins := range l.Analyze(now) {
		assert.NotEqual(t, InsightContentPattern, ins.Kind)
	}
}

func TestAnalyzeIgnoresRecordsOutsideWindow(t *testing.T) {
	l := newTestLearner(t)
	now := time.Now().UTC()

	for i := 0; i < 20; i++ {
		l.records = append(l.records, &ActionRecord{
			Outcome:    OutcomeBlocked,
			Score:      65,
			Threshold:  70,
			RecordedAt: now.Add(-8 * 24 * time.Hour),
		})
	}
	assert.Nil(t, l.Analyze(now))
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learning.json")

	store, err := NewStore(context.Background(), path)
	require.NoError(t, err)

	records := []*ActionRecord{{
		ActionID:   "abc123",
		ActionType: value.ActionReply,
		Outcome:    OutcomeSuccess,
		Score:      81.5,
		Threshold:  65,
		Tags:       []string{"love_word"},
		RecordedAt: time.Now().UTC(),
	}}
	insights := []*Insight{{
		ID:          "ins1",
		Kind:        InsightThreshold,
		Delta:       -5,
		Confidence:  0.7,
		Description: "near misses",
		CreatedAt:   time.Now().UTC(),
	}}
	require.NoError(t, store.SaveRecords(records))
	require.NoError(t, store.SaveInsights(insights))
	require.NoError(t, store.Close())

	reopened, err := NewStore(context.Background(), path)
	require.NoError(t, err)
	defer reopened.Close()

	gotRecords, gotInsights, err := reopened.Load()
	require.NoError(t, err)
	require.Len(t, gotRecords, 1)
	require.Len(t, gotInsights, 1)
	assert.Equal(t, records[0].ActionID, gotRecords[0].ActionID)
	assert.Equal(t, records[0].Outcome, gotRecords[0].Outcome)
	assert.Equal(t, records[0].Score, gotRecords[0].Score)
	assert.Equal(t, insights[0].Kind, gotInsights[0].Kind)
	assert.Equal(t, insights[0].Delta, gotInsights[0].Delta)
}

func TestRecordCapBounded(t *testing.T) {
	l := newTestLearner(t)
	now := time.Now().UTC()
	for i := 0; i < maxRecords+50; i++ {
		l.add(&ActionRecord{ActionID: fmt.Sprintf("r%d", i), RecordedAt: now})
	}
	assert.Len(t, l.Records(0), maxRecords)
}

func TestTypeReportRatesAndRecommendation(t *testing.T) {
	l := newTestLearner(t)

	for i := 0; i < 3; i++ {
		l.RecordBlocked(resultFixture(gate.DecisionBlock, 40))
	}
	l.RecordExecuted(resultFixture(gate.DecisionPass, 80), map[string]any{"likes": 2})

	rep := l.TypeReport(value.ActionReply)
	assert.Equal(t, 4, rep.Total)
	assert.Equal(t, 3, rep.Blocked)
	assert.Equal(t, 1, rep.Success)
	assert.InDelta(t, 0.75, rep.BlockRate, 1e-9)
	assert.Contains(t, rep.Recommendation, "blocked")

	empty := l.TypeReport(value.ActionShoutout)
	assert.Equal(t, 0, empty.Total)
	assert.Contains(t, empty.Recommendation, "no shoutout actions")
}

func TestStatsCountsOutcomes(t *testing.T) {
	l := newTestLearner(t)
	l.RecordBlocked(resultFixture(gate.DecisionBlock, 40))
	l.RecordExecuted(resultFixture(gate.DecisionPass, 80), map[string]any{"likes": 4})
	l.RecordDeferred(resultFixture(gate.DecisionDefer, 70))

	s := l.Stats()
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.ByOutcome[OutcomeBlocked])
	assert.Equal(t, 1, s.ByOutcome[OutcomeSuccess])
	assert.Equal(t, 1, s.ByOutcome[OutcomeDeferred])
	assert.Equal(t, 3, s.ByType[value.ActionReply])
}
