package learning

import (
	"fmt"
	"sort"
	"time"

	"github.com/valueadders/papito/internal/value"
)

const (
	// analysisWindow bounds how far back Analyze looks.
	analysisWindow = 7 * 24 * time.Hour
	// minSamples is the smallest corpus worth analyzing at all.
	minSamples = 10
	// minPillarSamples gates the pillar weight analysis.
	minPillarSamples = 20
	// minOutcomeClass is the per-class floor for pillar comparisons.
	minOutcomeClass = 5
	// minTagSamples is the per-tag floor for content pattern ranking.
	minTagSamples = 5
)

// Analyze inspects the recent feedback window and derives insights.
// Derived insights are appended to the learner's insight list and
// persisted; applying them is a separate, explicit step.
func (l *Learner) Analyze(now time.Time) []*Insight {
	cutoff := now.Add(-analysisWindow)

	l.mu.Lock()
	var window []*ActionRecord
	for _, rec := range l.records {
		if rec.RecordedAt.After(cutoff) {
			window = append(window, rec)
		}
	}
	l.mu.Unlock()

	if len(window) < minSamples {
		l.log.Debug().Int("samples", len(window)).Msg("not enough feedback to analyze")
		return nil
	}

	var out []*Insight
	if ins := l.thresholdInsight(window, now); ins != nil {
		out = append(out, ins)
	}
	out = append(out, l.pillarInsights(window, now)...)
	if ins := l.contentInsight(window, now); ins != nil {
		out = append(out, ins)
	}
	if len(out) == 0 {
		return nil
	}

	l.mu.Lock()
	l.insights = append(l.insights, out...)
	snapshot := append([]*Insight(nil), l.insights...)
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.SaveInsights(snapshot); err != nil {
			l.log.Warn().Err(err).Msg("could not persist insights")
		}
	}
	l.log.Info().Int("insights", len(out)).Int("samples", len(window)).Msg("analysis complete")
	return out
}

// thresholdInsight compares the mean score of blocked actions against the
// mean of successfully executed ones. Needs at least one record in each
// class. A small gap means the bar is turning away actions that look like
// winners; a large gap means the bar has headroom.
func (l *Learner) thresholdInsight(window []*ActionRecord, now time.Time) *Insight {
	var blockedSum, successSum float64
	var blocked, success int
	for _, rec := range window {
		switch rec.Outcome {
		case OutcomeBlocked:
			blocked++
			blockedSum += rec.Score
		case OutcomeSuccess:
			success++
			successSum += rec.Score
		}
	}
	if blocked == 0 || success == 0 {
		return nil
	}
	gap := successSum/float64(success) - blockedSum/float64(blocked)

	supporting := map[string]any{"blocked": blocked, "success": success, "gap": gap}
	switch {
	case gap < 10:
		return &Insight{
			ID:             value.NewActionID(),
			Kind:           InsightThreshold,
			Delta:          -5,
			Confidence:     0.7,
			Description:    fmt.Sprintf("blocked actions score within %.1f points of successful ones", gap),
			Recommendation: "consider lowering the threshold slightly to allow more engagement",
			Evidence:       blocked + success,
			Supporting:     supporting,
			CreatedAt:      now.UTC(),
		}
	case gap > 30:
		return &Insight{
			ID:             value.NewActionID(),
			Kind:           InsightThreshold,
			Delta:          2,
			Confidence:     0.6,
			Description:    fmt.Sprintf("blocked actions trail successful ones by %.1f points", gap),
			Recommendation: "threshold is well calibrated, consider raising it for quality",
			Evidence:       blocked + success,
			Supporting:     supporting,
			CreatedAt:      now.UTC(),
		}
	}
	return nil
}

// pillarInsights finds pillars that cleanly separate blocked actions from
// successful ones and recommends weighting them up.
func (l *Learner) pillarInsights(window []*ActionRecord, now time.Time) []*Insight {
	if len(window) < minPillarSamples {
		return nil
	}

	blockedSum := make(map[value.PillarID]float64)
	successSum := make(map[value.PillarID]float64)
	var blocked, success int
	for _, rec := range window {
		switch rec.Outcome {
		case OutcomeBlocked:
			blocked++
			for id, s := range rec.PillarScores {
				blockedSum[id] += s
			}
		case OutcomeSuccess:
			success++
			for id, s := range rec.PillarScores {
				successSum[id] += s
			}
		}
	}
	if blocked < minOutcomeClass || success < minOutcomeClass {
		return nil
	}

	var out []*Insight
	for _, id := range value.Pillars {
		blockedMean := blockedSum[id] / float64(blocked)
		successMean := successSum[id] / float64(success)
		if blockedMean < 40 && successMean > 60 {
			out = append(out, &Insight{
				ID:         value.NewActionID(),
				Kind:       InsightPillarWeight,
				Pillar:     id,
				Delta:      0.2,
				Confidence: 0.75,
				Description: fmt.Sprintf("pillar %s separates outcomes well (blocked mean %.1f, success mean %.1f)",
					id, blockedMean, successMean),
				Recommendation: fmt.Sprintf("increase the weight for pillar %s", id),
				Evidence:       blocked + success,
				Supporting: map[string]any{
					"blocked_mean": blockedMean,
					"success_mean": successMean,
					"blocked":      blocked,
					"success":      success,
				},
				CreatedAt: now.UTC(),
			})
		}
	}
	return out
}

// contentInsight ranks content tags by mean engagement of executed
// actions carrying them. Tags with fewer than minTagSamples occurrences
// are excluded so a single lucky record cannot top the ranking.
func (l *Learner) contentInsight(window []*ActionRecord, now time.Time) *Insight {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, rec := range window {
		if rec.Outcome != OutcomeSuccess && rec.Outcome != OutcomeNeutral {
			continue
		}
		score := engagementScore(rec.Engagement)
		for _, tag := range rec.Tags {
			sums[tag] += score
			counts[tag]++
		}
	}

	type tagMean struct {
		tag  string
		mean float64
	}
	var means []tagMean
	for tag, n := range counts {
		if n < minTagSamples {
			continue
		}
		means = append(means, tagMean{tag, sums[tag] / float64(n)})
	}
	if len(means) == 0 {
		return nil
	}
	sort.Slice(means, func(i, j int) bool {
		if means[i].mean != means[j].mean {
			return means[i].mean > means[j].mean
		}
		return means[i].tag < means[j].tag
	})

	if means[0].mean <= 5 {
		return nil
	}
	if len(means) > 3 {
		means = means[:3]
	}

	top := make([]string, len(means))
	supporting := make(map[string]any, len(means))
	evidence := 0
	for i, m := range means {
		top[i] = m.tag
		supporting[m.tag] = m.mean
		evidence += counts[m.tag]
	}
	return &Insight{
		ID:             value.NewActionID(),
		Kind:           InsightContentPattern,
		Confidence:     0.65,
		Description:    fmt.Sprintf("content patterns %v draw the strongest engagement", top),
		Recommendation: fmt.Sprintf("content with %s performs best (mean engagement %.1f)", means[0].tag, means[0].mean),
		Evidence:       evidence,
		Supporting:     supporting,
		CreatedAt:      now.UTC(),
	}
}
