package learning

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/valueadders/papito/internal/gate"
	"github.com/valueadders/papito/internal/value"
)

const (
	// maxRecords caps in-memory feedback history.
	maxRecords = 10000
	// flushEvery persists records after this many new samples.
	flushEvery = 100
)

// Learner accumulates action outcomes and turns them into scoring
// adjustments. It satisfies the gate's feedback interface; every entry
// point is best-effort and a persistence failure only logs.
type Learner struct {
	cfg   *value.ScoringConfig
	store *Store
	log   zerolog.Logger

	mu         sync.Mutex
	records    []*ActionRecord
	insights   []*Insight
	sinceFlush int
}

// NewLearner creates a learner over the live scoring config. The store
// may be nil for memory-only operation; otherwise persisted records and
// insights are loaded up front.
func NewLearner(cfg *value.ScoringConfig, store *Store, log zerolog.Logger) *Learner {
	l := &Learner{cfg: cfg, store: store, log: log}
	if store != nil {
		records, insights, err := store.Load()
		if err != nil {
			log.Warn().Err(err).Msg("could not load learning state, starting fresh")
		} else {
			l.records = records
			l.insights = insights
		}
	}
	return l
}

// RecordBlocked stores a gate block as a feedback sample.
func (l *Learner) RecordBlocked(res *gate.Result) {
	l.add(recordFromResult(res, OutcomeBlocked))
}

// RecordExecuted stores a successful execution. The engagement payload
// decides between a success and a neutral outcome.
func (l *Learner) RecordExecuted(res *gate.Result, engagement map[string]any) {
	rec := recordFromResult(res, OutcomeNeutral)
	rec.Engagement = engagement
	if engagementScore(engagement) > 0 {
		rec.Outcome = OutcomeSuccess
	}
	l.add(rec)
}

// RecordFailed stores an execution that errored out.
func (l *Learner) RecordFailed(res *gate.Result, errMsg string) {
	rec := recordFromResult(res, OutcomeError)
	rec.ErrorMsg = errMsg
	l.add(rec)
}

// RecordDeferred stores a decision parked for review.
func (l *Learner) RecordDeferred(res *gate.Result) {
	l.add(recordFromResult(res, OutcomeDeferred))
}

// UpdateEngagement replaces the engagement payload of an earlier record
// and reclassifies it. Reports whether the action id was found.
func (l *Learner) UpdateEngagement(actionID string, engagement map[string]any) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.records) - 1; i >= 0; i-- {
		rec := l.records[i]
		if rec.ActionID != actionID {
			continue
		}
		rec.Engagement = engagement
		if engagementScore(engagement) > 0 {
			rec.Outcome = OutcomeSuccess
		} else if rec.Outcome == OutcomeSuccess {
			rec.Outcome = OutcomeNeutral
		}
		return true
	}
	return false
}

func recordFromResult(res *gate.Result, outcome ActionOutcome) *ActionRecord {
	rec := &ActionRecord{
		ActionID:   res.ActionID,
		ActionType: res.ActionType,
		Content:    res.Content,
		Outcome:    outcome,
		Tags:       contentTags(res.Content),
		RecordedAt: time.Now().UTC(),
	}
	if res.Score != nil {
		rec.Score = res.Score.TotalScore
		rec.Threshold = res.Score.Threshold
		rec.PillarScores = res.Score.PillarSummary()
	}
	rec.WeakPillars = res.WeakPillars
	return rec
}

func (l *Learner) add(rec *ActionRecord) {
	l.mu.Lock()
	l.records = append(l.records, rec)
	if len(l.records) > maxRecords {
		l.records = l.records[len(l.records)-maxRecords:]
	}
	l.sinceFlush++
	flush := l.sinceFlush >= flushEvery
	if flush {
		l.sinceFlush = 0
	}
	var snapshot []*ActionRecord
	if flush && l.store != nil {
		snapshot = append(snapshot, l.records...)
	}
	l.mu.Unlock()

	if snapshot != nil {
		if err := l.store.SaveRecords(snapshot); err != nil {
			l.log.Warn().Err(err).Msg("could not persist learning records")
		}
	}
}

// Records returns up to n most recent samples, newest last.
func (l *Learner) Records(n int) []*ActionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	src := l.records
	if n > 0 && len(src) > n {
		src = src[len(src)-n:]
	}
	out := make([]*ActionRecord, len(src))
	copy(out, src)
	return out
}

// Insights returns all derived insights, oldest first.
func (l *Learner) Insights() []*Insight {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Insight, len(l.insights))
	copy(out, l.insights)
	return out
}

// ApplyInsight mutates the scoring config according to the insight.
// Content pattern insights are informational and never applied.
func (l *Learner) ApplyInsight(ins *Insight) bool {
	switch ins.Kind {
	case InsightThreshold:
		l.cfg.AdjustDefaultThreshold(ins.Delta)
	case InsightPillarWeight:
		l.cfg.AdjustWeight(ins.Pillar, ins.Delta)
	default:
		return false
	}
	ins.Applied = true
	appliedAt := time.Now().UTC()
	ins.AppliedAt = &appliedAt
	l.log.Info().
		Str("kind", string(ins.Kind)).
		Float64("delta", ins.Delta).
		Str("pillar", string(ins.Pillar)).
		Msg("insight applied to scoring config")
	return true
}

// Stats summarizes the feedback corpus.
type Stats struct {
	Total     int                      `json:"total_records"`
	ByOutcome map[ActionOutcome]int    `json:"by_outcome"`
	ByType    map[value.ActionType]int `json:"by_type"`
	Insights  int                      `json:"insights"`
	Applied   int                      `json:"insights_applied"`
}

// Stats returns current corpus counters.
func (l *Learner) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Stats{
		Total:     len(l.records),
		ByOutcome: make(map[ActionOutcome]int),
		ByType:    make(map[value.ActionType]int),
		Insights:  len(l.insights),
	}
	for _, rec := range l.records {
		s.ByOutcome[rec.Outcome]++
		s.ByType[rec.ActionType]++
	}
	for _, ins := range l.insights {
		if ins.Applied {
			s.Applied++
		}
	}
	return s
}

// Close flushes pending state to the store.
func (l *Learner) Close() error {
	if l.store == nil {
		return nil
	}
	l.mu.Lock()
	records := append([]*ActionRecord(nil), l.records...)
	insights := append([]*Insight(nil), l.insights...)
	l.mu.Unlock()

	if err := l.store.SaveRecords(records); err != nil {
		return err
	}
	if err := l.store.SaveInsights(insights); err != nil {
		return err
	}
	return l.store.Close()
}
