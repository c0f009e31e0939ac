package gate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/valueadders/papito/internal/value"
)

// Decision is the gate's verdict for one candidate action.
type Decision string

const (
	DecisionPass     Decision = "pass"
	DecisionBlock    Decision = "block"
	DecisionDefer    Decision = "defer"
	DecisionEscalate Decision = "escalate"
)

// Result is created exactly once per evaluation and appended to the
// bounded history.
type Result struct {
	Decision   Decision         `json:"decision"`
	ActionID   string           `json:"action_id"`
	ActionType value.ActionType `json:"action_type"`
	Content    string           `json:"content"`

	Score *value.Score `json:"value_score"`

	Reason      string           `json:"reason,omitempty"`
	WeakPillars []value.PillarID `json:"weak_pillars,omitempty"`
	Suggestions []string         `json:"improvement_suggestions,omitempty"`

	EvaluatedAt time.Time     `json:"evaluated_at"`
	Elapsed     time.Duration `json:"evaluation_time,omitempty"`
}

// Learner receives gated outcomes. Implementations must be best-effort:
// a learner failure never fails the gate call.
type Learner interface {
	RecordBlocked(res *Result)
	RecordDeferred(res *Result)
	RecordExecuted(res *Result, engagement map[string]any)
	RecordFailed(res *Result, errMsg string)
}

// Executor performs a passed action and returns an optional engagement
// payload (likes, replies and similar counters).
type Executor func(ctx context.Context) (map[string]any, error)

// overridable action types pass unconditionally when the context carries
// an explicit override flag: their impact is low.
var overridable = map[value.ActionType]bool{
	value.ActionLike:    true,
	value.ActionRetweet: true,
}

// highScrutiny action types are forced to defer in the 60..79 score band
// instead of resolving on the raw comparison.
var highScrutiny = map[value.ActionType]bool{
	value.ActionDM:            true,
	value.ActionCollabRequest: true,
	value.ActionShoutout:      true,
}

const (
	deferBandLow  = 60.0
	deferBandHigh = 80.0
)

// DefaultMaxHistory caps the gate decision history.
const DefaultMaxHistory = 1000

// Gate converts value scores plus policy rules into decisions. All shared
// state is guarded by one mutex; critical sections are short.
type Gate struct {
	calc    *value.Calculator
	learner Learner
	log     zerolog.Logger

	maxHistory int

	mu         sync.Mutex
	history    []*Result
	evaluated  int
	passed     int
	blocked    int
	deferred   int
	escalated  int
	overridden int
}

// New creates a gate over the calculator. The learner may be nil; attach
// one later with SetLearner.
func New(calc *value.Calculator, log zerolog.Logger) *Gate {
	return &Gate{calc: calc, log: log, maxHistory: DefaultMaxHistory}
}

// SetLearner attaches the feedback loop.
func (g *Gate) SetLearner(l Learner) { g.learner = l }

// SetMaxHistory overrides the history cap (testing and tuning).
func (g *Gate) SetMaxHistory(n int) {
	if n > 0 {
		g.maxHistory = n
	}
}

// Evaluate scores the action and applies policy. Every call appends one
// Result to the history; blocked results are reported to the learner.
func (g *Gate) Evaluate(at value.ActionType, content string, ctx value.Context) *Result {
	start := time.Now()

	score := g.calc.Calculate(at, content, ctx)
	decision, reason := g.decide(at, score, ctx)

	res := &Result{
		Decision:    decision,
		ActionID:    score.ActionID,
		ActionType:  at,
		Content:     content,
		Score:       score,
		Reason:      reason,
		EvaluatedAt: start.UTC(),
	}

	if decision == DecisionBlock {
		res.WeakPillars = score.WeakPillars()
		res.Suggestions = suggestions(score)
	}
	res.Elapsed = time.Since(start)

	g.mu.Lock()
	g.evaluated++
	switch decision {
	case DecisionPass:
		g.passed++
	case DecisionBlock:
		g.blocked++
	case DecisionDefer:
		g.deferred++
	case DecisionEscalate:
		g.escalated++
	}
	g.history = append(g.history, res)
	if len(g.history) > g.maxHistory {
		g.history = g.history[len(g.history)-g.maxHistory:]
	}
	g.mu.Unlock()

	if g.learner != nil {
		switch decision {
		case DecisionBlock:
			g.learner.RecordBlocked(res)
		case DecisionDefer:
			g.learner.RecordDeferred(res)
		}
	}

	g.log.Info().
		Str("action_type", string(at)).
		Str("decision", string(decision)).
		Float64("score", score.TotalScore).
		Float64("threshold", score.Threshold).
		Msg("gate decision")

	return res
}

// decide maps (score, type, context flags) to exactly one decision.
func (g *Gate) decide(at value.ActionType, score *value.Score, ctx value.Context) (Decision, string) {
	if ctx.Override && overridable[at] {
		g.mu.Lock()
		g.overridden++
		g.mu.Unlock()
		return DecisionPass, "override approved for low-impact action"
	}

	if highScrutiny[at] && score.TotalScore >= deferBandLow && score.TotalScore < deferBandHigh {
		return DecisionDefer, "high-scrutiny action needs review"
	}

	if score.ShouldExecute {
		return DecisionPass, "value score meets threshold"
	}
	return DecisionBlock, "value score below threshold"
}

// ExecuteIfPasses evaluates and, only on pass, runs the executor. Executor
// failure is reported to the learner and returned to the caller; success
// is reported with its engagement payload.
func (g *Gate) ExecuteIfPasses(ctx context.Context, at value.ActionType, content string, vctx value.Context, exec Executor) (*Result, map[string]any, error) {
	res := g.Evaluate(at, content, vctx)
	if res.Decision != DecisionPass {
		return res, nil, nil
	}

	engagement, err := exec(ctx)
	if err != nil {
		if g.learner != nil {
			g.learner.RecordFailed(res, err.Error())
		}
		return res, nil, err
	}

	if g.learner != nil {
		g.learner.RecordExecuted(res, engagement)
	}
	return res, engagement, nil
}

// Stats is a snapshot of the gate counters.
type Stats struct {
	Evaluated   int     `json:"total_evaluated"`
	Passed      int     `json:"passed"`
	Blocked     int     `json:"blocked"`
	Deferred    int     `json:"deferred"`
	Escalated   int     `json:"escalated"`
	Overridden  int     `json:"overridden"`
	PassRate    float64 `json:"pass_rate"`
	BlockRate   float64 `json:"block_rate"`
	HistorySize int     `json:"history_size"`
}

// Stats returns current counters.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := Stats{
		Evaluated:   g.evaluated,
		Passed:      g.passed,
		Blocked:     g.blocked,
		Deferred:    g.deferred,
		Escalated:   g.escalated,
		Overridden:  g.overridden,
		HistorySize: len(g.history),
	}
	if total := g.passed + g.blocked + g.deferred; total > 0 {
		s.PassRate = float64(g.passed) / float64(total)
		s.BlockRate = float64(g.blocked) / float64(total)
	}
	return s
}

// RecentDecisions returns up to limit most recent results, newest last,
// optionally filtered by decision.
func (g *Gate) RecentDecisions(limit int, filter Decision) []*Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	src := g.history
	if filter != "" {
		src = nil
		for _, r := range g.history {
			if r.Decision == filter {
				src = append(src, r)
			}
		}
	}
	if limit > 0 && len(src) > limit {
		src = src[len(src)-limit:]
	}
	out := make([]*Result, len(src))
	copy(out, src)
	return out
}

// BlockedSummary aggregates blocked decisions: common weak pillars,
// common suggestions and average blocked score.
type BlockedSummary struct {
	Count             int                    `json:"count"`
	AverageScore      float64                `json:"average_score"`
	CommonWeakPillars []value.PillarID       `json:"common_weak_pillars,omitempty"`
	CommonSuggestions []string               `json:"common_suggestions,omitempty"`
	PillarCounts      map[value.PillarID]int `json:"pillar_counts,omitempty"`
}

// Blocked returns a summary over blocked history entries.
func (g *Gate) Blocked() BlockedSummary {
	g.mu.Lock()
	defer g.mu.Unlock()

	var sum BlockedSummary
	counts := make(map[value.PillarID]int)
	seen := make(map[string]bool)
	var scoreSum float64

	for _, r := range g.history {
		if r.Decision != DecisionBlock {
			continue
		}
		sum.Count++
		scoreSum += r.Score.TotalScore
		for _, p := range r.WeakPillars {
			counts[p]++
		}
		for _, s := range r.Suggestions {
			if !seen[s] && len(sum.CommonSuggestions) < 5 {
				seen[s] = true
				sum.CommonSuggestions = append(sum.CommonSuggestions, s)
			}
		}
	}
	if sum.Count == 0 {
		return sum
	}
	sum.AverageScore = scoreSum / float64(sum.Count)
	sum.PillarCounts = counts

	// Fixed pillar order keeps the output deterministic.
	for _, id := range value.Pillars {
		if counts[id] > 0 {
			sum.CommonWeakPillars = append(sum.CommonWeakPillars, id)
		}
	}
	return sum
}
