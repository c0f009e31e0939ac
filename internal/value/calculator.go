package value

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Calculator scores candidate actions against the eight pillars. It never
// fails on malformed input: missing context simply skips the associated
// evidence bonus. The only external I/O is logging.
type Calculator struct {
	cfg *ScoringConfig
	log zerolog.Logger

	mu           sync.Mutex
	calculations int
	passed       int
	blocked      int
}

// NewCalculator creates a calculator over the given configuration.
func NewCalculator(cfg *ScoringConfig, log zerolog.Logger) *Calculator {
	if cfg == nil {
		cfg = DefaultScoringConfig()
	}
	return &Calculator{cfg: cfg, log: log}
}

// Config exposes the live scoring configuration (for the learner).
func (c *Calculator) Config() *ScoringConfig { return c.cfg }

// Calculate evaluates every pillar independently and combines them into
// one weight-normalized score with the action type's threshold applied.
func (c *Calculator) Calculate(at ActionType, content string, ctx Context) *Score {
	start := time.Now()

	weights := c.cfg.WeightsFor(at)
	threshold := c.cfg.ThresholdFor(at)

	s := &Score{
		ActionID:     NewActionID(),
		ActionType:   at,
		Content:      content,
		Pillars:      make(map[PillarID]*PillarScore, len(Pillars)),
		Threshold:    threshold,
		Context:      ctx,
		CalculatedAt: start.UTC(),
	}

	for _, id := range Pillars {
		raw, reasoning, evidence := pillarRules[id](at, content, ctx)
		s.Pillars[id] = &PillarScore{
			Pillar:    id,
			Score:     clampScore(raw),
			Weight:    weights[id],
			Reasoning: reasoning,
			Evidence:  evidence,
		}
	}

	s.recompute()
	s.Elapsed = time.Since(start)

	c.mu.Lock()
	c.calculations++
	if s.ShouldExecute {
		c.passed++
	} else {
		c.blocked++
	}
	c.mu.Unlock()

	c.log.Debug().
		Str("action_type", string(at)).
		Float64("total", s.TotalScore).
		Float64("threshold", threshold).
		Bool("execute", s.ShouldExecute).
		Msg("value score calculated")

	return s
}

// Stats is an introspection snapshot of the calculator counters.
type Stats struct {
	Calculations int     `json:"calculations"`
	Passed       int     `json:"passed"`
	Blocked      int     `json:"blocked"`
	PassRate     float64 `json:"pass_rate"`
	BlockRate    float64 `json:"block_rate"`
}

// Stats returns current pass/block counters.
func (c *Calculator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{Calculations: c.calculations, Passed: c.passed, Blocked: c.blocked}
	if total := c.passed + c.blocked; total > 0 {
		s.PassRate = float64(c.passed) / float64(total)
		s.BlockRate = float64(c.blocked) / float64(total)
	}
	return s
}

// NewActionID returns a short unique id, readable in logs.
func NewActionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
