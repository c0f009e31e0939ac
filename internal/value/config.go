package value

import "sync"

// DefaultThreshold applies to action types without an override.
const DefaultThreshold = 70.0

// ScoringConfig owns the live weight and threshold tables. The only
// external mutators are the Adjust methods, called by the learner when an
// insight is applied; everything else reads through WeightsFor/ThresholdFor.
type ScoringConfig struct {
	mu sync.RWMutex

	defaultThreshold float64
	weights          map[PillarID]float64
	actionWeights    map[ActionType]map[PillarID]float64
	thresholds       map[ActionType]float64
}

// DefaultScoringConfig returns the calibrated production defaults.
func DefaultScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		defaultThreshold: DefaultThreshold,
		weights: map[PillarID]float64{
			Awareness:  1.5,
			Define:     1.2,
			Devise:     1.0,
			Validate:   1.3,
			ActUpon:    0.8,
			Learn:      0.7,
			Understand: 0.8,
			Evolve:     0.7,
		},
		actionWeights: map[ActionType]map[PillarID]float64{
			ActionReply: {
				Awareness: 2.0, // must understand what they said
				Validate:  1.5,
			},
			ActionTweet: {
				Define: 1.5,
				Devise: 1.5,
			},
			ActionFollow: {
				Awareness: 1.8,
				Validate:  1.8,
			},
			ActionDM: {
				Awareness: 2.0, // very personal, must understand
				Validate:  2.0,
			},
		},
		thresholds: map[ActionType]float64{
			ActionTweet:         70,
			ActionReply:         65, // lower bar for engagement
			ActionQuote:         75,
			ActionRetweet:       60,
			ActionLike:          50,
			ActionFollow:        60,
			ActionDM:            80, // high bar for DMs
			ActionCollabRequest: 85,
			ActionShoutout:      70,
		},
	}
}

// WeightsFor returns the effective pillar weights for an action type:
// defaults overlaid with any per-type overrides.
func (c *ScoringConfig) WeightsFor(at ActionType) map[PillarID]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[PillarID]float64, len(c.weights))
	for id, w := range c.weights {
		out[id] = w
	}
	for id, w := range c.actionWeights[at] {
		out[id] = w
	}
	return out
}

// ThresholdFor returns the execution threshold for an action type.
func (c *ScoringConfig) ThresholdFor(at ActionType) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t, ok := c.thresholds[at]; ok {
		return t
	}
	return c.defaultThreshold
}

// SetThreshold overrides the threshold for one action type (policy file).
func (c *ScoringConfig) SetThreshold(at ActionType, threshold float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thresholds[at] = threshold
}

// AdjustDefaultThreshold shifts the global default threshold by delta.
func (c *ScoringConfig) AdjustDefaultThreshold(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultThreshold += delta
}

// AdjustWeight shifts one pillar's default weight by delta. Weights stay
// strictly positive.
func (c *ScoringConfig) AdjustWeight(id PillarID, delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.weights[id]
	if !ok {
		return
	}
	w += delta
	if w < 0.1 {
		w = 0.1
	}
	c.weights[id] = w
}

// DefaultThresholdValue reports the current global default threshold.
func (c *ScoringConfig) DefaultThresholdValue() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultThreshold
}

// WeightValue reports the current default weight for one pillar.
func (c *ScoringConfig) WeightValue(id PillarID) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.weights[id]
}
