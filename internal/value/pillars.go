package value

import (
	"fmt"
	"strings"
)

// A pillarRule scores one dimension of a candidate action. Rules are pure:
// same inputs, same output, no I/O. Each starts from a documented base and
// adds or subtracts bounded increments for specific evidence.
type pillarRule func(at ActionType, content string, ctx Context) (score float64, reasoning string, evidence []string)

// pillarRules is the fixed rule table, one entry per pillar.
var pillarRules = map[PillarID]pillarRule{
	Awareness:  scoreAwareness,
	Define:     scoreDefine,
	Devise:     scoreDevise,
	Validate:   scoreValidate,
	ActUpon:    scoreActUpon,
	Learn:      scoreLearn,
	Understand: scoreUnderstand,
	Evolve:     scoreEvolve,
}

var engagementWords = []string{"love", "amazing", "thank", "appreciate", "welcome", "vibe", "music"}

var spamMarkers = []string{"buy now", "click here", "free", "dm me for", "🔥🔥🔥🔥🔥"}

var personalityMarkers = []string{"vibes", "fam", "music", "love", "blessed", "🎵", "🔥", "❤️"}

var disallowedMarkers = []string{"hate", "spam", "scam", "fake", "nsfw"}

// scoreAwareness: do we understand the situation? Base 50.
func scoreAwareness(_ ActionType, _ string, ctx Context) (float64, string, []string) {
	score := 50.0
	var evidence []string

	if ctx.UserID != "" || ctx.UserName != "" {
		score += 10
		evidence = append(evidence, "user identified")
		if ctx.FollowerCount > 0 {
			score += 5
			evidence = append(evidence, fmt.Sprintf("follower count known: %d", ctx.FollowerCount))
		}
		if ctx.RelationshipTier != "" {
			score += 5
			evidence = append(evidence, "relationship tier: "+ctx.RelationshipTier)
		}
	}

	if ctx.TheirMessage != "" || ctx.OriginalContent != "" {
		score += 10
		evidence = append(evidence, "original message available")
		if len(ctx.TheirMessage) > 20 {
			score += 5
			evidence = append(evidence, "detailed message context")
		}
	}

	if ctx.EventTime != "" {
		score += 15
		evidence = append(evidence, "timing context available")
	}

	return score, fmt.Sprintf("awareness of context: %d factors identified", len(evidence)), evidence
}

// scoreDefine: is the goal clear? Base 50. Personal action types aimed at
// an unknown recipient are penalized hard: there is no purpose to define.
func scoreDefine(at ActionType, content string, ctx Context) (float64, string, []string) {
	score := 50.0
	var evidence []string

	if at == ActionReply || at == ActionTweet {
		score += 15
		evidence = append(evidence, "clear action type: "+string(at))
	}

	if len(content) >= 10 {
		score += 10
		evidence = append(evidence, "content has substance")
		if containsAny(strings.ToLower(content), engagementWords) {
			score += 10
			evidence = append(evidence, "positive engagement intent")
		}
	}

	if ctx.Goal != "" || ctx.DetectedIntent != "" {
		score += 15
		evidence = append(evidence, "explicit goal: "+firstNonEmpty(ctx.Goal, ctx.DetectedIntent))
	} else if goal, ok := inferredGoals[at]; ok {
		score += 10
		evidence = append(evidence, "inferred goal: "+goal)
	}

	if (at == ActionDM || at == ActionCollabRequest) && ctx.UserID == "" && ctx.TheirMessage == "" {
		score -= 25
		evidence = append(evidence, "personal action without a defined recipient or purpose")
	}

	return score, "goal clarity: " + band(score), evidence
}

var inferredGoals = map[ActionType]string{
	ActionReply:  "engage with fan or community",
	ActionTweet:  "share content with audience",
	ActionFollow: "build network",
	ActionLike:   "show appreciation",
}

// scoreDevise: is this the best approach? Base 50.
func scoreDevise(at ActionType, content string, ctx Context) (float64, string, []string) {
	score := 50.0
	var evidence []string
	lower := strings.ToLower(content)

	if content != "" {
		switch {
		case len(content) >= 20 && len(content) <= 280:
			score += 10
			evidence = append(evidence, "appropriate length")
		case len(content) > 280:
			score -= 10
			evidence = append(evidence, "too long, needs trimming")
		}

		if containsAny(lower, spamMarkers) {
			score -= 20
			evidence = append(evidence, "contains spam markers")
		} else {
			score += 10
			evidence = append(evidence, "not spammy")
		}

		if containsAny(lower, personalityMarkers) {
			score += 5
			evidence = append(evidence, "carries persona voice")
		}
	}

	if at == ActionReply && ctx.TheirMessage != "" {
		if wordOverlap(ctx.TheirMessage, content) >= 2 {
			score += 10
			evidence = append(evidence, "reply is relevant to their message")
		}
	}

	return score, fmt.Sprintf("approach quality: %d positive factors", len(evidence)), evidence
}

// scoreValidate: is this backed by evidence? Base 50. An account that gives
// no verification signal at all looks new and costs 20 points.
func scoreValidate(_ ActionType, content string, ctx Context) (float64, string, []string) {
	score := 50.0
	var evidence []string

	switch {
	case ctx.FollowerCount > 100:
		score += 10
		evidence = append(evidence, fmt.Sprintf("user has %d followers, likely real", ctx.FollowerCount))
	case ctx.FollowerCount > 0:
		score += 5
		evidence = append(evidence, "user has some followers")
	}

	switch {
	case ctx.Verified:
		score += 15
		evidence = append(evidence, "user is verified")
	case ctx.AccountAgeDays > 30:
		score += 10
		evidence = append(evidence, "account is established")
	}

	if ctx.FollowerCount == 0 && !ctx.Verified && ctx.AccountAgeDays <= 30 {
		score -= 20
		evidence = append(evidence, "account cannot be verified, looks new")
	}

	if containsAny(strings.ToLower(content), disallowedMarkers) {
		score -= 30
		evidence = append(evidence, "content may be inappropriate")
	} else {
		score += 15
		evidence = append(evidence, "content is appropriate")
	}

	return score, "validation: " + band(score), evidence
}

// scoreActUpon: are we ready to execute? Higher base (70): reaching the
// gate at all implies most prerequisites are met.
func scoreActUpon(_ ActionType, content string, ctx Context) (float64, string, []string) {
	score := 70.0
	var evidence []string

	if strings.TrimSpace(content) != "" {
		score += 15
		evidence = append(evidence, "content is ready")
	}

	if ctx.BlockedReason == "" {
		score += 15
		evidence = append(evidence, "no blockers identified")
	} else {
		score -= 30
		evidence = append(evidence, "blocker: "+ctx.BlockedReason)
	}

	reasoning := "ready to execute"
	if score < 70 {
		reasoning = "execution readiness unclear"
	}
	return score, reasoning, evidence
}

// scoreLearn: what did similar past actions teach us? Base 60.
func scoreLearn(_ ActionType, _ string, ctx Context) (float64, string, []string) {
	score := 60.0
	var evidence []string

	if ctx.PastInteractions {
		score += 15
		evidence = append(evidence, "have history with this user")
		if ctx.PastPositive {
			score += 5
			evidence = append(evidence, "past interactions were positive")
		}
	}

	switch {
	case ctx.SuccessRate > 0.7:
		score += 15
		evidence = append(evidence, fmt.Sprintf("similar actions succeed %.0f%% of the time", ctx.SuccessRate*100))
	case ctx.SuccessRate > 0.5:
		score += 10
		evidence = append(evidence, "similar actions have moderate success")
	}

	return score, fmt.Sprintf("learning score based on %d historical factors", len(evidence)), evidence
}

// scoreUnderstand: do we see the deeper pattern? Base 60.
func scoreUnderstand(_ ActionType, _ string, ctx Context) (float64, string, []string) {
	score := 60.0
	var evidence []string

	if ctx.DetectedIntent != "" {
		score += 15
		evidence = append(evidence, "detected intent: "+ctx.DetectedIntent)
		if ctx.IntentConfidence > 0.8 {
			score += 5
			evidence = append(evidence, "high confidence in intent")
		}
	}

	if ctx.EngagementPattern != "" {
		score += 15
		evidence = append(evidence, "user engagement pattern identified")
	}

	return score, fmt.Sprintf("understanding depth: %d insights", len(evidence)), evidence
}

// scoreEvolve: does this action grow the persona's reach or relationships?
// Base 60.
func scoreEvolve(at ActionType, _ string, ctx Context) (float64, string, []string) {
	score := 60.0
	var evidence []string

	if at == ActionReply || at == ActionDM {
		score += 15
		evidence = append(evidence, "deepens relationship with fan")
		if ctx.RelationshipTier == "super_fan" || ctx.RelationshipTier == "engaged_fan" {
			score += 5
			evidence = append(evidence, "engaging valuable community member")
		}
	}

	if at == ActionTweet {
		score += 10
		evidence = append(evidence, "expands content reach")
		if ctx.TrendingTopic != "" {
			score += 5
			evidence = append(evidence, "leverages trending topic")
		}
	}

	if ctx.GrowthPotential != "" {
		score += 10
		evidence = append(evidence, "growth potential: "+ctx.GrowthPotential)
	}

	return score, "evolution potential: " + band(score), evidence
}

func band(score float64) string {
	switch {
	case score >= 75:
		return "strong"
	case score >= 50:
		return "moderate"
	default:
		return "weak"
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func wordOverlap(a, b string) int {
	seen := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(a)) {
		seen[w] = true
	}
	count := 0
	matched := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(b)) {
		if seen[w] && !matched[w] {
			matched[w] = true
			count++
		}
	}
	return count
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
