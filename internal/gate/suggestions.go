package gate

import "github.com/valueadders/papito/internal/value"

// pillarAdvice maps each weak pillar to one concrete improvement hint.
var pillarAdvice = map[value.PillarID]string{
	value.Awareness:  "Take more time to understand the context and who you are engaging with.",
	value.Define:     "Clarify the purpose of this action. What value does it deliver and to whom?",
	value.Devise:     "Rework the content to be more authentic and better suited to the destination.",
	value.Validate:   "Verify the user is genuine and the engagement is appropriate.",
	value.ActUpon:    "Resolve blockers and check the timing before executing.",
	value.Learn:      "Review past interactions with this user before engaging again.",
	value.Understand: "Dig deeper into what the user actually wants or needs.",
	value.Evolve:     "Consider whether this action contributes to long-term growth.",
}

// suggestions builds the improvement list for a blocked score: one line
// per weak pillar in fixed order, plus a severity line for low totals.
func suggestions(s *value.Score) []string {
	var out []string
	for _, id := range value.Pillars {
		ps, ok := s.Pillars[id]
		if !ok || !ps.Weak() {
			continue
		}
		if advice, ok := pillarAdvice[id]; ok {
			out = append(out, advice)
		}
	}
	switch {
	case s.TotalScore < 40:
		out = append(out, "This action provides very little value. Consider a completely different approach.")
	case s.TotalScore < 60:
		out = append(out, "This action needs significant improvement before executing.")
	}
	return out
}
