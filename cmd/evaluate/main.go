// Command evaluate runs one candidate action through the value gate and
// prints the decision as JSON. Useful for tuning thresholds offline.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/valueadders/papito/internal/gate"
	"github.com/valueadders/papito/internal/value"
)

func main() {
	var (
		actionType = flag.String("type", "tweet", "action type (tweet, reply, dm, ...)")
		content    = flag.String("content", "", "candidate content")
		userID     = flag.String("user", "", "target user id")
		userName   = flag.String("username", "", "target user name")
		followers  = flag.Int("followers", 0, "target follower count")
		verified   = flag.Bool("verified", false, "target is verified")
		ageDays    = flag.Int("account-age", 0, "target account age in days")
		message    = flag.String("message", "", "message being replied to")
		goal       = flag.String("goal", "", "explicit goal of the action")
		override   = flag.Bool("override", false, "request a manual override")
		verbose    = flag.Bool("v", false, "include per-pillar breakdown")
	)
	flag.Parse()

	calc := value.NewCalculator(value.DefaultScoringConfig(), zerolog.Nop())
	g := gate.New(calc, zerolog.Nop())

	res := g.Evaluate(value.ActionType(*actionType), *content, value.Context{
		UserID:         *userID,
		UserName:       *userName,
		FollowerCount:  *followers,
		Verified:       *verified,
		AccountAgeDays: *ageDays,
		TheirMessage:   *message,
		Goal:           *goal,
		Override:       *override,
	})

	out := map[string]any{
		"decision":    res.Decision,
		"action_type": res.ActionType,
		"total_score": res.Score.TotalScore,
		"threshold":   res.Score.Threshold,
		"reason":      res.Reason,
	}
	if len(res.WeakPillars) > 0 {
		out["weak_pillars"] = res.WeakPillars
	}
	if len(res.Suggestions) > 0 {
		out["suggestions"] = res.Suggestions
	}
	if *verbose {
		out["pillars"] = res.Score.Pillars
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, "evaluate:", err)
		os.Exit(1)
	}
	if res.Decision != gate.DecisionPass {
		os.Exit(2)
	}
}
