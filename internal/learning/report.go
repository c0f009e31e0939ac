package learning

import (
	"fmt"

	"github.com/valueadders/papito/internal/value"
)

// TypeReport summarizes how one action type has been performing.
type TypeReport struct {
	ActionType value.ActionType `json:"action_type"`
	Total      int              `json:"total"`

	Success  int `json:"executed_success"`
	Neutral  int `json:"executed_neutral"`
	Blocked  int `json:"blocked"`
	Deferred int `json:"deferred"`
	Errors   int `json:"errors"`

	SuccessRate float64 `json:"success_rate"`
	BlockRate   float64 `json:"block_rate"`
	ErrorRate   float64 `json:"error_rate"`

	AverageScore   float64 `json:"average_score"`
	Recommendation string  `json:"recommendation"`
}

// TypeReport aggregates all records of one action type into rates and a
// one-line recommendation.
func (l *Learner) TypeReport(at value.ActionType) TypeReport {
	l.mu.Lock()
	defer l.mu.Unlock()

	rep := TypeReport{ActionType: at}
	var scoreSum float64
	for _, rec := range l.records {
		if rec.ActionType != at {
			continue
		}
		rep.Total++
		scoreSum += rec.Score
		switch rec.Outcome {
		case OutcomeSuccess:
			rep.Success++
		case OutcomeNeutral:
			rep.Neutral++
		case OutcomeBlocked:
			rep.Blocked++
		case OutcomeDeferred:
			rep.Deferred++
		case OutcomeError, OutcomeFailure:
			rep.Errors++
		}
	}
	if rep.Total == 0 {
		rep.Recommendation = fmt.Sprintf("no %s actions recorded yet", at)
		return rep
	}

	total := float64(rep.Total)
	rep.SuccessRate = float64(rep.Success) / total
	rep.BlockRate = float64(rep.Blocked) / total
	rep.ErrorRate = float64(rep.Errors) / total
	rep.AverageScore = scoreSum / total

	switch {
	case rep.BlockRate > 0.5:
		rep.Recommendation = fmt.Sprintf("most %s attempts are blocked, raise content quality before trying more", at)
	case rep.ErrorRate > 0.3:
		rep.Recommendation = fmt.Sprintf("%s actions keep failing at execution, check the destination adapter", at)
	case rep.SuccessRate > 0.7:
		rep.Recommendation = fmt.Sprintf("%s actions perform well, keep the current approach", at)
	default:
		rep.Recommendation = fmt.Sprintf("%s results are mixed, gather more data before adjusting", at)
	}
	return rep
}
