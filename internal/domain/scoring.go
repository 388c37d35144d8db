package domain

import "math"

const (
	basePoints  = 50
	bonusPoints = 50
)

// IsCorrect validates submitted option ids against the question.
// Single-choice and true/false expect exactly one id matching the single
// correct option. Multi-select requires set equality with the correct option
// set: a missing correct option or an extra wrong one both fail. Unknown
// question types fail closed.
func IsCorrect(q Question, selectedIDs []string) bool {
	switch q.Type {
	case SingleChoice, TrueFalse:
		if len(selectedIDs) != 1 {
			return false
		}
		for _, opt := range q.Options {
			if opt.Correct {
				return selectedIDs[0] == opt.ID
			}
		}
		return false
	case MultiSelect:
		correct := q.CorrectOptionIDs()
		selected := dedupe(selectedIDs)
		if len(selected) != len(correct) {
			return false
		}
		for _, id := range correct {
			if _, ok := selected[id]; !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Points awards a flat base for a correct answer plus a bonus scaled
// linearly by remaining time. Incorrect answers score zero; answering at or
// after the limit earns exactly the base. A non-positive time limit yields
// no bonus rather than dividing by zero.
func Points(correct bool, timeToAnswer, timeLimit float64) int {
	if !correct {
		return 0
	}
	if timeLimit <= 0 {
		return basePoints
	}
	bonus := math.Max(0, (timeLimit-timeToAnswer)/timeLimit) * bonusPoints
	return int(math.Round(basePoints + bonus))
}

// ClampTimeToAnswer bounds a reported answer time to [0, timeLimit].
func ClampTimeToAnswer(timeToAnswer float64, timeLimit int) float64 {
	if timeToAnswer < 0 {
		return 0
	}
	if limit := float64(timeLimit); timeLimit > 0 && timeToAnswer > limit {
		return limit
	}
	return timeToAnswer
}

func dedupe(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
