// Package urgency ranks needs by how soon and how badly they need funding.
//
// Everything here is a pure function of a need and a reference time, so
// callers pass "now" explicitly instead of the package reading the clock.
package urgency

import (
	"math"
	"time"

	"needsmatch/pkg/types"
)

const (
	weightUrgent  = 60
	weightHigh    = 40
	weightNormal  = 20
	weightUnknown = 10

	bonusOverdue    = 35
	bonusThreeDays  = 30
	bonusWeek       = 20
	bonusFortnight  = 10
	bonusLowStock   = 10
	bonusPerishable = 15
	bonusService    = 10

	requestWeight = 5
	requestCap    = 25

	// TimeSensitiveScore is the score at which a need counts as
	// time-sensitive regardless of its deadline.
	TimeSensitiveScore = 70
)

// Breakdown lists every term that contributes to a need's score.
type Breakdown struct {
	Priority   int `json:"priority"`
	Deadline   int `json:"deadline"`
	LowStock   int `json:"low_stock"`
	Perishable int `json:"perishable"`
	Requests   int `json:"requests"`
	Service    int `json:"service"`
	Total      int `json:"total"`
}

// Score returns the urgency score of need at time now.
func Score(need *types.Need, now time.Time) int {
	return Explain(need, now).Total
}

// Explain computes the score and keeps each term.
func Explain(need *types.Need, now time.Time) Breakdown {
	b := Breakdown{
		Priority: PriorityWeight(need.Priority),
		Deadline: deadlineBonus(need.Deadline, now),
		Requests: min(need.RequestCount*requestWeight, requestCap),
	}

	remaining := need.Remaining()
	if remaining > 0 && remaining <= quarterCeil(need.Quantity) {
		b.LowStock = bonusLowStock
	}
	if need.Perishable {
		b.Perishable = bonusPerishable
	}
	if need.ServiceRequired {
		b.Service = bonusService
	}

	b.Total = b.Priority + b.Deadline + b.LowStock + b.Perishable + b.Requests + b.Service
	return b
}

// PriorityWeight is the base score for a priority level.
func PriorityWeight(p types.Priority) int {
	switch p {
	case types.PriorityUrgent:
		return weightUrgent
	case types.PriorityHigh:
		return weightHigh
	case types.PriorityNormal:
		return weightNormal
	default:
		return weightUnknown
	}
}

// PriorityRank orders priorities from most to least pressing.
func PriorityRank(p types.Priority) int {
	switch p {
	case types.PriorityUrgent:
		return 0
	case types.PriorityHigh:
		return 1
	case types.PriorityNormal:
		return 2
	default:
		return 3
	}
}

// DaysUntil returns the number of whole days, rounded up, from now until
// deadline. Past deadlines give zero or a negative count.
func DaysUntil(deadline, now time.Time) int {
	return int(math.Ceil(deadline.Sub(now).Hours() / 24))
}

func deadlineBonus(deadline *time.Time, now time.Time) int {
	if deadline == nil {
		return 0
	}

	days := DaysUntil(*deadline, now)
	switch {
	case days <= 0:
		return bonusOverdue
	case days <= 3:
		return bonusThreeDays
	case days <= 7:
		return bonusWeek
	case days <= 14:
		return bonusFortnight
	default:
		return 0
	}
}

// quarterCeil is ceil(0.25 * quantity) in integer arithmetic.
func quarterCeil(quantity int) int {
	if quantity <= 0 {
		return 0
	}
	return (quantity + 3) / 4
}

// TimeSensitive reports whether a need should surface in the
// time-sensitive view.
func TimeSensitive(need *types.Need, now time.Time) bool {
	if Score(need, now) >= TimeSensitiveScore {
		return true
	}

	if need.Deadline == nil {
		return need.Perishable
	}

	days := DaysUntil(*need.Deadline, now)
	if days <= 7 {
		return true
	}

	return need.Perishable && days <= 10
}
