package urgency

import (
	"slices"
	"time"

	"needsmatch/pkg/types"
)

// Ranked pairs a need with its score so sorting does not rescore.
type Ranked struct {
	Need  *types.Need
	Score int
}

// Rank scores every need at now and orders them by the requested sort.
// Unknown sort keys fall back to urgency.
func Rank(needs []*types.Need, sort types.NeedSort, now time.Time) []Ranked {
	ranked := make([]Ranked, len(needs))
	for i, need := range needs {
		ranked[i] = Ranked{Need: need, Score: Score(need, now)}
	}

	slices.SortStableFunc(ranked, comparator(sort))
	return ranked
}

// ValidSort reports whether s names a supported ordering. The empty string
// is valid and means urgency.
func ValidSort(s types.NeedSort) bool {
	switch s {
	case "", types.NeedSortUrgency, types.NeedSortDeadline, types.NeedSortRequests,
		types.NeedSortPriority, types.NeedSortNewest:
		return true
	}
	return false
}

func comparator(sort types.NeedSort) func(a, b Ranked) int {
	switch sort {
	case types.NeedSortDeadline:
		return func(a, b Ranked) int {
			if c := compareDeadline(a.Need, b.Need); c != 0 {
				return c
			}
			return thenByScore(a, b)
		}
	case types.NeedSortRequests:
		return func(a, b Ranked) int {
			if c := b.Need.RequestCount - a.Need.RequestCount; c != 0 {
				return c
			}
			return thenByScore(a, b)
		}
	case types.NeedSortPriority:
		return func(a, b Ranked) int {
			if c := PriorityRank(a.Need.Priority) - PriorityRank(b.Need.Priority); c != 0 {
				return c
			}
			return thenByScore(a, b)
		}
	case types.NeedSortNewest:
		return func(a, b Ranked) int {
			if c := b.Need.CreatedAt.Compare(a.Need.CreatedAt); c != 0 {
				return c
			}
			return compareID(a.Need, b.Need)
		}
	default:
		return func(a, b Ranked) int {
			if c := b.Score - a.Score; c != 0 {
				return c
			}
			if c := compareDeadline(a.Need, b.Need); c != 0 {
				return c
			}
			return compareID(a.Need, b.Need)
		}
	}
}

func thenByScore(a, b Ranked) int {
	if c := b.Score - a.Score; c != 0 {
		return c
	}
	return compareID(a.Need, b.Need)
}

// compareDeadline puts earlier deadlines first and undated needs last.
func compareDeadline(a, b *types.Need) int {
	switch {
	case a.Deadline == nil && b.Deadline == nil:
		return 0
	case a.Deadline == nil:
		return 1
	case b.Deadline == nil:
		return -1
	default:
		return a.Deadline.Compare(*b.Deadline)
	}
}

func compareID(a, b *types.Need) int {
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return 0
	}
}
