// Package events decides volunteer signup status for capacity-limited
// events.
package events

import (
	"slices"

	"needsmatch/pkg/types"
)

// SignupStatus picks the status for a user signing up to an event that
// already has confirmed volunteers. A user who is already confirmed stays
// confirmed, so repeating a signup never bumps anyone to the waitlist.
func SignupStatus(current *types.EventSignup, confirmed, slots int) types.SignupStatus {
	if current != nil && current.Status == types.SignupStatusConfirmed {
		return types.SignupStatusConfirmed
	}

	if confirmed >= slots {
		return types.SignupStatusWaitlisted
	}

	return types.SignupStatusConfirmed
}

// NextInLine returns the waitlisted signup that signed up first, or nil.
func NextInLine(signups []*types.EventSignup) *types.EventSignup {
	var next *types.EventSignup
	for _, s := range signups {
		if s.Status != types.SignupStatusWaitlisted {
			continue
		}
		if next == nil || s.CreatedAt.Before(next.CreatedAt) {
			next = s
		}
	}
	return next
}

// Counts tallies confirmed and waitlisted signups.
func Counts(signups []*types.EventSignup) (confirmed, waitlisted int) {
	for _, s := range signups {
		switch s.Status {
		case types.SignupStatusConfirmed:
			confirmed++
		case types.SignupStatusWaitlisted:
			waitlisted++
		}
	}
	return confirmed, waitlisted
}

// Detail assembles the API view of an event with its signups ordered by
// status then signup time.
func Detail(event *types.Event, signups []*types.EventSignup) *types.EventDetail {
	ordered := slices.Clone(signups)
	slices.SortStableFunc(ordered, func(a, b *types.EventSignup) int {
		if c := statusRank(a.Status) - statusRank(b.Status); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	confirmed, waitlisted := Counts(ordered)
	return &types.EventDetail{
		Event:          event,
		ConfirmedCount: confirmed,
		WaitlistCount:  waitlisted,
		Signups:        ordered,
	}
}

func statusRank(s types.SignupStatus) int {
	switch s {
	case types.SignupStatusConfirmed:
		return 0
	case types.SignupStatusWaitlisted:
		return 1
	default:
		return 2
	}
}
