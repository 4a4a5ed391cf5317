package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"needsmatch/internal/store"
	"needsmatch/pkg/types"

	"github.com/sirupsen/logrus"
)

var eventLocations = []string{"Main hall", "Warehouse dock B", "Eastside community center", "Riverside park pavilion"}

// SeedEvents schedules a volunteer event for every seeded need that requires
// service and signs a few helpers up, enough to fill some events and put
// someone on the waitlist.
func SeedEvents(
	ctx context.Context,
	eventRepo *store.EventRepository,
	managerID string,
	needs []*types.Need,
	helpers []*types.User,
	rng *rand.Rand,
) error {
	created := 0
	for _, need := range needs {
		if !need.ServiceRequired {
			continue
		}

		event := FakeEvent(rng, managerID, need, time.Now())
		if err := eventRepo.CreateEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to create event for need %s: %w", need.ID, err)
		}

		for _, helper := range helpers {
			if rng.Intn(2) == 0 {
				continue
			}
			if _, err := eventRepo.Signup(ctx, event.ID, helper.ID); err != nil {
				return fmt.Errorf("failed to sign up %s for event %s: %w", helper.Username, event.ID, err)
			}
		}

		created++
	}

	logrus.WithField("created", created).Info("events seeded")
	return nil
}

func FakeEvent(rng *rand.Rand, managerID string, need *types.Need, now time.Time) *types.Event {
	startsAt := now.Add(time.Duration(rng.Intn(14)+1) * 24 * time.Hour).Truncate(time.Hour)
	endsAt := startsAt.Add(time.Duration(rng.Intn(3)+2) * time.Hour)

	return &types.Event{
		NeedID:         need.ID,
		Title:          need.Title,
		Description:    need.Description,
		Location:       eventLocations[rng.Intn(len(eventLocations))],
		StartsAt:       startsAt,
		EndsAt:         &endsAt,
		VolunteerSlots: rng.Intn(4) + 1,
		CreatedBy:      managerID,
	}
}
