package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"needsmatch/internal/store"
	"needsmatch/internal/utils"
	"needsmatch/pkg/types"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TitlePrefix marks generated needs so a reset only removes those.
const TitlePrefix = "[seed] "

type weightedPriority struct {
	Priority types.Priority
	Weight   int
}

var weightedPriorities = []weightedPriority{
	{Priority: types.PriorityUrgent, Weight: 20},
	{Priority: types.PriorityHigh, Weight: 30},
	{Priority: types.PriorityNormal, Weight: 50},
}

var bundleTags = []string{"winter-drive", "back-to-school", "new-arrivals"}

func SeedNeeds(
	ctx context.Context,
	pool *pgxpool.Pool,
	needsRepo *store.NeedRepository,
	managerID string,
	count int,
	reset bool,
	rng *rand.Rand,
) ([]*types.Need, error) {
	if count <= 0 {
		logrus.Info("skipping needs seed because count <= 0")
		return nil, nil
	}

	if reset {
		result, err := pool.Exec(ctx, `DELETE FROM needs WHERE title LIKE $1`, TitlePrefix+"%")
		if err != nil {
			return nil, fmt.Errorf("failed to reset seeded needs: %w", err)
		}
		logrus.WithField("deleted", result.RowsAffected()).Info("reset seeded needs")
	}

	now := time.Now()
	needs := make([]*types.Need, 0, count)
	for i := 0; i < count; i++ {
		need := FakeNeed(rng, managerID, now)
		if err := needsRepo.CreateNeed(ctx, need); err != nil {
			return nil, fmt.Errorf("failed to create seeded need %d: %w", i+1, err)
		}
		needs = append(needs, need)
	}

	logrus.WithField("created", len(needs)).Info("needs seeded")
	return needs, nil
}

// FakeNeed builds a plausible need for one of the seed categories. About
// two thirds get a deadline between yesterday and six weeks out.
func FakeNeed(rng *rand.Rand, managerID string, now time.Time) *types.Need {
	c := categories[rng.Intn(len(categories))]
	item := c.Items[rng.Intn(len(c.Items))]

	cost := c.MinCost
	if c.MaxCost > c.MinCost {
		cost += rng.Intn(c.MaxCost - c.MinCost + 1)
	}

	need := &types.Need{
		ManagerID:       managerID,
		Title:           TitlePrefix + item,
		Description:     fmt.Sprintf("%s requested by a local %s.", item, c.OrgType),
		UnitCost:        decimal.NewFromInt(int64(cost)),
		Quantity:        rng.Intn(48) + 2,
		Priority:        pickWeightedPriority(rng),
		Category:        c.Slug,
		OrgType:         c.OrgType,
		Perishable:      c.Perishable && rng.Intn(100) < 70,
		ServiceRequired: c.ServiceLike,
	}

	if rng.Intn(3) > 0 {
		hours := rng.Intn(43*24) - 24
		need.Deadline = utils.TimePtr(now.Add(time.Duration(hours) * time.Hour).Truncate(time.Hour))
	}

	if rng.Intn(100) < 25 {
		need.BundleTag = utils.StringPtr(bundleTags[rng.Intn(len(bundleTags))])
	}

	return need
}

func pickWeightedPriority(rng *rand.Rand) types.Priority {
	total := 0
	for _, item := range weightedPriorities {
		total += item.Weight
	}

	roll := rng.Intn(total)
	running := 0
	for _, item := range weightedPriorities {
		running += item.Weight
		if roll < running {
			return item.Priority
		}
	}

	return types.PriorityNormal
}
