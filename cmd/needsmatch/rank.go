package main

import (
	"context"
	"fmt"
	"time"

	"needsmatch/internal/db"
	"needsmatch/internal/store"
	"needsmatch/internal/urgency"
	"needsmatch/pkg/types"

	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v2"
)

type rankedRow struct {
	ID        string
	Title     string
	Remaining int
	Deadline  *time.Time
	Score     urgency.Breakdown
}

var rankCommand = &cli.Command{
	Name:  "rank",
	Usage: "Print needs in ranked order with their urgency breakdown",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "sort",
			Usage: "urgency, deadline, requests, priority or newest",
			Value: string(types.NeedSortUrgency),
		},
		&cli.StringFlag{
			Name:  "category",
			Usage: "Only rank needs in this category",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Number of needs to print",
			Value: 10,
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "Disable colored output",
		},
	},
	Action: func(c *cli.Context) error {
		sort := types.NeedSort(c.String("sort"))
		if !urgency.ValidSort(sort) {
			return fmt.Errorf("unknown sort %q", sort)
		}

		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		now := time.Now()
		needs, err := store.NewNeedRepository(pool).Needs(ctx, types.NeedFilter{Category: c.String("category")}, now)
		if err != nil {
			return err
		}

		ranked := urgency.Rank(needs, sort, now)
		if limit := c.Int("limit"); limit > 0 && len(ranked) > limit {
			ranked = ranked[:limit]
		}

		printer := pp.New()
		printer.SetColoringEnabled(!c.Bool("no-color"))

		for i, r := range ranked {
			fmt.Printf("#%d\n", i+1)
			printer.Println(rankedRow{
				ID:        r.Need.ID,
				Title:     r.Need.Title,
				Remaining: r.Need.Remaining(),
				Deadline:  r.Need.Deadline,
				Score:     urgency.Explain(r.Need, now),
			})
		}

		return nil
	},
}
