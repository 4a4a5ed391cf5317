package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"needsmatch/internal/db"
	"needsmatch/internal/seed"
	"needsmatch/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Seed the database with demo users, needs and events",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "needs",
			Aliases: []string{"n"},
			Usage:   "Number of needs to generate",
			Value:   25,
		},
		&cli.BoolFlag{
			Name:  "reset",
			Usage: "Delete previously seeded needs first",
		},
		&cli.Int64Flag{
			Name:  "rand-seed",
			Usage: "Seed for the generator, 0 picks one from the clock",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		logrus.Info("connected to database")

		source := c.Int64("rand-seed")
		if source == 0 {
			source = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(source))

		manager, helpers, err := seed.SeedUsers(ctx, store.NewUserRepository(pool), cfg.ManagerUsername)
		if err != nil {
			return err
		}

		needs, err := seed.SeedNeeds(ctx, pool, store.NewNeedRepository(pool), manager.ID, c.Int("needs"), c.Bool("reset"), rng)
		if err != nil {
			return err
		}

		if err := seed.SeedEvents(ctx, store.NewEventRepository(pool), manager.ID, needs, helpers, rng); err != nil {
			return err
		}

		logrus.WithField("rand_seed", source).Info("seed complete")
		return nil
	},
}
