package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"needsmatch/internal/db"
	"needsmatch/internal/payments"
	"needsmatch/internal/server"
	"needsmatch/internal/store"

	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Start the HTTP API",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "migrate",
			Usage: "Apply the schema before serving",
		},
	},
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := loadConfig(cCtx)
	if err != nil {
		return err
	}

	logger := newLogger(config)

	pool, err := db.Connect(ctx, config)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cCtx.Bool("migrate") {
		if err := db.Migrate(ctx, pool, config.DatabaseSchema); err != nil {
			return err
		}
		logger.WithField("schema", config.DatabaseSchema).Info("schema applied")
	}

	charger := payments.New(config)
	if _, ok := charger.(payments.Noop); ok {
		logger.Info("STRIPE_SECRET_KEY not set, checkouts will not be charged")
	}

	srv, err := server.New(
		config,
		logger,
		store.NewNeedRepository(pool),
		store.NewUserRepository(pool),
		store.NewBasketRepository(pool),
		store.NewFundingRepository(pool),
		store.NewEventRepository(pool),
		charger,
	)
	if err != nil {
		return err
	}

	go func() {
		logger.WithField("port", config.ServerPort).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}
