package db

import (
	"context"
	"fmt"
	"time"

	"needsmatch/pkg/types"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	idleTimeout = 15 * time.Minute
	maxLifetime = 45 * time.Minute
	pingTimeout = 5 * time.Second
)

// Connect opens a pool against DATABASE_URL and checks it answers before
// handing it back.
func Connect(ctx context.Context, config *types.Config) (*pgxpool.Pool, error) {
	poolConfig, err := PoolConfig(config)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	return pool, nil
}

// PoolConfig parses the database url and layers the configured schema and
// pool size on top. A search_path given in the url itself wins over
// DATABASE_SCHEMA.
func PoolConfig(config *types.Config) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	params := poolConfig.ConnConfig.RuntimeParams
	if _, set := params["search_path"]; !set && config.DatabaseSchema != "" {
		params["search_path"] = config.DatabaseSchema
	}

	if config.DatabaseMaxConn > 0 {
		poolConfig.MaxConns = config.DatabaseMaxConn
	}
	poolConfig.MaxConnIdleTime = idleTimeout
	poolConfig.MaxConnLifetime = maxLifetime

	return poolConfig, nil
}
