// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

// Package store opens database connections and manages schema migrations.
package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	// Register the modernc sqlite driver with database/sql.
	_ "modernc.org/sqlite"
)

// Connection defaults.
const (
	DefaultConnectAttempts = 5
	DefaultConnectBackoff  = 250 * time.Millisecond
)

// PoolConfig configures OpenPool.
type PoolConfig struct {
	URL      string
	MaxConns int32
	// ConnectAttempts bounds the startup ping retries.
	ConnectAttempts uint64
	// ConnectBackoff is the first retry delay; it doubles on every attempt.
	ConnectBackoff time.Duration
}

// OpenPool connects to PostgreSQL and pings until the server answers or the
// retry budget runs out. Startup often races the database container.
func OpenPool(ctx context.Context, cfg PoolConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := pingWithRetry(ctx, cfg.ConnectAttempts, cfg.ConnectBackoff, logger, pool.Ping); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// OpenSQLite opens a SQLite database file with foreign keys enforced.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, oops.Code("DB_CONFIG_INVALID").Errorf("sqlite path is required")
	}
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("path", path).Wrap(err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // ping error takes precedence
		return nil, oops.Code("DB_CONNECT_FAILED").With("path", path).Wrap(err)
	}
	return db, nil
}

func pingWithRetry(ctx context.Context, attempts uint64, base time.Duration, logger *slog.Logger, ping func(context.Context) error) error {
	if attempts == 0 {
		attempts = DefaultConnectAttempts
	}
	if base <= 0 {
		base = DefaultConnectBackoff
	}
	backoff := retry.WithMaxRetries(attempts-1, retry.NewExponential(base))

	var tries int
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		tries++
		if err := ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not ready", "attempt", tries, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping").
			With("attempts", tries).
			Wrap(err)
	}
	return nil
}
