// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/todopad/todopad/internal/auth/authtest"
	"github.com/todopad/todopad/internal/auth/postgres"
	"github.com/todopad/todopad/internal/store"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("todopad_test"),
		tcpostgres.WithUsername("todopad"),
		tcpostgres.WithPassword("todopad"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start postgres container: %v\n", err)
		return 1
	}
	defer func() { _ = container.Terminate(ctx) }()

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "connection string: %v\n", err)
		return 1
	}

	migrator, err := store.NewMigrator(store.DialectPostgres, connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create migrator: %v\n", err)
		return 1
	}
	if err := migrator.Up(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		return 1
	}
	_ = migrator.Close()

	testPool, err = store.OpenPool(ctx, store.PoolConfig{URL: connStr}, slog.New(slog.DiscardHandler))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open pool: %v\n", err)
		return 1
	}
	defer testPool.Close()

	return m.Run()
}

func TestRepositories_Contract(t *testing.T) {
	authtest.RunRepositoryContract(t, func(t *testing.T) authtest.Repositories {
		t.Helper()
		_, err := testPool.Exec(context.Background(), `TRUNCATE users, sessions`)
		require.NoError(t, err)
		return authtest.Repositories{
			Users:    postgres.NewUserRepository(testPool),
			Sessions: postgres.NewSessionRepository(testPool),
		}
	})
}
