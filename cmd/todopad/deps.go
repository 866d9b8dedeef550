// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/todopad/todopad/internal/auth"
	"github.com/todopad/todopad/internal/config"
	"github.com/todopad/todopad/internal/observability"
	"github.com/todopad/todopad/internal/store"
)

// Backend is an opened credential store.
type Backend struct {
	Users    auth.UserRepository
	Sessions auth.SessionRepository
	// Ping reports whether the store is reachable.
	Ping  func(ctx context.Context) error
	Close func()
}

// Migrator wraps the methods used by the migrate command and auto-migration.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Dialect() store.Dialect
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// MailCloser releases a mailer's connections.
type MailCloser func() error

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// BackendFactory opens the credential store.
	// Default: openBackend
	BackendFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error)

	// MigratorFactory creates a migrator for auto-migration.
	// Default: newMigrator
	MigratorFactory func(cfg *config.Config) (Migrator, error)

	// MailerFactory builds the delivery hand-off.
	// Default: newMailer
	MailerFactory func(cfg *config.Config, logger *slog.Logger) (auth.Mailer, MailCloser, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.BackendFactory == nil {
		out.BackendFactory = openBackend
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = newMigrator
	}
	if out.MailerFactory == nil {
		out.MailerFactory = newMailer
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	return &out
}
