// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/todopad/todopad/internal/auth"
	"github.com/todopad/todopad/internal/config"
)

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions",
		Long: `Delete every expired session once and exit. Expired sessions are
already rejected when presented; this only reclaims their rows.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runSweep(cmd.Context(), cmd, cfg, openBackend)
		},
	}
}

func runSweep(ctx context.Context, cmd *cobra.Command, cfg *config.Config, open func(context.Context, *config.Config, *slog.Logger) (*Backend, error)) error {
	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	backend, err := open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	sessions, err := auth.NewSessionManagerWithLogger(backend.Sessions, auth.NewRandomTokenGenerator(),
		auth.SessionConfig{TTL: cfg.Session.TTL}, logger)
	if err != nil {
		return err
	}

	n, err := sessions.SweepExpired(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Deleted %d expired session(s)\n", n)
	return nil
}
