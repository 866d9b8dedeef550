// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/todopad/todopad/internal/store"
)

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage the credential store schema. Without a subcommand,
applies all pending migrations.`,
		RunE: withMigrator(runMigrateUp),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  withMigrator(runMigrateUp),
	})
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all of them, dropping every table, unless --steps is set)",
		RunE:  withMigrator(runMigrateDown),
	}
	down.Flags().Int("steps", 0, "number of migrations to roll back (0 = all)")
	cmd.AddCommand(down)
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE:  withMigrator(runMigrateStatus),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the migration version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return runMigrateForce(cmd, m, version)
		}),
	})

	return cmd
}

type migratorFunc func(cmd *cobra.Command, m Migrator, args []string) error

// withMigrator loads config, opens a migrator and closes it after fn.
func withMigrator(fn migratorFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		m, err := newMigrator(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return fn(cmd, m, args)
	}
}

func runMigrateUp(cmd *cobra.Command, m Migrator, _ []string) error {
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		cmd.Println("Database is up to date")
		return nil
	}

	cmd.Printf("Applying %d migration(s)...\n", len(pending))
	if err := m.Up(); err != nil {
		return err
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, m Migrator, _ []string) error {
	steps, err := cmd.Flags().GetInt("steps")
	if err != nil {
		steps = 0
	}
	if steps < 0 {
		return oops.Code("INVALID_STEPS").With("steps", steps).Errorf("steps must be non-negative, got %d", steps)
	}
	if steps > 0 {
		cmd.Printf("Rolling back %d migration(s)...\n", steps)
		if err := m.Steps(-steps); err != nil {
			return err
		}
		cmd.Println("Rollback completed")
		return nil
	}

	cmd.Println("Rolling back all migrations...")
	if err := m.Down(); err != nil {
		return err
	}
	cmd.Println("Rollback completed")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, m Migrator, _ []string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	applied, err := m.AppliedMigrations()
	if err != nil {
		return err
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}

	cmd.Printf("Dialect: %s\n", m.Dialect())
	state := ""
	if dirty {
		state = " (dirty: fix the schema by hand, then run migrate force)"
	}
	cmd.Printf("Current version: %d%s\n", version, state)
	cmd.Printf("Applied: %s\n", formatVersions(m.Dialect(), applied))
	cmd.Printf("Pending: %s\n", formatVersions(m.Dialect(), pending))
	return nil
}

func runMigrateForce(cmd *cobra.Command, m Migrator, version int) error {
	if err := m.Force(version); err != nil {
		return err
	}
	cmd.Printf("Migration version forced to %d\n", version)
	return nil
}

func formatVersions(dialect store.Dialect, versions []uint) string {
	if len(versions) == 0 {
		return "none"
	}
	names := make([]string, 0, len(versions))
	for _, v := range versions {
		name, err := store.MigrationName(dialect, v)
		if err != nil || name == "" {
			name = fmt.Sprintf("%06d", v)
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// parseForceVersion reads the leading integer of s.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer, got %q", s)
	}
	return version, nil
}
