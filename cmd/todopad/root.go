// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/todopad/todopad/internal/config"
	"github.com/todopad/todopad/internal/logging"
)

const serviceName = "todopad"

// NewRootCmd creates the root command for the todopad CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todopad",
		Short: "todopad - accounts and sessions for the todo app",
		Long: `todopad serves sign-up, sign-in, sign-out, password reset and
email verification over HTTP, backed by PostgreSQL or SQLite.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file path (default: XDG_CONFIG_HOME/todopad/config.yaml)")
	flags.String("env", config.EnvDevelopment, "deployment environment (development or production)")
	flags.String("database-driver", "sqlite", "credential store (postgres or sqlite)")
	flags.String("database-url", "", "PostgreSQL connection string (default: DATABASE_URL)")
	flags.String("database-path", "", "SQLite database file (default: XDG_DATA_HOME/todopad/todopad.db)")
	flags.String("log-format", "json", "log format (json or text)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSweepCmd())

	return cmd
}

// loadConfig reads configuration using the command's flags as the top layer.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path = ""
	}
	return config.Load(config.LoadOptions{Path: path, Flags: cmd.Flags()})
}

// setupLogging installs the default logger described by cfg.
func setupLogging(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.SetDefault(serviceName, version, logging.Options{Format: cfg.Log.Format, Level: level}), nil
}
