// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/todopad/todopad/internal/auth"
	"github.com/todopad/todopad/internal/auth/postgres"
	"github.com/todopad/todopad/internal/auth/sqlite"
	"github.com/todopad/todopad/internal/config"
	"github.com/todopad/todopad/internal/mail"
	"github.com/todopad/todopad/internal/store"
	"github.com/todopad/todopad/internal/xdg"
)

// openBackend opens the store selected by database.driver.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	dialect, err := store.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	switch dialect {
	case store.DialectPostgres:
		pool, err := store.OpenPool(ctx, store.PoolConfig{URL: cfg.Database.URL, MaxConns: cfg.Database.MaxConns}, logger)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Users:    postgres.NewUserRepository(pool),
			Sessions: postgres.NewSessionRepository(pool),
			Ping:     pool.Ping,
			Close:    pool.Close,
		}, nil
	default:
		if err := xdg.EnsureDir(filepath.Dir(cfg.Database.Path)); err != nil {
			return nil, err
		}
		db, err := store.OpenSQLite(ctx, cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		st := sqlite.NewStore(db)
		return &Backend{
			Users:    st.Users(),
			Sessions: st.Sessions(),
			Ping:     db.PingContext,
			Close: func() {
				if err := db.Close(); err != nil {
					logger.Warn("error closing sqlite database", "error", err)
				}
			},
		}, nil
	}
}

// newMigrator creates a migrator for the configured store.
func newMigrator(cfg *config.Config) (Migrator, error) {
	dialect, err := store.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	target := cfg.Database.URL
	if dialect == store.DialectSQLite {
		target = cfg.Database.Path
		if err := xdg.EnsureDir(filepath.Dir(target)); err != nil {
			return nil, err
		}
	}
	return store.NewMigrator(dialect, target)
}

// newMailer builds the mail hand-off for mail.driver.
func newMailer(cfg *config.Config, logger *slog.Logger) (auth.Mailer, MailCloser, error) {
	noop := func() error { return nil }

	if cfg.Mail.Driver == config.MailDriverLog {
		m := auth.NewLogMailer(logger)
		// Outside production the link is logged at debug level so flows can be finished by hand.
		if !cfg.IsProduction() && cfg.Mail.BaseURL != "" {
			links, err := mail.NewLinks(cfg.Mail.BaseURL, cfg.Reset.TTL)
			if err != nil {
				return nil, nil, err
			}
			m = m.WithLinks(links.Link)
		}
		return m, noop, nil
	}

	links, err := mail.NewLinks(cfg.Mail.BaseURL, cfg.Reset.TTL)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Mail.Driver {
	case config.MailDriverRabbitMQ:
		pub, err := mail.DialPublisher(cfg.Mail.AMQPURL, cfg.Mail.Queue, links, logger)
		if err != nil {
			return nil, nil, err
		}
		return pub, pub.Close, nil
	case config.MailDriverSMTP:
		sender, err := mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Mail.SMTP.Host,
			Port:     cfg.Mail.SMTP.Port,
			Username: cfg.Mail.SMTP.Username,
			Password: cfg.Mail.SMTP.Password,
			From:     cfg.Mail.SMTP.From,
		}, links, logger)
		if err != nil {
			return nil, nil, err
		}
		return sender, noop, nil
	default:
		return nil, nil, oops.Code("CONFIG_INVALID").
			With("key", "mail.driver").
			Errorf("unknown mail driver %q", cfg.Mail.Driver)
	}
}
