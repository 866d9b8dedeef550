// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/todopad/todopad/internal/auth"
	"github.com/todopad/todopad/internal/config"
	"github.com/todopad/todopad/internal/mail"
	"github.com/todopad/todopad/internal/observability"
	"github.com/todopad/todopad/internal/web"
	"github.com/todopad/todopad/pkg/errutil"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server for the auth flows, plus the metrics and
health endpoints when metrics.addr is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	cmd.Flags().String("http-addr", "127.0.0.1:8080", "HTTP listen address")
	cmd.Flags().String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("mail-driver", config.MailDriverLog, "mail hand-off (log, rabbitmq or smtp)")

	return cmd
}

// runServeWithDeps runs the server until ctx is cancelled or a signal arrives.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}

	if cfg.Database.AutoMigrate {
		if err := autoMigrate(cfg, deps, logger); err != nil {
			return err
		}
	}

	backend, err := deps.BackendFactory(ctx, cfg, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("driver", cfg.Database.Driver).Wrap(err)
	}
	defer backend.Close()
	logger.Info("credential store ready", "driver", cfg.Database.Driver)

	mailer, closeMailer, err := deps.MailerFactory(cfg, logger)
	if err != nil {
		return oops.Code("MAIL_INIT_FAILED").With("driver", cfg.Mail.Driver).Wrap(err)
	}
	defer func() {
		if err := closeMailer(); err != nil {
			logger.Warn("error closing mailer", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, readinessFor(backend))
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("METRICS_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	sessions, handler, err := buildHandler(cfg, backend, mail.Instrument(mailer, metrics), metrics, logger)
	if err != nil {
		return err
	}

	if cfg.Session.SweepInterval > 0 {
		go runSweeper(ctx, sessions, cfg.Session.SweepInterval, metrics, logger)
	}

	listener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpErrChan := make(chan error, 1)
	go func() {
		defer close(httpErrChan)
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			httpErrChan <- serveErr
		}
	}()

	if cmd != nil {
		cmd.Println("todopad listening on " + listener.Addr().String())
	}
	logger.Info("http server listening", "addr", listener.Addr().String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-httpErrChan:
		runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
	cancel()

	logger.Info("shutdown complete")
	return runErr
}

// buildHandler wires the auth services into the HTTP handler.
func buildHandler(cfg *config.Config, backend *Backend, mailer auth.Mailer, metrics *observability.Metrics, logger *slog.Logger) (*auth.SessionManager, http.Handler, error) {
	sameSite, err := cfg.CookieSameSite()
	if err != nil {
		return nil, nil, err
	}

	hasher, err := auth.NewArgon2idHasherWithParams(auth.Argon2Params{
		Memory:      cfg.Hash.Memory,
		Iterations:  cfg.Hash.Iterations,
		Parallelism: cfg.Hash.Parallelism,
	})
	if err != nil {
		return nil, nil, err
	}
	tokens := auth.NewRandomTokenGenerator()

	sessions, err := auth.NewSessionManagerWithLogger(backend.Sessions, tokens, auth.SessionConfig{
		TTL: cfg.Session.TTL,
		Cookie: auth.CookieConfig{
			Name:     cfg.Session.CookieName,
			Secure:   cfg.IsProduction(),
			SameSite: sameSite,
		},
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	svc, err := auth.NewServiceWithLogger(backend.Users, sessions, hasher, tokens, mailer, logger)
	if err != nil {
		return nil, nil, err
	}
	resets, err := auth.NewPasswordResetServiceWithLogger(backend.Users, sessions, hasher, tokens, mailer,
		auth.ResetConfig{TTL: cfg.Reset.TTL}, logger)
	if err != nil {
		return nil, nil, err
	}
	verification, err := auth.NewVerificationServiceWithLogger(backend.Users, tokens, mailer, logger)
	if err != nil {
		return nil, nil, err
	}

	handler, err := web.NewHandler(web.HandlerConfig{
		Auth:           svc,
		Resets:         resets,
		Verification:   verification,
		Sessions:       sessions,
		Metrics:        metrics,
		Logger:         logger,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return sessions, handler.Routes(), nil
}

func autoMigrate(cfg *config.Config, deps *ServeDeps, logger *slog.Logger) error {
	migrator, err := deps.MigratorFactory(cfg)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Warn("error closing migrator", "error", err)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").Wrap(err)
	}
	logger.Info("database migrations applied", "dialect", string(migrator.Dialect()))
	return nil
}

// readinessFor reports ready while the store answers a ping.
func readinessFor(backend *Backend) observability.ReadinessChecker {
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return backend.Ping(ctx) == nil
	}
}

// runSweeper deletes expired sessions every interval until ctx is done.
func runSweeper(ctx context.Context, sessions *auth.SessionManager, interval time.Duration, metrics *observability.Metrics, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.SweepExpired(ctx)
			if err != nil {
				errutil.LogErrorContext(ctx, logger, "session sweep failed", err)
				continue
			}
			metrics.RecordSwept(n)
			if n > 0 {
				logger.Debug("expired sessions swept", "count", n)
			}
		}
	}
}

// monitorServerErrors cancels ctx when a background server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server error", "server", name, "error", err)
			cancel()
		}
	}
}
