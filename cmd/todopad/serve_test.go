// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todopad/todopad/internal/auth"
	"github.com/todopad/todopad/internal/config"
	"github.com/todopad/todopad/internal/observability"
	"github.com/todopad/todopad/pkg/errutil"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeObservabilityServer struct {
	started bool
	stopped bool
	metrics *observability.Metrics
}

func (s *fakeObservabilityServer) Start() (<-chan error, error) {
	s.started = true
	return make(chan error), nil
}

func (s *fakeObservabilityServer) Stop(context.Context) error {
	s.stopped = true
	return nil
}

func (s *fakeObservabilityServer) Addr() string                    { return "127.0.0.1:0" }
func (s *fakeObservabilityServer) Metrics() *observability.Metrics { return s.metrics }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Env:      config.EnvDevelopment,
		HTTP:     config.HTTPConfig{Addr: "127.0.0.1:0", RequestTimeout: 5 * time.Second},
		Metrics:  config.MetricsConfig{Addr: "127.0.0.1:0"},
		Database: config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "todopad.db"), AutoMigrate: true},
		Session:  config.SessionConfig{CookieName: "todopad_session", TTL: time.Hour, SameSite: "lax"},
		Reset:    config.ResetConfig{TTL: time.Hour},
		Hash:     config.HashConfig{Memory: 1024, Iterations: 1, Parallelism: 1},
		Mail:     config.MailConfig{Driver: config.MailDriverLog},
		Log:      config.LogConfig{Format: "text", Level: "error"},
	}
}

// startServe runs the server in the background and returns its address and a stop func.
func startServe(t *testing.T, cfg *config.Config, deps *ServeDeps) (string, func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	cmd := &cobra.Command{}
	out := &syncBuffer{}
	cmd.SetOut(out)

	done := make(chan error, 1)
	go func() { done <- runServeWithDeps(ctx, cfg, cmd, deps) }()

	var addr string
	require.Eventually(t, func() bool {
		_, after, found := strings.Cut(out.String(), "todopad listening on ")
		addr = strings.TrimSpace(after)
		return found && addr != ""
	}, 5*time.Second, 10*time.Millisecond)

	stop := func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("serve did not shut down")
			return nil
		}
	}
	t.Cleanup(func() { cancel() })
	return addr, stop
}

func signUpOverHTTP(t *testing.T, addr string) *http.Response {
	t.Helper()
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	form := url.Values{"email": {"a@x.com"}, "password": {"longpass1"}, "confirmPassword": {"longpass1"}}
	resp, err := client.PostForm("http://"+addr+"/signup", form)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp
}

func TestRunServe_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	obs := &fakeObservabilityServer{}

	addr, stop := startServe(t, cfg, &ServeDeps{
		ObservabilityServerFactory: func(string, observability.ReadinessChecker) ObservabilityServer { return obs },
	})

	resp := signUpOverHTTP(t, addr)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/todos", resp.Header.Get("Location"))

	require.NoError(t, stop())
	assert.True(t, obs.started)
	assert.True(t, obs.stopped)
}

func TestRunServe_CountsMailFailures(t *testing.T) {
	cfg := testConfig(t)
	obs := &fakeObservabilityServer{metrics: observability.NewMetrics(prometheus.NewRegistry())}

	addr, stop := startServe(t, cfg, &ServeDeps{
		ObservabilityServerFactory: func(string, observability.ReadinessChecker) ObservabilityServer { return obs },
		MailerFactory: func(*config.Config, *slog.Logger) (auth.Mailer, MailCloser, error) {
			return failingMailer{}, func() error { return nil }, nil
		},
	})

	resp := signUpOverHTTP(t, addr)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode, "a failed hand-off does not fail sign-up")
	require.NoError(t, stop())

	assert.Equal(t, 1.0, testutil.ToFloat64(obs.metrics.MailHandoffFail.WithLabelValues(string(auth.PurposeVerifyEmail))))
}

type failingMailer struct{}

func (failingMailer) Send(context.Context, auth.Delivery) error {
	return oops.Code("MAIL_SEND_FAILED").Errorf("dial smtp: connection refused")
}

func TestRunServe_BackendFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.AutoMigrate = false

	err := runServeWithDeps(context.Background(), cfg, nil, &ServeDeps{
		BackendFactory: func(context.Context, *config.Config, *slog.Logger) (*Backend, error) {
			return nil, errors.New("connection refused")
		},
	})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
}

func TestRunServe_AutoMigrateFailure(t *testing.T) {
	cfg := testConfig(t)
	m := &fakeMigrator{upErr: errors.New("dirty database")}

	err := runServeWithDeps(context.Background(), cfg, nil, &ServeDeps{
		MigratorFactory: func(*config.Config) (Migrator, error) { return m, nil },
	})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTO_MIGRATE_FAILED")
	assert.True(t, m.closeCalled)
}

func TestRunServe_MailerFailure(t *testing.T) {
	cfg := testConfig(t)

	err := runServeWithDeps(context.Background(), cfg, nil, &ServeDeps{
		MailerFactory: func(*config.Config, *slog.Logger) (auth.Mailer, MailCloser, error) {
			return nil, nil, errors.New("amqp unreachable")
		},
	})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MAIL_INIT_FAILED")
}

func TestNewMailer(t *testing.T) {
	t.Run("log driver", func(t *testing.T) {
		cfg := testConfig(t)
		m, closer, err := newMailer(cfg, slog.New(slog.DiscardHandler))
		require.NoError(t, err)
		assert.IsType(t, &auth.LogMailer{}, m)
		assert.NoError(t, closer())
	})

	t.Run("log driver logs links outside production", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Mail.BaseURL = "http://127.0.0.1:8080"
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		m, _, err := newMailer(cfg, logger)
		require.NoError(t, err)
		require.NoError(t, m.Send(context.Background(), auth.Delivery{Recipient: "a@x.com", Token: "tok123", Purpose: auth.PurposeVerifyEmail}))
		assert.Contains(t, buf.String(), "http://127.0.0.1:8080/verify?token=tok123")
	})

	t.Run("log driver keeps tokens out of production logs", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Env = config.EnvProduction
		cfg.Mail.BaseURL = "https://todopad.example"
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		m, _, err := newMailer(cfg, logger)
		require.NoError(t, err)
		require.NoError(t, m.Send(context.Background(), auth.Delivery{Recipient: "a@x.com", Token: "tok123", Purpose: auth.PurposeVerifyEmail}))
		assert.NotContains(t, buf.String(), "tok123")
	})

	t.Run("smtp driver", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Mail = config.MailConfig{Driver: config.MailDriverSMTP, BaseURL: "https://todopad.example",
			SMTP: config.SMTPConfig{Host: "smtp.example", Port: 587}}
		m, _, err := newMailer(cfg, slog.New(slog.DiscardHandler))
		require.NoError(t, err)
		assert.NotNil(t, m)
	})

	t.Run("bad base url", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Mail = config.MailConfig{Driver: config.MailDriverSMTP, BaseURL: "/relative",
			SMTP: config.SMTPConfig{Host: "smtp.example"}}
		_, _, err := newMailer(cfg, slog.New(slog.DiscardHandler))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MAIL_INVALID_BASE_URL")
	})
}

func TestReadinessFor(t *testing.T) {
	healthy := readinessFor(&Backend{Ping: func(context.Context) error { return nil }})
	assert.True(t, healthy())

	down := readinessFor(&Backend{Ping: func(context.Context) error { return errors.New("down") }})
	assert.False(t, down())
}

func TestRunSweep(t *testing.T) {
	cfg := testConfig(t)
	m, err := newMigrator(cfg)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	ctx := context.Background()
	backend, err := openBackend(ctx, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer backend.Close()

	user, err := auth.NewUser("a@x.com", "digest")
	require.NoError(t, err)
	require.NoError(t, backend.Users.Create(ctx, user))

	past := time.Now().Add(-time.Hour)
	expired, err := auth.NewSession("expired-session-id", user.ID, past.Add(-time.Hour), past)
	require.NoError(t, err)
	require.NoError(t, backend.Sessions.Create(ctx, expired))

	cmd, out := testCmd()
	require.NoError(t, runSweep(ctx, cmd, cfg, openBackend))
	assert.Contains(t, out.String(), "Deleted 1 expired session(s)")
}
