// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

// Package config loads todopad configuration.
//
// Sources are layered, later ones winning: built-in defaults, a YAML file,
// TODOPAD_* environment variables and command-line flags. Environment keys
// use a double underscore between sections, e.g. TODOPAD_HTTP__ADDR or
// TODOPAD_SESSION__COOKIE_NAME.
package config

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/todopad/todopad/internal/xdg"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TODOPAD_"

// Deployment environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the complete todopad configuration.
type Config struct {
	Env      string         `koanf:"env"`
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Session  SessionConfig  `koanf:"session"`
	Reset    ResetConfig    `koanf:"reset"`
	Hash     HashConfig     `koanf:"hash"`
	Mail     MailConfig     `koanf:"mail"`
	Log      LogConfig      `koanf:"log"`
}

// HTTPConfig configures the web listener.
type HTTPConfig struct {
	Addr           string        `koanf:"addr"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// MetricsConfig configures the metrics and health listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig selects and locates the credential store.
type DatabaseConfig struct {
	Driver   string `koanf:"driver"`
	URL      string `koanf:"url"`
	Path     string `koanf:"path"`
	MaxConns int32  `koanf:"max_conns"`
	// AutoMigrate applies pending migrations when serve starts.
	AutoMigrate bool `koanf:"auto_migrate"`
}

// SessionConfig configures sessions and their cookie.
type SessionConfig struct {
	CookieName string        `koanf:"cookie_name"`
	TTL        time.Duration `koanf:"ttl"`
	SameSite   string        `koanf:"same_site"`
	// SweepInterval is how often serve deletes expired sessions. Zero disables it.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// ResetConfig configures password reset tokens.
type ResetConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

// HashConfig tunes argon2id.
type HashConfig struct {
	Memory      uint32 `koanf:"memory"`
	Iterations  uint32 `koanf:"iterations"`
	Parallelism uint8  `koanf:"parallelism"`
}

// Mail drivers.
const (
	MailDriverLog      = "log"
	MailDriverRabbitMQ = "rabbitmq"
	MailDriverSMTP     = "smtp"
)

// MailConfig selects how verification and reset links are handed off.
type MailConfig struct {
	Driver  string     `koanf:"driver"`
	BaseURL string     `koanf:"base_url"`
	AMQPURL string     `koanf:"amqp_url"`
	Queue   string     `koanf:"queue"`
	SMTP    SMTPConfig `koanf:"smtp"`
}

// SMTPConfig configures direct SMTP delivery.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

var defaults = map[string]any{
	"env":                    EnvDevelopment,
	"http.addr":              "127.0.0.1:8080",
	"http.request_timeout":   15 * time.Second,
	"metrics.addr":           "127.0.0.1:9100",
	"database.driver":        "sqlite",
	"database.max_conns":     int32(10),
	"database.auto_migrate":  true,
	"session.cookie_name":    "todopad_session",
	"session.ttl":            30 * 24 * time.Hour,
	"session.same_site":      "lax",
	"session.sweep_interval": time.Hour,
	"reset.ttl":              time.Hour,
	"hash.memory":            uint32(64 * 1024),
	"hash.iterations":        uint32(1),
	"hash.parallelism":       uint8(4),
	"mail.driver":            MailDriverLog,
	"mail.base_url":          "http://127.0.0.1:8080",
	"mail.queue":             "todopad.mail",
	"mail.smtp.port":         587,
	"log.format":             "json",
	"log.level":              "info",
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"env":             "env",
	"http-addr":       "http.addr",
	"metrics-addr":    "metrics.addr",
	"database-driver": "database.driver",
	"database-url":    "database.url",
	"database-path":   "database.path",
	"mail-driver":     "mail.driver",
	"log-format":      "log.format",
	"log-level":       "log.level",
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// Path is an explicit config file. It must exist when set.
	// When empty, the XDG config file is read if present.
	Path string
	// Flags are applied last. Unset flags do not override other sources.
	Flags *pflag.FlagSet
}

// Load builds a Config from all sources and validates it.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if err := loadFile(k, opts.Path); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithValue(opts.Flags, ".", k, flagKey), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = xdg.DatabaseFile()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	explicit := path != ""
	if !explicit {
		path = xdg.ConfigFile()
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// envKey turns TODOPAD_SESSION__COOKIE_NAME into session.cookie_name.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func flagKey(name, value string) (string, any) {
	key, ok := flagKeys[name]
	if !ok {
		return "", nil
	}
	return key, value
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	fail := func(key, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
	}

	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fail("env", "env must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}
	if c.HTTP.Addr == "" {
		return fail("http.addr", "http.addr is required")
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fail("database.url", "database.url or DATABASE_URL is required for postgres")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fail("database.path", "database.path is required for sqlite")
		}
	default:
		return fail("database.driver", "database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Session.TTL <= 0 {
		return fail("session.ttl", "session.ttl must be positive")
	}
	if _, err := c.CookieSameSite(); err != nil {
		return err
	}
	if c.Reset.TTL <= 0 {
		return fail("reset.ttl", "reset.ttl must be positive")
	}
	if c.Hash.Memory == 0 || c.Hash.Iterations == 0 || c.Hash.Parallelism == 0 {
		return fail("hash", "hash.memory, hash.iterations and hash.parallelism must be positive")
	}
	switch c.Mail.Driver {
	case MailDriverLog:
	case MailDriverRabbitMQ:
		if c.Mail.AMQPURL == "" {
			return fail("mail.amqp_url", "mail.amqp_url is required for the rabbitmq driver")
		}
	case MailDriverSMTP:
		if c.Mail.SMTP.Host == "" {
			return fail("mail.smtp.host", "mail.smtp.host is required for the smtp driver")
		}
	default:
		return fail("mail.driver", "mail.driver must be log, rabbitmq or smtp, got %q", c.Mail.Driver)
	}
	if c.Mail.Driver != MailDriverLog && c.Mail.BaseURL == "" {
		return fail("mail.base_url", "mail.base_url is required to build links")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fail("log.format", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	return nil
}

// IsProduction reports whether cookies must be Secure.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// CookieSameSite parses session.same_site.
func (c *Config) CookieSameSite() (http.SameSite, error) {
	switch strings.ToLower(c.Session.SameSite) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	default:
		return 0, oops.Code("CONFIG_INVALID").
			With("key", "session.same_site").
			Errorf("session.same_site must be lax or strict, got %q", c.Session.SameSite)
	}
}
