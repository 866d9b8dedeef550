// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/todopad/todopad/pkg/errutil"
)

// Session defaults.
const (
	DefaultSessionTTL        = 30 * 24 * time.Hour
	DefaultSessionCookieName = "todopad_session"
)

// Session binds a bearer id to a user until ExpiresAt.
type Session struct {
	// ID is the plaintext bearer value. Repositories never see it; they store TokenHash.
	ID        SessionID
	TokenHash string
	UserID    ulid.ULID
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewSession creates a validated Session for userID.
func NewSession(id SessionID, userID ulid.ULID, createdAt, expiresAt time.Time) (*Session, error) {
	if id == "" {
		return nil, oops.Code("SESSION_INVALID_ID").Errorf("session id cannot be empty")
	}
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if !expiresAt.After(createdAt) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry must be after creation time")
	}
	return &Session{
		ID:        id,
		TokenHash: HashToken(id),
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// IsExpiredAt reports whether the session is no longer valid at t.
// A session is valid only while t is strictly before ExpiresAt.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// SessionRepository manages session persistence keyed by token hash.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// DeleteByTokenHash returns an error wrapping ErrNotFound if no row matched.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteByUser removes every session owned by userID and returns the count.
	DeleteByUser(ctx context.Context, userID ulid.ULID) (int64, error)

	// DeleteExpired removes sessions with expires_at <= now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CookieConfig selects the session cookie attributes.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	TTL    time.Duration
	Cookie CookieConfig
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.TTL <= 0 {
		c.TTL = DefaultSessionTTL
	}
	if c.Cookie.Name == "" {
		c.Cookie.Name = DefaultSessionCookieName
	}
	if c.Cookie.Path == "" {
		c.Cookie.Path = "/"
	}
	if c.Cookie.SameSite == 0 {
		c.Cookie.SameSite = http.SameSiteLaxMode
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// SessionManager creates, validates and invalidates sessions and produces
// the cookies that carry them.
type SessionManager struct {
	sessions SessionRepository
	tokens   TokenGenerator
	cfg      SessionConfig
	logger   *slog.Logger
}

// NewSessionManager creates a SessionManager with a no-op logger.
func NewSessionManager(sessions SessionRepository, tokens TokenGenerator, cfg SessionConfig) (*SessionManager, error) {
	return NewSessionManagerWithLogger(sessions, tokens, cfg, slog.New(slog.DiscardHandler))
}

// NewSessionManagerWithLogger creates a SessionManager with the provided logger.
func NewSessionManagerWithLogger(sessions SessionRepository, tokens TokenGenerator, cfg SessionConfig, logger *slog.Logger) (*SessionManager, error) {
	if sessions == nil {
		return nil, oops.Errorf("session repository is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token generator is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &SessionManager{
		sessions: sessions,
		tokens:   tokens,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}, nil
}

// CookieName returns the configured session cookie name.
func (m *SessionManager) CookieName() string {
	return m.cfg.Cookie.Name
}

// CreateSession mints and persists a session for userID.
func (m *SessionManager) CreateSession(ctx context.Context, userID ulid.ULID) (*Session, error) {
	id, err := NewSessionID(m.tokens)
	if err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "generate session id").
			Wrap(err)
	}

	now := m.cfg.Clock()
	session, err := NewSession(id, userID, now, now.Add(m.cfg.TTL))
	if err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "build session").
			Wrap(err)
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return session, nil
}

// ValidateSession resolves a cookie value to a live session.
// It returns (nil, nil) when the value is empty, unknown or expired.
// Expired sessions are deleted on a best-effort basis.
func (m *SessionManager) ValidateSession(ctx context.Context, cookieValue string) (*Session, error) {
	if cookieValue == "" {
		return nil, nil
	}
	id := SessionID(cookieValue)

	session, err := m.sessions.GetByTokenHash(ctx, HashToken(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpiredAt(m.cfg.Clock()) {
		if delErr := m.sessions.DeleteByTokenHash(ctx, session.TokenHash); delErr != nil && !errors.Is(delErr, ErrNotFound) {
			errutil.LogError(m.logger, "failed to delete expired session", delErr)
		}
		return nil, nil
	}

	session.ID = id
	return session, nil
}

// InvalidateSession deletes the session. A session that is already gone is not an error.
func (m *SessionManager) InvalidateSession(ctx context.Context, id SessionID) error {
	if err := m.sessions.DeleteByTokenHash(ctx, HashToken(id)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("SESSION_INVALIDATE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// InvalidateUserSessions deletes every session owned by userID.
func (m *SessionManager) InvalidateUserSessions(ctx context.Context, userID ulid.ULID) (int64, error) {
	n, err := m.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, oops.Code("SESSION_INVALIDATE_FAILED").
			With("operation", "delete sessions by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return n, nil
}

// IssueCookie returns the cookie that carries session to the client.
func (m *SessionManager) IssueCookie(session *Session) *http.Cookie {
	c := m.baseCookie()
	c.Value = string(session.ID)
	c.Expires = session.ExpiresAt
	return c
}

// ClearCookie returns a cookie that removes the session cookie from the client.
func (m *SessionManager) ClearCookie() *http.Cookie {
	c := m.baseCookie()
	c.Value = ""
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}

func (m *SessionManager) baseCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.Cookie.Name,
		Path:     m.cfg.Cookie.Path,
		Domain:   m.cfg.Cookie.Domain,
		Secure:   m.cfg.Cookie.Secure,
		HttpOnly: true,
		SameSite: m.cfg.Cookie.SameSite,
	}
}

// SweepExpired deletes every session that has expired.
func (m *SessionManager) SweepExpired(ctx context.Context) (int64, error) {
	n, err := m.sessions.DeleteExpired(ctx, m.cfg.Clock())
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return n, nil
}
