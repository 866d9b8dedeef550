// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/todopad/todopad/pkg/errutil"
)

// DefaultResetTokenTTL is how long a reset token stays usable after issuance.
const DefaultResetTokenTTL = time.Hour

// ResetPasswordInput is the reset-password form.
type ResetPasswordInput struct {
	Token           ResetToken
	Password        string
	ConfirmPassword string
}

// ResetConfig configures a PasswordResetService.
type ResetConfig struct {
	TTL time.Duration
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// PasswordResetService handles forgot-password and reset-password.
type PasswordResetService struct {
	users    UserRepository
	sessions *SessionManager
	hasher   PasswordHasher
	tokens   TokenGenerator
	mailer   Mailer
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewPasswordResetService creates a new PasswordResetService with a no-op logger.
func NewPasswordResetService(users UserRepository, sessions *SessionManager, hasher PasswordHasher, tokens TokenGenerator, mailer Mailer, cfg ResetConfig) (*PasswordResetService, error) {
	return NewPasswordResetServiceWithLogger(users, sessions, hasher, tokens, mailer, cfg, slog.New(slog.DiscardHandler))
}

// NewPasswordResetServiceWithLogger creates a new PasswordResetService with the provided logger.
func NewPasswordResetServiceWithLogger(users UserRepository, sessions *SessionManager, hasher PasswordHasher, tokens TokenGenerator, mailer Mailer, cfg ResetConfig, logger *slog.Logger) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session manager is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token generator is required")
	}
	if mailer == nil {
		return nil, oops.Errorf("mailer is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultResetTokenTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &PasswordResetService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		mailer:   mailer,
		ttl:      cfg.TTL,
		now:      cfg.Clock,
		logger:   logger,
	}, nil
}

// ForgotPassword issues a reset token when email belongs to a user.
// The caller acknowledges with MsgResetRequested whether or not a user matched,
// so a nil error says nothing about account existence.
func (s *PasswordResetService) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.forgot_password")
	defer endSpan(span, &err)

	if err := ValidateEmail(email); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, err := NewResetToken(s.tokens)
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	user.SetResetToken(token, s.now().Add(s.ttl))
	if err := s.users.Update(ctx, user); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store reset token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	// A hand-off error must not change the response, or it would reveal that the account exists.
	if err := s.mailer.Send(ctx, Delivery{Recipient: user.Email, Token: string(token), Purpose: PurposeResetPassword}); err != nil {
		errutil.LogError(s.logger, "reset hand-off failed", oops.With("user_id", user.ID.String()).Wrap(err))
	}
	return nil
}

// ValidateToken returns the user holding token if it is outstanding and unexpired.
func (s *PasswordResetService) ValidateToken(ctx context.Context, token ResetToken) (*User, error) {
	if token == "" {
		return nil, invalidOrExpiredTokenError()
	}

	user, err := s.users.GetByResetTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalidOrExpiredTokenError()
		}
		return nil, oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "get user by reset token").
			Wrap(err)
	}

	if !user.ResetTokenValidAt(s.now()) {
		return nil, invalidOrExpiredTokenError()
	}
	return user, nil
}

// ResetPassword sets a new password using a reset token. The token is consumed
// and every existing session of the user is revoked. No new session is created.
func (s *PasswordResetService) ResetPassword(ctx context.Context, in ResetPasswordInput) (err error) {
	ctx, span := tracer.Start(ctx, "auth.reset_password")
	defer endSpan(span, &err)

	if err := ValidateNewPassword(in.Password, in.ConfirmPassword); err != nil {
		return err
	}

	user, err := s.ValidateToken(ctx, in.Token)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return oops.Code("AUTH_HASHING_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user.PasswordHash = hash
	user.ClearResetToken()
	if err := s.users.Update(ctx, user); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	// The password is already changed; stale sessions are cleanup.
	if _, err := s.sessions.InvalidateUserSessions(ctx, user.ID); err != nil {
		errutil.LogError(s.logger, "failed to revoke sessions after password reset", err)
	}

	s.logger.InfoContext(ctx, "password reset", "user_id", user.ID.String())
	return nil
}

func invalidOrExpiredTokenError() error {
	return oops.Code("AUTH_INVALID_OR_EXPIRED_TOKEN").
		Public(MsgInvalidOrExpiredToken).
		Errorf("invalid or expired reset token")
}
