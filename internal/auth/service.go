// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/todopad/todopad/pkg/errutil"
)

var tracer = otel.Tracer("todopad/auth")

// SignUpInput is the sign-up form.
type SignUpInput struct {
	Email           string
	Password        string
	ConfirmPassword string
}

// SignInInput is the sign-in form.
type SignInInput struct {
	Email    string
	Password string
}

// Service provides sign-up, sign-in, sign-out and current-user lookup.
type Service struct {
	users    UserRepository
	sessions *SessionManager
	hasher   PasswordHasher
	tokens   TokenGenerator
	mailer   Mailer
	logger   *slog.Logger
}

// NewService creates a new Service with a no-op logger.
// Returns an error if any required dependency is nil.
func NewService(users UserRepository, sessions *SessionManager, hasher PasswordHasher, tokens TokenGenerator, mailer Mailer) (*Service, error) {
	return NewServiceWithLogger(users, sessions, hasher, tokens, mailer, slog.New(slog.DiscardHandler))
}

// NewServiceWithLogger creates a new Service with the provided logger.
// Returns an error if any required dependency is nil.
func NewServiceWithLogger(users UserRepository, sessions *SessionManager, hasher PasswordHasher, tokens TokenGenerator, mailer Mailer, logger *slog.Logger) (*Service, error) {
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
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		mailer:   mailer,
		logger:   logger,
	}, nil
}

// SignUp creates an unverified user, signs them in and hands off the
// verification token. The caller sets SessionManager.IssueCookie(session).
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (user *User, session *Session, err error) {
	ctx, span := tracer.Start(ctx, "auth.signup")
	defer endSpan(span, &err)

	if err := ValidateEmail(in.Email); err != nil {
		return nil, nil, err
	}
	if err := ValidateNewPassword(in.Password, in.ConfirmPassword); err != nil {
		return nil, nil, err
	}

	if _, lookupErr := s.users.GetByEmail(ctx, in.Email); lookupErr == nil {
		return nil, nil, duplicateEmailError()
	} else if !errors.Is(lookupErr, ErrNotFound) {
		return nil, nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, nil, oops.Code("AUTH_HASHING_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	token, err := NewVerificationToken(s.tokens)
	if err != nil {
		return nil, nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "generate verification token").
			Wrap(err)
	}

	user, err = NewUser(in.Email, hash)
	if err != nil {
		return nil, nil, err
	}
	user.SetVerificationToken(token)

	if err := s.users.Create(ctx, user); err != nil {
		// The unique constraint catches sign-ups racing past the lookup above.
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, nil, duplicateEmailError()
		}
		return nil, nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	session, err = s.sessions.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	// The account exists at this point; a failed hand-off is recoverable through resend.
	if err := s.mailer.Send(ctx, Delivery{Recipient: user.Email, Token: string(token), Purpose: PurposeVerifyEmail}); err != nil {
		errutil.LogError(s.logger, "verification hand-off failed", oops.With("user_id", user.ID.String()).Wrap(err))
	}

	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID.String())
	return user, session, nil
}

// SignIn authenticates by email and password and creates a session.
// Unknown emails and wrong passwords produce the same AUTH_INVALID_CREDENTIALS error.
func (s *Service) SignIn(ctx context.Context, in SignInInput) (session *Session, err error) {
	ctx, span := tracer.Start(ctx, "auth.signin")
	defer endSpan(span, &err)

	if err := ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, validationError("password", MsgPasswordRequired)
	}

	user, lookupErr := s.users.GetByEmail(ctx, in.Email)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	if user == nil {
		// Burn the same hashing cost as a real verify.
		_, _ = s.hasher.Verify(in.Password, s.hasher.DummyDigest()) //nolint:errcheck // result is discarded
		return nil, invalidCredentialsError()
	}

	valid, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if !valid {
		return nil, invalidCredentialsError()
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, in.Password)
	}

	session, err = s.sessions.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "create session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return session, nil
}

// upgradeHash rehashes with the current parameters. Sign-in succeeds regardless.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogError(s.logger, "password rehash failed", err)
		return
	}
	user.PasswordHash = newHash
	if err := s.users.Update(ctx, user); err != nil {
		errutil.LogError(s.logger, "failed to persist rehashed password", err)
	}
}

// SignOut invalidates session. A nil session means the caller is already
// signed out and is not an error.
func (s *Service) SignOut(ctx context.Context, session *Session) (err error) {
	if session == nil {
		return nil
	}
	ctx, span := tracer.Start(ctx, "auth.signout")
	defer endSpan(span, &err)

	if err := s.sessions.InvalidateSession(ctx, session.ID); err != nil {
		return oops.Code("AUTH_SIGNOUT_FAILED").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return nil
}

// CurrentUser returns the user that owns session.
func (s *Service) CurrentUser(ctx context.Context, session *Session) (*User, error) {
	if session == nil {
		return nil, notAuthenticatedError()
	}
	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notAuthenticatedError()
		}
		return nil, oops.Code("AUTH_CURRENT_USER_FAILED").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return user, nil
}

func duplicateEmailError() error {
	return oops.Code("AUTH_DUPLICATE_EMAIL").
		With("field", "email").
		Public(MsgDuplicateEmail).
		Errorf("email already in use")
}

func notAuthenticatedError() error {
	return oops.Code("AUTH_NOT_AUTHENTICATED").Errorf("no active session")
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
