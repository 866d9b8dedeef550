// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// ResendResult reports what ResendVerification did.
type ResendResult int

// Resend outcomes.
const (
	ResendSent ResendResult = iota
	ResendAlreadyVerified
)

// VerificationService handles email verification and resending the link.
type VerificationService struct {
	users  UserRepository
	tokens TokenGenerator
	mailer Mailer
	logger *slog.Logger
}

// NewVerificationService creates a new VerificationService with a no-op logger.
func NewVerificationService(users UserRepository, tokens TokenGenerator, mailer Mailer) (*VerificationService, error) {
	return NewVerificationServiceWithLogger(users, tokens, mailer, slog.New(slog.DiscardHandler))
}

// NewVerificationServiceWithLogger creates a new VerificationService with the provided logger.
func NewVerificationServiceWithLogger(users UserRepository, tokens TokenGenerator, mailer Mailer, logger *slog.Logger) (*VerificationService, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
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
	return &VerificationService{users: users, tokens: tokens, mailer: mailer, logger: logger}, nil
}

// VerifyEmail marks the user holding token as verified and consumes the token.
func (s *VerificationService) VerifyEmail(ctx context.Context, token VerificationToken) (err error) {
	ctx, span := tracer.Start(ctx, "auth.verify_email")
	defer endSpan(span, &err)

	if token == "" {
		return invalidTokenError()
	}

	user, err := s.users.GetByVerificationTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidTokenError()
		}
		return oops.Code("VERIFY_FAILED").
			With("operation", "get user by verification token").
			Wrap(err)
	}

	user.MarkVerified()
	if err := s.users.Update(ctx, user); err != nil {
		return oops.Code("VERIFY_FAILED").
			With("operation", "update user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "email verified", "user_id", user.ID.String())
	return nil
}

// ResendVerification replaces the user's verification token and hands off the
// new one. Links carrying the previous token stop working. A verified user is
// left untouched and ResendAlreadyVerified is returned.
func (s *VerificationService) ResendVerification(ctx context.Context, session *Session) (result ResendResult, err error) {
	if session == nil {
		return ResendSent, notAuthenticatedError()
	}
	ctx, span := tracer.Start(ctx, "auth.resend_verification")
	defer endSpan(span, &err)

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ResendSent, notAuthenticatedError()
		}
		return ResendSent, oops.Code("RESEND_FAILED").
			With("operation", "get user by id").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}

	if user.IsVerified {
		return ResendAlreadyVerified, nil
	}

	token, err := NewVerificationToken(s.tokens)
	if err != nil {
		return ResendSent, oops.Code("RESEND_FAILED").
			With("operation", "generate verification token").
			Wrap(err)
	}

	user.SetVerificationToken(token)
	if err := s.users.Update(ctx, user); err != nil {
		return ResendSent, oops.Code("RESEND_FAILED").
			With("operation", "store verification token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	if err := s.mailer.Send(ctx, Delivery{Recipient: user.Email, Token: string(token), Purpose: PurposeVerifyEmail}); err != nil {
		return ResendSent, oops.Code("AUTH_DELIVERY_FAILED").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return ResendSent, nil
}

func invalidTokenError() error {
	return oops.Code("AUTH_INVALID_TOKEN").
		Public(MsgInvalidToken).
		Errorf("invalid verification token")
}
