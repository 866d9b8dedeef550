// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package auth

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MinPasswordLength is the shortest password accepted at sign-up and reset.
const MinPasswordLength = 8

var validate = validator.New(validator.WithRequiredStructEnabled())

// User is an account that can sign in.
type User struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	IsVerified   bool

	// Token hashes are nil when no token is outstanding.
	VerificationTokenHash *string
	ResetTokenHash        *string
	ResetTokenExpiresAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser creates an unverified User with a fresh id.
func NewUser(email, passwordHash string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// SetVerificationToken replaces any outstanding verification token.
func (u *User) SetVerificationToken(token VerificationToken) {
	h := HashToken(token)
	u.VerificationTokenHash = &h
	u.UpdatedAt = time.Now()
}

// MarkVerified records a successful email verification and consumes the token.
func (u *User) MarkVerified() {
	u.IsVerified = true
	u.VerificationTokenHash = nil
	u.UpdatedAt = time.Now()
}

// SetResetToken stores a reset token together with its expiry.
func (u *User) SetResetToken(token ResetToken, expiresAt time.Time) {
	h := HashToken(token)
	u.ResetTokenHash = &h
	u.ResetTokenExpiresAt = &expiresAt
	u.UpdatedAt = time.Now()
}

// ClearResetToken removes the reset token and its expiry together.
func (u *User) ClearResetToken() {
	u.ResetTokenHash = nil
	u.ResetTokenExpiresAt = nil
	u.UpdatedAt = time.Now()
}

// ResetTokenValidAt reports whether a reset token is outstanding and unexpired at t.
func (u *User) ResetTokenValidAt(t time.Time) bool {
	if u.ResetTokenHash == nil || u.ResetTokenExpiresAt == nil {
		return false
	}
	return t.Before(*u.ResetTokenExpiresAt)
}

// ValidateEmail checks that email is a well-formed address.
func ValidateEmail(email string) error {
	if err := validate.Var(email, "required,email,max=254"); err != nil {
		return validationError("email", MsgInvalidEmail)
	}
	return nil
}

// ValidateNewPassword checks a password chosen at sign-up or reset and its confirmation.
func ValidateNewPassword(password, confirm string) error {
	if len(password) < MinPasswordLength {
		return validationError("password", MsgPasswordTooShort)
	}
	if password != confirm {
		return validationError("confirmPassword", MsgPasswordsDontMatch)
	}
	return nil
}

// UserRepository manages user persistence.
//
// Email lookups are exact and case-sensitive. Create returns an error wrapping
// ErrDuplicateEmail when the email is already taken. Token lookups take the
// HashToken digest of the bearer value.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByVerificationTokenHash(ctx context.Context, tokenHash string) (*User, error)
	GetByResetTokenHash(ctx context.Context, tokenHash string) (*User, error)

	// Update persists the mutable fields: password hash, verification state,
	// token hashes, reset expiry and updated_at.
	Update(ctx context.Context, user *User) error
}
