// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned by repositories when the email uniqueness
// constraint rejects a write.
var ErrDuplicateEmail = errors.New("email already in use")

// Public messages shown to clients. Sign-in failures share a single message
// so that unknown emails and wrong passwords are indistinguishable.
const (
	MsgInvalidCredentials    = "Invalid email or password"
	MsgDuplicateEmail        = "Email already in use"
	MsgInvalidOrExpiredToken = "Invalid or expired reset token"
	MsgInvalidToken          = "Invalid verification token"
	MsgPasswordsDontMatch    = "Passwords don't match"
	MsgPasswordTooShort      = "Password must be at least 8 characters"
	MsgPasswordRequired      = "Password is required"
	MsgInvalidEmail          = "Invalid email address"
	MsgResetRequested        = "If an account exists for that email, reset instructions have been sent"
)

func validationError(field, msg string) error {
	return oops.Code("AUTH_VALIDATION_FAILED").
		With("field", field).
		Public(msg).
		Errorf("%s", msg)
}

func invalidCredentialsError() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").
		Public(MsgInvalidCredentials).
		Errorf("invalid email or password")
}
