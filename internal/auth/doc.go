// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

// Package auth implements the credential and session lifecycle for todopad.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - creates a User with a validated email and password hash
//   - NewSession - creates a Session bound to a user with an expiry
//
// Bearer values (SessionID, VerificationToken, ResetToken) are distinct string
// types produced by a TokenGenerator. They are persisted only as HashToken
// digests; the plaintext lives in the session cookie or the mail hand-off.
//
// # Services
//
// The auth flows are split across three services:
//   - Service - sign-up, sign-in, sign-out and current-user lookup
//   - PasswordResetService - forgot-password and reset-password
//   - VerificationService - email verification and resend
//
// SessionManager owns session creation, validation, invalidation and the
// cookie attributes handed to the HTTP layer.
//
// Services are created with New* constructors that validate dependencies.
package auth
