// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"

	"github.com/samber/oops"
)

// urlSafeAlphabet has exactly 64 symbols, so masking a random byte with 0x3f
// selects a symbol without modulo bias.
const urlSafeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// Token lengths in symbols. Each symbol carries 6 bits of entropy.
const (
	SessionIDLength         = 40
	VerificationTokenLength = 32
	ResetTokenLength        = 32
)

// SessionID is the bearer credential carried in the session cookie.
type SessionID string

// VerificationToken proves control of a registered email address.
type VerificationToken string

// ResetToken authorizes a single password change.
type ResetToken string

// LogValue keeps session ids out of log output.
func (SessionID) LogValue() slog.Value { return slog.StringValue("[REDACTED]") }

// LogValue keeps verification tokens out of log output.
func (VerificationToken) LogValue() slog.Value { return slog.StringValue("[REDACTED]") }

// LogValue keeps reset tokens out of log output.
func (ResetToken) LogValue() slog.Value { return slog.StringValue("[REDACTED]") }

// TokenGenerator produces random URL-safe strings.
type TokenGenerator interface {
	// Generate returns a random string of length symbols.
	Generate(length int) (string, error)
}

// RandomTokenGenerator draws tokens from an entropy source, crypto/rand by default.
type RandomTokenGenerator struct {
	source io.Reader
}

// NewRandomTokenGenerator creates a generator backed by crypto/rand.
func NewRandomTokenGenerator() *RandomTokenGenerator {
	return &RandomTokenGenerator{source: rand.Reader}
}

// NewTokenGeneratorFromReader creates a generator reading entropy from r.
func NewTokenGeneratorFromReader(r io.Reader) *RandomTokenGenerator {
	return &RandomTokenGenerator{source: r}
}

// Generate returns a random string of length symbols from the URL-safe alphabet.
func (g *RandomTokenGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", oops.Code("TOKEN_INVALID_LENGTH").
			With("length", length).
			Errorf("token length must be positive")
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(g.source, buf); err != nil {
		return "", oops.Code("TOKEN_GENERATION_FAILED").
			With("length", length).
			Wrap(err)
	}

	for i, b := range buf {
		buf[i] = urlSafeAlphabet[b&0x3f]
	}
	return string(buf), nil
}

// NewSessionID draws a fresh session id.
func NewSessionID(g TokenGenerator) (SessionID, error) {
	s, err := g.Generate(SessionIDLength)
	return SessionID(s), err
}

// NewVerificationToken draws a fresh email verification token.
func NewVerificationToken(g TokenGenerator) (VerificationToken, error) {
	s, err := g.Generate(VerificationTokenLength)
	return VerificationToken(s), err
}

// NewResetToken draws a fresh password reset token.
func NewResetToken(g TokenGenerator) (ResetToken, error) {
	s, err := g.Generate(ResetTokenLength)
	return ResetToken(s), err
}

// HashToken returns the hex-encoded SHA-256 digest stored in place of a bearer value.
func HashToken[T ~string](token T) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
