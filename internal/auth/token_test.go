// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package auth_test

import (
	"bytes"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todopad/todopad/internal/auth"
	"github.com/todopad/todopad/pkg/errutil"
)

var urlSafe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestRandomTokenGenerator_Generate(t *testing.T) {
	gen := auth.NewRandomTokenGenerator()

	t.Run("produces requested length from url-safe alphabet", func(t *testing.T) {
		for _, n := range []int{1, 15, 32, 40, 128} {
			tok, err := gen.Generate(n)
			require.NoError(t, err)
			assert.Len(t, tok, n)
			assert.Regexp(t, urlSafe, tok)
		}
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		seen := make(map[string]struct{}, 1000)
		for range 1000 {
			tok, err := gen.Generate(auth.VerificationTokenLength)
			require.NoError(t, err)
			_, dup := seen[tok]
			require.False(t, dup, "duplicate token %q", tok)
			seen[tok] = struct{}{}
		}
	})

	t.Run("rejects non-positive length", func(t *testing.T) {
		_, err := gen.Generate(0)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID_LENGTH")
	})

	t.Run("entropy failure is an error", func(t *testing.T) {
		_, err := auth.NewTokenGeneratorFromReader(failingReader{}).Generate(8)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "TOKEN_GENERATION_FAILED")
	})

	t.Run("maps every byte value onto the alphabet", func(t *testing.T) {
		src := make([]byte, 256)
		for i := range src {
			src[i] = byte(i)
		}
		tok, err := auth.NewTokenGeneratorFromReader(bytes.NewReader(src)).Generate(256)
		require.NoError(t, err)
		assert.Regexp(t, urlSafe, tok)
		assert.Equal(t, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-", tok[:64])
		assert.Equal(t, tok[:64], tok[64:128])
	})
}

func TestTypedTokens(t *testing.T) {
	gen := auth.NewRandomTokenGenerator()

	sid, err := auth.NewSessionID(gen)
	require.NoError(t, err)
	assert.Len(t, string(sid), auth.SessionIDLength)

	vt, err := auth.NewVerificationToken(gen)
	require.NoError(t, err)
	assert.Len(t, string(vt), auth.VerificationTokenLength)

	rt, err := auth.NewResetToken(gen)
	require.NoError(t, err)
	assert.Len(t, string(rt), auth.ResetTokenLength)

	assert.NotEqual(t, string(vt), string(rt), "each purpose draws independently")
}

func TestHashToken(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		assert.Equal(t, auth.HashToken(auth.SessionID("abc")), auth.HashToken(auth.SessionID("abc")))
	})

	t.Run("differs across values", func(t *testing.T) {
		assert.NotEqual(t, auth.HashToken(auth.ResetToken("a")), auth.HashToken(auth.ResetToken("b")))
	})

	t.Run("is SHA256 hex-encoded", func(t *testing.T) {
		// sha256("abc")
		assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", auth.HashToken(auth.VerificationToken("abc")))
	})
}
