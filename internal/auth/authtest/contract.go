// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

// Package authtest holds a behavioral test suite every credential store must pass.
package authtest

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todopad/todopad/internal/auth"
)

// Repositories is a matched pair of stores backed by the same database.
type Repositories struct {
	Users    auth.UserRepository
	Sessions auth.SessionRepository
}

// Factory returns repositories over an empty database.
type Factory func(t *testing.T) Repositories

// baseTime is truncated to microseconds, the finest resolution PostgreSQL keeps.
var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newUser(t *testing.T, email string) *auth.User {
	t.Helper()
	user, err := auth.NewUser(email, "digest-"+email)
	require.NoError(t, err)
	user.CreatedAt = baseTime
	user.UpdatedAt = baseTime
	return user
}

func newSession(t *testing.T, userID ulid.ULID, id auth.SessionID, expiresAt time.Time) *auth.Session {
	t.Helper()
	session, err := auth.NewSession(id, userID, baseTime.Add(-time.Hour), expiresAt)
	require.NoError(t, err)
	return session
}

// RunRepositoryContract exercises Create/Get/Update on users and the full session lifecycle.
func RunRepositoryContract(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("user round trip", func(t *testing.T) {
		ctx := context.Background()
		repos := factory(t)
		user := newUser(t, "a@x.com")
		user.SetVerificationToken("verify-me")
		require.NoError(t, repos.Users.Create(ctx, user))

		got, err := repos.Users.GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, user.Email, got.Email)
		assert.Equal(t, user.PasswordHash, got.PasswordHash)
		assert.False(t, got.IsVerified)
		require.NotNil(t, got.VerificationTokenHash)
		assert.Equal(t, *user.VerificationTokenHash, *got.VerificationTokenHash)
		assert.Nil(t, got.ResetTokenHash)
		assert.Nil(t, got.ResetTokenExpiresAt)
		assert.True(t, user.CreatedAt.Equal(got.CreatedAt))

		byID, err := repos.Users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, byID.Email)
	})

	t.Run("duplicate email", func(t *testing.T) {
		ctx := context.Background()
		repos := factory(t)
		require.NoError(t, repos.Users.Create(ctx, newUser(t, "a@x.com")))

		err := repos.Users.Create(ctx, newUser(t, "a@x.com"))
		require.ErrorIs(t, err, auth.ErrDuplicateEmail)

		require.NoError(t, repos.Users.Create(ctx, newUser(t, "A@x.com")), "email match is case-sensitive")
	})

	t.Run("unknown user", func(t *testing.T) {
		ctx := context.Background()
		repos := factory(t)

		_, err := repos.Users.GetByID(ctx, ulid.Make())
		require.ErrorIs(t, err, auth.ErrNotFound)
		_, err = repos.Users.GetByEmail(ctx, "ghost@x.com")
		require.ErrorIs(t, err, auth.ErrNotFound)
		_, err = repos.Users.GetByVerificationTokenHash(ctx, auth.HashToken(auth.VerificationToken("nope")))
		require.ErrorIs(t, err, auth.ErrNotFound)
		_, err = repos.Users.GetByResetTokenHash(ctx, auth.HashToken(auth.ResetToken("nope")))
		require.ErrorIs(t, err, auth.ErrNotFound)

		err = repos.Users.Update(ctx, newUser(t, "ghost@x.com"))
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("verification token lifecycle", func(t *testing.T) {
		ctx := context.Background()
		repos := factory(t)
		user := newUser(t, "a@x.com")
		user.SetVerificationToken("verify-me")
		require.NoError(t, repos.Users.Create(ctx, user))

		hash := auth.HashToken(auth.VerificationToken("verify-me"))
		got, err := repos.Users.GetByVerificationTokenHash(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		got.MarkVerified()
		require.NoError(t, repos.Users.Update(ctx, got))

		_, err = repos.Users.GetByVerificationTokenHash(ctx, hash)
		require.ErrorIs(t, err, auth.ErrNotFound)
		stored, err := repos.Users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsVerified)
	})

	t.Run("reset token lifecycle", func(t *testing.T) {
		ctx := context.Background()
		repos := factory(t)
		user := newUser(t, "a@x.com")
		require.NoError(t, repos.Users.Create(ctx, user))

		expires := baseTime.Add(time.Hour)
		user.SetResetToken("reset-me", expires)
		require.NoError(t, repos.Users.Update(ctx, user))

		got, err := repos.Users.GetByResetTokenHash(ctx, auth.HashToken(auth.ResetToken("reset-me")))
		require.NoError(t, err)
		require.NotNil(t, got.ResetTokenExpiresAt)
		assert.True(t, expires.Equal(*got.ResetTokenExpiresAt))

		got.PasswordHash = "new-digest"
		got.ClearResetToken()
		require.NoError(t, repos.Users.Update(ctx, got))

		_, err = repos.Users.GetByResetTokenHash(ctx, auth.HashToken(auth.ResetToken("reset-me")))
		require.ErrorIs(t, err, auth.ErrNotFound)
		stored, err := repos.Users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "new-digest", stored.PasswordHash)
		assert.Nil(t, stored.ResetTokenExpiresAt)
	})

	t.Run("session lifecycle", func(t *testing.T) {
		ctx := context.Background()
		repos := factory(t)
		user := newUser(t, "a@x.com")
		require.NoError(t, repos.Users.Create(ctx, user))

		session := newSession(t, user.ID, "session-one", baseTime.Add(time.Hour))
		require.NoError(t, repos.Sessions.Create(ctx, session))

		got, err := repos.Sessions.GetByTokenHash(ctx, session.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.UserID)
		assert.True(t, session.ExpiresAt.Equal(got.ExpiresAt))
		assert.Empty(t, got.ID, "plaintext id is never stored")

		require.NoError(t, repos.Sessions.DeleteByTokenHash(ctx, session.TokenHash))
		require.ErrorIs(t, repos.Sessions.DeleteByTokenHash(ctx, session.TokenHash), auth.ErrNotFound)
		_, err = repos.Sessions.GetByTokenHash(ctx, session.TokenHash)
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("bulk session deletes", func(t *testing.T) {
		ctx := context.Background()
		repos := factory(t)
		alice := newUser(t, "alice@x.com")
		bob := newUser(t, "bob@x.com")
		require.NoError(t, repos.Users.Create(ctx, alice))
		require.NoError(t, repos.Users.Create(ctx, bob))

		require.NoError(t, repos.Sessions.Create(ctx, newSession(t, alice.ID, "alice-1", baseTime.Add(time.Hour))))
		require.NoError(t, repos.Sessions.Create(ctx, newSession(t, alice.ID, "alice-2", baseTime.Add(time.Hour))))
		expiredNow := newSession(t, bob.ID, "bob-expired", baseTime)
		live := newSession(t, bob.ID, "bob-live", baseTime.Add(time.Second))
		require.NoError(t, repos.Sessions.Create(ctx, expiredNow))
		require.NoError(t, repos.Sessions.Create(ctx, live))

		n, err := repos.Sessions.DeleteByUser(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = repos.Sessions.DeleteExpired(ctx, baseTime)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "a session expiring exactly now is expired")

		_, err = repos.Sessions.GetByTokenHash(ctx, live.TokenHash)
		require.NoError(t, err)
	})
}
