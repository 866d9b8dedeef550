// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todopad/todopad/internal/auth"
	"github.com/todopad/todopad/pkg/errutil"
)

func TestNewUser(t *testing.T) {
	t.Run("creates unverified user", func(t *testing.T) {
		user, err := auth.NewUser("a@x.com", "$argon2id$hash")
		require.NoError(t, err)
		assert.NotEqual(t, ulid.ULID{}, user.ID)
		assert.Equal(t, "a@x.com", user.Email)
		assert.False(t, user.IsVerified)
		assert.Nil(t, user.VerificationTokenHash)
		assert.Nil(t, user.ResetTokenHash)
		assert.Nil(t, user.ResetTokenExpiresAt)
		assert.False(t, user.CreatedAt.IsZero())
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		_, err := auth.NewUser("not-an-email", "$argon2id$hash")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_VALIDATION_FAILED")
		errutil.AssertErrorContext(t, err, "field", "email")
	})

	t.Run("rejects empty hash", func(t *testing.T) {
		_, err := auth.NewUser("a@x.com", "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USER_INVALID_HASH")
	})
}

func TestUser_VerificationToken(t *testing.T) {
	user, err := auth.NewUser("a@x.com", "hash")
	require.NoError(t, err)

	user.SetVerificationToken("first")
	require.NotNil(t, user.VerificationTokenHash)
	assert.Equal(t, auth.HashToken(auth.VerificationToken("first")), *user.VerificationTokenHash)

	user.SetVerificationToken("second")
	assert.Equal(t, auth.HashToken(auth.VerificationToken("second")), *user.VerificationTokenHash)

	user.MarkVerified()
	assert.True(t, user.IsVerified)
	assert.Nil(t, user.VerificationTokenHash)
}

func TestUser_ResetToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	user, err := auth.NewUser("a@x.com", "hash")
	require.NoError(t, err)

	assert.False(t, user.ResetTokenValidAt(now), "no token outstanding")

	user.SetResetToken("reset", now.Add(time.Hour))
	require.NotNil(t, user.ResetTokenHash)
	require.NotNil(t, user.ResetTokenExpiresAt)
	assert.True(t, user.ResetTokenValidAt(now))
	assert.True(t, user.ResetTokenValidAt(now.Add(time.Hour-time.Second)))
	assert.False(t, user.ResetTokenValidAt(now.Add(time.Hour)), "expiry instant is invalid")
	assert.False(t, user.ResetTokenValidAt(now.Add(time.Hour+time.Second)))

	user.ClearResetToken()
	assert.Nil(t, user.ResetTokenHash)
	assert.Nil(t, user.ResetTokenExpiresAt)
	assert.False(t, user.ResetTokenValidAt(now))
}

func TestUser_ResetTokenWithoutExpiryIsInvalid(t *testing.T) {
	h := auth.HashToken(auth.ResetToken("reset"))
	user := &auth.User{ResetTokenHash: &h}
	assert.False(t, user.ResetTokenValidAt(time.Now()))
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"a@x.com", true},
		{"First.Last+tag@example.co.uk", true},
		{"", false},
		{"plainaddress", false},
		{"@no-local.com", false},
		{"spaces in@x.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := auth.ValidateEmail(tt.email)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, auth.MsgInvalidEmail, oops.GetPublic(err, ""))
		})
	}
}

func TestValidateNewPassword(t *testing.T) {
	tests := []struct {
		name      string
		password  string
		confirm   string
		wantField string
		wantMsg   string
	}{
		{name: "valid", password: "longpass1", confirm: "longpass1"},
		{name: "exactly minimum length", password: "12345678", confirm: "12345678"},
		{name: "too short", password: "short", confirm: "short", wantField: "password", wantMsg: auth.MsgPasswordTooShort},
		{name: "mismatch", password: "longpass1", confirm: "longpass2", wantField: "confirmPassword", wantMsg: auth.MsgPasswordsDontMatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateNewPassword(tt.password, tt.confirm)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "AUTH_VALIDATION_FAILED")
			errutil.AssertErrorContext(t, err, "field", tt.wantField)
			assert.Equal(t, tt.wantMsg, oops.GetPublic(err, ""))
		})
	}
}
