// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/todopad/todopad/internal/auth"
	"github.com/todopad/todopad/internal/auth/mocks"
	"github.com/todopad/todopad/pkg/errutil"
)

func TestService_SignUp_LogsFailedHandOffWithoutToken(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	users := mocks.NewMockUserRepository(t)
	sessionRepo := mocks.NewMockSessionRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	mailer := mocks.NewMockMailer(t)
	gen := auth.NewRandomTokenGenerator()

	sessions, err := auth.NewSessionManager(sessionRepo, gen, auth.SessionConfig{})
	require.NoError(t, err)
	svc, err := auth.NewServiceWithLogger(users, sessions, hasher, gen, mailer, logger)
	require.NoError(t, err)

	var token string
	users.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, auth.ErrNotFound)
	hasher.On("Hash", "longpass1").Return("hashed", nil)
	users.On("Create", mock.Anything, mock.Anything).Return(nil)
	sessionRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	mailer.On("Send", mock.Anything, mock.AnythingOfType("auth.Delivery")).
		Run(func(args mock.Arguments) { token = args.Get(1).(auth.Delivery).Token }).
		Return(errors.New("broker down"))

	_, _, err = svc.SignUp(context.Background(), auth.SignUpInput{
		Email: "a@x.com", Password: "longpass1", ConfirmPassword: "longpass1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	output := buf.String()
	assert.Contains(t, output, "verification hand-off failed")
	assert.Contains(t, output, "broker down")
	assert.NotContains(t, output, token)
	assert.NotContains(t, output, "longpass1")

	var first map[string]any
	require.NoError(t, json.Unmarshal(bytes.SplitN(buf.Bytes(), []byte("\n"), 2)[0], &first))
	assert.Equal(t, "ERROR", first["level"])
}

func TestLogMailer_DoesNotLogToken(t *testing.T) {
	var buf bytes.Buffer
	m := auth.NewLogMailer(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := m.Send(context.Background(), auth.Delivery{
		Recipient: "a@x.com",
		Token:     "secret-token-value",
		Purpose:   auth.PurposeResetPassword,
	})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "a@x.com")
	assert.Contains(t, buf.String(), "reset-password")
	assert.NotContains(t, buf.String(), "secret-token-value")
}

func TestLogMailer_WithLinksLogsLinkAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := auth.NewLogMailer(logger).WithLinks(func(d auth.Delivery) (string, error) {
		return "http://127.0.0.1:8080/verify?token=" + d.Token, nil
	})

	err := m.Send(context.Background(), auth.Delivery{Recipient: "a@x.com", Token: "tok123", Purpose: auth.PurposeVerifyEmail})
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "http://127.0.0.1:8080/verify?token=tok123", entry["link"])
}

func TestLogMailer_WithLinksHiddenAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	m := auth.NewLogMailer(slog.New(slog.NewJSONHandler(&buf, nil))).WithLinks(func(d auth.Delivery) (string, error) {
		return "http://127.0.0.1:8080/verify?token=" + d.Token, nil
	})

	require.NoError(t, m.Send(context.Background(), auth.Delivery{Recipient: "a@x.com", Token: "tok123", Purpose: auth.PurposeVerifyEmail}))
	assert.NotContains(t, buf.String(), "tok123")
}

func TestLogMailer_LinkFailure(t *testing.T) {
	m := auth.NewLogMailer(nil).WithLinks(func(auth.Delivery) (string, error) {
		return "", errors.New("unknown purpose")
	})

	err := m.Send(context.Background(), auth.Delivery{Recipient: "a@x.com", Token: "t", Purpose: "welcome"})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MAIL_LINK_FAILED")
}
