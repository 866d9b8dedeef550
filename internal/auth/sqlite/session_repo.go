// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/todopad/todopad/internal/auth"
)

// SessionRepository implements auth.SessionRepository using SQLite.
type SessionRepository struct {
	store *Store
}

var _ auth.SessionRepository = (*SessionRepository)(nil)

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	r.store.writeLock.Lock()
	defer r.store.writeLock.Unlock()

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO sessions (token_hash, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`,
		session.TokenHash,
		session.UserID.String(),
		toUnix(session.ExpiresAt),
		toUnix(session.CreatedAt),
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	var (
		session   auth.Session
		userIDStr string
		expiresAt int64
		createdAt int64
	)
	err := r.store.db.QueryRowContext(ctx, `
		SELECT token_hash, user_id, expires_at, created_at
		FROM sessions
		WHERE token_hash = ?
	`, tokenHash).Scan(&session.TokenHash, &userIDStr, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "parse user id").
			With("user_id", userIDStr).
			Wrap(err)
	}
	session.UserID = userID
	session.ExpiresAt = fromUnix(expiresAt)
	session.CreatedAt = fromUnix(createdAt)
	return &session, nil
}

// DeleteByTokenHash removes one session.
func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	n, err := r.exec(ctx, "delete session", `DELETE FROM sessions WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").Wrap(err)
	}
	if n == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByUser removes every session owned by userID.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) (int64, error) {
	n, err := r.exec(ctx, "delete sessions by user", `DELETE FROM sessions WHERE user_id = ?`, userID.String())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_BY_USER_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return n, nil
}

// DeleteExpired removes every session whose expiry is at or before now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := r.exec(ctx, "delete expired sessions", `DELETE FROM sessions WHERE expires_at <= ?`, toUnix(now))
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").Wrap(err)
	}
	return n, nil
}

func (r *SessionRepository) exec(ctx context.Context, operation, query string, args ...any) (int64, error) {
	r.store.writeLock.Lock()
	defer r.store.writeLock.Unlock()

	result, err := r.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, oops.With("operation", operation).Wrap(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, oops.With("operation", operation).Wrap(err)
	}
	return n, nil
}
