// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/todopad/todopad/internal/auth"
)

const selectUser = `
	SELECT id, email, password_hash, is_verified,
	       verification_token_hash, reset_token_hash, reset_token_expires_at,
	       created_at, updated_at
	FROM users
`

// UserRepository implements auth.UserRepository using SQLite.
type UserRepository struct {
	store *Store
}

var _ auth.UserRepository = (*UserRepository)(nil)

// Create stores a new user. A taken email yields auth.ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	r.store.writeLock.Lock()
	defer r.store.writeLock.Unlock()

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO users (
			id, email, password_hash, is_verified,
			verification_token_hash, reset_token_hash, reset_token_expires_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		user.IsVerified,
		nullableString(user.VerificationTokenHash),
		nullableString(user.ResetTokenHash),
		nullableUnix(user.ResetTokenExpiresAt),
		toUnix(user.CreatedAt),
		toUnix(user.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "users.email") {
			return oops.Code("USER_DUPLICATE_EMAIL").
				With("user_id", user.ID.String()).
				Wrap(auth.ErrDuplicateEmail)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return r.getOne(ctx, "get user by id", selectUser+`WHERE id = ?`, id.String())
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getOne(ctx, "get user by email", selectUser+`WHERE email = ?`, email)
}

// GetByVerificationTokenHash retrieves the user holding a verification token.
func (r *UserRepository) GetByVerificationTokenHash(ctx context.Context, tokenHash string) (*auth.User, error) {
	return r.getOne(ctx, "get user by verification token", selectUser+`WHERE verification_token_hash = ?`, tokenHash)
}

// GetByResetTokenHash retrieves the user holding a reset token.
func (r *UserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*auth.User, error) {
	return r.getOne(ctx, "get user by reset token", selectUser+`WHERE reset_token_hash = ?`, tokenHash)
}

// Update persists every mutable user field.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	r.store.writeLock.Lock()
	defer r.store.writeLock.Unlock()

	result, err := r.store.db.ExecContext(ctx, `
		UPDATE users SET
			password_hash = ?,
			is_verified = ?,
			verification_token_hash = ?,
			reset_token_hash = ?,
			reset_token_expires_at = ?,
			updated_at = ?
		WHERE id = ?
	`,
		user.PasswordHash,
		user.IsVerified,
		nullableString(user.VerificationTokenHash),
		nullableString(user.ResetTokenHash),
		nullableUnix(user.ResetTokenExpiresAt),
		toUnix(user.UpdatedAt),
		user.ID.String(),
	)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "rows affected").
			Wrap(err)
	}
	if n == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("user_id", user.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, operation, query string, arg any) (*auth.User, error) {
	var (
		user         auth.User
		idStr        string
		verifyHash   sql.NullString
		resetHash    sql.NullString
		resetExpires sql.NullInt64
		createdAt    int64
		updatedAt    int64
	)
	err := r.store.db.QueryRowContext(ctx, query, arg).Scan(
		&idStr,
		&user.Email,
		&user.PasswordHash,
		&user.IsVerified,
		&verifyHash,
		&resetHash,
		&resetExpires,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("operation", operation).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").With("operation", operation).Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}
	user.ID = id
	if verifyHash.Valid {
		user.VerificationTokenHash = &verifyHash.String
	}
	if resetHash.Valid {
		user.ResetTokenHash = &resetHash.String
	}
	if resetExpires.Valid {
		t := fromUnix(resetExpires.Int64)
		user.ResetTokenExpiresAt = &t
	}
	user.CreatedAt = fromUnix(createdAt)
	user.UpdatedAt = fromUnix(updatedAt)
	return &user, nil
}
