// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/todopad/todopad/internal/auth"
)

const emailUniqueConstraint = "users_email_key"

const selectUser = `
	SELECT id, email, password_hash, is_verified,
	       verification_token_hash, reset_token_hash, reset_token_expires_at,
	       created_at, updated_at
	FROM users
`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

var _ auth.UserRepository = (*UserRepository)(nil)

// Create stores a new user. A taken email yields auth.ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (
			id, email, password_hash, is_verified,
			verification_token_hash, reset_token_hash, reset_token_expires_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		user.IsVerified,
		user.VerificationTokenHash,
		user.ResetTokenHash,
		user.ResetTokenExpiresAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == emailUniqueConstraint {
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
	return r.getOne(ctx, "get user by id", selectUser+`WHERE id = $1`, id.String())
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getOne(ctx, "get user by email", selectUser+`WHERE email = $1`, email)
}

// GetByVerificationTokenHash retrieves the user holding a verification token.
func (r *UserRepository) GetByVerificationTokenHash(ctx context.Context, tokenHash string) (*auth.User, error) {
	return r.getOne(ctx, "get user by verification token", selectUser+`WHERE verification_token_hash = $1`, tokenHash)
}

// GetByResetTokenHash retrieves the user holding a reset token.
func (r *UserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*auth.User, error) {
	return r.getOne(ctx, "get user by reset token", selectUser+`WHERE reset_token_hash = $1`, tokenHash)
}

// Update persists every mutable user field.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET
			password_hash = $2,
			is_verified = $3,
			verification_token_hash = $4,
			reset_token_hash = $5,
			reset_token_expires_at = $6,
			updated_at = $7
		WHERE id = $1
	`,
		user.ID.String(),
		user.PasswordHash,
		user.IsVerified,
		user.VerificationTokenHash,
		user.ResetTokenHash,
		user.ResetTokenExpiresAt,
		user.UpdatedAt,
	)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("user_id", user.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, operation, query string, arg any) (*auth.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("operation", operation).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").With("operation", operation).Wrap(err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		user      auth.User
		idStr     string
		resetExp  *time.Time
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(
		&idStr,
		&user.Email,
		&user.PasswordHash,
		&user.IsVerified,
		&user.VerificationTokenHash,
		&user.ResetTokenHash,
		&resetExp,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse user id").With("id", idStr).Wrap(err)
	}
	user.ID = id
	if resetExp != nil {
		utc := resetExp.UTC()
		user.ResetTokenExpiresAt = &utc
	}
	user.CreatedAt = createdAt.UTC()
	user.UpdatedAt = updatedAt.UTC()
	return &user, nil
}
