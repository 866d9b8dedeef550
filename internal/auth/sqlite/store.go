// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

// Package sqlite implements the auth credential store on an embedded SQLite database.
// Timestamps are stored as Unix nanoseconds.
package sqlite

import (
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store hands out repositories sharing one database and one write lock.
type Store struct {
	db        *sql.DB
	writeLock *sync.Mutex // SQLite does not support concurrent writers
}

// NewStore wraps db. The schema must already be migrated.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, writeLock: new(sync.Mutex)}
}

// Users returns the user repository.
func (s *Store) Users() *UserRepository {
	return &UserRepository{store: s}
}

// Sessions returns the session repository.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{store: s}
}

func isUniqueViolation(err error, column string) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return strings.Contains(liteErr.Error(), column)
	default:
		return false
	}
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toUnix(*t)
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
