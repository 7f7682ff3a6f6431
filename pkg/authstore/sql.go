// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package authstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/binwarden/pkg/wire"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS role (
	role_code TEXT PRIMARY KEY
);
INSERT INTO role (role_code) VALUES ('WORKER'), ('ADMIN') ON CONFLICT DO NOTHING;
CREATE TABLE IF NOT EXISTS users (
	id          SERIAL PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	rfid_tag_id TEXT NOT NULL UNIQUE,
	role        TEXT NOT NULL REFERENCES role (role_code)
);`

// SQLStore implements Store on PostgreSQL
type SQLStore struct {
	db      *sql.DB
	timeout time.Duration
}

// OpenSQL connects to the database at dsn
func OpenSQL(dsn string, timeout time.Duration) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewSQLStore(db, timeout), nil
}

// NewSQLStore wraps an existing handle
func NewSQLStore(db *sql.DB, timeout time.Duration) *SQLStore {
	return &SQLStore{db: db, timeout: timeout}
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Migrate creates the role and users tables and seeds the roles
func (s *SQLStore) Migrate() error {
	ctx, cancel := s.ctx()
	defer cancel()
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Lookup returns the user holding tag
func (s *SQLStore) Lookup(tag string) (User, bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	u := User{Tag: tag}
	err := s.db.QueryRowContext(ctx,
		`SELECT role, name FROM users WHERE rfid_tag_id = $1`, tag,
	).Scan(&u.Role, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, fmt.Errorf("lookup %q: %w", tag, err)
	}
	return u, true, nil
}

// IsAuthorized reports whether tag is known
func (s *SQLStore) IsAuthorized(tag string) (bool, error) {
	_, ok, err := s.Lookup(tag)
	return ok, err
}

// Upsert inserts tag or updates its role
func (s *SQLStore) Upsert(tag string, role wire.Role) error {
	if err := checkRole(role); err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (rfid_tag_id, role) VALUES ($1, $2)
		ON CONFLICT (rfid_tag_id) DO UPDATE SET role = EXCLUDED.role`,
		tag, role.String(),
	)
	if err != nil {
		return fmt.Errorf("upsert %q: %w", tag, err)
	}
	return nil
}

// Remove deletes tag; removing an unknown tag is not an error
func (s *SQLStore) Remove(tag string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE rfid_tag_id = $1`, tag); err != nil {
		return fmt.Errorf("remove %q: %w", tag, err)
	}
	return nil
}

// List returns every user ordered by tag
func (s *SQLStore) List() ([]User, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT rfid_tag_id, role, name FROM users ORDER BY rfid_tag_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Tag, &u.Role, &u.Name); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}
