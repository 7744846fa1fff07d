// Package postgres provides the PostgreSQL-backed implementation of
// [session.PrefStore]. A single pgxpool.Pool is shared by all operations.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxislabs/praxis/internal/sanitize"
	"github.com/praxislabs/praxis/internal/session"
)

const ddlStudentPreferences = `
CREATE TABLE IF NOT EXISTS student_preferences (
    email        TEXT         PRIMARY KEY,
    last_topic   TEXT         NOT NULL DEFAULT '',
    reply_format TEXT         NOT NULL DEFAULT '',
    updated_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);`

// Compile-time interface check.
var _ session.PrefStore = (*PrefStore)(nil)

// PrefStore persists student preferences in a student_preferences table.
// All methods are safe for concurrent use.
type PrefStore struct {
	pool *pgxpool.Pool
}

// NewPrefStore connects to the database at dsn, verifies the connection and
// ensures the student_preferences table exists.
func NewPrefStore(ctx context.Context, dsn string) (*PrefStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pref store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pref store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlStudentPreferences); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pref store: migrate: %w", err)
	}
	return &PrefStore{pool: pool}, nil
}

// Ping probes the database connection. Used by the readiness check.
func (s *PrefStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Get implements [session.PrefStore].
func (s *PrefStore) Get(ctx context.Context, email string) (session.Preferences, error) {
	const q = `
		SELECT last_topic, reply_format, updated_at
		FROM   student_preferences
		WHERE  email = $1`

	var (
		prefs  session.Preferences
		format string
	)
	err := s.pool.QueryRow(ctx, q, email).Scan(&prefs.LastTopic, &format, &prefs.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Preferences{}, session.ErrNoPreferences
	}
	if err != nil {
		return session.Preferences{}, fmt.Errorf("pref store: get %q: %w", email, err)
	}
	prefs.Format = sanitize.Format(format)
	return prefs, nil
}

// Put implements [session.PrefStore]. The row is upserted; updated_at always
// reflects the write time on the database clock.
func (s *PrefStore) Put(ctx context.Context, email string, prefs session.Preferences) error {
	const q = `
		INSERT INTO student_preferences (email, last_topic, reply_format, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (email) DO UPDATE
		SET last_topic = EXCLUDED.last_topic,
		    reply_format = EXCLUDED.reply_format,
		    updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, email, prefs.LastTopic, string(prefs.Format)); err != nil {
		return fmt.Errorf("pref store: put %q: %w", email, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PrefStore) Close() {
	s.pool.Close()
}
