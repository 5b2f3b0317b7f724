// Package postgres opens the PostgreSQL-backed store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"movierec/internal/adapter/sqlstore"

	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Dialect describes PostgreSQL to sqlstore.
var Dialect = sqlstore.Dialect{
	Name:              "postgres",
	Numbered:          true,
	IsUniqueViolation: isUniqueViolation,
}

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*sqlstore.Store, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := sqlstore.New(s, Dialect)
	if err := store.Migrate(ctx, migrations); err != nil {
		_ = s.Close()
		return nil, err
	}
	return store, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS movies (
		id BIGSERIAL PRIMARY KEY,
		external_id BIGINT UNIQUE,
		title TEXT NOT NULL,
		poster TEXT NOT NULL DEFAULT '',
		release_year INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS user_movies (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		movie_id BIGINT NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
		status TEXT NOT NULL CHECK(status IN ('watchlist','liked','disliked')),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, movie_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_user_movies_user_status ON user_movies(user_id, status);`,
	`CREATE INDEX IF NOT EXISTS idx_user_movies_movie ON user_movies(movie_id);`,
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
