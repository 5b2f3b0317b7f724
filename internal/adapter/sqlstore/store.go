// Package sqlstore implements the repository ports on database/sql. Queries
// are written with ? placeholders and rewritten per dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"movierec/internal/domain"
)

// Dialect captures the differences between the supported databases.
type Dialect struct {
	Name string
	// Numbered rewrites ? placeholders to $1, $2, ...
	Numbered bool
	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(err error) bool
	// Lower names a Unicode-aware lower-casing SQL function. Empty means LOWER.
	Lower string
}

func (d Dialect) lower(expr string) string {
	fn := d.Lower
	if fn == "" {
		fn = "LOWER"
	}
	return fn + "(" + expr + ")"
}

// Store is a SQL-backed UserRepository and MovieRepository.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var (
	_ domain.UserRepository  = (*Store)(nil)
	_ domain.MovieRepository = (*Store)(nil)
)

// New wraps an open database.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

// DB exposes the underlying pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies schema statements in order.
func (s *Store) Migrate(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) q(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
