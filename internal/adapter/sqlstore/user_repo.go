package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"movierec/internal/domain"
)

const userColumns = `id, username, email, password_hash, created_at`

// GetByEmail finds a user by normalized email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE email = ?`), domain.NormalizeEmail(email))
	return scanUser(row)
}

// GetByID finds a user by id.
func (s *Store) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	return scanUser(row)
}

// Create inserts a user.
func (s *Store) Create(ctx context.Context, username, email, passwordHash string) (*domain.User, error) {
	u := &domain.User{
		Username:     username,
		Email:        domain.NormalizeEmail(email),
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UTC(),
	}
	err := s.db.QueryRowContext(ctx,
		s.q(`INSERT INTO users(username, email, password_hash, created_at) VALUES(?, ?, ?, ?) RETURNING id`),
		u.Username, u.Email, u.PasswordHash, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		if s.dialect.IsUniqueViolation != nil && s.dialect.IsUniqueViolation(err) {
			return nil, errors.Join(domain.ErrEmailTaken, err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
