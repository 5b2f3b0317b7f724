package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"movierec/internal/domain"
)

const movieView = `SELECT m.id, COALESCE(m.external_id, 0), m.title, m.poster, m.release_year,
		um.status, um.created_at, um.updated_at
	FROM user_movies um
	JOIN movies m ON m.id = um.movie_id`

// ListMovies returns a page of the user's movies in the order they were added.
func (s *Store) ListMovies(ctx context.Context, userID int64, q domain.MovieQuery) (domain.Page[domain.Movie], error) {
	where := []string{"um.user_id = ?"}
	args := []any{userID}
	if q.Status != domain.StatusAny {
		where = append(where, "um.status = ?")
		args = append(args, string(q.Status))
	}
	if q.Filter != "" {
		where = append(where, s.dialect.lower("m.title")+` LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(q.Filter))+"%")
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var page domain.Page[domain.Movie]
	countQuery := `SELECT COUNT(*) FROM user_movies um JOIN movies m ON m.id = um.movie_id` + cond
	if err := s.db.QueryRowContext(ctx, s.q(countQuery), args...).Scan(&page.TotalCount); err != nil {
		return page, fmt.Errorf("count movies: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		s.q(movieView+cond+` ORDER BY um.id LIMIT ? OFFSET ?`),
		append(args, q.PageSize, q.Offset())...,
	)
	if err != nil {
		return page, fmt.Errorf("list movies: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	page.Items = make([]domain.Movie, 0, q.PageSize)
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, *m)
	}
	return page, rows.Err()
}

// GetMovie returns one of the user's movies.
func (s *Store) GetMovie(ctx context.Context, userID, movieID int64) (*domain.Movie, error) {
	return s.getMovie(ctx, s.db, userID, movieID)
}

// GetMovieByExternalID returns the user's movie with the given catalogue id.
func (s *Store) GetMovieByExternalID(ctx context.Context, userID, externalID int64) (*domain.Movie, error) {
	row := s.db.QueryRowContext(ctx, s.q(movieView+` WHERE um.user_id = ? AND m.external_id = ?`), userID, externalID)
	return scanMovie(row)
}

// AddMovie finds or creates the catalogue entry and upserts the user's
// relation to it.
func (s *Store) AddMovie(ctx context.Context, userID int64, draft domain.MovieDraft) (*domain.Movie, error) {
	var out *domain.Movie
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now().UTC()

		movieID, err := s.catalogueID(ctx, tx, draft, now)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, s.q(`INSERT INTO user_movies(user_id, movie_id, status, created_at, updated_at)
			VALUES(?, ?, ?, ?, ?)
			ON CONFLICT (user_id, movie_id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`),
			userID, movieID, string(draft.Status), now, now,
		)
		if err != nil {
			return fmt.Errorf("upsert relation: %w", err)
		}

		out, err = s.getMovie(ctx, tx, userID, movieID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) catalogueID(ctx context.Context, tx *sql.Tx, draft domain.MovieDraft, now time.Time) (int64, error) {
	var id int64
	if draft.ExternalID <= 0 {
		err := tx.QueryRowContext(ctx,
			s.q(`INSERT INTO movies(external_id, title, poster, release_year, created_at) VALUES(NULL, ?, ?, ?, ?) RETURNING id`),
			draft.Title, draft.Poster, draft.ReleaseYear, now,
		).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert movie: %w", err)
		}
		return id, nil
	}

	_, err := tx.ExecContext(ctx,
		s.q(`INSERT INTO movies(external_id, title, poster, release_year, created_at) VALUES(?, ?, ?, ?, ?)
			ON CONFLICT (external_id) DO NOTHING`),
		draft.ExternalID, draft.Title, draft.Poster, draft.ReleaseYear, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert movie: %w", err)
	}
	if err := tx.QueryRowContext(ctx, s.q(`SELECT id FROM movies WHERE external_id = ?`), draft.ExternalID).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup movie: %w", err)
	}
	return id, nil
}

// UpdateStatus changes the status of the user's relation to a movie.
func (s *Store) UpdateStatus(ctx context.Context, userID, movieID int64, status domain.Status) (*domain.Movie, error) {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE user_movies SET status = ?, updated_at = ? WHERE user_id = ? AND movie_id = ?`),
		string(status), s.now().UTC(), userID, movieID,
	)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	} else if n == 0 {
		return nil, domain.ErrNotFound
	}
	return s.GetMovie(ctx, userID, movieID)
}

// DeleteMovie removes the user's relation and, when no other user still
// references it, the catalogue entry.
func (s *Store) DeleteMovie(ctx context.Context, userID, movieID int64) (*domain.Movie, error) {
	var out *domain.Movie
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		m, err := s.getMovie(ctx, tx, userID, movieID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM user_movies WHERE user_id = ? AND movie_id = ?`), userID, movieID); err != nil {
			return fmt.Errorf("delete relation: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			s.q(`DELETE FROM movies WHERE id = ? AND NOT EXISTS (SELECT 1 FROM user_movies WHERE movie_id = ?)`),
			movieID, movieID,
		); err != nil {
			return fmt.Errorf("delete orphan movie: %w", err)
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) getMovie(ctx context.Context, db queryer, userID, movieID int64) (*domain.Movie, error) {
	row := db.QueryRowContext(ctx, s.q(movieView+` WHERE um.user_id = ? AND m.id = ?`), userID, movieID)
	return scanMovie(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMovie(sc scanner) (*domain.Movie, error) {
	var (
		m      domain.Movie
		status string
	)
	err := sc.Scan(&m.ID, &m.ExternalID, &m.Title, &m.Poster, &m.ReleaseYear, &status, &m.AddedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan movie: %w", err)
	}
	m.Status = domain.Status(status)
	return &m, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
