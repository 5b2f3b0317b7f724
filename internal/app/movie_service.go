package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"movierec/internal/domain"
	"movierec/internal/validation"
)

// PageLimits bounds list requests.
type PageLimits struct {
	DefaultSize int
	MaxSize     int
}

// DefaultPageLimits matches the list defaults of the public API.
func DefaultPageLimits() PageLimits {
	return PageLimits{DefaultSize: 10, MaxSize: 100}
}

// MovieService applies ownership and list rules on top of MovieRepository.
type MovieService struct {
	repo   domain.MovieRepository
	limits PageLimits
}

// NewMovieService creates a new movie service.
func NewMovieService(repo domain.MovieRepository, limits PageLimits) *MovieService {
	return &MovieService{repo: repo, limits: limits}
}

// List returns one page of the user's movies. Out of range paging values are
// clamped rather than rejected.
func (s *MovieService) List(ctx context.Context, userID int64, q domain.MovieQuery) (domain.Page[domain.Movie], error) {
	if q.Status != domain.StatusAny && !q.Status.Valid() {
		return domain.Page[domain.Movie]{}, fmt.Errorf("unknown status %q", q.Status)
	}
	q.Filter = strings.TrimSpace(q.Filter)
	if q.PageNumber < 0 {
		q.PageNumber = 0
	}
	switch {
	case q.PageSize <= 0:
		q.PageSize = s.limits.DefaultSize
	case q.PageSize > s.limits.MaxSize:
		q.PageSize = s.limits.MaxSize
	}

	page, err := s.repo.ListMovies(ctx, userID, q)
	if err != nil {
		return domain.Page[domain.Movie]{}, fmt.Errorf("list movies: %w", err)
	}
	if page.Items == nil {
		page.Items = []domain.Movie{}
	}
	return page, nil
}

// Get returns one of the user's movies.
func (s *MovieService) Get(ctx context.Context, userID, movieID int64) (*domain.Movie, error) {
	if movieID <= 0 {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetMovie(ctx, userID, movieID)
}

// FindByExternalID reports whether the user already has the catalogue movie
// with the given external id. A nil movie and nil error means it does not.
func (s *MovieService) FindByExternalID(ctx context.Context, userID, externalID int64) (*domain.Movie, error) {
	if externalID <= 0 {
		return nil, nil
	}
	m, err := s.repo.GetMovieByExternalID(ctx, userID, externalID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return m, err
}

// Add records a movie for the user. A draft without a status goes on the
// watchlist; adding a movie the user already has only updates its status.
func (s *MovieService) Add(ctx context.Context, userID int64, draft domain.MovieDraft) (*domain.Movie, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Poster = strings.TrimSpace(draft.Poster)
	if err := validation.Struct(draft); err != nil {
		return nil, err
	}
	if draft.Status == domain.StatusAny {
		draft.Status = domain.StatusWatchlist
	}
	return s.repo.AddMovie(ctx, userID, draft)
}

// Update changes the status of one of the user's movies.
func (s *MovieService) Update(ctx context.Context, userID int64, upd domain.MovieUpdate) (*domain.Movie, error) {
	if err := validation.Struct(upd); err != nil {
		return nil, err
	}
	return s.repo.UpdateStatus(ctx, userID, upd.ID, upd.Status)
}

// Delete removes the user's relation to a movie and returns what was removed.
func (s *MovieService) Delete(ctx context.Context, userID, movieID int64) (*domain.Movie, error) {
	if movieID <= 0 {
		return nil, domain.ErrNotFound
	}
	return s.repo.DeleteMovie(ctx, userID, movieID)
}
