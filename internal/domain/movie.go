package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Status classifies a user's stance on a movie.
type Status string

const (
	// StatusAny matches every relation when listing.
	StatusAny Status = ""
	// StatusWatchlist is the default for newly added movies.
	StatusWatchlist Status = "watchlist"
	StatusLiked     Status = "liked"
	StatusDisliked  Status = "disliked"
)

// ParseStatus parses a relation status. The empty string means watchlist.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusWatchlist:
		return StatusWatchlist, nil
	case StatusLiked:
		return StatusLiked, nil
	case StatusDisliked:
		return StatusDisliked, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Valid reports whether s is one of the three relation statuses.
func (s Status) Valid() bool {
	return s == StatusWatchlist || s == StatusLiked || s == StatusDisliked
}

// Movie is a catalogue movie as seen through one user's relation to it.
type Movie struct {
	ID          int64     `json:"movieId"`
	ExternalID  int64     `json:"externalId,omitempty"`
	Title       string    `json:"title"`
	Poster      string    `json:"poster,omitempty"`
	ReleaseYear int       `json:"releaseYear,omitempty"`
	Status      Status    `json:"status"`
	AddedAt     time.Time `json:"addedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MovieDraft carries what a user submits when adding a movie. The server
// assigns the movie id and takes the user from the caller's identity.
type MovieDraft struct {
	ExternalID  int64  `json:"externalId" validate:"gte=0"`
	Title       string `json:"title" validate:"required,max=300"`
	Poster      string `json:"poster" validate:"max=2048"`
	ReleaseYear int    `json:"releaseYear" validate:"gte=0,lte=9999"`
	Status      Status `json:"status" validate:"omitempty,oneof=watchlist liked disliked"`
}

// MovieUpdate changes the status of an existing relation.
type MovieUpdate struct {
	ID     int64  `json:"movieId" validate:"required,gt=0"`
	Status Status `json:"status" validate:"required,oneof=watchlist liked disliked"`
}

// MovieQuery selects a page of a user's movies.
type MovieQuery struct {
	Status     Status
	Filter     string
	PageNumber int
	PageSize   int
}

// Offset returns the number of rows to skip for a zero-indexed page.
func (q MovieQuery) Offset() int {
	return q.PageNumber * q.PageSize
}

// Page is one slice of a listing plus the total number of matches.
type Page[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
}

// MovieRepository is the port for movie and relation persistence. Every
// operation is scoped to userID; a movie the user has no relation to is
// reported as ErrNotFound.
type MovieRepository interface {
	ListMovies(ctx context.Context, userID int64, q MovieQuery) (Page[Movie], error)
	GetMovie(ctx context.Context, userID, movieID int64) (*Movie, error)
	GetMovieByExternalID(ctx context.Context, userID, externalID int64) (*Movie, error)
	AddMovie(ctx context.Context, userID int64, draft MovieDraft) (*Movie, error)
	UpdateStatus(ctx context.Context, userID, movieID int64, status Status) (*Movie, error)
	DeleteMovie(ctx context.Context, userID, movieID int64) (*Movie, error)
}

// MatchesTitle reports whether title contains filter, ignoring case.
func MatchesTitle(title, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(filter))
}
