// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"sync"
	"time"

	"movierec/internal/domain"
)

type catalogueEntry struct {
	id          int64
	externalID  int64
	title       string
	poster      string
	releaseYear int
}

type relation struct {
	userID    int64
	movieID   int64
	status    domain.Status
	createdAt time.Time
	updatedAt time.Time
}

// DB implements an in-memory database storage.
type DB struct {
	mu        sync.Mutex
	users     []*domain.User
	movies    map[int64]*catalogueEntry
	relations []*relation

	userIDCounter  int64
	movieIDCounter int64

	now func() time.Time
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		movies: make(map[int64]*catalogueEntry),
		now:    time.Now,
	}
}

// Ensure interfaces are met.
var _ domain.UserRepository = (*DB)(nil)
var _ domain.MovieRepository = (*DB)(nil)

// --- UserRepository ---

// GetByEmail retrieves a user by email.
func (db *DB) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	email = domain.NormalizeEmail(email)
	for _, u := range db.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, username, email, passwordHash string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	email = domain.NormalizeEmail(email)
	for _, u := range db.users {
		if u.Email == email {
			return nil, domain.ErrEmailTaken
		}
	}

	db.userIDCounter++
	u := &domain.User{
		ID:           db.userIDCounter,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    db.now().UTC(),
	}
	db.users = append(db.users, u)
	cp := *u
	return &cp, nil
}

// --- MovieRepository ---

// ListMovies returns a page of the user's movies in the order they were added.
func (db *DB) ListMovies(ctx context.Context, userID int64, q domain.MovieQuery) (domain.Page[domain.Movie], error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	page := domain.Page[domain.Movie]{Items: []domain.Movie{}}
	offset := q.Offset()
	for _, r := range db.relations {
		if r.userID != userID {
			continue
		}
		if q.Status != domain.StatusAny && r.status != q.Status {
			continue
		}
		m := db.movies[r.movieID]
		if !domain.MatchesTitle(m.title, q.Filter) {
			continue
		}
		if page.TotalCount >= offset && len(page.Items) < q.PageSize {
			page.Items = append(page.Items, view(m, r))
		}
		page.TotalCount++
	}
	return page, nil
}

// GetMovie returns one of the user's movies.
func (db *DB) GetMovie(ctx context.Context, userID, movieID int64) (*domain.Movie, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, r := db.findRelation(userID, movieID)
	if r == nil {
		return nil, domain.ErrNotFound
	}
	m := view(db.movies[movieID], r)
	return &m, nil
}

// GetMovieByExternalID returns the user's movie with the given catalogue id.
func (db *DB) GetMovieByExternalID(ctx context.Context, userID, externalID int64) (*domain.Movie, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if externalID <= 0 {
		return nil, domain.ErrNotFound
	}
	for _, r := range db.relations {
		if r.userID != userID {
			continue
		}
		if m := db.movies[r.movieID]; m.externalID == externalID {
			out := view(m, r)
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

// AddMovie finds or creates the catalogue entry and upserts the user's
// relation to it.
func (db *DB) AddMovie(ctx context.Context, userID int64, draft domain.MovieDraft) (*domain.Movie, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := db.now().UTC()

	var m *catalogueEntry
	if draft.ExternalID > 0 {
		for _, c := range db.movies {
			if c.externalID == draft.ExternalID {
				m = c
				break
			}
		}
	}
	if m == nil {
		db.movieIDCounter++
		m = &catalogueEntry{
			id:          db.movieIDCounter,
			externalID:  draft.ExternalID,
			title:       draft.Title,
			poster:      draft.Poster,
			releaseYear: draft.ReleaseYear,
		}
		db.movies[m.id] = m
	}

	_, r := db.findRelation(userID, m.id)
	if r == nil {
		r = &relation{userID: userID, movieID: m.id, createdAt: now}
		db.relations = append(db.relations, r)
	}
	r.status = draft.Status
	r.updatedAt = now

	out := view(m, r)
	return &out, nil
}

// UpdateStatus changes the status of the user's relation to a movie.
func (db *DB) UpdateStatus(ctx context.Context, userID, movieID int64, status domain.Status) (*domain.Movie, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, r := db.findRelation(userID, movieID)
	if r == nil {
		return nil, domain.ErrNotFound
	}
	r.status = status
	r.updatedAt = db.now().UTC()

	out := view(db.movies[movieID], r)
	return &out, nil
}

// DeleteMovie removes the user's relation and, when no other user still
// references it, the catalogue entry.
func (db *DB) DeleteMovie(ctx context.Context, userID, movieID int64) (*domain.Movie, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	i, r := db.findRelation(userID, movieID)
	if r == nil {
		return nil, domain.ErrNotFound
	}
	out := view(db.movies[movieID], r)
	db.relations = append(db.relations[:i], db.relations[i+1:]...)

	for _, other := range db.relations {
		if other.movieID == movieID {
			return &out, nil
		}
	}
	delete(db.movies, movieID)
	return &out, nil
}

// CatalogueSize returns the number of distinct movies referenced by any user.
func (db *DB) CatalogueSize() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.movies)
}

// findRelation must be called with mu held.
func (db *DB) findRelation(userID, movieID int64) (int, *relation) {
	for i, r := range db.relations {
		if r.userID == userID && r.movieID == movieID {
			return i, r
		}
	}
	return -1, nil
}

func view(m *catalogueEntry, r *relation) domain.Movie {
	return domain.Movie{
		ID:          m.id,
		ExternalID:  m.externalID,
		Title:       m.title,
		Poster:      m.poster,
		ReleaseYear: m.releaseYear,
		Status:      r.status,
		AddedAt:     r.createdAt,
		UpdatedAt:   r.updatedAt,
	}
}
