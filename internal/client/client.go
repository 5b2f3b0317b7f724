// Package client is a typed client for the movierec HTTP API. It owns the
// caller's session: login state lives in a SessionStore rather than in
// process globals.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"movierec/internal/domain"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
)

// ErrNotLoggedIn is returned by calls that need a session when none is stored
// or the stored one has expired.
var ErrNotLoggedIn = errors.New("not logged in")

// FieldError is one itemized validation problem reported by the server.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
	Fields  []FieldError
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("api: %d %s", e.Status, e.Message)
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return fmt.Sprintf("api: %d %s", e.Status, strings.Join(msgs, " "))
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock overrides the clock used for session expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client calls the API on behalf of one user.
type Client struct {
	base  string
	http  *http.Client
	store SessionStore
	now   func() time.Time
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, store SessionStore, opts ...Option) *Client {
	c := &Client{
		base:  strings.TrimRight(baseURL, "/"),
		http:  &http.Client{Timeout: 15 * time.Second},
		store: store,
		now:   time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// PageRequest selects a page of a movie list.
type PageRequest struct {
	Filter     string
	PageNumber int
	PageSize   int
}

func (p PageRequest) values() url.Values {
	v := url.Values{}
	if p.Filter != "" {
		v.Set("filter", p.Filter)
	}
	if p.PageNumber > 0 {
		v.Set("pageNumber", strconv.Itoa(p.PageNumber))
	}
	if p.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	return v
}

type authResponse struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Register creates an account and stores the resulting session.
func (c *Client) Register(ctx context.Context, username, email, password string) (*Session, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	return c.authenticate(ctx, "/api/Auth/register", email, body)
}

// Login exchanges credentials for a session and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/api/Auth/login", email, body)
}

func (c *Client) authenticate(ctx context.Context, path, email string, body any) (*Session, error) {
	var res authResponse
	if err := c.do(ctx, http.MethodPost, path, "", body, &res); err != nil {
		return nil, err
	}
	s := &Session{
		Token:     res.Token,
		UserID:    res.UserID,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		ExpiresAt: res.ExpiresAt,
	}
	if err := c.store.Save(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Logout forgets the stored session. Tokens are stateless, so the server is
// not contacted.
func (c *Client) Logout() error {
	return c.store.Clear()
}

// Session returns the stored session, or ErrNotLoggedIn.
func (c *Client) Session() (*Session, error) {
	s, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if s == nil || s.Token == "" || s.Expired(c.now()) {
		return nil, ErrNotLoggedIn
	}
	return s, nil
}

// Movies lists all of the caller's movies.
func (c *Client) Movies(ctx context.Context, p PageRequest) (*domain.Page[domain.Movie], error) {
	return c.list(ctx, "/api/Movies", p)
}

// Watchlist lists movies the caller wants to watch.
func (c *Client) Watchlist(ctx context.Context, p PageRequest) (*domain.Page[domain.Movie], error) {
	return c.list(ctx, "/api/Movies/watchlist", p)
}

// Liked lists movies the caller liked.
func (c *Client) Liked(ctx context.Context, p PageRequest) (*domain.Page[domain.Movie], error) {
	return c.list(ctx, "/api/Movies/LikedMovies", p)
}

// Disliked lists movies the caller disliked.
func (c *Client) Disliked(ctx context.Context, p PageRequest) (*domain.Page[domain.Movie], error) {
	return c.list(ctx, "/api/Movies/DislikedMovies", p)
}

// Lists holds the first page of each relation list.
type Lists struct {
	Watchlist domain.Page[domain.Movie]
	Liked     domain.Page[domain.Movie]
	Disliked  domain.Page[domain.Movie]
}

// Lists fetches the three relation lists concurrently.
func (c *Client) Lists(ctx context.Context, p PageRequest) (*Lists, error) {
	var out Lists
	g, ctx := errgroup.WithContext(ctx)
	fetch := func(dst *domain.Page[domain.Movie], fn func(context.Context, PageRequest) (*domain.Page[domain.Movie], error)) {
		g.Go(func() error {
			page, err := fn(ctx, p)
			if err != nil {
				return err
			}
			*dst = *page
			return nil
		})
	}
	fetch(&out.Watchlist, c.Watchlist)
	fetch(&out.Liked, c.Liked)
	fetch(&out.Disliked, c.Disliked)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) list(ctx context.Context, path string, p PageRequest) (*domain.Page[domain.Movie], error) {
	if q := p.values().Encode(); q != "" {
		path += "?" + q
	}
	var page domain.Page[domain.Movie]
	if err := c.authed(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Movie returns one of the caller's movies.
func (c *Client) Movie(ctx context.Context, id int64) (*domain.Movie, error) {
	var m domain.Movie
	if err := c.authed(ctx, http.MethodGet, "/api/Movies/"+strconv.FormatInt(id, 10), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Exists reports whether the caller already has the catalogue movie with the
// given external id, and returns it if so.
func (c *Client) Exists(ctx context.Context, externalID int64) (bool, *domain.Movie, error) {
	var res struct {
		Exists bool          `json:"exists"`
		Movie  *domain.Movie `json:"movie"`
	}
	if err := c.authed(ctx, http.MethodGet, "/api/Movies/exists/"+strconv.FormatInt(externalID, 10), nil, &res); err != nil {
		return false, nil, err
	}
	return res.Exists, res.Movie, nil
}

// AddMovie adds a movie to one of the caller's lists.
func (c *Client) AddMovie(ctx context.Context, draft domain.MovieDraft) (*domain.Movie, error) {
	var m domain.Movie
	if err := c.authed(ctx, http.MethodPost, "/api/Movies", draft, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMovie moves one of the caller's movies to another list.
func (c *Client) UpdateMovie(ctx context.Context, id int64, status domain.Status) (*domain.Movie, error) {
	var m domain.Movie
	if err := c.authed(ctx, http.MethodPut, "/api/Movies", domain.MovieUpdate{ID: id, Status: status}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteMovie removes one of the caller's movies and returns it.
func (c *Client) DeleteMovie(ctx context.Context, id int64) (*domain.Movie, error) {
	var m domain.Movie
	if err := c.authed(ctx, http.MethodDelete, "/api/Movies/"+strconv.FormatInt(id, 10), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// authed performs a call that needs the stored session. A 401 response clears
// the session.
func (c *Client) authed(ctx context.Context, method, path string, body, out any) error {
	s, err := c.Session()
	if err != nil {
		return err
	}
	err = c.do(ctx, method, path, s.Token, body, out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		if clearErr := c.store.Clear(); clearErr != nil {
			return errors.Join(err, clearErr)
		}
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(b) == 0 {
		return apiErr
	}
	var body struct {
		Error  string       `json:"error"`
		Errors []FieldError `json:"errors"`
	}
	if json.Unmarshal(b, &body) != nil {
		return apiErr
	}
	if body.Error != "" {
		apiErr.Message = body.Error
	}
	apiErr.Fields = body.Errors
	return apiErr
}
