package adapthttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	adapthttp "movierec/internal/adapter/http"
	"movierec/internal/adapter/memory"
	"movierec/internal/app"
	"movierec/internal/domain"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

// ---------------------------------------------------------------------------
// Mock repository (function-fields pattern)
// ---------------------------------------------------------------------------

type mockMovieRepo struct {
	domain.MovieRepository
	listFn func(ctx context.Context, userID int64, q domain.MovieQuery) (domain.Page[domain.Movie], error)
}

func (m *mockMovieRepo) ListMovies(ctx context.Context, userID int64, q domain.MovieQuery) (domain.Page[domain.Movie], error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, q)
	}
	return domain.Page[domain.Movie]{}, nil
}

// ---------------------------------------------------------------------------
// Test-server helper
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T, movies domain.MovieRepository, opts adapthttp.Options) *httptest.Server {
	t.Helper()

	db := memory.New()
	if movies == nil {
		movies = db
	}
	tokens := app.NewTokenIssuer([]byte(testSigningKey), "movierec", "movierec-clients")
	authSvc := app.NewAuthService(db, tokens, app.DefaultPasswordPolicy())
	movieSvc := app.NewMovieService(movies, app.DefaultPageLimits())

	ts := httptest.NewServer(adapthttp.New(authSvc, movieSvc, opts).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, token string, payload any) (*http.Response, map[string]any) {
	t.Helper()

	var body io.Reader
	switch p := payload.(type) {
	case nil:
	case string:
		body = strings.NewReader(p)
	default:
		b, err := json.Marshal(p)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return resp, m
}

func register(t *testing.T, ts *httptest.Server, username, email string) string {
	t.Helper()
	resp, body := do(t, http.MethodPost, ts.URL+"/api/Auth/register", "", map[string]any{
		"username": username, "email": email, "password": "P@ssw0rd1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register: expected 200, got %d: %v", resp.StatusCode, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("register: missing token in %v", body)
	}
	if _, ok := body["userId"]; !ok {
		t.Fatalf("register: missing userId in %v", body)
	}
	return token
}

func titles(t *testing.T, body map[string]any) []string {
	t.Helper()
	items, ok := body["items"].([]any)
	if !ok {
		t.Fatalf("response missing items: %v", body)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.(map[string]any)["title"].(string))
	}
	return out
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, adapthttp.Options{})

	resp, body := do(t, http.MethodGet, ts.URL+"/api/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok=true, got %v", body["ok"])
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	ts := newTestServer(t, nil, adapthttp.Options{})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if got := resp.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("expected propagated request id, got %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, adapthttp.Options{})

	do(t, http.MethodGet, ts.URL+"/api/health", "", nil)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck
	b, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(b), `movierec_http_requests_total{method="GET",route="/api/health",status="200"}`) {
		t.Errorf("expected health request to be counted by route pattern")
	}
}

func TestMovieLifecycle(t *testing.T) {
	ts := newTestServer(t, nil, adapthttp.Options{})
	token := register(t, ts, "alice", "alice@x.com")

	resp, body := do(t, http.MethodPost, ts.URL+"/api/Auth/login", "", map[string]any{
		"email": "alice@x.com", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", resp.StatusCode)
	}
	if body["error"] != "Invalid Username or Password" {
		t.Fatalf("bad login: unexpected body %v", body)
	}

	resp, body = do(t, http.MethodPost, ts.URL+"/api/Auth/login", "", map[string]any{
		"email": "ALICE@x.com", "password": "P@ssw0rd1",
	})
	if resp.StatusCode != http.StatusOK || body["token"] == "" {
		t.Fatalf("login: expected 200 with token, got %d: %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodPost, ts.URL+"/api/Movies", token, map[string]any{
		"externalId": 603, "title": "The Matrix",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add: expected 200, got %d: %v", resp.StatusCode, body)
	}
	if body["status"] != "watchlist" {
		t.Fatalf("add: expected watchlist default, got %v", body["status"])
	}
	movieID := int64(body["movieId"].(float64))

	list := func(path string) []string {
		t.Helper()
		resp, body := do(t, http.MethodGet, ts.URL+"/api/Movies"+path, token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
		return titles(t, body)
	}

	if got := list("/watchlist"); len(got) != 1 || got[0] != "The Matrix" {
		t.Fatalf("watchlist: got %v", got)
	}
	if got := list("/LikedMovies"); len(got) != 0 {
		t.Fatalf("liked: expected empty, got %v", got)
	}

	resp, body = do(t, http.MethodPut, ts.URL+"/api/Movies", token, map[string]any{
		"movieId": movieID, "status": "liked",
	})
	if resp.StatusCode != http.StatusOK || body["status"] != "liked" {
		t.Fatalf("update: got %d: %v", resp.StatusCode, body)
	}
	if got := list("/LikedMovies"); len(got) != 1 {
		t.Fatalf("liked after update: got %v", got)
	}
	if got := list("/watchlist"); len(got) != 0 {
		t.Fatalf("watchlist after update: got %v", got)
	}

	resp, body = do(t, http.MethodDelete, fmt.Sprintf("%s/api/Movies/%d", ts.URL, movieID), token, nil)
	if resp.StatusCode != http.StatusOK || body["title"] != "The Matrix" {
		t.Fatalf("delete: got %d: %v", resp.StatusCode, body)
	}
	for _, path := range []string{"/watchlist", "/LikedMovies", "/DislikedMovies", ""} {
		if got := list(path); len(got) != 0 {
			t.Fatalf("%s after delete: expected empty, got %v", path, got)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t, nil, adapthttp.Options{})
	register(t, ts, "alice", "alice@x.com")

	tests := []struct {
		name      string
		payload   map[string]any
		wantField string
		wantMsg   string
	}{
		{
			name:      "weak password",
			payload:   map[string]any{"username": "bob", "email": "bob@x.com", "password": "abc"},
			wantField: "password",
			wantMsg:   "Passwords must be at least 6 characters.",
		},
		{
			name:      "duplicate email",
			payload:   map[string]any{"username": "alice2", "email": "Alice@x.com", "password": "P@ssw0rd1"},
			wantField: "email",
			wantMsg:   "Email 'alice@x.com' is already taken.",
		},
		{
			name:      "missing username",
			payload:   map[string]any{"email": "carol@x.com", "password": "P@ssw0rd1"},
			wantField: "username",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, ts.URL+"/api/Auth/register", "", tc.payload)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			errs, ok := body["errors"].([]any)
			if !ok || len(errs) == 0 {
				t.Fatalf("expected errors list, got %v", body)
			}
			found := false
			for _, e := range errs {
				fe := e.(map[string]any)
				if fe["field"] == tc.wantField && (tc.wantMsg == "" || fe["message"] == tc.wantMsg) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error for %q (%q), got %v", tc.wantField, tc.wantMsg, errs)
			}
		})
	}
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	ts := newTestServer(t, nil, adapthttp.Options{})

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"malformed", "Bearer not-a-jwt"},
		{"wrong scheme", "Basic YWxpY2U6cGFzcw=="},
		{"empty bearer", "Bearer "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/Movies/watchlist", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close() //nolint:errcheck

			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.StatusCode)
			}
			var body map[string]string
			_ = json.NewDecoder(resp.Body).Decode(&body)
			if body["error"] != "unauthorized" {
				t.Errorf("expected uniform error, got %v", body)
			}
		})
	}
}

func TestCrossUserAccess(t *testing.T) {
	ts := newTestServer(t, nil, adapthttp.Options{})
	alice := register(t, ts, "alice", "alice@x.com")
	bob := register(t, ts, "bob", "bob@x.com")

	_, body := do(t, http.MethodPost, ts.URL+"/api/Movies", alice, map[string]any{"externalId": 603, "title": "The Matrix"})
	movieURL := fmt.Sprintf("%s/api/Movies/%d", ts.URL, int64(body["movieId"].(float64)))

	resp, body := do(t, http.MethodGet, movieURL, bob, nil)
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "Error in GetMovie" {
		t.Fatalf("get: expected 400 Error in GetMovie, got %d: %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodDelete, movieURL, bob, nil)
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "Error in DeleteMovie" {
		t.Fatalf("delete: expected 400 Error in DeleteMovie, got %d: %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, ts.URL+"/api/Movies/exists/603", bob, nil)
	if resp.StatusCode != http.StatusOK || body["exists"] != false {
		t.Fatalf("exists: expected false for bob, got %d: %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, movieURL, alice, nil)
	if resp.StatusCode != http.StatusOK || body["title"] != "The Matrix" {
		t.Fatalf("owner get: got %d: %v", resp.StatusCode, body)
	}
}

func TestMovieExists(t *testing.T) {
	ts := newTestServer(t, nil, adapthttp.Options{})
	token := register(t, ts, "alice", "alice@x.com")

	resp, body := do(t, http.MethodGet, ts.URL+"/api/Movies/exists/603", token, nil)
	if resp.StatusCode != http.StatusOK || body["exists"] != false {
		t.Fatalf("expected exists=false, got %d: %v", resp.StatusCode, body)
	}
	if _, ok := body["movie"]; ok {
		t.Errorf("expected no movie field, got %v", body)
	}

	do(t, http.MethodPost, ts.URL+"/api/Movies", token, map[string]any{"externalId": 603, "title": "The Matrix", "status": "disliked"})

	resp, body = do(t, http.MethodGet, ts.URL+"/api/Movies/exists/603", token, nil)
	if resp.StatusCode != http.StatusOK || body["exists"] != true {
		t.Fatalf("expected exists=true, got %d: %v", resp.StatusCode, body)
	}
	movie, ok := body["movie"].(map[string]any)
	if !ok || movie["status"] != "disliked" {
		t.Errorf("expected disliked movie, got %v", body["movie"])
	}
}

func TestListPagination(t *testing.T) {
	ts := newTestServer(t, nil, adapthttp.Options{})
	token := register(t, ts, "alice", "alice@x.com")

	for i := 1; i <= 25; i++ {
		resp, _ := do(t, http.MethodPost, ts.URL+"/api/Movies", token, map[string]any{
			"externalId": i, "title": fmt.Sprintf("Movie %02d", i),
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("add %d: got %d", i, resp.StatusCode)
		}
	}

	tests := []struct {
		query     string
		wantLen   int
		wantFirst string
	}{
		{"", 10, "Movie 01"},
		{"?pageNumber=1&pageSize=10", 10, "Movie 11"},
		{"?pageNumber=2&pageSize=10", 5, "Movie 21"},
		{"?pageNumber=-3", 10, "Movie 01"},
		{"?pageNumber=abc&pageSize=xyz", 10, "Movie 01"},
		{"?pageSize=1000", 25, "Movie 01"},
		{"?filter=movie%202", 6, "Movie 20"},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			resp, body := do(t, http.MethodGet, ts.URL+"/api/Movies/watchlist"+tc.query, token, nil)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			got := titles(t, body)
			if len(got) != tc.wantLen {
				t.Fatalf("expected %d items, got %d", tc.wantLen, len(got))
			}
			if got[0] != tc.wantFirst {
				t.Errorf("expected first %q, got %q", tc.wantFirst, got[0])
			}
			if tc.query != "?filter=movie%202" && body["totalCount"] != float64(25) {
				t.Errorf("expected totalCount 25, got %v", body["totalCount"])
			}
		})
	}
}

func TestStorageFailureIsOperationScoped(t *testing.T) {
	repo := &mockMovieRepo{
		listFn: func(context.Context, int64, domain.MovieQuery) (domain.Page[domain.Movie], error) {
			return domain.Page[domain.Movie]{}, errors.New("connection refused")
		},
	}
	ts := newTestServer(t, repo, adapthttp.Options{})
	token := register(t, ts, "alice", "alice@x.com")

	tests := []struct {
		path string
		want string
	}{
		{"", "Error in GetMovies"},
		{"/watchlist", "Error in GetWatchList"},
		{"/LikedMovies", "Error in GetLikedMovies"},
		{"/DislikedMovies", "Error in GetDislikedMovies"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			resp, body := do(t, http.MethodGet, ts.URL+"/api/Movies"+tc.path, token, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			if body["error"] != tc.want {
				t.Errorf("expected %q, got %v", tc.want, body["error"])
			}
		})
	}
}

func TestMalformedInput(t *testing.T) {
	ts := newTestServer(t, nil, adapthttp.Options{})
	token := register(t, ts, "alice", "alice@x.com")

	tests := []struct {
		name    string
		method  string
		path    string
		payload any
		want    string
	}{
		{"bad path id", http.MethodDelete, "/api/Movies/abc", nil, "Error in DeleteMovie"},
		{"bad exists id", http.MethodGet, "/api/Movies/exists/abc", nil, "Error in MovieExists"},
		{"bad json add", http.MethodPost, "/api/Movies", "{not json", "Error in AddMovie"},
		{"bad json update", http.MethodPut, "/api/Movies", `{"movieId":`, "Error in UpdateMovie"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := do(t, tc.method, ts.URL+tc.path, token, tc.payload)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			if body["error"] != tc.want {
				t.Errorf("expected %q, got %v", tc.want, body)
			}
		})
	}

	resp, body := do(t, http.MethodPut, ts.URL+"/api/Movies", token, map[string]any{"movieId": 1, "status": "loved"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid status: expected 400, got %d", resp.StatusCode)
	}
	if _, ok := body["errors"]; !ok {
		t.Errorf("invalid status: expected itemized errors, got %v", body)
	}
}

func TestAuthRateLimit(t *testing.T) {
	ts := newTestServer(t, nil, adapthttp.Options{AuthRateLimit: 2, AuthRateWindow: time.Minute})

	var last int
	var body map[string]any
	for range 3 {
		var resp *http.Response
		resp, body = do(t, http.MethodPost, ts.URL+"/api/Auth/login", "", map[string]any{"email": "a@x.com", "password": "x"})
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("expected 429 after limit, got %d", last)
	}
	if body["error"] != "too many requests" {
		t.Errorf("expected JSON error body, got %v", body)
	}
}

func TestSSODisabled(t *testing.T) {
	ts := newTestServer(t, nil, adapthttp.Options{})

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	for _, path := range []string{"/api/Auth/sso/login", "/api/Auth/sso/callback"} {
		resp, err := client.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil, adapthttp.Options{CORSOrigins: []string{"http://localhost:5173"}})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/Movies", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("expected allowed origin, got %q", got)
	}
}
