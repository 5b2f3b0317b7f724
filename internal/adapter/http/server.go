// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"net/http"
	"time"

	"movierec/internal/app"
	"movierec/internal/domain"
	"movierec/internal/metrics"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"golang.org/x/oauth2"
)

// OIDCConfig holds the optional single sign-on provider.
type OIDCConfig struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
}

// Options configures the router.
type Options struct {
	CORSOrigins []string
	// AuthRateLimit requests per AuthRateWindow are allowed per client IP on
	// /api/Auth. Zero disables the limit.
	AuthRateLimit  int
	AuthRateWindow time.Duration
	OIDC           OIDCConfig
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	auth   *app.AuthService
	movies *app.MovieService
	opts   Options
}

// New creates a Server wired to the given application services.
func New(auth *app.AuthService, movies *app.MovieService, opts Options) *Server {
	return &Server{auth: auth, movies: movies, opts: opts}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(accessLog)
	r.Use(instrument)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})

		r.Route("/Auth", func(r chi.Router) {
			if s.opts.AuthRateLimit > 0 {
				r.Use(httprate.Limit(s.opts.AuthRateLimit, s.opts.AuthRateWindow,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
						writeError(w, http.StatusTooManyRequests, "too many requests")
					}),
				))
			}
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Get("/sso/login", s.handleSSOLogin)
			r.Get("/sso/callback", s.handleSSOCallback)
		})

		r.Route("/Movies", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.handleListMovies(domain.StatusAny, "GetMovies"))
			r.Get("/watchlist", s.handleListMovies(domain.StatusWatchlist, "GetWatchList"))
			r.Get("/LikedMovies", s.handleListMovies(domain.StatusLiked, "GetLikedMovies"))
			r.Get("/DislikedMovies", s.handleListMovies(domain.StatusDisliked, "GetDislikedMovies"))
			r.Get("/exists/{externalId}", s.handleMovieExists)
			r.Get("/{movieId}", s.handleGetMovie)
			r.Post("/", s.handleAddMovie)
			r.Put("/", s.handleUpdateMovie)
			r.Delete("/{movieId}", s.handleDeleteMovie)
		})
	})

	return r
}
