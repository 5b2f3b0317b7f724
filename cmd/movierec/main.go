package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	adapthttp "movierec/internal/adapter/http"
	"movierec/internal/adapter/memory"
	"movierec/internal/adapter/postgres"
	"movierec/internal/adapter/sqlite"
	"movierec/internal/app"
	"movierec/internal/config"
	"movierec/internal/domain"
	"movierec/internal/logging"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

func main() {
	if err := run(); err != nil {
		log := logging.Logger()
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log := logging.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, movies, closer, err := openStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	defer func() { _ = closer.Close() }()
	log.Info().Str("driver", cfg.Storage.Driver).Msg("store ready")

	tokens := app.NewTokenIssuer([]byte(cfg.Auth.SigningKey), cfg.Auth.Issuer, cfg.Auth.Audience)
	policy := app.PasswordPolicy{
		MinLength:      cfg.Auth.Password.MinLength,
		RequireDigit:   cfg.Auth.Password.RequireDigit,
		RequireLower:   cfg.Auth.Password.RequireLower,
		RequireUpper:   cfg.Auth.Password.RequireUpper,
		RequireSpecial: cfg.Auth.Password.RequireSpecial,
	}
	authSvc := app.NewAuthService(users, tokens, policy)
	movieSvc := app.NewMovieService(movies, app.PageLimits{
		DefaultSize: cfg.API.DefaultPageSize,
		MaxSize:     cfg.API.MaxPageSize,
	})

	sso, err := oidcConfig(ctx, cfg.Auth.OIDC)
	if err != nil {
		return err
	}

	h := adapthttp.New(authSvc, movieSvc, adapthttp.Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		AuthRateLimit:  cfg.Server.AuthRateLimit,
		AuthRateWindow: cfg.Server.AuthRateWindow,
		OIDC:           sso,
	}).Handler()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg config.StorageConfig) (domain.UserRepository, domain.MovieRepository, io.Closer, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := postgres.Open(cfg.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, s, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, s, nil
	case config.DriverMemory:
		db := memory.New()
		return db, db, closerFunc(func() error { return nil }), nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func oidcConfig(ctx context.Context, cfg config.OIDCConfig) (adapthttp.OIDCConfig, error) {
	if !cfg.Enabled {
		return adapthttp.OIDCConfig{}, nil
	}
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return adapthttp.OIDCConfig{}, fmt.Errorf("oidc provider: %w", err)
	}
	return adapthttp.OIDCConfig{
		Enabled:  true,
		Provider: provider,
		OAuth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}
