// Package config loads server configuration from defaults, an optional YAML
// file, a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Auth    AuthConfig    `koanf:"auth"`
	Storage StorageConfig `koanf:"storage"`
	API     APIConfig     `koanf:"api"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	AuthRateLimit   int           `koanf:"auth_rate_limit"`
	AuthRateWindow  time.Duration `koanf:"auth_rate_window"`
}

// AuthConfig holds token signing and password policy settings.
type AuthConfig struct {
	SigningKey string         `koanf:"signing_key"`
	Issuer     string         `koanf:"issuer"`
	Audience   string         `koanf:"audience"`
	Password   PasswordConfig `koanf:"password"`
	OIDC       OIDCConfig     `koanf:"oidc"`
}

// PasswordConfig mirrors app.PasswordPolicy.
type PasswordConfig struct {
	MinLength      int  `koanf:"min_length"`
	RequireDigit   bool `koanf:"require_digit"`
	RequireLower   bool `koanf:"require_lower"`
	RequireUpper   bool `koanf:"require_upper"`
	RequireSpecial bool `koanf:"require_special"`
}

// OIDCConfig enables single sign-on through an OpenID Connect provider.
type OIDCConfig struct {
	Enabled      bool   `koanf:"enabled"`
	IssuerURL    string `koanf:"issuer_url"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RedirectURL  string `koanf:"redirect_url"`
}

// StorageConfig selects the repository backend.
type StorageConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// APIConfig bounds list endpoints.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// LoggingConfig is passed to logging.Init.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// MinSigningKeyLength is the shortest accepted HS256 key in bytes.
const MinSigningKeyLength = 32

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"http://localhost:5173"},
			AuthRateLimit:   20,
			AuthRateWindow:  time.Minute,
		},
		Auth: AuthConfig{
			Issuer:   "movierec",
			Audience: "movierec-clients",
			Password: PasswordConfig{
				MinLength:      6,
				RequireDigit:   true,
				RequireLower:   true,
				RequireUpper:   true,
				RequireSpecial: true,
			},
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
			DSN:    "movierec.db",
		},
		API: APIConfig{
			DefaultPageSize: 10,
			MaxPageSize:     100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.AuthRateLimit < 0 {
		errs = append(errs, errors.New("server.auth_rate_limit must not be negative"))
	}

	if len(c.Auth.SigningKey) < MinSigningKeyLength {
		errs = append(errs, fmt.Errorf("auth.signing_key must be at least %d bytes", MinSigningKeyLength))
	}
	if c.Auth.Issuer == "" {
		errs = append(errs, errors.New("auth.issuer is required"))
	}
	if c.Auth.Audience == "" {
		errs = append(errs, errors.New("auth.audience is required"))
	}
	if c.Auth.Password.MinLength < 1 {
		errs = append(errs, errors.New("auth.password.min_length must be positive"))
	}
	if o := c.Auth.OIDC; o.Enabled && (o.IssuerURL == "" || o.ClientID == "" || o.RedirectURL == "") {
		errs = append(errs, errors.New("auth.oidc requires issuer_url, client_id and redirect_url when enabled"))
	}

	if !slices.Contains([]string{DriverPostgres, DriverSQLite, DriverMemory}, c.Storage.Driver) {
		errs = append(errs, fmt.Errorf("storage.driver %q is not one of postgres, sqlite, memory", c.Storage.Driver))
	} else if c.Storage.Driver != DriverMemory && c.Storage.DSN == "" {
		errs = append(errs, fmt.Errorf("storage.dsn is required for driver %s", c.Storage.Driver))
	}

	if c.API.DefaultPageSize < 1 || c.API.MaxPageSize < c.API.DefaultPageSize {
		errs = append(errs, errors.New("api page sizes must satisfy 1 <= default_page_size <= max_page_size"))
	}

	return errors.Join(errs...)
}
