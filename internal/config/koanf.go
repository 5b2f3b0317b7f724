package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar names an explicit YAML config file.
const PathEnvVar = "CONFIG_PATH"

// DefaultPaths are searched when PathEnvVar is unset.
var DefaultPaths = []string{"config.yaml", "config.yml"}

// envKeys maps environment variables onto config keys. Anything not listed
// is ignored.
var envKeys = map[string]string{
	"ADDR":                    "server.addr",
	"SERVER_READ_TIMEOUT":     "server.read_timeout",
	"SERVER_WRITE_TIMEOUT":    "server.write_timeout",
	"SERVER_SHUTDOWN_TIMEOUT": "server.shutdown_timeout",
	"CORS_ORIGINS":            "server.cors_origins",
	"AUTH_RATE_LIMIT":         "server.auth_rate_limit",
	"AUTH_RATE_WINDOW":        "server.auth_rate_window",

	"JWT_SIGNING_KEY": "auth.signing_key",
	"JWT_ISSUER":      "auth.issuer",
	"JWT_AUDIENCE":    "auth.audience",

	"PASSWORD_MIN_LENGTH":      "auth.password.min_length",
	"PASSWORD_REQUIRE_DIGIT":   "auth.password.require_digit",
	"PASSWORD_REQUIRE_LOWER":   "auth.password.require_lower",
	"PASSWORD_REQUIRE_UPPER":   "auth.password.require_upper",
	"PASSWORD_REQUIRE_SPECIAL": "auth.password.require_special",

	"OIDC_ENABLED":       "auth.oidc.enabled",
	"OIDC_ISSUER_URL":    "auth.oidc.issuer_url",
	"OIDC_CLIENT_ID":     "auth.oidc.client_id",
	"OIDC_CLIENT_SECRET": "auth.oidc.client_secret",
	"OIDC_REDIRECT_URL":  "auth.oidc.redirect_url",

	"STORAGE_DRIVER": "storage.driver",
	"DATABASE_URL":   "storage.dsn",

	"API_DEFAULT_PAGE_SIZE": "api.default_page_size",
	"API_MAX_PAGE_SIZE":     "api.max_page_size",

	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",
}

var sliceKeys = []string{"server.cors_origins"}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := splitSlices(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func envKey(name string) string {
	return envKeys[name]
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// splitSlices turns comma separated env values into lists.
func splitSlices(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		s, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(key, out); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}
