// Package config reads settings from the environment, after loading a .env
// file when one is present.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr     string
	GraphQLHTTPURL string
	GraphQLWSURL   string
	ReconnectDelay time.Duration
	HTTPTimeout    time.Duration
	JournalDSN     string // empty disables the journal
	LogLevel       string
	LogFormat      string // json | console
}

// Load reads the configuration. files are .env files to try; none given
// means ".env". A missing file is not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		ListenAddr:     getenv("LISTEN_ADDR", ":3000"),
		GraphQLHTTPURL: getenv("GRAPHQL_HTTP_URL", "http://localhost:8080/graphql"),
		GraphQLWSURL:   getenv("GRAPHQL_WS_URL", "ws://localhost:8080/graphql"),
		JournalDSN:     os.Getenv("JOURNAL_DSN"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      getenv("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.ReconnectDelay, err = duration("RECONNECT_DELAY", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.HTTPTimeout, err = duration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return Config{}, fmt.Errorf("LOG_FORMAT: want json or console, got %q", cfg.LogFormat)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", key, d)
	}
	return d, nil
}
