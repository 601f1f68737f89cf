// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by STORAGE_BACKEND.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

type Config struct {
	// Server
	Port int

	// Storage
	StorageBackend   string
	DBPath           string
	DatabaseURL      string
	DBMaxOpenConns   int
	DBMaxIdleConns   int
	DBConnMaxLife    time.Duration
	DBConnectTimeout time.Duration

	// Auth
	JWTSecret string
	TokenTTL  time.Duration
	AdminCode string

	// Logging
	LogLevel  slog.Level
	LogFormat string
}

// Load reads the environment, applies defaults and validates the result.
// Every problem found is reported, not just the first.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	var errs []error
	intVar := func(key, fallback string) int {
		n, err := strconv.Atoi(env(key, fallback))
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("%s must be a non-negative integer", key))
		}
		return n
	}
	durationVar := func(key, fallback string) time.Duration {
		d, err := time.ParseDuration(env(key, fallback))
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration", key))
		}
		return d
	}

	cfg := &Config{
		Port:             intVar("PORT", "8080"),
		StorageBackend:   strings.ToLower(env("STORAGE_BACKEND", BackendLocal)),
		DBPath:           env("DB_PATH", "data/reportnavi.db"),
		DatabaseURL:      env("DATABASE_URL", ""),
		DBMaxOpenConns:   intVar("DB_MAX_OPEN_CONNS", "25"),
		DBMaxIdleConns:   intVar("DB_MAX_IDLE_CONNS", "10"),
		DBConnMaxLife:    durationVar("DB_CONN_MAX_LIFETIME", "30m"),
		DBConnectTimeout: durationVar("DB_CONNECT_TIMEOUT", "5s"),
		JWTSecret:        env("JWT_SECRET", ""),
		TokenTTL:         durationVar("TOKEN_TTL", "24h"),
		AdminCode:        getenv("ADMIN_CODE"),
		LogFormat:        strings.ToLower(env("LOG_FORMAT", "text")),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(env("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if cfg.Port == 0 || cfg.Port > 65535 {
		errs = append(errs, errors.New("PORT must be between 1 and 65535"))
	}

	switch cfg.StorageBackend {
	case BackendLocal:
		if cfg.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the local backend"))
		}
	case BackendRemote:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the remote backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendLocal, BackendRemote, cfg.StorageBackend))
	}

	if len(cfg.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be set to at least 16 characters"))
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// IsRemote reports whether the remote backend was selected.
func (c *Config) IsRemote() bool {
	return c.StorageBackend == BackendRemote
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
