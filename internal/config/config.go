package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port string
	Env  string

	DB       DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Identity IdentityConfig
	Throttle ThrottleConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters. Host may be empty, in
// which case Redis-backed components fall back to in-memory equivalents.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// SessionConfig contains admin session policy.
type SessionConfig struct {
	Secret            string
	Duration          time.Duration
	TwoFactorCodeTTL  time.Duration
	TwoFactorCodeSize int
}

// IdentityConfig selects and configures the identity store backend.
// Backend "local" verifies passwords against the administrators table;
// "http" delegates to a managed identity service.
type IdentityConfig struct {
	Backend string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ThrottleConfig contains the failed-login attempt window policy consumed by
// the pluggable throttle hook.
type ThrottleConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis (optional)
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", ""),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Session policy
	cfg.Session.Secret = getEnv("SESSION_SECRET", "")
	cfg.Session.TwoFactorCodeSize = getEnvInt("TWO_FACTOR_CODE_SIZE", 6)

	var err error
	if cfg.Session.Duration, err = parseDurationEnv("SESSION_DURATION", "4h"); err != nil {
		return nil, fmt.Errorf("invalid SESSION_DURATION: %w", err)
	}
	if cfg.Session.TwoFactorCodeTTL, err = parseDurationEnv("TWO_FACTOR_CODE_TTL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid TWO_FACTOR_CODE_TTL: %w", err)
	}

	// Identity store
	cfg.Identity = IdentityConfig{
		Backend: getEnv("IDENTITY_BACKEND", "local"),
		BaseURL: getEnv("IDENTITY_BASE_URL", ""),
		APIKey:  getEnv("IDENTITY_API_KEY", ""),
	}
	if cfg.Identity.Timeout, err = parseDurationEnv("IDENTITY_TIMEOUT", "10s"); err != nil {
		return nil, fmt.Errorf("invalid IDENTITY_TIMEOUT: %w", err)
	}

	// Failed-attempt throttle
	cfg.Throttle.MaxAttempts = getEnvInt("THROTTLE_MAX_ATTEMPTS", 5)
	if cfg.Throttle.Window, err = parseDurationEnv("THROTTLE_WINDOW", "1m"); err != nil {
		return nil, fmt.Errorf("invalid THROTTLE_WINDOW: %w", err)
	}

	// Basic validation for DB parameters.
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}

	if cfg.Session.Secret == "" {
		return nil, errors.New("SESSION_SECRET must be set for admin authentication")
	}

	if cfg.Identity.Backend == "http" && cfg.Identity.BaseURL == "" {
		return nil, errors.New("IDENTITY_BASE_URL must be set when IDENTITY_BACKEND=http")
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be > 0")
	}
	return d, nil
}
