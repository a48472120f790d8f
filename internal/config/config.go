// Package config loads the process-wide configuration. It is read
// once at startup; nothing in the pipeline re-reads the environment
// after Load returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting the pipeline needs.
type Config struct {
	HTTPPort int

	DatabaseHost     string
	DatabasePort     int
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseSSLMode  string

	RedisAddr string

	DefaultTimeLimitMs      int
	DefaultMemoryLimitMB    int
	MaxConcurrentExecutions int

	LogLevel string
}

// Load reads godotenv's ".env" (if present, ignored otherwise) and then
// the real process environment, applying documented defaults.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional; real env vars always win regardless

	cfg := &Config{
		HTTPPort: envInt("HTTP_PORT", 3000),

		DatabaseHost:     envStr("DATABASE_HOST", "localhost"),
		DatabasePort:     envInt("DATABASE_PORT", 5432),
		DatabaseName:     envStr("DATABASE_NAME", "codeexec"),
		DatabaseUser:     envStr("DATABASE_USER", "postgres"),
		DatabasePassword: envStr("DATABASE_PASSWORD", ""),
		DatabaseSSLMode:  envStr("DATABASE_SSLMODE", "disable"),

		RedisAddr: envStr("REDIS_ADDR", "localhost:6379"),

		DefaultTimeLimitMs:      envInt("DEFAULT_TIME_LIMIT_MS", 5000),
		DefaultMemoryLimitMB:    envInt("DEFAULT_MEMORY_MB", 256),
		MaxConcurrentExecutions: envInt("MAX_CONCURRENT_EXECUTIONS", 10),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration is usable before anything
// starts listening on a socket or dialing the database.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("config: HTTP_PORT must be 1-65535, got %d", c.HTTPPort)
	}
	if c.MaxConcurrentExecutions < 1 {
		return fmt.Errorf("config: MAX_CONCURRENT_EXECUTIONS must be >= 1, got %d", c.MaxConcurrentExecutions)
	}
	if c.DefaultTimeLimitMs < 100 || c.DefaultTimeLimitMs > 60_000 {
		return fmt.Errorf("config: DEFAULT_TIME_LIMIT_MS must be 100-60000, got %d", c.DefaultTimeLimitMs)
	}
	if c.DefaultMemoryLimitMB < 32 || c.DefaultMemoryLimitMB > 2048 {
		return fmt.Errorf("config: DEFAULT_MEMORY_MB must be 32-2048, got %d", c.DefaultMemoryLimitMB)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: LOG_LEVEL must be one of debug/info/warn/error, got %q", c.LogLevel)
	}
	return nil
}

// DSN builds a libpq-style connection string for pgx.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DatabaseUser, c.DatabasePassword, c.DatabaseHost, c.DatabasePort, c.DatabaseName, c.DatabaseSSLMode,
	)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
