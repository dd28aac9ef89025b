package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/arlomb/cardbridge/internal/logger"
)

type Config struct {
	Addr              string
	DBPath            string
	LogLevel          string
	ImportSource      string
	MaxArchiveBytes   int64
	DueCardLimit      int
	RequestTimeoutSec int
}

// Load reads configuration from a .env file (if present) and environment variables,
// applying sensible defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	return Config{
		Addr:              envOr("ADDR", ":8080"),
		DBPath:            envOr("DB_PATH", "file:cardbridge.db"),
		LogLevel:          envOr("LOG_LEVEL", "INFO"),
		ImportSource:      envOr("IMPORT_SOURCE", "anki"),
		MaxArchiveBytes:   envInt64Or("MAX_ARCHIVE_BYTES", 256<<20),
		DueCardLimit:      envIntOr("DUE_CARD_LIMIT", 50),
		RequestTimeoutSec: envIntOr("REQUEST_TIMEOUT_SEC", 60),
	}
}

// Validate checks the configuration for values the server cannot start with.
// All problems are reported at once.
func (c Config) Validate() error {
	var problems []string

	if c.Addr == "" {
		problems = append(problems, "ADDR cannot be empty")
	}
	if c.DBPath == "" {
		problems = append(problems, "DB_PATH cannot be empty")
	}
	if c.ImportSource == "" {
		problems = append(problems, "IMPORT_SOURCE cannot be empty")
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		problems = append(problems, fmt.Sprintf("LOG_LEVEL %q is not a known level", c.LogLevel))
	}
	if c.MaxArchiveBytes <= 0 {
		problems = append(problems, "MAX_ARCHIVE_BYTES must be positive")
	}
	if c.DueCardLimit <= 0 {
		problems = append(problems, "DUE_CARD_LIMIT must be positive")
	}
	if c.RequestTimeoutSec <= 0 {
		problems = append(problems, "REQUEST_TIMEOUT_SEC must be positive")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		logger.Warn("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

func envInt64Or(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
		logger.Warn("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}
