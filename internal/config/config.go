// Package config loads server configuration from environment variables.
//
// Required variables:
//   - DATABASE_URL: PostgreSQL connection string.
//
// Optional variables:
//   - HTTP_ADDR: listen address for the HTTP server (default ":8080").
//   - LOG_LEVEL: minimum log level, one of debug/info/warn/error
//     (default "info").
//   - AUTH_RATE_LIMIT: max failed auth attempts per minute per IP
//     (default "10", must be > 0 if set).
//   - MAX_JSON_BODY_SIZE: max HTTP JSON request body size in bytes
//     (default "1048576", must be > 0 if set).
//   - PREVIEW_SAMPLE_SIZE: visitor sample size for segment preview
//     (default "1000", must be > 0 if set).
//   - REPEAT_UNTIL_COMPLETED: when "true", until_completed surfaces may
//     reappear within the same session (default "false").
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	defaultHTTPAddr                = ":8080"
	defaultAuthRateLimit           = 10
	defaultMaxJSONBodySize   int64 = 1 << 20 // 1MB
	defaultPreviewSampleSize       = 1000
)

// Config holds the runtime configuration for the nudgz server.
type Config struct {
	DatabaseURL          string
	HTTPAddr             string
	LogLevel             string
	AuthRateLimit        int
	MaxJSONBodySize      int64
	PreviewSampleSize    int
	RepeatUntilCompleted bool
}

// Load reads configuration from environment variables, applying defaults where
// appropriate. It returns an error if required variables are missing or if
// optional values fail validation.
func Load() (Config, error) {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}

	authRateLimit := defaultAuthRateLimit
	if value := strings.TrimSpace(os.Getenv("AUTH_RATE_LIMIT")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse AUTH_RATE_LIMIT: %w", err)
		}
		if parsed <= 0 {
			return Config{}, errors.New("AUTH_RATE_LIMIT must be > 0")
		}
		authRateLimit = parsed
	}

	maxJSONBodySize := defaultMaxJSONBodySize
	if v := strings.TrimSpace(os.Getenv("MAX_JSON_BODY_SIZE")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return Config{}, errors.New("MAX_JSON_BODY_SIZE must be a positive integer (bytes)")
		}
		maxJSONBodySize = n
	}

	previewSampleSize := defaultPreviewSampleSize
	if v := strings.TrimSpace(os.Getenv("PREVIEW_SAMPLE_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, errors.New("PREVIEW_SAMPLE_SIZE must be a positive integer")
		}
		previewSampleSize = n
	}

	repeatUntilCompleted := false
	if v := strings.TrimSpace(os.Getenv("REPEAT_UNTIL_COMPLETED")); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse REPEAT_UNTIL_COMPLETED: %w", err)
		}
		repeatUntilCompleted = parsed
	}

	return Config{
		DatabaseURL:          databaseURL,
		HTTPAddr:             envOrDefault("HTTP_ADDR", defaultHTTPAddr),
		LogLevel:             envOrDefault("LOG_LEVEL", "info"),
		AuthRateLimit:        authRateLimit,
		MaxJSONBodySize:      maxJSONBodySize,
		PreviewSampleSize:    previewSampleSize,
		RepeatUntilCompleted: repeatUntilCompleted,
	}, nil
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
