// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	DatabaseURL string

	// S3 storage
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	// PublicBaseURL is the externally reachable URL objects are served from.
	// Defaults to <S3Endpoint>/<S3Bucket> when empty.
	PublicBaseURL string

	// Auth
	JWTSecret string

	// OIDC (optional)
	OIDCIssuerURL string
	OIDCClientID  string

	// Uploads
	MaxUploadSize int64
	PresignTTL    time.Duration

	// MaxStoragePerUser caps the sum of a user's non-trashed file sizes.
	// 0 = unlimited.
	MaxStoragePerUser int64
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr: envOr("METRICS_ADDR", ":9090"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		LogFormat:   envOr("LOG_FORMAT", "json"),
		DatabaseURL: envOr("DATABASE_URL", ""),
		S3Endpoint:  envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:    envOr("S3_BUCKET", "dropit"),
		S3AccessKey: envOr("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey: envOr("S3_SECRET_KEY", "minioadmin"),
		S3Region:    envOr("S3_REGION", "us-east-1"),
		S3UseSSL:    envBool("S3_USE_SSL", false),

		PublicBaseURL: envOr("PUBLIC_BASE_URL", ""),

		JWTSecret:     envOr("JWT_SECRET", ""),
		OIDCIssuerURL: envOr("OIDC_ISSUER_URL", ""),
		OIDCClientID:  envOr("OIDC_CLIENT_ID", ""),

		MaxUploadSize:     envInt64("MAX_UPLOAD_SIZE", 50*1024*1024), // 50MB default
		PresignTTL:        envDuration("PRESIGN_TTL", 15*time.Minute),
		MaxStoragePerUser: envInt64("MAX_STORAGE_PER_USER", 0), // 0 = unlimited
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" && cfg.OIDCIssuerURL == "" {
		return nil, fmt.Errorf("JWT_SECRET or OIDC_ISSUER_URL is required")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
