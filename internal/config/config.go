/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	BaseURL     string // Public base URL (e.g., http://192.168.1.20:8080)
	DBBackend   DatabaseBackend
	DBDSN       string

	// Auth
	JWTSigningKey string
	AdminKeyHash  string        // bcrypt hash of the admin API key (mimirtv hash-key)
	SessionTTL    time.Duration // admin token lifetime

	// Guide simulation
	GuideHorizon         time.Duration // forward window pre-simulated per channel
	GuideRefreshInterval time.Duration // cadence of the background refresher
	PlaybackSeed         int64         // base seed for per-channel randomness; 0 = time derived

	// Cache / event bridge
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSURL       string // empty disables the NATS bridge
	EventBridge   string // "", "nats" or "redis"
	InstanceID    string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// S3 guide archive configuration
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3PublicBaseURL   string // Optional CDN/CloudFront URL
	S3UsePathStyle    bool   // Required for MinIO

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("MIMIR_ENV", "development"),
		HTTPBind:    getEnv("MIMIR_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("MIMIR_HTTP_PORT", 8080),
		BaseURL:     getEnv("MIMIR_BASE_URL", ""),
		DBBackend:   DatabaseBackend(getEnv("MIMIR_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:       getEnv("MIMIR_DB_DSN", ""),

		JWTSigningKey: getEnv("MIMIR_JWT_SIGNING_KEY", ""),
		AdminKeyHash:  getEnv("MIMIR_ADMIN_KEY_HASH", ""),
		SessionTTL:    time.Duration(getEnvInt("MIMIR_SESSION_TTL_MINUTES", 60)) * time.Minute,

		GuideHorizon:         time.Duration(getEnvInt("MIMIR_GUIDE_HORIZON_HOURS", 24)) * time.Hour,
		GuideRefreshInterval: time.Duration(getEnvInt("MIMIR_GUIDE_REFRESH_MINUTES", 15)) * time.Minute,
		PlaybackSeed:         int64(getEnvInt("MIMIR_PLAYBACK_SEED", 0)),

		RedisAddr:     getEnv("MIMIR_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("MIMIR_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("MIMIR_REDIS_DB", 0),
		NATSURL:       getEnv("MIMIR_NATS_URL", ""),
		EventBridge:   getEnv("MIMIR_EVENT_BRIDGE", ""),
		InstanceID:    getEnv("MIMIR_INSTANCE_ID", ""),

		TracingEnabled:    getEnvBool("MIMIR_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("MIMIR_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("MIMIR_TRACING_SAMPLE_RATE", 1.0),

		S3AccessKeyID:     getEnvAny([]string{"MIMIR_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"MIMIR_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"MIMIR_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"MIMIR_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"MIMIR_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3PublicBaseURL:   getEnvAny([]string{"MIMIR_S3_PUBLIC_BASE_URL", "S3_PUBLIC_BASE_URL"}, ""),
		S3UsePathStyle:    getEnvBool("MIMIR_S3_USE_PATH_STYLE", false),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("MIMIR_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("MIMIR_JWT_SIGNING_KEY must be provided")
	}

	if cfg.GuideHorizon <= 0 {
		return nil, fmt.Errorf("MIMIR_GUIDE_HORIZON_HOURS must be positive")
	}

	if cfg.GuideRefreshInterval <= 0 {
		return nil, fmt.Errorf("MIMIR_GUIDE_REFRESH_MINUTES must be positive")
	}

	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("MIMIR_SESSION_TTL_MINUTES must be positive")
	}

	switch cfg.EventBridge {
	case "", "nats", "redis":
	default:
		return nil, fmt.Errorf("unsupported event bridge %q", cfg.EventBridge)
	}

	if cfg.EventBridge == "nats" && cfg.NATSURL == "" {
		return nil, fmt.Errorf("MIMIR_NATS_URL must be set when the NATS event bridge is enabled")
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if cfg.AdminKeyHash == "" {
			return nil, fmt.Errorf("MIMIR_ADMIN_KEY_HASH must be set in production (generate with: mimirtv hash-key)")
		}
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"MIMIRTV_ENV":        "use MIMIR_ENV",
		"MIMIRTV_DB_DSN":     "use MIMIR_DB_DSN",
		"MIMIRTV_HTTP_PORT":  "use MIMIR_HTTP_PORT",
		"MIMIR_GUIDE_HOURS":  "use MIMIR_GUIDE_HORIZON_HOURS",
		"MIMIR_CHANNEL_SEED": "use MIMIR_PLAYBACK_SEED",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// HTTPAddr joins the configured bind host and port.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// GuideArchiveEnabled reports whether XMLTV snapshots should be uploaded.
func (c *Config) GuideArchiveEnabled() bool {
	return c != nil && c.S3Bucket != ""
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}
