package config

import "testing"

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	t.Setenv("MIMIR_DB_DSN", "file::memory:?cache=shared")
	t.Setenv("MIMIR_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("MIMIR_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN == "" {
		t.Fatal("expected DB DSN to be set")
	}
	if cfg.JWTSigningKey != "supersecret" {
		t.Fatalf("unexpected jwt signing key: %q", cfg.JWTSigningKey)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("expected sqlite default backend, got %q", cfg.DBBackend)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("MIMIR_DB_DSN", "file::memory:?cache=shared")
	t.Setenv("MIMIR_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("MIMIR_DB_BACKEND", "oracle")

	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail for unknown backend")
	}
}

func TestLoadReportsLegacyEnvWarnings(t *testing.T) {
	t.Setenv("MIMIR_DB_DSN", "file::memory:?cache=shared")
	t.Setenv("MIMIR_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("MIMIRTV_ENV", "production")
	t.Setenv("MIMIR_GUIDE_HOURS", "48")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.LegacyEnvWarnings) != 2 {
		t.Fatalf("expected 2 legacy env warnings, got %d", len(cfg.LegacyEnvWarnings))
	}
}

func TestLoadProductionRequiresAdminKeyHash(t *testing.T) {
	t.Setenv("MIMIR_DB_DSN", "file::memory:?cache=shared")
	t.Setenv("MIMIR_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("MIMIR_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("expected production config load to fail without admin key hash")
	}

	t.Setenv("MIMIR_ADMIN_KEY_HASH", "$2a$10$abcdefghijklmnopqrstuv")
	if _, err := Load(); err != nil {
		t.Fatalf("expected production config load with admin key hash to succeed: %v", err)
	}
}

func TestLoadValidatesEventBridge(t *testing.T) {
	t.Setenv("MIMIR_DB_DSN", "file::memory:?cache=shared")
	t.Setenv("MIMIR_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("MIMIR_EVENT_BRIDGE", "nats")

	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail when nats bridge has no url")
	}

	t.Setenv("MIMIR_NATS_URL", "nats://localhost:4222")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.EventBridge != "nats" {
		t.Fatalf("unexpected event bridge: %q", cfg.EventBridge)
	}
}
