package config_test

import (
	"testing"
	"time"

	"github.com/geocoder89/userhub/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load()

	if cfg.Port != 8080 {
		t.Fatalf("default port: got %d", cfg.Port)
	}

	if cfg.PasswordMinLength != 8 {
		t.Fatalf("default password min length: got %d", cfg.PasswordMinLength)
	}

	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("default idempotency TTL: got %v", cfg.IdempotencyTTL)
	}

	if cfg.IdempotencyBackend != "postgres" {
		t.Fatalf("default idempotency backend: got %q", cfg.IdempotencyBackend)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PASSWORD_MIN_LENGTH", "12")
	t.Setenv("IDEMPOTENCY_TTL_HOURS", "1")
	t.Setenv("IDEMPOTENCY_BACKEND", "redis")
	t.Setenv("DB_DSN", "postgres://u:p@db:5432/users?sslmode=disable")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := config.Load()

	if cfg.Port != 9090 {
		t.Fatalf("port override: got %d", cfg.Port)
	}

	if cfg.PasswordMinLength != 12 {
		t.Fatalf("password min length override: got %d", cfg.PasswordMinLength)
	}

	if cfg.IdempotencyTTL != time.Hour {
		t.Fatalf("TTL override: got %v", cfg.IdempotencyTTL)
	}

	if cfg.IdempotencyBackend != "redis" {
		t.Fatalf("backend override: got %q", cfg.IdempotencyBackend)
	}

	if cfg.DBURL != "postgres://u:p@db:5432/users?sslmode=disable" {
		t.Fatalf("DB_DSN must win over the assembled URL: got %q", cfg.DBURL)
	}

	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("CORS origins: got %v", cfg.CORSAllowedOrigins)
	}
}
