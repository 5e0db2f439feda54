package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/inspecta")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected port 8080, got %q", cfg.Port)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Errorf("Expected 12h session ttl, got %s", cfg.SessionTTL)
	}
	if cfg.CheckHorizonDays != 30 {
		t.Errorf("Expected horizon 30, got %d", cfg.CheckHorizonDays)
	}
	if cfg.OverdueGrace != 2*time.Hour {
		t.Errorf("Expected grace 2h, got %s", cfg.OverdueGrace)
	}
	if cfg.IsProduction() {
		t.Errorf("Expected development env by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("WORKER_COUNT", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %q", cfg.Port)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("Expected 30m, got %s", cfg.SessionTTL)
	}
	if cfg.WorkerCount != 1 {
		t.Errorf("Expected worker count clamped to 1, got %d", cfg.WorkerCount)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for missing DATABASE_URL")
	}
}

func TestLoad_ShortSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("SESSION_SECRET", "short")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for short session secret")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("SESSION_TTL", "forever")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for unparsable duration")
	}
}

func TestHasBootstrap(t *testing.T) {
	setRequired(t)
	t.Setenv("BOOTSTRAP_DOMAIN", "north")
	t.Setenv("BOOTSTRAP_ADMIN_USERNAME", "admin")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HasBootstrap() {
		t.Errorf("Expected bootstrap to require a password")
	}

	cfg.BootstrapAdminPassword = "changeme1"
	if !cfg.HasBootstrap() {
		t.Errorf("Expected bootstrap to be enabled")
	}
}
