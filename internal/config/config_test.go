package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.HTTPAddr != DefaultHTTPAddr {
		t.Fatalf("unexpected http addr: %s", cfg.HTTPAddr)
	}
	if cfg.DBDriver != DefaultDBDriver || cfg.DBDSN != DefaultDBDSN {
		t.Fatalf("unexpected db config: %s %s", cfg.DBDriver, cfg.DBDSN)
	}
	if cfg.StageTimeout != DefaultStageTimeout {
		t.Fatalf("unexpected stage timeout: %s", cfg.StageTimeout)
	}
	if cfg.StaleSessionWindow != DefaultStaleSessionWindow {
		t.Fatalf("unexpected stale window: %s", cfg.StaleSessionWindow)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvHTTPAddr, ":9090")
	t.Setenv(EnvDBDriver, "POSTGRES")
	t.Setenv(EnvDBDSN, "host=localhost dbname=studio")
	t.Setenv(EnvStageTimeout, "90s")
	t.Setenv(EnvWebhookURL, "https://hooks.example.com/studio")

	cfg := FromEnv()
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTPAddr)
	}
	if cfg.DBDriver != "postgres" {
		t.Fatalf("driver not lowered: %s", cfg.DBDriver)
	}
	if cfg.StageTimeout != 90*time.Second {
		t.Fatalf("unexpected stage timeout: %s", cfg.StageTimeout)
	}
	if cfg.WebhookURL != "https://hooks.example.com/studio" {
		t.Fatalf("unexpected webhook url: %s", cfg.WebhookURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config must validate: %v", err)
	}
}

func TestYAMLThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("version: 1\nstudio:\n  http_addr: \":7070\"\n  db_dsn: \"file.db\"\n  stage_timeout: \"2m\"\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvDBDSN, "env.db")

	cfg, err := FromYAMLAndEnv()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Fatalf("yaml http addr not applied: %s", cfg.HTTPAddr)
	}
	if cfg.DBDSN != "env.db" {
		t.Fatalf("env must override yaml, got %s", cfg.DBDSN)
	}
	if cfg.StageTimeout != 2*time.Minute {
		t.Fatalf("yaml stage timeout not applied: %s", cfg.StageTimeout)
	}
}

func TestYAMLInvalidDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("studio:\n  stage_timeout: \"soon\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvConfigFile, path)

	if _, err := FromYAMLAndEnv(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := FromEnv()
	cfg.DBDriver = "oracle"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for unknown driver")
	}
}
