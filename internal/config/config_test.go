package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: "9090"
storage:
  driver: sqlite
sqlite:
  path: /tmp/party.db
quiz:
  scoring_mode: fixed
  enforce_deadline: true
results:
  cache: none
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Storage.Driver != StorageSQLite || cfg.SQLite.Path != "/tmp/party.db" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Quiz.ScoringMode != "fixed" || !cfg.Quiz.EnforceDeadline || cfg.Results.Cache != CacheNone {
		t.Fatalf("quiz/results values not applied: %+v", cfg)
	}
	if cfg.Notify.Driver != NotifyMemory || cfg.Log.Level != "info" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = StoragePostgres
	cfg.Notify.Driver = NotifyRabbitMQ
	cfg.Results.Cache = "disk"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"postgres.url", "rabbitmq.url", "results.cache"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Second); got != time.Second {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("bogus", time.Second); got != time.Second {
		t.Fatalf("expected fallback for bad input, got %v", got)
	}
	if got := TTLDuration("750ms", time.Second); got != 750*time.Millisecond {
		t.Fatalf("expected 750ms, got %v", got)
	}
}
