package config

import (
	"os"
	"testing"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, "DATABASE_URL", "postgres://localhost/lims_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.RawResultQueue != "lab.raw-results" {
		t.Errorf("expected default raw result queue, got %s", cfg.RawResultQueue)
	}
	if cfg.LabQueue != "lab.core" {
		t.Errorf("expected default lab queue, got %s", cfg.LabQueue)
	}
	if cfg.ConsumerWorkers != 4 {
		t.Errorf("expected 4 consumer workers, got %d", cfg.ConsumerWorkers)
	}
	if !cfg.IsDev() {
		t.Error("expected development mode by default")
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	setEnv(t, "DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Error("expected error for missing DATABASE_URL")
	}
}

func TestLoadRejectsSameQueues(t *testing.T) {
	setEnv(t, "DATABASE_URL", "postgres://localhost/lims_test")
	setEnv(t, "RAW_RESULT_QUEUE", "lab.shared")
	setEnv(t, "LAB_QUEUE", "lab.shared")

	if _, err := Load(); err == nil {
		t.Error("expected error when both queues share a name")
	}
}

func TestLoadRejectsZeroWorkers(t *testing.T) {
	setEnv(t, "DATABASE_URL", "postgres://localhost/lims_test")
	setEnv(t, "CONSUMER_WORKERS", "0")

	if _, err := Load(); err == nil {
		t.Error("expected error for zero consumer workers")
	}
}
