package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadResolverDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RESOLVER_DELAY_MS", "")
	t.Setenv("RESOLVER_SESSION_EXPIRY_MS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	r := cfg.Resolver
	if r.Delay() != 200*time.Millisecond {
		t.Fatalf("expected default delay 200ms, got %v", r.Delay())
	}
	if r.MaxRetries != 3 || r.InitialBackoff() != time.Second {
		t.Fatalf("unexpected retry defaults: %+v", r)
	}
	if r.TitleSimilarityThreshold != 0.85 || r.AuthorSimilarityThreshold != 0.70 {
		t.Fatalf("unexpected thresholds: %+v", r)
	}
	if r.SessionExpiry() != 15*time.Minute {
		t.Fatalf("expected 15m session expiry, got %v", r.SessionExpiry())
	}
	if r.MaxCandidates != 5 || r.ReviewHashtag != "#review" {
		t.Fatalf("unexpected defaults: %+v", r)
	}
}

func TestLoadResolverFileThenEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookbot.yaml")
	content := []byte("resolver:\n  delayMs: 500\n  maxRetries: 5\n  titleSimilarityThreshold: 0.9\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RESOLVER_MAX_RETRIES", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	r := cfg.Resolver
	if r.DelayMs != 500 {
		t.Fatalf("expected delay from file, got %d", r.DelayMs)
	}
	if r.MaxRetries != 1 {
		t.Fatalf("expected env to override file, got %d", r.MaxRetries)
	}
	if r.TitleSimilarityThreshold != 0.9 {
		t.Fatalf("expected title threshold from file, got %v", r.TitleSimilarityThreshold)
	}
	if r.AuthorSimilarityThreshold != 0.70 {
		t.Fatalf("expected untouched default, got %v", r.AuthorSimilarityThreshold)
	}
}

func TestLoadRejectsInvalidThreshold(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RESOLVER_TITLE_SIMILARITY_THRESHOLD", "1.5")
	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
