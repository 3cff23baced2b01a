package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("expected default base URL %q, got %q", DefaultBaseURL, cfg.BaseURL)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("expected poll interval 30s, got %v", cfg.PollInterval)
	}
	if cfg.RetryBackoff != 300*time.Millisecond {
		t.Errorf("expected retry backoff 300ms, got %v", cfg.RetryBackoff)
	}
	if cfg.UI.DefaultTab != "dashboard" {
		t.Errorf("expected default tab 'dashboard', got %q", cfg.UI.DefaultTab)
	}
	if cfg.Favorites == nil {
		t.Error("expected favorites map to be initialized")
	}
}

func TestLoadFrom_NonExistent(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("expected default config, got base URL %q", cfg.BaseURL)
	}
}

func TestLoadFrom_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
base_url: https://risksurface.example.com
poll_interval: 10s
retry_backoff: 500ms

favorites:
  1: acme/payments
  2: acme/web

ui:
  default_tab: topology
  compact: true

ai:
  provider: openai
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.BaseURL != "https://risksurface.example.com" {
		t.Errorf("unexpected base URL %q", cfg.BaseURL)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("expected poll interval 10s, got %v", cfg.PollInterval)
	}
	if cfg.RetryBackoff != 500*time.Millisecond {
		t.Errorf("expected retry backoff 500ms, got %v", cfg.RetryBackoff)
	}
	if cfg.Favorites[1] != "acme/payments" {
		t.Errorf("expected favorite 1 = 'acme/payments', got %q", cfg.Favorites[1])
	}
	if cfg.UI.DefaultTab != "topology" {
		t.Errorf("expected default_tab 'topology', got %q", cfg.UI.DefaultTab)
	}
	if !cfg.UI.Compact {
		t.Error("expected compact mode enabled")
	}
	if cfg.AI.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", cfg.AI.Provider)
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFrom(path)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFrom_EnvOverride(t *testing.T) {
	t.Setenv("SURF_BASE_URL", "http://override:9000")

	cfg, err := LoadFrom("/nonexistent/config.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseURL != "http://override:9000" {
		t.Errorf("expected env override, got %q", cfg.BaseURL)
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.BaseURL = "http://backend:8420"
	cfg.SetFavorite(3, "acme/api")
	cfg.AI.Provider = "anthropic"

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if loaded.BaseURL != "http://backend:8420" {
		t.Errorf("base URL not preserved: %q", loaded.BaseURL)
	}
	if loaded.FavoriteProject(3) != "acme/api" {
		t.Errorf("favorite not preserved: %q", loaded.FavoriteProject(3))
	}
	if loaded.AI.Provider != "anthropic" {
		t.Errorf("provider not preserved: %q", loaded.AI.Provider)
	}
}

func TestSetFavorite_Remove(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetFavorite(1, "acme/web")
	cfg.SetFavorite(1, "")

	if got := cfg.FavoriteProject(1); got != "" {
		t.Errorf("expected favorite removed, got %q", got)
	}
}
