// Package config handles loading and saving surf configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/surf/config.yaml
//   - State:   ~/.local/state/surf/ (session, response cache)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is used when no backend URL is configured.
const DefaultBaseURL = "http://localhost:8420"

// DefaultPollInterval is the default interval for live prediction polling.
const DefaultPollInterval = 30 * time.Second

// UIConfig holds UI preference settings.
type UIConfig struct {
	DefaultTab string `yaml:"default_tab,omitempty"` // dashboard, topology, ...
	Compact    bool   `yaml:"compact,omitempty"`     // Single-line header mode
}

// AIConfig holds AI Analyst settings.
type AIConfig struct {
	Provider string `yaml:"provider,omitempty"` // Provider id passed to the backend proxy
}

// Config is the top-level configuration for surf.
type Config struct {
	BaseURL      string         `yaml:"base_url,omitempty"`
	PollInterval time.Duration  `yaml:"poll_interval,omitempty"`
	RetryBackoff time.Duration  `yaml:"retry_backoff,omitempty"` // Identity-mismatch retry delay
	Favorites    map[int]string `yaml:"favorites,omitempty"`     // Number key (1-9) -> project fullName
	UI           UIConfig       `yaml:"ui,omitempty"`
	AI           AIConfig       `yaml:"ai,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		PollInterval: DefaultPollInterval,
		RetryBackoff: 300 * time.Millisecond,
		Favorites:    make(map[int]string),
		UI: UIConfig{
			DefaultTab: "dashboard",
		},
	}
}

// ConfigDir returns the XDG config directory for surf.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "surf")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "surf")
}

// StateDir returns the XDG state directory for surf.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "surf")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "surf")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnv(cfg), nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Favorites == nil {
		cfg.Favorites = make(map[int]string)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 300 * time.Millisecond
	}

	return applyEnv(cfg), nil
}

// applyEnv applies environment variable overrides.
// SURF_BASE_URL takes precedence over the config file.
func applyEnv(cfg Config) Config {
	if url := strings.TrimSpace(os.Getenv("SURF_BASE_URL")); url != "" {
		cfg.BaseURL = url
	}
	return cfg
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// FavoriteProject returns the project fullName assigned to number key n (1-9),
// or "" if none.
func (c Config) FavoriteProject(n int) string {
	return c.Favorites[n]
}

// SetFavorite assigns a project fullName to a number key (1-9).
func (c *Config) SetFavorite(n int, fullName string) {
	if c.Favorites == nil {
		c.Favorites = make(map[int]string)
	}
	if fullName == "" {
		delete(c.Favorites, n)
	} else {
		c.Favorites[n] = fullName
	}
}
