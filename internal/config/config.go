// Package config loads habitvault settings from YAML files via viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mschirtzinger/habitvault/internal/types"
)

// Config is the full settings document.
type Config struct {
	// VaultDir is the vault root on disk. Empty means the working directory.
	VaultDir string `mapstructure:"vault_dir" yaml:"vault_dir"`

	// Folder holds the habit records, relative to the vault root.
	Folder string `mapstructure:"folder" yaml:"folder"`

	DefaultColor       string   `mapstructure:"default_color" yaml:"default_color"`
	ShowStreaks        bool     `mapstructure:"show_streaks" yaml:"show_streaks"`
	ShowCompletionRate bool     `mapstructure:"show_completion_rate" yaml:"show_completion_rate"`
	WeekStartsOnMonday bool     `mapstructure:"week_starts_on_monday" yaml:"week_starts_on_monday"`
	Suggestions        []string `mapstructure:"suggestions" yaml:"suggestions"`

	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Dashboard DashboardConfig `mapstructure:"dashboard" yaml:"dashboard"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// WatchConfig configures the vault watcher.
type WatchConfig struct {
	// Debounce is a Go duration string such as "100ms". "0" reloads on
	// every event.
	Debounce string `mapstructure:"debounce" yaml:"debounce"`
}

// CacheConfig configures the SQLite query cache.
type CacheConfig struct {
	// Path of the cache database. Relative paths resolve against the vault.
	Path string `mapstructure:"path" yaml:"path"`
}

// DashboardConfig configures the live WebSocket feed.
type DashboardConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

// LogConfig configures diagnostic output. An empty File logs to stderr.
type LogConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Folder:             "Habits",
		DefaultColor:       types.DefaultColor,
		ShowStreaks:        true,
		ShowCompletionRate: true,
		WeekStartsOnMonday: true,
		Suggestions: []string{
			"Exercise for 30 minutes",
			"Read for 20 minutes",
			"Meditate",
			"Drink 8 glasses of water",
			"Practice gratitude",
			"Learn something new",
			"No social media after 9 PM",
		},
		Watch: WatchConfig{
			Debounce: "100ms",
		},
		Cache: CacheConfig{
			Path: filepath.Join(".habits", "cache.db"),
		},
		Dashboard: DashboardConfig{
			Port: 8080,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Validate checks the settings the rest of the program relies on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Folder) == "" {
		return fmt.Errorf("folder cannot be empty")
	}
	if !types.ValidColor(c.DefaultColor) {
		return fmt.Errorf("default_color must look like #RRGGBB, got %q", c.DefaultColor)
	}
	if _, err := c.DebounceInterval(); err != nil {
		return err
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port out of range: %d", c.Dashboard.Port)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		return fmt.Errorf("log sizes cannot be negative")
	}
	return nil
}

// DebounceInterval parses Watch.Debounce.
func (c *Config) DebounceInterval() (time.Duration, error) {
	s := strings.TrimSpace(c.Watch.Debounce)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid watch.debounce %q: %w", c.Watch.Debounce, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("watch.debounce cannot be negative")
	}
	return d, nil
}

// VaultPath returns the absolute vault root.
func (c *Config) VaultPath() (string, error) {
	dir := c.VaultDir
	if dir == "" {
		dir = "."
	}
	return filepath.Abs(expandHome(dir))
}

// CachePath returns the cache database path, resolved against the vault.
func (c *Config) CachePath() (string, error) {
	p := expandHome(c.Cache.Path)
	if filepath.IsAbs(p) {
		return p, nil
	}
	root, err := c.VaultPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, p), nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// WriteDefault writes the default configuration as YAML to path, creating
// parent directories. An existing file is left alone unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	content := "# habitvault configuration\n" + string(data)
	return os.WriteFile(path, []byte(content), 0644)
}
