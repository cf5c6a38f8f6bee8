// Package config handles ren configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Backend modes.
const (
	BackendHTTP  = "http"
	BackendLocal = "local"
)

// Replier kinds for the local backend.
const (
	ReplierEcho   = "echo"
	ReplierGemini = "gemini"
)

// Config is the root configuration structure for ren.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Backend selects and configures the conversation service.
	Backend BackendConfig `yaml:"backend" mapstructure:"backend"`

	// Local configures the offline SQLite backend.
	Local LocalConfig `yaml:"local" mapstructure:"local"`

	// Model configures reply generation for the local backend.
	Model ModelConfig `yaml:"model" mapstructure:"model"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`

	// Metrics settings
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// GlobalConfig contains global ren settings.
type GlobalConfig struct {
	// DataDir is where ren stores its data (default: ~/.local/share/ren).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/ren).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`

	// UserID identifies the user whose conversations are loaded.
	UserID string `yaml:"user_id" mapstructure:"user_id"`
}

// BackendConfig contains conversation service settings.
type BackendConfig struct {
	// Mode is http (remote REN API) or local (SQLite + replier).
	Mode string `yaml:"mode" mapstructure:"mode"`

	// BaseURL is the REN API root, without the /api suffix.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// LocalConfig contains settings for the local backend.
type LocalConfig struct {
	// DatabasePath is the SQLite database file path.
	DatabasePath string `yaml:"database_path" mapstructure:"database_path"`

	// PageSize is the number of messages per history page.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`

	// BusyTimeoutMs is how long to wait for a locked database (milliseconds).
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`

	// Replier is echo or gemini.
	Replier string `yaml:"replier" mapstructure:"replier"`
}

// ModelConfig contains generative model settings.
type ModelConfig struct {
	// Name is the model to call.
	Name string `yaml:"name" mapstructure:"name"`

	// APIKey authenticates against the Gemini API.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// Project and Location select Vertex AI instead of the Gemini API.
	Project  string `yaml:"project" mapstructure:"project"`
	Location string `yaml:"location" mapstructure:"location"`

	// Timeout bounds a single generation call.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path. The chat TUI always logs to a file.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// TUIConfig contains chat screen settings.
type TUIConfig struct {
	// MaxInputLength caps the composer length in characters.
	MaxInputLength int `yaml:"max_input_length" mapstructure:"max_input_length"`

	// LoadThreshold is how many messages from the oldest loaded message the
	// viewport may get before older history is requested.
	LoadThreshold int `yaml:"load_threshold" mapstructure:"load_threshold"`

	// ShowTimestamps shows message times under bubbles.
	ShowTimestamps bool `yaml:"show_timestamps" mapstructure:"show_timestamps"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables it.
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "ren"),
			ConfigDir: filepath.Join(homeDir, ".config", "ren"),
		},
		Backend: BackendConfig{
			Mode:    BackendHTTP,
			BaseURL: "http://localhost:8000",
			Timeout: 30 * time.Second,
		},
		Local: LocalConfig{
			DatabasePath:  "", // Will be set to DataDir/ren.db
			PageSize:      10,
			BusyTimeoutMs: 5000,
			Replier:       ReplierEcho,
		},
		Model: ModelConfig{
			Name:    "gemma-3-27b-it",
			Timeout: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		TUI: TUIConfig{
			MaxInputLength: 500,
			LoadThreshold:  3,
			ShowTimestamps: false,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend.Mode {
	case BackendHTTP:
		u, err := url.Parse(c.Backend.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("backend.base_url must be an absolute URL")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("backend.base_url must use http or https")
		}
	case BackendLocal:
		switch c.Local.Replier {
		case ReplierEcho, ReplierGemini:
			// ok
		default:
			return fmt.Errorf("local.replier must be one of echo, gemini")
		}
	default:
		return fmt.Errorf("backend.mode must be one of http, local")
	}

	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}

	if c.Local.PageSize < 1 {
		return fmt.Errorf("local.page_size must be at least 1")
	}

	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}

	if c.TUI.MaxInputLength < 1 {
		return fmt.Errorf("tui.max_input_length must be at least 1")
	}

	if c.TUI.LoadThreshold < 0 {
		return fmt.Errorf("tui.load_threshold must not be negative")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the full local database path.
func (c *Config) DatabasePath() string {
	if c.Local.DatabasePath != "" {
		return c.Local.DatabasePath
	}
	return filepath.Join(c.Global.DataDir, "ren.db")
}

// LogFilePath returns the log file path used when stderr is unavailable.
func (c *Config) LogFilePath() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(c.Global.DataDir, "ren.log")
}

// ContextPath returns the path of the persisted CLI context.
func (c *Config) ContextPath() string {
	return filepath.Join(c.Global.ConfigDir, "context.yaml")
}
