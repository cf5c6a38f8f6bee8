package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
	envFiles   []string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// SetEnvFiles sets the dotenv files read before environment lookup.
// By default ./.env is read when present.
func (l *Loader) SetEnvFiles(paths ...string) {
	l.envFiles = paths
}

// Load loads configuration with proper precedence:
// defaults < config file < .env < env vars < CLI flags
func (l *Loader) Load() (*Config, error) {
	// .env never overrides variables already set in the environment
	l.loadEnvFiles()

	// Start with defaults
	cfg := DefaultConfig()

	// Set up Viper
	l.setupViper(cfg)

	// Load config file
	if err := l.loadConfigFile(); err != nil {
		// Config file is optional, only error if explicitly specified
		if l.configFile != "" {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply env var overrides (Viper's Unmarshal doesn't properly merge env vars for nested structs)
	l.applyEnvOverrides(cfg)

	// Expand ~ in paths
	expandPaths(cfg)

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (l *Loader) loadEnvFiles() {
	files := l.envFiles
	if files == nil {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// expandPaths expands ~ in all path-related config fields.
func expandPaths(cfg *Config) {
	cfg.Global.DataDir = expandTilde(cfg.Global.DataDir)
	cfg.Global.ConfigDir = expandTilde(cfg.Global.ConfigDir)
	cfg.Local.DatabasePath = expandTilde(cfg.Local.DatabasePath)
	cfg.Logging.File = expandTilde(cfg.Logging.File)
}

// setupViper configures Viper with defaults and environment bindings.
func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "ren"))
	}

	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "ren"))
	}

	// Current directory
	v.AddConfigPath(".")

	// Environment variables - REN_ prefix
	v.SetEnvPrefix("REN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults from config struct
	l.setDefaults(cfg)

	// Explicitly bind environment variables (Viper's Unmarshal has issues without this)
	bindEnvVars(v)

	// AutomaticEnv for any keys not explicitly bound
	v.AutomaticEnv()
}

// setDefaults sets all default values in Viper.
func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	// Global
	v.SetDefault("global.data_dir", cfg.Global.DataDir)
	v.SetDefault("global.config_dir", cfg.Global.ConfigDir)
	v.SetDefault("global.user_id", cfg.Global.UserID)

	// Backend
	v.SetDefault("backend.mode", cfg.Backend.Mode)
	v.SetDefault("backend.base_url", cfg.Backend.BaseURL)
	v.SetDefault("backend.timeout", cfg.Backend.Timeout)

	// Local
	v.SetDefault("local.database_path", cfg.Local.DatabasePath)
	v.SetDefault("local.page_size", cfg.Local.PageSize)
	v.SetDefault("local.busy_timeout_ms", cfg.Local.BusyTimeoutMs)
	v.SetDefault("local.replier", cfg.Local.Replier)

	// Model
	v.SetDefault("model.name", cfg.Model.Name)
	v.SetDefault("model.api_key", cfg.Model.APIKey)
	v.SetDefault("model.project", cfg.Model.Project)
	v.SetDefault("model.location", cfg.Model.Location)
	v.SetDefault("model.timeout", cfg.Model.Timeout)

	// Logging
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.enable_caller", cfg.Logging.EnableCaller)

	// TUI
	v.SetDefault("tui.max_input_length", cfg.TUI.MaxInputLength)
	v.SetDefault("tui.load_threshold", cfg.TUI.LoadThreshold)
	v.SetDefault("tui.show_timestamps", cfg.TUI.ShowTimestamps)

	// Metrics
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
}

// loadConfigFile attempts to load the configuration file.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use defaults
			return nil
		}
		return err
	}

	return nil
}

// ConfigFileUsed returns the config file that was loaded.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Set sets a Viper value by key. Values set here win over every other source.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// AllSettings returns the merged settings as a nested map.
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDefault loads configuration with default search paths.
func LoadDefault() (*Config, error) {
	loader := NewLoader()
	return loader.Load()
}

// envBindings lists every key that supports a REN_* override.
var envBindings = []string{
	// Global
	"global.data_dir",
	"global.config_dir",
	"global.user_id",
	// Backend
	"backend.mode",
	"backend.base_url",
	"backend.timeout",
	// Local
	"local.database_path",
	"local.page_size",
	"local.busy_timeout_ms",
	"local.replier",
	// Model
	"model.name",
	"model.api_key",
	"model.project",
	"model.location",
	"model.timeout",
	// Logging
	"logging.level",
	"logging.format",
	"logging.file",
	"logging.enable_caller",
	// TUI
	"tui.max_input_length",
	"tui.load_threshold",
	"tui.show_timestamps",
	// Metrics
	"metrics.addr",
}

// fallbackEnv maps keys to well-known variables honoured after REN_*.
var fallbackEnv = map[string][]string{
	"model.api_key":  {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"model.project":  {"GOOGLE_CLOUD_PROJECT"},
	"model.location": {"GOOGLE_CLOUD_LOCATION"},
}

// bindEnvVars binds environment variables for config keys.
// Viper's Unmarshal has issues with env vars on nested structs unless explicitly bound.
func bindEnvVars(v *viper.Viper) {
	for _, key := range envBindings {
		// Convert key to env var format: backend.base_url -> REN_BACKEND_BASE_URL
		envVar := "REN_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		names := append([]string{key, envVar}, fallbackEnv[key]...)
		_ = v.BindEnv(names...)
	}
}

// applyEnvOverrides manually applies env var overrides to the config struct.
// This is needed because Viper's Unmarshal doesn't properly merge env vars
// for nested struct fields when a config file is present.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	v := l.v

	if userID := v.GetString("global.user_id"); userID != "" {
		cfg.Global.UserID = userID
	}
	if mode := v.GetString("backend.mode"); mode != "" {
		cfg.Backend.Mode = mode
	}
	if baseURL := v.GetString("backend.base_url"); baseURL != "" {
		cfg.Backend.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if path := v.GetString("local.database_path"); path != "" {
		cfg.Local.DatabasePath = path
	}
	if apiKey := v.GetString("model.api_key"); apiKey != "" {
		cfg.Model.APIKey = apiKey
	}

	// Logging
	if level := v.GetString("logging.level"); level != "" && level != "info" { // "info" is default
		cfg.Logging.Level = level
	}
	if format := v.GetString("logging.format"); format != "" && format != "console" { // "console" is default
		cfg.Logging.Format = format
	}
	if file := v.GetString("logging.file"); file != "" {
		cfg.Logging.File = file
	}
}
