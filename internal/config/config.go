package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// FileLoggingConfig represents file-based logging configuration
type FileLoggingConfig struct {
	Enabled    bool   `json:"enabled"`      // Whether file logging is enabled
	Filename   string `json:"filename"`     // Log file path (empty = XDG cache path)
	MaxSizeMB  int    `json:"max_size_mb"`  // Max file size in MB before rotation
	MaxBackups int    `json:"max_backups"`  // Max number of backup files to keep
	MaxAgeDays int    `json:"max_age_days"` // Max age in days before deletion
	Compress   bool   `json:"compress"`     // Whether to compress rotated files
}

// Config represents the mediapool configuration
type Config struct {
	SampleRate    int                `json:"sample_rate"`            // Output sample rate in Hz
	Channels      int                `json:"channels"`               // Output channel count
	MaxVoices     int                `json:"max_voices"`             // Voice pool size
	AudioBackend  string             `json:"audio_backend"`          // Audio backend (auto, malgo, oto)
	PlayStyle     string             `json:"play_style"`             // Default play style (once, loop, grain, next)
	PolyphonyMode string             `json:"polyphony_mode"`         // Default polyphony (mono, poly)
	BankPaths     []string           `json:"bank_paths"`             // Additional bank search paths
	TrackingDB    string             `json:"tracking_db"`            // Trigger diagnostics DB path (empty = disabled)
	LogLevel      string             `json:"log_level"`              // Log level (debug, info, warn, error)
	FileLogging   *FileLoggingConfig `json:"file_logging,omitempty"` // File logging configuration
}

// EnvConfigOverride names the environment variable that points at an
// explicit config file, bypassing the XDG search
const EnvConfigOverride = "MEDIAPOOL_CONFIG"

// Manager handles loading, saving and validating configuration
type Manager struct {
	xdg *XDGDirs
	fs  afero.Fs
}

// NewManager creates a configuration manager on the real filesystem
func NewManager() *Manager {
	slog.Debug("creating new config manager")
	return &Manager{
		xdg: NewXDGDirs(),
		fs:  afero.NewOsFs(),
	}
}

// NewManagerWithFilesystem creates a configuration manager with a custom
// filesystem, used by tests
func NewManagerWithFilesystem(fs afero.Fs) *Manager {
	slog.Debug("creating new config manager with custom filesystem")
	return &Manager{
		xdg: NewXDGDirs(),
		fs:  fs,
	}
}

// Default returns the default configuration
func (m *Manager) Default() *Config {
	return &Config{
		SampleRate:    48000,
		Channels:      2,
		MaxVoices:     16,
		AudioBackend:  "auto",
		PlayStyle:     "once",
		PolyphonyMode: "mono",
		BankPaths:     []string{},
		LogLevel:      "warn",
		FileLogging: &FileLoggingConfig{
			Enabled:    false,
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// LoadFromFile loads configuration from a specific file, merged over the
// defaults
func (m *Manager) LoadFromFile(filePath string) (*Config, error) {
	slog.Debug("loading config from file", "file_path", filePath)

	data, err := afero.ReadFile(m.fs, filePath)
	if err != nil {
		slog.Error("failed to read config file", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := m.Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		slog.Error("failed to parse config file", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := m.Validate(cfg); err != nil {
		return nil, err
	}

	slog.Info("config loaded",
		"file_path", filePath,
		"sample_rate", cfg.SampleRate,
		"max_voices", cfg.MaxVoices,
		"audio_backend", cfg.AudioBackend)
	return cfg, nil
}

// Load resolves the configuration: the env override first, then the XDG
// config search path, then the built-in defaults.
func (m *Manager) Load() (*Config, error) {
	if override := os.Getenv(EnvConfigOverride); override != "" {
		slog.Debug("using config override", "path", override)
		return m.LoadFromFile(override)
	}

	for _, path := range m.xdg.ConfigPaths("config.json") {
		exists, err := afero.Exists(m.fs, path)
		if err != nil || !exists {
			continue
		}
		return m.LoadFromFile(path)
	}

	slog.Debug("no config file found, using defaults")
	return m.Default(), nil
}

// Save writes the configuration to the user config path
func (m *Manager) Save(cfg *Config) error {
	if err := m.Validate(cfg); err != nil {
		return err
	}

	path := m.xdg.UserConfigPath("config.json")
	if err := m.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := afero.WriteFile(m.fs, path, data, 0644); err != nil {
		slog.Error("failed to write config file", "path", path, "error", err)
		return fmt.Errorf("failed to write config file: %w", err)
	}

	slog.Info("config saved", "path", path)
	return nil
}

// Validate checks a configuration for out-of-range values
func (m *Manager) Validate(cfg *Config) error {
	if cfg.SampleRate < 8000 || cfg.SampleRate > 192000 {
		return fmt.Errorf("invalid sample rate %d (must be 8000-192000)", cfg.SampleRate)
	}
	if cfg.Channels < 1 || cfg.Channels > 8 {
		return fmt.Errorf("invalid channel count %d (must be 1-8)", cfg.Channels)
	}
	if cfg.MaxVoices < 1 || cfg.MaxVoices > 128 {
		return fmt.Errorf("invalid max voices %d (must be 1-128)", cfg.MaxVoices)
	}
	switch cfg.PlayStyle {
	case "once", "loop", "grain", "next":
	default:
		return fmt.Errorf("invalid play style %q", cfg.PlayStyle)
	}
	switch cfg.PolyphonyMode {
	case "mono", "poly":
	default:
		return fmt.Errorf("invalid polyphony mode %q", cfg.PolyphonyMode)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	return nil
}

// LogLevelValue parses the configured log level into a slog.Level
func (c *Config) LogLevelValue() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
