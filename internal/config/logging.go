package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogging installs the default slog logger per the configuration: a
// text handler on stderr, optionally teed into a rotating log file.
func SetupLogging(cfg *Config) {
	writers := []io.Writer{os.Stderr}

	if cfg.FileLogging != nil && cfg.FileLogging.Enabled {
		logPath := cfg.FileLogging.Filename
		if logPath == "" {
			logPath = filepath.Join(NewXDGDirs().CachePath("logs"), "mediapool.log")
		}

		fileWriter := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    cfg.FileLogging.MaxSizeMB,
			MaxBackups: cfg.FileLogging.MaxBackups,
			MaxAge:     cfg.FileLogging.MaxAgeDays,
			Compress:   cfg.FileLogging.Compress,
		}
		writers = append(writers, fileWriter)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: cfg.LogLevelValue(),
	})
	slog.SetDefault(slog.New(handler))

	slog.Debug("logging configured",
		"level", cfg.LogLevel,
		"file_logging", cfg.FileLogging != nil && cfg.FileLogging.Enabled)
}
