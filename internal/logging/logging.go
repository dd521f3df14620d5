// Package logging sets up structured, rotating, file-plus-stderr logging
// for the riftindex server process.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config controls where and how verbosely riftindex logs.
type Config struct {
	// Level is the minimum level emitted: debug, info, warn, or error.
	Level string
	// FilePath is the active log file. Empty disables file logging
	// entirely, leaving stderr (if WriteToStderr) as the only sink.
	FilePath string
	// MaxSizeMB is the size threshold, in megabytes, that triggers
	// rotation. Zero falls back to a 10MB default in Setup.
	MaxSizeMB int
	// MaxFiles bounds how many rotated segments are kept. Zero falls
	// back to a 5-segment default in Setup.
	MaxFiles int
	// WriteToStderr additionally mirrors every line to stderr.
	WriteToStderr bool
}

// DefaultConfig returns info-level logging to DefaultLogPath with stderr
// mirroring enabled.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig is DefaultConfig with Level raised to debug.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

func (c Config) withDefaults() Config {
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxFiles <= 0 {
		c.MaxFiles = 5
	}
	return c
}

// Setup builds a JSON slog.Logger writing to cfg.FilePath (rotated) and,
// if cfg.WriteToStderr, to stderr as well. The returned cleanup func
// syncs and closes the log file; callers should defer it.
//
// cfg.FilePath == "" skips file logging and returns a stderr-only logger,
// which lets callers run Setup unconditionally rather than branching on
// whether a file path is configured.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	cfg = cfg.withDefaults()
	level := LevelFromString(cfg.Level)

	if cfg.FilePath == "" {
		handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		return slog.New(handler), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}

	writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	sink := sinkFor(writer, cfg.WriteToStderr)
	handler := slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: level})

	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}
	return slog.New(handler), cleanup, nil
}

func sinkFor(writer io.Writer, alsoStderr bool) io.Writer {
	if alsoStderr {
		return io.MultiWriter(writer, os.Stderr)
	}
	return writer
}

// SetupDefault runs Setup with DebugConfig and installs the result as
// slog's process-wide default logger. Returns a cleanup func to defer.
func SetupDefault() (func(), error) {
	logger, cleanup, err := Setup(DebugConfig())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

// LevelFromString maps a case-insensitive level name to a slog.Level,
// defaulting to Info for anything unrecognized.
func LevelFromString(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

// DefaultLogPath is ~/.riftindex/server.log, falling back to the system
// temp directory if the home directory can't be resolved.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".riftindex", "server.log")
	}
	return filepath.Join(home, ".riftindex", "server.log")
}

// EnsureLogDir creates the directory holding DefaultLogPath, if missing.
func EnsureLogDir() error {
	return os.MkdirAll(filepath.Dir(DefaultLogPath()), 0o755)
}
