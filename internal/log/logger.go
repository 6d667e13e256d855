// Package log implements structured logging using slog.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"firestige.xyz/facerelay/internal/config"
)

var (
	mu sync.Mutex

	// level is shared by every handler Init installs, so SetLevel takes
	// effect without rebuilding the handler.
	level slog.LevelVar

	// console receives every record. Logs go to stderr so command output on
	// stdout stays machine readable.
	console io.Writer = os.Stderr

	// file is the rotating writer installed by the last Init, if any.
	file *lumberjack.Logger
)

// Init initializes the global logger based on configuration. Calling it
// again replaces the previous logger and closes its log file.
func Init(cfg config.LogConfig) error {
	lvl, err := parseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	// Collect all output writers. The console is always included.
	writers := []io.Writer{console}

	var fw *lumberjack.Logger
	if cfg.Outputs.File.Enabled {
		fw, err = createFileWriter(cfg.Outputs.File)
		if err != nil {
			return fmt.Errorf("failed to create file output: %w", err)
		}
		writers = append(writers, fw)
	}

	multiWriter := io.MultiWriter(writers...)

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: &level,
	}

	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(multiWriter, opts)
	case "text":
		handler = slog.NewTextHandler(multiWriter, opts)
	default:
		return fmt.Errorf("unsupported log format: %s (must be json or text)", cfg.Format)
	}

	mu.Lock()
	defer mu.Unlock()

	level.Set(lvl)
	slog.SetDefault(slog.New(handler))

	if file != nil {
		_ = file.Close()
	}
	file = fw
	return nil
}

// SetLevel changes the level of the installed logger.
func SetLevel(levelStr string) error {
	lvl, err := parseLevel(levelStr)
	if err != nil {
		return err
	}
	level.Set(lvl)
	return nil
}

// Level returns the current log level.
func Level() slog.Level {
	return level.Level()
}

// Close releases the log file, if one is open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

// parseLevel converts string level to slog.Level.
func parseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level: %s", levelStr)
	}
}

// createFileWriter creates a lumberjack file writer for log rotation.
func createFileWriter(fc config.FileOutputConfig) (*lumberjack.Logger, error) {
	if fc.Path == "" {
		return nil, fmt.Errorf("file output requires 'path' field")
	}
	return &lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.Rotation.MaxSizeMB,
		MaxBackups: fc.Rotation.MaxBackups,
		MaxAge:     fc.Rotation.MaxAgeDays,
		Compress:   fc.Rotation.Compress,
	}, nil
}
