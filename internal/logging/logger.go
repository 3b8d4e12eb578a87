package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"boxd/internal/config"
)

// LogFileName is the JSON log written under log_dir.
const LogFileName = "boxd.log"

// Options describes a logger with a single destination.
type Options struct {
	Level  string
	Format string
	// Output is a file path, "stdout" or "stderr". Empty means stdout.
	Output      string
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	w, err := openOutput(opts.Output)
	if err != nil {
		return nil, err
	}
	h, err := buildHandler(w, opts.Format, ParseLevel(opts.Level), opts.Development)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

// NewFromConfig creates the process logger: the configured format on stdout
// plus JSON lines appended to <log_dir>/boxd.log.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info"})
	}

	global := ParseLevel(cfg.Logging.Level)
	floor := global
	for _, value := range cfg.Logging.StageOverrides {
		floor = min(floor, ParseLevel(value))
	}

	console, err := buildHandler(os.Stdout, cfg.Logging.Format, floor, false)
	if err != nil {
		return nil, err
	}
	handler := console
	if strings.TrimSpace(cfg.Paths.LogDir) != "" {
		w, err := openOutput(LogFilePath(cfg))
		if err != nil {
			return nil, err
		}
		file, err := buildHandler(w, "json", floor, false)
		if err != nil {
			return nil, err
		}
		handler = newTeeHandler(console, file)
	}
	return withMinLevel(slog.New(handler), global), nil
}

// LogFilePath returns the JSON log file location for cfg.
func LogFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, LogFileName)
}

// ParseLevel maps a config level string onto slog levels. Unknown values map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildHandler(w io.Writer, format string, level slog.Level, development bool) (slog.Handler, error) {
	addSource := development || level <= slog.LevelDebug
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "console":
		return newConsoleHandler(w, level, addSource), nil
	case "json":
		return newJSONHandler(w, level, addSource), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", format)
	}
}

func openOutput(target string) (io.Writer, error) {
	target = strings.TrimSpace(target)
	switch target {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", target, err)
	}
	return file, nil
}
