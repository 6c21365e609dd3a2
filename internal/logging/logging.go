// Package logging builds the slog logger Foundry writes to its log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config controls logger construction.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
	Path   string // log file; empty writes to Output
	Output io.Writer
}

// New returns a logger and a closer for the underlying file. The closer is
// a no-op when no file was opened.
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	output := cfg.Output
	var closer io.Closer = nopCloser{}

	if path := strings.TrimSpace(cfg.Path); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		output = file
		closer = file
	}
	if output == nil {
		output = io.Discard
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	return slog.New(handler), closer, nil
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
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

// MaskKey hides all but the edges of an API key for log output.
func MaskKey(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) <= 12:
		return "***"
	default:
		return key[:4] + "..." + key[len(key)-4:]
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
