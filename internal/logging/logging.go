// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a config level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", name, err)
	}
	return l, nil
}

// Setup installs a text logger writing to w (stderr when nil) as the slog
// default. debug forces the debug level regardless of level, as does a
// non-empty DEBUG or APPDATA_DEBUG environment variable.
func Setup(w io.Writer, level string, debug bool) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if debug || os.Getenv("DEBUG") != "" || os.Getenv("APPDATA_DEBUG") != "" {
		l = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
	return logger, nil
}
