// Package logging builds the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (allowed: debug, info, warn, error)", s)
	}
}

// New returns a tint text logger for "text" and a JSON logger otherwise.
func New(w io.Writer, format, level, version string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	if format == "text" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
			NoColor:    !isTerminal(w),
		})
		return slog.New(h).With("app", "kitecast"), nil
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(h).With("app", "kitecast", "version", version), nil
}

type fder interface {
	Fd() uintptr
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(fder)
	return ok && isatty.IsTerminal(f.Fd())
}
