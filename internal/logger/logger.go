// Package logger provides structured logging setup for agentcore.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/blipee-dev/agentcore/internal/config"
)

// New creates a *slog.Logger from the given Logging config. Records carry a
// "service" attribute and go to stdout, JSON by default; format "text" is
// meant for local development.
func New(cfg config.Logging) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With("service", cfg.Service)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
