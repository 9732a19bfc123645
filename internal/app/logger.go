package app

import (
	"io"
	"log/slog"
	"strings"
)

// logLevels maps the accepted config strings to slog levels. Anything
// else falls back to info; a typo in a flag should not stop the server.
var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// newLogger builds the app logger from the validated config. The global
// default logger is left untouched so an embedding host keeps its own.
func newLogger(cfg *Config, outW io.Writer) *slog.Logger {
	level, ok := logLevels[strings.ToLower(cfg.LogLevel)]
	if !ok {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}
