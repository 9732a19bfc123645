package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/formflow/internal/ctxlog"
	"github.com/vk/formflow/internal/datasource"
	"github.com/vk/formflow/internal/engine"
	"github.com/vk/formflow/internal/schema"
)

// App encapsulates the service's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	def    *schema.FormDefinition
	engine *engine.Engine
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and engine.
// Cycle diagnostics found in the form definition are logged, not fatal:
// implicated fields degrade at runtime, everything else keeps working.
func NewApp(outW io.Writer, cfg *Config, records datasource.RecordStore) (*App, error) {
	logger := newLogger(cfg, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	def, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load form definition: %w", err)
	}
	logger.Debug("Form definition loaded.",
		"form", def.Slug, "pages", len(def.Pages), "blocks", len(def.Blocks))

	eng := engine.New(def, engine.Options{
		Records:      records,
		Budget:       cfg.Budget,
		FetchTimeout: cfg.FetchTimeout,
		CacheTTL:     cfg.CacheTTL,
	})
	for _, diag := range eng.Diagnostics(ctx) {
		logger.Warn("Form definition diagnostic.", "detail", diag)
	}

	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		def:    def,
		engine: eng,
	}, nil
}

// Engine returns the application's engine. This is primarily for testing.
func (a *App) Engine() *engine.Engine {
	return a.engine
}
