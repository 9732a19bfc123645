package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vk/formflow/internal/app"
	"github.com/vk/formflow/internal/engine"
	"github.com/vk/formflow/internal/schema"
)

// main is the entrypoint for the formflow service.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(outW io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "formflow",
		Short:         "Live form field dependency and evaluation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(outW))
	root.AddCommand(newValidateCmd(outW))
	return root
}

func newServeCmd(outW io.Writer) *cobra.Command {
	cfg := app.Config{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve live-evaluation and page-turn endpoints for a form definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			validated, err := app.NewConfig(cfg)
			if err != nil {
				return err
			}
			a, err := app.NewApp(outW, validated, nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&cfg.SchemaPath, "schema", "", "path to the form definition file (json or yaml)")
	cmd.Flags().StringVar(&cfg.Addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&cfg.LogFormat, "log-format", "text", "log format (text, json)")
	cmd.Flags().DurationVar(&cfg.Budget, "budget", 300*time.Millisecond, "soft evaluation budget per request")
	cmd.Flags().DurationVar(&cfg.FetchTimeout, "fetch-timeout", 5*time.Second, "hard timeout on remote data-source fetches")
	cmd.Flags().DurationVar(&cfg.CacheTTL, "cache-ttl", time.Minute, "TTL of the data-source option cache")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func newValidateCmd(outW io.Writer) *cobra.Command {
	var schemaPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a form definition and report dependency diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := schema.Load(schemaPath)
			if err != nil {
				return err
			}

			eng := engine.New(def, engine.Options{})
			diags := eng.Diagnostics(cmd.Context())
			if len(diags) == 0 {
				fmt.Fprintf(outW, "%s: ok (%d pages, %d blocks)\n", def.Slug, len(def.Pages), len(def.Blocks))
				return nil
			}
			for _, d := range diags {
				fmt.Fprintln(outW, d)
			}
			return fmt.Errorf("%d diagnostic(s) found", len(diags))
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "path to the form definition file (json or yaml)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}
