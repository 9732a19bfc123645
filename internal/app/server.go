package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/vk/formflow/internal/ctxlog"
	"github.com/vk/formflow/internal/engine"
	"github.com/vk/formflow/internal/livediff"
)

// Run starts the HTTP server and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	srv := &http.Server{
		Addr:              a.config.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Form evaluation server starting.", "address", a.config.Addr, "form", a.def.Slug)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Handler builds the HTTP routes.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/live", a.liveHandler)
	mux.HandleFunc("/page-turn", a.pageTurnHandler)
	mux.HandleFunc("/health", a.healthHandler)
	return mux
}

// healthHandler reports liveness.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (a *App) liveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req livediff.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, livediff.Failure("malformed request body"))
		return
	}
	ctx := ctxlog.WithLogger(r.Context(), a.logger)
	resp := a.engine.Live(ctx, &req)
	status := http.StatusOK
	if resp.Result == livediff.ResultError {
		status = http.StatusUnprocessableEntity
	}
	a.writeJSON(w, status, resp)
}

func (a *App) pageTurnHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req engine.PageTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest,
			&engine.PageTurnResponse{Result: "error", Reason: "malformed request body"})
		return
	}
	ctx := ctxlog.WithLogger(r.Context(), a.logger)
	resp := a.engine.PageTurn(ctx, &req)
	status := http.StatusOK
	if resp.Result == "error" {
		status = http.StatusUnprocessableEntity
	}
	a.writeJSON(w, status, resp)
}

func (a *App) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Error("Failed to encode response.", "error", err)
	}
}
