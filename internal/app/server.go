package app

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lucasew/offlinepages/internal/handler"
)

// NewServer exposes the engine over HTTP.
func NewServer(e *Engine, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/clear", handler.NewClearHandler(e.Manager))
	mux.Handle("/status", handler.NewStatusHandler(e.Manager, e.Scheduler))
	mux.Handle("/pages/{id}", handler.NewPageHandler(e.DB, e.Archives))
	mux.Handle("/metrics", promhttp.HandlerFor(e.Registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))

	slog.Info("Starting server", "addr", addr)

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}
