package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lucasew/offlinepages/internal/app"
	"github.com/lucasew/offlinepages/internal/errutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs scheduled clearing and serves the HTTP API",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := engineConfig()
		if err != nil {
			slog.Error("Invalid configuration", "error", err)
			os.Exit(1)
		}

		engine, cleanup, err := app.NewEngine(cfg)
		if err != nil {
			slog.Error("Failed to initialize engine", "error", err)
			os.Exit(1)
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		watchPolicies(engine)

		if err := engine.Scheduler.Start(ctx); err != nil {
			slog.Error("Failed to start scheduler", "error", err)
			os.Exit(1)
		}

		server := app.NewServer(engine, viper.GetString("addr"))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Server stopped")
	},
}

// watchPolicies reloads namespace policies when the config file changes.
func watchPolicies(engine *app.Engine) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		fallback, policies, err := loadPolicies()
		if err != nil {
			errutil.ReportError(err, "Failed to reload policies", "file", e.Name)
			return
		}
		engine.Policies.Replace(fallback, app.MergePolicies(policies))
		slog.Info("Reloaded namespace policies", "file", e.Name, "op", e.Op.String(), "namespaces", len(engine.Policies.Namespaces()))
	})
	viper.WatchConfig()
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "Address to serve the HTTP API on")
	serveCmd.Flags().String("schedule", "@every 1m", "Cron schedule for clearing (empty disables it)")
	serveCmd.Flags().String("metrics-namespace", "offlinepages", "Prometheus metrics namespace")

	mustBindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	mustBindPFlag("schedule", serveCmd.Flags().Lookup("schedule"))
	mustBindPFlag("metrics-namespace", serveCmd.Flags().Lookup("metrics-namespace"))
}
