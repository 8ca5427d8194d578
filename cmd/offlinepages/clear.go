package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lucasew/offlinepages/internal/app"
	"github.com/lucasew/offlinepages/internal/eviction"
	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Runs a single clearing cycle and prints its result",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := engineConfig()
		if err != nil {
			slog.Error("Invalid configuration", "error", err)
			os.Exit(1)
		}
		cfg.Schedule = ""

		engine, cleanup, err := app.NewEngine(cfg)
		if err != nil {
			slog.Error("Failed to initialize engine", "error", err)
			os.Exit(1)
		}
		defer cleanup()

		var result eviction.ClearResult
		engine.Manager.ClearIfNeeded(cmd.Context(), func(pagesCleared int, r eviction.ClearResult) {
			result = r
			fmt.Fprintf(cmd.OutOrStdout(), "result=%s pages_cleared=%d\n", r, pagesCleared)
		})

		switch result {
		case eviction.Success, eviction.Unnecessary:
		default:
			cleanup()
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
