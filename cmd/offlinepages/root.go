package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lucasew/offlinepages/internal/errutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "offlinepages",
	Short: "Keeps offline page archives within their storage quota",
	Long: `offlinepages manages the storage of saved offline pages. It expires pages
that break their namespace policy or the storage quota and removes expired
pages once their grace period is over.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(viper.GetString("log-level"))
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if _, printErr := fmt.Fprintln(os.Stderr, err); printErr != nil {
			errutil.ReportError(printErr, "Failed to print error to stderr")
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (YAML, TOML or JSON)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("data-dir", "./data", "Directory holding the page database and archives")
	flags.String("db", "", "Page database path (default <data-dir>/pages.db)")
	flags.String("archive-dir", "", "Archive directory (default <data-dir>/archives)")
	flags.Float64("storage-limit-fraction", 0.3, "Fraction of storage archives may use before clearing is forced")
	flags.Float64("clear-threshold-fraction", 0.1, "Fraction of storage archives are brought down to when over quota")
	flags.Duration("clear-interval", defaultClearInterval, "Minimum time between periodic clears")
	flags.Duration("remove-grace-period", defaultRemoveGracePeriod, "Time expired pages are kept before removal")

	for _, key := range []string{
		"log-level",
		"data-dir",
		"db",
		"archive-dir",
		"storage-limit-fraction",
		"clear-threshold-fraction",
		"clear-interval",
		"remove-grace-period",
	} {
		mustBindPFlag(key, flags.Lookup(key))
	}
}

func initConfig() {
	viper.SetEnvPrefix("OFFLINEPAGES")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		errutil.ReportError(err, "Failed to read config file", "path", cfgFile)
		os.Exit(1)
	}
	slog.Debug("Loaded config file", "path", viper.ConfigFileUsed())
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		slog.Warn("Unknown log level, using info", "level", level)
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
