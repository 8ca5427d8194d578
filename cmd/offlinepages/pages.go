package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lucasew/offlinepages/internal/app"
	"github.com/lucasew/offlinepages/internal/eviction"
	"github.com/spf13/cobra"
)

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Lists stored offline pages",
	Run: func(cmd *cobra.Command, args []string) {
		namespace, err := cmd.Flags().GetString("namespace")
		if err != nil {
			slog.Error("Failed to get namespace flag", "error", err)
			os.Exit(1)
		}

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

		pages, err := engine.Store.GetAllPages(cmd.Context())
		if err != nil {
			slog.Error("Failed to list pages", "error", err)
			cleanup()
			os.Exit(1)
		}

		missing, err := missingArchives(cmd.Context(), engine.Archives, pages)
		if err != nil {
			slog.Error("Failed to check archives", "error", err)
			cleanup()
			os.Exit(1)
		}

		if err := printPages(cmd.OutOrStdout(), pages, missing, namespace, time.Now()); err != nil {
			slog.Error("Failed to print pages", "error", err)
		}
	},
}

type archiveChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// missingArchives returns the fresh pages whose archive is gone from disk.
func missingArchives(ctx context.Context, archives archiveChecker, pages []eviction.OfflinePageItem) (map[int64]bool, error) {
	missing := make(map[int64]bool)
	for _, p := range pages {
		if p.IsExpired() {
			continue
		}
		exists, err := archives.Exists(ctx, p.OfflineID)
		if err != nil {
			return nil, fmt.Errorf("failed to check archive of page %d: %w", p.OfflineID, err)
		}
		if !exists {
			missing[p.OfflineID] = true
		}
	}
	return missing, nil
}

func printPages(out io.Writer, pages []eviction.OfflinePageItem, missing map[int64]bool, namespace string, now time.Time) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAMESPACE\tSIZE\tLAST ACCESS\tSTATE")

	var total uint64
	var count int
	for _, p := range pages {
		if namespace != "" && p.Namespace != namespace {
			continue
		}
		state := "fresh"
		switch {
		case p.IsExpired():
			state = "expired " + humanize.RelTime(p.ExpirationTime, now, "ago", "from now")
		case missing[p.OfflineID]:
			state = "fresh, archive missing"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			p.OfflineID,
			p.Namespace,
			humanize.IBytes(uint64(p.FileSize)),
			humanize.RelTime(p.LastAccessTime, now, "ago", "from now"),
			state,
		)
		if !p.IsExpired() {
			total += uint64(p.FileSize)
		}
		count++
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%s pages, %s in archives\n", humanize.Comma(int64(count)), humanize.IBytes(total))
	return err
}

func init() {
	rootCmd.AddCommand(pagesCmd)

	pagesCmd.Flags().String("namespace", "", "Only list pages of this namespace")
}
