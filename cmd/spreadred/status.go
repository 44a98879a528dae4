package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/spreadred/internal/store"
	"github.com/franz/spreadred/internal/util"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog counts and recent runs",
	Long: `Show how many torrents the catalog holds and summarize the most recent
ingest runs. Nothing is fetched from the tracker.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().IntP("runs", "n", 5, "number of recent runs to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	limit, _ := cmd.Flags().GetInt("runs")

	settings, err := loadSettings(nil)
	if err != nil {
		return err
	}

	if !util.FileExists(settings.DBPath) {
		return fmt.Errorf("no catalog at %s, run spreadred on a torrent directory first: %w", settings.DBPath, util.ErrNotFound)
	}

	db, err := store.Open(settings.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// Databases from earlier releases have no Runs table
	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Catalog: %s (SQLite %s)\n\n", settings.DBPath, db.SQLiteVersion(ctx))
	fmt.Println(renderTable(
		[]string{"Music torrents", "Non-music", "Artist credits", "Tags", "Total size"},
		[][]string{{
			humanize.Comma(int64(stats.Torrents)),
			humanize.Comma(int64(stats.NonQualifying)),
			humanize.Comma(int64(stats.Credits)),
			humanize.Comma(int64(stats.Tags)),
			humanize.Bytes(uint64(stats.TotalSize)),
		}},
		0, 1, 2, 3, 4,
	))

	if upToDate, err := db.HasColumn(ctx, "Torrents", "Description"); err == nil && !upToDate {
		util.WarnLog("Database predates version 1.1, run: spreadred upgrade %s", settings.DBPath)
	}

	runs, err := db.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("\nNo runs recorded yet.")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		duration := "interrupted"
		if !r.CompletedAt.IsZero() {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		mode := ""
		if r.Overwrite {
			mode = "overwrite"
		}
		rows = append(rows, []string{
			humanize.Time(r.StartedAt),
			duration,
			mode,
			strconv.Itoa(r.Candidates),
			strconv.Itoa(r.Inserted),
			strconv.Itoa(r.NonQualifying),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Failed),
		})
	}

	fmt.Println()
	fmt.Println(renderTable(
		[]string{"Started", "Duration", "Mode", "Files", "Inserted", "Non-music", "Skipped", "Failed"},
		rows,
		3, 4, 5, 6, 7,
	))

	return nil
}
