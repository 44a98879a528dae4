package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/spreadred/internal/config"
	"github.com/franz/spreadred/internal/reconcile"
	"github.com/franz/spreadred/internal/report"
	"github.com/franz/spreadred/internal/scan"
	"github.com/franz/spreadred/internal/store"
	"github.com/franz/spreadred/internal/tracker"
	"github.com/franz/spreadred/internal/util"
)

// loadSettings applies console verbosity and resolves the configuration
func loadSettings(args []string) (*config.Settings, error) {
	if configErr != nil {
		return nil, configErr
	}

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))

	directory := ""
	if len(args) > 0 {
		directory = args[0]
	}
	return config.Load(viper.GetViper(), directory), nil
}

func runCatalog(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := loadSettings(args)
	if err != nil {
		return err
	}

	if err := settings.PrepareOutput(); err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	logFile, err := util.OpenLogFile(settings.LogPath, settings.LogCharset)
	if err != nil {
		return err
	}
	util.SetLogFile(logFile)
	defer func() {
		util.SetLogFile(nil)
		logFile.Close()
	}()

	if settings.ExportOnly {
		db, err := openCatalog(ctx, settings.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		return exportCatalog(ctx, db, settings.ExportPath)
	}

	client, err := tracker.New(ctx, tracker.Credentials{
		Username: settings.Username,
		Password: settings.Password,
		Session:  settings.Session,
	}, &tracker.Options{BaseURL: settings.BaseURL})
	if err != nil {
		util.ErrorLog("Login failed: %v", err)
		return fmt.Errorf("failed to log in to RED, please double check your credentials: %w", err)
	}

	db, err := openCatalog(ctx, settings.DBPath)
	if err != nil {
		client.Logout(ctx)
		return err
	}
	defer db.Close()

	runErr := ingest(ctx, settings, client, db)

	// Export and logout happen even after an interrupted run
	finishCtx := context.WithoutCancel(ctx)
	if err := client.Logout(finishCtx); err != nil {
		util.WarnLog("Logout failed: %v", err)
	}

	if err := exportCatalog(finishCtx, db, settings.ExportPath); err != nil {
		return errors.Join(runErr, err)
	}

	return runErr
}

// ingest scans the torrent directory, reconciles every candidate against
// the catalog and records the run
func ingest(ctx context.Context, settings *config.Settings, client *tracker.Client, db *store.Store) error {
	run := &store.Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Overwrite: settings.Overwrite,
	}
	util.DebugLog("Run %s", run.ID)

	scanner := scan.New(&scan.Config{ShowProgress: util.ShowProgress(os.Stderr.Fd())})
	scanned, err := scanner.Scan(ctx, settings.Directory)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	for _, scanErr := range scanned.Errors {
		util.DebugLog("%v", scanErr)
	}

	reconciler := reconcile.New(&reconcile.Config{
		Fetcher:   client,
		Catalog:   db,
		Overwrite: settings.Overwrite,
	})

	if n := len(scanned.Candidates); n > 0 && !settings.Overwrite {
		util.InfoLog("Checking %s torrents against the catalog", humanize.Comma(int64(n)))
	}

	result, runErr := reconciler.Run(ctx, scanned.Candidates)

	run.CompletedAt = time.Now()
	run.Candidates = result.Candidates
	run.Skipped = result.Skipped
	run.Inserted = result.Inserted
	run.NonQualifying = result.NonQualifying
	run.Failed = result.Failed()
	if err := db.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		util.WarnLog("Failed to record run: %v", err)
	}

	if runErr != nil {
		util.WarnLog("Run interrupted after %s", result.Duration.Round(time.Second))
		return runErr
	}

	util.InfoLog("Finished cataloguing releases.")
	util.InfoLog("  Inserted: %s, non-music: %s, already catalogued: %s",
		humanize.Comma(int64(result.Inserted)),
		humanize.Comma(int64(result.NonQualifying)),
		humanize.Comma(int64(result.Skipped)))

	if len(result.Failures) > 0 {
		util.WarnLog("%d torrents could not be catalogued and will be retried next run:", len(result.Failures))
		for _, f := range result.Failures {
			util.WarnLog("  Torrent ID %d (%s): %s", f.Candidate.ID, filepath.Base(f.Candidate.Path), f.Reason)
		}
	}

	return nil
}

// openCatalog opens the database, creating missing tables, and refuses to
// work on a database that still needs the upgrade command
func openCatalog(ctx context.Context, path string) (*store.Store, error) {
	util.DebugLog("Opening database: %s", path)

	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.CheckSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: spreadred upgrade %s", err, filepath.Dir(path))
	}

	return db, nil
}

func exportCatalog(ctx context.Context, db *store.Store, path string) error {
	n, err := report.WriteCSV(ctx, db, path)
	if err != nil {
		util.ErrorLog("Export failed: %v", err)
		return fmt.Errorf("export failed: %w", err)
	}

	util.InfoLog("Exported DB to CSV")
	util.SuccessLog("Wrote %s torrents to %s", humanize.Comma(int64(n)), path)
	return nil
}
