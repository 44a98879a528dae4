package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/spreadred/internal/config"
	"github.com/franz/spreadred/internal/scan"
	"github.com/franz/spreadred/internal/store"
	"github.com/franz/spreadred/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor [directory]",
	Short: "Run diagnostic checks on the configuration and catalog",
	Long: `Run diagnostic checks to ensure spreadred can operate correctly.

This command checks:
- Tracker credentials are configured
- The log charset is known
- The output directory is writable
- The catalog database opens and is at the current version
- The torrent directory, when given, is readable and holds .torrent files

Nothing is sent to the tracker.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(args)
	if err != nil {
		return err
	}

	util.InfoLog("=== spreadred doctor ===")

	results := []checkResult{
		checkCredentials(settings),
		checkCharset(settings.LogCharset),
		checkOutputDirectory(settings.OutputDir),
		checkDatabase(settings.DBPath),
	}
	if settings.Directory != "" {
		results = append(results, checkTorrentDirectory(settings.Directory))
	}

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	if hasErrors {
		return fmt.Errorf("diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings. Review them before the next run.")
	} else {
		util.SuccessLog("All checks passed.")
	}

	return nil
}

func checkCredentials(s *config.Settings) checkResult {
	switch {
	case s.Username != "" && s.Password != "":
		msg := fmt.Sprintf("username and password for %s", s.Username)
		if s.Session != "" {
			msg += " (session ignored)"
		}
		return checkResult{name: "Credentials", message: msg}
	case s.Session != "":
		return checkResult{name: "Credentials", message: "session cookie"}
	default:
		return checkResult{
			name:    "Credentials",
			error:   true,
			message: "set username and password, or session, in config.json or with -u/-p/-s",
		}
	}
}

func checkCharset(charset string) checkResult {
	name, err := util.CanonicalCharset(charset)
	if err != nil {
		return checkResult{name: "Log charset", error: true, message: err.Error()}
	}
	return checkResult{name: "Log charset", message: name}
}

// checkOutputDirectory verifies the output directory is writable
func checkOutputDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Output directory",
				message: fmt.Sprintf("%s (will be created on first run)", path),
			}
		}
		return checkResult{
			name:    "Output directory",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    "Output directory",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	f, err := os.CreateTemp(path, ".spreadred_write_test")
	if err != nil {
		return checkResult{
			name:    "Output directory",
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", path, err),
		}
	}
	f.Close()
	os.Remove(f.Name())

	return checkResult{
		name:    "Output directory",
		message: fmt.Sprintf("%s (writable)", path),
	}
}

// checkDatabase opens the catalog and reports its version and contents
func checkDatabase(dbPath string) checkResult {
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created on first run)", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	ctx := context.Background()

	hasTorrents, err := db.HasColumn(ctx, "Torrents", "TorrentID")
	if err != nil || !hasTorrents {
		return checkResult{
			name:    "Database",
			warning: true,
			message: fmt.Sprintf("%s has no catalog tables yet", dbPath),
		}
	}

	if err := db.CheckSchema(ctx); err != nil {
		return checkResult{
			name:    "Database",
			warning: true,
			message: fmt.Sprintf("%s needs upgrading, run: spreadred upgrade %s", dbPath, filepath.Dir(dbPath)),
		}
	}

	var torrents int64
	if err := db.EnsureSchema(ctx); err == nil {
		if stats, err := db.Stats(ctx); err == nil {
			torrents = int64(stats.Torrents)
		}
	}

	return checkResult{
		name: "Database",
		message: fmt.Sprintf("%s (%s, %s torrents, SQLite %s)", dbPath,
			humanize.Bytes(uint64(info.Size())), humanize.Comma(torrents), db.SQLiteVersion(ctx)),
	}
}

// checkTorrentDirectory verifies the torrent directory is readable and
// counts files that carry a torrent id
func checkTorrentDirectory(path string) checkResult {
	if !util.DirExists(path) {
		return checkResult{
			name:    "Torrent directory",
			error:   true,
			message: fmt.Sprintf("%s does not exist or is not a directory", path),
		}
	}

	var found, matched int
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), scan.TorrentExtension) {
			return nil
		}
		found++
		if _, ok := scan.ExtractID(p); ok {
			matched++
		}
		return nil
	})
	if err != nil {
		return checkResult{
			name:    "Torrent directory",
			error:   true,
			message: fmt.Sprintf("cannot read %s: %v", path, err),
		}
	}

	result := checkResult{
		name:    "Torrent directory",
		message: fmt.Sprintf("%s (%d .torrent files, %d with a torrent id)", path, found, matched),
	}
	if matched == 0 {
		result.warning = true
	}
	return result
}
