package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/franz/spreadred/internal/config"
	"github.com/franz/spreadred/internal/store"
	"github.com/franz/spreadred/internal/util"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade <database-directory>",
	Short: "Upgrade a catalog database to version 1.1",
	Long: `Upgrade a catalog written by an earlier release.

Version 1.1 stores torrent descriptions in a new Description column. The
argument is the directory holding SpreadRED.db, or the database file itself.
Running the upgrade on a database that is already current changes nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpgrade,
}

func init() {
	rootCmd.AddCommand(upgradeCmd)
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if _, err := loadSettings(nil); err != nil {
		return err
	}

	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	if util.DirExists(path) {
		path = filepath.Join(path, config.DBFileName)
	}
	if !util.FileExists(path) {
		return fmt.Errorf("%s does not exist, please verify that it is the correct path to the database: %w", path, util.ErrNotFound)
	}

	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	changed, err := db.Upgrade(ctx)
	if err != nil {
		return err
	}

	if changed {
		fmt.Println("Upgraded database to version 1.1")
	} else {
		fmt.Println("Database is already at version 1.1")
	}
	return nil
}
