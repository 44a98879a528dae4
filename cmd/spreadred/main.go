package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/spreadred/internal/config"
	"github.com/franz/spreadred/internal/util"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	// configErr holds a failure to read an explicitly requested config file
	configErr error

	rootCmd = &cobra.Command{
		Use:   "spreadred [directory]",
		Short: "Catalog torrent metadata from RED into SQLite and CSV",
		Long: `spreadred builds a database of metadata for torrents downloaded from RED.

It walks a directory of .torrent files saved by the collector, derives each
torrent id from its file name, fetches the metadata from the tracker API and
stores it in a local SQLite catalog. After every run the catalog is exported
to a CSV file for spreadsheets and dashboards.

Torrents already in the catalog are not fetched again unless --overwrite is
given. Requests are spaced two seconds apart to respect the tracker's rate
limit.`,
		Version:       Version,
		Args:          cobra.MaximumNArgs(1),
		RunE:          runCatalog,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.json)")
	rootCmd.PersistentFlags().String("output", config.DefaultOutputDir, "directory for the database, log file and CSV export")
	rootCmd.PersistentFlags().String("db", "", "catalog database file (default is <output>/SpreadRED.db)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")

	// Ingest flags
	rootCmd.Flags().StringP("username", "u", "", "RED username")
	rootCmd.Flags().StringP("password", "p", "", "RED password")
	rootCmd.Flags().StringP("session", "s", "", "RED session cookie, used instead of username and password")
	rootCmd.Flags().BoolP("export", "e", false, "only export the CSV, do not index torrents")
	rootCmd.Flags().BoolP("overwrite", "f", false, "fetch catalogued torrents again and replace their rows")

	// Bind flags to viper
	viper.BindPFlag(config.KeyOutput, rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag(config.KeyDB, rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag(config.KeyUsername, rootCmd.Flags().Lookup("username"))
	viper.BindPFlag(config.KeyPassword, rootCmd.Flags().Lookup("password"))
	viper.BindPFlag(config.KeySession, rootCmd.Flags().Lookup("session"))
	viper.BindPFlag(config.KeyExportOnly, rootCmd.Flags().Lookup("export"))
	viper.BindPFlag(config.KeyOverwrite, rootCmd.Flags().Lookup("overwrite"))
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// config.json, config.yaml or config.toml in the working directory
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match
	viper.SetEnvPrefix("SPREADRED")
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err == nil {
		if !viper.GetBool("quiet") {
			util.DebugLog("Using config file: %s", viper.ConfigFileUsed())
		}
		return
	}

	var notFound viper.ConfigFileNotFoundError
	if cfgFile != "" || !errors.As(err, &notFound) {
		configErr = fmt.Errorf("failed to read config file: %w", err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stdout, "Error: %v\n", err)
		os.Exit(1)
	}
}
