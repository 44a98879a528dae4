package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/franz/spreadred/internal/util"
)

// Default file names inside the output directory
const (
	DefaultOutputDir = "output"
	DBFileName       = "SpreadRED.db"
	LogFileName      = "SpreadRED.log"
	CSVFileName      = "SpreadRED.csv"
)

// Configuration keys. Flags, SPREADRED_* environment variables and the
// config file all resolve through these.
const (
	KeyUsername   = "username"
	KeyPassword   = "password"
	KeySession    = "session"
	KeyExport     = "export"
	KeyExportOnly = "export_only"
	KeyOutput     = "output"
	KeyDB         = "db"
	KeyLog        = "log"
	KeyLogCharset = "log_charset"
	KeyBaseURL    = "base_url"
	KeyOverwrite  = "overwrite"
)

// Settings is the resolved configuration for one invocation
type Settings struct {
	Username string
	Password string
	Session  string

	// Directory is the tree of .torrent files to catalogue
	Directory string

	ExportOnly bool
	Overwrite  bool

	OutputDir  string
	DBPath     string
	LogPath    string
	LogCharset string
	ExportPath string
	BaseURL    string
}

// ValidationError is a user-facing configuration problem. It wraps
// util.ErrInvalidConfig.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func (e *ValidationError) Unwrap() error {
	return util.ErrInvalidConfig
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyOutput, DefaultOutputDir)
	v.SetDefault(KeyLogCharset, "utf-8")
}

// Load resolves settings from v. directory is the positional argument and
// may be empty. Paths left unset default to files in the output directory.
func Load(v *viper.Viper, directory string) *Settings {
	s := &Settings{
		Username:   v.GetString(KeyUsername),
		Password:   v.GetString(KeyPassword),
		Session:    v.GetString(KeySession),
		Directory:  directory,
		ExportOnly: v.GetBool(KeyExportOnly),
		Overwrite:  v.GetBool(KeyOverwrite),
		OutputDir:  v.GetString(KeyOutput),
		DBPath:     v.GetString(KeyDB),
		LogPath:    v.GetString(KeyLog),
		LogCharset: v.GetString(KeyLogCharset),
		ExportPath: v.GetString(KeyExport),
		BaseURL:    v.GetString(KeyBaseURL),
	}

	if s.OutputDir == "" {
		s.OutputDir = DefaultOutputDir
	}
	if s.DBPath == "" {
		s.DBPath = filepath.Join(s.OutputDir, DBFileName)
	}
	if s.LogPath == "" {
		s.LogPath = filepath.Join(s.OutputDir, LogFileName)
	}
	if s.ExportPath == "" {
		s.ExportPath = filepath.Join(s.OutputDir, CSVFileName)
	}

	return s
}

// HasCredentials reports whether a login strategy is available
func (s *Settings) HasCredentials() bool {
	return (s.Username != "" && s.Password != "") || s.Session != ""
}

// PrepareOutput creates the output directory and the directories holding
// the database and log file
func (s *Settings) PrepareOutput() error {
	for _, dir := range []string{s.OutputDir, filepath.Dir(s.DBPath), filepath.Dir(s.LogPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Validate checks that the settings are enough to proceed. Export-only runs
// need an existing export directory; ingest runs need credentials and an
// existing torrent directory.
func (s *Settings) Validate() error {
	if s.ExportOnly {
		dir := filepath.Dir(s.ExportPath)
		if !util.DirExists(dir) {
			return &ValidationError{Msg: fmt.Sprintf("%s does not exist, exiting...", dir)}
		}
		return nil
	}

	if !s.HasCredentials() {
		return &ValidationError{Msg: "Invalid login credentials."}
	}

	if s.Directory == "" {
		return &ValidationError{Msg: "A directory for .torrent files must be specified"}
	}

	if !util.DirExists(s.Directory) {
		return &ValidationError{Msg: fmt.Sprintf("%s does not exist!", s.Directory)}
	}

	return nil
}
