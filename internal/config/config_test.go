package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/spreadred/internal/util"
)

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestLoadDefaults(t *testing.T) {
	s := Load(newViper(nil), "")

	assert.Equal(t, DefaultOutputDir, s.OutputDir)
	assert.Equal(t, filepath.Join("output", "SpreadRED.db"), s.DBPath)
	assert.Equal(t, filepath.Join("output", "SpreadRED.log"), s.LogPath)
	assert.Equal(t, filepath.Join("output", "SpreadRED.csv"), s.ExportPath)
	assert.Equal(t, "utf-8", s.LogCharset)
	assert.False(t, s.ExportOnly)
	assert.False(t, s.Overwrite)
}

func TestLoadPathsFollowOutputDir(t *testing.T) {
	s := Load(newViper(map[string]any{
		KeyOutput: "/data/red",
		KeyExport: "/srv/share/catalog.csv",
	}), "/torrents")

	assert.Equal(t, "/torrents", s.Directory)
	assert.Equal(t, "/data/red/SpreadRED.db", s.DBPath)
	assert.Equal(t, "/data/red/SpreadRED.log", s.LogPath)
	assert.Equal(t, "/srv/share/catalog.csv", s.ExportPath)
}

func TestLoadFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"username":"alice","password":"secret","session":"","export":""}`), 0600))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	// An explicit value overrides the file
	v.Set(KeyUsername, "bob")

	s := Load(v, "")
	assert.Equal(t, "bob", s.Username)
	assert.Equal(t, "secret", s.Password)
	assert.Equal(t, filepath.Join("output", "SpreadRED.csv"), s.ExportPath)
}

func TestValidate(t *testing.T) {
	tmp := t.TempDir()
	missing := filepath.Join(tmp, "missing")

	tests := []struct {
		name     string
		settings Settings
		message  string
	}{
		{
			name:     "export only with existing directory",
			settings: Settings{ExportOnly: true, ExportPath: filepath.Join(tmp, "out.csv")},
		},
		{
			name:     "export only needs no credentials",
			settings: Settings{ExportOnly: true, ExportPath: filepath.Join(missing, "out.csv")},
			message:  missing + " does not exist, exiting...",
		},
		{
			name:     "no credentials",
			settings: Settings{Username: "alice", Directory: tmp},
			message:  "Invalid login credentials.",
		},
		{
			name:     "credentials checked before directory",
			settings: Settings{},
			message:  "Invalid login credentials.",
		},
		{
			name:     "no directory",
			settings: Settings{Session: "tok"},
			message:  "A directory for .torrent files must be specified",
		},
		{
			name:     "missing directory",
			settings: Settings{Username: "alice", Password: "secret", Directory: missing},
			message:  missing + " does not exist!",
		},
		{
			name:     "session login",
			settings: Settings{Session: "tok", Directory: tmp},
		},
		{
			name:     "password login",
			settings: Settings{Username: "alice", Password: "secret", Directory: tmp},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.settings.Validate()
			if tt.message == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.message, err.Error())
			assert.True(t, errors.Is(err, util.ErrInvalidConfig))
		})
	}
}

func TestPrepareOutput(t *testing.T) {
	root := t.TempDir()
	s := Load(newViper(map[string]any{
		KeyOutput: filepath.Join(root, "output"),
		KeyLog:    filepath.Join(root, "logs", "run.log"),
	}), "")

	require.NoError(t, s.PrepareOutput())
	assert.True(t, util.DirExists(filepath.Join(root, "output")))
	assert.True(t, util.DirExists(filepath.Join(root, "logs")))
}
