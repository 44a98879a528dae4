package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/spreadred/internal/config"
	"github.com/franz/spreadred/internal/store"
)

func TestCheckCredentials(t *testing.T) {
	tests := []struct {
		name     string
		settings config.Settings
		isError  bool
	}{
		{"password", config.Settings{Username: "alice", Password: "secret"}, false},
		{"session", config.Settings{Session: "tok"}, false},
		{"username only", config.Settings{Username: "alice"}, true},
		{"none", config.Settings{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := checkCredentials(&tt.settings)
			if result.error != tt.isError {
				t.Errorf("checkCredentials error = %v, expected %v (%s)", result.error, tt.isError, result.message)
			}
		})
	}
}

func TestCheckCharset(t *testing.T) {
	if result := checkCharset("latin1"); result.error || result.message != "windows-1252" {
		t.Errorf("unexpected result for latin1: %+v", result)
	}
	if result := checkCharset("klingon-8"); !result.error {
		t.Error("expected error for unknown charset")
	}
}

func TestCheckOutputDirectory(t *testing.T) {
	dir := t.TempDir()

	if result := checkOutputDirectory(dir); result.error {
		t.Errorf("writable directory reported as error: %s", result.message)
	}
	if result := checkOutputDirectory(filepath.Join(dir, "later")); result.error {
		t.Errorf("missing directory should not error: %s", result.message)
	}

	file := filepath.Join(dir, "file")
	os.WriteFile(file, nil, 0644)
	if result := checkOutputDirectory(file); !result.error {
		t.Error("expected error for a file")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("write test left files behind: %d entries", len(entries))
	}
}

func TestCheckDatabase_NonExistent(t *testing.T) {
	result := checkDatabase(filepath.Join(t.TempDir(), "SpreadRED.db"))

	// Should not error - database will be created on first run
	if result.error || result.warning {
		t.Errorf("non-existent database check should pass: %s", result.message)
	}
}

func TestCheckDatabase_Current(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "SpreadRED.db")

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	db.Close()

	result := checkDatabase(dbPath)
	if result.error || result.warning {
		t.Errorf("current database should pass: %s", result.message)
	}
}

func TestCheckDatabase_Legacy(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "SpreadRED.db")

	legacy, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to open legacy database: %v", err)
	}
	if _, err := legacy.Exec(`CREATE TABLE Torrents (TorrentID INT PRIMARY KEY NOT NULL, Name TEXT NOT NULL)`); err != nil {
		t.Fatalf("failed to create legacy table: %v", err)
	}
	legacy.Close()

	result := checkDatabase(dbPath)
	if !result.warning {
		t.Errorf("legacy database should warn: %+v", result)
	}
}

func TestCheckTorrentDirectory(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "Artist - Album (2020)-12345.torrent"), nil, 0644)
	os.WriteFile(filepath.Join(dir, "unnamed.torrent"), nil, 0644)

	result := checkTorrentDirectory(dir)
	if result.error || result.warning {
		t.Errorf("unexpected result: %+v", result)
	}

	if result := checkTorrentDirectory(t.TempDir()); !result.warning {
		t.Error("expected warning for a directory without torrents")
	}
	if result := checkTorrentDirectory(filepath.Join(dir, "missing")); !result.error {
		t.Error("expected error for a missing directory")
	}
}
