package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrConstraintViolation is returned when a non-overwrite write collides with
// an existing primary key. Under normal reconciler flow this does not happen.
var ErrConstraintViolation = errors.New("constraint violation")

// Store is the SQLite-backed torrent catalog
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a SQLite database at the given path. The schema is
// not touched; call EnsureSchema (and Upgrade when asked to) explicitly.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// SQLiteVersion returns the SQLite version string
func (s *Store) SQLiteVersion(ctx context.Context) string {
	var version string
	if err := s.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return ""
	}
	return version
}

// EnsureSchema creates the catalog tables if they are absent. Existing tables
// are left as they are; adding columns is Upgrade's job.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	})
}

// Upgrade applies the 1.1 migration, adding the Description column to
// Torrents. It reports whether the schema changed; running it against an
// up-to-date database is a no-op.
func (s *Store) Upgrade(ctx context.Context) (bool, error) {
	has, err := s.HasColumn(ctx, "Torrents", "Description")
	if err != nil {
		return false, err
	}
	if has {
		return false, nil
	}

	err = s.transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schemaV2); err != nil {
			return fmt.Errorf("failed to add Description column: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// HasColumn reports whether table has a column with the given name
func (s *Store) HasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return false, fmt.Errorf("failed to read table info for %s: %w", table, err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			found = true
		}
	}
	return found, rows.Err()
}

// transaction executes fn within a transaction
func (s *Store) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// isConstraintError reports whether err is a SQLite constraint failure
func isConstraintError(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

// Torrent is one catalogued torrent
type Torrent struct {
	ID            int64
	Name          string
	OriginalYear  int
	EditionYear   *int // nil for an original, non-remastered release
	EditionTitle  string
	Label         string
	CatalogNumber string
	Size          int64
	Source        string
	Format        string
	Encoding      string
	LogScore      *int
	HasCue        bool
	InfoHash      string
	Description   string
}

// ArtistCredit links an artist to a torrent under a credit type
// ("artists", "with", "composers", ...)
type ArtistCredit struct {
	TorrentID int64
	ArtistID  int64
	Type      string
	Name      string
}

// Tag is a tag attached to a torrent
type Tag struct {
	TorrentID int64
	Name      string
}

// Release groups the rows written atomically for one torrent
type Release struct {
	Torrent Torrent
	Credits []ArtistCredit
	Tags    []Tag
}

// ExportRow is one flattened torrent with its aggregated artists and tags
type ExportRow struct {
	Torrent
	Primary  []string
	Featured []string
	Tags     []string
}

// Run records one ingest pass
type Run struct {
	ID            string
	StartedAt     time.Time
	CompletedAt   time.Time
	Overwrite     bool
	Candidates    int
	Skipped       int
	Inserted      int
	NonQualifying int
	Failed        int
}

// Stats holds row counts per catalog table
type Stats struct {
	Torrents      int
	NonQualifying int
	Credits       int
	Tags          int
	TotalSize     int64
}
