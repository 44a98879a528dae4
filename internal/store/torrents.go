package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrSchemaOutdated is returned when the database predates the Description
// column and has not been upgraded yet.
var ErrSchemaOutdated = errors.New("database schema is outdated, run the upgrade command")

// CheckSchema verifies the database has every column this release writes
func (s *Store) CheckSchema(ctx context.Context) error {
	has, err := s.HasColumn(ctx, "Torrents", "Description")
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("%w (%s)", ErrSchemaOutdated, s.path)
	}
	return nil
}

// Contains reports whether the torrent has been catalogued, either as a music
// release or as a non-music torrent.
func (s *Store) Contains(ctx context.Context, torrentID int64) (bool, error) {
	var found int64
	err := s.db.QueryRowContext(ctx, `
		SELECT TorrentID FROM Torrents WHERE TorrentID = ?
		UNION
		SELECT TorrentID FROM NonMusic WHERE TorrentID = ?
	`, torrentID, torrentID).Scan(&found)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up torrent %d: %w", torrentID, err)
	}
	return true, nil
}

// UpsertTorrent writes a release in one transaction. With overwrite, every
// existing row for the torrent (including a NonMusic entry) is removed first.
// Without it, an existing torrent yields ErrConstraintViolation.
func (s *Store) UpsertTorrent(ctx context.Context, rel *Release, overwrite bool) error {
	t := &rel.Torrent

	err := s.transaction(ctx, func(tx *sql.Tx) error {
		if overwrite {
			if err := deleteTorrentRows(ctx, tx, t.ID); err != nil {
				return err
			}
		}

		var editionYear, logScore sql.NullInt64
		if t.EditionYear != nil {
			editionYear = sql.NullInt64{Int64: int64(*t.EditionYear), Valid: true}
		}
		if t.LogScore != nil {
			logScore = sql.NullInt64{Int64: int64(*t.LogScore), Valid: true}
		}
		description := sql.NullString{String: t.Description, Valid: t.Description != ""}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO Torrents (
				TorrentID, Name, OriginalYear, EditionYear, EditionTitle, Label,
				CatalogNumber, Size, Source, Format, Encoding, Log, Cue, Infohash,
				Description
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			t.ID, t.Name, t.OriginalYear, editionYear, t.EditionTitle, t.Label,
			t.CatalogNumber, t.Size, t.Source, t.Format, t.Encoding, logScore, t.HasCue, t.InfoHash,
			description,
		)
		if err != nil {
			return wrapInsertError("torrent", t.ID, err)
		}

		for _, c := range rel.Credits {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO Artists (TorrentID, ArtistID, Type, Name) VALUES (?, ?, ?, ?)`,
				t.ID, c.ArtistID, c.Type, c.Name)
			if err != nil {
				return wrapInsertError("artist credit", t.ID, err)
			}
		}

		for _, tag := range rel.Tags {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO Tags (TorrentID, Name) VALUES (?, ?)`, t.ID, tag.Name)
			if err != nil {
				return wrapInsertError("tag", t.ID, err)
			}
		}

		return nil
	})

	return err
}

// UpsertNonQualifying records a torrent that is outside the music category.
// With overwrite, any previous rows for the torrent are removed first.
func (s *Store) UpsertNonQualifying(ctx context.Context, torrentID int64, overwrite bool) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		if overwrite {
			if err := deleteTorrentRows(ctx, tx, torrentID); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO NonMusic (TorrentID) VALUES (?)`, torrentID); err != nil {
			return wrapInsertError("non-music torrent", torrentID, err)
		}
		return nil
	})
}

// deleteTorrentRows clears every table for one torrent id
func deleteTorrentRows(ctx context.Context, tx *sql.Tx, torrentID int64) error {
	for _, table := range []string{"Torrents", "Artists", "Tags", "NonMusic"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE TorrentID = ?", torrentID); err != nil {
			return fmt.Errorf("failed to clear %s for torrent %d: %w", table, torrentID, err)
		}
	}
	return nil
}

func wrapInsertError(what string, torrentID int64, err error) error {
	if isConstraintError(err) {
		return fmt.Errorf("%w: %s for torrent %d: %v", ErrConstraintViolation, what, torrentID, err)
	}
	return fmt.Errorf("failed to insert %s for torrent %d: %w", what, torrentID, err)
}

// GetTorrent returns the stored torrent row, or nil if absent
func (s *Store) GetTorrent(ctx context.Context, torrentID int64) (*Torrent, error) {
	rows, err := s.queryTorrents(ctx, "WHERE TorrentID = ?", torrentID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// GetCredits returns the credits stored for a torrent in insertion order
func (s *Store) GetCredits(ctx context.Context, torrentID int64) ([]ArtistCredit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT TorrentID, ArtistID, Type, Name FROM Artists
		WHERE TorrentID = ?
		ORDER BY rowid
	`, torrentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query credits: %w", err)
	}
	defer rows.Close()

	var credits []ArtistCredit
	for rows.Next() {
		var c ArtistCredit
		if err := rows.Scan(&c.TorrentID, &c.ArtistID, &c.Type, &c.Name); err != nil {
			return nil, err
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

// ExportRows returns one flattened row per catalogued torrent in storage
// order, with primary and featured artist names and distinct tags.
func (s *Store) ExportRows(ctx context.Context) ([]ExportRow, error) {
	torrents, err := s.queryTorrents(ctx, "")
	if err != nil {
		return nil, err
	}

	// Credits and tags are loaded in bulk after the torrent cursor is closed;
	// the pool holds a single connection.
	credits, err := s.db.QueryContext(ctx, `
		SELECT TorrentID, Type, Name FROM Artists
		WHERE Type = ? OR Type = ?
		ORDER BY rowid
	`, CreditPrimary, CreditFeatured)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	primary := make(map[int64][]string)
	featured := make(map[int64][]string)
	for credits.Next() {
		var id int64
		var typ, name string
		if err := credits.Scan(&id, &typ, &name); err != nil {
			credits.Close()
			return nil, err
		}
		if typ == CreditPrimary {
			primary[id] = append(primary[id], name)
		} else {
			featured[id] = append(featured[id], name)
		}
	}
	if err := credits.Err(); err != nil {
		credits.Close()
		return nil, err
	}
	credits.Close()

	tagRows, err := s.db.QueryContext(ctx, `
		SELECT TorrentID, Name FROM Tags
		GROUP BY TorrentID, Name
		ORDER BY MIN(rowid)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	tags := make(map[int64][]string)
	for tagRows.Next() {
		var id int64
		var name string
		if err := tagRows.Scan(&id, &name); err != nil {
			tagRows.Close()
			return nil, err
		}
		tags[id] = append(tags[id], name)
	}
	if err := tagRows.Err(); err != nil {
		tagRows.Close()
		return nil, err
	}
	tagRows.Close()

	out := make([]ExportRow, 0, len(torrents))
	for _, t := range torrents {
		out = append(out, ExportRow{
			Torrent:  t,
			Primary:  primary[t.ID],
			Featured: featured[t.ID],
			Tags:     tags[t.ID],
		})
	}
	return out, nil
}

func (s *Store) queryTorrents(ctx context.Context, where string, args ...any) ([]Torrent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT TorrentID, Name, OriginalYear, EditionYear, EditionTitle, Label,
		       CatalogNumber, Size, Source, Format, Encoding, Log, Cue, Infohash,
		       Description
		FROM Torrents `+where+`
		ORDER BY rowid
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query torrents: %w", err)
	}
	defer rows.Close()

	var torrents []Torrent
	for rows.Next() {
		var t Torrent
		var originalYear, editionYear, logScore sql.NullInt64
		var editionTitle, label, catno, source, description sql.NullString
		var cue sql.NullBool

		err := rows.Scan(
			&t.ID, &t.Name, &originalYear, &editionYear, &editionTitle, &label,
			&catno, &t.Size, &source, &t.Format, &t.Encoding, &logScore, &cue, &t.InfoHash,
			&description,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan torrent: %w", err)
		}

		t.OriginalYear = int(originalYear.Int64)
		if editionYear.Valid {
			y := int(editionYear.Int64)
			t.EditionYear = &y
		}
		if logScore.Valid {
			l := int(logScore.Int64)
			t.LogScore = &l
		}
		t.EditionTitle = editionTitle.String
		t.Label = label.String
		t.CatalogNumber = catno.String
		t.Source = source.String
		t.HasCue = cue.Bool
		t.Description = description.String

		torrents = append(torrents, t)
	}

	return torrents, rows.Err()
}

// IsNonQualifying reports whether the torrent is recorded as non-music
func (s *Store) IsNonQualifying(ctx context.Context, torrentID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM NonMusic WHERE TorrentID = ?`, torrentID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up non-music torrent %d: %w", torrentID, err)
	}
	return n > 0, nil
}
