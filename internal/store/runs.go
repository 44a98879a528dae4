package store

import (
	"context"
	"database/sql"
	"fmt"
)

// RecordRun inserts or replaces a run record
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	var completed sql.NullTime
	if !run.CompletedAt.IsZero() {
		completed = sql.NullTime{Time: run.CompletedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO Runs
		(RunID, StartedAt, CompletedAt, Overwrite, Candidates, Skipped, Inserted, NonQualifying, Failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt, completed, run.Overwrite, run.Candidates, run.Skipped,
		run.Inserted, run.NonQualifying, run.Failed)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}

	return nil
}

// RecentRuns returns up to limit runs, newest first
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT RunID, StartedAt, CompletedAt, COALESCE(Overwrite, 0), Candidates, Skipped,
		       Inserted, NonQualifying, Failed
		FROM Runs
		ORDER BY StartedAt DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var completed sql.NullTime

		err := rows.Scan(&run.ID, &run.StartedAt, &completed, &run.Overwrite, &run.Candidates,
			&run.Skipped, &run.Inserted, &run.NonQualifying, &run.Failed)
		if err != nil {
			return nil, err
		}

		if completed.Valid {
			run.CompletedAt = completed.Time
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// Stats returns row counts for the catalog tables
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM Torrents),
			(SELECT COUNT(*) FROM NonMusic),
			(SELECT COUNT(*) FROM Artists),
			(SELECT COUNT(*) FROM Tags),
			(SELECT COALESCE(SUM(Size), 0) FROM Torrents)
	`).Scan(&st.Torrents, &st.NonQualifying, &st.Credits, &st.Tags, &st.TotalSize)
	if err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}

	return &st, nil
}
