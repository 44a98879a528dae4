package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/franz/spreadred/internal/meta"
	"github.com/franz/spreadred/internal/scan"
	"github.com/franz/spreadred/internal/store"
	"github.com/franz/spreadred/internal/util"
)

// Fetcher retrieves the raw torrent payload for an id
type Fetcher interface {
	FetchTorrent(ctx context.Context, torrentID int64) (json.RawMessage, error)
}

// Catalog is the part of the store the reconciler writes to
type Catalog interface {
	Contains(ctx context.Context, torrentID int64) (bool, error)
	UpsertTorrent(ctx context.Context, rel *store.Release, overwrite bool) error
	UpsertNonQualifying(ctx context.Context, torrentID int64, overwrite bool) error
}

// Reason classifies a per-candidate failure
type Reason string

const (
	ReasonRequest   Reason = "request"
	ReasonMalformed Reason = "malformed"
	ReasonStore     Reason = "store"
)

// Failure records a candidate that could not be catalogued
type Failure struct {
	Candidate scan.Candidate
	Reason    Reason
	Err       error
}

// Result summarizes one pass
type Result struct {
	Candidates    int
	Skipped       int
	Inserted      int
	NonQualifying int
	Failures      []Failure
	Duration      time.Duration
}

// Failed returns the number of failed candidates
func (r *Result) Failed() int {
	return len(r.Failures)
}

// Config holds reconciler configuration
type Config struct {
	Fetcher Fetcher
	Catalog Catalog

	// Overwrite re-fetches catalogued torrents and replaces their rows
	Overwrite bool
}

// Reconciler decides per candidate whether to skip, fetch and insert, or
// fetch and replace
type Reconciler struct {
	fetcher   Fetcher
	catalog   Catalog
	overwrite bool
}

// New creates a new Reconciler
func New(cfg *Config) *Reconciler {
	return &Reconciler{
		fetcher:   cfg.Fetcher,
		catalog:   cfg.Catalog,
		overwrite: cfg.Overwrite,
	}
}

// Run processes every candidate. Individual failures are logged and
// collected in the result; only context cancellation stops the pass early.
func (r *Reconciler) Run(ctx context.Context, candidates []scan.Candidate) (*Result, error) {
	start := time.Now()
	result := &Result{Candidates: len(candidates)}

	if r.overwrite {
		util.InfoLog("Overwrite enabled: catalogued torrents will be fetched again")
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		if f := r.process(ctx, c, result); f != nil {
			if ctx.Err() != nil {
				result.Duration = time.Since(start)
				return result, ctx.Err()
			}
			result.Failures = append(result.Failures, *f)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// process handles one candidate, returning a failure when it could not be
// catalogued
func (r *Reconciler) process(ctx context.Context, c scan.Candidate, result *Result) *Failure {
	filename := filepath.Base(c.Path)

	if !r.overwrite {
		known, err := r.catalog.Contains(ctx, c.ID)
		if err != nil {
			util.ErrorLog("Failed to look up Torrent ID %d: %v", c.ID, err)
			return &Failure{Candidate: c, Reason: ReasonStore, Err: err}
		}
		if known {
			util.DebugLog("Torrent ID %d already catalogued, skipping", c.ID)
			result.Skipped++
			return nil
		}
	}

	raw, err := r.fetcher.FetchTorrent(ctx, c.ID)
	if err != nil {
		util.WarnLog("Failed to request torrent data for Torrent ID: %d, Filename: %s", c.ID, filename)
		util.DebugLog("Torrent ID %d: %v", c.ID, err)
		return &Failure{Candidate: c, Reason: ReasonRequest, Err: err}
	}

	resp, err := meta.Parse(raw)
	if err != nil {
		util.WarnLog("Could not fetch information for Torrent ID: %d, Filename: %s", c.ID, filename)
		util.DebugLog("Torrent ID %d: %v", c.ID, err)
		return &Failure{Candidate: c, Reason: ReasonMalformed, Err: err}
	}

	if resp.Torrent.ID > 0 && resp.Torrent.ID != c.ID {
		util.WarnLog("Torrent ID %d (Filename: %q) returned data for Torrent ID %d", c.ID, filename, resp.Torrent.ID)
	}

	if !resp.Qualifies() {
		id := resp.Torrent.ID
		if id <= 0 {
			id = c.ID
		}
		if err := r.catalog.UpsertNonQualifying(ctx, id, r.overwrite); err != nil {
			util.ErrorLog("Failed to store Torrent ID %d: %v", id, err)
			return &Failure{Candidate: c, Reason: ReasonStore, Err: err}
		}
		util.InfoLog("Torrent ID %d (Filename: %q) is not a music torrent, skipping...", id, filename)
		result.NonQualifying++
		return nil
	}

	rel := meta.Normalize(resp, c.ID)
	if err := r.catalog.UpsertTorrent(ctx, rel, r.overwrite); err != nil {
		if errors.Is(err, store.ErrConstraintViolation) {
			util.ErrorLog("Torrent ID %d is already catalogued: %v", rel.Torrent.ID, err)
		} else {
			util.ErrorLog("Failed to store Torrent ID %d: %v", rel.Torrent.ID, err)
		}
		return &Failure{Candidate: c, Reason: ReasonStore, Err: err}
	}

	util.InfoLog("Inserted Torrent ID %d: %s", rel.Torrent.ID, meta.Summary(rel))
	result.Inserted++
	return nil
}

// Error renders a failure with enough context for manual follow-up
func (f *Failure) Error() string {
	return fmt.Sprintf("Torrent ID %d (%s): %s: %v", f.Candidate.ID, filepath.Base(f.Candidate.Path), f.Reason, f.Err)
}
