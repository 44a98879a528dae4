package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/franz/spreadred/internal/store"
)

// Header is the export column order
var Header = []string{
	"TorrentID", "Artist(s)", "Name", "OriginalYear", "EditionYear",
	"EditionTitle", "Label", "CatalogNumber", "Size", "Source", "Format",
	"Encoding", "Log", "Cue", "Tags", "Infohash", "Description",
}

// RowSource supplies the flattened catalog rows
type RowSource interface {
	ExportRows(ctx context.Context) ([]store.ExportRow, error)
}

// FormatArtists joins primary artists with ", " and appends featured artists
// as " (feat. A, B)". With no primary artists the result starts with
// " (feat. ".
func FormatArtists(primary, featured []string) string {
	s := strings.Join(primary, ", ")
	if len(featured) > 0 {
		s += " (feat. " + strings.Join(featured, ", ") + ")"
	}
	return s
}

// Record renders one export row in Header order
func Record(row *store.ExportRow) []string {
	t := &row.Torrent

	cue := "0"
	if t.HasCue {
		cue = "1"
	}

	return []string{
		strconv.FormatInt(t.ID, 10),
		FormatArtists(row.Primary, row.Featured),
		t.Name,
		strconv.Itoa(t.OriginalYear),
		optionalInt(t.EditionYear),
		t.EditionTitle,
		t.Label,
		t.CatalogNumber,
		strconv.FormatInt(t.Size, 10),
		t.Source,
		t.Format,
		t.Encoding,
		optionalInt(t.LogScore),
		cue,
		strings.Join(row.Tags, ","),
		t.InfoHash,
		t.Description,
	}
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// WriteCSV exports every catalogued torrent to path, replacing any previous
// export. The file is written next to path and renamed into place. It
// returns the number of data rows written.
func WriteCSV(ctx context.Context, src RowSource, path string) (int, error) {
	rows, err := src.ExportRows(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load export rows: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create export file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to set export permissions: %w", err)
	}

	w := csv.NewWriter(tmp)
	if err := w.Write(Header); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	for i := range rows {
		if err := w.Write(Record(&rows[i])); err != nil {
			tmp.Close()
			return 0, fmt.Errorf("failed to write torrent %d: %w", rows[i].ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to flush export: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close export file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return len(rows), nil
}
