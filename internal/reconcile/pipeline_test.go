package reconcile

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/spreadred/internal/report"
	"github.com/franz/spreadred/internal/scan"
	"github.com/franz/spreadred/internal/store"
	"github.com/franz/spreadred/internal/tracker"
)

// newTrackerServer answers ajax.php?action=torrent from the given payloads
func newTrackerServer(t *testing.T, payloads map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ajax.php" || r.URL.Query().Get("action") != "torrent" {
			http.NotFound(w, r)
			return
		}
		p, ok := payloads[r.URL.Query().Get("id")]
		if !ok {
			fmt.Fprint(w, `{"status":"failure","error":"bad id parameter"}`)
			return
		}
		fmt.Fprintf(w, `{"status":"success","response":%s}`, p)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// runPipeline scans dir, reconciles against the tracker and exports the CSV
func runPipeline(t *testing.T, srv *httptest.Server, dir string, st *store.Store, csvPath string) *Result {
	t.Helper()
	ctx := context.Background()

	client, err := tracker.New(ctx, tracker.Credentials{Session: "token"},
		&tracker.Options{BaseURL: srv.URL, MinInterval: 5 * time.Millisecond})
	require.NoError(t, err)

	scanned, err := scan.New(nil).Scan(ctx, dir)
	require.NoError(t, err)

	result, err := New(&Config{Fetcher: client, Catalog: st}).Run(ctx, scanned.Candidates)
	require.NoError(t, err)

	_, err = report.WriteCSV(ctx, st, csvPath)
	require.NoError(t, err)

	return result
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func writeTorrentFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("d8:announce0:e"), 0644))
	}
}

func TestPipelineMusicTorrent(t *testing.T) {
	dir := t.TempDir()
	writeTorrentFiles(t, dir, "Artist - Album (2020)-12345.torrent")

	srv := newTrackerServer(t, map[string]string{"12345": musicPayload(12345, "rock")})
	st := openTestStore(t)
	csvPath := filepath.Join(t.TempDir(), "SpreadRED.csv")

	result := runPipeline(t, srv, dir, st, csvPath)
	assert.Equal(t, 1, result.Inserted)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Torrents)

	records := readCSV(t, csvPath)
	require.Len(t, records, 2)
	assert.Equal(t, report.Header, records[0])
	assert.Equal(t, "12345", records[1][0])
	assert.Equal(t, "Artist (feat. Guest)", records[1][1])
	assert.Equal(t, "", records[1][4])
	assert.Equal(t, "Original Release", records[1][5])
}

func TestPipelineNonMusicTorrent(t *testing.T) {
	dir := t.TempDir()
	writeTorrentFiles(t, dir, "Narrator - Audiobook (2001)-999.torrent")

	srv := newTrackerServer(t, map[string]string{"999": nonMusicPayload(999)})
	st := openTestStore(t)
	csvPath := filepath.Join(t.TempDir(), "SpreadRED.csv")

	result := runPipeline(t, srv, dir, st, csvPath)
	assert.Equal(t, 1, result.NonQualifying)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Torrents)
	assert.Equal(t, 1, stats.NonQualifying)

	records := readCSV(t, csvPath)
	require.Len(t, records, 1, "only the header is exported")
}

func TestPipelineIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeTorrentFiles(t, dir,
		"Artist - Album (2020)-12345.torrent",
		"Narrator - Audiobook (2001)-999.torrent",
		"Missing - Gone (1990)-404.torrent",
	)

	srv := newTrackerServer(t, map[string]string{
		"12345": musicPayload(12345, "rock", "folk"),
		"999":   nonMusicPayload(999),
	})
	st := openTestStore(t)
	csvDir := t.TempDir()

	first := runPipeline(t, srv, dir, st, filepath.Join(csvDir, "first.csv"))
	assert.Equal(t, 1, first.Inserted)
	assert.Equal(t, 1, first.Failed())

	second := runPipeline(t, srv, dir, st, filepath.Join(csvDir, "second.csv"))
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1, second.Failed())

	firstCSV, err := os.ReadFile(filepath.Join(csvDir, "first.csv"))
	require.NoError(t, err)
	secondCSV, err := os.ReadFile(filepath.Join(csvDir, "second.csv"))
	require.NoError(t, err)
	assert.Equal(t, string(firstCSV), string(secondCSV))
}
