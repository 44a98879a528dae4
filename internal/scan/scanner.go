package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/spreadred/internal/util"
	"github.com/schollz/progressbar/v3"
)

// TorrentExtension is the file suffix the scanner looks for
const TorrentExtension = ".torrent"

// Candidate is a discovered torrent file and the id derived from its name
type Candidate struct {
	Path string
	ID   int64
}

// Scanner discovers .torrent files in a directory tree
type Scanner struct {
	showProgress bool
}

// Config holds scanner configuration
type Config struct {
	// ShowProgress draws a progress bar on stderr
	ShowProgress bool
}

// New creates a new Scanner
func New(cfg *Config) *Scanner {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Scanner{showProgress: cfg.ShowProgress}
}

// Result represents a scan result
type Result struct {
	Candidates     []Candidate
	FilesFound     int // .torrent files seen
	FilesUnmatched int // .torrent files whose name carries no id
	Duplicates     int // files whose id was already claimed by an earlier file
	Errors         []error
}

// Scan walks root and returns one candidate per distinct torrent id, in walk
// order. Files that do not follow the naming convention are skipped silently.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	util.InfoLog("Scanning for .torrent files in: %s", root)

	result := &Result{}
	seen := make(map[int64]string)

	var bar *progressbar.ProgressBar
	if s.showProgress {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			util.WarnLog("Error accessing path %s: %v", path, err)
			result.Errors = append(result.Errors, fmt.Errorf("access error: %s: %w", path, err))
			return nil // Continue walking
		}

		if d.IsDir() || !strings.HasSuffix(d.Name(), TorrentExtension) {
			return nil
		}

		result.FilesFound++
		if bar != nil {
			bar.Add(1)
		}

		id, ok := ExtractID(path)
		if !ok {
			result.FilesUnmatched++
			util.DebugLog("No torrent id in file name: %s", path)
			return nil
		}

		if first, dup := seen[id]; dup {
			result.Duplicates++
			util.DebugLog("Torrent ID %d already found in %s, ignoring %s", id, first, path)
			return nil
		}
		seen[id] = path
		result.Candidates = append(result.Candidates, Candidate{Path: path, ID: id})

		return nil
	})

	if bar != nil {
		bar.Finish()
	}

	if walkErr != nil {
		return result, fmt.Errorf("walk error: %w", walkErr)
	}

	util.InfoLog("Found %d .torrent files, %d with a torrent id (%d unmatched, %d duplicates)",
		result.FilesFound, len(result.Candidates), result.FilesUnmatched, result.Duplicates)

	return result, nil
}
