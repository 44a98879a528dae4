package scan

import (
	"path/filepath"
	"regexp"
	"strconv"
)

// Torrent files saved by the tracker's collector are named
// "Artist - Album (Year) [Format]-<torrent id>.torrent".
var torrentIDRE = regexp.MustCompile(`\)-(\d+)\.torrent$`)

// ExtractID derives the tracker torrent id from a .torrent file path.
// It returns false for files that do not follow the naming convention.
func ExtractID(path string) (int64, bool) {
	m := torrentIDRE.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, false
	}

	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
