package util

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// LogTimeFormat prefixes every line written to a LogFile
const LogTimeFormat = "2006-01-02 15:04:05"

// EncodeFailurePlaceholder replaces lines the sink cannot represent
const EncodeFailurePlaceholder = "Failed to encode log line (usually due to special characters)."

// LogFile is an append-only, line-oriented text log.
type LogFile struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	charset string
	encoder *encoding.Encoder
	now     func() time.Time
}

// OpenLogFile opens (or creates) path for appending. charset names the text
// encoding lines are written in ("utf-8", "windows-1252", "iso-8859-1", ...);
// empty means UTF-8.
func OpenLogFile(path, charset string) (*LogFile, error) {
	if charset == "" {
		charset = "utf-8"
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown log charset %q", ErrInvalidConfig, charset)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &LogFile{
		file:    f,
		path:    path,
		charset: charset,
		encoder: enc.NewEncoder(),
		now:     time.Now,
	}, nil
}

// CanonicalCharset resolves a charset label ("latin1", "cp1252", ...) to its
// canonical name
func CanonicalCharset(charset string) (string, error) {
	if charset == "" {
		charset = "utf-8"
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", fmt.Errorf("%w: unknown log charset %q", ErrInvalidConfig, charset)
	}
	return htmlindex.Name(enc)
}

// Path returns the file path of the log
func (l *LogFile) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// WriteLine appends one timestamped line. Embedded newlines are flattened so
// each call produces exactly one line. A nil LogFile discards the line.
func (l *LogFile) WriteLine(line string) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	line = strings.ReplaceAll(strings.TrimRight(line, "\r\n"), "\n", " ")
	ts := l.now().Format(LogTimeFormat)

	encoded, ok := l.encode(ts + ": " + line + "\n")
	if !ok {
		encoded, _ = l.encode(ts + ": " + EncodeFailurePlaceholder + "\n")
	}
	// A failing log sink must not take the run down with it
	_, _ = l.file.WriteString(encoded)
}

func (l *LogFile) encode(s string) (string, bool) {
	if !utf8.ValidString(s) {
		return "", false
	}
	out, err := l.encoder.String(s)
	if err != nil {
		return "", false
	}
	return out, true
}

// Close closes the underlying file
func (l *LogFile) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
