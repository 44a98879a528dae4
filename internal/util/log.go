package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// console describes how one kind of line is printed to stderr
type console struct {
	level LogLevel
	tag   string
	color string
}

var (
	debugLine   = console{LevelDebug, "[DEBUG]", "\033[90m"}
	infoLine    = console{LevelInfo, "[INFO] ", "\033[36m"}
	warnLine    = console{LevelWarn, "[WARN] ", "\033[33m"}
	errorLine   = console{LevelError, "[ERROR]", "\033[31m"}
	successLine = console{LevelInfo, "[OK]   ", "\033[32m"}
)

var (
	mu              sync.Mutex
	currentLogLevel = LevelInfo
	useColors       = IsTerminal(os.Stderr.Fd())
	logFile         *LogFile
	stderr          io.Writer = os.Stderr
)

// SetLogLevel sets the minimum log level to display
func SetLogLevel(level LogLevel) {
	mu.Lock()
	currentLogLevel = level
	mu.Unlock()
}

// SetVerbose enables verbose (debug) logging
func SetVerbose(verbose bool) {
	if verbose {
		SetLogLevel(LevelDebug)
	}
}

// SetQuiet enables quiet mode (errors only)
func SetQuiet(quiet bool) {
	if quiet {
		SetLogLevel(LevelError)
	}
}

// IsQuiet reports whether only errors are printed to the console
func IsQuiet() bool {
	mu.Lock()
	defer mu.Unlock()
	return currentLogLevel >= LevelError
}

// SetColors enables or disables colored output
func SetColors(enabled bool) {
	mu.Lock()
	useColors = enabled
	mu.Unlock()
}

// SetLogFile attaches a log file sink. Every info, warning, error and success
// line is appended to it regardless of console verbosity; debug lines only
// when verbose. Pass nil to detach.
func SetLogFile(f *LogFile) {
	mu.Lock()
	logFile = f
	mu.Unlock()
}

func emit(c console, format string, args []any) {
	msg := fmt.Sprintf(format, args...)

	mu.Lock()
	shown := currentLogLevel <= c.level
	sink := logFile
	if shown {
		stamp := time.Now().Format("15:04:05")
		if useColors {
			stamp = c.color + stamp + "\033[0m"
		}
		fmt.Fprintf(stderr, "%s %s %s\n", stamp, c.tag, msg)
	}
	mu.Unlock()

	if c.level == LevelDebug && !shown {
		return
	}
	sink.WriteLine(msg)
}

// DebugLog logs debug messages
func DebugLog(format string, args ...any) {
	emit(debugLine, format, args)
}

// InfoLog logs informational messages
func InfoLog(format string, args ...any) {
	emit(infoLine, format, args)
}

// WarnLog logs warning messages
func WarnLog(format string, args ...any) {
	emit(warnLine, format, args)
}

// ErrorLog logs error messages
func ErrorLog(format string, args ...any) {
	emit(errorLine, format, args)
}

// SuccessLog logs success messages (shown unless quiet)
func SuccessLog(format string, args ...any) {
	emit(successLine, format, args)
}
