package util

import (
	"golang.org/x/term"
)

// IsTerminal checks if the given file descriptor is a terminal
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// ShowProgress reports whether a progress bar should be drawn on fd
func ShowProgress(fd uintptr) bool {
	return IsTerminal(fd) && !IsQuiet()
}
