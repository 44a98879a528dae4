package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrNotFound indicates a required path or record was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates missing or unusable configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
