package tracker

import (
	"errors"
	"fmt"
)

// ErrAPIFailure indicates the API answered with a non-success status
var ErrAPIFailure = errors.New("tracker API returned failure status")

// LoginError is returned by New when a session could not be established.
// It is fatal for the run.
type LoginError struct {
	StatusCode int // HTTP status of the login POST, 0 if none was received
	Err        error
}

func (e *LoginError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("login failed (HTTP %d): %v", e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("login failed: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("login failed (HTTP %d)", e.StatusCode)
	default:
		return "login failed"
	}
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// RequestError is returned when a single API call fails. Callers skip the
// item and carry on.
type RequestError struct {
	Action     string
	TorrentID  int64 // set for torrent lookups
	StatusCode int
	Message    string // error text from the API envelope
	Err        error  // transport or decoding error
}

func (e *RequestError) Error() string {
	target := e.Action
	if e.TorrentID != 0 {
		target = fmt.Sprintf("%s %d", e.Action, e.TorrentID)
	}
	if e.Err != nil {
		return fmt.Sprintf("request %s failed: %v", target, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("request %s failed: %s", target, e.Message)
	}
	return fmt.Sprintf("request %s failed (HTTP %d)", target, e.StatusCode)
}

func (e *RequestError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrAPIFailure
}
