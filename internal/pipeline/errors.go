package pipeline

import "errors"

// Hard failure conditions surfaced to the immediate caller. Per-day and
// per-batch remote failures are never returned as errors; they are folded
// into summaries and result lists as data.
var (
	// ErrInvalidRange rejects a malformed or inverted date range before any
	// remote call is made.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrNoDataAvailable means the requested scope has nothing to operate
	// on. It is fatal to the stage and to downstream pipeline stages.
	ErrNoDataAvailable = errors.New("no data available for the requested scope")

	// ErrSessionNotFound means the session is unknown or already cleaned.
	ErrSessionNotFound = errors.New("scrape session not found")

	// ErrFileNotFound means the named file is not held by the session.
	ErrFileNotFound = errors.New("file not found in session")
)
