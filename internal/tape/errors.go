package tape

import "errors"

// Domain-specific errors for the tape store.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNoRuns is returned when resolving the latest run on an empty database.
	ErrNoRuns = errors.New("tape: no recorded runs")

	// ErrRunNotFound is returned when the referenced run does not exist.
	ErrRunNotFound = errors.New("tape: run not found")

	// ErrRunClosed is returned when closing a run that already has an end time.
	// Closing twice is a caller error, not a silent no-op.
	ErrRunClosed = errors.New("tape: run already closed")
)
