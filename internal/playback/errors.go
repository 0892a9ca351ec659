package playback

import "errors"

// Domain-specific errors for playback.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidSpeed is returned for a speed factor that is not a positive,
	// finite number. Validated before any connection or read is attempted.
	ErrInvalidSpeed = errors.New("playback: speed must be a positive finite number")
)
