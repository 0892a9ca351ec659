package recorder

import "errors"

// Domain-specific errors for recorder state transitions.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAlreadyRecording is returned when Start is called outside the idle state.
	ErrAlreadyRecording = errors.New("recorder: already recording")

	// ErrNotRecording is returned when Stop is called outside the recording state.
	ErrNotRecording = errors.New("recorder: not recording")

	// ErrNoTopics is returned when Start is called with no topic filters configured.
	ErrNoTopics = errors.New("recorder: no topic filters configured")
)
