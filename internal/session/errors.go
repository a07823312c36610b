package session

import "errors"

// Transcript recording error types
var (
	ErrTranscriptDisabled = errors.New("transcript store is not configured")
	ErrInvalidEntry       = errors.New("transcript entry must carry an id, a session and a sender role")
)
