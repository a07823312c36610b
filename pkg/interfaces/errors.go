package interfaces

import "errors"

// Common errors shared across component boundaries
var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrSessionNotActive   = errors.New("session has no active connections")
)
