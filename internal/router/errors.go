package router

import (
	"errors"

	"lingorelay/pkg/protocol"
)

// Router-specific error types
var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrUnknownMessage    = errors.New("unknown message")
)

// errRoleRequired rejects a transcription from a connection that never sent set_role.
var errRoleRequired = protocol.Malformed("", "set_role required before sending transcriptions")
