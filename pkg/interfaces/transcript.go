package interfaces

import (
	"context"

	"lingorelay/pkg/types"
)

// TranscriptStore persists the transcript of active sessions.
// ARCHITECTURAL DISCOVERY: entries only live while their session has connections, the
// store is purged when a session drains and on every startup
type TranscriptStore interface {
	// StoreEntry appends one relayed message.
	StoreEntry(ctx context.Context, entry *types.TranscriptEntry) error

	// SessionTranscript returns a session's entries ordered by creation time.
	SessionTranscript(ctx context.Context, sessionID string) ([]*types.TranscriptEntry, error)

	// PurgeSession deletes every entry of a session.
	PurgeSession(ctx context.Context, sessionID string) error

	// PurgeAll deletes every entry.
	PurgeAll(ctx context.Context) error

	HealthCheck(ctx context.Context) error
	Close() error
}

// TranscriptRecorder is the write side used by the dispatcher.
type TranscriptRecorder interface {
	Record(ctx context.Context, entry types.TranscriptEntry)
}
