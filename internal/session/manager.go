package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"lingorelay/pkg/interfaces"
	"lingorelay/pkg/types"
)

const defaultStoreTimeout = 5 * time.Second

// SessionLookup reports whether a session still has connections.
type SessionLookup interface {
	Session(sessionID string) (types.SessionSummary, bool)
}

// Recorder keeps the transcript of active sessions.
// ARCHITECTURAL DISCOVERY: recording is best-effort, a failing store never fails a relay
type Recorder struct {
	store    interfaces.TranscriptStore
	sessions SessionLookup
	timeout  time.Duration
	recorded map[string]int // sessionID -> entries stored since the session became active
	mu       sync.RWMutex
	// writeMu orders a store against the purge of the same session
	writeMu sync.Mutex
	logger  *slog.Logger
}

// NewRecorder creates a recorder. A nil store disables recording.
func NewRecorder(store interfaces.TranscriptStore, timeout time.Duration, logger *slog.Logger) *Recorder {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &Recorder{
		store:    store,
		timeout:  timeout,
		recorded: make(map[string]int),
		logger:   logger,
	}
}

// WatchSessions makes Record drop entries of sessions that have no connections left.
// It must be set before relaying starts.
func (r *Recorder) WatchSessions(lookup SessionLookup) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.sessions = lookup
}

// Enabled reports whether a store is configured.
func (r *Recorder) Enabled() bool {
	return r.store != nil
}

// Reset purges every stored entry, used once at startup.
func (r *Recorder) Reset(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.PurgeAll(ctx); err != nil {
		return fmt.Errorf("failed to reset transcripts: %w", err)
	}

	r.mu.Lock()
	clear(r.recorded)
	r.mu.Unlock()

	r.logger.Info("Transcript store reset")
	return nil
}

// Record stores one relayed message.
func (r *Recorder) Record(ctx context.Context, entry types.TranscriptEntry) {
	if r.store == nil {
		return
	}
	if entry.ID == "" || !types.IsValidSessionID(entry.SessionID) || entry.SenderRole == types.RoleUnset {
		r.logger.Warn("Dropping transcript entry", "session", entry.SessionID, "err", ErrInvalidEntry)
		return
	}

	// FUNCTIONAL DISCOVERY: a relay can outlive its session when the last connection leaves
	// during translation. The check and the write happen under writeMu, which SessionDrained
	// also takes, so an entry is either purged with its session or never written
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.sessions != nil {
		if _, active := r.sessions.Session(entry.SessionID); !active {
			r.logger.Debug("Dropping transcript entry of drained session", "session", entry.SessionID, "entry", entry.ID)
			return
		}
	}

	// TECHNICAL DISCOVERY: the relay context may be cancelled by a disconnect right after
	// delivery, the entry is still written
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.store.StoreEntry(storeCtx, &entry); err != nil {
		r.logger.Error("Failed to record transcript entry", "session", entry.SessionID, "entry", entry.ID, "err", err)
		return
	}

	r.mu.Lock()
	r.recorded[entry.SessionID]++
	r.mu.Unlock()
}

// Transcript returns the entries of a session in relay order.
func (r *Recorder) Transcript(ctx context.Context, sessionID string) ([]*types.TranscriptEntry, error) {
	if !types.IsValidSessionID(sessionID) {
		return nil, types.ErrInvalidSessionID
	}
	if r.store == nil {
		return nil, ErrTranscriptDisabled
	}

	entries, err := r.store.SessionTranscript(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript of %s: %w", sessionID, err)
	}
	return entries, nil
}

// SessionDrained purges the transcript of a session whose last connection left.
func (r *Recorder) SessionDrained(sessionID string) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	delete(r.recorded, sessionID)
	r.mu.Unlock()

	if r.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.store.PurgeSession(ctx, sessionID); err != nil {
		r.logger.Error("Failed to purge transcript", "session", sessionID, "err", err)
		return
	}
	r.logger.Info("Session drained, transcript purged", "session", sessionID)
}

// Stats returns recording counters for the health endpoint.
func (r *Recorder) Stats() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]interface{}{
		"enabled":          r.store != nil,
		"sessions":         len(r.recorded),
		"recorded_entries": lo.Sum(lo.Values(r.recorded)),
	}
}

// HealthCheck reports the store health, a disabled store is healthy.
func (r *Recorder) HealthCheck(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	return r.store.HealthCheck(ctx)
}
