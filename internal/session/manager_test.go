package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"lingorelay/pkg/interfaces"
	"lingorelay/pkg/types"
)

var _ interfaces.TranscriptRecorder = (*Recorder)(nil)

// Mock TranscriptStore for testing
type mockStore struct {
	mu      sync.Mutex
	entries []*types.TranscriptEntry
	purged  []string
	reset   int

	// Control behavior for testing
	shouldFailStore bool
	shouldFailRead  bool
	storeCtxErr     error
}

func (m *mockStore) StoreEntry(ctx context.Context, entry *types.TranscriptEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeCtxErr = ctx.Err()
	if m.shouldFailStore {
		return errors.New("database insert failed")
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockStore) SessionTranscript(ctx context.Context, sessionID string) ([]*types.TranscriptEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFailRead {
		return nil, errors.New("database read failed")
	}
	var out []*types.TranscriptEntry
	for _, e := range m.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) PurgeSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purged = append(m.purged, sessionID)
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.SessionID != sessionID {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

func (m *mockStore) PurgeAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset++
	m.entries = nil
	return nil
}

func (m *mockStore) HealthCheck(ctx context.Context) error { return nil }
func (m *mockStore) Close() error                          { return nil }

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelError)
}

func sampleEntry(id, sessionID string) types.TranscriptEntry {
	return types.TranscriptEntry{
		ID:             id,
		SessionID:      sessionID,
		SenderRole:     types.RoleTraveler,
		Original:       "Hola",
		Translated:     "Hello",
		SourceLanguage: "es",
		TargetLanguage: "en",
		CreatedAt:      time.Now(),
	}
}

func TestRecordAndTranscript(t *testing.T) {
	store := &mockStore{}
	recorder := NewRecorder(store, time.Second, testLogger())
	ctx := context.Background()

	recorder.Record(ctx, sampleEntry("1", "room-1"))
	recorder.Record(ctx, sampleEntry("2", "room-1"))
	recorder.Record(ctx, sampleEntry("3", "room-2"))

	entries, err := recorder.Transcript(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "1", entries[0].ID)
	require.Equal(t, "2", entries[1].ID)

	stats := recorder.Stats()
	require.Equal(t, true, stats["enabled"])
	require.Equal(t, 2, stats["sessions"])
	require.Equal(t, 3, stats["recorded_entries"])
}

func TestRecordSurvivesCancelledRelayContext(t *testing.T) {
	store := &mockStore{}
	recorder := NewRecorder(store, time.Second, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	recorder.Record(ctx, sampleEntry("1", "room-1"))

	require.Len(t, store.entries, 1)
	require.NoError(t, store.storeCtxErr)
}

func TestRecordDropsInvalidEntries(t *testing.T) {
	store := &mockStore{}
	recorder := NewRecorder(store, time.Second, testLogger())
	ctx := context.Background()

	noID := sampleEntry("", "room-1")
	noSession := sampleEntry("1", "")
	noRole := sampleEntry("2", "room-1")
	noRole.SenderRole = types.RoleUnset

	recorder.Record(ctx, noID)
	recorder.Record(ctx, noSession)
	recorder.Record(ctx, noRole)

	require.Empty(t, store.entries)
}

func TestRecordStoreFailureIsAbsorbed(t *testing.T) {
	store := &mockStore{shouldFailStore: true}
	recorder := NewRecorder(store, time.Second, testLogger())

	require.NotPanics(t, func() {
		recorder.Record(context.Background(), sampleEntry("1", "room-1"))
	})
	require.Equal(t, 0, recorder.Stats()["sessions"])
}

func TestTranscriptErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid session", func(t *testing.T) {
		recorder := NewRecorder(&mockStore{}, time.Second, testLogger())
		_, err := recorder.Transcript(ctx, "")
		require.ErrorIs(t, err, types.ErrInvalidSessionID)
	})

	t.Run("disabled", func(t *testing.T) {
		recorder := NewRecorder(nil, time.Second, testLogger())
		_, err := recorder.Transcript(ctx, "room-1")
		require.ErrorIs(t, err, ErrTranscriptDisabled)
	})

	t.Run("store failure", func(t *testing.T) {
		recorder := NewRecorder(&mockStore{shouldFailRead: true}, time.Second, testLogger())
		_, err := recorder.Transcript(ctx, "room-1")
		require.Error(t, err)
	})
}

func TestSessionDrainedPurgesOnlyThatSession(t *testing.T) {
	store := &mockStore{}
	recorder := NewRecorder(store, time.Second, testLogger())
	ctx := context.Background()

	recorder.Record(ctx, sampleEntry("1", "room-1"))
	recorder.Record(ctx, sampleEntry("2", "room-2"))

	recorder.SessionDrained("room-1")

	require.Equal(t, []string{"room-1"}, store.purged)
	entries, err := recorder.Transcript(ctx, "room-1")
	require.NoError(t, err)
	require.Empty(t, entries)

	entries, err = recorder.Transcript(ctx, "room-2")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 1, recorder.Stats()["sessions"])
}

func TestReset(t *testing.T) {
	store := &mockStore{}
	recorder := NewRecorder(store, time.Second, testLogger())
	ctx := context.Background()

	recorder.Record(ctx, sampleEntry("1", "room-1"))
	require.NoError(t, recorder.Reset(ctx))

	require.Equal(t, 1, store.reset)
	require.Empty(t, store.entries)
	require.Equal(t, 0, recorder.Stats()["recorded_entries"])
}

func TestNilStoreIsNoop(t *testing.T) {
	recorder := NewRecorder(nil, 0, testLogger())
	ctx := context.Background()

	require.False(t, recorder.Enabled())
	require.NotPanics(t, func() {
		recorder.Record(ctx, sampleEntry("1", "room-1"))
		recorder.SessionDrained("room-1")
	})
	require.NoError(t, recorder.Reset(ctx))
	require.NoError(t, recorder.HealthCheck(ctx))
	require.Equal(t, false, recorder.Stats()["enabled"])
}

// fakeSessions is a SessionLookup over a fixed set of active session IDs.
type fakeSessions struct {
	mu     sync.Mutex
	active map[string]bool
}

func (f *fakeSessions) Session(sessionID string) (types.SessionSummary, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active[sessionID] {
		return types.SessionSummary{}, false
	}
	return types.SessionSummary{ID: sessionID}, true
}

func (f *fakeSessions) set(sessionID string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[sessionID] = active
}

// slowStore holds every StoreEntry until release is closed.
type slowStore struct {
	mockStore
	storing chan struct{}
	release chan struct{}
}

func (s *slowStore) StoreEntry(ctx context.Context, entry *types.TranscriptEntry) error {
	close(s.storing)
	<-s.release
	return s.mockStore.StoreEntry(ctx, entry)
}

func TestRecordDropsEntriesOfDrainedSession(t *testing.T) {
	store := &mockStore{}
	sessions := &fakeSessions{active: map[string]bool{"room-1": true}}
	recorder := NewRecorder(store, time.Second, testLogger())
	recorder.WatchSessions(sessions)
	ctx := context.Background()

	recorder.Record(ctx, sampleEntry("1", "room-1"))
	sessions.set("room-1", false)
	recorder.SessionDrained("room-1")

	// A relay that finished after the drain must not resurrect the transcript
	recorder.Record(ctx, sampleEntry("2", "room-1"))

	entries, err := recorder.Transcript(ctx, "room-1")
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Equal(t, 0, recorder.Stats()["recorded_entries"])

	// The session ID is reused by a new conversation
	sessions.set("room-1", true)
	recorder.Record(ctx, sampleEntry("3", "room-1"))
	entries, err = recorder.Transcript(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "3", entries[0].ID)
}

func TestSessionDrainedWaitsForInFlightStore(t *testing.T) {
	store := &slowStore{storing: make(chan struct{}), release: make(chan struct{})}
	sessions := &fakeSessions{active: map[string]bool{"room-1": true}}
	recorder := NewRecorder(store, time.Second, testLogger())
	recorder.WatchSessions(sessions)

	recorded := make(chan struct{})
	go func() {
		defer close(recorded)
		recorder.Record(context.Background(), sampleEntry("1", "room-1"))
	}()
	<-store.storing

	// The last connection leaves while the entry is being written
	sessions.set("room-1", false)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		recorder.SessionDrained("room-1")
	}()

	select {
	case <-drained:
		t.Fatal("purge ran while a store of the same session was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	<-recorded
	<-drained

	entries, err := recorder.Transcript(context.Background(), "room-1")
	require.NoError(t, err)
	require.Empty(t, entries)
}
