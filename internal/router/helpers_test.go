package router

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"lingorelay/internal/translation"
	"lingorelay/internal/websocket"
	"lingorelay/pkg/protocol"
	"lingorelay/pkg/types"
)

var errClosed = errors.New("closed")

// fakeConn records every envelope it receives.
type fakeConn struct {
	id     string
	mu     sync.Mutex
	inbox  []protocol.Outbound
	closed bool
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(msg protocol.Outbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errClosed
	}
	f.inbox = append(f.inbox, msg)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) received() []protocol.Outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Outbound(nil), f.inbox...)
}

func (f *fakeConn) ofType(msgType string) []protocol.Outbound {
	var out []protocol.Outbound
	for _, m := range f.received() {
		if m.MessageType() == msgType {
			out = append(out, m)
		}
	}
	return out
}

// memoryRecorder keeps transcript entries in memory.
type memoryRecorder struct {
	mu      sync.Mutex
	entries []types.TranscriptEntry
}

func (m *memoryRecorder) Record(_ context.Context, entry types.TranscriptEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
}

func (m *memoryRecorder) all() []types.TranscriptEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.TranscriptEntry(nil), m.entries...)
}

type fixture struct {
	router   *Router
	registry *websocket.Registry
	recorder *memoryRecorder
}

func testLogger() *slog.Logger { return logs.GetLoggerFromLevel(slog.LevelError) }

func newFixture(t *testing.T, tr translation.Translator, cfg Config) *fixture {
	t.Helper()
	if tr == nil {
		tr = translation.NewStubTranslator(nil)
	}
	catalog, err := translation.NewCatalog(types.ReferenceLanguage, types.DefaultTravelerLanguages, translation.DefaultModelTemplate, nil)
	require.NoError(t, err)

	registry := websocket.NewRegistry(testLogger())
	gateway := translation.NewGateway(catalog, tr, translation.GatewayConfig{Timeout: time.Second}, testLogger())
	recorder := &memoryRecorder{}
	r := NewRouter(registry, gateway, recorder, cfg, testLogger())
	r.now = func() time.Time { return time.Date(2026, 10, 19, 14, 30, 5, 0, time.UTC) }

	return &fixture{router: r, registry: registry, recorder: recorder}
}

// join registers a connection and assigns it a role through the router.
func (f *fixture) join(t *testing.T, id string, role types.Role, session string, lang types.LanguageCode) *fakeConn {
	t.Helper()
	conn := newFakeConn(id)
	f.registry.Register(conn)
	require.NoError(t, f.router.Route(context.Background(), conn, protocol.SetRole{Role: role, SessionID: session, Language: lang}))
	return conn
}

func (f *fixture) say(t *testing.T, conn *fakeConn, text string) {
	t.Helper()
	require.NoError(t, f.router.Route(context.Background(), conn, protocol.Transcription{Text: text}))
}
