package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"lingorelay/pkg/interfaces"
	"lingorelay/pkg/protocol"
	"lingorelay/pkg/types"
)

// recordingLanes captures what the read pump hands over.
type recordingLanes struct {
	mu        sync.Mutex
	attached  map[string]interfaces.Connection
	detached  []string
	submitted []protocol.Inbound
	rejected  []error
}

func newRecordingLanes() *recordingLanes {
	return &recordingLanes{attached: make(map[string]interfaces.Connection)}
}

func (l *recordingLanes) Attach(conn interfaces.Connection) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attached[conn.ID()] = conn
	return nil
}

func (l *recordingLanes) Detach(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.detached = append(l.detached, connID)
}

func (l *recordingLanes) Submit(_ context.Context, _ string, msg protocol.Inbound) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitted = append(l.submitted, msg)
	return nil
}

func (l *recordingLanes) Reject(_ context.Context, connID string, err error) error {
	l.mu.Lock()
	conn := l.attached[connID]
	l.rejected = append(l.rejected, err)
	l.mu.Unlock()
	return conn.Send(protocol.NewError(err.Error()))
}

func (l *recordingLanes) snapshot() ([]protocol.Inbound, []error, []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]protocol.Inbound(nil), l.submitted...), append([]error(nil), l.rejected...), append([]string(nil), l.detached...)
}

func startHandler(t *testing.T) (*Registry, *recordingLanes, *websocket.Conn, chan string) {
	t.Helper()
	registry := NewRegistry(testLogger())
	lanes := newRecordingLanes()
	forgotten := make(chan string, 1)
	handler := NewHandler(registry, lanes, protocol.NewDecoder(append(slices.Clone(types.DefaultTravelerLanguages), types.ReferenceLanguage)), HandlerConfig{
		PingInterval: 50 * time.Millisecond,
		PongWait:     time.Second,
		WriteTimeout: time.Second,
		BufferSize:   8,
	}, testLogger(), func(connID string) { forgotten <- connID })

	srv := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return registry, lanes, client, forgotten
}

func TestHandler_DecodedFramesReachLane(t *testing.T) {
	registry, lanes, client, _ := startHandler(t)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"set_role","role":"traveler","session_id":"desk","language":"fr"}`)))
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"transcription","text":"Bonjour"}`)))

	require.Eventually(t, func() bool {
		submitted, _, _ := lanes.snapshot()
		return len(submitted) == 2
	}, 2*time.Second, 10*time.Millisecond)

	submitted, _, _ := lanes.snapshot()
	require.Equal(t, protocol.SetRole{Role: types.RoleTraveler, SessionID: "desk", Language: "fr"}, submitted[0])
	require.Equal(t, protocol.Transcription{Text: "Bonjour"}, submitted[1])
	require.Equal(t, 1, registry.GetStats()["total_connections"])
}

func TestHandler_MalformedFrameIsRejectedAndConnectionStaysOpen(t *testing.T) {
	_, lanes, client, _ := startHandler(t)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"transcription","text":"hi","traveler_language":"xx"}`)))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got protocol.ErrorMessage
	require.NoError(t, client.ReadJSON(&got))
	require.Equal(t, protocol.TypeError, got.Type)
	require.Contains(t, got.Message, "xx")

	// Still usable afterwards
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"stop_recording"}`)))
	require.Eventually(t, func() bool {
		submitted, rejected, _ := lanes.snapshot()
		return len(submitted) == 1 && len(rejected) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, rejected, _ := lanes.snapshot()
	require.ErrorIs(t, rejected[0], protocol.ErrUnsupportedLanguage)
}

func TestHandler_DisconnectCleansUp(t *testing.T) {
	registry, lanes, client, forgotten := startHandler(t)

	require.Eventually(t, func() bool {
		return registry.GetStats()["total_connections"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, client.Close())

	require.Eventually(t, func() bool {
		_, _, detached := lanes.snapshot()
		return len(detached) == 1 && registry.GetStats()["total_connections"] == 0
	}, 2*time.Second, 10*time.Millisecond)
	select {
	case <-forgotten:
	case <-time.After(2 * time.Second):
		t.Fatal("per-connection state was not released")
	}
}

func TestHandler_SendsPings(t *testing.T) {
	_, _, client, _ := startHandler(t)

	pinged := make(chan struct{}, 1)
	client.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})

	// Pings are processed while reading.
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a ping from the server")
	}
}
