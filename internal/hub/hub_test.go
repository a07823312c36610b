package hub

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
	"lingorelay/pkg/protocol"
)

type stubConn struct{ id string }

func (c stubConn) ID() string { return c.id }
func (c stubConn) Send(protocol.Outbound) error { return nil }
func (c stubConn) Close() error { return nil }

type routed struct {
	conn string
	text string
	err  error
	ctx  error
}

// scriptedRouter records calls; transcriptions whose text is in block wait for release.
type scriptedRouter struct {
	mu      sync.Mutex
	calls   []routed
	block   map[string]chan struct{}
	started chan string
}

func newScriptedRouter() *scriptedRouter {
	return &scriptedRouter{block: make(map[string]chan struct{}), started: make(chan string, 16)}
}

func (r *scriptedRouter) Route(ctx context.Context, conn interfaces.Connection, msg protocol.Inbound) error {
	text := msg.MessageType()
	if t, ok := msg.(protocol.Transcription); ok {
		text = t.Text
	}
	r.started <- text

	r.mu.Lock()
	gate := r.block[text]
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, routed{conn: conn.ID(), text: text, ctx: ctx.Err()})
	if text == "fail" {
		return errors.New("boom")
	}
	return nil
}

func (r *scriptedRouter) Reject(conn interfaces.Connection, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, routed{conn: conn.ID(), err: err})
}

func (r *scriptedRouter) gate(text string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{})
	r.block[text] = ch
	return ch
}

func (r *scriptedRouter) snapshot() []routed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]routed(nil), r.calls...)
}

func startHub(t *testing.T, router Router) *Hub {
	t.Helper()
	h := NewHub(router, 8, logs.GetLoggerFromLevel(slog.LevelError))
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { _ = h.Stop() })
	return h
}

func transcription(text string) protocol.Transcription {
	return protocol.Transcription{Text: text}
}

func TestHub_Lifecycle(t *testing.T) {
	h := NewHub(newScriptedRouter(), 0, logs.GetLoggerFromLevel(slog.LevelError))

	require.ErrorIs(t, h.Attach(stubConn{"c"}), ErrHubNotRunning)
	require.ErrorIs(t, h.Stop(), ErrHubNotRunning)
	require.NoError(t, h.Start(context.Background()))
	require.ErrorIs(t, h.Start(context.Background()), ErrHubAlreadyRunning)

	require.NoError(t, h.Attach(stubConn{"c"}))
	require.ErrorIs(t, h.Attach(stubConn{"c"}), ErrLaneExists)
	require.Equal(t, 1, h.Lanes())

	require.NoError(t, h.Stop())
	require.Zero(t, h.Lanes())
	require.ErrorIs(t, h.Submit(context.Background(), "c", transcription("x")), ErrHubNotRunning)
}

func TestHub_PreservesPerSenderOrder(t *testing.T) {
	router := newScriptedRouter()
	h := startHub(t, router)
	require.NoError(t, h.Attach(stubConn{"t1"}))

	ctx := context.Background()
	require.NoError(t, h.Submit(ctx, "t1", transcription("Hola")))
	require.NoError(t, h.Reject(ctx, "t1", protocol.Malformed("text", "field is required")))
	require.NoError(t, h.Submit(ctx, "t1", transcription("Gracias")))

	require.Eventually(t, func() bool { return len(router.snapshot()) == 3 }, 2*time.Second, 5*time.Millisecond)

	calls := router.snapshot()
	require.Equal(t, "Hola", calls[0].text)
	require.ErrorIs(t, calls[1].err, protocol.ErrProtocol)
	require.Equal(t, "Gracias", calls[2].text)
}

func TestHub_SlowSenderDoesNotBlockOthers(t *testing.T) {
	router := newScriptedRouter()
	h := startHub(t, router)
	require.NoError(t, h.Attach(stubConn{"slow"}))
	require.NoError(t, h.Attach(stubConn{"fast"}))

	release := router.gate("wait for model")
	defer close(release)

	ctx := context.Background()
	require.NoError(t, h.Submit(ctx, "slow", transcription("wait for model")))
	require.Equal(t, "wait for model", <-router.started)

	require.NoError(t, h.Submit(ctx, "fast", transcription("Hola")))
	require.Eventually(t, func() bool {
		calls := router.snapshot()
		return len(calls) == 1 && calls[0].conn == "fast"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHub_DetachDuringInFlightRoute(t *testing.T) {
	router := newScriptedRouter()
	h := startHub(t, router)
	require.NoError(t, h.Attach(stubConn{"t1"}))

	release := router.gate("in flight")
	ctx := context.Background()
	require.NoError(t, h.Submit(ctx, "t1", transcription("in flight")))
	require.Equal(t, "in flight", <-router.started)
	require.NoError(t, h.Submit(ctx, "t1", transcription("queued")))

	// When the connection goes away mid-translation
	h.Detach("t1")
	close(release)

	// Then the in-flight message completes with a live context and the queued one is dropped
	require.Eventually(t, func() bool { return len(router.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	calls := router.snapshot()
	require.Len(t, calls, 1)
	require.Equal(t, "in flight", calls[0].text)
	require.NoError(t, calls[0].ctx)

	require.ErrorIs(t, h.Submit(ctx, "t1", transcription("late")), ErrLaneNotFound)
	require.Zero(t, h.Lanes())
}

func TestHub_RouteErrorIsRejected(t *testing.T) {
	router := newScriptedRouter()
	h := startHub(t, router)
	require.NoError(t, h.Attach(stubConn{"c"}))

	require.NoError(t, h.Submit(context.Background(), "c", transcription("fail")))

	require.Eventually(t, func() bool { return len(router.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)
	calls := router.snapshot()
	require.EqualError(t, calls[1].err, "boom")
}

func TestHub_SubmitBlocksWhenInboxFull(t *testing.T) {
	router := newScriptedRouter()
	h := NewHub(router, 1, logs.GetLoggerFromLevel(slog.LevelError))
	require.NoError(t, h.Start(context.Background()))
	defer func() { _ = h.Stop() }()
	require.NoError(t, h.Attach(stubConn{"c"}))

	release := router.gate("busy")
	defer close(release)

	require.NoError(t, h.Submit(context.Background(), "c", transcription("busy")))
	<-router.started
	require.NoError(t, h.Submit(context.Background(), "c", transcription("fills inbox")))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, h.Submit(ctx, "c", transcription("waits")), context.DeadlineExceeded)
}
