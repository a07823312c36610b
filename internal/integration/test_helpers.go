package integration

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"lingorelay/internal/app"
	"lingorelay/internal/config"
)

const readTimeout = 2 * time.Second

// relay is a running server on an ephemeral port backed by a temporary database.
type relay struct {
	app  *app.Application
	addr string
}

// startRelay boots the full application. mutate may adjust the test configuration.
func startRelay(t *testing.T, mutate func(*config.Config)) *relay {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = 0
	cfg.Database.Path = filepath.Join(t.TempDir(), "relay.db")
	cfg.RateLimit.MessagesPerMinute = 0
	if mutate != nil {
		mutate(cfg)
	}

	application, err := app.NewApplication(cfg, logs.GetLoggerFromLevel(slog.LevelError))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, application.Start(ctx))

	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = application.Stop(stopCtx)
		cancel()
	})

	return &relay{app: application, addr: application.GetAddr()}
}

// client is one kiosk or desk connection.
type client struct {
	t  *testing.T
	ws *websocket.Conn
}

func (r *relay) dial(t *testing.T) *client {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws://"+r.addr+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return &client{t: t, ws: ws}
}

// join dials and assigns a role, then waits until the registry counts the new connection.
func (r *relay) join(t *testing.T, role, sessionID, language string) *client {
	t.Helper()
	before, _ := r.session(t, sessionID)

	c := r.dial(t)
	msg := map[string]any{"type": "set_role", "role": role, "session_id": sessionID}
	if language != "" {
		msg["language"] = language
	}
	c.send(msg)

	require.Eventually(t, func() bool {
		after, _ := r.session(t, sessionID)
		return after.Travelers+after.Assistants > before.Travelers+before.Assistants
	}, readTimeout, 10*time.Millisecond)
	return c
}

type sessionSummary struct {
	ID         string `json:"id"`
	Travelers  int    `json:"travelers"`
	Assistants int    `json:"assistants"`
}

func (r *relay) session(t *testing.T, sessionID string) (sessionSummary, bool) {
	t.Helper()
	var body struct {
		Session sessionSummary `json:"session"`
	}
	code := r.getJSON(t, "/api/sessions/"+sessionID, &body)
	return body.Session, code == http.StatusOK
}

func (r *relay) getJSON(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get("http://" + r.addr + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (c *client) send(msg any) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteJSON(msg))
}

func (c *client) sendRaw(data string) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteMessage(websocket.TextMessage, []byte(data)))
}

func (c *client) transcribe(text string) {
	c.send(map[string]any{"type": "transcription", "text": text})
}

// next reads one envelope.
func (c *client) next() map[string]any {
	c.t.Helper()
	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(readTimeout)))
	var msg map[string]any
	require.NoError(c.t, c.ws.ReadJSON(&msg))
	return msg
}

// expect reads one envelope and checks its type.
func (c *client) expect(msgType string) map[string]any {
	c.t.Helper()
	msg := c.next()
	require.Equal(c.t, msgType, msg["type"], "unexpected envelope %v", msg)
	return msg
}

// expectSilence fails when an envelope arrives within d. The read deadline poisons the
// connection, so it must be the last read of the client.
func (c *client) expectSilence(d time.Duration) {
	c.t.Helper()
	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(d)))
	var msg map[string]any
	err := c.ws.ReadJSON(&msg)
	require.Error(c.t, err, "unexpected envelope %v", msg)
}
