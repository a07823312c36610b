package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"lingorelay/pkg/interfaces"
	"lingorelay/pkg/protocol"
)

// WebSocket upgrader with production-ready settings
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// FUNCTIONAL DISCOVERY: kiosk clients are served from arbitrary origins
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Lanes is the per-connection work queue the read pump feeds.
type Lanes interface {
	Attach(conn interfaces.Connection) error
	Detach(connID string)
	Submit(ctx context.Context, connID string, msg protocol.Inbound) error
	Reject(ctx context.Context, connID string, err error) error
}

// ForgetFunc releases per-connection state held outside the registry.
type ForgetFunc func(connID string)

// HandlerConfig carries transport timings and limits.
type HandlerConfig struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteTimeout   time.Duration
	BufferSize     int
	MaxMessageSize int64
}

// Handler upgrades requests and runs the read pump of each connection
// ARCHITECTURAL DISCOVERY: Clean separation of WebSocket handling from business logic,
// frames are decoded here and handed to the connection's lane
type Handler struct {
	registry *Registry
	lanes    Lanes
	decoder  *protocol.Decoder
	forget   []ForgetFunc
	cfg      HandlerConfig
	logger   *slog.Logger
}

// NewHandler creates a new WebSocket handler with dependency injection
func NewHandler(registry *Registry, lanes Lanes, decoder *protocol.Decoder, cfg HandlerConfig, logger *slog.Logger, forget ...ForgetFunc) *Handler {
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg.PingInterval = cfg.PongWait * 9 / 10
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 64 * 1024
	}
	return &Handler{
		registry: registry,
		lanes:    lanes,
		decoder:  decoder,
		forget:   forget,
		cfg:      cfg,
		logger:   logger,
	}
}

// HandleWebSocket upgrades the request and serves the connection until it closes.
// FUNCTIONAL DISCOVERY: connections start Unset, role and session arrive later via set_role
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	conn := NewConnection(ws, ConnectionOptions{
		BufferSize:   h.cfg.BufferSize,
		WriteTimeout: h.cfg.WriteTimeout,
	}, h.logger)

	h.registry.Register(conn)
	if err := h.lanes.Attach(conn); err != nil {
		h.logger.Error("failed to attach connection", "connection", conn.ID(), "err", err)
		h.registry.Unregister(conn)
		_ = conn.Close()
		return
	}
	h.logger.Info("client connected", "connection", conn.ID(), "remote", r.RemoteAddr)

	go h.handleConnection(conn)
}

// handleConnection manages the connection lifecycle with heartbeat monitoring
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		// FUNCTIONAL DISCOVERY: Deferred cleanup removes lane and registry references together
		h.lanes.Detach(conn.ID())
		h.registry.Unregister(conn)
		for _, forget := range h.forget {
			forget(conn.ID())
		}
		_ = conn.Close()
		h.logger.Info("client disconnected", "connection", conn.ID())
	}()

	conn.conn.SetReadLimit(h.cfg.MaxMessageSize)
	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait)); err != nil {
		h.logger.Debug("failed to set read deadline", "connection", conn.ID(), "err", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	go h.heartbeat(conn)

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error", "connection", conn.ID(), "err", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		msg, err := h.decoder.Decode(data)
		if err != nil {
			h.logger.Debug("rejected frame", "connection", conn.ID(), "err", err)
			err = h.lanes.Reject(conn.Context(), conn.ID(), err)
		} else {
			err = h.lanes.Submit(conn.Context(), conn.ID(), msg)
		}
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				h.logger.Debug("lane refused message", "connection", conn.ID(), "err", err)
			}
			return
		}
	}
}

// TECHNICAL DISCOVERY: Separate ticker goroutine enables consistent heartbeat timing
// independent of message processing or client responsiveness
func (h *Handler) heartbeat(conn *Connection) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.ping(time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				_ = conn.Close()
				return
			}
		case <-conn.Done():
			return
		}
	}
}
