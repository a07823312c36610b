package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"lingorelay/pkg/interfaces"
	"lingorelay/pkg/protocol"
)

// Router handles the messages of one connection, one at a time.
type Router interface {
	Route(ctx context.Context, conn interfaces.Connection, msg protocol.Inbound) error
	Reject(conn interfaces.Connection, err error)
}

// Hub runs one lane per connection: a bounded inbox drained by a dedicated worker.
// ARCHITECTURAL DISCOVERY: a lane gives per-sender ordering and lets a slow translation
// suspend only the connection that triggered it
type Hub struct {
	router    Router
	inboxSize int
	logger    *slog.Logger

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	lanes   map[string]*lane
	workers sync.WaitGroup
}

type lane struct {
	conn  interfaces.Connection
	inbox chan item
	stop  chan struct{}
}

// item is a decoded message or a decode failure, kept in arrival order.
type item struct {
	msg protocol.Inbound
	err error
}

// NewHub creates a hub. inboxSize bounds the queued messages per connection.
func NewHub(router Router, inboxSize int, logger *slog.Logger) *Hub {
	if inboxSize <= 0 {
		inboxSize = 16
	}
	return &Hub{
		router:    router,
		inboxSize: inboxSize,
		logger:    logger,
		lanes:     make(map[string]*lane),
	}
}

// Start enables lanes. Work already accepted runs against ctx, which outlives individual
// connections.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrHubAlreadyRunning
	}
	h.ctx, h.cancel = context.WithCancel(ctx)
	h.running = true
	h.logger.Info("message hub started", "inbox_size", h.inboxSize)
	return nil
}

// Stop cancels in-flight work, closes every lane and waits for the workers.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false
	h.cancel()
	for id, l := range h.lanes {
		close(l.stop)
		delete(h.lanes, id)
	}
	h.mu.Unlock()

	h.workers.Wait()
	h.logger.Info("message hub stopped")
	return nil
}

// Attach opens a lane for conn.
func (h *Hub) Attach(conn interfaces.Connection) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	if _, exists := h.lanes[conn.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrLaneExists, conn.ID())
	}

	l := &lane{
		conn:  conn,
		inbox: make(chan item, h.inboxSize),
		stop:  make(chan struct{}),
	}
	h.lanes[conn.ID()] = l
	h.workers.Add(1)
	go h.work(h.ctx, l)
	return nil
}

// Detach closes the lane of connID. Queued messages are discarded; a message already being
// routed runs to completion.
func (h *Hub) Detach(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if l, exists := h.lanes[connID]; exists {
		close(l.stop)
		delete(h.lanes, connID)
	}
}

// Submit queues a decoded message. It blocks while the inbox is full, which pushes back on
// the reading client only.
func (h *Hub) Submit(ctx context.Context, connID string, msg protocol.Inbound) error {
	return h.enqueue(ctx, connID, item{msg: msg})
}

// Reject queues a decode failure so that it is reported in order with earlier messages.
func (h *Hub) Reject(ctx context.Context, connID string, err error) error {
	return h.enqueue(ctx, connID, item{err: err})
}

// Lanes returns the number of open lanes.
func (h *Hub) Lanes() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.lanes)
}

func (h *Hub) enqueue(ctx context.Context, connID string, it item) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	l, exists := h.lanes[connID]
	hubCtx := h.ctx
	h.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrLaneNotFound, connID)
	}

	select {
	case l.inbox <- it:
		return nil
	case <-l.stop:
		return ErrLaneClosed
	case <-hubCtx.Done():
		return ErrHubNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) work(ctx context.Context, l *lane) {
	defer h.workers.Done()

	for {
		// TECHNICAL DISCOVERY: check stop first so queued work of a detached lane is dropped
		select {
		case <-l.stop:
			return
		default:
		}

		select {
		case <-l.stop:
			return
		case it := <-l.inbox:
			h.process(ctx, l.conn, it)
		}
	}
}

func (h *Hub) process(ctx context.Context, conn interfaces.Connection, it item) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic while routing message", "connection", conn.ID(), "panic", r)
		}
	}()

	if it.err != nil {
		h.router.Reject(conn, it.err)
		return
	}
	if err := h.router.Route(ctx, conn, it.msg); err != nil {
		h.logger.Debug("message rejected", "connection", conn.ID(), "type", it.msg.MessageType(), "err", err)
		h.router.Reject(conn, err)
	}
}
