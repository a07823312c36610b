package websocket

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"lingorelay/pkg/interfaces"
	"lingorelay/pkg/types"
)

// DrainedFunc is called when a session loses its last connection.
type DrainedFunc func(sessionID string)

type registration struct {
	conn       interfaces.Connection
	assignment types.Assignment
}

// Registry tracks live connections and their role within a session
// ARCHITECTURAL DISCOVERY: Pure connection management without business logic
// maintains clean separation between connection tracking and connection operations
type Registry struct {
	mu          sync.RWMutex // TECHNICAL DISCOVERY: RWMutex optimizes for read-heavy lookup patterns
	connections map[string]*registration
	sessions    map[string]map[types.Role]map[string]interfaces.Connection // sessionID -> role -> connID
	onDrained   DrainedFunc
	logger      *slog.Logger
}

// NewRegistry creates a new connection registry
// FUNCTIONAL DISCOVERY: Initialize all maps to prevent nil pointer access during concurrent operations
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		connections: make(map[string]*registration),
		sessions:    make(map[string]map[types.Role]map[string]interfaces.Connection),
		logger:      logger,
	}
}

// OnSessionDrained installs the drained-session observer. It must be set before connections
// are registered.
func (r *Registry) OnSessionDrained(fn DrainedFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDrained = fn
}

// Register tracks conn in the Unset state. Registering the same handle twice is a no-op.
func (r *Registry) Register(conn interfaces.Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[conn.ID()]; exists {
		return
	}
	r.connections[conn.ID()] = &registration{conn: conn}
}

// Unregister removes every reference to conn. It is idempotent.
func (r *Registry) Unregister(conn interfaces.Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	reg, exists := r.connections[conn.ID()]
	// RACE CONDITION FIX: only remove the exact instance that is registered
	if !exists || reg.conn != conn {
		r.mu.Unlock()
		return
	}
	delete(r.connections, conn.ID())
	drained := r.detachLocked(conn.ID(), reg.assignment)
	fn := r.onDrained
	r.mu.Unlock()

	r.notifyDrained(fn, drained)
}

// SetRole moves a connection to (role, sessionID) in one critical section, so a concurrent
// PeersOf sees either the old or the new placement.
func (r *Registry) SetRole(connID string, role types.Role, sessionID string, lang types.LanguageCode) error {
	if role != types.RoleTraveler && role != types.RoleAssistant {
		return ErrInvalidRole
	}
	if !types.IsValidSessionID(sessionID) {
		return types.ErrInvalidSessionID
	}

	r.mu.Lock()
	reg, exists := r.connections[connID]
	if !exists {
		r.mu.Unlock()
		return interfaces.ErrConnectionNotFound
	}

	previous := reg.assignment
	drained := r.detachLocked(connID, previous)
	if drained == sessionID {
		drained = ""
	}

	roles, ok := r.sessions[sessionID]
	if !ok {
		roles = make(map[types.Role]map[string]interfaces.Connection)
		r.sessions[sessionID] = roles
	}
	if roles[role] == nil {
		roles[role] = make(map[string]interfaces.Connection)
	}
	roles[role][connID] = reg.conn
	reg.assignment = types.Assignment{Role: role, SessionID: sessionID, TravelerLanguage: lang}
	fn := r.onDrained
	r.mu.Unlock()

	r.notifyDrained(fn, drained)
	return nil
}

// SetLanguage updates the stored language of a connection without moving it.
func (r *Registry) SetLanguage(connID string, lang types.LanguageCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, exists := r.connections[connID]
	if !exists {
		return interfaces.ErrConnectionNotFound
	}
	reg.assignment.TravelerLanguage = lang
	return nil
}

// Assignment returns a copy of the routing metadata of a connection.
func (r *Registry) Assignment(connID string) (types.Assignment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, exists := r.connections[connID]
	if !exists {
		return types.Assignment{}, false
	}
	return reg.assignment, true
}

// PeersOf returns a snapshot of the connections assigned (role, sessionID).
// ARCHITECTURAL DISCOVERY: the slice is a copy, callers send without holding the lock
func (r *Registry) PeersOf(role types.Role, sessionID string) []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Values(r.sessions[sessionID][role])
}

// Sessions lists active sessions ordered by ID.
func (r *Registry) Sessions() []types.SessionSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := lo.MapToSlice(r.sessions, func(id string, roles map[types.Role]map[string]interfaces.Connection) types.SessionSummary {
		return summarize(id, roles)
	})
	slices.SortFunc(summaries, func(a, b types.SessionSummary) int {
		return strings.Compare(a.ID, b.ID)
	})
	return summaries
}

// Session returns the summary of one active session.
func (r *Registry) Session(sessionID string) (types.SessionSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles, exists := r.sessions[sessionID]
	if !exists {
		return types.SessionSummary{}, false
	}
	return summarize(sessionID, roles), true
}

// GetStats returns registry statistics for monitoring and debugging
func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	unassigned := lo.CountBy(lo.Values(r.connections), func(reg *registration) bool {
		return !reg.assignment.Assigned()
	})
	travelers, assistants := 0, 0
	for _, roles := range r.sessions {
		travelers += len(roles[types.RoleTraveler])
		assistants += len(roles[types.RoleAssistant])
	}

	return map[string]int{
		"total_connections":      len(r.connections),
		"unassigned_connections": unassigned,
		"active_sessions":        len(r.sessions),
		"travelers":              travelers,
		"assistants":             assistants,
	}
}

// detachLocked removes connID from its current (role, session) index and returns the
// session ID if that session is now empty.
func (r *Registry) detachLocked(connID string, a types.Assignment) string {
	if !a.Assigned() {
		return ""
	}
	roles, exists := r.sessions[a.SessionID]
	if !exists {
		return ""
	}
	// TECHNICAL DISCOVERY: Clean up empty maps to prevent memory leaks
	if members, ok := roles[a.Role]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(roles, a.Role)
		}
	}
	if len(roles) == 0 {
		delete(r.sessions, a.SessionID)
		return a.SessionID
	}
	return ""
}

func (r *Registry) notifyDrained(fn DrainedFunc, sessionID string) {
	if sessionID == "" {
		return
	}
	r.logger.Debug("session drained", "session", sessionID)
	if fn != nil {
		fn(sessionID)
	}
}

func summarize(id string, roles map[types.Role]map[string]interfaces.Connection) types.SessionSummary {
	return types.SessionSummary{
		ID:         id,
		Travelers:  len(roles[types.RoleTraveler]),
		Assistants: len(roles[types.RoleAssistant]),
	}
}
