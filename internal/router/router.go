package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lingorelay/internal/translation"
	"lingorelay/pkg/interfaces"
	"lingorelay/pkg/protocol"
	"lingorelay/pkg/types"
)

// Config holds routing policy.
type Config struct {
	// DefaultTravelerLanguage is stored when set_role omits a language.
	DefaultTravelerLanguage types.LanguageCode
	// MessagesPerMinute caps inbound messages per connection, zero disables the cap.
	MessagesPerMinute int
}

// Router applies inbound intents of one connection: role assignment, recording
// notifications and transcription relay.
// ARCHITECTURAL DISCOVERY: the router is called from the sender's lane only, so a
// connection's messages are handled one at a time and in arrival order
type Router struct {
	registry    interfaces.Registry
	gateway     *translation.Gateway
	recorder    interfaces.TranscriptRecorder
	rateLimiter *RateLimiter
	cfg         Config
	now         func() time.Time
	logger      *slog.Logger
}

// NewRouter creates a new message router. recorder may be nil.
func NewRouter(registry interfaces.Registry, gateway *translation.Gateway, recorder interfaces.TranscriptRecorder, cfg Config, logger *slog.Logger) *Router {
	if cfg.DefaultTravelerLanguage == "" {
		cfg.DefaultTravelerLanguage = "es"
	}
	return &Router{
		registry:    registry,
		gateway:     gateway,
		recorder:    recorder,
		rateLimiter: NewRateLimiter(cfg.MessagesPerMinute, time.Minute),
		cfg:         cfg,
		now:         time.Now,
		logger:      logger,
	}
}

// Route handles one decoded message. Returned errors are client-facing and are reported
// with Reject by the caller.
func (r *Router) Route(ctx context.Context, conn interfaces.Connection, msg protocol.Inbound) error {
	if !r.rateLimiter.Allow(conn.ID()) {
		return ErrRateLimitExceeded
	}

	switch m := msg.(type) {
	case protocol.SetRole:
		return r.setRole(conn, m)
	case protocol.StartRecording:
		r.startRecording(conn, m)
		return nil
	case protocol.StopRecording:
		r.logger.Debug("recording stopped", "connection", conn.ID())
		return nil
	case protocol.Transcription:
		assignment, ok := r.registry.Assignment(conn.ID())
		if !ok {
			return interfaces.ErrConnectionNotFound
		}
		if !assignment.Assigned() {
			return errRoleRequired
		}
		return r.relay(ctx, conn, assignment, m)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
}

// Reject reports a failure to the connection as an error envelope. It is the single place
// where errors become client-visible.
func (r *Router) Reject(conn interfaces.Connection, err error) {
	var message string
	var perr *protocol.Error
	switch {
	case errors.As(err, &perr):
		message = perr.Error()
	case errors.Is(err, ErrRateLimitExceeded):
		message = "rate limit exceeded, slow down"
	case errors.Is(err, translation.ErrUnsupportedPair):
		message = err.Error()
	default:
		message = "message could not be processed"
	}

	if sendErr := conn.Send(protocol.NewError(message)); sendErr != nil {
		r.logger.Debug("failed to deliver error", "connection", conn.ID(), "err", sendErr)
	}
}

// Forget releases per-connection router state.
func (r *Router) Forget(connID string) {
	r.rateLimiter.Forget(connID)
}

func (r *Router) setRole(conn interfaces.Connection, m protocol.SetRole) error {
	lang := m.Language
	catalog := r.gateway.Catalog()
	// FUNCTIONAL DISCOVERY: an assistant may announce its own language, the stored value is
	// the traveler language its responses are translated into. A traveler may speak the
	// reference language, its messages are then passed through
	accepted := catalog.IsTravelerLanguage(lang)
	if m.Role == types.RoleTraveler {
		accepted = catalog.IsSupported(lang)
	}
	if lang == "" || !accepted {
		lang = r.cfg.DefaultTravelerLanguage
	}

	if err := r.registry.SetRole(conn.ID(), m.Role, m.SessionID, lang); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	r.logger.Info("role assigned", "connection", conn.ID(), "role", m.Role.String(), "session", m.SessionID, "language", lang)
	return nil
}

func (r *Router) startRecording(conn interfaces.Connection, m protocol.StartRecording) {
	assignment, _ := r.registry.Assignment(conn.ID())
	r.logger.Debug("recording started", "connection", conn.ID(), "role", assignment.Role.String(), "language", m.Language)

	if assignment.Role != types.RoleTraveler || m.Language == "" || m.Language == assignment.TravelerLanguage {
		return
	}
	if !r.gateway.Catalog().IsSupported(m.Language) {
		return
	}
	if err := r.registry.SetLanguage(conn.ID(), m.Language); err != nil {
		r.logger.Debug("failed to update language", "connection", conn.ID(), "err", err)
	}
}
