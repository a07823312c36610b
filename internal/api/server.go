package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/process"

	"lingorelay/internal/translation"
	"lingorelay/pkg/interfaces"
	"lingorelay/pkg/types"
)

// Registry interface to avoid tight coupling to websocket.Registry implementation
type Registry interface {
	Sessions() []types.SessionSummary
	Session(sessionID string) (types.SessionSummary, bool)
	GetStats() map[string]int
}

// Transcripts is the read side of the session transcript.
type Transcripts interface {
	Transcript(ctx context.Context, sessionID string) ([]*types.TranscriptEntry, error)
	HealthCheck(ctx context.Context) error
	Stats() map[string]interface{}
}

// Translation exposes the model catalog and the capability health.
type Translation interface {
	Catalog() *translation.Catalog
	Health() translation.HealthStatus
}

// LaneCounter reports the number of connections with a processing lane.
type LaneCounter interface {
	Lanes() int
}

// ARCHITECTURAL DISCOVERY: HTTP API layer serves as pure interface between external clients and internal components
// Clean separation - no business logic, only HTTP handling and JSON serialization
type Server struct {
	registry    Registry
	transcripts Transcripts
	translation Translation
	lanes       LaneCounter
	router      *http.ServeMux
	started     time.Time
	logger      *slog.Logger
}

// NewServer wires the admin endpoints.
func NewServer(registry Registry, transcripts Transcripts, tr Translation, lanes LaneCounter, logger *slog.Logger) *Server {
	s := &Server{
		registry:    registry,
		transcripts: transcripts,
		translation: tr,
		lanes:       lanes,
		router:      http.NewServeMux(),
		started:     time.Now(),
		logger:      logger,
	}

	s.setupRoutes()
	return s
}

// ARCHITECTURAL DISCOVERY: Route setup follows REST conventions with proper middleware
// CORS and JSON middleware applied to all routes for web client compatibility
func (s *Server) setupRoutes() {
	s.router.Handle("/api/sessions", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleSessions))))
	s.router.Handle("/api/sessions/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleSessionByID))))
	s.router.Handle("/api/languages", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleLanguages))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

// FUNCTIONAL DISCOVERY: Implement http.Handler interface for integration with standard HTTP server
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response types for JSON serialization
type ListSessionsResponse struct {
	Sessions []types.SessionSummary `json:"sessions"`
}

type SessionResponse struct {
	Session types.SessionSummary `json:"session"`
}

type TranscriptResponse struct {
	SessionID string                   `json:"session_id"`
	Entries   []*types.TranscriptEntry `json:"entries"`
}

type LanguagesResponse struct {
	Reference types.LanguageCode       `json:"reference"`
	Travelers []types.LanguageCode     `json:"travelers"`
	Models    []translation.ModelEntry `json:"models"`
}

type HealthResponse struct {
	Status      string                   `json:"status"`
	Timestamp   time.Time                `json:"timestamp"`
	Database    string                   `json:"database"`
	Translator  translation.HealthStatus `json:"translator"`
	Connections map[string]int           `json:"connections"`
	Transcripts map[string]interface{}   `json:"transcripts"`
	System      map[string]interface{}   `json:"system"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FUNCTIONAL DISCOVERY: GET /api/sessions - List implicit sessions with role counts
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.sendJSON(w, http.StatusOK, ListSessionsResponse{Sessions: s.registry.Sessions()})
}

// FUNCTIONAL DISCOVERY: Handle individual session endpoints (GET /api/sessions/{id}, GET /api/sessions/{id}/transcript)
func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sessionID, rest, _ := strings.Cut(path, "/")
	if sessionID == "" {
		s.sendError(w, "Session ID required", http.StatusBadRequest)
		return
	}

	switch rest {
	case "":
		s.getSession(w, sessionID)
	case "transcript":
		s.getTranscript(w, r, sessionID)
	default:
		s.sendError(w, "Not found", http.StatusNotFound)
	}
}

// FUNCTIONAL DISCOVERY: a session only exists while at least one connection is assigned to it
func (s *Server) getSession(w http.ResponseWriter, sessionID string) {
	summary, ok := s.registry.Session(sessionID)
	if !ok {
		s.sendError(w, interfaces.ErrSessionNotActive.Error(), http.StatusNotFound)
		return
	}
	s.sendJSON(w, http.StatusOK, SessionResponse{Session: summary})
}

func (s *Server) getTranscript(w http.ResponseWriter, r *http.Request, sessionID string) {
	if _, ok := s.registry.Session(sessionID); !ok {
		s.sendError(w, interfaces.ErrSessionNotActive.Error(), http.StatusNotFound)
		return
	}

	entries, err := s.transcripts.Transcript(r.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrInvalidSessionID):
			s.sendError(w, err.Error(), http.StatusBadRequest)
		default:
			s.logger.Error("Failed to read transcript", "session", sessionID, "err", err)
			s.sendError(w, "Failed to read transcript", http.StatusServiceUnavailable)
		}
		return
	}

	s.sendJSON(w, http.StatusOK, TranscriptResponse{SessionID: sessionID, Entries: entries})
}

// FUNCTIONAL DISCOVERY: GET /api/languages - reference language, traveler languages and model table
func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	catalog := s.translation.Catalog()
	s.sendJSON(w, http.StatusOK, LanguagesResponse{
		Reference: catalog.Reference(),
		Travelers: catalog.Languages(),
		Models:    catalog.Entries(),
	})
}

// FUNCTIONAL DISCOVERY: GET /health - System health check with component validation
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"

	if err := s.transcripts.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	translatorHealth := s.translation.Health()
	if !translatorHealth.Healthy {
		status = "unhealthy"
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Translator:  translatorHealth,
		Connections: s.registry.GetStats(),
		Transcripts: s.transcripts.Stats(),
		System:      s.systemInfo(),
	}

	// FUNCTIONAL DISCOVERY: Return 503 if any component is unhealthy
	s.sendJSON(w, lo.Ternary(status == "healthy", http.StatusOK, http.StatusServiceUnavailable), response)
}

// TECHNICAL DISCOVERY: RSS is best-effort, some sandboxes hide /proc
func (s *Server) systemInfo() map[string]interface{} {
	info := map[string]interface{}{
		"goroutines": runtime.NumGoroutine(),
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"lanes":      s.lanes.Lanes(),
	}

	p, err := process.NewProcess(int32(os.Getpid()))
	if err == nil {
		if mem, err := p.MemoryInfo(); err == nil {
			info["rss_bytes"] = mem.RSS
		}
	}
	return info
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("Failed to encode response", "err", err)
	}
}

// FUNCTIONAL DISCOVERY: Consistent error response format
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.sendJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// ARCHITECTURAL DISCOVERY: CORS middleware enables web client access
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		// FUNCTIONAL DISCOVERY: Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// FUNCTIONAL DISCOVERY: JSON middleware ensures proper content-type headers
func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
