package types

import (
	"time"
)

// Role is a connection's classification within a session.
type Role string

const (
	RoleUnset     Role = ""
	RoleTraveler  Role = "traveler"
	RoleAssistant Role = "assistant"
)

// Complement returns the role that receives messages sent by r.
// FUNCTIONAL DISCOVERY: travelers talk to assistants and assistants talk to travelers,
// an unset connection has no peers.
func (r Role) Complement() Role {
	switch r {
	case RoleTraveler:
		return RoleAssistant
	case RoleAssistant:
		return RoleTraveler
	default:
		return RoleUnset
	}
}

func (r Role) String() string {
	if r == RoleUnset {
		return "unset"
	}
	return string(r)
}

// LanguageCode is an ISO 639-1 code such as "es" or "en".
type LanguageCode string

// ReferenceLanguage is the language spoken by assistants.
const ReferenceLanguage LanguageCode = "en"

// DefaultTravelerLanguages is the traveler language set shipped with the server.
var DefaultTravelerLanguages = []LanguageCode{"es", "fr", "de", "it", "pt"}

// LanguagePair is a directed translation request.
type LanguagePair struct {
	Source LanguageCode `json:"source"`
	Target LanguageCode `json:"target"`
}

func (p LanguagePair) String() string {
	return string(p.Source) + "->" + string(p.Target)
}

// Assignment is the routing metadata of one connection.
// ARCHITECTURAL DISCOVERY: value type so registry snapshots never alias registry state
type Assignment struct {
	Role             Role         `json:"role"`
	SessionID        string       `json:"session_id"`
	TravelerLanguage LanguageCode `json:"traveler_language"`
}

// Assigned reports whether the connection has left the Unset state.
func (a Assignment) Assigned() bool {
	return a.Role != RoleUnset && a.SessionID != ""
}

// SessionSummary describes one implicit session for introspection.
type SessionSummary struct {
	ID         string `json:"id"`
	Travelers  int    `json:"travelers"`
	Assistants int    `json:"assistants"`
}

// TranscriptEntry is one relayed message kept for the lifetime of its session.
type TranscriptEntry struct {
	ID             string       `json:"id"`
	SessionID      string       `json:"session_id"`
	SenderRole     Role         `json:"sender_role"`
	Original       string       `json:"original"`
	Translated     string       `json:"translated"`
	SourceLanguage LanguageCode `json:"source_language"`
	TargetLanguage LanguageCode `json:"target_language"`
	Degraded       bool         `json:"degraded"`
	CreatedAt      time.Time    `json:"created_at"`
}
