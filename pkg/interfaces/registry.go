package interfaces

import "lingorelay/pkg/types"

// Registry is the view of connection metadata used by the router.
// FUNCTIONAL DISCOVERY: PeersOf returns a snapshot; callers never hold registry locks while sending
type Registry interface {
	SetRole(connID string, role types.Role, sessionID string, lang types.LanguageCode) error
	SetLanguage(connID string, lang types.LanguageCode) error
	Assignment(connID string) (types.Assignment, bool)
	PeersOf(role types.Role, sessionID string) []Connection
}
