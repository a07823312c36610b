package types

import (
	"regexp"
	"unicode"
)

// FUNCTIONAL DISCOVERY: Regex compiled once at package initialization
var languageRegex = regexp.MustCompile(`^[a-z]{2}$`)

// ParseRole converts a wire value into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleTraveler, RoleAssistant:
		return Role(s), nil
	default:
		return RoleUnset, ErrInvalidRole
	}
}

// ParseLanguageCode checks the shape of a language code. Membership in the supported
// set is decided by the translation catalog, not here.
func ParseLanguageCode(s string) (LanguageCode, error) {
	if !languageRegex.MatchString(s) {
		return "", ErrInvalidLanguage
	}
	return LanguageCode(s), nil
}

// IsValidSessionID accepts any opaque client string of 1-128 bytes without control characters.
func IsValidSessionID(sessionID string) bool {
	if len(sessionID) < 1 || len(sessionID) > 128 {
		return false
	}
	for _, r := range sessionID {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
