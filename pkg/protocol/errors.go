package protocol

import (
	"errors"
	"fmt"
)

// Sentinels matched by errors.Is against *Error.
var (
	ErrProtocol            = errors.New("protocol error")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// ErrorKind classifies client-facing failures.
type ErrorKind int

const (
	KindProtocol ErrorKind = iota + 1
	KindUnsupportedLanguage
)

// Error is a typed decode or validation failure. It is reported to the originating
// connection as an error envelope and never closes the connection.
type Error struct {
	Kind   ErrorKind
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrProtocol:
		return e.Kind == KindProtocol
	case ErrUnsupportedLanguage:
		return e.Kind == KindUnsupportedLanguage
	}
	return false
}

// Malformed builds a protocol error.
func Malformed(field, reason string) *Error {
	return &Error{Kind: KindProtocol, Field: field, Reason: reason}
}

// Unsupported builds an unsupported-language error.
func Unsupported(field, language string) *Error {
	return &Error{Kind: KindUnsupportedLanguage, Field: field, Reason: fmt.Sprintf("language %q is not supported", language)}
}
