package types

import "errors"

var (
	ErrInvalidRole      = errors.New("role must be 'traveler' or 'assistant'")
	ErrInvalidSessionID = errors.New("session ID must be 1-128 printable characters")
	ErrInvalidLanguage  = errors.New("language code must be a two-letter lowercase ISO 639-1 code")
)
