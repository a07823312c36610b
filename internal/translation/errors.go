package translation

import "errors"

var (
	ErrUnsupportedPair   = errors.New("unsupported language pair")
	ErrMissingModel      = errors.New("no model configured for language pair")
	ErrTranslationFailed = errors.New("translation failed")
	ErrEmptyTranslation  = errors.New("translator returned empty text")
	ErrUnknownBackend    = errors.New("unknown translation backend")
)
