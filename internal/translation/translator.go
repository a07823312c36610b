package translation

import (
	"context"
	"fmt"
	"time"

	"lingorelay/pkg/types"
)

// Backend names accepted by NewTranslator.
const (
	BackendStub = "stub"
	BackendHTTP = "http"
)

// Request is one translation call toward a capability.
type Request struct {
	Text  string
	Pair  types.LanguagePair
	Model string
}

// HealthStatus represents the health of a component.
type HealthStatus struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Translator converts text between languages.
type Translator interface {
	// Translate converts one text for the given pair. It must honour ctx cancellation.
	Translate(ctx context.Context, req Request) (string, error)

	// Health returns the current health status of the translator.
	Health() HealthStatus
}

// NewTranslator builds the capability named by backend.
func NewTranslator(backend, endpoint string, requestTimeout time.Duration) (Translator, error) {
	switch backend {
	case BackendStub:
		return NewStubTranslator(nil), nil
	case BackendHTTP:
		return NewHTTPTranslator(endpoint, requestTimeout)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
