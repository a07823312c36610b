package translation

import (
	"context"
	"time"

	"lingorelay/pkg/types"
)

// MockPrefix marks text the stub could not look up.
const MockPrefix = "[MOCK TRANSLATION] "

// StubTranslatorConfig configures the stub translator behavior.
type StubTranslatorConfig struct {
	// ProcessingDelay simulates translation processing time.
	ProcessingDelay time.Duration
	// Dictionary maps a pair and a source text to its translation.
	Dictionary map[types.LanguagePair]map[string]string
}

func pair(src, tgt types.LanguageCode) types.LanguagePair {
	return types.LanguagePair{Source: src, Target: tgt}
}

// DefaultStubTranslatorConfig returns a small phrasebook for the help-desk conversation.
func DefaultStubTranslatorConfig() *StubTranslatorConfig {
	return &StubTranslatorConfig{
		Dictionary: map[types.LanguagePair]map[string]string{
			pair("es", "en"): {
				"Hola":                 "Hello",
				"Hola, necesito ayuda": "Hello, I need help",
				"Gracias":              "Thank you",
				"¿Dónde está el baño?": "Where is the bathroom?",
				"Necesito ayuda":       "I need help",
				"¿Cuánto cuesta?":      "How much does it cost?",
			},
			pair("en", "es"): {
				"Hello":                  "Hola",
				"Thank you":              "Gracias",
				"How can I help you?":    "¿Cómo puedo ayudarte?",
				"Where is the bathroom?": "¿Dónde está el baño?",
			},
			pair("fr", "en"): {
				"Bonjour": "Hello",
				"Merci":   "Thank you",
			},
			pair("en", "fr"): {
				"Hello":               "Bonjour",
				"How can I help you?": "Comment puis-je vous aider ?",
			},
			pair("de", "en"): {
				"Hallo": "Hello",
				"Danke": "Thank you",
			},
			pair("en", "de"): {
				"Hello":               "Hallo",
				"How can I help you?": "Wie kann ich Ihnen helfen?",
			},
		},
	}
}

// StubTranslator returns deterministic translations and never fails on its own.
type StubTranslator struct {
	config *StubTranslatorConfig
}

// NewStubTranslator creates a new stub translator with the given config.
func NewStubTranslator(config *StubTranslatorConfig) *StubTranslator {
	if config == nil {
		config = DefaultStubTranslatorConfig()
	}
	return &StubTranslator{config: config}
}

// Translate looks the text up in the dictionary and falls back to the mock prefix.
func (s *StubTranslator) Translate(ctx context.Context, req Request) (string, error) {
	if s.config.ProcessingDelay > 0 {
		select {
		case <-time.After(s.config.ProcessingDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if translated, ok := s.config.Dictionary[req.Pair][req.Text]; ok {
		return translated, nil
	}
	return MockPrefix + req.Text, nil
}

// Health returns the health status of the stub translator.
func (s *StubTranslator) Health() HealthStatus {
	return HealthStatus{Healthy: true, Message: "stub translator ready"}
}
