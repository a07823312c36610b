package protocol

import (
	"time"

	"lingorelay/pkg/types"
)

// Outbound message type discriminators.
const (
	TypeTravelerMessage   = "traveler_message"
	TypeAssistantResponse = "assistant_response"
	TypeTranscriptionSent = "transcription_sent"
	TypeResponseSent      = "response_sent"
	TypeProcessing        = "processing"
	TypeError             = "error"
)

// TimestampLayout renders send time as HH:MM:SS.
const TimestampLayout = "15:04:05"

// FormatTimestamp renders t with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Outbound is the closed set of server envelopes. Values are immutable; Stamp returns
// a copy carrying the send-time timestamp.
type Outbound interface {
	MessageType() string
	Stamp(timestamp string) Outbound
	outbound()
}

// TravelerMessage is delivered to assistants.
type TravelerMessage struct {
	Type             string             `json:"type"`
	Original         string             `json:"original"`
	Translated       string             `json:"translated"`
	TravelerLanguage types.LanguageCode `json:"traveler_language"`
	Timestamp        string             `json:"timestamp"`
}

// AssistantResponse is delivered to travelers.
type AssistantResponse struct {
	Type             string             `json:"type"`
	Original         string             `json:"original"`
	Translated       string             `json:"translated"`
	TravelerLanguage types.LanguageCode `json:"traveler_language"`
	Timestamp        string             `json:"timestamp"`
}

// TranscriptionSent acknowledges a traveler transcription.
type TranscriptionSent struct {
	Type                   string `json:"type"`
	Original               string `json:"original"`
	TranslatedForAssistant string `json:"translated_for_assistant"`
	Timestamp              string `json:"timestamp"`
}

// ResponseSent acknowledges an assistant transcription.
type ResponseSent struct {
	Type                  string `json:"type"`
	Original              string `json:"original"`
	TranslatedForTraveler string `json:"translated_for_traveler"`
	Timestamp             string `json:"timestamp"`
}

// Processing tells the sender its transcription is being translated.
type Processing struct {
	Type string `json:"type"`
}

// ErrorMessage reports a request-scoped failure to the sender.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewTravelerMessage(original, translated string, lang types.LanguageCode) TravelerMessage {
	return TravelerMessage{Type: TypeTravelerMessage, Original: original, Translated: translated, TravelerLanguage: lang}
}

func NewAssistantResponse(original, translated string, lang types.LanguageCode) AssistantResponse {
	return AssistantResponse{Type: TypeAssistantResponse, Original: original, Translated: translated, TravelerLanguage: lang}
}

func NewTranscriptionSent(original, translated string) TranscriptionSent {
	return TranscriptionSent{Type: TypeTranscriptionSent, Original: original, TranslatedForAssistant: translated}
}

func NewResponseSent(original, translated string) ResponseSent {
	return ResponseSent{Type: TypeResponseSent, Original: original, TranslatedForTraveler: translated}
}

func NewProcessing() Processing {
	return Processing{Type: TypeProcessing}
}

func NewError(message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message}
}

func (m TravelerMessage) MessageType() string { return TypeTravelerMessage }
func (m AssistantResponse) MessageType() string { return TypeAssistantResponse }
func (m TranscriptionSent) MessageType() string { return TypeTranscriptionSent }
func (m ResponseSent) MessageType() string { return TypeResponseSent }
func (m Processing) MessageType() string { return TypeProcessing }
func (m ErrorMessage) MessageType() string { return TypeError }

func (m TravelerMessage) Stamp(ts string) Outbound { m.Timestamp = ts; return m }
func (m AssistantResponse) Stamp(ts string) Outbound { m.Timestamp = ts; return m }
func (m TranscriptionSent) Stamp(ts string) Outbound { m.Timestamp = ts; return m }
func (m ResponseSent) Stamp(ts string) Outbound { m.Timestamp = ts; return m }

// Processing and errors carry no timestamp.
func (m Processing) Stamp(string) Outbound { return m }
func (m ErrorMessage) Stamp(string) Outbound { return m }

func (TravelerMessage) outbound()   {}
func (AssistantResponse) outbound() {}
func (TranscriptionSent) outbound() {}
func (ResponseSent) outbound()      {}
func (Processing) outbound()        {}
func (ErrorMessage) outbound()      {}
