package protocol

import (
	"lingorelay/pkg/types"
)

// Inbound message type discriminators.
const (
	TypeSetRole        = "set_role"
	TypeTranscription  = "transcription"
	TypeStartRecording = "start_recording"
	TypeStopRecording  = "stop_recording"
)

// Inbound is the closed set of client intents. Only this package implements it.
type Inbound interface {
	MessageType() string
	inbound()
}

// SetRole assigns the connection a role inside a session. Language is checked against the
// traveler languages only when Role is traveler.
type SetRole struct {
	Role      types.Role         `json:"role" validate:"required,oneof=traveler assistant"`
	SessionID string             `json:"session_id" validate:"required,session_id"`
	Language  types.LanguageCode `json:"language"`
}

// Transcription carries recognised speech to be translated and relayed.
type Transcription struct {
	Text               string             `json:"text" validate:"nonblank"`
	TravelerLanguage   types.LanguageCode `json:"traveler_language" validate:"omitempty,traveler_language"`
	TranslationEnabled *bool              `json:"translation_enabled"`
}

// TranslationWanted defaults to true when the client omits the flag.
func (t Transcription) TranslationWanted() bool {
	return t.TranslationEnabled == nil || *t.TranslationEnabled
}

// StartRecording is informational. Language is not validated here: assistants report
// their own recognition language, which is not a traveler language.
type StartRecording struct {
	Language types.LanguageCode `json:"language"`
}

// StopRecording is informational.
type StopRecording struct{}

func (SetRole) MessageType() string { return TypeSetRole }
func (Transcription) MessageType() string { return TypeTranscription }
func (StartRecording) MessageType() string { return TypeStartRecording }
func (StopRecording) MessageType() string { return TypeStopRecording }

func (SetRole) inbound()        {}
func (Transcription) inbound()  {}
func (StartRecording) inbound() {}
func (StopRecording) inbound()  {}
