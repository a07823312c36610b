package router

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"lingorelay/pkg/interfaces"
	"lingorelay/pkg/protocol"
	"lingorelay/pkg/types"
)

// relay translates a transcription and fans it out to the complementary role of the
// sender's session, then acknowledges the sender.
// FUNCTIONAL DISCOVERY: peers are looked up after translation, so a role change committed
// while the sender was waiting on the model is already visible
func (r *Router) relay(ctx context.Context, sender interfaces.Connection, a types.Assignment, m protocol.Transcription) error {
	lang := a.TravelerLanguage
	if m.TravelerLanguage != "" {
		lang = m.TravelerLanguage
	}

	reference := r.gateway.Catalog().Reference()
	var from, to types.LanguageCode
	switch a.Role {
	case types.RoleTraveler:
		lang = r.gateway.ResolveSource(m.Text, lang)
		from, to = lang, reference
	case types.RoleAssistant:
		from, to = reference, lang
	default:
		return errRoleRequired
	}

	// FUNCTIONAL DISCOVERY: an unservable pair is rejected before processing is announced,
	// so the sender never sees processing followed by an error
	if !r.gateway.Serves(types.LanguagePair{Source: from, Target: to}) {
		return protocol.Unsupported("traveler_language", string(lang))
	}
	r.deliver(sender, protocol.NewProcessing(), "")

	result := r.gateway.Disabled(m.Text)
	if m.TranslationWanted() {
		var err error
		result, err = r.gateway.Translate(ctx, m.Text, from, to)
		if err != nil {
			return protocol.Unsupported("traveler_language", string(lang))
		}
	}

	var toPeers, ack protocol.Outbound
	if a.Role == types.RoleTraveler {
		toPeers = protocol.NewTravelerMessage(m.Text, result.Text, lang)
		ack = protocol.NewTranscriptionSent(m.Text, result.Text)
	} else {
		toPeers = protocol.NewAssistantResponse(m.Text, result.Text, lang)
		ack = protocol.NewResponseSent(m.Text, result.Text)
	}

	timestamp := protocol.FormatTimestamp(r.now())
	peers := r.registry.PeersOf(a.Role.Complement(), a.SessionID)
	for _, peer := range peers {
		r.deliver(peer, toPeers, timestamp)
	}
	r.deliver(sender, ack, timestamp)

	r.logger.Debug("message relayed",
		"connection", sender.ID(),
		"session", a.SessionID,
		"pair", fmt.Sprintf("%s->%s", from, to),
		"status", string(result.Status),
		"peers", len(peers),
	)

	if r.recorder != nil {
		r.recorder.Record(ctx, types.TranscriptEntry{
			ID:             uuid.NewString(),
			SessionID:      a.SessionID,
			SenderRole:     a.Role,
			Original:       m.Text,
			Translated:     result.Text,
			SourceLanguage: from,
			TargetLanguage: to,
			Degraded:       result.Degraded(),
			CreatedAt:      r.now(),
		})
	}
	return nil
}

// deliver is best-effort: a failing peer never affects the sender or other peers.
func (r *Router) deliver(conn interfaces.Connection, msg protocol.Outbound, timestamp string) {
	if timestamp != "" {
		msg = msg.Stamp(timestamp)
	}
	if err := conn.Send(msg); err != nil {
		r.logger.Debug("delivery failed", "connection", conn.ID(), "type", msg.MessageType(), "err", err)
	}
}
