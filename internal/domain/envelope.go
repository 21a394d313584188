package domain

import (
	"encoding/json"
	"time"
)

// Message types emitted by the session layer itself. Application modules
// (wallet, tables, moderation) send their own types through the same
// envelope; the session layer treats those as opaque.
const (
	TypeAuthenticated = "authenticated"
	TypeSubscribed    = "subscribed"
	TypeError         = "error"
	TypeBatch         = "batch"
	TypeTableUpdated  = "table_updated"
	TypeWalletUpdate  = "wallet_update"
)

// Envelope is the wire format of every uncompressed frame:
// a tagged JSON object with a millisecond timestamp.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// NewEnvelope builds an envelope around an already-encoded payload.
func NewEnvelope(msgType string, payload json.RawMessage, now time.Time) Envelope {
	return Envelope{
		Type:      msgType,
		Payload:   payload,
		Timestamp: now.UnixMilli(),
	}
}

// NewErrorEnvelope builds the structured error message delivered for
// mid-session failures. The connection stays open; a single bad frame must
// not terminate an otherwise healthy session.
func NewErrorEnvelope(message string, now time.Time) Envelope {
	payload, _ := json.Marshal(map[string]string{"error": message})
	return NewEnvelope(TypeError, payload, now)
}

// BatchPayload is the payload of a TypeBatch envelope: the batched messages
// in submission order, each one a complete envelope.
type BatchPayload struct {
	Messages []json.RawMessage `json:"messages"`
}
