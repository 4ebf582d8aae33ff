package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RawEvent is an opaque copy of one inbound TikTok event, kept for audit
// and debugging. Payload is capped at buffering time; oversized or
// unserializable payloads carry a marker object instead of the original.
type RawEvent struct {
	LiveSessionID  uuid.UUID       `json:"live_session_id"`
	EventType      string          `json:"event_type"`
	ViewerUsername *string         `json:"viewer_username,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	ReceivedAt     time.Time       `json:"received_at"`
}
