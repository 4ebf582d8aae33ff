package models

import (
	"time"

	"github.com/google/uuid"
)

// GiftEvent is one completed gift interaction. Repeatable gifts are recorded
// once, when the repeat sequence ends, with the final cumulative count.
type GiftEvent struct {
	ID             uuid.UUID `json:"id"`
	LiveSessionID  uuid.UUID `json:"live_session_id"`
	ViewerUsername string    `json:"viewer_username"`
	GiftID         int       `json:"gift_id"`
	GiftName       *string   `json:"gift_name,omitempty"`
	DiamondCount   *int      `json:"diamond_count,omitempty"`
	RepeatCount    int       `json:"repeat_count"`
	ReceivedAt     time.Time `json:"received_at"`
}
