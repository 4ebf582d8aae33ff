package realtime

import "github.com/livejam/backend/internal/models"

// Event types pushed to dashboard connections.
const (
	TypeInit             = "init"
	TypeSessionConnected = "session:connected"
	TypeSessionEnded     = "session:ended"
	TypeSpotifyError     = "session:spotify_error"
	TypeRequestNew       = "request:new"
	TypeGiftNew          = "gift:new"
	TypeServerShutdown   = "server:shutdown"
)

// Event is the JSON envelope delivered to dashboard connections. Only the
// fields relevant to the event type are set.
type Event struct {
	Type     string                `json:"type"`
	RoomID   string                `json:"roomId,omitempty"`
	Message  string                `json:"message,omitempty"`
	Reason   string                `json:"reason,omitempty"`
	Request  *models.SongRequest   `json:"request,omitempty"`
	Gift     *models.GiftEvent     `json:"gift,omitempty"`
	Session  *models.LiveSession   `json:"session,omitempty"`
	Queue    []models.QueueItem    `json:"queue,omitempty"`
	Requests []models.SongRequest  `json:"requests,omitempty"`
	Gifts    []models.GiftEvent    `json:"gifts,omitempty"`
}

// Init is the state snapshot sent when a dashboard connects while a session
// is live.
func Init(session *models.LiveSession, queue []models.QueueItem, requests []models.SongRequest, gifts []models.GiftEvent) Event {
	return Event{Type: TypeInit, Session: session, Queue: queue, Requests: requests, Gifts: gifts}
}

// SessionConnected signals a successful TikTok stream connection.
func SessionConnected(roomID string) Event {
	return Event{Type: TypeSessionConnected, RoomID: roomID}
}

// SessionEnded signals stream end or explicit stop.
func SessionEnded(reason string) Event {
	return Event{Type: TypeSessionEnded, Reason: reason}
}

// SpotifyError is a session-level advisory: the credential problem affects
// all subsequent requests, not just one row.
func SpotifyError(message string) Event {
	return Event{Type: TypeSpotifyError, Message: message}
}

// RequestNew announces a logged request, whatever its search outcome.
func RequestNew(request *models.SongRequest) Event {
	return Event{Type: TypeRequestNew, Request: request}
}

// GiftNew announces a persisted gift event.
func GiftNew(gift *models.GiftEvent) Event {
	return Event{Type: TypeGiftNew, Gift: gift}
}

// ServerShutdown is the final advisory before the process exits.
func ServerShutdown() Event {
	return Event{Type: TypeServerShutdown}
}
