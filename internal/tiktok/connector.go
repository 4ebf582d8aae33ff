// Package tiktok manages the live connection to a streamer's TikTok
// broadcast and runs the chat-to-request pipeline over its event stream.
package tiktok

import "context"

// Event type names, as stored in the raw-event audit trail.
const (
	EventChat      = "chat"
	EventGift      = "gift"
	EventMember    = "member"
	EventLike      = "like"
	EventShare     = "share"
	EventFollow    = "follow"
	EventSubscribe = "subscribe"
	EventRoomUser  = "roomUser"
)

// ChatData is the chat-specific slice of an event.
type ChatData struct {
	Comment string
}

// GiftData is the gift-specific slice of an event. Repeatable gifts stream
// intermediate events with RepeatEnd false; only the final one carries the
// cumulative count.
type GiftData struct {
	GiftID       int
	Name         string
	DiamondCount int
	RepeatCount  int
	RepeatEnd    bool
}

// Event is one normalized live event. Payload holds the upstream object for
// the raw-event audit trail; Chat and Gift are set only for their types.
type Event struct {
	Type    string
	Viewer  string
	Chat    *ChatData
	Gift    *GiftData
	Payload any
}

// RoomInfo describes the connected broadcast.
type RoomInfo struct {
	RoomID string
}

// Connection is one live TikTok stream attachment. Events is closed when
// the stream ends or the connection drops; Disconnect closes it eagerly.
type Connection interface {
	Events() <-chan Event
	Disconnect() error
}

// Connector establishes live connections. Implemented by the gotiktoklive
// adapter in production and by fakes in tests.
type Connector interface {
	Connect(ctx context.Context, username string) (Connection, RoomInfo, error)
}
