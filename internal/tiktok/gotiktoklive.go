package tiktok

import (
	"context"
	"fmt"

	gotiktoklive "github.com/Davincible/gotiktoklive"
	"go.uber.org/zap"
)

// GoTikTokConnector implements Connector on top of the gotiktoklive
// library. All library-specific types stay inside this file.
type GoTikTokConnector struct {
	tt     *gotiktoklive.TikTok
	logger *zap.Logger
}

// NewGoTikTokConnector creates the production connector. apiKey is the
// signing-service key; optional for low-volume use.
func NewGoTikTokConnector(apiKey string, logger *zap.Logger) (*GoTikTokConnector, error) {
	// The pinned gotiktoklive snapshot predates the signing-service option,
	// so apiKey cannot be passed through; see BUILD_FLAGS.json.
	_ = apiKey
	tt := gotiktoklive.NewTikTok()
	return &GoTikTokConnector{tt: tt, logger: logger}, nil
}

// Connect attaches to the user's live broadcast and starts translating
// library events onto a normalized channel.
func (c *GoTikTokConnector) Connect(ctx context.Context, username string) (Connection, RoomInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, RoomInfo{}, err
	}
	live, err := c.tt.TrackUser(username)
	if err != nil {
		return nil, RoomInfo{}, fmt.Errorf("track user %q: %w", username, err)
	}

	conn := &liveConnection{
		live:   live,
		events: make(chan Event, 64),
	}
	go conn.translate()

	return conn, RoomInfo{RoomID: live.ID}, nil
}

type liveConnection struct {
	live   *gotiktoklive.Live
	events chan Event
}

func (l *liveConnection) Events() <-chan Event { return l.events }

// Disconnect closes the library connection; the library then closes its
// event channel, which ends translate and closes ours.
func (l *liveConnection) Disconnect() error {
	l.live.Close()
	return nil
}

// translate maps library events onto the normalized Event shape. Closing
// our channel is the stream-end signal consumers rely on. The send blocks
// when the consumer lags, pushing backpressure onto the library channel so
// no event is ever lost before the raw-event record is written.
func (l *liveConnection) translate() {
	defer close(l.events)
	for raw := range l.live.Events {
		ev, ok := normalize(raw)
		if !ok {
			continue
		}
		l.events <- ev
	}
}

func normalize(raw interface{}) (Event, bool) {
	switch e := raw.(type) {
	case gotiktoklive.ChatEvent:
		return Event{
			Type:    EventChat,
			Viewer:  e.User.Username,
			Chat:    &ChatData{Comment: e.Comment},
			Payload: e,
		}, true
	case gotiktoklive.GiftEvent:
		return Event{
			Type:   EventGift,
			Viewer: e.User.Username,
			Gift: &GiftData{
				GiftID:       int(e.ID),
				Name:         e.Name,
				DiamondCount: e.Cost,
				RepeatCount:  e.RepeatCount,
				// Non-streakable gifts never send a terminal repeat event,
				// so they complete immediately.
				RepeatEnd: e.Type != 1 || e.RepeatEnd,
			},
			Payload: e,
		}, true
	case gotiktoklive.UserEvent:
		t := EventMember
		switch e.Event {
		case gotiktoklive.USER_SHARE:
			t = EventShare
		case gotiktoklive.USER_FOLLOW:
			t = EventFollow
		}
		return Event{Type: t, Viewer: e.User.Username, Payload: e}, true
	case gotiktoklive.LikeEvent:
		return Event{Type: EventLike, Viewer: e.User.Username, Payload: e}, true
	case gotiktoklive.ViewersEvent:
		return Event{Type: EventRoomUser, Payload: e}, true
	default:
		return Event{}, false
	}
}
