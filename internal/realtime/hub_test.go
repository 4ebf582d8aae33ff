package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(userID uuid.UUID, hub *Hub) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		hub:    hub,
		send:   make(chan []byte, 256),
		logger: zap.NewNop(),
	}
}

func TestHubEmitDeliversInOrder(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	userID := uuid.New()
	c := newTestClient(userID, hub)
	hub.Register(c)

	hub.Emit(userID, SessionConnected("room-1"))
	hub.Emit(userID, SessionEnded("manual"))

	var first, second Event
	require.NoError(t, json.Unmarshal(<-c.send, &first))
	require.NoError(t, json.Unmarshal(<-c.send, &second))
	assert.Equal(t, TypeSessionConnected, first.Type)
	assert.Equal(t, "room-1", first.RoomID)
	assert.Equal(t, TypeSessionEnded, second.Type)
	assert.Equal(t, "manual", second.Reason)
}

func TestHubEmitReachesAllUserConnections(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	userID := uuid.New()
	a := newTestClient(userID, hub)
	b := newTestClient(userID, hub)
	other := newTestClient(uuid.New(), hub)
	hub.Register(a)
	hub.Register(b)
	hub.Register(other)

	hub.Emit(userID, SpotifyError("token expired"))

	for _, c := range []*Client{a, b} {
		var e Event
		require.NoError(t, json.Unmarshal(<-c.send, &e))
		assert.Equal(t, TypeSpotifyError, e.Type)
	}
	assert.Empty(t, other.send)
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	userID := uuid.New()
	c := newTestClient(userID, hub)
	hub.Register(c)
	assert.Equal(t, 1, hub.ConnectionCount(userID))

	hub.Unregister(c)
	assert.Equal(t, 0, hub.ConnectionCount(userID))

	hub.Emit(userID, SessionEnded("manual"))
	assert.Empty(t, c.send)
}

func TestHubNotifyShutdown(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	a := newTestClient(uuid.New(), hub)
	b := newTestClient(uuid.New(), hub)
	hub.Register(a)
	hub.Register(b)

	hub.NotifyShutdown()

	for _, c := range []*Client{a, b} {
		var e Event
		require.NoError(t, json.Unmarshal(<-c.send, &e))
		assert.Equal(t, TypeServerShutdown, e.Type)
	}
}

type fakePublisher struct {
	published [][]byte
	fail      bool
}

func (f *fakePublisher) PublishUserEvent(_ uuid.UUID, payload []byte) error {
	if f.fail {
		return assert.AnError
	}
	f.published = append(f.published, payload)
	return nil
}

type fakeSubscriber struct {
	handlers map[uuid.UUID]func([]byte)
	cancels  int
}

func (f *fakeSubscriber) SubscribeUser(userID uuid.UUID, handler func([]byte)) (func(), error) {
	if f.handlers == nil {
		f.handlers = make(map[uuid.UUID]func([]byte))
	}
	f.handlers[userID] = handler
	return func() { f.cancels++ }, nil
}

func TestHubPublishesInsteadOfLocalDelivery(t *testing.T) {
	pub := &fakePublisher{}
	sub := &fakeSubscriber{}
	hub := NewHub(zap.NewNop(), pub, sub)
	userID := uuid.New()
	c := newTestClient(userID, hub)
	hub.Register(c)

	hub.Emit(userID, SessionConnected("room-9"))

	require.Len(t, pub.published, 1)
	assert.Empty(t, c.send, "local delivery happens via the subscription, not Emit")

	// The subscription callback performs the single local delivery.
	sub.handlers[userID](pub.published[0])
	var e Event
	require.NoError(t, json.Unmarshal(<-c.send, &e))
	assert.Equal(t, TypeSessionConnected, e.Type)
}

func TestHubFallsBackToLocalWhenPublishFails(t *testing.T) {
	pub := &fakePublisher{fail: true}
	hub := NewHub(zap.NewNop(), pub, nil)
	userID := uuid.New()
	c := newTestClient(userID, hub)
	hub.Register(c)

	hub.Emit(userID, SessionEnded("stream_ended"))

	var e Event
	require.NoError(t, json.Unmarshal(<-c.send, &e))
	assert.Equal(t, TypeSessionEnded, e.Type)
}

func TestHubCancelsSubscriptionOnLastLeave(t *testing.T) {
	sub := &fakeSubscriber{}
	hub := NewHub(zap.NewNop(), nil, sub)
	userID := uuid.New()
	a := newTestClient(userID, hub)
	b := newTestClient(userID, hub)
	hub.Register(a)
	hub.Register(b)
	require.Len(t, sub.handlers, 1)

	hub.Unregister(a)
	assert.Equal(t, 0, sub.cancels)
	hub.Unregister(b)
	assert.Equal(t, 1, sub.cancels)
}

func TestServeWs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(zap.NewNop(), nil, nil)
	userID := uuid.New()

	validate := func(token string) (string, error) {
		if token != "good" {
			return "", assert.AnError
		}
		return userID.String(), nil
	}
	router := gin.New()
	router.GET("/ws", ServeWs(hub, zap.NewNop(), validate, nil))
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=good"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	if resp != nil {
		resp.Body.Close()
	}

	require.Eventually(t, func() bool {
		return hub.ConnectionCount(userID) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Emit(userID, SessionConnected("room-42"))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var e Event
	require.NoError(t, json.Unmarshal(payload, &e))
	assert.Equal(t, TypeSessionConnected, e.Type)
	assert.Equal(t, "room-42", e.RoomID)

	conn.Close()
	require.Eventually(t, func() bool {
		return hub.ConnectionCount(userID) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestServeWsRejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(zap.NewNop(), nil, nil)
	validate := func(string) (string, error) { return "", assert.AnError }

	router := gin.New()
	router.GET("/ws", ServeWs(hub, zap.NewNop(), validate, nil))
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=bad"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	if conn != nil {
		conn.Close()
	}
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
