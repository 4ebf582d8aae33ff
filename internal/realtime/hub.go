// Package realtime fans pipeline events out to dashboard WebSocket
// connections, grouped by owning user.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat (seconds).
	PingInterval = 30
	PongWait     = 60
)

// Publisher publishes user events for other instances (cross-instance
// fan-out). Optional.
type Publisher interface {
	PublishUserEvent(userID uuid.UUID, payload []byte) error
}

// Subscriber subscribes to a user's event channel and invokes handler for
// incoming payloads. Optional counterpart of Publisher.
type Subscriber interface {
	SubscribeUser(userID uuid.UUID, handler func(payload []byte)) (cancel func(), err error)
}

// Hub maintains user_id -> set of dashboard connections and delivers events
// to all of them. Delivery is best-effort and synchronous per Emit call, so
// one user's connections observe events in emit order.
type Hub struct {
	// userID -> map[clientID]*Client
	users  map[uuid.UUID]map[string]*Client
	subs   map[uuid.UUID]func() // cancel cross-instance subscription per user
	mu     sync.RWMutex
	logger *zap.Logger
	pub    Publisher
	sub    Subscriber
}

// NewHub creates a dashboard hub. pub and sub may be nil for single-process
// deployments; the hub then fans out locally only.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	return &Hub{
		users:  make(map[uuid.UUID]map[string]*Client),
		subs:   make(map[uuid.UUID]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// Register adds a dashboard connection. The first connection of a user
// starts the cross-instance subscription for that user.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.users[c.UserID] == nil {
		h.users[c.UserID] = make(map[string]*Client)
		if h.sub != nil {
			cancel, err := h.sub.SubscribeUser(c.UserID, func(payload []byte) {
				h.deliverLocal(c.UserID, payload)
			})
			if err == nil {
				h.subs[c.UserID] = cancel
			}
		}
	}
	h.users[c.UserID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("dashboard connected",
		zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// Unregister removes a connection, cancelling the cross-instance
// subscription when the user's last connection leaves. Stale connections
// reach here through their own read-pump close, not through the emitter.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.users[c.UserID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.users, c.UserID)
			if cancel, ok := h.subs[c.UserID]; ok {
				cancel()
				delete(h.subs, c.UserID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("dashboard disconnected",
		zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// Emit delivers an event to every dashboard connection of a user. With a
// publisher attached it publishes only; the subscription callback performs
// the single local delivery, so each instance delivers an event once.
// At-least-once, no retry.
func (h *Hub) Emit(userID uuid.UUID, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal dashboard event", zap.Error(err), zap.String("type", event.Type))
		return
	}
	if h.pub != nil {
		if err := h.pub.PublishUserEvent(userID, payload); err == nil {
			return
		}
		// Publish failed: fall through to local-only delivery.
	}
	h.deliverLocal(userID, payload)
}

func (h *Hub) deliverLocal(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	clients := h.users[userID]
	targets := make([]*Client, 0, len(clients))
	for _, c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- payload:
		default:
			// Buffer full; the connection is stale and will reap itself.
		}
	}
}

// SendTo delivers an event to a single connection (e.g. the init snapshot).
func (h *Hub) SendTo(c *Client, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal dashboard event", zap.Error(err), zap.String("type", event.Type))
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// NotifyShutdown broadcasts the shutdown advisory to every connection of
// every user. Called once, right before the process exits.
func (h *Hub) NotifyShutdown() {
	payload, _ := json.Marshal(ServerShutdown())
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.users {
		for _, c := range clients {
			select {
			case c.send <- payload:
			default:
			}
		}
	}
}

// ConnectionCount returns the number of live connections for a user.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
