package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub maintains room_id -> set of connections and fans out messages.
// Uses Redis pub/sub for horizontal scaling: local delivery + publish to Redis.
// Delivery is best-effort: a recipient that is not connected (or whose buffer
// is full) simply misses the message; its own resync path re-establishes
// consistent state. A failure to deliver to one recipient never aborts
// delivery to the rest.
type Hub struct {
	// roomID -> participantID -> *Client
	rooms    map[string]map[string]*Client
	subs     map[string]func() // cancel Redis subscription per room
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    EventPublisher
	redisSub EventSubscriber
}

// EventPublisher publishes room events to Redis for cross-instance delivery.
type EventPublisher interface {
	PublishRoomEvent(roomID, senderID, targetID, event string, payload []byte) error
}

// EventSubscriber subscribes to a room's channel and invokes handler for
// events published by other instances.
type EventSubscriber interface {
	SubscribeRoom(roomID string, handler func(senderID, targetID, event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, pub EventPublisher, sub EventSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		redis:    pub,
		redisSub: sub,
	}
}

// Register adds a client connection to a room. Starts the Redis subscription
// for the room when the first local client arrives.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.RoomID] == nil {
		h.rooms[c.RoomID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeRoom(c.RoomID, func(senderID, targetID, event string, payload []byte) {
				if targetID != "" {
					h.deliverToParticipant(c.RoomID, targetID, event, json.RawMessage(payload))
					return
				}
				h.deliverToRoom(c.RoomID, senderID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.RoomID] = cancel
			} else {
				h.logger.Warn("room subscribe failed", zap.String("room_id", c.RoomID), zap.Error(err))
			}
		}
	}
	h.rooms[c.RoomID][c.ParticipantID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected",
		zap.String("participant_id", c.ParticipantID), zap.String("room_id", c.RoomID))
}

// Unregister removes a client connection. Cancels the Redis subscription when
// the last local client leaves the room. The client is only removed if it is
// still the registered connection for its identity, so a reconnect that
// already replaced it is left untouched.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.RoomID]; ok {
		if cur, ok := m[c.ParticipantID]; ok && cur == c {
			delete(m, c.ParticipantID)
		}
		if len(m) == 0 {
			delete(h.rooms, c.RoomID)
			if cancel, ok := h.subs[c.RoomID]; ok {
				cancel()
				delete(h.subs, c.RoomID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected",
		zap.String("participant_id", c.ParticipantID), zap.String("room_id", c.RoomID))
}

// RelayToRoom delivers the payload to every connected room member except
// senderID, locally and via Redis for clients on other instances. Messages
// triggered by one originating action reach all local recipients in the order
// they were triggered.
func (h *Hub) RelayToRoom(roomID, senderID, event string, payload interface{}) {
	data := marshalPayload(payload)
	h.deliverToRoom(roomID, senderID, event, data)
	if h.redis != nil {
		if err := h.redis.PublishRoomEvent(roomID, senderID, "", event, data); err != nil {
			h.logger.Warn("publish room event failed", zap.String("room_id", roomID), zap.Error(err))
		}
	}
}

// RelayToParticipant delivers a message point-to-point. Used for the removal
// notice so the target learns even after its session has been purged from the
// room.
func (h *Hub) RelayToParticipant(roomID, targetID, event string, payload interface{}) {
	data := marshalPayload(payload)
	h.deliverToParticipant(roomID, targetID, event, data)
	if h.redis != nil {
		if err := h.redis.PublishRoomEvent(roomID, "", targetID, event, data); err != nil {
			h.logger.Warn("publish direct event failed", zap.String("room_id", roomID), zap.Error(err))
		}
	}
}

func (h *Hub) deliverToRoom(roomID, senderID, event string, data json.RawMessage) {
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[roomID]))
	for id, c := range h.rooms[roomID] {
		if id == senderID {
			continue
		}
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip this recipient
			h.logger.Warn("dropping message for slow client",
				zap.String("participant_id", c.ParticipantID),
				zap.String("room_id", roomID),
				zap.String("event", event))
		}
	}
}

func (h *Hub) deliverToParticipant(roomID, targetID, event string, data json.RawMessage) {
	h.mu.RLock()
	c, ok := h.rooms[roomID][targetID]
	h.mu.RUnlock()
	if !ok || c == nil {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}

// ConnectedCount returns the number of connected clients in a room on this
// instance.
func (h *Hub) ConnectedCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func marshalPayload(payload interface{}) json.RawMessage {
	switch v := payload.(type) {
	case []byte:
		return v
	case json.RawMessage:
		return v
	default:
		data, _ := json.Marshal(payload)
		return data
	}
}
