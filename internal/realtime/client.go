package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options holds connection tunables. LivenessWindow is the pong deadline: a
// connection silent for that long is treated as disconnected and finalized
// exactly like a clean leave. CheckOrigin gates the upgrade; nil allows all
// origins.
type Options struct {
	PingInterval   time.Duration
	LivenessWindow time.Duration
	CheckOrigin    func(r *http.Request) bool
}

// DefaultOptions mirror the config defaults (30s ping, 60s liveness window).
func DefaultOptions() Options {
	return Options{
		PingInterval:   30 * time.Second,
		LivenessWindow: 60 * time.Second,
	}
}

// Client represents a single WebSocket connection of one participant in one
// room. The participant id is caller-supplied (the authenticated user id) and
// stable across reconnects.
type Client struct {
	ParticipantID string
	RoomID        string
	hub           *Hub
	controller    *Controller
	conn          *websocket.Conn
	send          chan WSMessage
	opts          Options
	logger        *zap.Logger
}

// ServeWs handles the WebSocket upgrade and runs the client loop. The client
// announces room identity via the meeting_id query parameter; its participant
// identity is the authenticated user id from the token.
func ServeWs(hub *Hub, controller *Controller, logger *zap.Logger, jwtValidate func(token string) (userID string, err error), opts Options) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     opts.CheckOrigin,
	}
	if upgrader.CheckOrigin == nil {
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	return func(c *gin.Context) {
		roomID := c.Query("meeting_id")
		token := c.Query("token")
		if roomID == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "meeting_id and token required"})
			return
		}
		userID, err := jwtValidate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ParticipantID: userID,
			RoomID:        roomID,
			hub:           hub,
			controller:    controller,
			conn:          conn,
			send:          make(chan WSMessage, 256),
			opts:          opts,
			logger:        logger,
		}

		// Register before joining so the client sees every broadcast that
		// follows its own admission.
		hub.Register(client)
		go client.writePump()

		snap, roster, err := controller.Join(c.Request.Context(), roomID, userID, time.Now())
		if err != nil {
			client.sendError(err)
			hub.Unregister(client)
			_ = conn.Close()
			return
		}
		client.sendDirect(EventRoomParticipants, RoomParticipantsPayload{RoomID: roomID, Participants: roster})
		logger.Debug("participant joined room",
			zap.String("participant_id", userID),
			zap.String("room_id", roomID),
			zap.Time("joined_at", snap.JoinedAt))

		client.readPump()
	}
}

// readPump consumes inbound actions until the connection dies. An abrupt
// transport closure takes the same finalize-and-broadcast path as a clean
// leave.
func (c *Client) readPump() {
	defer func() {
		c.controller.Leave(context.Background(), c.RoomID, c.ParticipantID, time.Now())
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.LivenessWindow))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.LivenessWindow))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.LivenessWindow))
		c.handle(msg)
	}
}

func (c *Client) handle(msg WSMessage) {
	ctx := context.Background()
	now := time.Now()

	switch msg.Event {
	case ActionJoinRoom:
		// Explicit re-announce: resend the roster so a reconnecting client
		// resynchronizes its view.
		c.sendDirect(EventRoomParticipants, RoomParticipantsPayload{
			RoomID:       c.RoomID,
			Participants: c.controller.registry.ListActive(c.RoomID),
		})

	case ActionMuteChange:
		var req MuteChangeRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return
		}
		target := req.ParticipantID
		if target == "" {
			target = c.ParticipantID
		}
		if _, err := c.controller.Mute(ctx, c.RoomID, c.ParticipantID, target, req.Muted, now); err != nil {
			c.sendError(err)
		}

	case ActionVideoChange:
		var req VideoChangeRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return
		}
		if _, err := c.controller.SetVideo(ctx, c.RoomID, c.ParticipantID, req.VideoOn, now); err != nil {
			c.sendError(err)
		}

	case ActionHandRaise:
		var req HandRaiseRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return
		}
		target := req.ParticipantID
		if target == "" {
			target = c.ParticipantID
		}
		if _, err := c.controller.ToggleHandRaise(ctx, c.RoomID, c.ParticipantID, target, req.Raised, now); err != nil {
			c.sendError(err)
		}

	case ActionRemove:
		var req RemoveRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return
		}
		if _, err := c.controller.Remove(ctx, c.RoomID, c.ParticipantID, req.ParticipantID, now); err != nil {
			c.sendError(err)
		}

	case ActionSpotlight:
		var req SpotlightRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return
		}
		if _, err := c.controller.Spotlight(ctx, c.RoomID, c.ParticipantID, req.ParticipantID, req.Spotlighted, now); err != nil {
			c.sendError(err)
		}

	case EventOffer, EventAnswer, EventICECandidate:
		c.controller.RelaySignal(c.RoomID, c.ParticipantID, msg.Event, msg.Data)

	default:
		// ignore
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendDirect queues a message for this client only.
func (c *Client) sendDirect(event string, payload interface{}) {
	select {
	case c.send <- WSMessage{Event: event, Data: marshalPayload(payload)}:
	default:
	}
}

// sendError reports a failed action to the initiating actor only; failures
// never propagate to other room members.
func (c *Client) sendError(err error) {
	c.sendDirect(EventError, ErrorPayload{Code: errorCode(err), Message: err.Error()})
}
