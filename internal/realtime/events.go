package realtime

import (
	"encoding/json"
	"time"

	"github.com/lumen-meet/backend/internal/models"
)

// Outbound events fanned out to room members. Each carries a fixed payload
// shape; the shape is defined once here, never assembled ad hoc at call sites.
const (
	EventParticipantJoined      = "participant-joined"
	EventUserDisconnected       = "user-disconnected"
	EventParticipantMuted       = "participant-muted"
	EventParticipantVideo       = "participant-video-changed"
	EventParticipantHandRaised  = "participant-hand-raised"
	EventParticipantSpotlighted = "participant-spotlighted"
	EventParticipantRemoved     = "participant-removed"
	EventYouWereRemoved         = "you-were-removed"
	EventRoomParticipants       = "room-participants"
	EventError                  = "error"
)

// Opaque call-setup signaling, forwarded verbatim. The relay never inspects
// these payloads.
const (
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
)

// Inbound actions accepted from clients.
const (
	ActionJoinRoom    = "join-room"
	ActionMuteChange  = "mute-status-change"
	ActionVideoChange = "video-status-change"
	ActionHandRaise   = "hand-raise"
	ActionRemove      = "remove-participant"
	ActionSpotlight   = "spotlight-participant"
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ParticipantJoinedPayload announces a new session to existing room members.
type ParticipantJoinedPayload struct {
	ParticipantID string             `json:"participant_id"`
	Role          models.MeetingRole `json:"role"`
	JoinedAt      time.Time          `json:"joined_at"`
}

// UserDisconnectedPayload announces a finalized session.
type UserDisconnectedPayload struct {
	ParticipantID string    `json:"participant_id"`
	At            time.Time `json:"at"`
}

// MuteChangedPayload carries a mute flag transition.
type MuteChangedPayload struct {
	ParticipantID string    `json:"participant_id"`
	Muted         bool      `json:"muted"`
	At            time.Time `json:"at"`
}

// VideoChangedPayload carries a camera flag transition.
type VideoChangedPayload struct {
	ParticipantID string    `json:"participant_id"`
	VideoOn       bool      `json:"video_on"`
	At            time.Time `json:"at"`
}

// HandRaisedPayload carries a hand-raise flag transition.
type HandRaisedPayload struct {
	ParticipantID string    `json:"participant_id"`
	Raised        bool      `json:"raised"`
	At            time.Time `json:"at"`
}

// SpotlightedPayload carries the new spotlight state. Enabling spotlight on a
// participant implies every other participant's spotlight is cleared; clients
// interpret "new spotlighted id" as "clear everyone else".
type SpotlightedPayload struct {
	ParticipantID string    `json:"participant_id"`
	Spotlighted   bool      `json:"spotlighted"`
	At            time.Time `json:"at"`
}

// ParticipantRemovedPayload announces a removal to the remaining room members.
type ParticipantRemovedPayload struct {
	ParticipantID string    `json:"participant_id"`
	At            time.Time `json:"at"`
}

// YouWereRemovedPayload is delivered point-to-point to the removed participant
// so it can clean up even though it is no longer in the room.
type YouWereRemovedPayload struct {
	RoomID string `json:"room_id"`
}

// RoomParticipantsPayload is the resync snapshot sent to a joining client.
type RoomParticipantsPayload struct {
	RoomID       string     `json:"room_id"`
	Participants []Snapshot `json:"participants"`
}

// ErrorPayload reports a failed action to the initiating actor only.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MuteChangeRequest is the inbound body for mute-status-change.
// ParticipantID empty means the actor is toggling itself.
type MuteChangeRequest struct {
	ParticipantID string `json:"participant_id,omitempty"`
	Muted         bool   `json:"muted"`
}

// VideoChangeRequest is the inbound body for video-status-change.
type VideoChangeRequest struct {
	VideoOn bool `json:"video_on"`
}

// HandRaiseRequest is the inbound body for hand-raise.
type HandRaiseRequest struct {
	ParticipantID string `json:"participant_id,omitempty"`
	Raised        bool   `json:"raised"`
}

// RemoveRequest is the inbound body for remove-participant.
type RemoveRequest struct {
	ParticipantID string `json:"participant_id"`
}

// SpotlightRequest is the inbound body for spotlight-participant.
type SpotlightRequest struct {
	ParticipantID string `json:"participant_id"`
	Spotlighted   bool   `json:"spotlighted"`
}
