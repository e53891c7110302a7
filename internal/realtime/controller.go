package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-meet/backend/internal/models"
)

// Relay is the fan-out surface the controller broadcasts through. For
// participant-state events the sender id is the participant the event is
// about, so the affected participant never receives its own echo while the
// acting host/moderator does see the broadcast.
type Relay interface {
	RelayToRoom(roomID, senderID, event string, payload interface{})
	RelayToParticipant(roomID, targetID, event string, payload interface{})
}

// RoleSource resolves meeting roles. The controller never verifies
// credentials; identity is assumed already authenticated.
type RoleSource interface {
	RoleOf(ctx context.Context, meetingID, participantID uuid.UUID) (models.MeetingRole, error)
	HostIDOf(ctx context.Context, meetingID uuid.UUID) (uuid.UUID, error)
}

// MeetingStore is the persistence boundary for attendance. Store errors are
// logged and never block live room state: attendance is best-effort in the
// face of a store outage, live signaling is not.
type MeetingStore interface {
	// UpdateParticipantTimes upserts the participant's attendance row. A nil
	// leftAt opens the row on join; a non-nil leftAt finalizes it.
	UpdateParticipantTimes(ctx context.Context, meetingID, participantID uuid.UUID, role models.MeetingRole, joinedAt time.Time, leftAt *time.Time, muted, videoOn, removed bool) error
}

// action identifies a gated control action for the authorization gate.
type action int

const (
	actionMute action = iota
	actionHandRaise
	actionSpotlight
	actionRemove
)

// Controller applies authorization-gated control actions to room sessions and
// fans the effects out through the relay. Every action is all-or-nothing: an
// unauthorized or invalid attempt mutates nothing and broadcasts nothing.
type Controller struct {
	registry *Registry
	relay    Relay
	roles    RoleSource
	store    MeetingStore
	logger   *zap.Logger
}

// NewController creates a session controller.
func NewController(registry *Registry, relay Relay, roles RoleSource, store MeetingStore, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		registry: registry,
		relay:    relay,
		roles:    roles,
		store:    store,
		logger:   logger,
	}
}

// authorize applies the uniform precondition gate: the host and moderators
// may act on anyone; a participant may only toggle its own hand.
func (c *Controller) authorize(roomID, actorID, targetID string, act action) error {
	actor, ok := c.registry.Get(roomID, actorID)
	if !ok {
		return ErrAccessDenied
	}
	if actor.Role == models.MeetingRoleHost || actor.Role == models.MeetingRoleModerator {
		return nil
	}
	if act == actionHandRaise && actorID == targetID {
		return nil
	}
	return ErrAccessDenied
}

// Join admits a participant into a room, resolving its meeting role, closing
// any ghost session left by an unclean reconnect, and announcing the arrival
// to existing members. It returns the new session and a roster snapshot for
// the joining client.
func (c *Controller) Join(ctx context.Context, roomID, participantID string, now time.Time) (Snapshot, []Snapshot, error) {
	meetingID, userID, err := parseIDs(roomID, participantID)
	if err != nil {
		return Snapshot{}, nil, err
	}
	role, err := c.roles.RoleOf(ctx, meetingID, userID)
	if err != nil {
		c.logger.Warn("role lookup failed, defaulting to participant",
			zap.String("room_id", roomID), zap.String("participant_id", participantID), zap.Error(err))
		role = models.MeetingRoleParticipant
	}

	snap, superseded := c.registry.Join(roomID, participantID, role, now)
	if superseded != nil {
		c.persist(meetingID, userID, *superseded)
	}

	c.persistJoin(meetingID, userID, snap)
	c.relay.RelayToRoom(roomID, participantID, EventParticipantJoined, ParticipantJoinedPayload{
		ParticipantID: participantID,
		Role:          role,
		JoinedAt:      snap.JoinedAt,
	})
	return snap, c.registry.ListActive(roomID), nil
}

// Leave finalizes a session, whether from an explicit leave or an abrupt
// transport closure; both paths are identical with respect to duration
// computation and broadcasts. A second call for the same session is a no-op
// returning the already-recorded result without a second broadcast.
func (c *Controller) Leave(ctx context.Context, roomID, participantID string, now time.Time) (Record, bool) {
	rec, finalizedNow, found := c.registry.Leave(roomID, participantID, now, false)
	if !found {
		return Record{}, false
	}
	if finalizedNow {
		c.relay.RelayToRoom(roomID, participantID, EventUserDisconnected, UserDisconnectedPayload{
			ParticipantID: participantID,
			At:            rec.LeftAt,
		})
		if meetingID, userID, err := parseIDs(roomID, participantID); err == nil {
			c.persist(meetingID, userID, rec)
		}
	}
	return rec, true
}

// Mute sets the mute flag on the target. Gated: host or moderator only.
func (c *Controller) Mute(ctx context.Context, roomID, actorID, targetID string, muted bool, now time.Time) (Snapshot, error) {
	if err := c.authorize(roomID, actorID, targetID, actionMute); err != nil {
		return Snapshot{}, err
	}
	snap, ok := c.registry.SetMuted(roomID, targetID, muted, now)
	if !ok {
		return Snapshot{}, ErrInvalidTarget
	}
	c.relay.RelayToRoom(roomID, targetID, EventParticipantMuted, MuteChangedPayload{
		ParticipantID: targetID,
		Muted:         muted,
		At:            now,
	})
	return snap, nil
}

// SetVideo sets the camera flag. Not centrally gated: a participant controls
// its own camera, so the actor is always the target.
func (c *Controller) SetVideo(ctx context.Context, roomID, participantID string, on bool, now time.Time) (Snapshot, error) {
	snap, ok := c.registry.SetVideo(roomID, participantID, on, now)
	if !ok {
		return Snapshot{}, ErrInvalidTarget
	}
	c.relay.RelayToRoom(roomID, participantID, EventParticipantVideo, VideoChangedPayload{
		ParticipantID: participantID,
		VideoOn:       on,
		At:            now,
	})
	return snap, nil
}

// ToggleHandRaise sets the hand-raise flag. Allowed for the participant
// acting on itself, or for the host/a moderator acting on anyone.
func (c *Controller) ToggleHandRaise(ctx context.Context, roomID, actorID, targetID string, raised bool, now time.Time) (Snapshot, error) {
	if err := c.authorize(roomID, actorID, targetID, actionHandRaise); err != nil {
		return Snapshot{}, err
	}
	snap, ok := c.registry.SetHandRaised(roomID, targetID, raised, now)
	if !ok {
		return Snapshot{}, ErrInvalidTarget
	}
	c.relay.RelayToRoom(roomID, targetID, EventParticipantHandRaised, HandRaisedPayload{
		ParticipantID: targetID,
		Raised:        raised,
		At:            now,
	})
	return snap, nil
}

// Spotlight sets or clears the room-wide spotlight on the target. Gated.
// Enabling clears every other session's flag in the same critical section;
// the clear and the set are coalesced into one broadcast carrying the new
// spotlighted id.
func (c *Controller) Spotlight(ctx context.Context, roomID, actorID, targetID string, on bool, now time.Time) (Snapshot, error) {
	if err := c.authorize(roomID, actorID, targetID, actionSpotlight); err != nil {
		return Snapshot{}, err
	}
	snap, ok := c.registry.SetSpotlight(roomID, targetID, on, now)
	if !ok {
		return Snapshot{}, ErrInvalidTarget
	}
	c.relay.RelayToRoom(roomID, targetID, EventParticipantSpotlighted, SpotlightedPayload{
		ParticipantID: targetID,
		Spotlighted:   on,
		At:            now,
	})
	return snap, nil
}

// Remove finalizes the target's session and expels it from the room. Gated;
// removing the host always fails with ErrForbiddenOperation. The target
// always receives a direct you-were-removed notice, even though it is no
// longer in the room from everyone else's perspective. A repeat call is a
// no-op returning the already-recorded result.
func (c *Controller) Remove(ctx context.Context, roomID, actorID, targetID string, now time.Time) (Record, error) {
	if err := c.authorize(roomID, actorID, targetID, actionRemove); err != nil {
		return Record{}, err
	}
	// Host protection holds whether or not the host currently has a live
	// session, so identity is resolved from the meeting record; the session
	// role below still covers a store outage.
	if c.isHost(ctx, roomID, targetID) {
		return Record{}, ErrForbiddenOperation
	}
	target, ok := c.registry.Get(roomID, targetID)
	if !ok {
		// Possibly already removed: idempotent re-remove returns the record.
		if rec, _, found := c.registry.Leave(roomID, targetID, now, true); found {
			if rec.Role == models.MeetingRoleHost {
				return Record{}, ErrForbiddenOperation
			}
			return rec, nil
		}
		return Record{}, ErrInvalidTarget
	}
	if target.Role == models.MeetingRoleHost {
		return Record{}, ErrForbiddenOperation
	}

	// Direct notice first: the target must learn even if the room broadcast
	// misses it after the purge.
	c.relay.RelayToParticipant(roomID, targetID, EventYouWereRemoved, YouWereRemovedPayload{RoomID: roomID})

	rec, finalizedNow, _ := c.registry.Leave(roomID, targetID, now, true)
	if finalizedNow {
		c.relay.RelayToRoom(roomID, targetID, EventParticipantRemoved, ParticipantRemovedPayload{
			ParticipantID: targetID,
			At:            rec.LeftAt,
		})
		if meetingID, userID, err := parseIDs(roomID, targetID); err == nil {
			c.persist(meetingID, userID, rec)
		}
	}
	return rec, nil
}

// isHost reports whether targetID is the meeting host. False on a lookup
// failure; callers keep their session-role fallback for that case.
func (c *Controller) isHost(ctx context.Context, roomID, targetID string) bool {
	meetingID, userID, err := parseIDs(roomID, targetID)
	if err != nil {
		return false
	}
	hostID, err := c.roles.HostIDOf(ctx, meetingID)
	if err != nil {
		c.logger.Warn("host lookup failed",
			zap.String("room_id", roomID), zap.Error(err))
		return false
	}
	return hostID == userID
}

// RelaySignal forwards an opaque offer/answer/ice-candidate payload verbatim
// to the rest of the room. The relay does not interpret the payload.
func (c *Controller) RelaySignal(roomID, senderID, event string, payload []byte) {
	c.relay.RelayToRoom(roomID, senderID, event, payload)
}

func (c *Controller) persistJoin(meetingID, userID uuid.UUID, snap Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.UpdateParticipantTimes(ctx, meetingID, userID, snap.Role, snap.JoinedAt, nil, snap.IsMuted, snap.IsVideoOn, false); err != nil {
		c.logger.Error("persist participant join failed",
			zap.String("meeting_id", meetingID.String()),
			zap.String("participant_id", userID.String()),
			zap.Error(err))
	}
}

func (c *Controller) persist(meetingID, userID uuid.UUID, rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	left := rec.LeftAt
	if err := c.store.UpdateParticipantTimes(ctx, meetingID, userID, rec.Role, rec.JoinedAt, &left, rec.IsMuted, rec.IsVideoOn, rec.Removed); err != nil {
		c.logger.Error("persist participant leave failed",
			zap.String("meeting_id", meetingID.String()),
			zap.String("participant_id", userID.String()),
			zap.Error(err))
	}
}

func parseIDs(roomID, participantID string) (uuid.UUID, uuid.UUID, error) {
	meetingID, err := uuid.Parse(roomID)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalidRoom
	}
	userID, err := uuid.Parse(participantID)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalidRoom
	}
	return meetingID, userID, nil
}
