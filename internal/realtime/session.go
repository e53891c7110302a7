package realtime

import (
	"time"

	"github.com/lumen-meet/backend/internal/models"
)

// Session is one participant's live presence record within a room.
// All fields are guarded by the owning room's lock; callers outside the
// registry only ever see value-typed Snapshots.
type Session struct {
	ParticipantID string
	RoomID        string
	Role          models.MeetingRole
	JoinedAt      time.Time
	LeftAt        *time.Time
	LastActiveAt  time.Time
	IsMuted       bool
	IsVideoOn     bool
	HandRaised    bool
	IsSpotlighted bool
}

// Snapshot is an immutable copy of a session's state at one observation point.
type Snapshot struct {
	ParticipantID string             `json:"participant_id"`
	RoomID        string             `json:"room_id"`
	Role          models.MeetingRole `json:"role"`
	JoinedAt      time.Time          `json:"joined_at"`
	LastActiveAt  time.Time          `json:"last_active_at"`
	IsMuted       bool               `json:"is_muted"`
	IsVideoOn     bool               `json:"is_video_on"`
	HandRaised    bool               `json:"hand_raised"`
	IsSpotlighted bool               `json:"is_spotlighted"`
}

// Record is a finalized session, handed to the attendance layer. LeftAt and
// DurationSeconds are computed exactly once, when the session closes, and are
// never retroactively altered.
type Record struct {
	RoomID          string             `json:"room_id"`
	ParticipantID   string             `json:"participant_id"`
	Role            models.MeetingRole `json:"role"`
	JoinedAt        time.Time          `json:"joined_at"`
	LeftAt          time.Time          `json:"left_at"`
	DurationSeconds int64              `json:"duration_seconds"`
	IsMuted         bool               `json:"is_muted"`
	IsVideoOn       bool               `json:"is_video_on"`
	Removed         bool               `json:"removed"`
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ParticipantID: s.ParticipantID,
		RoomID:        s.RoomID,
		Role:          s.Role,
		JoinedAt:      s.JoinedAt,
		LastActiveAt:  s.LastActiveAt,
		IsMuted:       s.IsMuted,
		IsVideoOn:     s.IsVideoOn,
		HandRaised:    s.HandRaised,
		IsSpotlighted: s.IsSpotlighted,
	}
}

// finalize closes the session at now and returns its attendance record.
// Duration is floor((leftAt - joinedAt) / 1s); a clock skew that put leftAt
// before joinedAt is clamped to zero rather than producing a negative value.
func (s *Session) finalize(now time.Time, removed bool) Record {
	left := now
	s.LeftAt = &left
	dur := int64(left.Sub(s.JoinedAt) / time.Second)
	if dur < 0 {
		dur = 0
	}
	return Record{
		RoomID:          s.RoomID,
		ParticipantID:   s.ParticipantID,
		Role:            s.Role,
		JoinedAt:        s.JoinedAt,
		LeftAt:          left,
		DurationSeconds: dur,
		IsMuted:         s.IsMuted,
		IsVideoOn:       s.IsVideoOn,
		Removed:         removed,
	}
}
