package models

import (
	"time"

	"github.com/google/uuid"
)

// MeetingStatus is the lifecycle state of a meeting.
type MeetingStatus string

const (
	MeetingScheduled  MeetingStatus = "scheduled"
	MeetingInProgress MeetingStatus = "in-progress"
	MeetingCompleted  MeetingStatus = "completed"
	MeetingCancelled  MeetingStatus = "cancelled"
)

// MeetingRole is a participant's role within one meeting.
// The host role is unique per meeting and derived from Meeting.HostID.
type MeetingRole string

const (
	MeetingRoleHost        MeetingRole = "host"
	MeetingRoleModerator   MeetingRole = "moderator"
	MeetingRoleParticipant MeetingRole = "participant"
)

// ParticipantStatus tracks a participant's roster state.
type ParticipantStatus string

const (
	ParticipantInvited ParticipantStatus = "invited"
	ParticipantJoined  ParticipantStatus = "joined"
	ParticipantLeft    ParticipantStatus = "left"
	ParticipantRemoved ParticipantStatus = "removed"
)

// MeetingSettings holds per-meeting toggles.
type MeetingSettings struct {
	WaitingRoom bool `json:"waiting_room"`
	MuteOnEntry bool `json:"mute_on_entry"`
	EnableChat  bool `json:"enable_chat"`
}

// Meeting represents a scheduled group meeting.
type Meeting struct {
	ID              uuid.UUID       `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	HostID          uuid.UUID       `json:"host_id"`
	ScheduledFor    time.Time       `json:"scheduled_for"`
	DurationMinutes int             `json:"duration_minutes"`
	Passcode        string          `json:"-"`
	Settings        MeetingSettings `json:"settings"`
	Status          MeetingStatus   `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// MeetingParticipant is one user's attendance record in one meeting.
// JoinedAt/LeftAt are set by the live session layer; DurationSeconds is
// computed once when the record is finalized and never altered after that.
type MeetingParticipant struct {
	MeetingID       uuid.UUID         `json:"meeting_id"`
	UserID          uuid.UUID         `json:"user_id"`
	Role            MeetingRole       `json:"role"`
	Status          ParticipantStatus `json:"status"`
	JoinedAt        *time.Time        `json:"joined_at,omitempty"`
	LeftAt          *time.Time        `json:"left_at,omitempty"`
	DurationSeconds *int64            `json:"duration_seconds,omitempty"`
	IsMuted         bool              `json:"is_muted"`
	IsVideoOn       bool              `json:"is_video_on"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// EngagementMetrics is a persisted per-meeting analytics snapshot, written by
// the attendance worker when the meeting completes.
type EngagementMetrics struct {
	ID                uuid.UUID `json:"id"`
	MeetingID         uuid.UUID `json:"meeting_id"`
	TotalParticipants int       `json:"total_participants"`
	TotalWatchSeconds int64     `json:"total_watch_seconds"`
	AvgWatchSeconds   int64     `json:"avg_watch_seconds"`
	RecordedAt        time.Time `json:"recorded_at"`
	CreatedAt         time.Time `json:"created_at"`
}
