package meetings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-meet/backend/internal/models"
)

// ErrNotFound is returned when a meeting does not exist.
var ErrNotFound = errors.New("meeting not found")

// Repository handles meeting and participant-roster persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a meeting repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new meeting.
func (r *Repository) Create(ctx context.Context, m *models.Meeting) error {
	const q = `INSERT INTO meetings (id, title, description, host_id, scheduled_for, duration_minutes, passcode, waiting_room, mute_on_entry, enable_chat, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, 'scheduled')
		RETURNING id, status, created_at, updated_at`
	return r.pool.QueryRow(ctx, q,
		m.Title, m.Description, m.HostID, m.ScheduledFor, m.DurationMinutes, m.Passcode,
		m.Settings.WaitingRoom, m.Settings.MuteOnEntry, m.Settings.EnableChat).
		Scan(&m.ID, &m.Status, &m.CreatedAt, &m.UpdatedAt)
}

const meetingCols = `id, title, description, host_id, scheduled_for, duration_minutes, passcode, waiting_room, mute_on_entry, enable_chat, status, created_at, updated_at`

func scanMeeting(row pgx.Row) (*models.Meeting, error) {
	var m models.Meeting
	err := row.Scan(&m.ID, &m.Title, &m.Description, &m.HostID, &m.ScheduledFor, &m.DurationMinutes, &m.Passcode,
		&m.Settings.WaitingRoom, &m.Settings.MuteOnEntry, &m.Settings.EnableChat, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// GetByID returns a meeting by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	return scanMeeting(r.pool.QueryRow(ctx, `SELECT `+meetingCols+` FROM meetings WHERE id = $1`, id))
}

// ListForUser returns meetings the user hosts or is on the roster of.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Meeting, error) {
	const q = `SELECT DISTINCT m.id, m.title, m.description, m.host_id, m.scheduled_for, m.duration_minutes, m.passcode, m.waiting_room, m.mute_on_entry, m.enable_chat, m.status, m.created_at, m.updated_at
		FROM meetings m
		LEFT JOIN meeting_participants mp ON mp.meeting_id = m.id
		WHERE m.host_id = $1 OR mp.user_id = $1
		ORDER BY m.scheduled_for DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

// Update updates meeting metadata fields.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, title, description string, scheduledFor *time.Time, durationMinutes *int) error {
	const q = `UPDATE meetings SET title = $1, description = $2,
		scheduled_for = COALESCE($3, scheduled_for),
		duration_minutes = COALESCE($4, duration_minutes),
		updated_at = NOW() WHERE id = $5`
	_, err := r.pool.Exec(ctx, q, title, description, scheduledFor, durationMinutes, id)
	return err
}

// Delete removes a meeting by ID.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, id)
	return err
}

// UpdateStatus transitions a meeting's lifecycle state.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.MeetingStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE meetings SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddParticipant puts a user on the meeting roster as invited.
func (r *Repository) AddParticipant(ctx context.Context, meetingID, userID uuid.UUID, role models.MeetingRole) error {
	const q = `INSERT INTO meeting_participants (meeting_id, user_id, role, status)
		VALUES ($1, $2, $3, 'invited')
		ON CONFLICT (meeting_id, user_id) DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, meetingID, userID, role)
	return err
}

// HostIDOf returns the meeting's host identity.
func (r *Repository) HostIDOf(ctx context.Context, meetingID uuid.UUID) (uuid.UUID, error) {
	var hostID uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT host_id FROM meetings WHERE id = $1`, meetingID).Scan(&hostID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, err
	}
	return hostID, nil
}

// RoleOf resolves a participant's meeting role. The host role is derived from
// the meeting record's host identity; anyone else gets their roster role, or
// plain participant when not on the roster.
func (r *Repository) RoleOf(ctx context.Context, meetingID, userID uuid.UUID) (models.MeetingRole, error) {
	hostID, err := r.HostIDOf(ctx, meetingID)
	if err != nil {
		return "", err
	}
	if hostID == userID {
		return models.MeetingRoleHost, nil
	}
	var role models.MeetingRole
	err = r.pool.QueryRow(ctx,
		`SELECT role FROM meeting_participants WHERE meeting_id = $1 AND user_id = $2`,
		meetingID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.MeetingRoleParticipant, nil
		}
		return "", err
	}
	if role == models.MeetingRoleHost {
		// Roster rows never outrank the meeting record's host identity.
		return models.MeetingRoleModerator, nil
	}
	return role, nil
}

// UpdateParticipantTimes upserts a participant's attendance row. A nil leftAt
// opens the row on join; a non-nil leftAt finalizes it, computing
// duration_seconds = floor(leftAt - joinedAt) once. A row already finalized
// keeps its original left_at and duration.
func (r *Repository) UpdateParticipantTimes(ctx context.Context, meetingID, userID uuid.UUID, role models.MeetingRole, joinedAt time.Time, leftAt *time.Time, muted, videoOn, removed bool) error {
	if leftAt == nil {
		const q = `INSERT INTO meeting_participants (meeting_id, user_id, role, status, joined_at, left_at, duration_seconds, is_muted, is_video_on)
			VALUES ($1, $2, $3, 'joined', $4, NULL, NULL, $5, $6)
			ON CONFLICT (meeting_id, user_id) DO UPDATE
			SET role = EXCLUDED.role, status = 'joined', joined_at = EXCLUDED.joined_at,
				left_at = NULL, duration_seconds = NULL,
				is_muted = EXCLUDED.is_muted, is_video_on = EXCLUDED.is_video_on, updated_at = NOW()`
		_, err := r.pool.Exec(ctx, q, meetingID, userID, role, joinedAt, muted, videoOn)
		return err
	}

	status := models.ParticipantLeft
	if removed {
		status = models.ParticipantRemoved
	}
	const q = `UPDATE meeting_participants
		SET status = $3, left_at = COALESCE(left_at, $4),
			duration_seconds = COALESCE(duration_seconds, GREATEST(0, FLOOR(EXTRACT(EPOCH FROM ($4::timestamptz - $5::timestamptz))))::BIGINT),
			is_muted = $6, is_video_on = $7, updated_at = NOW()
		WHERE meeting_id = $1 AND user_id = $2`
	_, err := r.pool.Exec(ctx, q, meetingID, userID, status, *leftAt, joinedAt, muted, videoOn)
	return err
}

// MarkAttendance records a participant's final duration without an observed
// leave, used by the completion fallback. Rows that already carry a computed
// duration are left untouched.
func (r *Repository) MarkAttendance(ctx context.Context, meetingID, userID uuid.UUID, durationSeconds int64) error {
	const q = `UPDATE meeting_participants
		SET status = 'left', duration_seconds = $3, updated_at = NOW()
		WHERE meeting_id = $1 AND user_id = $2 AND duration_seconds IS NULL`
	_, err := r.pool.Exec(ctx, q, meetingID, userID, durationSeconds)
	return err
}

// ListParticipants returns the full roster for a meeting.
func (r *Repository) ListParticipants(ctx context.Context, meetingID uuid.UUID) ([]models.MeetingParticipant, error) {
	const q = `SELECT meeting_id, user_id, role, status, joined_at, left_at, duration_seconds, is_muted, is_video_on, created_at, updated_at
		FROM meeting_participants WHERE meeting_id = $1 ORDER BY joined_at NULLS LAST, created_at`
	rows, err := r.pool.Query(ctx, q, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.MeetingParticipant
	for rows.Next() {
		var p models.MeetingParticipant
		if err := rows.Scan(&p.MeetingID, &p.UserID, &p.Role, &p.Status, &p.JoinedAt, &p.LeftAt, &p.DurationSeconds, &p.IsMuted, &p.IsVideoOn, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// ListOpenParticipants returns roster rows with a join but no leave, used by
// the completion fallback.
func (r *Repository) ListOpenParticipants(ctx context.Context, meetingID uuid.UUID) ([]models.MeetingParticipant, error) {
	const q = `SELECT meeting_id, user_id, role, status, joined_at, left_at, duration_seconds, is_muted, is_video_on, created_at, updated_at
		FROM meeting_participants WHERE meeting_id = $1 AND joined_at IS NOT NULL AND duration_seconds IS NULL`
	rows, err := r.pool.Query(ctx, q, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.MeetingParticipant
	for rows.Next() {
		var p models.MeetingParticipant
		if err := rows.Scan(&p.MeetingID, &p.UserID, &p.Role, &p.Status, &p.JoinedAt, &p.LeftAt, &p.DurationSeconds, &p.IsMuted, &p.IsVideoOn, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
