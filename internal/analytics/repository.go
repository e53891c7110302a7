package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-meet/backend/internal/models"
)

// ParticipantRow is one row for GET /meetings/:id/analytics.
type ParticipantRow struct {
	ParticipantID   uuid.UUID          `json:"participant_id"`
	Name            string             `json:"name"`
	JoinedAt        *time.Time         `json:"joined_at,omitempty"`
	LeftAt          *time.Time         `json:"left_at,omitempty"`
	DurationSeconds *int64             `json:"duration_seconds,omitempty"`
	IsMuted         bool               `json:"is_muted"`
	IsVideoOn       bool               `json:"is_video_on"`
	Role            models.MeetingRole `json:"role"`
}

// Repository reads attendance rows for analytics queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an analytics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByMeeting returns per-participant attendance for one meeting, joined
// with user names, ordered by join time.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]ParticipantRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT mp.user_id, u.full_name, mp.joined_at, mp.left_at, mp.duration_seconds, mp.is_muted, mp.is_video_on, mp.role
		 FROM meeting_participants mp
		 INNER JOIN users u ON u.id = mp.user_id
		 WHERE mp.meeting_id = $1
		 ORDER BY mp.joined_at ASC NULLS LAST, mp.user_id ASC`,
		meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []ParticipantRow
	for rows.Next() {
		var row ParticipantRow
		if err := rows.Scan(&row.ParticipantID, &row.Name, &row.JoinedAt, &row.LeftAt, &row.DurationSeconds, &row.IsMuted, &row.IsVideoOn, &row.Role); err != nil {
			return nil, err
		}
		list = append(list, row)
	}
	return list, rows.Err()
}

// ListUserSessions returns all of a user's attendance rows across meetings,
// with the owning meeting's status and scheduled length for the
// completed-meeting duration fallback. Rows with no join time are skipped.
func (r *Repository) ListUserSessions(ctx context.Context, userID uuid.UUID) ([]SessionRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT mp.meeting_id, mp.joined_at, mp.left_at, mp.duration_seconds, m.duration_minutes, m.status
		 FROM meeting_participants mp
		 INNER JOIN meetings m ON m.id = mp.meeting_id
		 WHERE mp.user_id = $1 AND mp.joined_at IS NOT NULL
		 ORDER BY mp.joined_at ASC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var minutes int
		var status models.MeetingStatus
		if err := rows.Scan(&rec.MeetingID, &rec.JoinedAt, &rec.LeftAt, &rec.DurationSeconds, &minutes, &status); err != nil {
			return nil, err
		}
		rec.ScheduledSeconds = int64(minutes) * 60
		rec.MeetingCompleted = status == models.MeetingCompleted
		list = append(list, rec)
	}
	return list, rows.Err()
}

// GetMetricsSnapshot returns the persisted per-meeting engagement snapshot
// written by the attendance worker, or nil if none has been recorded yet.
func (r *Repository) GetMetricsSnapshot(ctx context.Context, meetingID uuid.UUID) (*models.EngagementMetrics, error) {
	const q = `SELECT id, meeting_id, total_participants, total_watch_seconds, avg_watch_seconds, recorded_at, created_at
		FROM engagement_metrics WHERE meeting_id = $1 ORDER BY recorded_at DESC LIMIT 1`
	var m models.EngagementMetrics
	err := r.pool.QueryRow(ctx, q, meetingID).Scan(
		&m.ID, &m.MeetingID, &m.TotalParticipants, &m.TotalWatchSeconds, &m.AvgWatchSeconds, &m.RecordedAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveMetricsSnapshot inserts a per-meeting engagement snapshot.
func (r *Repository) SaveMetricsSnapshot(ctx context.Context, meetingID uuid.UUID, totalParticipants int, totalWatchSeconds int64, recordedAt time.Time) error {
	var avg int64
	if totalParticipants > 0 {
		avg = totalWatchSeconds / int64(totalParticipants)
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO engagement_metrics (meeting_id, total_participants, total_watch_seconds, avg_watch_seconds, recorded_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		meetingID, totalParticipants, totalWatchSeconds, avg, recordedAt)
	return err
}
