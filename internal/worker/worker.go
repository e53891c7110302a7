package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lumen-meet/backend/internal/analytics"
	"github.com/lumen-meet/backend/internal/meetings"
	"github.com/lumen-meet/backend/pkg/queue"
)

// AttendanceProcessor consumes attendance jobs enqueued when a meeting
// completes: it closes out any roster rows that never saw a leave event using
// the meeting's scheduled length, then writes the per-meeting engagement
// snapshot.
type AttendanceProcessor struct {
	meetingRepo   *meetings.Repository
	analyticsRepo *analytics.Repository
	queue         *queue.Queue
	logger        *zap.Logger
}

// NewAttendanceProcessor creates an attendance finalization processor.
func NewAttendanceProcessor(meetingRepo *meetings.Repository, analyticsRepo *analytics.Repository, q *queue.Queue, logger *zap.Logger) *AttendanceProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceProcessor{meetingRepo: meetingRepo, analyticsRepo: analyticsRepo, queue: q, logger: logger}
}

// Process executes one attendance finalization job.
func (p *AttendanceProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeAttendance {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.AttendancePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	meeting, err := p.meetingRepo.GetByID(ctx, payload.MeetingID)
	if err != nil {
		return fmt.Errorf("load meeting %s: %w", payload.MeetingID, err)
	}

	// Participants that joined but never produced a leave event fall back to
	// the scheduled meeting length.
	fallback := int64(meeting.DurationMinutes) * 60
	open, err := p.meetingRepo.ListOpenParticipants(ctx, payload.MeetingID)
	if err != nil {
		return fmt.Errorf("list open participants: %w", err)
	}
	for _, mp := range open {
		if err := p.meetingRepo.MarkAttendance(ctx, payload.MeetingID, mp.UserID, fallback); err != nil {
			return fmt.Errorf("mark attendance for %s: %w", mp.UserID, err)
		}
	}

	all, err := p.meetingRepo.ListParticipants(ctx, payload.MeetingID)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}
	var attended int
	var totalWatch int64
	for _, mp := range all {
		if mp.JoinedAt == nil {
			continue
		}
		attended++
		if mp.DurationSeconds != nil {
			totalWatch += *mp.DurationSeconds
		}
	}

	if err := p.analyticsRepo.SaveMetricsSnapshot(ctx, payload.MeetingID, attended, totalWatch, time.Now()); err != nil {
		return fmt.Errorf("save metrics snapshot: %w", err)
	}

	p.logger.Info("attendance finalized",
		zap.String("meeting_id", payload.MeetingID.String()),
		zap.Int("open_closed", len(open)),
		zap.Int("attended", attended),
		zap.Int64("total_watch_seconds", totalWatch))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *AttendanceProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("attendance worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
