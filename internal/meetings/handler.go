package meetings

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-meet/backend/internal/middleware"
	"github.com/lumen-meet/backend/internal/models"
	"github.com/lumen-meet/backend/pkg/queue"
	"github.com/lumen-meet/backend/pkg/response"
)

// Handler handles meeting CRUD and lifecycle HTTP endpoints.
type Handler struct {
	repo   *Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewHandler creates a meeting handler.
func NewHandler(repo *Repository, q *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, queue: q, logger: logger}
}

// CreateRequest is the body for POST /meetings.
type CreateRequest struct {
	Title           string `json:"title" binding:"required"`
	Description     string `json:"description"`
	ScheduledFor    string `json:"scheduled_for" binding:"required"` // RFC3339
	DurationMinutes int    `json:"duration_minutes" binding:"required,min=1"`
	Passcode        string `json:"passcode" binding:"required"`
	WaitingRoom     *bool  `json:"waiting_room"`
	MuteOnEntry     *bool  `json:"mute_on_entry"`
	EnableChat      *bool  `json:"enable_chat"`
}

// Create handles POST /meetings. The creator becomes the meeting host.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	scheduledFor, err := time.Parse(time.RFC3339, req.ScheduledFor)
	if err != nil {
		response.BadRequest(c, "invalid scheduled_for, want RFC3339")
		return
	}
	hostID := currentUserID(c)

	m := &models.Meeting{
		Title:           req.Title,
		Description:     req.Description,
		HostID:          hostID,
		ScheduledFor:    scheduledFor,
		DurationMinutes: req.DurationMinutes,
		Passcode:        req.Passcode,
		Settings: models.MeetingSettings{
			WaitingRoom: boolOr(req.WaitingRoom, true),
			MuteOnEntry: boolOr(req.MuteOnEntry, false),
			EnableChat:  boolOr(req.EnableChat, true),
		},
	}
	if err := h.repo.Create(c.Request.Context(), m); err != nil {
		response.Internal(c, "failed to create meeting")
		return
	}
	response.Created(c, m)
}

// List handles GET /meetings: meetings the user hosts or attends.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.ListForUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.Internal(c, "failed to list meetings")
		return
	}
	response.OK(c, gin.H{"meetings": list})
}

// GetByID handles GET /meetings/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	m, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "meeting not found")
			return
		}
		response.Internal(c, "failed to load meeting")
		return
	}
	response.OK(c, m)
}

// UpdateRequest is the body for PATCH /meetings/:id.
type UpdateRequest struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	ScheduledFor    *string `json:"scheduled_for"`
	DurationMinutes *int    `json:"duration_minutes"`
}

// Update handles PATCH /meetings/:id. Host only.
func (h *Handler) Update(c *gin.Context) {
	m, ok := h.requireHost(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	var scheduledFor *time.Time
	if req.ScheduledFor != nil {
		t, err := time.Parse(time.RFC3339, *req.ScheduledFor)
		if err != nil {
			response.BadRequest(c, "invalid scheduled_for, want RFC3339")
			return
		}
		scheduledFor = &t
	}
	title := req.Title
	if title == "" {
		title = m.Title
	}
	description := req.Description
	if description == "" {
		description = m.Description
	}
	if err := h.repo.Update(c.Request.Context(), m.ID, title, description, scheduledFor, req.DurationMinutes); err != nil {
		response.Internal(c, "failed to update meeting")
		return
	}
	response.OK(c, gin.H{"updated": true})
}

// Delete handles DELETE /meetings/:id. Host only.
func (h *Handler) Delete(c *gin.Context) {
	m, ok := h.requireHost(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), m.ID); err != nil {
		response.Internal(c, "failed to delete meeting")
		return
	}
	response.NoContent(c)
}

// StatusRequest is the body for PUT /meetings/:id/status.
type StatusRequest struct {
	Status models.MeetingStatus `json:"status" binding:"required"`
}

// UpdateStatus handles PUT /meetings/:id/status. Host only. Transitioning to
// completed enqueues the attendance job that applies the scheduled-duration
// fallback and snapshots engagement metrics.
func (h *Handler) UpdateStatus(c *gin.Context) {
	m, ok := h.requireHost(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	switch req.Status {
	case models.MeetingScheduled, models.MeetingInProgress, models.MeetingCompleted, models.MeetingCancelled:
	default:
		response.BadRequest(c, "invalid status")
		return
	}
	if err := h.repo.UpdateStatus(c.Request.Context(), m.ID, req.Status); err != nil {
		response.Internal(c, "failed to update status")
		return
	}
	if req.Status == models.MeetingCompleted && h.queue != nil {
		if err := h.queue.EnqueueAttendance(c.Request.Context(), queue.AttendancePayload{MeetingID: m.ID}); err != nil {
			h.logger.Error("enqueue attendance job failed", zap.String("meeting_id", m.ID.String()), zap.Error(err))
		}
	}
	response.OK(c, gin.H{"status": req.Status})
}

// AddParticipantRequest is the body for POST /meetings/:id/participants.
type AddParticipantRequest struct {
	UserID uuid.UUID          `json:"user_id" binding:"required"`
	Role   models.MeetingRole `json:"role"`
}

// AddParticipant handles POST /meetings/:id/participants. Host only.
func (h *Handler) AddParticipant(c *gin.Context) {
	m, ok := h.requireHost(c)
	if !ok {
		return
	}
	var req AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	role := req.Role
	switch role {
	case "":
		role = models.MeetingRoleParticipant
	case models.MeetingRoleModerator, models.MeetingRoleParticipant:
	default:
		response.BadRequest(c, "invalid role")
		return
	}
	if err := h.repo.AddParticipant(c.Request.Context(), m.ID, req.UserID, role); err != nil {
		response.Internal(c, "failed to add participant")
		return
	}
	response.OK(c, gin.H{"added": true})
}

// ListParticipants handles GET /meetings/:id/participants.
func (h *Handler) ListParticipants(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	list, err := h.repo.ListParticipants(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to list participants")
		return
	}
	response.OK(c, gin.H{"participants": list})
}

// requireHost loads the meeting from the :id param and verifies the current
// user is its host.
func (h *Handler) requireHost(c *gin.Context) (*models.Meeting, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return nil, false
	}
	m, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "meeting not found")
			return nil, false
		}
		response.Internal(c, "failed to load meeting")
		return nil, false
	}
	if m.HostID != currentUserID(c) {
		response.Forbidden(c, "only the host can do this")
		return nil, false
	}
	return m, true
}

func currentUserID(c *gin.Context) uuid.UUID {
	v, _ := c.Get(middleware.ContextUserID)
	id, _ := v.(uuid.UUID)
	return id
}

func boolOr(v *bool, fallback bool) bool {
	if v != nil {
		return *v
	}
	return fallback
}
