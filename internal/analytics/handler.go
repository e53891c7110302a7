package analytics

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lumen-meet/backend/internal/meetings"
	"github.com/lumen-meet/backend/internal/middleware"
	"github.com/lumen-meet/backend/internal/models"
	"github.com/lumen-meet/backend/pkg/response"
)

// Handler handles the analytics query surface.
type Handler struct {
	repo        *Repository
	meetingRepo *meetings.Repository
	logger      *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(repo *Repository, meetingRepo *meetings.Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, meetingRepo: meetingRepo, logger: logger}
}

// GetByMeeting handles GET /meetings/:id/analytics. Only the host or a
// moderator of the meeting may read attendance rows.
func (h *Handler) GetByMeeting(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	ctx := c.Request.Context()

	if _, err := h.meetingRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, meetings.ErrNotFound) {
			response.NotFound(c, "meeting not found")
			return
		}
		response.Internal(c, "failed to load meeting")
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	role, err := h.meetingRepo.RoleOf(ctx, id, userID)
	if err != nil {
		response.Internal(c, "failed to resolve role")
		return
	}
	if role != models.MeetingRoleHost && role != models.MeetingRoleModerator {
		response.Forbidden(c, "only the host or a moderator can view analytics")
		return
	}

	rows, err := h.repo.ListByMeeting(ctx, id)
	if err != nil {
		h.logger.Error("list meeting analytics failed", zap.String("meeting_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}

	out := gin.H{"participants": rows}
	if snap, err := h.repo.GetMetricsSnapshot(ctx, id); err == nil {
		out["summary"] = snap
	} else if !errors.Is(err, pgx.ErrNoRows) {
		h.logger.Warn("load metrics snapshot failed", zap.String("meeting_id", id.String()), zap.Error(err))
	}
	response.OK(c, out)
}

// GetUserEngagement handles GET /users/me/engagement. The summary is computed
// on demand from the caller's finalized sessions.
func (h *Handler) GetUserEngagement(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}

	records, err := h.repo.ListUserSessions(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list user sessions failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to load engagement stats")
		return
	}
	response.OK(c, ComputeEngagement(records))
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, ok := c.Get(middleware.ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := raw.(uuid.UUID)
	return id, ok && id != uuid.Nil
}
