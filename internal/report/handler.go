package report

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/livejam/backend/internal/middleware"
	"github.com/livejam/backend/internal/sessions"
	"github.com/livejam/backend/pkg/response"
)

// Handler handles GET /report.
type Handler struct {
	repo     *Repository
	sessions *sessions.Repository
}

// NewHandler creates a report handler.
func NewHandler(repo *Repository, sessionRepo *sessions.Repository) *Handler {
	return &Handler{repo: repo, sessions: sessionRepo}
}

// Get builds the report for the active session, or for an earlier one given
// a `session_id` query parameter.
func (h *Handler) Get(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	ctx := c.Request.Context()

	var sessionID uuid.UUID
	if s := c.Query("session_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid session_id")
			return
		}
		session, err := h.sessions.GetByID(ctx, id)
		if err != nil {
			response.Internal(c, "failed to load session")
			return
		}
		if session == nil || session.UserID != userID {
			response.NotFound(c, "session not found")
			return
		}
		sessionID = session.ID
	} else {
		active, err := h.sessions.ActiveForUser(ctx, userID)
		if err != nil {
			response.Internal(c, "failed to load active session")
			return
		}
		if active == nil {
			response.NotFound(c, "no active session")
			return
		}
		sessionID = active.ID
	}

	report, err := h.repo.Build(ctx, sessionID)
	if err != nil {
		response.Internal(c, "failed to build report")
		return
	}
	response.OK(c, report)
}
