package sessions

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/livejam/backend/internal/gifts"
	"github.com/livejam/backend/internal/middleware"
	"github.com/livejam/backend/internal/models"
	"github.com/livejam/backend/internal/requests"
	"github.com/livejam/backend/internal/tiktok"
	"github.com/livejam/backend/pkg/response"
)

// Listener is the connection manager surface the handlers drive.
type Listener interface {
	StartListening(ctx context.Context, session *models.LiveSession) (string, error)
	StopListening(sessionID uuid.UUID) error
}

// AccountChecker reports whether the user has a linked Spotify account.
type AccountChecker interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.SpotifyAccount, error)
}

// UserStore resolves the user profile for the TikTok username fallback.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// StartRequest is the body for POST /session.
type StartRequest struct {
	TikTokUsername string `json:"tiktok_username"`
}

// Handler handles live-session HTTP endpoints.
type Handler struct {
	repo     *Repository
	requests *requests.Repository
	gifts    *gifts.Repository
	listener Listener
	accounts AccountChecker
	users    UserStore
	logger   *zap.Logger
}

// NewHandler creates a session handler.
func NewHandler(repo *Repository, reqRepo *requests.Repository, giftRepo *gifts.Repository,
	listener Listener, accounts AccountChecker, users UserStore, logger *zap.Logger) *Handler {
	return &Handler{
		repo:     repo,
		requests: reqRepo,
		gifts:    giftRepo,
		listener: listener,
		accounts: accounts,
		users:    users,
		logger:   logger,
	}
}

// Start handles POST /session: validates preconditions, creates the session
// row, then attaches the live listener.
func (h *Handler) Start(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	ctx := c.Request.Context()

	// Body is optional; an empty one falls back to the profile username.
	var req StartRequest
	_ = c.ShouldBindJSON(&req)

	active, err := h.repo.ActiveForUser(ctx, userID)
	if err != nil {
		response.Internal(c, "failed to check active session")
		return
	}
	if active != nil {
		response.Conflict(c, "a session is already active")
		return
	}

	account, err := h.accounts.Get(ctx, userID)
	if err != nil {
		response.Internal(c, "failed to check spotify account")
		return
	}
	if account == nil {
		response.BadRequest(c, "spotify account not connected")
		return
	}

	username := req.TikTokUsername
	if username == "" {
		user, err := h.users.GetByID(ctx, userID)
		if err != nil || user == nil {
			response.Internal(c, "failed to load profile")
			return
		}
		username = user.TikTokUsername
	}
	if username == "" {
		response.BadRequest(c, "no tiktok username configured")
		return
	}

	session, err := h.repo.Create(ctx, userID, username)
	if err != nil {
		response.Internal(c, "failed to create session")
		return
	}

	roomID, err := h.listener.StartListening(ctx, session)
	if err != nil {
		h.logger.Warn("live connection failed", zap.Error(err),
			zap.String("session_id", session.ID.String()),
			zap.String("tiktok_username", username))
		if endErr := h.repo.End(ctx, session.ID); endErr != nil {
			h.logger.Error("end unconnectable session", zap.Error(endErr),
				zap.String("session_id", session.ID.String()))
		}
		response.ServiceUnavailable(c, "could not connect to the live stream")
		return
	}

	response.Created(c, gin.H{"session": session, "room_id": roomID})
}

// Stop handles DELETE /session. When the process has no listener for the
// row (e.g. it died and recovery failed) the row is still closed out.
func (h *Handler) Stop(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	ctx := c.Request.Context()

	active, err := h.repo.ActiveForUser(ctx, userID)
	if err != nil {
		response.Internal(c, "failed to load active session")
		return
	}
	if active == nil {
		response.NotFound(c, "no active session")
		return
	}

	if err := h.listener.StopListening(active.ID); err != nil {
		if !errors.Is(err, tiktok.ErrNotListening) {
			response.Internal(c, "failed to stop session")
			return
		}
		if err := h.repo.End(ctx, active.ID); err != nil {
			response.Internal(c, "failed to end session")
			return
		}
	}

	response.OK(c, gin.H{"session_id": active.ID, "status": models.SessionEnded})
}

// Get handles GET /session.
func (h *Handler) Get(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	active, err := h.repo.ActiveForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load active session")
		return
	}
	if active == nil {
		response.NotFound(c, "no active session")
		return
	}
	response.OK(c, active)
}

// ListRequests handles GET /requests for the active session, newest first,
// paginated by a `before` timestamp cursor.
func (h *Handler) ListRequests(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	ctx := c.Request.Context()

	active, err := h.repo.ActiveForUser(ctx, userID)
	if err != nil {
		response.Internal(c, "failed to load active session")
		return
	}
	if active == nil {
		response.NotFound(c, "no active session")
		return
	}

	var before *time.Time
	if s := c.Query("before"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			response.BadRequest(c, "invalid before cursor")
			return
		}
		before = &t
	}
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 200 {
			response.BadRequest(c, "invalid limit")
			return
		}
		limit = n
	}

	list, err := h.requests.ListBySession(ctx, active.ID, before, limit)
	if err != nil {
		response.Internal(c, "failed to list requests")
		return
	}
	response.OK(c, list)
}

// ListGifts handles GET /gifts for the active session.
func (h *Handler) ListGifts(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	ctx := c.Request.Context()

	active, err := h.repo.ActiveForUser(ctx, userID)
	if err != nil {
		response.Internal(c, "failed to load active session")
		return
	}
	if active == nil {
		response.NotFound(c, "no active session")
		return
	}

	list, err := h.gifts.ListBySession(ctx, active.ID)
	if err != nil {
		response.Internal(c, "failed to list gifts")
		return
	}
	response.OK(c, list)
}
