package playqueue

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/livejam/backend/internal/middleware"
	"github.com/livejam/backend/internal/models"
	"github.com/livejam/backend/internal/requests"
	"github.com/livejam/backend/internal/sessions"
	"github.com/livejam/backend/pkg/response"
)

// Catalog pushes a track onto the host's Spotify playback queue.
type Catalog interface {
	AccessToken(ctx context.Context, userID uuid.UUID) (string, error)
	AddToQueue(ctx context.Context, token, trackURI string) error
}

// AddRequest is the body for POST /queue.
type AddRequest struct {
	RequestID string `json:"request_id" binding:"required,uuid"`
}

// Handler handles playback-queue HTTP endpoints.
type Handler struct {
	repo     *Repository
	requests *requests.Repository
	sessions *sessions.Repository
	catalog  Catalog
	logger   *zap.Logger
}

// NewHandler creates a playback-queue handler.
func NewHandler(repo *Repository, reqRepo *requests.Repository, sessionRepo *sessions.Repository,
	catalog Catalog, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, requests: reqRepo, sessions: sessionRepo, catalog: catalog, logger: logger}
}

func (h *Handler) activeSession(c *gin.Context) (*models.LiveSession, bool) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	active, err := h.sessions.ActiveForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load active session")
		return nil, false
	}
	if active == nil {
		response.NotFound(c, "no active session")
		return nil, false
	}
	return active, true
}

// List handles GET /queue.
func (h *Handler) List(c *gin.Context) {
	active, ok := h.activeSession(c)
	if !ok {
		return
	}
	list, err := h.repo.ListPending(c.Request.Context(), active.ID)
	if err != nil {
		response.Internal(c, "failed to list queue")
		return
	}
	response.OK(c, list)
}

// Add handles POST /queue: promotes a matched request into the queue and
// best-effort pushes it onto the host's Spotify playback queue.
func (h *Handler) Add(c *gin.Context) {
	var req AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	active, ok := h.activeSession(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	requestID, _ := uuid.Parse(req.RequestID)
	songReq, err := h.requests.GetByID(ctx, requestID)
	if err != nil {
		response.Internal(c, "failed to load request")
		return
	}
	if songReq == nil || songReq.LiveSessionID != active.ID {
		response.NotFound(c, "request not found")
		return
	}
	if songReq.SearchStatus != models.SearchMatched || songReq.SpotifyTrackID == nil {
		response.BadRequest(c, "request has no matched track")
		return
	}

	viewer := songReq.ViewerUsername
	item, err := h.repo.Add(ctx, active.ID, &viewer, *songReq.SpotifyTrackID,
		derefOr(songReq.TrackName), derefOr(songReq.TrackArtist))
	if err != nil {
		response.Internal(c, "failed to add to queue")
		return
	}

	// Spotify push is best-effort; the item is queued locally either way.
	if songReq.SpotifyURI != nil {
		if token, err := h.catalog.AccessToken(ctx, active.UserID); err == nil && token != "" {
			if err := h.catalog.AddToQueue(ctx, token, *songReq.SpotifyURI); err != nil {
				h.logger.Warn("spotify queue push failed", zap.Error(err),
					zap.String("request_id", songReq.ID.String()))
			}
		}
	}

	response.Created(c, item)
}

// Skip handles DELETE /queue/:id.
func (h *Handler) Skip(c *gin.Context) {
	active, ok := h.activeSession(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid queue item id")
		return
	}
	ctx := c.Request.Context()

	item, err := h.repo.GetByID(ctx, id)
	if err != nil {
		response.Internal(c, "failed to load queue item")
		return
	}
	if item == nil || item.LiveSessionID != active.ID {
		response.NotFound(c, "queue item not found")
		return
	}
	if err := h.repo.UpdateStatus(ctx, id, models.QueueSkipped); err != nil {
		response.Internal(c, "failed to skip queue item")
		return
	}
	response.OK(c, gin.H{"id": id, "status": models.QueueSkipped})
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
