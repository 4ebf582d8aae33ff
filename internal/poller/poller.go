// Package poller closes the loop between "this request matched a track" and
// "that track was actually played". The pipeline has no control over the
// host's Spotify playback, so a per-session background loop cross-references
// the recently-played feed against pending matched requests.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/livejam/backend/internal/models"
	"github.com/livejam/backend/internal/spotify"
)

// DefaultInterval is how often a session polls recently-played.
const DefaultInterval = 30 * time.Second

// Ledger is the slice of the request ledger the poller needs.
type Ledger interface {
	PendingMatched(ctx context.Context, sessionID uuid.UUID) ([]models.SongRequest, error)
	UpdatePlayStatus(ctx context.Context, requestID uuid.UUID, status models.PlayStatus) error
}

// Catalog resolves credentials and fetches the recently-played feed.
type Catalog interface {
	AccessToken(ctx context.Context, userID uuid.UUID) (string, error)
	RecentlyPlayed(ctx context.Context, token string, afterMs int64) (*spotify.RecentlyPlayed, error)
}

// Poller is one session's play-confirmation loop. Ticks are driven by the
// completion of the previous tick, so a slow poll never overlaps itself.
type Poller struct {
	sessionID uuid.UUID
	userID    uuid.UUID
	ledger    Ledger
	catalog   Catalog
	onAdvisory func(message string)
	logger    *zap.Logger
	interval  time.Duration

	// afterMs is the recently-played cursor in unix milliseconds. It only
	// moves forward.
	afterMs int64

	done    chan struct{}
	wg      sync.WaitGroup
	started atomic.Bool
	stopped atomic.Bool

	now func() time.Time
}

// New creates a poller for a session. onAdvisory is invoked with a
// user-facing message when play confirmation is paused by a missing
// credential.
func New(sessionID, userID uuid.UUID, ledger Ledger, catalog Catalog, onAdvisory func(message string), logger *zap.Logger) *Poller {
	return &Poller{
		sessionID:  sessionID,
		userID:     userID,
		ledger:     ledger,
		catalog:    catalog,
		onAdvisory: onAdvisory,
		logger:     logger,
		interval:   DefaultInterval,
		done:       make(chan struct{}),
		now:        time.Now,
	}
}

// Start begins polling. The cursor starts at the current time so plays from
// before the session never get confirmed. Calling Start twice is a no-op.
func (p *Poller) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.afterMs = p.now().UnixMilli()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		timer := time.NewTimer(p.interval)
		defer timer.Stop()
		for {
			select {
			case <-p.done:
				return
			case <-timer.C:
				p.poll(context.Background())
				timer.Reset(p.interval)
			}
		}
	}()

	p.logger.Info("play confirmation poller started", zap.String("session_id", p.sessionID.String()))
}

// StopAndFinalize stops the timer, runs one final poll to capture
// last-minute plays, then marks every still-pending matched request as
// not_played. Idempotent: only the first call has effect. Must complete
// before the session's raw-event flush and teardown proceed.
func (p *Poller) StopAndFinalize(ctx context.Context) {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}
	close(p.done)
	p.wg.Wait()

	p.poll(ctx)
	p.finalize(ctx)

	p.logger.Info("play confirmation poller stopped and finalized",
		zap.String("session_id", p.sessionID.String()))
}

// poll runs one confirmation cycle. All failures are non-fatal: a missing
// credential pauses this tick with an advisory, a catalog error skips it.
func (p *Poller) poll(ctx context.Context) {
	token, err := p.catalog.AccessToken(ctx, p.userID)
	if err != nil || token == "" {
		if p.onAdvisory != nil {
			p.onAdvisory("Spotify token unavailable, play confirmation paused")
		}
		p.logger.Warn("spotify token unavailable during poll",
			zap.String("session_id", p.sessionID.String()), zap.Error(err))
		return
	}

	recent, err := p.catalog.RecentlyPlayed(ctx, token, p.afterMs)
	if err != nil {
		p.logger.Warn("recently-played poll failed",
			zap.String("session_id", p.sessionID.String()), zap.Error(err))
		return
	}
	if recent == nil {
		// Feature unavailable for this account; already logged by the client.
		return
	}

	if recent.CursorAfter > p.afterMs {
		p.afterMs = recent.CursorAfter
	}
	if len(recent.Items) == 0 {
		return
	}

	pending, err := p.ledger.PendingMatched(ctx, p.sessionID)
	if err != nil {
		p.logger.Error("load pending requests", zap.Error(err),
			zap.String("session_id", p.sessionID.String()))
		return
	}
	if len(pending) == 0 {
		return
	}

	played := make(map[string]bool, len(recent.Items))
	for _, item := range recent.Items {
		played[item.TrackID] = true
	}

	for _, req := range pending {
		if req.SpotifyTrackID == nil || !played[*req.SpotifyTrackID] {
			continue
		}
		if err := p.ledger.UpdatePlayStatus(ctx, req.ID, models.PlayConfirmed); err != nil {
			p.logger.Error("confirm play", zap.Error(err), zap.String("request_id", req.ID.String()))
			continue
		}
		p.logger.Info("play confirmed",
			zap.String("session_id", p.sessionID.String()),
			zap.String("track_id", *req.SpotifyTrackID))
	}
}

// finalize marks every remaining matched+pending request as not_played so
// no request leaves the session in an ambiguous play state.
func (p *Poller) finalize(ctx context.Context) {
	pending, err := p.ledger.PendingMatched(ctx, p.sessionID)
	if err != nil {
		p.logger.Error("load pending requests for finalize", zap.Error(err),
			zap.String("session_id", p.sessionID.String()))
		return
	}
	for _, req := range pending {
		if err := p.ledger.UpdatePlayStatus(ctx, req.ID, models.PlayNotPlayed); err != nil {
			p.logger.Error("finalize request", zap.Error(err), zap.String("request_id", req.ID.String()))
		}
	}
	if len(pending) > 0 {
		p.logger.Info("finalized remaining requests as not_played",
			zap.String("session_id", p.sessionID.String()),
			zap.Int("count", len(pending)))
	}
}
