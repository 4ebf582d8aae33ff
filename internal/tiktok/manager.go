package tiktok

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/livejam/backend/internal/models"
	"github.com/livejam/backend/internal/parser"
	"github.com/livejam/backend/internal/poller"
	"github.com/livejam/backend/internal/rawevents"
	"github.com/livejam/backend/internal/realtime"
	"github.com/livejam/backend/internal/requests"
	"github.com/livejam/backend/internal/spotify"
)

const (
	// dedupWindow absorbs TikTok redelivering the same chat line.
	dedupWindow = 5 * time.Second
	// teardownTimeout bounds the final poll and flush of one session.
	teardownTimeout = 30 * time.Second
)

var (
	// ErrNotListening is returned when no live connection exists for the
	// session.
	ErrNotListening = errors.New("no active listener for session")
	// ErrAlreadyListening is returned when the session already has a live
	// connection.
	ErrAlreadyListening = errors.New("session already has a listener")
)

// RequestLedger is the song-request persistence the pipeline needs. It is a
// superset of the poller's ledger view.
type RequestLedger interface {
	Create(ctx context.Context, sessionID uuid.UUID, viewer, rawMessage, parsedQuery string) (*models.SongRequest, error)
	FindRecentDuplicate(ctx context.Context, sessionID uuid.UUID, viewer, parsedQuery string, window time.Duration) (*models.SongRequest, error)
	UpdateSearchResult(ctx context.Context, requestID uuid.UUID, result requests.SearchResult) error
	PendingMatched(ctx context.Context, sessionID uuid.UUID) ([]models.SongRequest, error)
	UpdatePlayStatus(ctx context.Context, requestID uuid.UUID, status models.PlayStatus) error
}

// GiftLedger persists completed gift events.
type GiftLedger interface {
	Create(ctx context.Context, sessionID uuid.UUID, viewer string, giftID int, giftName *string, diamondCount *int, repeatCount int) (*models.GiftEvent, error)
}

// SessionStore is the session persistence the manager needs.
type SessionStore interface {
	End(ctx context.Context, sessionID uuid.UUID) error
	AllActive(ctx context.Context) ([]models.LiveSession, error)
}

// Catalog resolves Spotify credentials and performs catalog operations.
type Catalog interface {
	AccessToken(ctx context.Context, userID uuid.UUID) (string, error)
	SearchTrack(ctx context.Context, token, query string) (*spotify.Track, error)
	RecentlyPlayed(ctx context.Context, token string, afterMs int64) (*spotify.RecentlyPlayed, error)
}

// Limiter admits or denies a viewer's request attempt.
type Limiter interface {
	Allow(viewerID string) bool
}

// Emitter pushes events to the session owner's dashboards.
type Emitter interface {
	Emit(userID uuid.UUID, event realtime.Event)
}

// connState is everything attached to one live session. stopOnce makes the
// teardown sequence run exactly once whether triggered by manual stop,
// stream end, or process shutdown.
type connState struct {
	session  *models.LiveSession
	conn     Connection
	buffer   *rawevents.Buffer
	poller   *poller.Poller
	stopOnce sync.Once
}

// Manager owns the live TikTok connections and drives the chat-to-request
// pipeline for each.
type Manager struct {
	connector Connector
	ledger    RequestLedger
	gifts     GiftLedger
	sessions  SessionStore
	catalog   Catalog
	limiter   Limiter
	emitter   Emitter
	rawSink   rawevents.Sink
	logger    *zap.Logger

	mu    sync.Mutex
	conns map[uuid.UUID]*connState
}

// NewManager creates the connection manager.
func NewManager(connector Connector, ledger RequestLedger, gifts GiftLedger, sessions SessionStore,
	catalog Catalog, limiter Limiter, emitter Emitter, rawSink rawevents.Sink, logger *zap.Logger) *Manager {
	return &Manager{
		connector: connector,
		ledger:    ledger,
		gifts:     gifts,
		sessions:  sessions,
		catalog:   catalog,
		limiter:   limiter,
		emitter:   emitter,
		rawSink:   rawSink,
		logger:    logger,
		conns:     make(map[uuid.UUID]*connState),
	}
}

// StartListening connects to the session's TikTok broadcast and starts the
// pipeline: raw-event buffer, play-confirmation poller, event loop. On
// connect failure nothing is registered and nothing needs cleanup.
func (m *Manager) StartListening(ctx context.Context, session *models.LiveSession) (string, error) {
	m.mu.Lock()
	if _, exists := m.conns[session.ID]; exists {
		m.mu.Unlock()
		return "", ErrAlreadyListening
	}
	m.mu.Unlock()

	conn, info, err := m.connector.Connect(ctx, session.TikTokUsername)
	if err != nil {
		return "", fmt.Errorf("connect to @%s: %w", session.TikTokUsername, err)
	}

	st := &connState{
		session: session,
		conn:    conn,
		buffer:  rawevents.NewBuffer(session.ID, m.rawSink, m.logger),
	}
	st.poller = poller.New(session.ID, session.UserID, m.ledger, m.catalog, func(message string) {
		m.emitter.Emit(session.UserID, realtime.SpotifyError(message))
	}, m.logger)

	m.mu.Lock()
	if _, exists := m.conns[session.ID]; exists {
		m.mu.Unlock()
		_ = conn.Disconnect()
		return "", ErrAlreadyListening
	}
	m.conns[session.ID] = st
	m.mu.Unlock()

	st.buffer.Start()
	st.poller.Start()
	go m.eventLoop(st)

	m.emitter.Emit(session.UserID, realtime.SessionConnected(info.RoomID))
	m.logger.Info("listening to live stream",
		zap.String("session_id", session.ID.String()),
		zap.String("tiktok_username", session.TikTokUsername),
		zap.String("room_id", info.RoomID))
	return info.RoomID, nil
}

// StopListening tears down the session's connection. ErrNotListening when
// the session has no live connection (e.g. it already ended on its own).
func (m *Manager) StopListening(sessionID uuid.UUID) error {
	m.mu.Lock()
	st, ok := m.conns[sessionID]
	m.mu.Unlock()
	if !ok {
		return ErrNotListening
	}
	m.teardown(st, "manual", true)
	return nil
}

// StopAll tears every session down sequentially. Dashboards already got the
// shutdown advisory, so no per-session ended event is emitted.
func (m *Manager) StopAll() {
	m.mu.Lock()
	states := make([]*connState, 0, len(m.conns))
	for _, st := range m.conns {
		states = append(states, st)
	}
	m.mu.Unlock()

	for _, st := range states {
		m.teardown(st, "server_shutdown", false)
	}
}

// Recover re-attaches listeners for sessions left active by a previous
// process. One attempt per session; a failure ends the session row so the
// user can start fresh.
func (m *Manager) Recover(ctx context.Context) {
	active, err := m.sessions.AllActive(ctx)
	if err != nil {
		m.logger.Error("load active sessions for recovery", zap.Error(err))
		return
	}
	for i := range active {
		session := active[i]
		if _, err := m.StartListening(ctx, &session); err != nil {
			m.logger.Warn("session recovery failed, ending session",
				zap.String("session_id", session.ID.String()),
				zap.String("tiktok_username", session.TikTokUsername),
				zap.Error(err))
			if endErr := m.sessions.End(ctx, session.ID); endErr != nil {
				m.logger.Error("end unrecoverable session", zap.Error(endErr),
					zap.String("session_id", session.ID.String()))
			}
			continue
		}
		m.logger.Info("session recovered", zap.String("session_id", session.ID.String()))
	}
}

// IsLive reports whether the session has a live connection.
func (m *Manager) IsLive(sessionID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conns[sessionID]
	return ok
}

// ActiveCount returns the number of live connections.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// eventLoop consumes the connection's events until the channel closes,
// which is the stream-end signal.
func (m *Manager) eventLoop(st *connState) {
	for ev := range st.conn.Events() {
		m.dispatch(st, ev)
	}
	m.logger.Info("live stream ended", zap.String("session_id", st.session.ID.String()))
	m.teardown(st, "stream_ended", true)
}

// dispatch records the raw event first, then runs per-type handling. A
// panic in one handler must not kill the session's event loop.
func (m *Manager) dispatch(st *connState, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("event handler panicked",
				zap.String("session_id", st.session.ID.String()),
				zap.String("event_type", ev.Type),
				zap.Any("panic", r))
		}
	}()

	st.buffer.Append(ev.Type, ev.Viewer, ev.Payload)

	switch ev.Type {
	case EventChat:
		m.handleChat(st, ev)
	case EventGift:
		m.handleGift(st, ev)
	}
}

// handleChat runs the chat-to-request pipeline for one message: parse,
// admit, dedup, persist, search, record outcome, notify.
func (m *Manager) handleChat(st *connState, ev Event) {
	if ev.Chat == nil {
		return
	}
	cmd, ok := parser.Parse(ev.Chat.Comment)
	if !ok || cmd.Kind != parser.KindPlay {
		return
	}
	ctx := context.Background()
	session := st.session

	if !m.limiter.Allow(ev.Viewer) {
		req, err := m.ledger.Create(ctx, session.ID, ev.Viewer, ev.Chat.Comment, cmd.Query)
		if err != nil {
			m.logger.Error("persist rate-limited request", zap.Error(err),
				zap.String("session_id", session.ID.String()))
			return
		}
		if err := m.ledger.UpdateSearchResult(ctx, req.ID, requests.ResultRateLimited()); err != nil {
			m.logger.Error("mark request rate_limited", zap.Error(err),
				zap.String("request_id", req.ID.String()))
		}
		m.logger.Info("request rate limited",
			zap.String("session_id", session.ID.String()),
			zap.String("viewer", ev.Viewer))
		return
	}

	dup, err := m.ledger.FindRecentDuplicate(ctx, session.ID, ev.Viewer, cmd.Query, dedupWindow)
	if err != nil {
		m.logger.Error("duplicate check", zap.Error(err), zap.String("session_id", session.ID.String()))
		return
	}
	if dup != nil {
		m.logger.Debug("duplicate request suppressed",
			zap.String("session_id", session.ID.String()),
			zap.String("viewer", ev.Viewer),
			zap.String("query", cmd.Query))
		return
	}

	req, err := m.ledger.Create(ctx, session.ID, ev.Viewer, ev.Chat.Comment, cmd.Query)
	if err != nil {
		m.logger.Error("persist request", zap.Error(err), zap.String("session_id", session.ID.String()))
		return
	}

	token, err := m.catalog.AccessToken(ctx, session.UserID)
	if err != nil || token == "" {
		m.recordSearchResult(ctx, req, requests.ResultError())
		m.emitter.Emit(session.UserID, realtime.SpotifyError("Spotify not connected, search paused"))
		m.emitter.Emit(session.UserID, realtime.RequestNew(req))
		m.logger.Warn("spotify token unavailable for search",
			zap.String("session_id", session.ID.String()), zap.Error(err))
		return
	}

	track, err := m.catalog.SearchTrack(ctx, token, cmd.Query)
	switch {
	case err != nil:
		m.recordSearchResult(ctx, req, requests.ResultError())
		m.logger.Warn("catalog search failed", zap.Error(err),
			zap.String("request_id", req.ID.String()), zap.String("query", cmd.Query))
	case track == nil:
		m.recordSearchResult(ctx, req, requests.ResultNotFound())
	default:
		m.recordSearchResult(ctx, req, requests.ResultMatched(requests.Track{
			SpotifyTrackID: track.ID,
			Title:          track.Title,
			Artist:         track.Artist,
			AlbumName:      track.AlbumName,
			AlbumImageURL:  track.AlbumImageURL,
			DurationMs:     track.DurationMs,
			SpotifyURI:     track.URI,
		}))
		m.logger.Info("request matched",
			zap.String("request_id", req.ID.String()),
			zap.String("track", track.Title),
			zap.String("artist", track.Artist))
	}
	m.emitter.Emit(session.UserID, realtime.RequestNew(req))
}

// recordSearchResult persists the outcome and mirrors it onto the in-memory
// row so the emitted event carries the final state.
func (m *Manager) recordSearchResult(ctx context.Context, req *models.SongRequest, result requests.SearchResult) {
	if err := m.ledger.UpdateSearchResult(ctx, req.ID, result); err != nil {
		m.logger.Error("record search result", zap.Error(err), zap.String("request_id", req.ID.String()))
		return
	}
	req.SearchStatus = result.Status()
	if track, ok := result.Track(); ok {
		now := time.Now()
		req.SpotifyTrackID = &track.SpotifyTrackID
		req.TrackName = &track.Title
		req.TrackArtist = &track.Artist
		req.AlbumName = &track.AlbumName
		if track.AlbumImageURL != "" {
			req.AlbumImageURL = &track.AlbumImageURL
		}
		req.DurationMs = &track.DurationMs
		req.SpotifyURI = &track.SpotifyURI
		req.MatchedAt = &now
	}
}

// handleGift persists a gift only when its repeat sequence is complete, so
// streaks produce a single row with the cumulative count.
func (m *Manager) handleGift(st *connState, ev Event) {
	if ev.Gift == nil || !ev.Gift.RepeatEnd {
		return
	}
	ctx := context.Background()

	var namePtr *string
	if ev.Gift.Name != "" {
		namePtr = &ev.Gift.Name
	}
	var diamondsPtr *int
	if ev.Gift.DiamondCount > 0 {
		diamondsPtr = &ev.Gift.DiamondCount
	}
	repeat := ev.Gift.RepeatCount
	if repeat < 1 {
		repeat = 1
	}

	gift, err := m.gifts.Create(ctx, st.session.ID, ev.Viewer, ev.Gift.GiftID, namePtr, diamondsPtr, repeat)
	if err != nil {
		m.logger.Error("persist gift", zap.Error(err), zap.String("session_id", st.session.ID.String()))
		return
	}
	m.emitter.Emit(st.session.UserID, realtime.GiftNew(gift))
}

// teardown runs the session's shutdown sequence exactly once: finalize the
// poller, flush the raw-event buffer, drop the connection, unregister, end
// the session row.
func (m *Manager) teardown(st *connState, reason string, emitEnded bool) {
	st.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()

		st.poller.StopAndFinalize(ctx)
		st.buffer.Stop(ctx)
		if err := st.conn.Disconnect(); err != nil {
			m.logger.Warn("disconnect live stream", zap.Error(err),
				zap.String("session_id", st.session.ID.String()))
		}

		m.mu.Lock()
		delete(m.conns, st.session.ID)
		m.mu.Unlock()

		if err := m.sessions.End(ctx, st.session.ID); err != nil {
			m.logger.Error("end session", zap.Error(err),
				zap.String("session_id", st.session.ID.String()))
		}
		if emitEnded {
			m.emitter.Emit(st.session.UserID, realtime.SessionEnded(reason))
		}
		m.logger.Info("session torn down",
			zap.String("session_id", st.session.ID.String()),
			zap.String("reason", reason))
	})
}
