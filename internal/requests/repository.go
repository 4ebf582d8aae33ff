// Package requests is the song-request ledger: append-only rows with two
// independent status axes (search, play) advanced by the chat pipeline and
// the play-confirmation poller.
package requests

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/livejam/backend/internal/models"
)

const requestColumns = `id, live_session_id, viewer_username, raw_message, parsed_query,
	spotify_track_id, track_name, track_artist, album_name, album_image_url, duration_ms, spotify_uri,
	search_status, play_status, requested_at, matched_at, confirmed_at`

// Repository handles song_requests persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a song-request repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRequest(row pgx.Row) (*models.SongRequest, error) {
	var req models.SongRequest
	err := row.Scan(&req.ID, &req.LiveSessionID, &req.ViewerUsername, &req.RawMessage, &req.ParsedQuery,
		&req.SpotifyTrackID, &req.TrackName, &req.TrackArtist, &req.AlbumName, &req.AlbumImageURL,
		&req.DurationMs, &req.SpotifyURI, &req.SearchStatus, &req.PlayStatus,
		&req.RequestedAt, &req.MatchedAt, &req.ConfirmedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Create inserts a new request row with pending search and play status.
func (r *Repository) Create(ctx context.Context, sessionID uuid.UUID, viewer, rawMessage, parsedQuery string) (*models.SongRequest, error) {
	const q = `INSERT INTO song_requests (id, live_session_id, viewer_username, raw_message, parsed_query, search_status, play_status, requested_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, 'pending', 'pending', NOW())
		RETURNING ` + requestColumns
	return scanRequest(r.pool.QueryRow(ctx, q, sessionID, viewer, rawMessage, parsedQuery))
}

// GetByID returns one request, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.SongRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM song_requests WHERE id = $1`
	req, err := scanRequest(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}

// FindRecentDuplicate returns a request from the same viewer with an
// identical parsed query in this session within the window, or nil.
// Absorbs TikTok redelivering the same chat line under bursty conditions.
func (r *Repository) FindRecentDuplicate(ctx context.Context, sessionID uuid.UUID, viewer, parsedQuery string, window time.Duration) (*models.SongRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM song_requests
		WHERE live_session_id = $1 AND viewer_username = $2 AND parsed_query = $3 AND requested_at >= $4
		LIMIT 1`
	cutoff := time.Now().Add(-window)
	req, err := scanRequest(r.pool.QueryRow(ctx, q, sessionID, viewer, parsedQuery, cutoff))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}

// UpdateSearchResult records the search outcome. A matched result writes the
// full track payload and stamps matched_at; every other result touches only
// the status column.
func (r *Repository) UpdateSearchResult(ctx context.Context, requestID uuid.UUID, result SearchResult) error {
	if track, ok := result.Track(); ok {
		const q = `UPDATE song_requests SET
			spotify_track_id = $2, track_name = $3, track_artist = $4, album_name = $5,
			album_image_url = NULLIF($6, ''), duration_ms = $7, spotify_uri = $8,
			search_status = 'matched', matched_at = NOW()
			WHERE id = $1`
		_, err := r.pool.Exec(ctx, q, requestID,
			track.SpotifyTrackID, track.Title, track.Artist, track.AlbumName,
			track.AlbumImageURL, track.DurationMs, track.SpotifyURI)
		return err
	}
	const q = `UPDATE song_requests SET search_status = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, requestID, result.Status())
	return err
}

// UpdatePlayStatus moves a request to a terminal play status. confirmed_at
// is stamped only on confirmation.
func (r *Repository) UpdatePlayStatus(ctx context.Context, requestID uuid.UUID, status models.PlayStatus) error {
	if status == models.PlayConfirmed {
		const q = `UPDATE song_requests SET play_status = 'confirmed', confirmed_at = NOW() WHERE id = $1`
		_, err := r.pool.Exec(ctx, q, requestID)
		return err
	}
	const q = `UPDATE song_requests SET play_status = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, requestID, status)
	return err
}

// PendingMatched returns the session's requests eligible for play
// confirmation: matched by search, still pending playback.
func (r *Repository) PendingMatched(ctx context.Context, sessionID uuid.UUID) ([]models.SongRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM song_requests
		WHERE live_session_id = $1 AND play_status = 'pending' AND search_status = 'matched'`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.SongRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *req)
	}
	return list, rows.Err()
}

// ListBySession returns requests newest-first, paginated by a requested_at
// cursor (strictly before).
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID, before *time.Time, limit int) ([]models.SongRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + requestColumns + ` FROM song_requests
		WHERE live_session_id = $1 AND ($2::timestamptz IS NULL OR requested_at < $2)
		ORDER BY requested_at DESC LIMIT $3`
	rows, err := r.pool.Query(ctx, q, sessionID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.SongRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *req)
	}
	return list, rows.Err()
}
