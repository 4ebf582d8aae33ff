// Package report aggregates a session's activity into a host-facing
// summary: per-track demand, failed requests, gift totals.
package report

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TrackSummary is one matched track's aggregate demand in a session.
type TrackSummary struct {
	SpotifyTrackID string `json:"spotify_track_id"`
	TrackName      string `json:"track_name"`
	TrackArtist    string `json:"track_artist"`
	RequestCount   int    `json:"request_count"`
	UniqueViewers  int    `json:"unique_viewers"`
	Played         bool   `json:"played"`
}

// GiftSummary is the session's gift totals. Diamonds count the final
// cumulative repeat of each gift row.
type GiftSummary struct {
	GiftCount     int `json:"gift_count"`
	TotalDiamonds int `json:"total_diamonds"`
}

// Report is the full session summary.
type Report struct {
	SessionID      uuid.UUID      `json:"session_id"`
	Tracks         []TrackSummary `json:"tracks"`
	FailedRequests int            `json:"failed_requests"`
	Gifts          GiftSummary    `json:"gifts"`
}

// Repository runs the report aggregation queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a report repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Build assembles the session report.
func (r *Repository) Build(ctx context.Context, sessionID uuid.UUID) (*Report, error) {
	report := &Report{SessionID: sessionID}

	const tracksQ = `SELECT spotify_track_id, track_name, track_artist,
			COUNT(*), COUNT(DISTINCT viewer_username),
			BOOL_OR(play_status = 'confirmed')
		FROM song_requests
		WHERE live_session_id = $1 AND search_status = 'matched'
		GROUP BY spotify_track_id, track_name, track_artist
		ORDER BY COUNT(*) DESC, MIN(requested_at)`
	rows, err := r.pool.Query(ctx, tracksQ, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t TrackSummary
		if err := rows.Scan(&t.SpotifyTrackID, &t.TrackName, &t.TrackArtist,
			&t.RequestCount, &t.UniqueViewers, &t.Played); err != nil {
			return nil, err
		}
		report.Tracks = append(report.Tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const failedQ = `SELECT COUNT(*) FROM song_requests
		WHERE live_session_id = $1 AND search_status IN ('not_found', 'error', 'rate_limited')`
	if err := r.pool.QueryRow(ctx, failedQ, sessionID).Scan(&report.FailedRequests); err != nil {
		return nil, err
	}

	const giftsQ = `SELECT COUNT(*), COALESCE(SUM(COALESCE(diamond_count, 0) * repeat_count), 0)
		FROM gift_events WHERE live_session_id = $1`
	if err := r.pool.QueryRow(ctx, giftsQ, sessionID).Scan(&report.Gifts.GiftCount, &report.Gifts.TotalDiamonds); err != nil {
		return nil, err
	}

	return report, nil
}
