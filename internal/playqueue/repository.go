// Package playqueue is the host's manual playback queue. The chat pipeline
// never writes here; items are added explicitly from matched requests.
package playqueue

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/livejam/backend/internal/models"
)

const queueColumns = `id, live_session_id, viewer_username, spotify_track_id, track_title, track_artist, status, position, requested_at`

// Repository handles queue_items persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a playback-queue repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanItem(row pgx.Row) (*models.QueueItem, error) {
	var it models.QueueItem
	err := row.Scan(&it.ID, &it.LiveSessionID, &it.ViewerUsername, &it.SpotifyTrackID,
		&it.TrackTitle, &it.TrackArtist, &it.Status, &it.Position, &it.RequestedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// Add appends a track to the session's queue at the next position.
func (r *Repository) Add(ctx context.Context, sessionID uuid.UUID, viewer *string, trackID, title, artist string) (*models.QueueItem, error) {
	const q = `INSERT INTO queue_items (id, live_session_id, viewer_username, spotify_track_id, track_title, track_artist, status, position, requested_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, 'queued',
			COALESCE((SELECT MAX(position) FROM queue_items WHERE live_session_id = $1), 0) + 1,
			NOW())
		RETURNING ` + queueColumns
	return scanItem(r.pool.QueryRow(ctx, q, sessionID, viewer, trackID, title, artist))
}

// GetByID returns one queue item, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.QueueItem, error) {
	const q = `SELECT ` + queueColumns + ` FROM queue_items WHERE id = $1`
	it, err := scanItem(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return it, nil
}

// ListPending returns the session's queued and playing items in position
// order.
func (r *Repository) ListPending(ctx context.Context, sessionID uuid.UUID) ([]models.QueueItem, error) {
	const q = `SELECT ` + queueColumns + ` FROM queue_items
		WHERE live_session_id = $1 AND status IN ('queued', 'playing')
		ORDER BY position`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.QueueItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *it)
	}
	return list, rows.Err()
}

// UpdateStatus moves a queue item to a new playback state.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.QueueStatus) error {
	const q = `UPDATE queue_items SET status = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, status)
	return err
}
