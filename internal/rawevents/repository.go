package rawevents

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/livejam/backend/internal/models"
)

// Repository batch-inserts raw TikTok events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a raw-event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertBatch writes one batch of raw events in a single round trip.
func (r *Repository) InsertBatch(ctx context.Context, batch []models.RawEvent) error {
	if len(batch) == 0 {
		return nil
	}
	const q = `INSERT INTO tiktok_raw_events (id, live_session_id, event_type, viewer_username, payload, received_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)`
	b := &pgx.Batch{}
	for _, ev := range batch {
		b.Queue(q, ev.LiveSessionID, ev.EventType, ev.ViewerUsername, ev.Payload, ev.ReceivedAt)
	}
	return r.pool.SendBatch(ctx, b).Close()
}
