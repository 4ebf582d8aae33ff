// Package gifts persists completed gift interactions.
package gifts

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/livejam/backend/internal/models"
)

// Repository handles gift_events persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a gift-event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts one completed gift event.
func (r *Repository) Create(ctx context.Context, sessionID uuid.UUID, viewer string, giftID int, giftName *string, diamondCount *int, repeatCount int) (*models.GiftEvent, error) {
	const q = `INSERT INTO gift_events (id, live_session_id, viewer_username, gift_id, gift_name, diamond_count, repeat_count, received_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, live_session_id, viewer_username, gift_id, gift_name, diamond_count, repeat_count, received_at`
	var g models.GiftEvent
	err := r.pool.QueryRow(ctx, q, sessionID, viewer, giftID, giftName, diamondCount, repeatCount).
		Scan(&g.ID, &g.LiveSessionID, &g.ViewerUsername, &g.GiftID, &g.GiftName, &g.DiamondCount, &g.RepeatCount, &g.ReceivedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListBySession returns a session's gift events newest-first.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.GiftEvent, error) {
	const q = `SELECT id, live_session_id, viewer_username, gift_id, gift_name, diamond_count, repeat_count, received_at
		FROM gift_events WHERE live_session_id = $1 ORDER BY received_at DESC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.GiftEvent
	for rows.Next() {
		var g models.GiftEvent
		if err := rows.Scan(&g.ID, &g.LiveSessionID, &g.ViewerUsername, &g.GiftID, &g.GiftName, &g.DiamondCount, &g.RepeatCount, &g.ReceivedAt); err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}
