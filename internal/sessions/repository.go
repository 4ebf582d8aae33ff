// Package sessions manages live-session rows and the HTTP surface for
// starting and stopping them.
package sessions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/livejam/backend/internal/models"
)

const sessionColumns = `id, user_id, tiktok_username, status, started_at, ended_at`

// Repository handles live_sessions persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a live-session repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanSession(row pgx.Row) (*models.LiveSession, error) {
	var s models.LiveSession
	err := row.Scan(&s.ID, &s.UserID, &s.TikTokUsername, &s.Status, &s.StartedAt, &s.EndedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new active session.
func (r *Repository) Create(ctx context.Context, userID uuid.UUID, tiktokUsername string) (*models.LiveSession, error) {
	const q = `INSERT INTO live_sessions (id, user_id, tiktok_username, status, started_at)
		VALUES (gen_random_uuid(), $1, $2, 'active', NOW())
		RETURNING ` + sessionColumns
	return scanSession(r.pool.QueryRow(ctx, q, userID, tiktokUsername))
}

// GetByID returns one session, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.LiveSession, error) {
	const q = `SELECT ` + sessionColumns + ` FROM live_sessions WHERE id = $1`
	s, err := scanSession(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ActiveForUser returns the user's active session, or nil when there is
// none. At most one exists by construction.
func (r *Repository) ActiveForUser(ctx context.Context, userID uuid.UUID) (*models.LiveSession, error) {
	const q = `SELECT ` + sessionColumns + ` FROM live_sessions
		WHERE user_id = $1 AND status = 'active'
		ORDER BY started_at DESC LIMIT 1`
	s, err := scanSession(r.pool.QueryRow(ctx, q, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// AllActive returns every active session, for restart recovery.
func (r *Repository) AllActive(ctx context.Context) ([]models.LiveSession, error) {
	const q = `SELECT ` + sessionColumns + ` FROM live_sessions WHERE status = 'active'`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.LiveSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// End marks a session ended. Idempotent: an already-ended row keeps its
// original ended_at.
func (r *Repository) End(ctx context.Context, sessionID uuid.UUID) error {
	const q = `UPDATE live_sessions SET status = 'ended', ended_at = NOW()
		WHERE id = $1 AND status = 'active'`
	_, err := r.pool.Exec(ctx, q, sessionID)
	return err
}
