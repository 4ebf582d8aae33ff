package spotify

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/livejam/backend/internal/models"
)

// AccountStore persists linked Spotify account credentials.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates an account store.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Get returns the Spotify account for a user, or nil when none is linked.
func (s *AccountStore) Get(ctx context.Context, userID uuid.UUID) (*models.SpotifyAccount, error) {
	const q = `SELECT user_id, COALESCE(access_token,''), COALESCE(refresh_token,''), COALESCE(expires_at, 0)
		FROM accounts WHERE user_id = $1 AND provider = 'spotify'`
	var a models.SpotifyAccount
	err := s.pool.QueryRow(ctx, q, userID).Scan(&a.UserID, &a.AccessToken, &a.RefreshToken, &a.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// UpdateTokens stores a refreshed access token (and refresh token, when the
// provider rotated it) for a user.
func (s *AccountStore) UpdateTokens(ctx context.Context, userID uuid.UUID, accessToken, refreshToken string, expiresAt int64) error {
	const q = `UPDATE accounts
		SET access_token = $2,
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			expires_at = $4
		WHERE user_id = $1 AND provider = 'spotify'`
	_, err := s.pool.Exec(ctx, q, userID, accessToken, refreshToken, expiresAt)
	return err
}
