package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/livejam/backend/internal/models"
)

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, password_hash, display_name, COALESCE(tiktok_username,''),
		created_at, updated_at FROM users WHERE id = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName,
		&u.TikTokUsername, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT id, email, password_hash, display_name, COALESCE(tiktok_username,''),
		created_at, updated_at FROM users WHERE email = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email).Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName,
		&u.TikTokUsername, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, email, passwordHash, displayName, tiktokUsername string) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, display_name, tiktok_username)
		VALUES ($1, $2, $3, NULLIF($4,''))
		RETURNING id, email, password_hash, display_name, COALESCE(tiktok_username,''),
		created_at, updated_at`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email, passwordHash, displayName, tiktokUsername).
		Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.TikTokUsername, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateTikTokUsername sets the profile's default TikTok username.
func (r *Repository) UpdateTikTokUsername(ctx context.Context, id uuid.UUID, username string) error {
	const q = `UPDATE users SET tiktok_username = NULLIF($2,''), updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, username)
	return err
}
