package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a streamer (host) account on the platform.
type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	Password       string    `json:"-"`
	DisplayName    string    `json:"display_name"`
	TikTokUsername string    `json:"tiktok_username"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name"`
	TikTokUsername string    `json:"tiktok_username"`
	CreatedAt      time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:             u.ID,
		Email:          u.Email,
		DisplayName:    u.DisplayName,
		TikTokUsername: u.TikTokUsername,
		CreatedAt:      u.CreatedAt,
	}
}

// SpotifyAccount holds the linked Spotify OAuth credentials for a user.
// Tokens are written by the OAuth callback flow and refreshed by the
// catalog client.
type SpotifyAccount struct {
	UserID       uuid.UUID `json:"user_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	// ExpiresAt is a unix timestamp in seconds; zero means unknown.
	ExpiresAt int64 `json:"expires_at"`
}
