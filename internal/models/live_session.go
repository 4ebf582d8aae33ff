package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle status of a live session.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// LiveSession is one continuous listening period bound to a streamer's
// TikTok Live broadcast. At most one active session per user.
type LiveSession struct {
	ID             uuid.UUID     `json:"id"`
	UserID         uuid.UUID     `json:"user_id"`
	TikTokUsername string        `json:"tiktok_username"`
	Status         SessionStatus `json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	EndedAt        *time.Time    `json:"ended_at,omitempty"`
}
