package models

import (
	"time"

	"github.com/google/uuid"
)

// QueueStatus is the playback state of a queue item.
type QueueStatus string

const (
	QueueQueued  QueueStatus = "queued"
	QueuePlaying QueueStatus = "playing"
	QueuePlayed  QueueStatus = "played"
	QueueSkipped QueueStatus = "skipped"
)

// QueueItem is one track in the host's manual playback queue.
type QueueItem struct {
	ID             uuid.UUID   `json:"id"`
	LiveSessionID  uuid.UUID   `json:"live_session_id"`
	ViewerUsername *string     `json:"viewer_username,omitempty"`
	SpotifyTrackID string      `json:"spotify_track_id"`
	TrackTitle     string      `json:"track_title"`
	TrackArtist    string      `json:"track_artist"`
	Status         QueueStatus `json:"status"`
	Position       int         `json:"position"`
	RequestedAt    time.Time   `json:"requested_at"`
}
