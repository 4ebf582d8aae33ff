package models

import (
	"time"

	"github.com/google/uuid"
)

// SearchStatus is the outcome of the catalog search for a request.
type SearchStatus string

const (
	SearchPending     SearchStatus = "pending"
	SearchMatched     SearchStatus = "matched"
	SearchNotFound    SearchStatus = "not_found"
	SearchError       SearchStatus = "error"
	SearchRateLimited SearchStatus = "rate_limited"
)

// PlayStatus tracks whether a matched request was observed as played.
type PlayStatus string

const (
	PlayPending   PlayStatus = "pending"
	PlayConfirmed PlayStatus = "confirmed"
	PlayNotPlayed PlayStatus = "not_played"
)

// SongRequest is one viewer-issued play command, logged as an append-only
// audit row. Track columns are populated together when search_status is
// matched and are all nil otherwise (album image may be absent even on a
// match).
type SongRequest struct {
	ID             uuid.UUID    `json:"id"`
	LiveSessionID  uuid.UUID    `json:"live_session_id"`
	ViewerUsername string       `json:"viewer_username"`
	RawMessage     string       `json:"raw_message"`
	ParsedQuery    string       `json:"parsed_query"`
	SpotifyTrackID *string      `json:"spotify_track_id,omitempty"`
	TrackName      *string      `json:"track_name,omitempty"`
	TrackArtist    *string      `json:"track_artist,omitempty"`
	AlbumName      *string      `json:"album_name,omitempty"`
	AlbumImageURL  *string      `json:"album_image_url,omitempty"`
	DurationMs     *int         `json:"duration_ms,omitempty"`
	SpotifyURI     *string      `json:"spotify_uri,omitempty"`
	SearchStatus   SearchStatus `json:"search_status"`
	PlayStatus     PlayStatus   `json:"play_status"`
	RequestedAt    time.Time    `json:"requested_at"`
	MatchedAt      *time.Time   `json:"matched_at,omitempty"`
	ConfirmedAt    *time.Time   `json:"confirmed_at,omitempty"`
}
