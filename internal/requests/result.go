package requests

import "github.com/livejam/backend/internal/models"

// Track is the catalog payload stored on a matched request.
type Track struct {
	SpotifyTrackID string
	Title          string
	Artist         string
	AlbumName      string
	AlbumImageURL  string // empty when the album has no artwork
	DurationMs     int
	SpotifyURI     string
}

// SearchResult is the outcome of the catalog search for one request.
// Only a matched result carries a track; the other cases cannot hold stale
// track data because the constructors never set one.
type SearchResult struct {
	status models.SearchStatus
	track  *Track
}

// ResultMatched builds a matched result carrying the full track payload.
func ResultMatched(track Track) SearchResult {
	return SearchResult{status: models.SearchMatched, track: &track}
}

// ResultNotFound marks a search that returned no catalog match.
func ResultNotFound() SearchResult {
	return SearchResult{status: models.SearchNotFound}
}

// ResultError marks a search that failed (e.g. credential unavailable).
func ResultError() SearchResult {
	return SearchResult{status: models.SearchError}
}

// ResultRateLimited marks a request denied by the per-viewer rate limiter.
func ResultRateLimited() SearchResult {
	return SearchResult{status: models.SearchRateLimited}
}

// Status returns the search status this result records.
func (r SearchResult) Status() models.SearchStatus {
	return r.status
}

// Track returns the matched track payload; ok is false for non-matched
// results.
func (r SearchResult) Track() (Track, bool) {
	if r.track == nil {
		return Track{}, false
	}
	return *r.track, true
}
