package requests

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/livejam/backend/internal/models"
)

func TestResultMatchedCarriesTrack(t *testing.T) {
	in := Track{
		SpotifyTrackID: "T1",
		Title:          "Shape of You",
		Artist:         "Ed Sheeran",
		AlbumName:      "Divide",
		DurationMs:     233712,
		SpotifyURI:     "spotify:track:T1",
	}
	res := ResultMatched(in)

	assert.Equal(t, models.SearchMatched, res.Status())
	track, ok := res.Track()
	assert.True(t, ok)
	assert.Equal(t, in, track)
}

func TestNonMatchedResultsCarryNoTrack(t *testing.T) {
	for _, res := range []SearchResult{ResultNotFound(), ResultError(), ResultRateLimited()} {
		_, ok := res.Track()
		assert.False(t, ok, "status %s must not carry track data", res.Status())
	}
	assert.Equal(t, models.SearchNotFound, ResultNotFound().Status())
	assert.Equal(t, models.SearchError, ResultError().Status())
	assert.Equal(t, models.SearchRateLimited, ResultRateLimited().Status())
}
