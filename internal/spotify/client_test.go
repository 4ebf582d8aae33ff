package spotify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/livejam/backend/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(zap.NewNop())
	c.baseURL = srv.URL
	return c
}

func TestSearchTrackMatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "Shape of You", r.URL.Query().Get("q"))
		assert.Equal(t, "track", r.URL.Query().Get("type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tracks":{"items":[{
			"id":"T1","name":"Shape of You","uri":"spotify:track:T1","duration_ms":233712,
			"artists":[{"name":"Ed Sheeran"}],
			"album":{"name":"Divide","images":[{"url":"https://img.example/cover.jpg"}]}
		}]}}`))
	})

	track, err := c.SearchTrack(context.Background(), "tok", "Shape of You")
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, "T1", track.ID)
	assert.Equal(t, "Shape of You", track.Title)
	assert.Equal(t, "Ed Sheeran", track.Artist)
	assert.Equal(t, "Divide", track.AlbumName)
	assert.Equal(t, "https://img.example/cover.jpg", track.AlbumImageURL)
	assert.Equal(t, 233712, track.DurationMs)
	assert.Equal(t, "spotify:track:T1", track.URI)
}

func TestSearchTrackJoinsArtists(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tracks":{"items":[{
			"id":"T2","name":"Duet","uri":"spotify:track:T2","duration_ms":1000,
			"artists":[{"name":"A"},{"name":"B"}],
			"album":{"name":"X","images":[]}
		}]}}`))
	})

	track, err := c.SearchTrack(context.Background(), "tok", "duet")
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, "A, B", track.Artist)
	assert.Empty(t, track.AlbumImageURL)
}

func TestSearchTrackNoResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tracks":{"items":[]}}`))
	})

	track, err := c.SearchTrack(context.Background(), "tok", "nonexistent song xyz")
	require.NoError(t, err)
	assert.Nil(t, track)
}

func TestSearchTrackError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.SearchTrack(context.Background(), "tok", "anything")
	assert.Error(t, err)
}

func TestRecentlyPlayed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1700000000000", r.URL.Query().Get("after"))
		_, _ = w.Write([]byte(`{
			"items":[
				{"track":{"id":"T1","name":"One"},"played_at":"2026-08-30T12:00:00Z"},
				{"track":{"id":"T2","name":"Two"},"played_at":"2026-08-30T12:03:00Z"}
			],
			"cursors":{"after":"1700000123456"}
		}`))
	})

	rp, err := c.RecentlyPlayed(context.Background(), "tok", 1700000000000)
	require.NoError(t, err)
	require.NotNil(t, rp)
	require.Len(t, rp.Items, 2)
	assert.Equal(t, "T1", rp.Items[0].TrackID)
	assert.Equal(t, int64(1700000123456), rp.CursorAfter)
}

func TestRecentlyPlayedForbidden(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	rp, err := c.RecentlyPlayed(context.Background(), "tok", 0)
	require.NoError(t, err)
	assert.Nil(t, rp, "403 means the feature is unavailable, not a poll failure")
}

func TestAddToQueue(t *testing.T) {
	var gotURI string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.Query().Get("uri")
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.AddToQueue(context.Background(), "tok", "spotify:track:T1")
	require.NoError(t, err)
	assert.Equal(t, "spotify:track:T1", gotURI)
}

type fakeAccounts struct {
	acct    *models.SpotifyAccount
	updated *models.SpotifyAccount
}

func (f *fakeAccounts) Get(_ context.Context, _ uuid.UUID) (*models.SpotifyAccount, error) {
	return f.acct, nil
}

func (f *fakeAccounts) UpdateTokens(_ context.Context, userID uuid.UUID, access, refresh string, expiresAt int64) error {
	f.updated = &models.SpotifyAccount{UserID: userID, AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}
	return nil
}

func TestAccessTokenValid(t *testing.T) {
	userID := uuid.New()
	accounts := &fakeAccounts{acct: &models.SpotifyAccount{
		UserID:      userID,
		AccessToken: "fresh",
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}}
	ts := NewTokenSource(accounts, "id", "secret", zap.NewNop())

	token, err := ts.AccessToken(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
}

func TestAccessTokenNotLinked(t *testing.T) {
	ts := NewTokenSource(&fakeAccounts{}, "id", "secret", zap.NewNop())

	token, err := ts.AccessToken(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestAccessTokenRefreshesExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-me", r.Form.Get("refresh_token"))
		_, _ = w.Write([]byte(`{"access_token":"renewed","expires_in":3600}`))
	}))
	defer srv.Close()

	userID := uuid.New()
	accounts := &fakeAccounts{acct: &models.SpotifyAccount{
		UserID:       userID,
		AccessToken:  "stale",
		RefreshToken: "refresh-me",
		ExpiresAt:    time.Now().Add(-time.Minute).Unix(),
	}}
	ts := NewTokenSource(accounts, "id", "secret", zap.NewNop())
	ts.tokenURL = srv.URL

	token, err := ts.AccessToken(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "renewed", token)
	require.NotNil(t, accounts.updated, "refreshed token must be persisted")
	assert.Equal(t, "renewed", accounts.updated.AccessToken)
}

func TestAccessTokenRefreshRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	userID := uuid.New()
	accounts := &fakeAccounts{acct: &models.SpotifyAccount{
		UserID:       userID,
		AccessToken:  "stale",
		RefreshToken: "revoked",
		ExpiresAt:    time.Now().Add(-time.Minute).Unix(),
	}}
	ts := NewTokenSource(accounts, "id", "secret", zap.NewNop())
	ts.tokenURL = srv.URL

	token, err := ts.AccessToken(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, token, "rejected refresh surfaces as credential unavailable")
}
