package poller

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/livejam/backend/internal/models"
	"github.com/livejam/backend/internal/spotify"
)

type fakeLedger struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*models.SongRequest
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{requests: make(map[uuid.UUID]*models.SongRequest)}
}

func (l *fakeLedger) addMatched(trackID string) uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := uuid.New()
	l.requests[id] = &models.SongRequest{
		ID:             id,
		SpotifyTrackID: &trackID,
		SearchStatus:   models.SearchMatched,
		PlayStatus:     models.PlayPending,
	}
	return id
}

func (l *fakeLedger) PendingMatched(_ context.Context, _ uuid.UUID) ([]models.SongRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.SongRequest
	for _, r := range l.requests {
		if r.PlayStatus == models.PlayPending && r.SearchStatus == models.SearchMatched {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (l *fakeLedger) UpdatePlayStatus(_ context.Context, id uuid.UUID, status models.PlayStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests[id].PlayStatus = status
	return nil
}

func (l *fakeLedger) status(id uuid.UUID) models.PlayStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requests[id].PlayStatus
}

type fakeCatalog struct {
	token      string
	recent     *spotify.RecentlyPlayed
	gotAfterMs []int64
}

func (c *fakeCatalog) AccessToken(_ context.Context, _ uuid.UUID) (string, error) {
	return c.token, nil
}

func (c *fakeCatalog) RecentlyPlayed(_ context.Context, _ string, afterMs int64) (*spotify.RecentlyPlayed, error) {
	c.gotAfterMs = append(c.gotAfterMs, afterMs)
	return c.recent, nil
}

func newTestPoller(ledger Ledger, catalog Catalog, onAdvisory func(string)) *Poller {
	return New(uuid.New(), uuid.New(), ledger, catalog, onAdvisory, zap.NewNop())
}

func TestPollConfirmsPlayedTracks(t *testing.T) {
	ledger := newFakeLedger()
	played := ledger.addMatched("T1")
	waiting := ledger.addMatched("T2")

	catalog := &fakeCatalog{token: "tok", recent: &spotify.RecentlyPlayed{
		Items:       []spotify.PlayedItem{{TrackID: "T1"}},
		CursorAfter: 42,
	}}
	p := newTestPoller(ledger, catalog, nil)

	p.poll(context.Background())

	assert.Equal(t, models.PlayConfirmed, ledger.status(played))
	assert.Equal(t, models.PlayPending, ledger.status(waiting), "unplayed requests stay pending for later ticks")
}

func TestPollAdvancesCursorMonotonically(t *testing.T) {
	ledger := newFakeLedger()
	catalog := &fakeCatalog{token: "tok", recent: &spotify.RecentlyPlayed{CursorAfter: 100}}
	p := newTestPoller(ledger, catalog, nil)
	p.afterMs = 50

	p.poll(context.Background())
	assert.Equal(t, int64(100), p.afterMs)

	// A stale cursor never regresses the position.
	catalog.recent = &spotify.RecentlyPlayed{CursorAfter: 80}
	p.poll(context.Background())
	assert.Equal(t, int64(100), p.afterMs)
	assert.Equal(t, []int64{50, 100}, catalog.gotAfterMs)
}

func TestPollMissingTokenEmitsAdvisory(t *testing.T) {
	ledger := newFakeLedger()
	id := ledger.addMatched("T1")
	catalog := &fakeCatalog{token: ""}

	var advisories []string
	p := newTestPoller(ledger, catalog, func(msg string) { advisories = append(advisories, msg) })

	p.poll(context.Background())

	require.Len(t, advisories, 1)
	assert.Contains(t, advisories[0], "play confirmation paused")
	assert.Equal(t, models.PlayPending, ledger.status(id), "tick is skipped, nothing is finalized")
}

func TestPollCatalogUnavailableSkipsSilently(t *testing.T) {
	ledger := newFakeLedger()
	id := ledger.addMatched("T1")
	catalog := &fakeCatalog{token: "tok", recent: nil}
	p := newTestPoller(ledger, catalog, func(string) { t.Fatal("no advisory expected") })

	p.poll(context.Background())
	assert.Equal(t, models.PlayPending, ledger.status(id))
}

func TestStopAndFinalizeTerminalGuarantee(t *testing.T) {
	ledger := newFakeLedger()
	played := ledger.addMatched("T1")
	missed := ledger.addMatched("T2")

	catalog := &fakeCatalog{token: "tok", recent: &spotify.RecentlyPlayed{
		Items: []spotify.PlayedItem{{TrackID: "T1"}},
	}}
	p := newTestPoller(ledger, catalog, nil)
	p.Start()

	p.StopAndFinalize(context.Background())

	assert.Equal(t, models.PlayConfirmed, ledger.status(played), "final poll captures last-minute plays")
	assert.Equal(t, models.PlayNotPlayed, ledger.status(missed), "remaining pending requests are finalized")
}

func TestStopAndFinalizeIdempotent(t *testing.T) {
	ledger := newFakeLedger()
	id := ledger.addMatched("T1")
	catalog := &fakeCatalog{token: "tok", recent: &spotify.RecentlyPlayed{}}
	p := newTestPoller(ledger, catalog, nil)
	p.Start()

	p.StopAndFinalize(context.Background())
	polls := len(catalog.gotAfterMs)
	p.StopAndFinalize(context.Background())

	assert.Equal(t, polls, len(catalog.gotAfterMs), "second call must not poll again")
	assert.Equal(t, models.PlayNotPlayed, ledger.status(id))
}

func TestStopAndFinalizeWithoutStart(t *testing.T) {
	ledger := newFakeLedger()
	id := ledger.addMatched("T1")
	catalog := &fakeCatalog{token: "tok", recent: &spotify.RecentlyPlayed{}}
	p := newTestPoller(ledger, catalog, nil)

	// Connection setup can fail after the poller is constructed but before
	// Start; finalize must still be safe.
	p.StopAndFinalize(context.Background())
	assert.Equal(t, models.PlayNotPlayed, ledger.status(id))
}
