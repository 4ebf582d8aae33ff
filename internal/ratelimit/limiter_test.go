package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(start time.Time) (*Limiter, *time.Time) {
	now := start
	l := New(DefaultMaxRequests, DefaultWindow)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowWithinWindow(t *testing.T) {
	l, _ := newTestLimiter(time.Unix(1000, 0))

	assert.True(t, l.Allow("alice"))
	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"), "third request inside the window must be denied")
}

func TestWindowExpiry(t *testing.T) {
	l, now := newTestLimiter(time.Unix(1000, 0))

	assert.True(t, l.Allow("alice"))
	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"))

	*now = now.Add(DefaultWindow + time.Second)
	assert.True(t, l.Allow("alice"), "expired window must admit again")
	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"))
}

func TestViewersIndependent(t *testing.T) {
	l, _ := newTestLimiter(time.Unix(1000, 0))

	assert.True(t, l.Allow("alice"))
	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"))
	assert.True(t, l.Allow("bob"), "bob's window is independent of alice's")
}

func TestWindowResetsFromFirstAdmission(t *testing.T) {
	l, now := newTestLimiter(time.Unix(1000, 0))

	assert.True(t, l.Allow("alice"))
	// 20s later, still inside the window opened by the first admission.
	*now = now.Add(20 * time.Second)
	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"))

	// 11s more puts us past the original reset point.
	*now = now.Add(11 * time.Second)
	assert.True(t, l.Allow("alice"))
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	l, now := newTestLimiter(time.Unix(1000, 0))

	l.Allow("alice")
	l.Allow("bob")
	*now = now.Add(DefaultWindow + time.Second)
	l.Allow("carol")

	l.sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.entries, 1)
	assert.Contains(t, l.entries, "carol")
}
