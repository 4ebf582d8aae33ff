// Package ratelimit provides per-viewer admission control for song requests.
//
// Single-process only: the counters live in memory and are lost on restart,
// which self-heals within one window. Acceptable for the one-active-session
// per-user deployment model.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultMaxRequests is the number of admissions per viewer per window.
	DefaultMaxRequests = 2
	// DefaultWindow is the admission window length.
	DefaultWindow = 30 * time.Second
	// sweepInterval bounds memory by removing expired entries.
	sweepInterval = 5 * time.Minute
)

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter admits at most maxRequests per viewer within a window that starts
// at the viewer's first admission. Window reset is lazy; a periodic sweep
// removes expired entries.
type Limiter struct {
	maxRequests int
	window      time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	done     chan struct{}
	stopOnce sync.Once

	now func() time.Time
}

// New creates a limiter with the given per-window admission count.
func New(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		entries:     make(map[string]*entry),
		done:        make(chan struct{}),
		now:         time.Now,
	}
}

// Allow reports whether the viewer may proceed, counting this attempt if so.
// The first admission in a fresh or expired window resets the window from now.
func (l *Limiter) Allow(viewerID string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[viewerID]
	if !ok || now.After(e.resetAt) {
		l.entries[viewerID] = &entry{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	if e.count >= l.maxRequests {
		return false
	}
	e.count++
	return true
}

// Start launches the background sweep. Call Stop at process shutdown.
func (l *Limiter) Start() {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-l.done:
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

// Stop terminates the background sweep. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *Limiter) sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, id)
		}
	}
}
