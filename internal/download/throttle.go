package download

import (
	"sync"
	"time"

	"torrentctl/internal/engine"
)

// DefaultSyncInterval is the minimum spacing between routine resume-data writes.
const DefaultSyncInterval = 10 * time.Second

// resumeThrottle decides whether a freshly produced resume blob is written.
type resumeThrottle struct {
	interval time.Duration

	mu       sync.Mutex
	lastSave time.Time
	// forced counts outstanding SaveResumeData requests issued by lifecycle
	// commands; the blob answering each of them bypasses the interval.
	forced int
	// requested is set while a routine request awaits its blob.
	requested bool
}

func newResumeThrottle(interval time.Duration) *resumeThrottle {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &resumeThrottle{interval: interval}
}

// requestForced records that the next produced blob must be written.
func (t *resumeThrottle) requestForced() {
	t.mu.Lock()
	t.forced++
	t.mu.Unlock()
}

// cancelForced undoes requestForced when the engine refused the request.
func (t *resumeThrottle) cancelForced() {
	t.mu.Lock()
	if t.forced > 0 {
		t.forced--
	}
	t.mu.Unlock()
}

// due reports whether a routine blob should be requested at now: the
// interval has passed since the last write and no routine request is
// outstanding.
func (t *resumeThrottle) due(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.requested {
		return false
	}
	if !t.lastSave.IsZero() && now.Sub(t.lastSave) < t.interval {
		return false
	}
	t.requested = true
	return true
}

// cancelRoutine undoes due when the engine refused the request.
func (t *resumeThrottle) cancelRoutine() {
	t.mu.Lock()
	t.requested = false
	t.mu.Unlock()
}

// allow reports whether a blob produced at now should be persisted, and
// whether that decision bypassed the interval. The save timestamp only moves
// when the answer is yes.
func (t *resumeThrottle) allow(status engine.Status, now time.Time) (persist bool, forced bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.forced > 0 {
		t.forced--
		t.lastSave = now
		return true, true
	}

	// any other blob answers the outstanding routine request
	t.requested = false
	switch {
	case status.Finished || status.Paused:
		forced = true
	case t.lastSave.IsZero() || now.Sub(t.lastSave) >= t.interval:
	default:
		return false, false
	}

	t.lastSave = now
	return true, forced
}
