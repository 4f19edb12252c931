package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// DefaultLimit is GitHub's unauthenticated hourly ceiling, used whenever a
// response carries no usable x-ratelimit-limit header.
const DefaultLimit = 60

// Snapshot is the most recently observed quota state for the upstream API.
type Snapshot struct {
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"resetAt"`
}

// Tracker keeps a single mutable quota snapshot, overwritten from the
// headers of every upstream response. Writes are last-write-wins: if two
// in-flight requests complete out of order the later completion determines
// the state. That imprecision is inherent to header-driven tracking and is
// accepted here.
type Tracker struct {
	mu       sync.Mutex
	observed bool
	snap     Snapshot

	now func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// UpdateFromHeaders records the quota state carried by an upstream response.
// Missing or malformed headers degrade to zero remaining and the default
// limit; this method never fails.
func (t *Tracker) UpdateFromHeaders(h http.Header) {
	snap := Snapshot{
		Remaining: parseIntHeader(h, "X-Ratelimit-Remaining", 0),
		Limit:     parseIntHeader(h, "X-Ratelimit-Limit", DefaultLimit),
	}
	if secs, err := strconv.ParseInt(h.Get("X-Ratelimit-Reset"), 10, 64); err == nil {
		snap.ResetAt = time.Unix(secs, 0)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.observed = true
	t.snap = snap
}

// CanMakeRequest reports whether an upstream call is allowed right now.
// Before any response has been observed the answer is an optimistic yes.
// Once the reset time has passed the window is treated as refilled, even if
// the last observed remaining count was zero.
func (t *Tracker) CanMakeRequest() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.observed {
		return true
	}
	if !t.now().Before(t.snap.ResetAt) {
		// Window rolled over; assume a full refill until the next
		// response corrects us.
		t.snap.Remaining = t.snap.Limit
		return true
	}
	return t.snap.Remaining > 0
}

// TimeUntilReset returns how long until the current window resets, or zero
// if no quota state has been observed or the reset has already passed.
func (t *Tracker) TimeUntilReset() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.observed {
		return 0
	}
	if d := t.snap.ResetAt.Sub(t.now()); d > 0 {
		return d
	}
	return 0
}

// Status returns a copy of the current snapshot, or nil if no upstream
// response has been observed yet.
func (t *Tracker) Status() *Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.observed {
		return nil
	}
	snap := t.snap
	return &snap
}

// Message renders a human-readable quota summary for diagnostics.
func (t *Tracker) Message() string {
	t.mu.Lock()
	observed := t.observed
	snap := t.snap
	now := t.now()
	t.mu.Unlock()

	if !observed {
		return "no rate limit data recorded yet"
	}
	until := snap.ResetAt.Sub(now)
	if until < 0 {
		until = 0
	}
	mins := int((until + time.Minute - 1) / time.Minute)
	if snap.Remaining <= 0 && now.Before(snap.ResetAt) {
		return fmt.Sprintf("GitHub API rate limit exceeded, retry in %d minute(s)", mins)
	}
	return fmt.Sprintf("%d/%d requests remaining, window resets in %d minute(s)",
		snap.Remaining, snap.Limit, mins)
}

func parseIntHeader(h http.Header, key string, fallback int) int {
	v, err := strconv.Atoi(h.Get(key))
	if err != nil {
		return fallback
	}
	return v
}
