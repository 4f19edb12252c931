package ratelimit

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headersFor(remaining, limit int, reset time.Time) http.Header {
	h := http.Header{}
	h.Set("X-Ratelimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-Ratelimit-Limit", strconv.Itoa(limit))
	h.Set("X-Ratelimit-Reset", strconv.FormatInt(reset.Unix(), 10))
	return h
}

func TestCanMakeRequestBeforeAnyObservation(t *testing.T) {
	tr := NewTracker()
	assert.True(t, tr.CanMakeRequest())
	assert.Nil(t, tr.Status())
	assert.Zero(t, tr.TimeUntilReset())
	assert.Equal(t, "no rate limit data recorded yet", tr.Message())
}

func TestUpdateFromHeadersDefaultsWhenMissing(t *testing.T) {
	tr := NewTracker()
	tr.UpdateFromHeaders(http.Header{})

	snap := tr.Status()
	require.NotNil(t, snap)
	assert.Equal(t, 0, snap.Remaining)
	assert.Equal(t, DefaultLimit, snap.Limit)
	assert.True(t, snap.ResetAt.IsZero())
}

func TestUpdateFromHeadersMalformedValues(t *testing.T) {
	tr := NewTracker()
	h := http.Header{}
	h.Set("X-Ratelimit-Remaining", "not-a-number")
	h.Set("X-Ratelimit-Reset", "soon")
	tr.UpdateFromHeaders(h)

	snap := tr.Status()
	require.NotNil(t, snap)
	assert.Equal(t, 0, snap.Remaining)
	assert.Equal(t, DefaultLimit, snap.Limit)
}

func TestExhaustedQuotaBlocksUntilReset(t *testing.T) {
	now := time.Now()
	tr := NewTracker()
	tr.now = func() time.Time { return now }

	reset := now.Add(30 * time.Minute)
	tr.UpdateFromHeaders(headersFor(0, 60, reset))

	assert.False(t, tr.CanMakeRequest())
	assert.InDelta(t, (30 * time.Minute).Seconds(), tr.TimeUntilReset().Seconds(), 1)
	assert.Contains(t, tr.Message(), "rate limit exceeded")

	// Jump past the reset time: the window is treated as refilled.
	now = reset.Add(time.Second)
	assert.True(t, tr.CanMakeRequest())

	snap := tr.Status()
	require.NotNil(t, snap)
	assert.Equal(t, snap.Limit, snap.Remaining)
	assert.Zero(t, tr.TimeUntilReset())
}

func TestRemainingQuotaAllowsRequests(t *testing.T) {
	now := time.Now()
	tr := NewTracker()
	tr.now = func() time.Time { return now }

	tr.UpdateFromHeaders(headersFor(42, 5000, now.Add(10*time.Minute)))

	assert.True(t, tr.CanMakeRequest())
	assert.Contains(t, tr.Message(), "42/5000 requests remaining")
}

func TestLastWriteWins(t *testing.T) {
	now := time.Now()
	tr := NewTracker()
	tr.now = func() time.Time { return now }

	reset := now.Add(20 * time.Minute)
	tr.UpdateFromHeaders(headersFor(10, 60, reset))
	tr.UpdateFromHeaders(headersFor(3, 60, reset))

	snap := tr.Status()
	require.NotNil(t, snap)
	assert.Equal(t, 3, snap.Remaining)
}
