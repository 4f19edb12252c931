package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulseboard/github-activity/cache"
	"github.com/pulseboard/github-activity/config"
	"github.com/pulseboard/github-activity/ratelimit"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		GithubBaseURL:     srv.URL,
		GithubConcurrency: 4,
		CacheSize:         100,
		CacheTTL:          time.Minute,
		HTTPClientTimeout: 5 * time.Second,
	}
	store, err := cache.New(cfg.CacheSize)
	require.NoError(t, err)

	c, err := NewClient(cfg, ratelimit.NewTracker(), ratelimit.NewPacer(6000, 6000), store, zap.NewNop())
	require.NoError(t, err)
	return c
}

func jsonHandler(calls *int32, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func TestGetUserCachesResult(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.Handle("/users/octocat", jsonHandler(&calls, `{"login":"octocat","id":1}`))
	c := newTestClient(t, mux)

	for range 2 {
		user, err := c.GetUser(context.Background(), "octocat")
		require.NoError(t, err)
		assert.Equal(t, "octocat", user.GetLogin())
	}
	assert.EqualValues(t, 1, calls, "second lookup should come from the cache")
}

func TestGetRepositoryCachesResult(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.Handle("/repos/octocat/Hello-World", jsonHandler(&calls, `{"id":1296269,"full_name":"octocat/Hello-World"}`))
	c := newTestClient(t, mux)

	for range 2 {
		repo, err := c.GetRepository(context.Background(), "octocat", "Hello-World")
		require.NoError(t, err)
		assert.Equal(t, "octocat/Hello-World", repo.GetFullName())
	}
	assert.EqualValues(t, 1, calls)
}

func TestGetUserNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/ghost", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})
	c := newTestClient(t, mux)

	_, err := c.GetUser(context.Background(), "ghost")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "user ghost", notFound.Resource)
}

func TestGetRepositorySAMLDenied(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/corp/private", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Resource protected by organization SAML enforcement."}`, http.StatusForbidden)
	})
	c := newTestClient(t, mux)

	_, err := c.GetRepository(context.Background(), "corp", "private")
	var denied *AccessDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Contains(t, denied.Error(), "SAML")
}

func TestRateLimitedForbiddenTranslates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/alice", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Ratelimit-Remaining", "0")
		w.Header().Set("X-Ratelimit-Limit", "60")
		w.Header().Set("X-Ratelimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
		http.Error(w, `{"message":"API rate limit exceeded for 1.2.3.4."}`, http.StatusForbidden)
	})
	c := newTestClient(t, mux)

	_, err := c.GetUser(context.Background(), "alice")
	var limited *RateLimitError
	require.ErrorAs(t, err, &limited)

	// The failed response's headers still reached the tracker.
	snap := c.tracker.Status()
	require.NotNil(t, snap)
	assert.Equal(t, 0, snap.Remaining)
	assert.False(t, c.tracker.CanMakeRequest())
}

func TestGateShortCircuitsBeforeNetworkIO(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.Handle("/users/alice", jsonHandler(&calls, `{"login":"alice"}`))
	c := newTestClient(t, mux)

	h := http.Header{}
	h.Set("X-Ratelimit-Remaining", "0")
	h.Set("X-Ratelimit-Limit", "60")
	h.Set("X-Ratelimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	c.tracker.UpdateFromHeaders(h)

	_, err := c.GetUser(context.Background(), "alice")
	var limited *RateLimitError
	require.ErrorAs(t, err, &limited)
	assert.Zero(t, calls, "blocked request must not reach the network")
}

func TestTrackerObservesSuccessHeaders(t *testing.T) {
	reset := time.Now().Add(45 * time.Minute)
	mux := http.NewServeMux()
	mux.HandleFunc("/users/alice", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Ratelimit-Remaining", "4999")
		w.Header().Set("X-Ratelimit-Limit", "5000")
		w.Header().Set("X-Ratelimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"login":"alice"}`)
	})
	c := newTestClient(t, mux)

	_, err := c.GetUser(context.Background(), "alice")
	require.NoError(t, err)

	snap := c.tracker.Status()
	require.NotNil(t, snap)
	assert.Equal(t, 4999, snap.Remaining)
	assert.Equal(t, 5000, snap.Limit)
	assert.Equal(t, reset.Unix(), snap.ResetAt.Unix())
}

func TestUpstreamFailureIsBadGateway(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/alice", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusBadGateway)
	})
	c := newTestClient(t, mux)

	_, err := c.GetUser(context.Background(), "alice")
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "upstream GitHub request failed", upstream.Error())
	assert.NotContains(t, upstream.Error(), "boom", "upstream detail must not leak to callers")
	assert.Error(t, errors.Unwrap(upstream))
}

func TestListPullRequestsDefaults(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/org/app/pulls", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "all", q.Get("state"))
		assert.Equal(t, "30", q.Get("per_page"))
		assert.Equal(t, "1", q.Get("page"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"number":1,"state":"open"}]`)
	})
	c := newTestClient(t, mux)

	prs, err := c.ListPullRequests(context.Background(), "org", "app", PullRequestOptions{})
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, 1, prs[0].GetNumber())
}
