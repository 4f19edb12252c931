package github

import (
	"time"

	"github.com/google/go-github/v74/github"
	"go.uber.org/zap"

	"github.com/pulseboard/github-activity/cache"
	"github.com/pulseboard/github-activity/config"
	"github.com/pulseboard/github-activity/ratelimit"
)

// Client wraps the GitHub REST API with rate-limit gating, client-side
// pacing and per-call response caching. It is stateless request
// orchestration; all mutable state lives in the tracker and the cache.
type Client struct {
	gh      *github.Client
	tracker *ratelimit.Tracker
	pacer   *ratelimit.Pacer
	cache   *cache.Cache
	cfg     *config.Config
	log     *zap.Logger

	hasCredentials bool
}

// PullRequestOptions selects one page of a repository's pull request list.
type PullRequestOptions struct {
	State   string // open, closed or all; defaults to all
	PerPage int    // defaults to 30
	Page    int    // defaults to 1
}

func (o *PullRequestOptions) normalize() {
	switch o.State {
	case "open", "closed", "all":
	default:
		o.State = "all"
	}
	if o.PerPage <= 0 {
		o.PerPage = 30
	}
	if o.PerPage > 100 {
		o.PerPage = 100
	}
	if o.Page <= 0 {
		o.Page = 1
	}
}

// StatsOptions tunes the aggregation operations.
type StatsOptions struct {
	// IncludeReviews also counts reviews the user left on other PRs in
	// the requested repositories. Considerably more upstream calls.
	IncludeReviews bool
	// Since/Until bound the window by PR creation time when non-zero.
	Since time.Time
	Until time.Time
}

// RepoPRStats is one repository's slice of a user's pull request activity.
type RepoPRStats struct {
	Repository string `json:"repository"`
	Total      int    `json:"total"`
	Open       int    `json:"open"`
	Closed     int    `json:"closed"`
	Merged     int    `json:"merged"`
	Reviewed   int    `json:"reviewed"`
}

// UserPRStats aggregates one user's pull request activity across the
// requested repositories.
type UserPRStats struct {
	Username     string        `json:"username"`
	User         *github.User  `json:"user,omitempty"`
	Repositories []RepoPRStats `json:"repositories"`
	Total        int           `json:"total"`
	Open         int           `json:"open"`
	Closed       int           `json:"closed"`
	Merged       int           `json:"merged"`
	Reviewed     int           `json:"reviewed"`
}

// UserActivity is one entry of a batch summary. A user whose lookup failed
// gets a zero-valued record so the batch as a whole still succeeds.
type UserActivity struct {
	UserPRStats
	TotalActivity int `json:"totalActivity"`
}

// AuthStatus reports whether the configured credentials authenticate
// against the upstream, plus the best-known quota snapshot.
type AuthStatus struct {
	Authenticated bool               `json:"authenticated"`
	HasToken      bool               `json:"hasToken"`
	Login         string             `json:"login,omitempty"`
	Scopes        []string           `json:"scopes"`
	RateLimit     ratelimit.Snapshot `json:"rateLimit"`
}
