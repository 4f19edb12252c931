package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v74/github"
	"github.com/jferrl/go-githubauth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/pulseboard/github-activity/cache"
	"github.com/pulseboard/github-activity/config"
	"github.com/pulseboard/github-activity/ratelimit"
)

const userAgent = "pulseboard-github-activity"

// NewClient builds the façade. GitHub App installation credentials win over
// a personal access token; with neither, requests go out unauthenticated
// and are subject to the 60-requests/hour ceiling.
func NewClient(cfg *config.Config, tracker *ratelimit.Tracker, pacer *ratelimit.Pacer, store *cache.Cache, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		tracker: tracker,
		pacer:   pacer,
		cache:   store,
		cfg:     cfg,
		log:     logger,
	}

	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	switch {
	case cfg.HasGithubApp():
		appTokenSource, err := githubauth.NewApplicationTokenSource(cfg.GithubClientID, []byte(cfg.GithubPrivateKey))
		if err != nil {
			return nil, fmt.Errorf("github app token source: %w", err)
		}
		installationTokenSource := githubauth.NewInstallationTokenSource(cfg.GithubInstallationID, appTokenSource)
		oc := oauth2.NewClient(context.Background(), installationTokenSource)
		oc.Timeout = cfg.HTTPClientTimeout
		c.gh = github.NewClient(oc)
		c.hasCredentials = true
	case cfg.GithubToken != "":
		c.gh = github.NewClient(httpClient).WithAuthToken(cfg.GithubToken)
		c.hasCredentials = true
	default:
		c.gh = github.NewClient(httpClient)
	}
	c.gh.UserAgent = userAgent

	if cfg.GithubBaseURL != "" {
		base := cfg.GithubBaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("github base url: %w", err)
		}
		c.gh.BaseURL = u
	}

	return c, nil
}

// prepare runs the pre-flight for every upstream call: pace, then consult
// the tracker. A blocked request surfaces the same rate-limit condition an
// upstream 403 would, without any network I/O.
func (c *Client) prepare(ctx context.Context) error {
	if err := c.pacer.WaitGithub(ctx); err != nil {
		return err
	}
	if !c.tracker.CanMakeRequest() {
		return &RateLimitError{RetryAfter: c.tracker.TimeUntilReset()}
	}
	return nil
}

// observe feeds response headers back into the tracker. go-github attaches
// the response to its errors too, so failed calls also update the tracker.
func (c *Client) observe(resp *github.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	c.tracker.UpdateFromHeaders(resp.Header)
}

// GetUser fetches a user profile, serving repeats from the cache.
func (c *Client) GetUser(ctx context.Context, username string) (*github.User, error) {
	key := "github:user:" + username
	if v, ok := c.cache.Get(key); ok {
		return v.(*github.User), nil
	}

	if err := c.prepare(ctx); err != nil {
		return nil, err
	}
	user, resp, err := c.gh.Users.Get(ctx, username)
	c.observe(resp)
	if err != nil {
		return nil, c.translate(err, "user "+username)
	}

	c.cache.Set(key, user, c.cfg.CacheTTL)
	return user, nil
}

// GetRepository fetches repository metadata, serving repeats from the cache.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*github.Repository, error) {
	full := owner + "/" + repo
	key := "github:repo:" + full
	if v, ok := c.cache.Get(key); ok {
		return v.(*github.Repository), nil
	}

	if err := c.prepare(ctx); err != nil {
		return nil, err
	}
	repository, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
	c.observe(resp)
	if err != nil {
		return nil, c.translate(err, "repository "+full)
	}

	c.cache.Set(key, repository, c.cfg.CacheTTL)
	return repository, nil
}

// ListPullRequests fetches one page of a repository's pull requests.
func (c *Client) ListPullRequests(ctx context.Context, owner, repo string, opts PullRequestOptions) ([]*github.PullRequest, error) {
	opts.normalize()
	full := owner + "/" + repo
	key := fmt.Sprintf("github:pulls:%s:%s:%d:%d", full, opts.State, opts.PerPage, opts.Page)
	if v, ok := c.cache.Get(key); ok {
		return v.([]*github.PullRequest), nil
	}

	if err := c.prepare(ctx); err != nil {
		return nil, err
	}
	prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
		State: opts.State,
		ListOptions: github.ListOptions{
			PerPage: opts.PerPage,
			Page:    opts.Page,
		},
	})
	c.observe(resp)
	if err != nil {
		return nil, c.translate(err, "pull requests for "+full)
	}

	c.cache.Set(key, prs, c.cfg.CacheTTL)
	return prs, nil
}

// listAllPullRequests walks every page of a repository's pull requests
// (state=all, 100 per page). The fully assembled list is what gets cached;
// the aggregation operations always consume complete lists.
func (c *Client) listAllPullRequests(ctx context.Context, owner, repo string) ([]*github.PullRequest, error) {
	full := owner + "/" + repo
	key := "github:pulls:" + full + ":all-pages"
	if v, ok := c.cache.Get(key); ok {
		return v.([]*github.PullRequest), nil
	}

	opts := &github.PullRequestListOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var all []*github.PullRequest
	for {
		if err := c.prepare(ctx); err != nil {
			return nil, err
		}
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
		c.observe(resp)
		if err != nil {
			return nil, c.translate(err, "pull requests for "+full)
		}
		all = append(all, prs...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.cache.Set(key, all, c.cfg.CacheTTL)
	return all, nil
}

// listAllReviews walks every review page of a single pull request.
func (c *Client) listAllReviews(ctx context.Context, owner, repo string, number int) ([]*github.PullRequestReview, error) {
	full := owner + "/" + repo
	key := fmt.Sprintf("github:reviews:%s#%d", full, number)
	if v, ok := c.cache.Get(key); ok {
		return v.([]*github.PullRequestReview), nil
	}

	opts := &github.ListOptions{PerPage: 100}
	var all []*github.PullRequestReview
	for {
		if err := c.prepare(ctx); err != nil {
			return nil, err
		}
		reviews, resp, err := c.gh.PullRequests.ListReviews(ctx, owner, repo, number, opts)
		c.observe(resp)
		if err != nil {
			return nil, c.translate(err, fmt.Sprintf("reviews for %s#%d", full, number))
		}
		all = append(all, reviews...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.cache.Set(key, all, c.cfg.CacheTTL)
	return all, nil
}

// RateLimitStatus exposes the tracker state for diagnostics.
func (c *Client) RateLimitStatus() (*ratelimit.Snapshot, string) {
	return c.tracker.Status(), c.tracker.Message()
}
