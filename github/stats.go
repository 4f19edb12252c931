package github

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pulseboard/github-activity/ratelimit"
)

func (o StatsOptions) inWindow(ts time.Time) bool {
	if !o.Since.IsZero() && ts.Before(o.Since) {
		return false
	}
	if !o.Until.IsZero() && ts.After(o.Until) {
		return false
	}
	return true
}

// GetUserPRStats aggregates one user's pull request activity across the
// given owner/repo strings. Malformed entries are skipped with a warning
// and a failed repository never aborts the others; whatever succeeded
// accumulates into the result.
//
// A pull request counts as merged whenever it carries a merge timestamp,
// independent of the state filter used to fetch it.
func (c *Client) GetUserPRStats(ctx context.Context, username string, repos []string, opts StatsOptions) (*UserPRStats, error) {
	user, err := c.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}

	stats := &UserPRStats{
		Username:     username,
		User:         user,
		Repositories: []RepoPRStats{},
	}
	for _, full := range repos {
		owner, repo, ok := strings.Cut(full, "/")
		if !ok || owner == "" || repo == "" {
			c.log.Warn("skipping malformed repository, expected owner/repo",
				zap.String("repository", full))
			continue
		}

		prs, err := c.listAllPullRequests(ctx, owner, repo)
		if err != nil {
			c.log.Warn("pull request fetch failed, keeping partial results",
				zap.String("repository", full),
				zap.Error(err))
			continue
		}

		rs := RepoPRStats{Repository: full}
		for _, pr := range prs {
			if pr == nil {
				continue
			}
			if !opts.inWindow(pr.GetCreatedAt().Time) {
				continue
			}
			authored := strings.EqualFold(pr.GetUser().GetLogin(), username)
			if authored {
				rs.Total++
				if pr.MergedAt != nil {
					rs.Merged++
				}
				switch pr.GetState() {
				case "open":
					rs.Open++
				case "closed":
					if pr.MergedAt == nil {
						rs.Closed++
					}
				}
				continue
			}
			if !opts.IncludeReviews {
				continue
			}
			reviews, err := c.listAllReviews(ctx, owner, repo, pr.GetNumber())
			if err != nil {
				c.log.Warn("review fetch failed, keeping partial results",
					zap.String("repository", full),
					zap.Int("number", pr.GetNumber()),
					zap.Error(err))
				continue
			}
			for _, rev := range reviews {
				if strings.EqualFold(rev.GetUser().GetLogin(), username) {
					rs.Reviewed++
				}
			}
		}

		stats.Repositories = append(stats.Repositories, rs)
		stats.Total += rs.Total
		stats.Open += rs.Open
		stats.Closed += rs.Closed
		stats.Merged += rs.Merged
		stats.Reviewed += rs.Reviewed
	}
	return stats, nil
}

// BatchActivitySummary computes per-user stats for every username in
// parallel. One user's failure never blocks the batch: the failed entry
// becomes a zero-valued record. The result always has len(usernames)
// entries, in input order.
func (c *Client) BatchActivitySummary(ctx context.Context, usernames []string, repos []string, opts StatsOptions) []UserActivity {
	results := make([]UserActivity, len(usernames))

	var g errgroup.Group
	g.SetLimit(c.cfg.GithubConcurrency)
	for i, username := range usernames {
		g.Go(func() error {
			stats, err := c.GetUserPRStats(ctx, username, repos, opts)
			if err != nil {
				c.log.Warn("activity summary failed for user, substituting zero record",
					zap.String("username", username),
					zap.Error(err))
				results[i] = zeroActivity(username)
				return nil
			}
			results[i] = UserActivity{
				UserPRStats:   *stats,
				TotalActivity: stats.Total + stats.Reviewed,
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func zeroActivity(username string) UserActivity {
	return UserActivity{
		UserPRStats: UserPRStats{
			Username:     username,
			Repositories: []RepoPRStats{},
		},
	}
}

// GetAuthStatus probes /user to check whether the configured credentials
// authenticate. It never fails outright: on any error it reports
// authenticated=false alongside the best-known quota snapshot, falling
// back to the unauthenticated defaults when nothing has been observed.
func (c *Client) GetAuthStatus(ctx context.Context) *AuthStatus {
	status := &AuthStatus{
		HasToken: c.hasCredentials,
		Scopes:   []string{},
	}

	err := c.prepare(ctx)
	if err == nil {
		user, resp, probeErr := c.gh.Users.Get(ctx, "")
		c.observe(resp)
		if probeErr != nil {
			err = probeErr
		} else {
			status.Authenticated = true
			status.Login = user.GetLogin()
			for _, s := range strings.Split(resp.Header.Get("X-Oauth-Scopes"), ",") {
				if s = strings.TrimSpace(s); s != "" {
					status.Scopes = append(status.Scopes, s)
				}
			}
		}
	}
	if err != nil {
		c.log.Debug("auth probe failed", zap.Error(err))
	}

	if snap := c.tracker.Status(); snap != nil {
		status.RateLimit = *snap
	} else {
		status.RateLimit = ratelimit.Snapshot{
			Remaining: ratelimit.DefaultLimit,
			Limit:     ratelimit.DefaultLimit,
		}
	}
	return status
}
