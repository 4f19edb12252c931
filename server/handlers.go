package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pulseboard/github-activity/ai"
	gh "github.com/pulseboard/github-activity/github"
	"github.com/pulseboard/github-activity/ratelimit"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.github.GetUser(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetRepository(w http.ResponseWriter, r *http.Request) {
	repo, err := s.github.GetRepository(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "repo"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, repo)
}

func (s *Server) handleListPulls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := gh.PullRequestOptions{State: q.Get("state")}
	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "invalid_parameter", "per_page must be an integer")
			return
		}
		opts.PerPage = n
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "invalid_parameter", "page must be an integer")
			return
		}
		opts.Page = n
	}

	prs, err := s.github.ListPullRequests(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "repo"), opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, prs)
}

func (s *Server) handleUserPRStats(w http.ResponseWriter, r *http.Request) {
	repos := splitList(r.URL.Query().Get("repos"))
	if len(repos) == 0 {
		s.writeError(w, r, http.StatusBadRequest, "invalid_parameter", "repos is required, e.g. repos=owner/a,owner/b")
		return
	}
	opts, err := statsOptionsFromQuery(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}

	stats, err := s.github.GetUserPRStats(r.Context(), chi.URLParam(r, "username"), repos, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.github.GetAuthStatus(r.Context()))
}

func (s *Server) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	snap, message := s.github.RateLimitStatus()
	s.respondJSON(w, http.StatusOK, struct {
		RateLimit *ratelimit.Snapshot `json:"rateLimit"`
		Message   string              `json:"message"`
		Cache     any                 `json:"cache"`
	}{
		RateLimit: snap,
		Message:   message,
		Cache:     s.cache.Stats(),
	})
}

// batchSummaryResponse is what the batch endpoint returns and what gets
// cached, so replays carry the digest too.
type batchSummaryResponse struct {
	Users       []gh.UserActivity `json:"users"`
	Digest      *ai.DigestPayload `json:"digest,omitempty"`
	Cached      bool              `json:"cached"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

func (s *Server) handleBatchActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	users := splitList(q.Get("users"))
	if len(users) == 0 {
		if q.Get("dashboard_id") != "" {
			s.writeError(w, r, http.StatusBadRequest, "invalid_parameter",
				"dashboard membership lookup is not configured on this service; pass users= explicitly")
			return
		}
		s.writeError(w, r, http.StatusBadRequest, "invalid_parameter", "users is required, e.g. users=alice,bob")
		return
	}
	repos := splitList(q.Get("repos"))
	if len(repos) == 0 {
		s.writeError(w, r, http.StatusBadRequest, "invalid_parameter", "repos is required, e.g. repos=owner/a,owner/b")
		return
	}
	opts, err := statsOptionsFromQuery(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}
	noCache := q.Get("no_cache") == "true"
	wantDigest := q.Get("digest") == "true"

	key := batchKey(users, repos, opts)
	if !noCache {
		if cached, ok := s.lookupBatch(r, key); ok {
			cached.Cached = true
			s.respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	resp := batchSummaryResponse{
		Users:       s.github.BatchActivitySummary(r.Context(), users, repos, opts),
		GeneratedAt: time.Now().UTC(),
	}

	if wantDigest && s.cfg.OpenaiApiKey != "" {
		digest, err := s.generateDigest(r.Context(), repos, opts, resp.Users)
		if err != nil {
			// digest degrades silently, the batch result still goes out
			s.log.Warn("activity digest failed", zap.Error(err))
		} else {
			resp.Digest = digest
		}
	}

	s.storeBatch(r, key, resp)
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) lookupBatch(r *http.Request, key string) (batchSummaryResponse, bool) {
	if s.shared != nil {
		var cached batchSummaryResponse
		ok, err := s.shared.Get(r.Context(), key, &cached)
		if err != nil {
			s.log.Warn("shared cache read failed", zap.String("key", key), zap.Error(err))
			return batchSummaryResponse{}, false
		}
		return cached, ok
	}
	if v, ok := s.cache.Get(key); ok {
		return v.(batchSummaryResponse), true
	}
	return batchSummaryResponse{}, false
}

func (s *Server) storeBatch(r *http.Request, key string, resp batchSummaryResponse) {
	if s.shared != nil {
		if err := s.shared.Set(r.Context(), key, resp); err != nil {
			s.log.Warn("shared cache write failed", zap.String("key", key), zap.Error(err))
		}
		return
	}
	s.cache.Set(key, resp, s.cfg.CacheTTL)
}

// generateDigest takes a slot from the OpenAI pacing bucket before
// calling out, so digest traffic honors the configured request rate.
func (s *Server) generateDigest(ctx context.Context, repos []string, opts gh.StatsOptions, users []gh.UserActivity) (*ai.DigestPayload, error) {
	if err := s.pacer.WaitOpenAI(ctx); err != nil {
		return nil, err
	}
	job := ai.DigestJob{Repos: repos, Since: opts.Since, Until: opts.Until}
	for _, a := range users {
		job.Users = append(job.Users, ai.UserSummary{
			Username: a.Username,
			Total:    a.Total,
			Open:     a.Open,
			Closed:   a.Closed,
			Merged:   a.Merged,
			Reviewed: a.Reviewed,
		})
	}
	digest, err := ai.SummarizeActivity(ctx, s.cfg.OpenaiApiKey, job)
	if err != nil {
		return nil, err
	}
	return &digest, nil
}

// batchKey is insensitive to the order of users and repos so that
// equivalent queries share one cache entry.
func batchKey(users, repos []string, opts gh.StatsOptions) string {
	sortedUsers := append([]string(nil), users...)
	sortedRepos := append([]string(nil), repos...)
	sort.Strings(sortedUsers)
	sort.Strings(sortedRepos)
	return fmt.Sprintf("batch:%s|%s|reviews=%t|%d-%d",
		strings.Join(sortedUsers, ","), strings.Join(sortedRepos, ","),
		opts.IncludeReviews, opts.Since.Unix(), opts.Until.Unix())
}

func statsOptionsFromQuery(r *http.Request) (gh.StatsOptions, error) {
	q := r.URL.Query()
	opts := gh.StatsOptions{IncludeReviews: q.Get("include_reviews") == "true"}

	var err error
	if opts.Since, err = parseTimeParam(q.Get("start_date")); err != nil {
		return opts, fmt.Errorf("start_date: %w", err)
	}
	if opts.Until, err = parseTimeParam(q.Get("end_date")); err != nil {
		return opts, fmt.Errorf("end_date: %w", err)
	}
	return opts, nil
}

func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, v); err == nil {
		return ts, nil
	}
	ts, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC3339 or YYYY-MM-DD, got %q", v)
	}
	return ts, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
