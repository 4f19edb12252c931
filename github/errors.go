package github

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v74/github"
	"go.uber.org/zap"
)

// NotFoundError names the missing upstream resource (user, repository, ...).
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// AccessDeniedError covers 403 responses that are not quota-related, most
// commonly repositories that require SAML SSO authorization for the token.
type AccessDeniedError struct {
	Resource string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied for %s: the token may need SAML SSO authorization for this organization", e.Resource)
}

// RateLimitError means the upstream quota is exhausted, whether detected
// locally before any network I/O or reported by a 403/429 response.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	mins := int((e.RetryAfter + time.Minute - 1) / time.Minute)
	return fmt.Sprintf("GitHub API rate limit exceeded, retry in %d minute(s)", mins)
}

// UpstreamError is the generic bad-gateway bucket. The original upstream
// message is kept for logging but not shown to callers verbatim.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	return "upstream GitHub request failed"
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// translate maps a go-github error onto the service taxonomy. resource is
// the human name of whatever was being fetched.
func (c *Client) translate(err error, resource string) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &RateLimitError{RetryAfter: time.Until(rateErr.Rate.Reset.Time)}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &RateLimitError{RetryAfter: abuseErr.GetRetryAfter()}
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case 404:
			return &NotFoundError{Resource: resource}
		case 403, 429:
			if strings.Contains(strings.ToLower(ghErr.Message), "rate limit") {
				return &RateLimitError{RetryAfter: c.tracker.TimeUntilReset()}
			}
			return &AccessDeniedError{Resource: resource}
		}
		c.log.Warn("upstream request failed",
			zap.String("resource", resource),
			zap.Int("status", ghErr.Response.StatusCode),
			zap.String("message", ghErr.Message))
		return &UpstreamError{StatusCode: ghErr.Response.StatusCode, Err: err}
	}

	c.log.Warn("upstream request failed",
		zap.String("resource", resource),
		zap.Error(err))
	return &UpstreamError{Err: err}
}
