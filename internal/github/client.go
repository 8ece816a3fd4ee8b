// Package github wraps the GitHub REST client and the retry/backoff/
// pagination contract the ingestion crawler depends on.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// ErrNoToken indicates the credential provider produced no GitHub token.
// This is a configuration error: the caller's unit of work aborts, it is
// never retried.
var ErrNoToken = errors.New("github token not configured")

// Client wraps the GitHub API client with secondary-rate-limit handling.
type Client struct {
	*github.Client
}

// NewClient creates an authenticated GitHub client. The transport waits out
// secondary rate limits (abuse detection) automatically; primary rate limits
// are handled by the retry policy and quota pre-checks in this package.
func NewClient(ctx context.Context, token string) (*Client, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, fmt.Errorf("create rate limit transport: %w", err)
	}

	ghClient := github.NewClient(rateLimiter).WithAuthToken(token)
	return &Client{Client: ghClient}, nil
}

// Quota reports remaining core API quota and its reset time.
type Quota struct {
	Remaining int
	Limit     int
	Reset     time.Time
}

// CheckQuota queries the remaining core rate limit. Errors degrade to a
// full-quota answer so a failed check never stalls an ingestion run.
func (c *Client) CheckQuota(ctx context.Context) Quota {
	limits, _, err := c.RateLimit.Get(ctx)
	if err != nil || limits == nil || limits.Core == nil {
		return Quota{Remaining: 5000, Limit: 5000}
	}
	return Quota{
		Remaining: limits.Core.Remaining,
		Limit:     limits.Core.Limit,
		Reset:     limits.Core.Reset.Time,
	}
}

// WaitForQuota sleeps until the quota window resets when fewer than
// minRemaining requests are left. Called before bulk phases and at
// checkpoints during long loops.
func (c *Client) WaitForQuota(ctx context.Context, minRemaining int, sleep Sleeper, logger *slog.Logger) error {
	quota := c.CheckQuota(ctx)
	logger.Info("rate limit check",
		"remaining", quota.Remaining,
		"limit", quota.Limit,
	)
	if quota.Remaining >= minRemaining {
		return nil
	}

	wait := time.Until(quota.Reset) + 10*time.Second
	if wait <= 0 {
		return nil
	}
	logger.Warn("rate limit low, waiting for reset",
		"remaining", quota.Remaining,
		"wait", wait,
	)
	return sleep(ctx, wait)
}
