package github

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/go-github/v81/github"
)

// MinRateLimitWait is the floor applied to rate-limit waits. Even when the
// reported reset is imminent, the crawler backs off at least this long.
const MinRateLimitWait = 60 * time.Second

// ErrNotFound marks a 404 for a specific resource. The resource does not
// exist, so the call resolves to an empty result instead of being retried.
var ErrNotFound = errors.New("github resource not found")

// Sleeper blocks for the given duration or until ctx is cancelled. Injected
// so tests can observe waits without real sleeps.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RateLimitWait computes how long to sleep after a rate-limited rejection:
// the time until the reported reset, floored at MinRateLimitWait.
func RateLimitWait(reset, now time.Time) time.Duration {
	wait := reset.Sub(now)
	if wait < MinRateLimitWait {
		return MinRateLimitWait
	}
	return wait
}

// Policy is the explicit retry policy for a single API request: a bounded
// number of attempts with exponential backoff for transient failures,
// reset-derived waits for rate-limit rejections, and immediate termination
// for missing resources.
type Policy struct {
	// MaxAttempts bounds total tries across all failure classes.
	MaxAttempts int

	// Backoff returns the wait before retrying attempt (0-based) after a
	// transient failure.
	Backoff func(attempt int) time.Duration

	// Sleep performs waits. Defaults to SleepContext.
	Sleep Sleeper

	// Now supplies the clock for rate-limit wait computation.
	Now func() time.Time

	Logger *slog.Logger
}

// DefaultPolicy mirrors the crawler's request contract: three attempts,
// 1s/2s/4s backoff on transient failures.
func DefaultPolicy(logger *slog.Logger) Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return Policy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(1<<attempt) * time.Second
		},
		Sleep:  SleepContext,
		Now:    time.Now,
		Logger: logger,
	}
}

// Do invokes op under the policy. Classification:
//
//   - nil: success.
//   - rate-limit rejection: sleep max(reset-now, MinRateLimitWait), retry.
//   - 404: return ErrNotFound immediately; callers map it to an empty result.
//   - anything else: exponential backoff, retry; the last attempt's error is
//     returned for the caller to record as a per-item failure.
func (p Policy) Do(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		var rateErr *github.RateLimitError
		var abuseErr *github.AbuseRateLimitError
		var respErr *github.ErrorResponse

		switch {
		case errors.As(err, &rateErr):
			wait := RateLimitWait(rateErr.Rate.Reset.Time, p.Now())
			p.Logger.Warn("rate limited, waiting before retry", "wait", wait)
			if serr := p.Sleep(ctx, wait); serr != nil {
				return serr
			}

		case errors.As(err, &abuseErr):
			wait := MinRateLimitWait
			if abuseErr.RetryAfter != nil && *abuseErr.RetryAfter > wait {
				wait = *abuseErr.RetryAfter
			}
			p.Logger.Warn("secondary rate limited, waiting before retry", "wait", wait)
			if serr := p.Sleep(ctx, wait); serr != nil {
				return serr
			}

		case errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == 404:
			return ErrNotFound

		default:
			if attempt == p.MaxAttempts-1 {
				break
			}
			wait := p.Backoff(attempt)
			p.Logger.Warn("github request failed, backing off",
				"attempt", attempt+1,
				"wait", wait,
				"error", err,
			)
			if serr := p.Sleep(ctx, wait); serr != nil {
				return serr
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}
