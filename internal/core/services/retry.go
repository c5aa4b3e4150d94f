package services

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
	"github.com/custodia-labs/finsight/internal/logger"
)

// Default retry policy values.
const (
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
	defaultMaxBackoff = 10 * time.Second
	retryJitter       = 50 * time.Millisecond
)

// RetryPolicy bounds retries of a provider call with exponential backoff.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt. 0 disables retrying.
	MaxRetries int

	// Base is the first backoff delay; each retry doubles it.
	Base time.Duration

	// Max caps a single backoff delay.
	Max time.Duration

	// Jitter adds up to this much random delay to each backoff.
	Jitter time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: defaultMaxRetries,
		Base:       defaultBackoff,
		Max:        defaultMaxBackoff,
		Jitter:     retryJitter,
	}
}

// RetryPolicyFrom builds a policy from generation settings.
func RetryPolicyFrom(g domain.GenerationSettings) RetryPolicy {
	p := DefaultRetryPolicy()
	if g.MaxRetries >= 0 {
		p.MaxRetries = g.MaxRetries
	}
	if g.Backoff > 0 {
		p.Base = g.Backoff
	}
	return p
}

// backoff builds a fresh backoff; go-retry backoffs are stateful.
func (p RetryPolicy) backoff() retry.Backoff {
	base := p.Base
	if base <= 0 {
		base = defaultBackoff
	}
	b := retry.NewExponential(base)
	if p.Max > 0 {
		b = retry.WithCappedDuration(p.Max, b)
	}
	if p.Jitter > 0 {
		b = retry.WithJitter(p.Jitter, b)
	}
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return retry.WithMaxRetries(uint64(retries), b) // #nosec G115 -- clamped above
}

// withRetry runs fn under policy, retrying only transient failures.
// It returns the number of attempts made and the last error.
func withRetry(ctx context.Context, policy RetryPolicy, op string, fn func(ctx context.Context) error) (int, error) {
	attempts := 0
	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		attempts++
		callErr := fn(ctx)
		if callErr == nil {
			return nil
		}
		if isRetryable(ctx, callErr) {
			logger.Debug("%s: attempt %d failed, will retry: %v", op, attempts, callErr)
			return retry.RetryableError(callErr)
		}
		return callErr
	})
	return attempts, err
}

// isRetryable reports whether err is a transient provider failure.
// Cancellation of the caller's context and validation errors are never retried.
func isRetryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrValidation) {
		return false
	}
	if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrMalformedResponse) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	var statusErr driven.StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.StatusCode()
		return code == 408 || code == 429 || code >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
