package resilience

import (
	"context"
	"time"

	"github.com/omniagent/agentpaycore/internal/apperr"
	"github.com/omniagent/agentpaycore/internal/obslog"
	"github.com/omniagent/agentpaycore/internal/obsmetrics"
)

// RetryPolicy is exponential backoff with base 1s, multiplier 2, capped at
// MaxAttempts calls of fn (spec §4.7). With the default five attempts the
// waits between them are 1, 2, 4 and 8s, 15s in total; MaxDelay caps any
// single wait at 16s.
// Retries only fire for apperr.IsTransient errors; guard blocks, validation
// errors, insufficient balance, and circuit-open are never retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	Metrics     *obsmetrics.Registry

	log *obslog.Logger
}

// DefaultRetryPolicy is the policy mandated by spec §4.7.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Second,
		Multiplier:  2,
		MaxDelay:    16 * time.Second,
		log:         obslog.New("retry"),
	}
}

// Do runs fn, retrying on transient errors per the backoff schedule. It
// returns the last error if every attempt fails, or nil on the first
// success. A non-transient error (or context cancellation) returns
// immediately without further attempts.
func (p *RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	logger := p.log
	if logger == nil {
		logger = obslog.New("retry")
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 && p.Metrics != nil {
				p.Metrics.RetryAttempts.WithLabelValues("success").Inc()
			}
			return nil
		}
		lastErr = err

		if !apperr.IsTransient(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			if p.Metrics != nil {
				p.Metrics.RetryAttempts.WithLabelValues("exhausted").Inc()
			}
			return lastErr
		}

		logger.Printf("retrying after transient error (attempt %d/%d): %v", attempt, p.MaxAttempts, err)
		if p.Metrics != nil {
			p.Metrics.RetryAttempts.WithLabelValues("retry").Inc()
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return lastErr
}
