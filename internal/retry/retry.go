// Package retry runs an operation under a bounded exponential backoff,
// re-attempting only failures the caller classifies as retryable.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/nikhilbhutani/docreader/internal/apperr"
	"github.com/nikhilbhutani/docreader/internal/config"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type Policy struct {
	MaxAttempts int
	Initial     time.Duration
	Min         time.Duration
	Max         time.Duration
	Multiplier  float64

	// Sleep defaults to a timer-based wait; tests replace it.
	Sleep Sleeper
}

// DefaultPolicy is three attempts total, waiting 4s then 8s, capped at 10s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Initial:     4 * time.Second,
		Min:         4 * time.Second,
		Max:         10 * time.Second,
		Multiplier:  2,
	}
}

// FromConfig overlays the LLM_* retry settings on DefaultPolicy.
func FromConfig(cfg config.RetryConfig) Policy {
	p := DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.MinBackoff > 0 {
		p.Initial = cfg.MinBackoff
		p.Min = cfg.MinBackoff
	}
	if cfg.MaxBackoff > 0 {
		p.Max = cfg.MaxBackoff
	}
	return p
}

// Delay returns the wait that follows the n-th failed attempt (n >= 1).
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := time.Duration(float64(p.Initial) * math.Pow(mult, float64(n-1)))
	if d < p.Min {
		d = p.Min
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}

func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. An exhausted budget yields an error wrapping
// apperr.ErrTransientFailure and the last cause.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			backoff := p.Delay(attempt - 1)
			slog.Debug("retrying", "attempt", attempt, "backoff", backoff, "error", lastErr)
			if err := sleep(ctx, backoff); err != nil {
				return fmt.Errorf("retry aborted after %d attempts: %w (last error: %v)", attempt-1, err, lastErr)
			}
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !retryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("all %d attempts failed: %w", attempts, apperr.Transient(lastErr))
}
