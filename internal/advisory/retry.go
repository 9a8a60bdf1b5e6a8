package advisory

import (
	"context"
	"fmt"
	"log"
	"time"
)

// RetryPolicy retries a failing call with per-attempt delays. The last delay
// repeats when attempts exceed the delay list.
type RetryPolicy struct {
	MaxAttempts int
	Delays      []time.Duration
}

// DefaultRetryPolicy matches the advisory call budget: three attempts with
// increasing pauses between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delays:      []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second},
	}
}

// Do runs fn until it succeeds, attempts run out, or the context is done.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		log.Printf("[WARN] %s attempt %d/%d failed: %v", op, attempt, attempts, lastErr)

		delay := p.delayFor(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}

func (p RetryPolicy) delayFor(attempt int) time.Duration {
	if len(p.Delays) == 0 {
		return time.Second
	}
	idx := attempt - 1
	if idx >= len(p.Delays) {
		idx = len(p.Delays) - 1
	}
	return p.Delays[idx]
}
