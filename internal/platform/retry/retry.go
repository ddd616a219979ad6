// Package retry runs idempotent operations a bounded number of times with
// exponential backoff and full jitter.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

const maxShift = 30

// Policy bounds how an operation is retried.
type Policy struct {
	Attempts  int           // total tries, including the first
	BaseDelay time.Duration // delay before the second try, doubled per retry
	MaxDelay  time.Duration // zero means uncapped
}

// Exponential returns base * 2^attempt, clamped against overflow.
func Exponential(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	} else if attempt > maxShift {
		attempt = maxShift
	}
	multiplier := int64(1) << attempt
	if int64(base) > math.MaxInt64/multiplier {
		return time.Duration(math.MaxInt64)
	}
	return base * time.Duration(multiplier)
}

// FullJitter returns a random duration in [0, delay).
func FullJitter(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(delay)))
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context done: %w", ctx.Err())
	}
}

// Do calls op until it succeeds, shouldRetry reports false for its error, the
// policy's attempts are used up, or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, shouldRetry func(error) bool, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := Exponential(p.BaseDelay, attempt-1)
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
			if sleepErr := Sleep(ctx, FullJitter(delay)); sleepErr != nil {
				return err
			}
		}

		err = op(ctx)
		if err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
	}
	return err
}
