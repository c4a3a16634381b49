package db

import (
	"context"
	"time"
)

const (
	retryAttempts = 5
	retryBaseWait = 50 * time.Millisecond
	retryMaxWait  = 2 * time.Second
)

// withRetry runs fn, retrying on transient contention errors with bounded
// exponential backoff. Writers on this store race only briefly (worker pool
// vs ingest), so a handful of attempts suffices.
func withRetry(ctx context.Context, fn func() error) error {
	wait := retryBaseWait
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		err = fn()
		if err == nil || !isRetryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > retryMaxWait {
			wait = retryMaxWait
		}
	}
	return err
}
