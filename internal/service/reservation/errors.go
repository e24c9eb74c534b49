package reservation

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBusy means another caller holds the ticket type lock.
	ErrBusy = errors.New("ticket type is busy, retry later")
	// ErrTooManyAttempts means every optimistic attempt lost to a concurrent writer.
	ErrTooManyAttempts = errors.New("too many concurrent updates, retry later")
	ErrRateLimited     = errors.New("rate limited")
)

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}

func (e RateLimitedError) Unwrap() error { return ErrRateLimited }
