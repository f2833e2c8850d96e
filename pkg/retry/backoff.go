package retry

import (
	"context"
	"time"

	errs "mediacrawl/pkg/errors"
)

// BackoffStrategy computes the delay before the next attempt
type BackoffStrategy interface {
	// NextDelay returns the delay after the given failed attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// ConstantBackoff waits the same delay after every failure
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// ClassifiedBackoff picks a delay from the type of the failure: transient
// renderer errors (navigation, driver, timeout) get the short delay, anything
// else the long one.
type ClassifiedBackoff struct {
	Transient time.Duration
	Other     time.Duration
}

// DelayFor returns the delay to wait after err
func (cb ClassifiedBackoff) DelayFor(err error) time.Duration {
	if errs.IsTransient(errs.Classify(err)) {
		return cb.Transient
	}
	return cb.Other
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
