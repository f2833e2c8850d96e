// Package retry holds the crawler's retry policies as plain values.
//
// Do drives an operation with a Config; ConstantBackoff gives a fixed delay
// and ClassifiedBackoff chooses between a short and a long delay from the
// error type. Tests pass zero delays.
//
//	err := retry.Do(func() error {
//		return login(ctx)
//	}, &retry.Config{
//		MaxAttempts: 0, // forever
//		Backoff:     retry.ConstantBackoff{Delay: 5 * time.Second},
//		Context:     ctx,
//	})
package retry
