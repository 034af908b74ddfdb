// Package retry runs an operation with bounded exponential backoff.
package retry

import "time"

// Policy configures Do.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first. Values below 1 mean 1.
	MaxAttempts int

	// InitialDelay is the pause after the first failure. It doubles after every further failure.
	InitialDelay time.Duration

	// OnRetry, if set, is called after a failed attempt that will be retried.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Sleep replaces time.Sleep, mainly for tests.
	Sleep func(time.Duration)
}

// Do calls op until it succeeds or MaxAttempts calls have failed, and returns
// the last error in that case. The backoff sleep cannot be interrupted.
func Do[T any](op func() (T, error), p Policy) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	delay := p.InitialDelay
	var (
		value T
		err   error
	)
	for i := 1; i <= attempts; i++ {
		value, err = op()
		if err == nil {
			return value, nil
		}
		if i == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(i, err, delay)
		}
		sleep(delay)
		delay *= 2
	}
	return value, err
}
