package dispatch

import "time"

// RetryPolicy decides whether a failed dispatch attempt should run again
// and after how long. Attempt numbering starts at 1.
type RetryPolicy interface {
	NextDelay(attempt int) (time.Duration, bool)
}

// NoRetry fails the message on the first unsuccessful attempt. Recovery on
// the next process start remains the delivery backstop.
type NoRetry struct{}

func (NoRetry) NextDelay(int) (time.Duration, bool) { return 0, false }

// FixedBackoff retries up to MaxAttempts total attempts with a constant
// delay between them.
type FixedBackoff struct {
	MaxAttempts int
	Delay       time.Duration
}

func (f FixedBackoff) NextDelay(attempt int) (time.Duration, bool) {
	if attempt >= f.MaxAttempts {
		return 0, false
	}
	return f.Delay, true
}
