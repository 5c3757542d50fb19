package retry

import (
	"context"
	"time"

	"eventgate/internal/clock"
)

// Policy describes how long to wait between attempts. The zero value
// retries immediately and forever, which is rarely what you want.
type Policy struct {
	// BaseInterval is the delay after the first failed attempt.
	BaseInterval time.Duration

	// MaxInterval caps the delay between attempts. Zero means no cap.
	MaxInterval time.Duration

	// Multiplier is applied to the delay after each attempt. Values
	// below 1 are treated as 1 (fixed backoff).
	Multiplier float64

	// MaxAttempts limits the number of attempts. Zero means unlimited.
	MaxAttempts int
}

// Fixed returns a policy with a constant delay between attempts.
func Fixed(interval time.Duration) Policy {
	return Policy{
		BaseInterval: interval,
		Multiplier:   1,
	}
}

// Exponential returns a policy that doubles the delay after each attempt,
// up to the given cap.
func Exponential(base, max time.Duration) Policy {
	return Policy{
		BaseInterval: base,
		MaxInterval:  max,
		Multiplier:   2,
	}
}

// Next returns the delay before the given attempt. Attempts are counted
// from zero: Next(0) is the delay after the first failure.
func (p Policy) Next(attempt int) time.Duration {
	d := p.BaseInterval

	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * mult)

		if p.MaxInterval > 0 && d >= p.MaxInterval {
			return p.MaxInterval
		}
	}

	if p.MaxInterval > 0 && d > p.MaxInterval {
		d = p.MaxInterval
	}

	return d
}

// Do runs fn until it succeeds, the policy runs out of attempts, or the
// context is canceled. The last error from fn is returned in the latter
// two cases.
func Do(ctx context.Context, cl clock.Clock, p Policy, fn func(ctx context.Context) error) error {
	var err error

	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}

		if p.MaxAttempts > 0 && attempt+1 >= p.MaxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return err
		case <-cl.After(p.Next(attempt)):
		}
	}
}
