package backoff

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

const minDelay = 100 * time.Millisecond

// Jitter returns an exponential delay with full jitter, never below 100ms.
//
//	delay = max(minDelay, rand(0, min(cap, base * 2^attempt)))
func Jitter(attempt int, base, cap time.Duration) time.Duration {
	ceiling := float64(base) * math.Pow(2, float64(attempt))
	if ceiling > float64(cap) || ceiling <= 0 {
		ceiling = float64(cap)
	}
	if ceiling < float64(minDelay) {
		return minDelay
	}
	return max(time.Duration(rand.Int64N(int64(ceiling))), minDelay)
}

// Policy is a base/cap pair with a failure counter, used by loops that retry
// the same operation until it succeeds.
type Policy struct {
	Base time.Duration
	Cap  time.Duration

	attempt int
}

// Next returns the delay before the next retry and advances the counter.
func (p *Policy) Next() time.Duration {
	d := Jitter(p.attempt, p.Base, p.Cap)
	p.attempt++
	return d
}

// Attempts returns the number of consecutive failures since the last Reset.
func (p *Policy) Attempts() int { return p.attempt }

// Reset clears the failure counter after a success.
func (p *Policy) Reset() { p.attempt = 0 }

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter
// case.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
