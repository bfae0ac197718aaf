package app

import (
	"context"
	"math/rand"
	"time"
)

// Default backoff configuration values for receive errors.
const (
	DefaultBackoffInitial = 100 * time.Millisecond
	DefaultBackoffMax     = 5 * time.Second
)

// backoff implements exponential backoff with jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Wait blocks for the current backoff duration and increases it.
// It returns ctx.Err() if ctx is done first.
func (b *backoff) Wait(ctx context.Context) error {
	// ±20% jitter
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	timer := time.NewTimer(time.Duration(float64(b.current) + jitter))
	defer timer.Stop()

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reset resets the backoff to the initial duration.
func (b *backoff) Reset() {
	b.current = b.initial
}

// Current returns the current backoff duration.
func (b *backoff) Current() time.Duration {
	return b.current
}
