package app

import (
	"context"
	"math/rand"
	"time"
)

// DefaultRetryInterval is the pause between failed connect attempts.
const DefaultRetryInterval = 3 * time.Second

// SleepFunc waits for d, returning early with ctx.Err() if ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Backoff paces connect retries. With initial == max it is a fixed interval;
// otherwise the delay doubles after every wait up to max.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
	jitter  float64
	sleep   SleepFunc
}

// NewBackoff creates a backoff growing from initial to max.
func NewBackoff(initial, max time.Duration) *Backoff {
	if max < initial {
		max = initial
	}
	return &Backoff{
		initial: initial,
		max:     max,
		current: initial,
		sleep:   sleepContext,
	}
}

// NewFixedBackoff creates a backoff that always waits interval.
func NewFixedBackoff(interval time.Duration) *Backoff {
	return NewBackoff(interval, interval)
}

// WithJitter spreads each wait by ±fraction of its duration.
func (b *Backoff) WithJitter(fraction float64) *Backoff {
	b.jitter = fraction
	return b
}

// WithSleep replaces the function used to wait.
func (b *Backoff) WithSleep(fn SleepFunc) *Backoff {
	if fn != nil {
		b.sleep = fn
	}
	return b
}

// Wait sleeps for the current delay and advances it.
func (b *Backoff) Wait(ctx context.Context) error {
	d := b.current
	if b.jitter > 0 {
		d = time.Duration(float64(d) * (1 + b.jitter*(rand.Float64()*2-1)))
	}

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}

	return b.sleep(ctx, d)
}

// Reset goes back to the initial delay.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// Current returns the delay the next Wait will use, before jitter.
func (b *Backoff) Current() time.Duration {
	return b.current
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
