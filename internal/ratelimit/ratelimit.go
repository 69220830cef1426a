package ratelimit

import (
	"context"
	"math/rand"
	"time"
)

// Waiter delays the caller before it issues work against the remote site.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Jitter waits a uniformly random delay in [min, max) on every call, so that
// tasks admitted together do not hit the site in the same instant.
type Jitter struct {
	minDelay time.Duration
	maxDelay time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewJitter(minDelay, maxDelay time.Duration) *Jitter {
	return &Jitter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		sleep:    Sleep,
	}
}

func (j *Jitter) Wait(ctx context.Context) error {
	return j.sleep(ctx, j.Delay())
}

// Delay draws the next delay without waiting.
func (j *Jitter) Delay() time.Duration {
	if j.maxDelay <= j.minDelay {
		return j.minDelay
	}
	delta := j.maxDelay - j.minDelay
	return j.minDelay + time.Duration(rand.Int63n(int64(delta)))
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoWait is a Waiter that returns immediately.
type NoWait struct{}

func (NoWait) Wait(ctx context.Context) error {
	return ctx.Err()
}
