package speech

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle spaces outbound synthesis calls and holds a cooldown window
// after the provider reports quota exhaustion.
type Throttle struct {
	spacing  time.Duration
	cooldown time.Duration

	limiter       *rate.Limiter
	cooldownUntil time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu sync.Mutex
}

// ThrottleOption configures a Throttle.
type ThrottleOption func(*Throttle)

// WithClock replaces the wall clock and sleeper, for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) ThrottleOption {
	return func(t *Throttle) {
		t.now = now
		t.sleep = sleep
	}
}

// NewThrottle creates a throttle granting at most one call per spacing and
// suppressing calls for cooldown after TripCooldown.
func NewThrottle(spacing, cooldown time.Duration, opts ...ThrottleOption) *Throttle {
	t := &Throttle{
		spacing:  spacing,
		cooldown: cooldown,
		limiter:  rate.NewLimiter(rate.Every(spacing), 1),
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Acquire blocks until a call may be issued. It fails fast with
// ErrCooldown while the cooldown window is open.
func (t *Throttle) Acquire(ctx context.Context) error {
	t.mu.Lock()
	now := t.now()
	if now.Before(t.cooldownUntil) {
		t.mu.Unlock()
		return ErrCooldown
	}
	r := t.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	t.mu.Unlock()

	if delay > 0 {
		if err := t.sleep(ctx, delay); err != nil {
			t.mu.Lock()
			r.CancelAt(t.now())
			t.mu.Unlock()
			return err
		}
	}

	// The cooldown may have started while we were waiting for our slot.
	if t.OnCooldown() {
		return ErrCooldown
	}
	return nil
}

// TripCooldown opens the cooldown window. An already longer window is kept.
func (t *Throttle) TripCooldown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	until := t.now().Add(t.cooldown)
	if until.After(t.cooldownUntil) {
		t.cooldownUntil = until
	}
}

// OnCooldown reports whether calls are currently suppressed.
func (t *Throttle) OnCooldown() bool {
	return t.CooldownRemaining() > 0
}

// CooldownRemaining returns the time left in the cooldown window.
func (t *Throttle) CooldownRemaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	rem := t.cooldownUntil.Sub(t.now())
	if rem < 0 {
		return 0
	}
	return rem
}

// CooldownSeconds returns the remaining cooldown rounded up to whole seconds.
func (t *Throttle) CooldownSeconds() int {
	rem := t.CooldownRemaining()
	return int(math.Ceil(rem.Seconds()))
}

// CooldownUntil returns the end of the current cooldown window.
func (t *Throttle) CooldownUntil() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cooldownUntil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
