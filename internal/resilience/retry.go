package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
)

// RetryConfig holds configuration for the retry wrapper.
type RetryConfig struct {
	MaxAttempts int           // Total attempts including the first call
	BaseBackoff time.Duration // Delay before the second attempt
	Jitter      time.Duration // Upper bound of the random delay added to each backoff
}

// DefaultRetryConfig returns the provider retry policy: four attempts,
// 4s doubling backoff and up to one second of jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		BaseBackoff: 4 * time.Second,
		Jitter:      time.Second,
	}
}

// Retrier wraps remote calls with the classification policy.
type Retrier struct {
	config RetryConfig

	// OnQuota runs once per quota failure, before the error is returned.
	OnQuota func()

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration
	logger *log.Logger
}

// RetrierOption configures a Retrier.
type RetrierOption func(*Retrier)

// WithSleep replaces the backoff sleeper.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) RetrierOption {
	return func(r *Retrier) { r.sleep = sleep }
}

// WithJitter replaces the jitter source.
func WithJitter(jitter func(max time.Duration) time.Duration) RetrierOption {
	return func(r *Retrier) { r.jitter = jitter }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) RetrierOption {
	return func(r *Retrier) { r.logger = logger }
}

// NewRetrier creates a retrier. Non-positive attempts fall back to one.
func NewRetrier(config RetryConfig, opts ...RetrierOption) *Retrier {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	r := &Retrier{
		config: config,
		sleep:  sleepContext,
		jitter: randomJitter,
		logger: log.Default().WithPrefix("retry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backoff returns the delay after the given zero-based attempt, without jitter.
func (r *Retrier) Backoff(attempt int) time.Duration {
	return r.config.BaseBackoff * time.Duration(1<<attempt)
}

// Do runs fn until it succeeds, fails permanently, or attempts run out.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		switch Classify(err) {
		case KindQuotaExhausted:
			r.logger.Warn("Quota exhausted", "attempt", attempt+1, "err", err)
			if r.OnQuota != nil {
				r.OnQuota()
			}
			return &Error{Kind: KindQuotaExhausted, Message: "provider quota exhausted", Cause: err}

		case KindAudioGenFailed:
			r.logger.Error("Audio conversion failed for this prompt", "err", err)
			return &Error{Kind: KindAudioGenFailed, Message: "provider returned no audio", Cause: err}

		case KindTransient:
			if attempt == r.config.MaxAttempts-1 {
				return err
			}
			delay := r.Backoff(attempt) + r.jitter(r.config.Jitter)
			r.logger.Debug("Transient failure, backing off", "attempt", attempt+1, "delay", delay, "err", err)
			if err := r.sleep(ctx, delay); err != nil {
				return err
			}

		default:
			return err
		}
	}

	return lastErr
}

// Call is Do for functions that return a value.
func Call[T any](ctx context.Context, r *Retrier, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
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

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}
