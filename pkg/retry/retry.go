// Package retry re-runs store transactions that lost a lock or
// serialization race, backing off exponentially with jitter between
// attempts.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Config holds retry configuration.
type Config struct {
	// MaxAttempts counts the first attempt. Default: 3
	MaxAttempts int

	// InitialDelay is the pause before the second attempt. Default: 10ms
	InitialDelay time.Duration

	// MaxDelay caps the pause between attempts. Default: 250ms
	MaxDelay time.Duration

	// Multiplier grows the pause after each attempt. Default: 2.0
	Multiplier float64

	// JitterFactor spreads each pause by up to ±factor of its length.
	JitterFactor float64

	// RetryIf reports whether an error is worth another attempt. A nil
	// RetryIf retries nothing.
	RetryIf func(error) bool

	// OnRetry is called before each pause.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retrier runs an operation until it succeeds, fails with an error RetryIf
// rejects, or runs out of attempts.
type Retrier struct {
	config Config
}

// New creates a Retrier. Zero fields take their defaults.
func New(config Config) *Retrier {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 10 * time.Millisecond
	}
	if config.MaxDelay < config.InitialDelay {
		config.MaxDelay = max(250*time.Millisecond, config.InitialDelay)
	}
	if config.Multiplier < 1 {
		config.Multiplier = 2.0
	}
	config.JitterFactor = min(max(config.JitterFactor, 0), 1)
	return &Retrier{config: config}
}

// ConflictRetrier returns a Retrier for store write contention. It retries
// only errors accepted by isConflict and keeps delays short, since the
// competing transaction usually holds its lock for milliseconds.
func ConflictRetrier(maxAttempts int, isConflict func(error) bool, onRetry func(attempt int, err error, delay time.Duration)) *Retrier {
	return New(Config{
		MaxAttempts:  maxAttempts,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     250 * time.Millisecond,
		Multiplier:   2.0,
		JitterFactor: 0.3,
		RetryIf:      isConflict,
		OnRetry:      onRetry,
	})
}

// Do runs operation. When attempts run out, or ctx ends during a pause, the
// last error of operation is returned unchanged.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt >= r.config.MaxAttempts || r.config.RetryIf == nil || !r.config.RetryIf(err) {
			return err
		}

		delay := r.backoff(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
}

// backoff is InitialDelay * Multiplier^(attempt-1), capped at MaxDelay and
// then jittered.
func (r *Retrier) backoff(attempt int) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	d = math.Min(d, float64(r.config.MaxDelay))
	if r.config.JitterFactor > 0 {
		d += d * r.config.JitterFactor * (rand.Float64()*2 - 1)
	}
	return time.Duration(math.Max(d, 0))
}
