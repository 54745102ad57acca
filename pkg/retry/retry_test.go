package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBusy = errors.New("busy")

func isBusy(err error) bool { return errors.Is(err, errBusy) }

func TestConflictRetrier_RetriesUntilSuccess(t *testing.T) {
	var retries []int
	r := ConflictRetrier(5, isBusy, func(attempt int, _ error, _ time.Duration) { retries = append(retries, attempt) })

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errBusy
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestConflictRetrier_Exhausted(t *testing.T) {
	r := ConflictRetrier(3, isBusy, nil)
	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errBusy
	})
	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 3, calls)
}

func TestConflictRetrier_OtherErrorsStopImmediately(t *testing.T) {
	other := errors.New("invalid node")
	calls := 0
	err := ConflictRetrier(5, isBusy, nil).Do(context.Background(), func(context.Context) error {
		calls++
		return other
	})
	assert.ErrorIs(t, err, other)
	assert.Equal(t, 1, calls)
}

func TestRetrier_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := ConflictRetrier(5, isBusy, nil).Do(ctx, func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestRetrier_CancelDuringPauseReturnsLastError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(Config{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, RetryIf: isBusy,
		OnRetry: func(int, error, time.Duration) { cancel() }})

	err := r.Do(ctx, func(context.Context) error { return errBusy })
	assert.ErrorIs(t, err, errBusy)
}

func TestRetrier_Backoff(t *testing.T) {
	r := New(Config{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2})

	assert.Equal(t, 10*time.Millisecond, r.backoff(1))
	assert.Equal(t, 20*time.Millisecond, r.backoff(2))
	assert.Equal(t, 40*time.Millisecond, r.backoff(3))
	assert.Equal(t, 50*time.Millisecond, r.backoff(4))

	jittered := ConflictRetrier(5, isBusy, nil)
	for i := 0; i < 50; i++ {
		d := jittered.backoff(1)
		assert.GreaterOrEqual(t, d, 7*time.Millisecond)
		assert.LessOrEqual(t, d, 13*time.Millisecond)
	}
}
