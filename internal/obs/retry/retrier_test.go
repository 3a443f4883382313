package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noWait struct{}

func (noWait) Next(int) time.Duration { return 0 }

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Name: "t", Attempts: 3, Backoff: noWait{}}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	var exhausted error
	err := Do(context.Background(), Policy{
		Attempts:  5,
		Backoff:   noWait{},
		Retryable: func(err error) bool { return !errors.Is(err, permanent) },
		OnExhaust: func(err error) { exhausted = err },
	}, func(context.Context) error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, exhausted, permanent)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := Do(ctx, Policy{Attempts: 3, Backoff: ExpoJitter{Base: time.Hour}}, func(context.Context) error {
		cancel()
		return errors.New("boom")
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestExpoJitter_CappedAtMax(t *testing.T) {
	b := ExpoJitter{Base: time.Second, Max: 5 * time.Second}
	assert.Equal(t, time.Second, b.Next(0))
	assert.Equal(t, 4*time.Second, b.Next(2))
	assert.Equal(t, 5*time.Second, b.Next(10))
}

func TestPublishPolicy_DoesNotRetryCancellation(t *testing.T) {
	p := PublishPolicy("user-events", nil)
	assert.False(t, p.Retryable(context.Canceled))
	assert.True(t, p.Retryable(errors.New("broker unavailable")))
}
