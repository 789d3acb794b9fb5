package tracker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixelka/massmailer/internal/tracker"
	"github.com/mixelka/massmailer/pkg/models"
)

func newTracker(maxAttempts int) *tracker.Tracker {
	return tracker.New(tracker.Policy{
		MaxAttempts: maxAttempts,
		Interval:    time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPoll(t *testing.T) {
	t.Parallel()

	t.Run("first positive state wins", func(t *testing.T) {
		t.Parallel()

		calls := 0
		state := newTracker(5).Poll(context.Background(), func(ctx context.Context) (models.DeliveryState, error) {
			calls++
			return models.StateDelivered, nil
		})

		assert.Equal(t, models.StateDelivered, state)
		assert.Equal(t, 1, calls, "polling must stop at the first classification")
	})

	t.Run("waits out unsettled checks", func(t *testing.T) {
		t.Parallel()

		calls := 0
		state := newTracker(5).Poll(context.Background(), func(ctx context.Context) (models.DeliveryState, error) {
			calls++
			if calls < 3 {
				return "", nil
			}
			return models.StateInboxed, nil
		})

		assert.Equal(t, models.StateInboxed, state)
		assert.Equal(t, 3, calls)
	})

	t.Run("unknown after exhausting attempts", func(t *testing.T) {
		t.Parallel()

		calls := 0
		state := newTracker(4).Poll(context.Background(), func(ctx context.Context) (models.DeliveryState, error) {
			calls++
			return "", nil
		})

		assert.Equal(t, models.StateUnknown, state)
		assert.Equal(t, 4, calls)
	})

	t.Run("errors consume attempts", func(t *testing.T) {
		t.Parallel()

		calls := 0
		state := newTracker(3).Poll(context.Background(), func(ctx context.Context) (models.DeliveryState, error) {
			calls++
			return "", errors.New("transient fetch failure")
		})

		assert.Equal(t, models.StateUnknown, state)
		assert.Equal(t, 3, calls)
	})

	t.Run("error then success", func(t *testing.T) {
		t.Parallel()

		calls := 0
		state := newTracker(5).Poll(context.Background(), func(ctx context.Context) (models.DeliveryState, error) {
			calls++
			if calls == 1 {
				return "", errors.New("transient fetch failure")
			}
			return models.StateSpammed, nil
		})

		assert.Equal(t, models.StateSpammed, state)
		assert.Equal(t, 2, calls)
	})

	t.Run("cancelled context degrades to unknown", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		tr := tracker.New(tracker.Policy{
			MaxAttempts: 5,
			Interval:    time.Hour,
		}, slog.New(slog.NewTextHandler(io.Discard, nil)))

		done := make(chan models.DeliveryState, 1)
		go func() {
			done <- tr.Poll(ctx, func(ctx context.Context) (models.DeliveryState, error) {
				return "", nil
			})
		}()

		select {
		case state := <-done:
			assert.Equal(t, models.StateUnknown, state)
		case <-time.After(time.Second):
			t.Fatal("poll did not react to cancellation")
		}
	})
}

func TestDefaultPolicy(t *testing.T) {
	t.Parallel()

	p := tracker.DefaultPolicy()
	require.Equal(t, 5, p.MaxAttempts)
	require.Equal(t, 5*time.Second, p.Interval)
}
