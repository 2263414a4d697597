package scripttest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunOnce(t *testing.T) {
	scheduler := NewScheduler(0, log.NewLogger(log.DiscardHandler()))
	var calls atomic.Int32
	scheduler.RegisterCallback(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Equal(t, int32(1), calls.Load())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "run-once mode must not schedule further runs")
}

func TestScheduler_Periodic(t *testing.T) {
	scheduler := NewScheduler(10*time.Millisecond, log.NewLogger(log.DiscardHandler()))
	callChan := make(chan struct{}, 16)
	scheduler.RegisterCallback(func(ctx context.Context) error {
		select {
		case callChan <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, scheduler.Start(ctx))

	for i := 0; i < 3; i++ {
		select {
		case <-callChan:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for run %d", i+1)
		}
	}

	require.NoError(t, scheduler.Stop())
	require.NoError(t, scheduler.WaitForShutdown(context.Background()))
	assert.True(t, scheduler.Stopped())
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	scheduler := NewScheduler(time.Hour, log.NewLogger(log.DiscardHandler()))
	scheduler.RegisterCallback(func(ctx context.Context) error { return nil })
	require.NoError(t, scheduler.Start(context.Background()))
	assert.False(t, scheduler.Stopped())

	require.NoError(t, scheduler.Stop())
	require.NoError(t, scheduler.Stop())
	require.NoError(t, scheduler.WaitForShutdown(context.Background()))
	assert.True(t, scheduler.Stopped())
}

func TestScheduler_ContextCancelStopsRunner(t *testing.T) {
	scheduler := NewScheduler(time.Hour, log.NewLogger(log.DiscardHandler()))
	scheduler.RegisterCallback(func(ctx context.Context) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))

	cancel()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, scheduler.WaitForShutdown(waitCtx))
	assert.True(t, scheduler.Stopped())
}

func TestScheduler_Errors(t *testing.T) {
	t.Run("no callback", func(t *testing.T) {
		scheduler := NewScheduler(0, log.NewLogger(log.DiscardHandler()))
		err := scheduler.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "callback must be registered")
	})

	t.Run("first run fails", func(t *testing.T) {
		boom := errors.New("boom")
		scheduler := NewScheduler(10*time.Millisecond, log.NewLogger(log.DiscardHandler()))
		var calls atomic.Int32
		scheduler.RegisterCallback(func(ctx context.Context) error {
			calls.Add(1)
			return boom
		})
		require.ErrorIs(t, scheduler.Start(context.Background()), boom)

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int32(1), calls.Load(), "no periodic runs after a failed first run")
	})
}
