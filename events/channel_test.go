package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

func drain(t *testing.T, rx *Receiver) []Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out []Envelope
	for {
		env, ok, err := rx.Recv(ctx)
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, env)
	}
}

func kinds(envs []Envelope) []types.EventKind {
	out := make([]types.EventKind, len(envs))
	for i, env := range envs {
		out[i] = env.Event.Kind()
	}
	return out
}

func TestChannel_FIFOAndClose(t *testing.T) {
	tx, rx := NewChannel()
	require.NoError(t, tx.Send(types.WaitEvent{ID: 1}))
	require.NoError(t, tx.Send(types.ResultEvent{ID: 1, Result: types.ResultOk}))
	require.NoError(t, tx.Send(types.CompletedEvent{}))
	tx.Close()

	envs := drain(t, rx)
	assert.Equal(t, []types.EventKind{types.EventWait, types.EventResult, types.EventCompleted}, kinds(envs))
	for _, env := range envs {
		assert.Equal(t, 0, env.ProducerID)
	}
}

func TestChannel_StaysOpenWhileAnyHandleLives(t *testing.T) {
	tx, rx := NewChannel()
	clone := tx.Clone()
	other := tx.Producer(3)
	tx.Close()
	tx.Close()

	require.NoError(t, clone.Send(types.WaitEvent{ID: 1}))
	clone.Close()
	require.NoError(t, other.Send(types.SigintEvent{}))
	other.Close()

	envs := drain(t, rx)
	require.Len(t, envs, 2)
	assert.Equal(t, 0, envs[0].ProducerID)
	assert.Equal(t, 3, envs[1].ProducerID)
	assert.Equal(t, 3, other.ID())
}

func TestChannel_StdioSync(t *testing.T) {
	tx, rx := NewChannel()
	out := tx.Output()

	_, err := fmt.Fprint(out, "hello ")
	require.NoError(t, err)
	require.NoError(t, tx.Send(types.WaitEvent{ID: 1}))
	_, err = fmt.Fprint(out, "world\n")
	require.NoError(t, err)
	require.NoError(t, tx.Send(types.ResultEvent{ID: 1, Result: types.ResultOk}))
	_, err = fmt.Fprint(out, "tail")
	require.NoError(t, err)
	tx.Close()

	envs := drain(t, rx)
	assert.Equal(t, []types.EventKind{
		types.EventWait,
		types.EventOutput,
		types.EventResult,
		types.EventOutput,
	}, kinds(envs))
	assert.Equal(t, "hello world\n", string(envs[1].Event.(types.OutputEvent).Data))
	assert.Equal(t, "tail", string(envs[3].Event.(types.OutputEvent).Data))
}

func TestChannel_SendAfterReceiverClose(t *testing.T) {
	tx, rx := NewChannel()
	require.NoError(t, tx.Send(types.WaitEvent{ID: 1}))
	rx.Close()

	err := tx.Send(types.CompletedEvent{})
	assert.True(t, errors.Is(err, ErrChannelClosed))

	_, err = tx.Output().Write([]byte("x"))
	assert.True(t, errors.Is(err, ErrChannelClosed))
}

func TestChannel_SendOnClosedHandle(t *testing.T) {
	tx, _ := NewChannel()
	keep := tx.Clone()
	defer keep.Close()
	tx.Close()
	assert.ErrorIs(t, tx.Send(types.CompletedEvent{}), ErrChannelClosed)
}

func TestChannel_CloneOfClosedHandle(t *testing.T) {
	tx, rx := NewChannel()
	require.NoError(t, tx.Send(types.WaitEvent{ID: 1}))
	tx.Close()

	clone := tx.Clone()
	other := tx.Producer(2)
	assert.ErrorIs(t, clone.Send(types.CompletedEvent{}), ErrChannelClosed)
	assert.ErrorIs(t, other.Send(types.CompletedEvent{}), ErrChannelClosed)
	clone.Close()
	other.Close()

	// The channel still ends once the original handle is gone.
	assert.Equal(t, []types.EventKind{types.EventWait}, kinds(drain(t, rx)))
}

func TestChannel_RecvHonorsContext(t *testing.T) {
	tx, rx := NewChannel()
	defer tx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok, err := rx.Recv(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChannel_ConcurrentProducers(t *testing.T) {
	tx, rx := NewChannel()
	const producers, perProducer = 4, 200

	var wg sync.WaitGroup
	for p := 1; p <= producers; p++ {
		sender := tx.Producer(p)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sender.Close()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, sender.Send(types.WaitEvent{ID: types.ID(i)}))
			}
		}()
	}
	tx.Close()

	done := make(chan []Envelope)
	go func() { done <- drain(t, rx) }()
	wg.Wait()
	envs := <-done

	require.Len(t, envs, producers*perProducer)
	next := make(map[int]types.ID)
	for _, env := range envs {
		wait := env.Event.(types.WaitEvent)
		assert.Equal(t, next[env.ProducerID], wait.ID, "per-producer order")
		next[env.ProducerID]++
	}
}
