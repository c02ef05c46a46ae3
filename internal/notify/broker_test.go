package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu        sync.Mutex
	delivered int
	dropped   int
	counts    []int
}

func (o *recordingObserver) EventPublished(_ string, delivered, dropped int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.delivered += delivered
	o.dropped += dropped
}

func (o *recordingObserver) SubscribersChanged(_ string, count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts = append(o.counts, count)
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	var zero T
	return zero
}

func assertEmpty[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event %v", v)
		}
	default:
	}
}

func TestBroker_DeliversToCurrentSubscribers(t *testing.T) {
	b := NewBroker[string](TopicBookAdded, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := b.Subscribe(ctx)
	require.NoError(t, err)
	second, err := b.Subscribe(ctx)
	require.NoError(t, err)

	b.Publish(ctx, "Dune")

	assert.Equal(t, "Dune", receive(t, first))
	assert.Equal(t, "Dune", receive(t, second))
}

func TestBroker_NoReplayForLateSubscribers(t *testing.T) {
	b := NewBroker[string](TopicBookAdded, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	early, err := b.Subscribe(ctx)
	require.NoError(t, err)

	b.Publish(ctx, "Dune")

	late, err := b.Subscribe(ctx)
	require.NoError(t, err)

	b.Publish(ctx, "Children of Dune")

	assert.Equal(t, "Dune", receive(t, early))
	assert.Equal(t, "Children of Dune", receive(t, early))
	assert.Equal(t, "Children of Dune", receive(t, late))
	assertEmpty(t, late)
}

func TestBroker_PreservesOrder(t *testing.T) {
	b := NewBroker[int](TopicBookAdded, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)

	for i := range 10 {
		b.Publish(ctx, i)
	}
	for i := range 10 {
		assert.Equal(t, i, receive(t, ch))
	}
}

func TestBroker_DropsForSlowSubscriber(t *testing.T) {
	obs := &recordingObserver{}
	b := NewBroker[int](TopicBookAdded, nil, WithBuffer(2), WithObserver(obs))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := range 5 {
			b.Publish(ctx, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	assert.Equal(t, 0, receive(t, ch))
	assert.Equal(t, 1, receive(t, ch))
	assertEmpty(t, ch)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 2, obs.delivered)
	assert.Equal(t, 3, obs.dropped)
}

func TestBroker_UnsubscribeOnContextDone(t *testing.T) {
	obs := &recordingObserver{}
	b := NewBroker[string](TopicBookAdded, nil, WithObserver(obs))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, b.SubscriberCount())

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after cancel")
	}
	assert.Equal(t, 0, b.SubscriberCount())

	// Publishing with no subscribers is a no-op.
	b.Publish(context.Background(), "Dune")

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []int{1, 0}, obs.counts)
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker[string](TopicBookAdded, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, ok := <-ch
	assert.False(t, ok)

	_, err = b.Subscribe(ctx)
	require.ErrorIs(t, err, ErrClosed)

	assert.NotPanics(t, func() { b.Publish(ctx, "Dune") })
}
