package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBroker_Subscribe(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := broker.Subscribe(ctx)

	broker.Publish(DocumentEvent, "start")

	select {
	case event := <-ch:
		require.Equal(t, "start", event.Payload)
		require.Equal(t, DocumentEvent, event.Type)
		require.False(t, event.Timestamp.IsZero())
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "timeout waiting for event")
	}
}

func TestBroker_MultipleSubscribers(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	ctx := context.Background()

	ch1 := broker.Subscribe(ctx)
	ch2 := broker.Subscribe(ctx)

	require.Equal(t, 2, broker.SubscriberCount())

	broker.Publish(StatusEvent, 42)

	for i, ch := range []<-chan Event[int]{ch1, ch2} {
		select {
		case event := <-ch:
			require.Equal(t, 42, event.Payload, "subscriber %d", i)
			require.Equal(t, StatusEvent, event.Type, "subscriber %d", i)
		case <-time.After(100 * time.Millisecond):
			require.Fail(t, "timeout waiting for event", "subscriber %d", i)
		}
	}
}

func TestBroker_ContextCancellation(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())

	ch := broker.Subscribe(ctx)
	require.Equal(t, 1, broker.SubscriberCount())

	cancel()
	require.Eventually(t, func() bool { return broker.SubscriberCount() == 0 },
		time.Second, 5*time.Millisecond, "cleanup goroutine should unsubscribe")

	_, ok := <-ch
	require.False(t, ok, "channel should be closed")
}

func TestBroker_PublishDropsWhenFull(t *testing.T) {
	broker := NewBrokerWithBuffer[int](1)
	defer broker.Close()

	ch := broker.Subscribe(context.Background())

	broker.Publish(DocumentEvent, 1)

	done := make(chan struct{})
	go func() {
		broker.Publish(DocumentEvent, 2)
		broker.Publish(DocumentEvent, 3)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "Publish blocked")
	}

	event := <-ch
	require.Equal(t, 1, event.Payload)
	require.Equal(t, int64(2), broker.Dropped(), "both overflowing events should be counted")
}

func TestBroker_DeliverWaitsForSpace(t *testing.T) {
	broker := NewBrokerWithBuffer[int](1)
	defer broker.Close()

	ch := broker.Subscribe(context.Background())

	ctx := context.Background()
	require.NoError(t, broker.Deliver(ctx, DocumentEvent, 1))

	delivered := make(chan error, 1)
	go func() { delivered <- broker.Deliver(ctx, DocumentEvent, 2) }()

	select {
	case <-delivered:
		require.Fail(t, "Deliver should wait while the buffer is full")
	case <-time.After(30 * time.Millisecond):
	}

	require.Equal(t, 1, (<-ch).Payload)
	require.NoError(t, <-delivered)
	require.Equal(t, 2, (<-ch).Payload)
	require.Zero(t, broker.Dropped())
}

func TestBroker_DeliverHonoursContext(t *testing.T) {
	broker := NewBrokerWithBuffer[int](0)
	defer broker.Close()

	_ = broker.Subscribe(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := broker.Deliver(ctx, DocumentEvent, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBroker_DeliverSkipsCancelledSubscriber(t *testing.T) {
	broker := NewBrokerWithBuffer[int](0)
	defer broker.Close()

	subCtx, cancelSub := context.WithCancel(context.Background())
	_ = broker.Subscribe(subCtx)

	done := make(chan error, 1)
	go func() { done <- broker.Deliver(context.Background(), DocumentEvent, 1) }()

	time.Sleep(10 * time.Millisecond)
	cancelSub()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		require.Fail(t, "Deliver should give up on a cancelled subscriber")
	}
}

func TestBroker_Close(t *testing.T) {
	broker := NewBroker[string]()

	ctx := context.Background()

	ch1 := broker.Subscribe(ctx)
	ch2 := broker.Subscribe(ctx)

	broker.Close()

	_, ok1 := <-ch1
	_, ok2 := <-ch2
	require.False(t, ok1, "ch1 should be closed")
	require.False(t, ok2, "ch2 should be closed")
	require.Equal(t, 0, broker.SubscriberCount())

	ch3 := broker.Subscribe(ctx)
	_, ok3 := <-ch3
	require.False(t, ok3, "ch3 should be closed immediately")

	broker.Publish(DocumentEvent, "late")
	require.NoError(t, broker.Deliver(ctx, DocumentEvent, "late"))
}

func TestBroker_CloseIdempotent(t *testing.T) {
	broker := NewBroker[string]()
	ch := broker.Subscribe(context.Background())

	broker.Close()
	broker.Close()

	_, ok := <-ch
	require.False(t, ok, "channel should be closed")
}
