package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bus.Start(ctx))
	defer bus.Stop(context.Background())

	sub := NewChannelSubscriber("s1", ctx, 4)
	require.NoError(t, bus.Subscribe(sub))
	assert.Equal(t, 1, bus.ActiveSubscribers())

	require.NoError(t, bus.Publish(New(TypeConfigChanged, map[string]interface{}{"k": "v"}, SourceRecSA)))

	select {
	case evt := <-sub.Events():
		assert.Equal(t, TypeConfigChanged, evt.Type)
		assert.Equal(t, int64(1), evt.Sequence)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bus.Start(ctx))
	defer bus.Stop(context.Background())

	sub := NewChannelSubscriber("s1", ctx, 1)
	require.NoError(t, bus.Subscribe(sub))
	require.NoError(t, bus.Unsubscribe(sub))
	assert.Equal(t, 0, bus.ActiveSubscribers())
}

func TestCancelledSubscriberContextPrunedOnBroadcast(t *testing.T) {
	bus := NewBus(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bus.Start(ctx))
	defer bus.Stop(context.Background())

	subCtx, subCancel := context.WithCancel(ctx)
	sub := NewChannelSubscriber("s1", subCtx, 1)
	require.NoError(t, bus.Subscribe(sub))
	subCancel()

	require.NoError(t, bus.Publish(New(TypeSystemStatus, nil, SourceResolver)))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, bus.ActiveSubscribers())
}
