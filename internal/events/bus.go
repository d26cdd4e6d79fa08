package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Bus manages event subscriptions and broadcasting.
type Bus interface {
	Subscribe(sub Subscriber) error
	Unsubscribe(sub Subscriber) error
	Publish(event Event) error
	ActiveSubscribers() int
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// DefaultBus is the default in-memory Bus implementation.
type DefaultBus struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]struct{}

	eventChan chan Event
	sequence  int64

	logger *slog.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewBus constructs a bus with a 1000-event internal buffer.
func NewBus(logger *slog.Logger) *DefaultBus {
	return &DefaultBus{
		subscribers: make(map[Subscriber]struct{}),
		eventChan:   make(chan Event, 1000),
		logger:      logger.With("component", "event_bus"),
		stopChan:    make(chan struct{}),
	}
}

// Subscribe registers sub to receive future events.
func (b *DefaultBus) Subscribe(sub Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[sub] = struct{}{}
	b.logger.Info("subscriber added", "subscriber_id", sub.ID(), "total", len(b.subscribers))
	return nil
}

// Unsubscribe removes sub and closes it.
func (b *DefaultBus) Unsubscribe(sub Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		sub.Close()
		b.logger.Info("subscriber removed", "subscriber_id", sub.ID(), "total", len(b.subscribers))
	}
	return nil
}

// Publish enqueues event for broadcast, assigning it the next sequence
// number. Non-blocking: a full internal buffer drops the event.
func (b *DefaultBus) Publish(event Event) error {
	event.Sequence = atomic.AddInt64(&b.sequence, 1)
	select {
	case b.eventChan <- event:
		return nil
	default:
		b.logger.Warn("event channel full, dropping event", "type", event.Type, "id", event.ID)
		return ErrEventChannelFull
	}
}

// ActiveSubscribers returns the current subscriber count.
func (b *DefaultBus) ActiveSubscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Start launches the broadcast worker.
func (b *DefaultBus) Start(ctx context.Context) error {
	b.wg.Add(1)
	go b.broadcastWorker(ctx)
	b.logger.Info("event bus started")
	return nil
}

// Stop signals the broadcast worker to exit and waits, bounded by ctx.
func (b *DefaultBus) Stop(ctx context.Context) error {
	close(b.stopChan)
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *DefaultBus) broadcastWorker(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopChan:
			return
		case event := <-b.eventChan:
			b.broadcast(event)
		}
	}
}

func (b *DefaultBus) broadcast(event Event) {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subscribers))
	for s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-sub.Context().Done():
			b.Unsubscribe(sub)
			continue
		default:
		}
		if err := sub.Send(event); err != nil {
			b.logger.Warn("failed to deliver event", "subscriber_id", sub.ID(), "err", err)
			b.Unsubscribe(sub)
		}
	}
}
