package events

import "errors"

var (
	// ErrEventChannelFull is returned by Publish when the bus's internal
	// queue is saturated; the event is dropped.
	ErrEventChannelFull = errors.New("events: channel full, event dropped")

	// ErrSubscriberBufferFull is returned by a subscriber's Send when its
	// own delivery buffer is saturated.
	ErrSubscriberBufferFull = errors.New("events: subscriber buffer full, event dropped")
)
