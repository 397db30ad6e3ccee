package events

import (
	"sync"
)

// ChannelEvent provides pub/sub behavior using channels.
// T is the type of the value sent to channels.
type ChannelEvent[T any] struct {
	mu                    sync.RWMutex
	channels              map[uint64]chan<- T
	nextID                uint64
	sendLastEventOnListen bool
	lastEvent             *T
	hasNotified           bool
}

// NewChannelEvent creates a new ChannelEvent instance.
// sendLastEventOnListen: if true, the ChannelEvent remembers the last Notify
// value and sends it to new listeners immediately if Notify has been called
// at least once.
func NewChannelEvent[T any](sendLastEventOnListen bool) *ChannelEvent[T] {
	return &ChannelEvent[T]{
		channels:              make(map[uint64]chan<- T),
		sendLastEventOnListen: sendLastEventOnListen,
	}
}

// Listen registers a channel to receive values when Notify is invoked.
// Returns a deregistration function that removes the listener.
func (e *ChannelEvent[T]) Listen(ch chan<- T) func() {
	if ch == nil {
		panic("channel cannot be nil")
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.channels[id] = ch
	shouldSendLastEvent := e.sendLastEventOnListen && e.hasNotified && e.lastEvent != nil
	var lastEventCopy *T
	if shouldSendLastEvent {
		lastEventCopy = new(T)
		*lastEventCopy = *e.lastEvent
	}
	e.mu.Unlock()

	// Deliver the remembered event outside the lock to avoid deadlock
	if shouldSendLastEvent && lastEventCopy != nil {
		select {
		case ch <- *lastEventCopy:
		default:
			// Channel is full, skip sending last event
		}
	}

	return func() {
		e.mu.Lock()
		delete(e.channels, id)
		e.mu.Unlock()
	}
}

// Notify sends the provided value to all registered channels.
// Sends are non-blocking - if a channel is full, it is skipped.
func (e *ChannelEvent[T]) Notify(value T) {
	e.mu.Lock()
	if e.sendLastEventOnListen {
		if e.lastEvent == nil {
			e.lastEvent = new(T)
		}
		*e.lastEvent = value
		e.hasNotified = true
	}

	channelsCopy := make(map[uint64]chan<- T, len(e.channels))
	for id, ch := range e.channels {
		channelsCopy[id] = ch
	}
	e.mu.Unlock()

	for _, ch := range channelsCopy {
		select {
		case ch <- value:
		default:
			// Channel is full, skip this channel
		}
	}
}

// ListenerCount returns the current number of registered listeners
func (e *ChannelEvent[T]) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.channels)
}
