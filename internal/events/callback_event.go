package events

import (
	"sync"
)

// CallbackEvent provides pub/sub behavior with type-safe callbacks.
// T is the type of the argument passed to callback functions.
type CallbackEvent[T any] struct {
	mu                    sync.RWMutex
	listeners             map[uint64]func(T)
	nextID                uint64
	sendLastEventOnListen bool
	lastEvent             *T
	hasNotified           bool
}

// NewCallbackEvent creates a new CallbackEvent instance.
// sendLastEventOnListen: if true, the CallbackEvent remembers the last Notify
// value and calls new listeners immediately with it if Notify has been called
// at least once.
func NewCallbackEvent[T any](sendLastEventOnListen bool) *CallbackEvent[T] {
	return &CallbackEvent[T]{
		listeners:             make(map[uint64]func(T)),
		sendLastEventOnListen: sendLastEventOnListen,
	}
}

// Listen registers a callback function to be called when Notify is invoked.
// Returns a deregistration function that removes the listener.
func (e *CallbackEvent[T]) Listen(callback func(T)) func() {
	if callback == nil {
		panic("callback cannot be nil")
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = callback
	shouldSendLastEvent := e.sendLastEventOnListen && e.hasNotified && e.lastEvent != nil
	var lastEventCopy *T
	if shouldSendLastEvent {
		lastEventCopy = new(T)
		*lastEventCopy = *e.lastEvent
	}
	e.mu.Unlock()

	// Call the callback outside the lock to avoid deadlock
	if shouldSendLastEvent && lastEventCopy != nil {
		callback(*lastEventCopy)
	}

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Notify calls all registered listener callbacks with the provided value
func (e *CallbackEvent[T]) Notify(value T) {
	e.mu.Lock()
	if e.sendLastEventOnListen {
		if e.lastEvent == nil {
			e.lastEvent = new(T)
		}
		*e.lastEvent = value
		e.hasNotified = true
	}

	listenersCopy := make(map[uint64]func(T), len(e.listeners))
	for id, callback := range e.listeners {
		listenersCopy[id] = callback
	}
	e.mu.Unlock()

	// Call all callbacks outside the lock to avoid deadlock
	for _, callback := range listenersCopy {
		callback(value)
	}
}

// ListenerCount returns the current number of registered listeners
func (e *CallbackEvent[T]) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}
