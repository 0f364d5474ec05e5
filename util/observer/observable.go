package observer

import (
	"sync"

	"bjoernblessin.de/rudpfile/util/logger"
)

// Observable manages a set of subscribers (channels) that receive notifications.
type Observable[T any] struct {
	observers  map[chan T]struct{}
	bufferSize int
	mu         sync.RWMutex
	closed     bool
}

// NewObservable creates a new Observable instance.
// Every subscriber channel gets a buffer of bufferSize elements.
// Example: packets := NewObservable[*Packet](500) creates an observable for packet events.
func NewObservable[T any](bufferSize int) *Observable[T] {
	return &Observable[T]{
		observers:  make(map[chan T]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscribe adds a new subscriber and returns a channel for receiving notifications.
// The caller is responsible for consuming from the returned channel.
// The channel will be closed when Unsubscribe is called or when the Observable is closed.
func (o *Observable[T]) Subscribe() chan T {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		ch := make(chan T)
		close(ch)
		return ch
	}

	ch := make(chan T, o.bufferSize)
	o.observers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
// Unsubscribing a channel twice is a no-op.
func (o *Observable[T]) Unsubscribe(ch chan T) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.observers[ch]; ok {
		delete(o.observers, ch)
		close(ch)
	}
}

// NotifyObservers sends data to all currently subscribed channels.
// This operation never blocks. If a subscriber's channel buffer is full,
// the notification for that subscriber is dropped.
func (o *Observable[T]) NotifyObservers(data T) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return
	}

	for ch := range o.observers {
		select {
		case ch <- data:
		default:
			logger.Tracef("Subscriber channel is full, dropping notification for %T", ch)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (o *Observable[T]) SubscriberCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return len(o.observers)
}

// Close closes the observable, unsubscribes all current subscribers, and prevents new subscriptions.
func (o *Observable[T]) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}

	o.closed = true
	for ch := range o.observers {
		delete(o.observers, ch)
		close(ch)
	}
}
