// Package notify fans values out to registered listeners.
package notify

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier delivers published values to every subscribed listener in
// registration order. A value published while nobody is listening is held
// and delivered to the first listener that subscribes, so start-up
// detections are not lost. Only the most recent such value is held.
type Notifier[T any] struct {
	mu        sync.Mutex
	listeners []listener[T]
	pending   *T
	closed    bool
}

type listener[T any] struct {
	id uuid.UUID
	fn func(T)
}

// New creates an empty Notifier.
func New[T any]() *Notifier[T] {
	return &Notifier[T]{}
}

// Subscribe registers fn and returns a handle for Unsubscribe. A held value
// is delivered to fn before Subscribe returns.
func (n *Notifier[T]) Subscribe(fn func(T)) uuid.UUID {
	id := uuid.New()

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return id
	}
	n.listeners = append(n.listeners, listener[T]{id: id, fn: fn})
	pending := n.pending
	n.pending = nil
	n.mu.Unlock()

	if pending != nil {
		deliver(id, fn, *pending)
	}
	return id
}

// Unsubscribe removes the listener registered under id. It reports whether
// a listener was removed.
func (n *Notifier[T]) Unsubscribe(id uuid.UUID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, l := range n.listeners {
		if l.id == id {
			n.listeners = append(n.listeners[:i:i], n.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Publish delivers v to a snapshot of the current listeners. A panicking
// listener is logged and does not stop delivery to the rest.
func (n *Notifier[T]) Publish(v T) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	if len(n.listeners) == 0 {
		n.pending = &v
		n.mu.Unlock()
		return
	}
	snapshot := make([]listener[T], len(n.listeners))
	copy(snapshot, n.listeners)
	n.mu.Unlock()

	for _, l := range snapshot {
		deliver(l.id, l.fn, v)
	}
}

// Len returns the number of subscribed listeners.
func (n *Notifier[T]) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

// Close drops every listener and any held value. Later calls to Publish and
// Subscribe are ignored.
func (n *Notifier[T]) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.listeners = nil
	n.pending = nil
}

func deliver[T any](id uuid.UUID, fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("listener panicked",
				zap.String("listener", id.String()),
				zap.Any("panic", r),
			)
		}
	}()
	fn(v)
}
