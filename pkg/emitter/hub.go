// Package emitter provides the revocable pub/sub primitive shared by the
// change bus, result sets and document followers. A Hub dispatches typed
// payloads to registered callbacks and supports deterministic teardown:
// once closed it releases every registration and refuses further use.
package emitter

import (
	"sync"
	"unsafe"

	"livefind/pkg/model"
)

// Event identifies one event stream within a Hub.
type Event string

// Closed is dispatched exactly once, as the final event, when the hub is
// closed. Its payload is the zero value of the hub's payload type.
const Closed Event = "closed"

type listener[T any] struct {
	key uintptr
	fn  func(T)
}

// funcKey returns the identity of a func value. reflect's Pointer()
// yields only the code address, which is shared by every closure and
// method value built from the same source location; the func value's
// data word is unique per allocation and matches reference identity.
func funcKey[T any](fn func(T)) uintptr {
	return uintptr(*(*unsafe.Pointer)(unsafe.Pointer(&fn)))
}

// Hub is a closable event hub carrying payloads of type T.
// The zero value is not usable; use New.
type Hub[T any] struct {
	mu        sync.Mutex
	closed    bool
	listeners map[Event][]listener[T]
}

// New creates an open Hub.
func New[T any]() *Hub[T] {
	return &Hub[T]{
		listeners: make(map[Event][]listener[T]),
	}
}

// On registers fn for the given event and returns an idempotent
// unsubscribe. Registering the exact same function twice for one event
// fails with model.ErrDuplicateListener; registering on a closed hub
// fails with model.ErrClosed.
func (h *Hub[T]) On(event Event, fn func(T)) (func(), error) {
	key := funcKey(fn)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, model.ErrClosed
	}
	for _, l := range h.listeners[event] {
		if l.key == key {
			return nil, model.ErrDuplicateListener
		}
	}
	h.listeners[event] = append(h.listeners[event], listener[T]{key: key, fn: fn})

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.remove(event, key)
		})
	}
	return unsubscribe, nil
}

func (h *Hub[T]) remove(event Event, key uintptr) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	ls := h.listeners[event]
	for i, l := range ls {
		if l.key == key {
			h.listeners[event] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

// Emit dispatches payload to every listener registered for event, in
// registration order. Emitting on a closed hub is a no-op.
func (h *Hub[T]) Emit(event Event, payload T) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	ls := make([]listener[T], len(h.listeners[event]))
	copy(ls, h.listeners[event])
	h.mu.Unlock()

	for _, l := range ls {
		l.fn(payload)
	}
}

// Close dispatches one final Closed event, removes every listener across
// all event types and marks the hub permanently closed. Idempotent.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	final := make([]listener[T], len(h.listeners[Closed]))
	copy(final, h.listeners[Closed])
	h.closed = true
	h.listeners = nil
	h.mu.Unlock()

	var zero T
	for _, l := range final {
		l.fn(zero)
	}
}

// IsClosed reports whether the hub has been closed.
func (h *Hub[T]) IsClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Len returns the number of listeners currently registered for event.
func (h *Hub[T]) Len(event Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners[event])
}
