// Package memory provides an in-process pubsub implementation for
// standalone mode and tests. It mirrors the NATS provider's interface so
// the two can be swapped transparently.
package memory

import (
	"errors"

	"livefind/pkg/pubsub"
)

// ErrEngineClosed is returned when operating on a closed engine.
var ErrEngineClosed = errors.New("engine is closed")

// Compile-time check that Engine implements pubsub.Provider.
var _ pubsub.Provider = (*Engine)(nil)

// Engine provides the public API for in-memory pubsub.
type Engine struct {
	broker *broker
}

// New creates a new in-memory pubsub engine.
func New() *Engine {
	return &Engine{broker: newBroker()}
}

// NewPublisher creates a new in-memory Publisher.
func (e *Engine) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if e.IsClosed() {
		return nil, ErrEngineClosed
	}
	return &memoryPublisher{broker: e.broker, opts: opts}, nil
}

// NewConsumer creates a new in-memory Consumer.
func (e *Engine) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if e.IsClosed() {
		return nil, ErrEngineClosed
	}
	return &memoryConsumer{broker: e.broker, opts: opts}, nil
}

// Close shuts down the engine and all subscriptions.
func (e *Engine) Close() error {
	return e.broker.close()
}

// IsClosed returns true if the engine is closed.
func (e *Engine) IsClosed() bool {
	return e.broker.isClosed()
}
