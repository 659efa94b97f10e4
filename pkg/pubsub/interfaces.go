// Package pubsub provides a generic pub/sub abstraction for relaying
// change records between execution contexts sharing the same storage.
package pubsub

import (
	"context"
	"time"
)

// Message represents a received message with acknowledgment controls.
// Brokers without acknowledgment semantics implement these as no-ops.
type Message interface {
	// Data returns the raw message payload.
	Data() []byte

	// Subject returns the message subject/topic.
	Subject() string

	// Ack acknowledges successful processing.
	Ack() error

	// Nak signals processing failure, requesting redelivery.
	Nak() error

	// Term terminates the message (no redelivery).
	Term() error
}

// Publisher publishes messages to a stream.
type Publisher interface {
	// Publish sends a message to the specified subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Close releases resources.
	Close() error
}

// Consumer consumes messages from a stream.
type Consumer interface {
	// Subscribe starts consuming messages and returns a channel.
	// The channel is closed when the context is cancelled or an error
	// occurs. Caller is responsible for calling Ack/Nak/Term.
	Subscribe(ctx context.Context) (<-chan Message, error)
}

// PublisherOptions configures publisher behavior.
type PublisherOptions struct {
	// StreamName is the name of the stream to publish to.
	StreamName string

	// SubjectPrefix is prepended to all subjects.
	SubjectPrefix string

	// OnPublish is called after each publish attempt (for metrics).
	OnPublish func(subject string, err error, latency time.Duration)
}

// ConsumerOptions configures consumer behavior.
type ConsumerOptions struct {
	// StreamName is the name of the stream to consume from.
	StreamName string

	// ConsumerName is the durable consumer name. Empty means an
	// ephemeral consumer that only sees messages published after it
	// subscribed.
	ConsumerName string

	// FilterSubject filters messages by subject pattern.
	FilterSubject string

	// ChannelBufSize is the buffer size for the message channel.
	ChannelBufSize int
}

// DefaultConsumerOptions returns ConsumerOptions with sensible defaults.
func DefaultConsumerOptions() ConsumerOptions {
	return ConsumerOptions{
		ChannelBufSize: 100,
	}
}
