package memory

import (
	"context"
	"time"

	"livefind/pkg/pubsub"
)

// memoryPublisher implements pubsub.Publisher using the in-memory broker.
type memoryPublisher struct {
	broker *broker
	opts   pubsub.PublisherOptions
}

func (p *memoryPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	start := time.Now()

	fullSubject := subject
	if p.opts.SubjectPrefix != "" {
		fullSubject = p.opts.SubjectPrefix + "." + subject
	}

	err := p.broker.publish(ctx, fullSubject, data)

	if p.opts.OnPublish != nil {
		p.opts.OnPublish(fullSubject, err, time.Since(start))
	}
	return err
}

func (p *memoryPublisher) Close() error {
	return nil
}

// memoryConsumer implements pubsub.Consumer using the in-memory broker.
type memoryConsumer struct {
	broker *broker
	opts   pubsub.ConsumerOptions
}

func (c *memoryConsumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	pattern := c.opts.FilterSubject
	if pattern == "" {
		if c.opts.StreamName != "" {
			pattern = c.opts.StreamName + ".>"
		} else {
			pattern = ">"
		}
	}

	bufSize := c.opts.ChannelBufSize
	if bufSize <= 0 {
		bufSize = pubsub.DefaultConsumerOptions().ChannelBufSize
	}

	msgCh, unsubscribe, err := c.broker.subscribe(ctx, pattern, bufSize)
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return msgCh, nil
}

// memoryMessage implements pubsub.Message for in-memory delivery.
// Acknowledgment is a no-op: delivery is at-most-once per subscriber.
type memoryMessage struct {
	data      []byte
	subject   string
	timestamp time.Time
}

func (m *memoryMessage) Data() []byte    { return m.data }
func (m *memoryMessage) Subject() string { return m.subject }
func (m *memoryMessage) Ack() error      { return nil }
func (m *memoryMessage) Nak() error      { return nil }
func (m *memoryMessage) Term() error     { return nil }
