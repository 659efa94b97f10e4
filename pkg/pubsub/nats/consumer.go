package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/nats-io/nats.go/jetstream"

	"livefind/pkg/pubsub"
)

// jetStreamConsumer implements pubsub.Consumer using NATS JetStream.
type jetStreamConsumer struct {
	js   jetstream.JetStream
	opts pubsub.ConsumerOptions
}

// Subscribe starts consuming messages and returns a channel.
func (c *jetStreamConsumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	filterSubject := c.opts.FilterSubject
	if filterSubject == "" {
		filterSubject = c.opts.StreamName + ".>"
	}

	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     c.opts.StreamName,
		Subjects: []string{c.opts.StreamName + ".>"},
		Storage:  jetstream.MemoryStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	cfg := jetstream.ConsumerConfig{
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: filterSubject,
	}
	if c.opts.ConsumerName != "" {
		cfg.Durable = c.opts.ConsumerName
	} else {
		// Nameless consumers are ephemeral taps: deliver only messages
		// published after subscription and let the server reap the
		// consumer when the connection goes away. A durable consumer
		// here would replay the whole retained stream on every start.
		cfg.DeliverPolicy = jetstream.DeliverNewPolicy
	}

	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.opts.StreamName, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	msgCh := make(chan pubsub.Message, c.opts.ChannelBufSize)

	// Track shutdown to avoid sending on a closed channel.
	var closing atomic.Bool

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		if closing.Load() {
			msg.Nak()
			return
		}
		select {
		case msgCh <- wrapMessage(msg):
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		close(msgCh)
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}

	go func() {
		<-ctx.Done()
		slog.Debug("Stopping NATS consumer", "stream", c.opts.StreamName)
		closing.Store(true)
		cc.Stop()
		close(msgCh)
	}()

	return msgCh, nil
}

// natsMessage wraps a jetstream.Msg to implement pubsub.Message.
type natsMessage struct {
	msg jetstream.Msg
}

func wrapMessage(msg jetstream.Msg) pubsub.Message {
	return &natsMessage{msg: msg}
}

func (m *natsMessage) Data() []byte    { return m.msg.Data() }
func (m *natsMessage) Subject() string { return m.msg.Subject() }
func (m *natsMessage) Ack() error      { return m.msg.Ack() }
func (m *natsMessage) Nak() error      { return m.msg.Nak() }
func (m *natsMessage) Term() error     { return m.msg.Term() }
