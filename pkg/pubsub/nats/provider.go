// Package nats provides a pubsub implementation backed by NATS
// JetStream, used to relay change records across execution contexts.
package nats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"livefind/pkg/pubsub"
)

// jetStreamNew is a variable to allow mocking in tests.
var jetStreamNew = func(nc *nats.Conn) (jetstream.JetStream, error) {
	return jetstream.New(nc)
}

// Provider implements pubsub.Provider using NATS JetStream. It manages
// the NATS connection lifecycle and provides factory methods for
// creating publishers and consumers.
type Provider struct {
	url string
	nc  *nats.Conn
	js  jetstream.JetStream
}

// Compile-time check that Provider implements pubsub.Provider.
var (
	_ pubsub.Provider    = (*Provider)(nil)
	_ pubsub.Connectable = (*Provider)(nil)
)

// NewProvider creates a new NATS-based pubsub provider. Connect must be
// called before creating publishers or consumers.
func NewProvider(url string) *Provider {
	return &Provider{url: url}
}

// Connect establishes the NATS connection and initializes JetStream.
func (p *Provider) Connect(ctx context.Context) error {
	nc, err := nats.Connect(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", p.url, err)
	}

	js, err := jetStreamNew(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream: %w", err)
	}

	p.nc = nc
	p.js = js
	slog.Info("Connected to NATS", "url", p.url)
	return nil
}

// NewPublisher creates a new Publisher backed by NATS JetStream.
func (p *Provider) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if p.js == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}
	return newPublisher(p.js, opts)
}

// NewConsumer creates a new Consumer backed by NATS JetStream.
func (p *Provider) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if p.js == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}
	if opts.StreamName == "" {
		return nil, fmt.Errorf("stream name is required")
	}
	if opts.ChannelBufSize <= 0 {
		opts.ChannelBufSize = pubsub.DefaultConsumerOptions().ChannelBufSize
	}
	return &jetStreamConsumer{js: p.js, opts: opts}, nil
}

// Close closes the NATS connection.
func (p *Provider) Close() error {
	if p.nc != nil {
		slog.Info("Closing NATS connection...")
		p.nc.Close()
		p.nc = nil
		p.js = nil
	}
	return nil
}
