package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"livefind/pkg/pubsub"
)

// ErrNotConnected is returned when using the provider before Connect.
var ErrNotConnected = errors.New("relay not connected, call Connect first")

// Provider implements pubsub.Provider over a single websocket connection
// to a relay Server. All publishers and consumers created from one
// Provider share that connection.
type Provider struct {
	rawURL string
	origin string

	writeMu sync.Mutex // serializes frame writes
	conn    *websocket.Conn

	mu     sync.Mutex
	subs   map[int]*wsConsumerSub
	nextID int
	closed bool
}

var (
	_ pubsub.Provider    = (*Provider)(nil)
	_ pubsub.Connectable = (*Provider)(nil)
)

type wsConsumerSub struct {
	pattern string
	ch      chan pubsub.Message
	ctx     context.Context
}

// NewProvider creates a websocket relay client for the given server URL
// (ws:// or wss://). origin identifies this context on the relay.
func NewProvider(rawURL, origin string) *Provider {
	return &Provider{
		rawURL: rawURL,
		origin: origin,
		subs:   make(map[int]*wsConsumerSub),
	}
}

// Connect dials the relay server and starts the read loop.
func (p *Provider) Connect(ctx context.Context) error {
	u, err := url.Parse(p.rawURL)
	if err != nil {
		return fmt.Errorf("invalid relay url %q: %w", p.rawURL, err)
	}
	q := u.Query()
	q.Set("origin", p.origin)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to relay at %s: %w", p.rawURL, err)
	}
	p.conn = conn

	go p.readLoop()

	slog.Info("Connected to websocket relay", "url", p.rawURL, "origin", p.origin)
	return nil
}

// readLoop dispatches incoming frames to matching consumers.
func (p *Provider) readLoop() {
	for {
		var f frame
		if err := p.conn.ReadJSON(&f); err != nil {
			p.teardown(err)
			return
		}

		msg := &wsMessage{subject: f.Subject, data: f.Data}

		p.mu.Lock()
		for _, sub := range p.subs {
			if !pubsub.MatchSubject(sub.pattern, f.Subject) {
				continue
			}
			select {
			case sub.ch <- msg:
			case <-sub.ctx.Done():
			default:
				slog.Warn("relay consumer buffer full, dropping frame", "subject", f.Subject)
			}
		}
		p.mu.Unlock()
	}
}

func (p *Provider) teardown(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		slog.Warn("relay connection lost", "err", err)
	}
	for id, sub := range p.subs {
		delete(p.subs, id)
		close(sub.ch)
	}
}

// NewPublisher creates a Publisher writing frames to the relay.
func (p *Provider) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if p.conn == nil {
		return nil, ErrNotConnected
	}
	return &wsPublisher{provider: p, opts: opts}, nil
}

// NewConsumer creates a Consumer receiving matching frames.
func (p *Provider) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if p.conn == nil {
		return nil, ErrNotConnected
	}
	return &wsConsumer{provider: p, opts: opts}, nil
}

// Close closes the relay connection and every consumer channel.
func (p *Provider) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	p.teardown(nil)
	return nil
}

func (p *Provider) send(f frame) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if p.conn == nil {
		return ErrNotConnected
	}
	return p.conn.WriteJSON(f)
}

// wsPublisher implements pubsub.Publisher over the shared connection.
type wsPublisher struct {
	provider *Provider
	opts     pubsub.PublisherOptions
}

func (w *wsPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	fullSubject := subject
	if w.opts.SubjectPrefix != "" {
		fullSubject = w.opts.SubjectPrefix + "." + subject
	}
	err := w.provider.send(frame{
		Origin:  w.provider.origin,
		Subject: fullSubject,
		Data:    data,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", fullSubject, err)
	}
	return nil
}

func (w *wsPublisher) Close() error {
	return nil
}

// wsConsumer implements pubsub.Consumer over the shared connection.
type wsConsumer struct {
	provider *Provider
	opts     pubsub.ConsumerOptions
}

func (w *wsConsumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	pattern := w.opts.FilterSubject
	if pattern == "" {
		if w.opts.StreamName != "" {
			pattern = w.opts.StreamName + ".>"
		} else {
			pattern = ">"
		}
	}
	bufSize := w.opts.ChannelBufSize
	if bufSize <= 0 {
		bufSize = pubsub.DefaultConsumerOptions().ChannelBufSize
	}

	p := w.provider
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrNotConnected
	}
	sub := &wsConsumerSub{
		pattern: pattern,
		ch:      make(chan pubsub.Message, bufSize),
		ctx:     ctx,
	}
	id := p.nextID
	p.nextID++
	p.subs[id] = sub
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		if p.subs[id] == sub {
			delete(p.subs, id)
			close(sub.ch)
		}
		p.mu.Unlock()
	}()

	return sub.ch, nil
}

// wsMessage implements pubsub.Message. The relay has no acknowledgment
// protocol, so the controls are no-ops.
type wsMessage struct {
	subject string
	data    []byte
}

func (m *wsMessage) Data() []byte    { return m.data }
func (m *wsMessage) Subject() string { return m.subject }
func (m *wsMessage) Ack() error      { return nil }
func (m *wsMessage) Nak() error      { return nil }
func (m *wsMessage) Term() error     { return nil }
