package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"livefind/pkg/pubsub"
)

// broker manages in-memory message routing. Not exported.
type broker struct {
	mu            sync.RWMutex
	subscriptions map[int]*subscription
	nextID        int
	closed        atomic.Bool
	done          chan struct{}
}

// subscription represents a single consumer's subscription. Several
// consumers may watch the same pattern; each receives its own copy.
type subscription struct {
	pattern string
	msgCh   chan pubsub.Message
	ctx     context.Context
	cancel  context.CancelFunc
}

func newBroker() *broker {
	return &broker{
		subscriptions: make(map[int]*subscription),
		done:          make(chan struct{}),
	}
}

// publish sends a message to all matching subscriptions.
func (b *broker) publish(ctx context.Context, subject string, data []byte) error {
	if b.closed.Load() {
		return ErrEngineClosed
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscriptions {
		if !pubsub.MatchSubject(sub.pattern, subject) {
			continue
		}
		msg := &memoryMessage{
			data:      data,
			subject:   subject,
			timestamp: time.Now(),
		}
		select {
		case sub.msgCh <- msg:
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.ctx.Done():
			// Subscription cancelled, skip.
		case <-b.done:
			return ErrEngineClosed
		}
	}
	return nil
}

// subscribe creates a subscription for the given pattern. Returns the
// message channel, an unsubscribe function, and any error.
func (b *broker) subscribe(ctx context.Context, pattern string, bufSize int) (<-chan pubsub.Message, func(), error) {
	if b.closed.Load() {
		return nil, nil, ErrEngineClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscriptions == nil {
		return nil, nil, ErrEngineClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	msgCh := make(chan pubsub.Message, bufSize)

	sub := &subscription{
		pattern: pattern,
		msgCh:   msgCh,
		ctx:     subCtx,
		cancel:  cancel,
	}
	id := b.nextID
	b.nextID++
	b.subscriptions[id] = sub

	unsubscribe := func() {
		// Cancel first so a publisher blocked on a full buffer lets go
		// of the read lock before we take the write lock.
		cancel()
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.subscriptions[id] == sub {
			delete(b.subscriptions, id)
			close(msgCh)
		}
	}

	return msgCh, unsubscribe, nil
}

func (b *broker) close() error {
	if b.closed.Swap(true) {
		return nil // Already closed
	}
	// Unblock any publisher waiting on a full buffer before taking the
	// write lock.
	close(b.done)

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscriptions {
		sub.cancel()
		close(sub.msgCh)
	}
	b.subscriptions = nil
	return nil
}

func (b *broker) isClosed() bool {
	return b.closed.Load()
}
