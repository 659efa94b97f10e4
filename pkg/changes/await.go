package changes

import (
	"context"
	"sync"

	"livefind/pkg/storage"
)

// await captures dispatched changes on behalf of one in-flight write.
// It subscribes before the write is issued so that a change racing the
// write response is queued rather than missed; wait then replays the
// queue in arrival order before blocking for new dispatches.
type await struct {
	mu     sync.Mutex
	queue  []storage.Change
	signal chan struct{}
	unsub  func()
}

func (b *Bus) newAwait() (*await, error) {
	a := &await{signal: make(chan struct{}, 1)}
	unsub, err := b.Subscribe(a.push)
	if err != nil {
		return nil, err
	}
	a.unsub = unsub
	return a, nil
}

func (a *await) push(change storage.Change) {
	a.mu.Lock()
	a.queue = append(a.queue, change)
	a.mu.Unlock()

	select {
	case a.signal <- struct{}{}:
	default:
	}
}

// wait blocks until a change matching the write's id and revision has
// been dispatched locally, or ctx expires.
func (a *await) wait(ctx context.Context, id, rev string) error {
	next := 0
	for {
		a.mu.Lock()
		for ; next < len(a.queue); next++ {
			c := a.queue[next]
			if c.ID == id && c.Rev == rev {
				a.mu.Unlock()
				return nil
			}
		}
		a.mu.Unlock()

		select {
		case <-a.signal:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// release disconnects the listener and lets the queue be collected.
// Idempotent: the hub unsubscribe it wraps already is.
func (a *await) release() {
	a.unsub()
}
