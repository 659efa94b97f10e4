package livequery

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"livefind/pkg/changes"
	"livefind/pkg/emitter"
	"livefind/pkg/model"
	"livefind/pkg/storage"
)

// EventSet fires when the followed document's value changes: the payload
// is the new document, or nil when it became absent.
const EventSet emitter.Event = "set"

// LiveDoc follows one document's presence and value over time. It is the
// single-id specialization of ResultSet: changes for its id are applied
// directly, everything else is ignored.
type LiveDoc struct {
	bus *changes.Bus
	id  string
	hub *emitter.Hub[model.Document]

	mu          sync.Mutex
	doc         model.Document // nil when absent
	seen        bool           // a change has been applied
	unsubscribe func()
	closed      bool
	pending     []model.Document
	emitting    bool
}

// NewLiveDoc starts following id on the bus. The initial value is
// fetched concurrently; a change arriving first wins and the stale
// initial read is discarded.
func NewLiveDoc(ctx context.Context, bus *changes.Bus, id string) (*LiveDoc, error) {
	ld := &LiveDoc{
		bus: bus,
		id:  id,
		hub: emitter.New[model.Document](),
	}

	unsubscribe, err := bus.Subscribe(ld.onChange)
	if err != nil {
		return nil, err
	}
	ld.unsubscribe = unsubscribe

	go ld.fetchInitial(ctx)

	return ld, nil
}

// OnSet registers a listener fired when the followed value changes.
// Re-delivery of an unchanged value is suppressed.
func (ld *LiveDoc) OnSet(fn func(model.Document)) (func(), error) {
	return ld.hub.On(EventSet, fn)
}

// Doc returns the current value, nil when absent.
func (ld *LiveDoc) Doc() model.Document {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	return ld.doc
}

// ID returns the followed document id.
func (ld *LiveDoc) ID() string {
	return ld.id
}

func (ld *LiveDoc) onChange(c storage.Change) {
	if c.ID != ld.id {
		return
	}

	ld.mu.Lock()
	if ld.closed {
		ld.mu.Unlock()
		return
	}
	ld.seen = true

	var next model.Document
	if !c.Deleted {
		next = c.Doc
	}
	ld.applyLocked(next)
	ld.mu.Unlock()
	ld.flush()
}

func (ld *LiveDoc) fetchInitial(ctx context.Context) {
	doc, err := ld.bus.Get(ctx, ld.id)

	ld.mu.Lock()
	if ld.closed || ld.seen {
		// A live change beat the initial read; the read is stale.
		ld.mu.Unlock()
		return
	}
	if errors.Is(err, model.ErrNotFound) {
		ld.mu.Unlock()
		return // already absent, nothing changed
	}
	if err != nil {
		ld.mu.Unlock()
		slog.Warn("initial read failed", "doc", ld.id, "err", err)
		return
	}
	ld.applyLocked(doc)
	ld.mu.Unlock()
	ld.flush()
}

// applyLocked installs next as the current value, queueing an EventSet
// only when identity actually changed: same revision and presence as
// before is suppressed. Callers hold ld.mu and must call flush after
// releasing it.
func (ld *LiveDoc) applyLocked(next model.Document) {
	if next == nil && ld.doc == nil {
		return
	}
	if next != nil && ld.doc != nil && next.Rev() == ld.doc.Rev() {
		return
	}
	ld.doc = next
	ld.pending = append(ld.pending, next)
}

// flush dispatches queued values outside the state lock, so listeners
// may read Doc or close the follower. A single drainer runs at a time.
func (ld *LiveDoc) flush() {
	ld.mu.Lock()
	if ld.emitting {
		ld.mu.Unlock()
		return
	}
	ld.emitting = true
	for len(ld.pending) > 0 {
		next := ld.pending[0]
		ld.pending = ld.pending[1:]
		ld.mu.Unlock()
		ld.hub.Emit(EventSet, next)
		ld.mu.Lock()
	}
	ld.emitting = false
	ld.mu.Unlock()
}

// Close disconnects the change listener and becomes terminal. The last
// value stays readable. Idempotent.
func (ld *LiveDoc) Close() {
	ld.mu.Lock()
	if ld.closed {
		ld.mu.Unlock()
		return
	}
	ld.closed = true
	if ld.unsubscribe != nil {
		ld.unsubscribe()
		ld.unsubscribe = nil
	}
	ld.mu.Unlock()

	ld.hub.Close()
}
