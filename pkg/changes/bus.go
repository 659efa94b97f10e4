// Package changes implements the change bus: a single ordered local
// stream of change events merging the storage engine's live feed with
// records relayed from other execution contexts sharing the same
// storage. Writes issued through the bus resolve only once their change
// event has round-tripped through local dispatch, so a returned write is
// already visible to every subscriber.
package changes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"livefind/pkg/emitter"
	"livefind/pkg/model"
	"livefind/pkg/pubsub"
	"livefind/pkg/storage"
)

// EventChange is the hub event carrying every dispatched change.
const EventChange emitter.Event = "change"

// StreamName is the relay stream carrying cross-context change records.
const StreamName = "changes"

// envelope is the relay wire format. Origin identifies the publishing
// bus so relayed records are never re-relayed or dispatched twice.
type envelope struct {
	Origin string         `json:"origin"`
	Change storage.Change `json:"change"`
}

// Bus merges the local store feed and the cross-context relay into one
// de-duplicated stream for local listeners.
type Bus struct {
	store    storage.Store
	provider pubsub.Provider
	origin   string

	hub *emitter.Hub[storage.Change]
	pub pubsub.Publisher

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewBus creates a bus over store, relaying through provider. The
// provider may be nil for purely local (single-context) operation.
func NewBus(store storage.Store, provider pubsub.Provider) *Bus {
	return &Bus{
		store:    store,
		provider: provider,
		origin:   uuid.NewString(),
		hub:      emitter.New[storage.Change](),
	}
}

// Origin returns the identifier this bus stamps on relayed records.
func (b *Bus) Origin() string {
	return b.origin
}

// Store returns the underlying storage engine handle.
func (b *Bus) Store() storage.Store {
	return b.store
}

// Run attaches the bus to the store feed and the relay. It returns once
// attached; dispatch continues until ctx is cancelled or Close is called.
func (b *Bus) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return fmt.Errorf("bus already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.running = true
	b.mu.Unlock()

	attached := false
	defer func() {
		if !attached {
			cancel()
			b.mu.Lock()
			b.running = false
			b.cancel = nil
			b.mu.Unlock()
		}
	}()

	feed, err := b.store.Changes(runCtx)
	if err != nil {
		return fmt.Errorf("attach to store feed: %w", err)
	}

	var relayed <-chan pubsub.Message
	if b.provider != nil {
		pub, err := b.provider.NewPublisher(pubsub.PublisherOptions{
			StreamName:    StreamName,
			SubjectPrefix: StreamName,
		})
		if err != nil {
			return fmt.Errorf("create relay publisher: %w", err)
		}
		b.pub = pub

		// The relay tap is ephemeral: only changes arriving after this
		// bus attached matter, the initial resolution reads the store.
		consumer, err := b.provider.NewConsumer(pubsub.ConsumerOptions{
			StreamName:    StreamName,
			FilterSubject: StreamName + ".>",
		})
		if err != nil {
			return fmt.Errorf("create relay consumer: %w", err)
		}
		relayed, err = consumer.Subscribe(runCtx)
		if err != nil {
			return fmt.Errorf("subscribe to relay: %w", err)
		}
	}

	attached = true
	go b.pumpLocal(runCtx, feed)
	if relayed != nil {
		go b.pumpRelayed(relayed)
	}
	return nil
}

// pumpLocal forwards engine changes: relay first, then local dispatch,
// preserving the engine's commit order for local listeners.
func (b *Bus) pumpLocal(ctx context.Context, feed <-chan storage.Change) {
	for change := range feed {
		if b.pub != nil {
			data, err := json.Marshal(envelope{Origin: b.origin, Change: change})
			if err != nil {
				slog.Error("encode change for relay", "id", change.ID, "err", err)
			} else if err := b.pub.Publish(ctx, b.origin, data); err != nil {
				slog.Warn("relay publish failed", "id", change.ID, "err", err)
			}
		}
		b.hub.Emit(EventChange, change)
	}
}

// pumpRelayed dispatches foreign changes locally. Records originating
// from this bus are skipped to avoid echo loops.
func (b *Bus) pumpRelayed(msgs <-chan pubsub.Message) {
	for msg := range msgs {
		var env envelope
		if err := json.Unmarshal(msg.Data(), &env); err != nil {
			slog.Warn("dropping malformed relayed change", "err", err)
			msg.Term()
			continue
		}
		msg.Ack()
		if env.Origin == b.origin {
			continue
		}
		b.hub.Emit(EventChange, env.Change)
	}
}

// Subscribe registers a listener for every dispatched change. The same
// function cannot be registered twice (model.ErrDuplicateListener); the
// returned unsubscribe is idempotent.
func (b *Bus) Subscribe(fn func(storage.Change)) (func(), error) {
	return b.hub.On(EventChange, fn)
}

// Get reads a document from the underlying store.
func (b *Bus) Get(ctx context.Context, id string) (model.Document, error) {
	return b.store.Get(ctx, id)
}

// Put writes doc and resolves only after the resulting change event has
// been dispatched to local subscribers.
func (b *Bus) Put(ctx context.Context, doc model.Document) (storage.PutResponse, error) {
	return b.settledWrite(ctx, doc, b.store.Put)
}

// Post writes doc under a server-assigned id. Change events observed
// before the response arrives are queued and replayed in arrival order
// once the id is known.
func (b *Bus) Post(ctx context.Context, doc model.Document) (storage.PutResponse, error) {
	return b.settledWrite(ctx, doc, b.store.Post)
}

type writeFunc func(context.Context, model.Document) (storage.PutResponse, error)

func (b *Bus) settledWrite(ctx context.Context, doc model.Document, write writeFunc) (storage.PutResponse, error) {
	b.mu.Lock()
	running := b.running
	b.mu.Unlock()
	if !running {
		// Without the dispatch loop the write would never settle.
		return storage.PutResponse{}, fmt.Errorf("bus is not running")
	}

	aw, err := b.newAwait()
	if err != nil {
		return storage.PutResponse{}, err
	}
	// A failed write must disconnect the await listener and discard its
	// queue; release is idempotent and covers every exit path.
	defer aw.release()

	res, err := write(ctx, doc)
	if err != nil {
		return storage.PutResponse{}, err
	}
	if err := aw.wait(ctx, res.ID, res.Rev); err != nil {
		return res, err
	}
	return res, nil
}

// Close detaches the bus from the store feed and the relay and releases
// every listener. Idempotent.
func (b *Bus) Close() error {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.running = false
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.hub.Close()
	if b.pub != nil {
		return b.pub.Close()
	}
	return nil
}
