// Command livefind is a small demo: it wires a storage engine, a
// cross-context relay and a live query together, seeds a handful of
// documents, then prints the deltas the result set emits as documents
// are written, updated and deleted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"livefind/internal/config"
	"livefind/internal/logging"
	"livefind/pkg/changes"
	"livefind/pkg/livequery"
	"livefind/pkg/model"
	"livefind/pkg/pubsub"
	pubsubmem "livefind/pkg/pubsub/memory"
	"livefind/pkg/pubsub/nats"
	"livefind/pkg/pubsub/ws"
	"livefind/pkg/storage"
	storagemem "livefind/pkg/storage/memory"
	storagemongo "livefind/pkg/storage/mongo"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "livefind:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	provider, err := openRelay(ctx, cfg)
	if err != nil {
		return err
	}
	if provider != nil {
		defer provider.Close()
	}

	bus := changes.NewBus(store, provider)
	if err := bus.Run(ctx); err != nil {
		return err
	}
	defer bus.Close()

	rs := livequery.NewResultSet(bus)
	defer rs.Close()

	rs.OnEnter(func(docs map[string]model.Document) {
		printDelta("enter", docs)
	})
	rs.OnUpdate(func(docs map[string]model.Document) {
		printDelta("update", docs)
	})
	rs.OnExit(func(docs map[string]model.Document) {
		printDelta("exit", docs)
	})
	rs.OnAfterChange(func(docs map[string]model.Document) {
		fmt.Printf("  -> result set now holds %d document(s)\n", len(docs))
	})

	// Seed a few documents before the query resolves.
	seed := []model.Document{
		{"_id": "mug", "kind": "kitchen", "price": 7},
		{"_id": "kettle", "kind": "kitchen", "price": 32},
		{"_id": "lamp", "kind": "office", "price": 24},
	}
	for _, doc := range seed {
		if _, err := bus.Put(ctx, doc); err != nil {
			return err
		}
	}

	query := &model.Query{
		Selector: map[string]interface{}{"kind": "kitchen"},
	}
	if err := rs.SetQuery(ctx, query); err != nil {
		return err
	}
	slog.Info("following query", "selector", query.Selector)

	// Live maintenance: a new match enters, a price change updates,
	// a deletion exits.
	res, err := bus.Put(ctx, model.Document{"_id": "teapot", "kind": "kitchen", "price": 18})
	if err != nil {
		return err
	}
	if _, err := bus.Put(ctx, model.Document{
		"_id": "teapot", "_rev": res.Rev, "kind": "kitchen", "price": 21,
	}); err != nil {
		return err
	}

	current, err := bus.Get(ctx, "mug")
	if err != nil {
		return err
	}
	if _, err := bus.Put(ctx, model.Tombstone("mug", current.Rev())); err != nil {
		return err
	}

	// Rechecks run asynchronously; give the last deltas time to print.
	time.Sleep(500 * time.Millisecond)
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "mongo":
		m := cfg.Storage.Mongo
		return storagemongo.New(ctx, m.URI, m.Database, m.Collection)
	default:
		return storagemem.New(), nil
	}
}

func openRelay(ctx context.Context, cfg *config.Config) (pubsub.Provider, error) {
	var provider pubsub.Provider
	switch cfg.Relay.Kind {
	case "":
		return nil, nil
	case "memory":
		provider = pubsubmem.New()
	case "nats":
		provider = nats.NewProvider(cfg.Relay.NatsURL)
	case "ws":
		provider = ws.NewProvider(cfg.Relay.WsURL, "livefind-demo")
	}

	if c, ok := provider.(pubsub.Connectable); ok {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}
	return provider, nil
}

func printDelta(kind string, docs map[string]model.Document) {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("%-6s %s %v\n", kind, id, docs[id])
	}
}
