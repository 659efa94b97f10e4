package livequery

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livefind/pkg/changes"
	"livefind/pkg/model"
	"livefind/pkg/storage"
	storemem "livefind/pkg/storage/memory"
)

func startBus(t *testing.T, store storage.Store) *changes.Bus {
	t.Helper()
	bus := changes.NewBus(store, nil)
	require.NoError(t, bus.Run(context.Background()))
	t.Cleanup(func() { bus.Close() })
	return bus
}

func newMemoryBus(t *testing.T) *changes.Bus {
	t.Helper()
	store := storemem.New()
	t.Cleanup(func() { store.Close(context.Background()) })
	return startBus(t, store)
}

// events records every emission of a result set, in order.
type events struct {
	mu    sync.Mutex
	order []string
	last  map[string]map[string]model.Document
}

func attach(t *testing.T, rs *ResultSet) *events {
	t.Helper()
	e := &events{last: make(map[string]map[string]model.Document)}
	record := func(kind string) func(map[string]model.Document) {
		return func(docs map[string]model.Document) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.order = append(e.order, kind)
			e.last[kind] = docs
		}
	}
	_, err := rs.OnEnter(record("enter"))
	require.NoError(t, err)
	_, err = rs.OnUpdate(record("update"))
	require.NoError(t, err)
	_, err = rs.OnExit(record("exit"))
	require.NoError(t, err)
	_, err = rs.OnAfterChange(record("after"))
	require.NoError(t, err)
	return e
}

func (e *events) count(kind string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, k := range e.order {
		if k == kind {
			n++
		}
	}
	return n
}

func (e *events) sequence() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

func (e *events) lastOf(kind string) map[string]model.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last[kind]
}

func seedDocs(t *testing.T, bus *changes.Bus, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := bus.Put(context.Background(), model.Document{
			"_id":  fmt.Sprintf("TEST_DOC_%04d", i),
			"kind": "seeded",
		})
		require.NoError(t, err)
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestResultSet_InitialResolution(t *testing.T) {
	bus := newMemoryBus(t)
	ctx := context.Background()

	_, err := bus.Put(ctx, model.Document{"_id": "mug", "kind": "kitchen"})
	require.NoError(t, err)
	_, err = bus.Put(ctx, model.Document{"_id": "teapot", "kind": "kitchen"})
	require.NoError(t, err)
	_, err = bus.Put(ctx, model.Document{"_id": "wrench", "kind": "garage"})
	require.NoError(t, err)

	rs := NewResultSet(bus)
	defer rs.Close()
	rec := attach(t, rs)

	q := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	require.NoError(t, rs.SetQuery(ctx, q))

	assert.Equal(t, []string{"enter", "after"}, rec.sequence())
	entered := rec.lastOf("enter")
	require.Len(t, entered, 2)
	assert.Contains(t, entered, "mug")
	assert.Contains(t, entered, "teapot")

	docs := rs.Docs()
	assert.Len(t, docs, 2)
	assert.Same(t, q, rs.Query())
}

func TestResultSet_IDRange(t *testing.T) {
	bus := newMemoryBus(t)
	seedDocs(t, bus, 100)

	rs := NewResultSet(bus)
	defer rs.Close()
	rec := attach(t, rs)

	q := &model.Query{Selector: map[string]interface{}{
		"_id": map[string]interface{}{"$gte": "TEST_DOC_0010", "$lt": "TEST_DOC_0020"},
	}}
	require.NoError(t, rs.SetQuery(context.Background(), q))

	assert.Equal(t, 1, rec.count("enter"))
	assert.Len(t, rec.lastOf("enter"), 10)
	assert.Len(t, rs.Docs(), 10)
}

func TestResultSet_PaginatedResolution(t *testing.T) {
	bus := newMemoryBus(t)
	seedDocs(t, bus, 100)

	rs := NewResultSet(bus)
	defer rs.Close()
	rec := attach(t, rs)

	// 50 matches paged by the query's own limit of 10.
	q := &model.Query{
		Selector: map[string]interface{}{
			"_id": map[string]interface{}{"$gte": "TEST_DOC_0010", "$lt": "TEST_DOC_0060"},
		},
		Limit: 10,
	}
	require.NoError(t, rs.SetQuery(context.Background(), q))

	assert.Equal(t, 5, rec.count("enter"))
	assert.Equal(t, 5, rec.count("after"))
	assert.Zero(t, rec.count("exit"))
	assert.Len(t, rs.Docs(), 50)
	assert.Len(t, rec.lastOf("after"), 50)
}

func TestResultSet_EmptyThenInsert(t *testing.T) {
	bus := newMemoryBus(t)
	ctx := context.Background()

	rs := NewResultSet(bus)
	defer rs.Close()
	rec := attach(t, rs)

	q := &model.Query{Selector: map[string]interface{}{"kind": "garage"}}
	require.NoError(t, rs.SetQuery(ctx, q))
	assert.Empty(t, rec.sequence())

	resp, err := bus.Put(ctx, model.Document{"_id": "wrench", "kind": "garage"})
	require.NoError(t, err)

	eventually(t, func() bool { return rec.count("enter") == 1 })
	entered := rec.lastOf("enter")
	require.Contains(t, entered, "wrench")
	assert.Equal(t, resp.Rev, entered["wrench"].Rev())
	assert.Len(t, rs.Docs(), 1)
}

func TestResultSet_UpdateEmitsOnce(t *testing.T) {
	bus := newMemoryBus(t)
	ctx := context.Background()

	resp, err := bus.Put(ctx, model.Document{"_id": "mug", "kind": "kitchen", "full": false})
	require.NoError(t, err)

	rs := NewResultSet(bus)
	defer rs.Close()
	rec := attach(t, rs)

	q := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	require.NoError(t, rs.SetQuery(ctx, q))
	require.Equal(t, 1, rec.count("enter"))

	resp2, err := bus.Put(ctx, model.Document{"_id": "mug", "_rev": resp.Rev, "kind": "kitchen", "full": true})
	require.NoError(t, err)

	eventually(t, func() bool { return rec.count("update") == 1 })
	updated := rec.lastOf("update")
	require.Contains(t, updated, "mug")
	assert.Equal(t, resp2.Rev, updated["mug"].Rev())
	assert.Equal(t, true, updated["mug"]["full"])

	// The same write produces no spurious enter or exit.
	assert.Equal(t, 1, rec.count("enter"))
	assert.Zero(t, rec.count("exit"))
}

func TestResultSet_StopMatchingExits(t *testing.T) {
	bus := newMemoryBus(t)
	ctx := context.Background()

	resp, err := bus.Put(ctx, model.Document{"_id": "mug", "kind": "kitchen"})
	require.NoError(t, err)

	rs := NewResultSet(bus)
	defer rs.Close()
	rec := attach(t, rs)

	q := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	require.NoError(t, rs.SetQuery(ctx, q))

	// The document still exists but no longer matches the selector.
	_, err = bus.Put(ctx, model.Document{"_id": "mug", "_rev": resp.Rev, "kind": "garage"})
	require.NoError(t, err)

	eventually(t, func() bool { return rec.count("exit") == 1 })
	assert.Empty(t, rs.Docs())
}

func TestResultSet_DeleteThenRecreate(t *testing.T) {
	bus := newMemoryBus(t)
	ctx := context.Background()

	resp, err := bus.Put(ctx, model.Document{"_id": "mug", "kind": "kitchen"})
	require.NoError(t, err)

	rs := NewResultSet(bus)
	defer rs.Close()
	rec := attach(t, rs)

	q := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	require.NoError(t, rs.SetQuery(ctx, q))

	// Deleting a tracked document exits directly, before the write settles.
	_, err = bus.Put(ctx, model.Tombstone("mug", resp.Rev))
	require.NoError(t, err)
	require.Equal(t, 1, rec.count("exit"))
	exited := rec.lastOf("exit")
	require.Contains(t, exited, "mug")
	assert.True(t, exited["mug"].IsDeleted())
	assert.Empty(t, rs.Docs())

	// Re-creating the same id is a fresh entry.
	_, err = bus.Put(ctx, model.Document{"_id": "mug", "kind": "kitchen"})
	require.NoError(t, err)
	eventually(t, func() bool { return rec.count("enter") == 2 })
	assert.Len(t, rs.Docs(), 1)
}

func TestResultSet_UnknownDeletionSuppressed(t *testing.T) {
	bus := newMemoryBus(t)
	ctx := context.Background()

	resp, err := bus.Put(ctx, model.Document{"_id": "wrench", "kind": "garage"})
	require.NoError(t, err)

	rs := NewResultSet(bus)
	defer rs.Close()
	rec := attach(t, rs)

	q := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	require.NoError(t, rs.SetQuery(ctx, q))

	// A never-tracked document being deleted emits nothing: no entry
	// followed by an immediate exit.
	_, err = bus.Put(ctx, model.Tombstone("wrench", resp.Rev))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, rec.sequence())
	assert.Empty(t, rs.Docs())
}

func TestResultSet_TransitionExitBeforeEnter(t *testing.T) {
	bus := newMemoryBus(t)
	ctx := context.Background()

	_, err := bus.Put(ctx, model.Document{"_id": "mug", "kind": "kitchen"})
	require.NoError(t, err)
	_, err = bus.Put(ctx, model.Document{"_id": "wrench", "kind": "garage"})
	require.NoError(t, err)

	rs := NewResultSet(bus)
	defer rs.Close()

	qA := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	require.NoError(t, rs.SetQuery(ctx, qA))

	rec := attach(t, rs)
	qB := &model.Query{Selector: map[string]interface{}{"kind": "garage"}}
	require.NoError(t, rs.SetQuery(ctx, qB))

	// One reconciliation: the old match leaves before the new one lands.
	assert.Equal(t, []string{"exit", "enter", "after"}, rec.sequence())
	assert.Contains(t, rec.lastOf("exit"), "mug")
	assert.Contains(t, rec.lastOf("enter"), "wrench")

	docs := rs.Docs()
	require.Len(t, docs, 1)
	assert.Contains(t, docs, "wrench")
}

func TestResultSet_SetQueryIdempotent(t *testing.T) {
	store := storemem.New()
	t.Cleanup(func() { store.Close(context.Background()) })

	var finds int64
	var mu sync.Mutex
	proxy := &findProxy{FindStore: store}
	proxy.findFn = func(ctx context.Context, q *model.Query) ([]model.Document, error) {
		mu.Lock()
		finds++
		mu.Unlock()
		return store.Find(ctx, q)
	}
	bus := startBus(t, proxy)
	ctx := context.Background()

	_, err := bus.Put(ctx, model.Document{"_id": "mug", "kind": "kitchen"})
	require.NoError(t, err)

	rs := NewResultSet(bus)
	defer rs.Close()
	rec := attach(t, rs)

	q := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	require.NoError(t, rs.SetQuery(ctx, q))

	mu.Lock()
	after := finds
	mu.Unlock()
	require.Equal(t, 1, rec.count("enter"))

	// The same pointer again is a no-op: no query, no events.
	require.NoError(t, rs.SetQuery(ctx, q))
	mu.Lock()
	assert.Equal(t, after, finds)
	mu.Unlock()
	assert.Equal(t, 1, rec.count("enter"))

	// A semantically equal but distinct pointer is a full transition.
	q2 := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	require.NoError(t, rs.SetQuery(ctx, q2))
	assert.Equal(t, 1, rec.count("enter"), "unchanged docs re-enter nothing")
	assert.Len(t, rs.Docs(), 1)
}

func TestResultSet_SupersededResolutionDiscarded(t *testing.T) {
	store := storemem.New()
	t.Cleanup(func() { store.Close(context.Background()) })

	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	proxy := &findProxy{FindStore: store}
	proxy.findFn = func(ctx context.Context, q *model.Query) ([]model.Document, error) {
		if _, blocked := q.Selector["block"]; blocked {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-gate
		}
		return store.Find(ctx, q)
	}
	bus := startBus(t, proxy)
	ctx := context.Background()

	_, err := bus.Put(ctx, model.Document{"_id": "mug", "kind": "kitchen"})
	require.NoError(t, err)

	rs := NewResultSet(bus)
	defer rs.Close()
	rec := attach(t, rs)

	qA := &model.Query{Selector: map[string]interface{}{"block": true}}
	done := make(chan error, 1)
	go func() { done <- rs.SetQuery(ctx, qA) }()

	// qA's resolution is suspended inside its first page read.
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first resolution never reached the store")
	}

	qB := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	require.NoError(t, rs.SetQuery(ctx, qB))
	require.Equal(t, 1, rec.count("enter"))
	require.Len(t, rs.Docs(), 1)

	// Releasing the stale resolution must not disturb the committed state.
	close(gate)
	require.NoError(t, <-done)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, rec.count("enter"))
	assert.Equal(t, 1, rec.count("after"))
	assert.Len(t, rs.Docs(), 1)
	assert.Same(t, qB, rs.Query())
}

func TestResultSet_FailedResolutionKeepsState(t *testing.T) {
	store := storemem.New()
	t.Cleanup(func() { store.Close(context.Background()) })

	var fail bool
	var mu sync.Mutex
	proxy := &findProxy{FindStore: store}
	proxy.findFn = func(ctx context.Context, q *model.Query) ([]model.Document, error) {
		mu.Lock()
		failing := fail
		mu.Unlock()
		if failing {
			return nil, fmt.Errorf("engine unavailable")
		}
		return store.Find(ctx, q)
	}
	bus := startBus(t, proxy)
	ctx := context.Background()

	_, err := bus.Put(ctx, model.Document{"_id": "mug", "kind": "kitchen"})
	require.NoError(t, err)

	rs := NewResultSet(bus)
	defer rs.Close()

	qA := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	require.NoError(t, rs.SetQuery(ctx, qA))
	require.Len(t, rs.Docs(), 1)

	mu.Lock()
	fail = true
	mu.Unlock()

	qB := &model.Query{Selector: map[string]interface{}{"kind": "garage"}}
	err = rs.SetQuery(ctx, qB)
	require.Error(t, err)

	// The last committed map survives and the failed query stays held, so
	// retrying the same pointer is a no-op.
	assert.Len(t, rs.Docs(), 1)
	assert.Same(t, qB, rs.Query())
	assert.NoError(t, rs.SetQuery(ctx, qB))
}

func TestResultSet_DefaultLimitPagination(t *testing.T) {
	store := storemem.New()
	t.Cleanup(func() { store.Close(context.Background()) })

	var mu sync.Mutex
	var finds int
	proxy := &findProxy{FindStore: store}
	proxy.findFn = func(ctx context.Context, q *model.Query) ([]model.Document, error) {
		mu.Lock()
		finds++
		mu.Unlock()
		return store.Find(ctx, q)
	}
	bus := startBus(t, proxy)
	seedDocs(t, bus, 60)

	rs := NewResultSet(bus)
	defer rs.Close()
	rec := attach(t, rs)

	// No explicit limit: resolution pages by the engine default of 25,
	// so 60 matches take three reads (25, 25, 10).
	q := &model.Query{Selector: map[string]interface{}{"kind": "seeded"}}
	require.NoError(t, rs.SetQuery(context.Background(), q))

	mu.Lock()
	calls := finds
	mu.Unlock()
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, rec.count("enter"))
	assert.Len(t, rs.Docs(), 60)
	assert.Len(t, rec.lastOf("after"), 60)
}

func TestResultSet_RecheckMalformedResponsesIgnored(t *testing.T) {
	store := storemem.New()
	t.Cleanup(func() { store.Close(context.Background()) })

	var mu sync.Mutex
	var respond func() []model.Document
	proxy := &findProxy{FindStore: store}
	proxy.findFn = func(ctx context.Context, q *model.Query) ([]model.Document, error) {
		mu.Lock()
		intercept := respond
		mu.Unlock()
		if intercept != nil {
			return intercept(), nil
		}
		return store.Find(ctx, q)
	}
	bus := startBus(t, proxy)
	ctx := context.Background()

	resp, err := bus.Put(ctx, model.Document{"_id": "mug", "kind": "kitchen"})
	require.NoError(t, err)

	rs := NewResultSet(bus)
	defer rs.Close()
	rec := attach(t, rs)

	q := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	require.NoError(t, rs.SetQuery(ctx, q))
	require.Equal(t, 1, rec.count("enter"))

	// A point query answered with two documents violates the data-source
	// contract; the change is discarded without touching the map.
	mu.Lock()
	respond = func() []model.Document {
		return []model.Document{
			{"_id": "mug", "_rev": "9-bad", "kind": "kitchen"},
			{"_id": "imposter", "_rev": "1-bad", "kind": "kitchen"},
		}
	}
	mu.Unlock()

	resp2, err := bus.Put(ctx, model.Document{"_id": "mug", "_rev": resp.Rev, "kind": "kitchen", "n": 1})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, rec.count("enter"))
	assert.Zero(t, rec.count("update"))
	require.Len(t, rs.Docs(), 1)

	// Same for a response carrying the wrong id.
	mu.Lock()
	respond = func() []model.Document {
		return []model.Document{{"_id": "imposter", "_rev": "1-bad", "kind": "kitchen"}}
	}
	mu.Unlock()

	_, err = bus.Put(ctx, model.Document{"_id": "mug", "_rev": resp2.Rev, "kind": "kitchen", "n": 2})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, rec.count("enter"))
	assert.Zero(t, rec.count("update"))
	assert.Equal(t, 1, rec.count("after"))
	docs := rs.Docs()
	require.Contains(t, docs, "mug")
	assert.NotContains(t, docs, "imposter")
}

func TestResultSet_StaleChangeListenerIgnored(t *testing.T) {
	bus := newMemoryBus(t)
	ctx := context.Background()

	resp, err := bus.Put(ctx, model.Document{"_id": "mug", "kind": "kitchen"})
	require.NoError(t, err)

	rs := NewResultSet(bus)
	defer rs.Close()

	q := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	require.NoError(t, rs.SetQuery(ctx, q))
	rec := attach(t, rs)

	// A change attributed to a pointer the set no longer holds signals a
	// sequencing defect; it is dropped before the direct-exit shortcut.
	stale := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	rs.onChange(stale, storage.Change{ID: "mug", Rev: resp.Rev, Deleted: true})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.sequence())
	assert.Len(t, rs.Docs(), 1)
}

func TestResultSet_ListenerReadsDocs(t *testing.T) {
	bus := newMemoryBus(t)
	ctx := context.Background()

	_, err := bus.Put(ctx, model.Document{"_id": "mug", "kind": "kitchen"})
	require.NoError(t, err)

	rs := NewResultSet(bus)
	defer rs.Close()

	// Events arrive outside the internal lock, so a listener may read
	// the set back without deadlocking.
	var fromListener map[string]model.Document
	_, err = rs.OnEnter(func(map[string]model.Document) {
		fromListener = rs.Docs()
	})
	require.NoError(t, err)

	q := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	require.NoError(t, rs.SetQuery(ctx, q))

	require.Len(t, fromListener, 1)
	assert.Contains(t, fromListener, "mug")
}

func TestResultSet_ListenerSwitchesQuery(t *testing.T) {
	bus := newMemoryBus(t)
	ctx := context.Background()

	_, err := bus.Put(ctx, model.Document{"_id": "mug", "kind": "kitchen"})
	require.NoError(t, err)

	rs := NewResultSet(bus)
	defer rs.Close()
	rec := attach(t, rs)

	// Detaching from inside the after-change handler queues the drain,
	// which the active dispatch run delivers in order.
	_, err = rs.OnAfterChange(func(docs map[string]model.Document) {
		if len(docs) > 0 {
			require.NoError(t, rs.SetQuery(ctx, nil))
		}
	})
	require.NoError(t, err)

	q := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	require.NoError(t, rs.SetQuery(ctx, q))

	assert.Equal(t, []string{"enter", "after", "exit", "after"}, rec.sequence())
	assert.Empty(t, rs.Docs())
	assert.Nil(t, rs.Query())
}

func TestResultSet_SetQueryNil(t *testing.T) {
	bus := newMemoryBus(t)
	ctx := context.Background()

	_, err := bus.Put(ctx, model.Document{"_id": "mug", "kind": "kitchen"})
	require.NoError(t, err)

	rs := NewResultSet(bus)
	defer rs.Close()

	q := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	require.NoError(t, rs.SetQuery(ctx, q))

	rec := attach(t, rs)
	require.NoError(t, rs.SetQuery(ctx, nil))

	assert.Equal(t, []string{"exit", "after"}, rec.sequence())
	assert.Contains(t, rec.lastOf("exit"), "mug")
	assert.Empty(t, rec.lastOf("after"))
	assert.Empty(t, rs.Docs())
	assert.Nil(t, rs.Query())

	// Detached: new matching writes are ignored.
	_, err = bus.Put(ctx, model.Document{"_id": "teapot", "kind": "kitchen"})
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"exit", "after"}, rec.sequence())
}

func TestResultSet_Close(t *testing.T) {
	bus := newMemoryBus(t)
	ctx := context.Background()

	_, err := bus.Put(ctx, model.Document{"_id": "mug", "kind": "kitchen"})
	require.NoError(t, err)

	rs := NewResultSet(bus)
	q := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	require.NoError(t, rs.SetQuery(ctx, q))

	rs.Close()
	rs.Close()

	// The snapshot stays readable but frozen.
	assert.Len(t, rs.Docs(), 1)

	assert.ErrorIs(t, rs.SetQuery(ctx, &model.Query{}), model.ErrClosed)
	_, err = rs.OnEnter(func(map[string]model.Document) {})
	assert.ErrorIs(t, err, model.ErrClosed)

	// Further writes no longer touch the set.
	_, err = bus.Put(ctx, model.Document{"_id": "teapot", "kind": "kitchen"})
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, rs.Docs(), 1)
}

// findProxy lets tests intercept the find path of a real store.
type findProxy struct {
	storage.FindStore
	findFn func(context.Context, *model.Query) ([]model.Document, error)
}

func (p *findProxy) Find(ctx context.Context, q *model.Query) ([]model.Document, error) {
	return p.findFn(ctx, q)
}
