// Package livequery maintains continuously updated views over a
// document store: ResultSet follows a query and emits precise
// enter/update/exit deltas as the underlying data changes, LiveDoc
// follows a single document's presence and value.
package livequery

import (
	"context"
	"log/slog"
	"sync"

	"livefind/pkg/changes"
	"livefind/pkg/emitter"
	"livefind/pkg/model"
	"livefind/pkg/storage"
)

// Events emitted by a ResultSet. Enter, Update and Exit carry exactly
// the documents in their bucket, keyed by id; AfterChange carries the
// complete post-mutation result map and is the primary re-render signal.
const (
	EventEnter       emitter.Event = "enter"
	EventUpdate      emitter.Event = "update"
	EventExit        emitter.Event = "exit"
	EventAfterChange emitter.Event = "after_change"
)

// ResultSet owns a query and a materialized id-to-document map of its
// current matches, kept up to date from the change bus.
//
// Queries are identity compared: SetQuery with the pointer currently
// held is a no-op, any other pointer starts a full transition and
// supersedes an in-flight one. Events are dispatched outside the set's
// internal lock, in mutation order, so listeners may read Docs or call
// SetQuery; each event carries its own payload.
type ResultSet struct {
	store storage.FindStore
	bus   *changes.Bus
	hub   *emitter.Hub[map[string]model.Document]

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	query       *model.Query
	docs        map[string]model.Document
	unsubscribe func()
	closed      bool
	pending     []delta
	emitting    bool
}

// delta is one committed reconciliation awaiting dispatch: the three
// event buckets plus the post-mutation snapshot.
type delta struct {
	exit, enter, update map[string]model.Document
	snapshot            map[string]model.Document
}

// NewResultSet creates a result set bound to the bus's store. The store
// is promoted to a FindStore if it doesn't already expose find. A new
// set holds no query and an empty map.
func NewResultSet(bus *changes.Bus) *ResultSet {
	ctx, cancel := context.WithCancel(context.Background())
	return &ResultSet{
		store:  storage.WithFind(bus.Store()),
		bus:    bus,
		hub:    emitter.New[map[string]model.Document](),
		ctx:    ctx,
		cancel: cancel,
		docs:   make(map[string]model.Document),
	}
}

// OnEnter registers a listener for documents entering the result set.
func (rs *ResultSet) OnEnter(fn func(map[string]model.Document)) (func(), error) {
	return rs.hub.On(EventEnter, fn)
}

// OnUpdate registers a listener for tracked documents whose revision
// changed.
func (rs *ResultSet) OnUpdate(fn func(map[string]model.Document)) (func(), error) {
	return rs.hub.On(EventUpdate, fn)
}

// OnExit registers a listener for documents leaving the result set.
func (rs *ResultSet) OnExit(fn func(map[string]model.Document)) (func(), error) {
	return rs.hub.On(EventExit, fn)
}

// OnAfterChange registers a listener receiving the full result map after
// every applied change.
func (rs *ResultSet) OnAfterChange(fn func(map[string]model.Document)) (func(), error) {
	return rs.hub.On(EventAfterChange, fn)
}

// Docs returns a snapshot of the current result map. After Close the
// snapshot remains readable but frozen.
func (rs *ResultSet) Docs() map[string]model.Document {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make(map[string]model.Document, len(rs.docs))
	for id, doc := range rs.docs {
		out[id] = doc
	}
	return out
}

// Query returns the currently held query pointer, nil when unset.
func (rs *ResultSet) Query() *model.Query {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.query
}

// SetQuery switches the set to follow q. Passing the currently held
// pointer is a no-op. Passing nil drains the result map, emitting exit
// events, and stops listening. Otherwise the data source is paged
// through and the set subscribes to the bus for ongoing maintenance.
//
// A SetQuery issued while a previous one is still resolving supersedes
// it: the stale resolution is discarded without emitting further events.
// A failed resolution keeps the last fully committed result map and
// leaves the failed query held, so retrying with the same pointer is a
// no-op and the caller must re-trigger explicitly.
func (rs *ResultSet) SetQuery(ctx context.Context, q *model.Query) error {
	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		return model.ErrClosed
	}
	if rs.query == q {
		rs.mu.Unlock()
		return nil
	}
	if rs.unsubscribe != nil {
		rs.unsubscribe()
		rs.unsubscribe = nil
	}
	rs.query = q
	if q == nil {
		rs.diffLocked(nil, true)
		rs.mu.Unlock()
		rs.flush()
		return nil
	}
	rs.mu.Unlock()

	return rs.resolve(ctx, q)
}

// resolve pages through the data source for q, merging each page through
// diff-and-emit. Every resumption re-validates that q is still the
// current query before touching state; stale work is discarded.
func (rs *ResultSet) resolve(ctx context.Context, q *model.Query) error {
	pageSize := q.Limit
	if pageSize <= 0 {
		pageSize = storage.DefaultPageLimit
	}

	skip := q.Skip
	first := true
	for {
		page := *q
		page.Limit = pageSize
		page.Skip = skip
		docs, err := rs.store.Find(ctx, &page)

		rs.mu.Lock()
		if rs.closed || rs.query != q {
			rs.mu.Unlock()
			return nil
		}
		if err != nil {
			rs.mu.Unlock()
			return err
		}
		rs.diffLocked(docs, first)
		rs.mu.Unlock()
		rs.flush()

		first = false
		if len(docs) < pageSize {
			break
		}
		skip += pageSize
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.closed || rs.query != q {
		return nil
	}
	unsubscribe, err := rs.bus.Subscribe(func(c storage.Change) {
		rs.onChange(q, c)
	})
	if err != nil {
		return err
	}
	rs.unsubscribe = unsubscribe
	return nil
}

// diffLocked reconciles incoming documents against the current result
// map and queues the resulting delta for dispatch. With replace set,
// tracked documents absent from incoming are swept into the exit bucket
// (first page of a transition). Callers hold rs.mu and must call flush
// after releasing it.
func (rs *ResultSet) diffLocked(incoming []model.Document, replace bool) {
	enter := make(map[string]model.Document)
	update := make(map[string]model.Document)
	exit := make(map[string]model.Document)
	unchanged := make(map[string]bool)

	for _, doc := range incoming {
		id := doc.ID()
		current, tracked := rs.docs[id]
		switch {
		case !tracked && doc.IsDeleted():
			// A deleted, unknown document is ignored: never entered
			// then immediately exited.
		case !tracked:
			enter[id] = doc
		case doc.IsDeleted():
			exit[id] = doc
		case doc.Rev() != current.Rev():
			update[id] = doc
		default:
			unchanged[id] = true
		}
	}

	if replace {
		for id, current := range rs.docs {
			if unchanged[id] {
				continue
			}
			if _, ok := update[id]; ok {
				continue
			}
			if _, ok := exit[id]; ok {
				continue
			}
			exit[id] = current
		}
	}

	if len(enter) == 0 && len(update) == 0 && len(exit) == 0 {
		return
	}

	for id, doc := range enter {
		rs.docs[id] = doc
	}
	for id, doc := range update {
		rs.docs[id] = doc
	}
	for id := range exit {
		delete(rs.docs, id)
	}

	snapshot := make(map[string]model.Document, len(rs.docs))
	for id, doc := range rs.docs {
		snapshot[id] = doc
	}
	rs.pending = append(rs.pending, delta{
		exit:     exit,
		enter:    enter,
		update:   update,
		snapshot: snapshot,
	})
}

// flush dispatches queued deltas outside the state lock, each in fixed
// order: exit, enter, update, then after-change carrying the snapshot.
// A single drainer runs at a time; deltas queued during dispatch
// (including by listeners calling back into the set) are delivered by
// the active drainer in queue order.
func (rs *ResultSet) flush() {
	rs.mu.Lock()
	if rs.emitting {
		rs.mu.Unlock()
		return
	}
	rs.emitting = true
	for len(rs.pending) > 0 {
		d := rs.pending[0]
		rs.pending = rs.pending[1:]
		rs.mu.Unlock()

		if len(d.exit) > 0 {
			rs.hub.Emit(EventExit, d.exit)
		}
		if len(d.enter) > 0 {
			rs.hub.Emit(EventEnter, d.enter)
		}
		if len(d.update) > 0 {
			rs.hub.Emit(EventUpdate, d.update)
		}
		rs.hub.Emit(EventAfterChange, d.snapshot)

		rs.mu.Lock()
	}
	rs.emitting = false
	rs.mu.Unlock()
}

// onChange handles one change event while q is live.
func (rs *ResultSet) onChange(q *model.Query, c storage.Change) {
	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		return
	}
	if rs.query != q {
		// The disconnect protocol makes this unreachable; seeing it
		// means a sequencing defect, not bad input.
		rs.mu.Unlock()
		slog.Error("change delivered for superseded query",
			"doc", c.ID, "err", model.Internalf("stale change listener"))
		return
	}
	if _, tracked := rs.docs[c.ID]; tracked && c.Deleted {
		// Known document deleted: direct exit, no re-query needed.
		rs.diffLocked([]model.Document{model.Tombstone(c.ID, c.Rev)}, false)
		rs.mu.Unlock()
		rs.flush()
		return
	}
	rs.mu.Unlock()

	// The document may have started or stopped matching; ask the engine.
	// Rechecks for different ids may complete out of order, which the
	// diff tolerates by re-reading the latest state at resolution time.
	go rs.recheck(q, c)
}

// recheck runs the point query narrowed to the changed id and applies
// the authoritative answer, unless the query was superseded meanwhile.
func (rs *ResultSet) recheck(q *model.Query, c storage.Change) {
	docs, err := rs.store.Find(rs.ctx, q.NarrowToID(c.ID))

	rs.mu.Lock()
	if rs.closed || rs.query != q {
		// Superseded while awaiting the point query; discard silently.
		rs.mu.Unlock()
		return
	}
	if err != nil {
		rs.mu.Unlock()
		slog.Warn("point query failed, skipping change", "doc", c.ID, "err", err)
		return
	}

	switch {
	case len(docs) == 0:
		if current, tracked := rs.docs[c.ID]; tracked {
			rs.diffLocked([]model.Document{model.Tombstone(c.ID, current.Rev())}, false)
		}
	case len(docs) == 1:
		if docs[0].ID() != c.ID {
			rs.mu.Unlock()
			slog.Error("point query returned wrong document",
				"want", c.ID, "got", docs[0].ID(),
				"err", model.Internalf("id mismatch in point query response"))
			return
		}
		rs.diffLocked(docs, false)
	default:
		rs.mu.Unlock()
		slog.Error("point query returned multiple documents",
			"doc", c.ID, "count", len(docs),
			"err", model.Internalf("non-singleton point query response"))
		return
	}
	rs.mu.Unlock()
	rs.flush()
}

// Close detaches the set from the bus and disables further listener
// registration. The result map stays readable but frozen. Idempotent.
func (rs *ResultSet) Close() {
	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		return
	}
	rs.closed = true
	if rs.unsubscribe != nil {
		rs.unsubscribe()
		rs.unsubscribe = nil
	}
	rs.mu.Unlock()

	rs.cancel()
	rs.hub.Close()
}
