// Package memory provides an in-memory storage engine for standalone
// mode and tests. It implements the full FindStore capability set,
// including a live change feed and mongo-style selector matching.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"livefind/pkg/model"
	"livefind/pkg/storage"
)

// Compile-time check that Store implements storage.FindStore.
var _ storage.FindStore = (*Store)(nil)

type watcher struct {
	ch     chan storage.Change
	ctx    context.Context
	cancel context.CancelFunc
}

// Store is an in-memory document store. Deleted documents are kept as
// tombstones so revision checks and the change feed behave like a real
// engine's.
type Store struct {
	mu       sync.Mutex
	docs     map[string]model.Document
	seq      int64
	watchers map[int]*watcher
	nextID   int
	closed   bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		docs:     make(map[string]model.Document),
		watchers: make(map[int]*watcher),
	}
}

func (s *Store) Get(ctx context.Context, id string) (model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, model.ErrClosed
	}
	doc, ok := s.docs[id]
	if !ok || doc.IsDeleted() {
		return nil, model.ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *Store) Put(ctx context.Context, doc model.Document) (storage.PutResponse, error) {
	id := doc.ID()
	if id == "" {
		return storage.PutResponse{}, errors.New("document is missing an _id")
	}
	return s.write(ctx, id, doc)
}

func (s *Store) Post(ctx context.Context, doc model.Document) (storage.PutResponse, error) {
	if doc.ID() != "" {
		return s.write(ctx, doc.ID(), doc)
	}
	return s.write(ctx, uuid.NewString(), doc)
}

func (s *Store) write(ctx context.Context, id string, doc model.Document) (storage.PutResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.PutResponse{}, model.ErrClosed
	}

	existing, exists := s.docs[id]
	switch {
	case exists && !existing.IsDeleted() && doc.Rev() == "":
		// A revision-less write is a create; the id is already live.
		return storage.PutResponse{}, model.ErrExists
	case exists && existing.Rev() != doc.Rev():
		// Re-creating over a tombstone starts a fresh edit and needs
		// no revision; anything else with a stale revision conflicts.
		if !(existing.IsDeleted() && doc.Rev() == "") {
			return storage.PutResponse{}, model.ErrConflict
		}
	case !exists && doc.Rev() != "":
		return storage.PutResponse{}, model.ErrConflict
	}

	rev := uuid.NewString()
	stored := doc.Clone()
	stored.SetID(id)
	stored.SetRev(rev)
	if stored.IsDeleted() {
		stored = model.Tombstone(id, rev)
	}
	s.docs[id] = stored
	s.seq++

	change := storage.Change{
		ID:      id,
		Rev:     rev,
		Deleted: stored.IsDeleted(),
		Seq:     s.seq,
	}
	if !change.Deleted {
		change.Doc = stored.Clone()
	}
	s.dispatchLocked(ctx, change)

	return storage.PutResponse{ID: id, Rev: rev}, nil
}

// dispatchLocked delivers a change to every watcher while holding the
// store lock, preserving commit order across concurrent writers.
func (s *Store) dispatchLocked(ctx context.Context, change storage.Change) {
	for _, w := range s.watchers {
		select {
		case w.ch <- change:
		case <-w.ctx.Done():
		case <-ctx.Done():
		}
	}
}

func (s *Store) AllDocs(ctx context.Context, limit, skip int) ([]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, model.ErrClosed
	}

	ids := make([]string, 0, len(s.docs))
	for id, doc := range s.docs {
		if !doc.IsDeleted() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	if limit <= 0 {
		limit = storage.DefaultPageLimit
	}
	if skip >= len(ids) {
		return nil, nil
	}
	ids = ids[skip:]
	if len(ids) > limit {
		ids = ids[:limit]
	}

	docs := make([]model.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, s.docs[id].Clone())
	}
	return docs, nil
}

func (s *Store) Find(ctx context.Context, q *model.Query) ([]model.Document, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, model.ErrClosed
	}

	var matched []model.Document
	var err error
	for _, doc := range s.docs {
		if doc.IsDeleted() {
			continue
		}
		var ok bool
		ok, err = storage.Match(q.Selector, doc)
		if err != nil {
			break
		}
		if ok {
			matched = append(matched, doc.Clone())
		}
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	// Order by id first so that skip-based paging sees a stable total
	// order, then apply the requested sort on top.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].ID() < matched[j].ID()
	})
	storage.SortDocs(matched, q.Sort)

	if q.Skip > 0 {
		if q.Skip >= len(matched) {
			return nil, nil
		}
		matched = matched[q.Skip:]
	}
	limit := q.Limit
	if limit <= 0 {
		limit = storage.DefaultPageLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) Changes(ctx context.Context) (<-chan storage.Change, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, model.ErrClosed
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &watcher{
		ch:     make(chan storage.Change, 256),
		ctx:    wctx,
		cancel: cancel,
	}
	id := s.nextID
	s.nextID++
	s.watchers[id] = w
	s.mu.Unlock()

	go func() {
		<-wctx.Done()
		s.mu.Lock()
		if s.watchers[id] == w {
			delete(s.watchers, id)
			close(w.ch)
		}
		s.mu.Unlock()
	}()

	return w.ch, nil
}

func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, w := range s.watchers {
		delete(s.watchers, id)
		w.cancel()
		close(w.ch)
	}
	return nil
}
