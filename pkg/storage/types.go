// Package storage defines the capability interfaces this layer consumes
// from a document storage engine: point reads, writes, bounded finds and
// a live change feed. Engines live in the subpackages (memory, mongo);
// anything satisfying Store can be promoted to a FindStore with WithFind.
package storage

import (
	"context"

	"livefind/pkg/model"
)

// DefaultPageLimit is the results-per-request bound an engine enforces
// when a query carries no explicit limit.
const DefaultPageLimit = 25

// PutResponse reports the outcome of an accepted write.
type PutResponse struct {
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

// Change represents one committed mutation reported by the engine's
// change feed. Seq is monotonically increasing within one engine
// instance; no ordering is assumed across instances.
type Change struct {
	ID      string         `json:"id"`
	Rev     string         `json:"rev"`
	Doc     model.Document `json:"doc,omitempty"` // nil for deletions
	Deleted bool           `json:"deleted,omitempty"`
	Seq     int64          `json:"seq"`
}

// Store is the base capability set of a document storage engine.
type Store interface {
	// Get retrieves a document by id. Missing and deleted documents
	// yield model.ErrNotFound.
	Get(ctx context.Context, id string) (model.Document, error)

	// Put writes a document under its own id. Updates must carry the
	// current revision or fail with model.ErrConflict; a revision-less
	// write over a live document fails with model.ErrExists.
	Put(ctx context.Context, doc model.Document) (PutResponse, error)

	// Post writes a document under a server-assigned id.
	Post(ctx context.Context, doc model.Document) (PutResponse, error)

	// AllDocs returns up to limit non-deleted documents ordered by id,
	// starting at offset skip. limit <= 0 applies DefaultPageLimit.
	AllDocs(ctx context.Context, limit, skip int) ([]model.Document, error)

	// Changes returns a channel yielding every committed write after the
	// call, in commit order, until ctx is cancelled or the store closes.
	Changes(ctx context.Context) (<-chan Change, error)

	// Close releases the engine. Idempotent.
	Close(ctx context.Context) error
}

// Finder is the optional find capability of a storage engine.
type Finder interface {
	// Find returns one bounded page of documents matching the query.
	Find(ctx context.Context, q *model.Query) ([]model.Document, error)
}

// FindStore is a storage engine guaranteed to expose find.
type FindStore interface {
	Store
	Finder
}
