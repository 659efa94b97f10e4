package storage

import (
	"context"

	"livefind/pkg/model"
)

// WithFind returns a handle guaranteed to expose the find capability.
// Stores that already implement Finder are returned as-is; anything else
// is decorated with a scan-based finder. No ambient state is mutated:
// capability is added by explicit composition.
func WithFind(s Store) FindStore {
	if fs, ok := s.(FindStore); ok {
		return fs
	}
	return &scanFindStore{Store: s}
}

// scanFindStore fulfils Finder by paging through AllDocs and evaluating
// the selector client-side. Correct for any Store, at full-scan cost.
type scanFindStore struct {
	Store
}

func (s *scanFindStore) Find(ctx context.Context, q *model.Query) ([]model.Document, error) {
	var matched []model.Document
	for skip := 0; ; skip += DefaultPageLimit {
		page, err := s.AllDocs(ctx, DefaultPageLimit, skip)
		if err != nil {
			return nil, err
		}
		for _, doc := range page {
			ok, err := Match(q.Selector, doc)
			if err != nil {
				return nil, err
			}
			if ok {
				matched = append(matched, doc)
			}
		}
		if len(page) < DefaultPageLimit {
			break
		}
	}

	SortDocs(matched, q.Sort)

	if q.Skip > 0 {
		if q.Skip >= len(matched) {
			return nil, nil
		}
		matched = matched[q.Skip:]
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}
