package model

// SortOrder is a single sort instruction: field name to direction
// ("asc" or "desc"). Matches the storage engine's find sort shape.
type SortOrder map[string]string

// Query is an opaque filter descriptor passed to the storage engine's
// find capability. Queries are identity compared: a result set follows
// at most one *Query at a time, re-issuing the same pointer is a no-op
// and any different pointer triggers a full transition, even when the
// two values are semantically equal.
type Query struct {
	// Selector is a mongo-style selector document, e.g.
	// {"_id": {"$gte": "a", "$lt": "b"}}.
	Selector map[string]interface{} `json:"selector"`

	Sort  []SortOrder `json:"sort,omitempty"`
	Limit int         `json:"limit,omitempty"`
	Skip  int         `json:"skip,omitempty"`
}

// NarrowToID derives the point query used to re-check a single changed
// document against this query: the original selector AND an exact id
// match. The derived query drops sort, limit and skip.
func (q *Query) NarrowToID(id string) *Query {
	sel := map[string]interface{}{
		"$and": []interface{}{
			q.Selector,
			map[string]interface{}{FieldID: id},
		},
	}
	if len(q.Selector) == 0 {
		sel = map[string]interface{}{FieldID: id}
	}
	return &Query{Selector: sel}
}
