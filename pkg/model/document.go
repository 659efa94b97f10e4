package model

// Reserved document fields. These mirror the storage engine's document
// envelope and must not be used as user data fields.
const (
	FieldID      = "_id"
	FieldRev     = "_rev"
	FieldDeleted = "_deleted"
)

// Document is a user facing document, represents a JSON object.
//
//	"_id" field is reserved for the document ID.
//	"_rev" field is reserved for the revision token.
//	"_deleted" field is reserved for the deletion marker.
type Document map[string]interface{}

func (doc Document) ID() string {
	if id, ok := doc[FieldID].(string); ok {
		return id
	}
	return ""
}

func (doc Document) SetID(id string) {
	doc[FieldID] = id
}

// Rev returns the revision token. Revisions are opaque: they are only
// ever compared for equality, never ordered.
func (doc Document) Rev() string {
	if rev, ok := doc[FieldRev].(string); ok {
		return rev
	}
	return ""
}

func (doc Document) SetRev(rev string) {
	doc[FieldRev] = rev
}

func (doc Document) IsDeleted() bool {
	if deleted, ok := doc[FieldDeleted].(bool); ok && deleted {
		return true
	}
	return false
}

// Clone returns a shallow copy of the document. Field values are shared;
// callers that mutate nested values do so at their own risk.
func (doc Document) Clone() Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// Tombstone builds the minimal deleted representation of a document,
// carrying only identity, revision and the deletion marker.
func Tombstone(id, rev string) Document {
	return Document{
		FieldID:      id,
		FieldRev:     rev,
		FieldDeleted: true,
	}
}
