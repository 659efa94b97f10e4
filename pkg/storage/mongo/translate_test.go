package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"livefind/pkg/model"
)

func TestTranslateSelector_Fields(t *testing.T) {
	sel := map[string]interface{}{
		"_id":      "doc-1",
		"_rev":     "1-abc",
		"_deleted": true,
		"kind":     "kitchen",
	}

	out := TranslateSelector(sel)
	assert.Equal(t, "doc-1", out["_id"])
	assert.Equal(t, "1-abc", out["rev"])
	assert.Equal(t, true, out["deleted"])
	assert.Equal(t, "kitchen", out["data.kind"])
}

func TestTranslateSelector_Operators(t *testing.T) {
	sel := map[string]interface{}{
		"_id": map[string]interface{}{"$gte": "a", "$lt": "b"},
	}
	out := TranslateSelector(sel)
	assert.Equal(t, map[string]interface{}{"$gte": "a", "$lt": "b"}, out["_id"])
}

func TestTranslateSelector_And(t *testing.T) {
	q := &model.Query{Selector: map[string]interface{}{"kind": "kitchen"}}
	narrow := q.NarrowToID("doc-1")

	out := TranslateSelector(narrow.Selector)
	and, ok := out["$and"].(bson.A)
	require.True(t, ok)
	require.Len(t, and, 2)
	assert.Equal(t, bson.M{"data.kind": "kitchen"}, and[0])
	assert.Equal(t, bson.M{"_id": "doc-1"}, and[1])
}

func TestTranslateSort(t *testing.T) {
	out := TranslateSort([]model.SortOrder{{"rank": "desc"}, {"_rev": "asc"}})
	require.Len(t, out, 3)
	assert.Equal(t, bson.E{Key: "data.rank", Value: -1}, out[0])
	assert.Equal(t, bson.E{Key: "rev", Value: 1}, out[1])
	// The trailing id key keeps skip-based paging stable.
	assert.Equal(t, bson.E{Key: "_id", Value: 1}, out[2])
}

func TestStoredDocRoundTrip(t *testing.T) {
	doc := model.Document{"_id": "doc-1", "_rev": "1-abc", "kind": "kitchen"}
	stored := newStoredDoc("doc-1", "2-def", doc)
	assert.Equal(t, "doc-1", stored.ID)
	assert.Equal(t, "2-def", stored.Rev)
	assert.False(t, stored.Deleted)
	assert.Equal(t, "kitchen", stored.Data["kind"])
	_, reserved := stored.Data["_id"]
	assert.False(t, reserved)

	back := stored.toDocument()
	assert.Equal(t, "doc-1", back.ID())
	assert.Equal(t, "2-def", back.Rev())
	assert.Equal(t, "kitchen", back["kind"])

	ts := newStoredDoc("doc-1", "3-ghi", model.Tombstone("doc-1", "2-def"))
	assert.True(t, ts.Deleted)
	assert.Nil(t, ts.Data)
	assert.True(t, ts.toDocument().IsDeleted())
}
