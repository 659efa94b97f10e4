package mongo

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"livefind/pkg/model"
)

// TranslateSelector rewrites a mongo-style selector against the storage
// envelope: reserved fields map onto envelope fields, user fields onto
// the "data" subdocument. Operators recurse unchanged.
func TranslateSelector(selector map[string]interface{}) bson.M {
	out := bson.M{}
	for key, value := range selector {
		if strings.HasPrefix(key, "$") {
			out[key] = translateOperatorValue(value)
			continue
		}
		out[translateField(key)] = value
	}
	return out
}

// translateOperatorValue handles the array arguments of combinators like
// $and/$or/$nor, whose elements are selectors themselves.
func translateOperatorValue(value interface{}) interface{} {
	switch v := value.(type) {
	case []interface{}:
		out := make(bson.A, 0, len(v))
		for _, item := range v {
			if sel, ok := item.(map[string]interface{}); ok {
				out = append(out, TranslateSelector(sel))
			} else {
				out = append(out, item)
			}
		}
		return out
	case []map[string]interface{}:
		out := make(bson.A, 0, len(v))
		for _, sel := range v {
			out = append(out, TranslateSelector(sel))
		}
		return out
	default:
		return value
	}
}

func translateField(field string) string {
	switch field {
	case model.FieldID:
		return "_id"
	case model.FieldRev:
		return "rev"
	case model.FieldDeleted:
		return "deleted"
	default:
		return "data." + field
	}
}

// TranslateSort converts query sort instructions to a mongo sort
// document, defaulting to ascending id order so that skip-based paging
// sees a stable total order.
func TranslateSort(orders []model.SortOrder) bson.D {
	out := bson.D{}
	for _, order := range orders {
		for field, dir := range order {
			value := 1
			if dir == "desc" {
				value = -1
			}
			out = append(out, bson.E{Key: translateField(field), Value: value})
		}
	}
	out = append(out, bson.E{Key: "_id", Value: 1})
	return out
}
