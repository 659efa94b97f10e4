package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/SierraSoftworks/connor"

	"livefind/pkg/model"
)

// Match evaluates a mongo-style selector against a document. Logical
// combinators ($and, $or, $not) and ordered comparisons ($gt, $gte,
// $lt, $lte) are evaluated here so they behave identically for strings
// and numbers; remaining leaf conditions are delegated to connor.
func Match(selector map[string]interface{}, doc model.Document) (bool, error) {
	if len(selector) == 0 {
		return true, nil
	}
	return matchAll(selector, doc)
}

func matchAll(cond map[string]interface{}, doc model.Document) (bool, error) {
	for key, val := range cond {
		var ok bool
		var err error
		switch key {
		case "$and":
			ok, err = matchEvery(val, doc)
		case "$or":
			ok, err = matchAny(val, doc)
		case "$not":
			sub, isMap := val.(map[string]interface{})
			if !isMap {
				return false, fmt.Errorf("$not requires an object, got %T", val)
			}
			ok, err = matchAll(sub, doc)
			ok = !ok
		default:
			ok, err = matchField(key, val, doc)
		}
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchEvery(val interface{}, doc model.Document) (bool, error) {
	conds, err := toConditionList(val, "$and")
	if err != nil {
		return false, err
	}
	for _, c := range conds {
		ok, err := matchAll(c, doc)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchAny(val interface{}, doc model.Document) (bool, error) {
	conds, err := toConditionList(val, "$or")
	if err != nil {
		return false, err
	}
	for _, c := range conds {
		ok, err := matchAll(c, doc)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func toConditionList(val interface{}, op string) ([]map[string]interface{}, error) {
	switch list := val.(type) {
	case []map[string]interface{}:
		return list, nil
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(list))
		for _, e := range list {
			m, ok := e.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%s element must be an object, got %T", op, e)
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s requires an array, got %T", op, val)
	}
}

func matchField(field string, cond interface{}, doc model.Document) (bool, error) {
	ops, isMap := cond.(map[string]interface{})
	if !isMap {
		return delegate(field, cond, doc)
	}

	rest := make(map[string]interface{})
	for op, arg := range ops {
		switch op {
		case "$gt", "$gte", "$lt", "$lte":
			value, present := lookupField(doc, field)
			if !present {
				return false, nil
			}
			c, comparable := orderedCompare(value, arg)
			if !comparable {
				return false, nil
			}
			var ok bool
			switch op {
			case "$gt":
				ok = c > 0
			case "$gte":
				ok = c >= 0
			case "$lt":
				ok = c < 0
			case "$lte":
				ok = c <= 0
			}
			if !ok {
				return false, nil
			}
		default:
			rest[op] = arg
		}
	}
	if len(rest) == 0 {
		return true, nil
	}
	return delegate(field, rest, doc)
}

func delegate(field string, cond interface{}, doc model.Document) (bool, error) {
	ok, err := connor.Match(map[string]interface{}{field: cond}, map[string]interface{}(doc))
	if err != nil {
		return false, fmt.Errorf("match field %q: %w", field, err)
	}
	return ok, nil
}

// lookupField resolves a possibly dotted field path.
func lookupField(doc model.Document, field string) (interface{}, bool) {
	var current interface{} = map[string]interface{}(doc)
	for _, part := range strings.Split(field, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// orderedCompare compares two values of the same kind. Strings compare
// lexicographically, numerics by value. Mixed kinds are not comparable.
func orderedCompare(a, b interface{}) (int, bool) {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

// SortDocs orders docs in place by the given sort instructions. Fields
// absent from a document sort before present ones.
func SortDocs(docs []model.Document, orders []model.SortOrder) {
	if len(orders) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, order := range orders {
			for field, dir := range order {
				c := compareValues(docs[i][field], docs[j][field])
				if c == 0 {
					continue
				}
				if dir == "desc" {
					return c > 0
				}
				return c < 0
			}
		}
		return false
	})
}

func compareValues(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if c, ok := orderedCompare(a, b); ok {
		return c
	}
	// Mixed or unsupported types keep their relative order.
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
