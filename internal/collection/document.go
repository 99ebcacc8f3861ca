package collection

import (
	"fmt"
	"reflect"

	"github.com/goccy/go-json"
)

const (
	// IDField holds the document identifier
	IDField = "_id"
	// CreatedAtField holds the creation time (RFC 3339, UTC)
	CreatedAtField = "createdAt"
)

// Document is one schema-less record. Values are always in their JSON form:
// float64 numbers, string, bool, nil, []any and map[string]any.
type Document map[string]any

// ID returns the identifier, or "" if the document has none
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Predicate is an equality filter: every field must be present in the
// document and equal to the given value. An empty predicate matches everything.
type Predicate map[string]any

// normalizeDocument converts caller-supplied values to their JSON form so that
// what is returned from a write equals what a later read decodes from disk.
func normalizeDocument(in map[string]any) (Document, error) {
	if len(in) == 0 {
		return Document{}, nil
	}
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	out := Document{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

func normalizePredicate(p Predicate) (Predicate, error) {
	doc, err := normalizeDocument(p)
	if err != nil {
		return nil, fmt.Errorf("predicate: %w", err)
	}
	return Predicate(doc), nil
}

// matches reports whether doc satisfies every field of a normalized predicate
func matches(doc Document, p Predicate) bool {
	for field, want := range p {
		got, ok := doc[field]
		if !ok || !equalValues(got, want) {
			return false
		}
	}
	return true
}

// equalValues is strict equality on normalized JSON values: no coercion between
// types, so "5" never equals 5. Objects and arrays compare structurally.
func equalValues(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return reflect.DeepEqual(a, b)
	}
}

// merge applies a shallow patch; patch fields win and the identifier is kept
func merge(dst Document, patch Document) {
	for k, v := range patch {
		if k == IDField {
			continue
		}
		dst[k] = v
	}
}

// Clone returns a deep copy of a normalized document
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(tv))
		for k, inner := range tv {
			m[k] = cloneValue(inner)
		}
		return m
	case Document:
		return tv.Clone()
	case []any:
		s := make([]any, len(tv))
		for i, inner := range tv {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return v
	}
}

func indexByID(docs []Document, id string) int {
	for i, d := range docs {
		if d.ID() == id {
			return i
		}
	}
	return -1
}

func indexByPredicate(docs []Document, p Predicate) int {
	for i, d := range docs {
		if matches(d, p) {
			return i
		}
	}
	return -1
}
