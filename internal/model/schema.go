package model

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Schema is the closed set of field keys a record may carry.
type Schema struct {
	keys map[FieldKey]struct{}
}

// NewSchema builds a schema from keys. Duplicates are ignored.
func NewSchema(keys ...FieldKey) *Schema {
	s := &Schema{keys: make(map[FieldKey]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

// Contains reports whether key is declared.
func (s *Schema) Contains(key FieldKey) bool {
	_, ok := s.keys[key]
	return ok
}

// Keys returns the declared keys in sorted order.
func (s *Schema) Keys() []FieldKey {
	out := make([]FieldKey, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate fails on the first key anywhere in r's history that the schema
// does not declare.
func (s *Schema) Validate(r *Record) error {
	for _, d := range r.history {
		for k := range d.Set {
			if !s.Contains(k) {
				return eris.Errorf("model: record %s: unknown field %q", r.identity, k)
			}
		}
		for _, k := range d.Hidden {
			if !s.Contains(k) {
				return eris.Errorf("model: record %s: unknown field %q", r.identity, k)
			}
		}
	}
	return nil
}
