package model

import (
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
)

// Delta is one append-only entry in a record's history.
type Delta struct {
	Set    map[FieldKey]Value `json:"set,omitempty"`
	Hidden []FieldKey         `json:"hidden,omitempty"`
	Meta   Metadata           `json:"meta"`
}

// Record is one respondent identity's contribution at one point of
// ingestion: an append-only delta log plus its effective view.
type Record struct {
	identity string
	history  []Delta
	view     map[FieldKey]Value
}

// NewRecord returns an empty record for identity.
func NewRecord(identity string) *Record {
	return &Record{identity: identity, view: make(map[FieldKey]Value)}
}

// FromHistory rebuilds a record by replaying deltas in order.
func FromHistory(identity string, history []Delta) *Record {
	r := NewRecord(identity)
	for _, d := range history {
		r.apply(d)
	}
	return r
}

// Identity returns the respondent key the record belongs to.
func (r *Record) Identity() string { return r.identity }

// Append records values under meta. An empty map appends nothing.
func (r *Record) Append(values map[FieldKey]Value, meta Metadata) {
	if len(values) == 0 {
		return
	}
	set := make(map[FieldKey]Value, len(values))
	for k, v := range values {
		set[k] = v
	}
	r.apply(Delta{Set: set, Meta: meta})
}

// Hide removes keys from the effective view. Keys not currently visible are
// ignored; if none are visible nothing is appended.
func (r *Record) Hide(keys []FieldKey, meta Metadata) {
	var hidden []FieldKey
	seen := make(map[FieldKey]bool, len(keys))
	for _, k := range keys {
		if _, ok := r.view[k]; ok && !seen[k] {
			hidden = append(hidden, k)
			seen[k] = true
		}
	}
	if len(hidden) == 0 {
		return
	}
	r.apply(Delta{Hidden: hidden, Meta: meta})
}

func (r *Record) apply(d Delta) {
	r.history = append(r.history, d)
	for _, k := range d.Hidden {
		delete(r.view, k)
	}
	for k, v := range d.Set {
		r.view[k] = v
	}
}

// Get returns the effective value of key.
func (r *Record) Get(key FieldKey) (Value, bool) {
	v, ok := r.view[key]
	return v, ok
}

// Has reports whether key is in the effective view.
func (r *Record) Has(key FieldKey) bool {
	_, ok := r.view[key]
	return ok
}

// Text returns the effective text of key.
func (r *Record) Text(key FieldKey) (string, bool) {
	v, ok := r.view[key]
	if !ok || v.IsLabels() {
		return "", false
	}
	return v.String(), true
}

// Labels returns the effective labels of key.
func (r *Record) Labels(key FieldKey) ([]Label, bool) {
	v, ok := r.view[key]
	if !ok || !v.IsLabels() {
		return nil, false
	}
	return v.LabelList(), true
}

// Keys returns the visible keys in sorted order.
func (r *Record) Keys() []FieldKey {
	keys := make([]FieldKey, 0, len(r.view))
	for k := range r.view {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// View returns a copy of the effective view.
func (r *Record) View() map[FieldKey]Value {
	out := make(map[FieldKey]Value, len(r.view))
	for k, v := range r.view {
		out[k] = v
	}
	return out
}

// History returns a copy of the delta log.
func (r *Record) History() []Delta {
	out := make([]Delta, len(r.history))
	copy(out, r.history)
	return out
}

// Clone returns a sibling sharing identity and past history. Deltas appended
// to either afterwards are not seen by the other.
func (r *Record) Clone() *Record {
	c := &Record{
		identity: r.identity,
		history:  make([]Delta, len(r.history)),
		view:     r.View(),
	}
	copy(c.history, r.history)
	return c
}

type recordJSON struct {
	Identity string             `json:"identity"`
	View     map[FieldKey]Value `json:"view"`
	History  []Delta            `json:"history,omitempty"`
}

// IngestAuthor authors the seed delta of records decoded without history.
const IngestAuthor = "ingest"

// MarshalJSON encodes identity, effective view and full history.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{Identity: r.identity, View: r.view, History: r.history})
}

// UnmarshalJSON replays the encoded history. Input carrying only a flat view
// becomes a record with a single seed delta.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode record")
	}
	if raw.Identity == "" {
		return eris.New("model: record has no identity")
	}
	if len(raw.History) == 0 {
		*r = *NewRecord(raw.Identity)
		r.Append(raw.View, NewMetadata(IngestAuthor))
		return nil
	}
	*r = *FromHistory(raw.Identity, raw.History)
	return nil
}
