// Package model holds the record, label and run types shared across the
// reconciliation pipeline.
package model

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// FieldKey names one field of a record. Valid keys are declared by the
// coding-plan registry's Schema.
type FieldKey string

// Value is either a text value (raw answers, timestamps, audit strings) or a
// list of labels (coded fields). The zero Value is empty text.
type Value struct {
	text    string
	labels  []Label
	isLabel bool
}

// Text returns a text Value.
func Text(s string) Value { return Value{text: s} }

// Labels returns a label-list Value. The slice is copied.
func Labels(ls ...Label) Value {
	out := make([]Label, len(ls))
	copy(out, ls)
	return Value{labels: out, isLabel: true}
}

// IsLabels reports whether v holds labels.
func (v Value) IsLabels() bool { return v.isLabel }

// String returns the text of a text Value and "" for labels.
func (v Value) String() string { return v.text }

// LabelList returns a copy of the labels held by v.
func (v Value) LabelList() []Label {
	if !v.isLabel {
		return nil
	}
	out := make([]Label, len(v.labels))
	copy(out, v.labels)
	return out
}

// Equal reports whether two values hold the same content.
func (v Value) Equal(o Value) bool {
	if v.isLabel != o.isLabel {
		return false
	}
	if !v.isLabel {
		return v.text == o.text
	}
	if len(v.labels) != len(o.labels) {
		return false
	}
	for i := range v.labels {
		if v.labels[i] != o.labels[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes text as a JSON string and labels as an array.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.isLabel {
		if v.labels == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.labels)
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON accepts a JSON string or an array of labels.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var ls []Label
		if err := json.Unmarshal(data, &ls); err != nil {
			return eris.Wrap(err, "model: decode labels")
		}
		*v = Value{labels: ls, isLabel: true}
		if v.labels == nil {
			v.labels = []Label{}
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Wrap(err, "model: decode text value")
	}
	*v = Value{text: s}
	return nil
}
