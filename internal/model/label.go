package model

import "time"

// Origin types.
const (
	OriginManual    = "manual"
	OriginAutomatic = "automatic"
	OriginExternal  = "external"
)

// Origin records who or what applied a label.
type Origin struct {
	OriginID   string `json:"OriginID"`
	Name       string `json:"Name"`
	OriginType string `json:"OriginType"`
}

// Label assigns one code of one scheme to a field.
type Label struct {
	SchemeID    string `json:"SchemeID"`
	CodeID      string `json:"CodeID"`
	DateTimeUTC string `json:"DateTimeUTC"`
	Checked     bool   `json:"Checked"`
	Origin      Origin `json:"Origin"`
}

// NewLabel returns a checked label applied automatically by the named
// pipeline step at t.
func NewLabel(schemeID, codeID string, origin Origin, t time.Time) Label {
	return Label{
		SchemeID:    schemeID,
		CodeID:      codeID,
		DateTimeUTC: t.UTC().Format(time.RFC3339Nano),
		Checked:     true,
		Origin:      origin,
	}
}

// PipelineOrigin returns an automatic origin for a named pipeline step.
func PipelineOrigin(id, name string) Origin {
	return Origin{OriginID: id, Name: name, OriginType: OriginAutomatic}
}
