// Package plan binds logical question slots to code schemes and holds the
// immutable registry every pipeline stage is configured from.
package plan

import (
	"github.com/sells-group/survey-cli/internal/codescheme"
	"github.com/sells-group/survey-cli/internal/model"
)

// Category partitions plans by how many substantive values an identity may hold.
type Category string

const (
	// Repeating plans hold one value per physical record (e.g. per episode).
	Repeating Category = "repeating"
	// Singular plans hold at most one value per identity.
	Singular Category = "singular"
)

// Plan binds one slot to its fields and schemes.
type Plan struct {
	RawField     model.FieldKey
	CodedField   model.FieldKey
	TimeField    model.FieldKey
	IDField      model.FieldKey
	CodaFilename string
	Category     Category
	Scheme       *codescheme.Scheme

	BinaryScheme     *codescheme.Scheme // optional
	BinaryCodedField model.FieldKey

	// RedirectCode is the Normal code in the correction scheme naming this
	// plan as a redirect target.
	RedirectCode *codescheme.Code

	// LocationLevel is set for plans that form the location hierarchy.
	LocationLevel string
}

// HasBinary reports whether the plan has a binary channel.
func (p *Plan) HasBinary() bool {
	return p.BinaryScheme != nil && p.BinaryCodedField != ""
}

// SourceField records which raw field(s) a redirected value came from.
func (p *Plan) SourceField() model.FieldKey { return p.RawField + "_source" }

// CorrectionField holds the scheme-correction label for the raw field.
func (p *Plan) CorrectionField() model.FieldKey { return p.CodedField + "_ws_correct_dataset" }

// CorrectionIDField holds the message id used to import correction labels.
func (p *Plan) CorrectionIDField() model.FieldKey { return p.IDField + "_ws" }

// Fields returns every key the plan declares.
func (p *Plan) Fields() []model.FieldKey {
	keys := []model.FieldKey{
		p.RawField, p.CodedField, p.IDField,
		p.SourceField(), p.CorrectionField(), p.CorrectionIDField(),
	}
	if p.TimeField != "" {
		keys = append(keys, p.TimeField)
	}
	if p.HasBinary() {
		keys = append(keys, p.BinaryCodedField)
	}
	return keys
}
