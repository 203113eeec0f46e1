package plan

import (
	"github.com/sells-group/survey-cli/internal/codescheme"
	"github.com/sells-group/survey-cli/internal/model"
)

// Registry is the ordered, immutable set of plans for a run.
type Registry struct {
	plans      []*Plan
	correction *codescheme.Scheme
	extra      []model.FieldKey

	byRaw      map[model.FieldKey]*Plan
	byRedirect map[string]*Plan
	schema     *model.Schema
}

// NewRegistry validates plans and indexes them. correction is the
// scheme-correction scheme redirect codes belong to; extra lists
// pass-through fields records may carry besides the plans' own.
func NewRegistry(correction *codescheme.Scheme, plans []*Plan, extra ...model.FieldKey) (*Registry, error) {
	if correction == nil {
		return nil, codescheme.NewConfigurationError("registry", "no correction scheme")
	}
	r := &Registry{
		plans:      make([]*Plan, len(plans)),
		correction: correction,
		extra:      append([]model.FieldKey(nil), extra...),
		byRaw:      make(map[model.FieldKey]*Plan, len(plans)),
		byRedirect: make(map[string]*Plan),
	}
	copy(r.plans, plans)

	coded := make(map[model.FieldKey]bool, len(plans))
	for _, p := range r.plans {
		if p.RawField == "" || p.CodedField == "" {
			return nil, codescheme.NewConfigurationError("plan "+string(p.RawField), "raw and coded fields are required")
		}
		if p.Scheme == nil {
			return nil, codescheme.NewConfigurationError("plan "+string(p.CodedField), "no scheme")
		}
		if p.Category != Repeating && p.Category != Singular {
			return nil, codescheme.NewConfigurationError("plan "+string(p.CodedField), "unknown category %q", p.Category)
		}
		if p.BinaryCodedField != "" && p.BinaryScheme == nil {
			return nil, codescheme.NewConfigurationError("plan "+string(p.CodedField), "binary field %q has no scheme", p.BinaryCodedField)
		}
		if coded[p.CodedField] {
			return nil, codescheme.NewConfigurationError("plan "+string(p.CodedField), "coded field declared twice")
		}
		coded[p.CodedField] = true

		if prev, ok := r.byRaw[p.RawField]; ok {
			if prev.Category != p.Category {
				return nil, codescheme.NewConfigurationError("plan "+string(p.CodedField),
					"raw field %q shared by plans of different categories", p.RawField)
			}
		} else {
			r.byRaw[p.RawField] = p
		}

		if p.RedirectCode == nil {
			continue
		}
		code, err := correction.ByID(p.RedirectCode.ID)
		if err != nil {
			return nil, &codescheme.ConfigurationError{Component: "plan " + string(p.CodedField), Message: "redirect code", Err: err}
		}
		if !code.IsNormal() {
			return nil, codescheme.NewConfigurationError("plan "+string(p.CodedField), "redirect code %q is not Normal", code.ID)
		}
		if other, dup := r.byRedirect[code.ID]; dup && other.RawField != p.RawField {
			return nil, codescheme.NewConfigurationError("plan "+string(p.CodedField),
				"redirect code %q already targets %q", code.ID, other.RawField)
		}
		if _, dup := r.byRedirect[code.ID]; !dup {
			r.byRedirect[code.ID] = p
		}
	}

	keys := append([]model.FieldKey(nil), r.extra...)
	for _, p := range r.plans {
		keys = append(keys, p.Fields()...)
	}
	r.schema = model.NewSchema(keys...)
	return r, nil
}

// Plans returns every plan in declaration order.
func (r *Registry) Plans() []*Plan {
	out := make([]*Plan, len(r.plans))
	copy(out, r.plans)
	return out
}

// Repeating returns the repeating plans in declaration order.
func (r *Registry) Repeating() []*Plan { return r.byCategory(Repeating) }

// Singular returns the singular plans in declaration order.
func (r *Registry) Singular() []*Plan { return r.byCategory(Singular) }

func (r *Registry) byCategory(c Category) []*Plan {
	var out []*Plan
	for _, p := range r.plans {
		if p.Category == c {
			out = append(out, p)
		}
	}
	return out
}

// SlotPlans returns one plan per distinct raw field, the first declared.
func (r *Registry) SlotPlans() []*Plan {
	var out []*Plan
	for _, p := range r.plans {
		if r.byRaw[p.RawField] == p {
			out = append(out, p)
		}
	}
	return out
}

// ByRawField returns the first plan reading raw.
func (r *Registry) ByRawField(raw model.FieldKey) (*Plan, bool) {
	p, ok := r.byRaw[raw]
	return p, ok
}

// ByRedirectCode resolves a correction-scheme code id to its destination
// plan. An unresolvable code is a configuration error.
func (r *Registry) ByRedirectCode(codeID string) (*Plan, error) {
	p, ok := r.byRedirect[codeID]
	if !ok {
		return nil, codescheme.NewConfigurationError(r.correction.ID(), "redirect code %q does not name any coding plan", codeID)
	}
	return p, nil
}

// LocationPlans returns the plans forming the location hierarchy, fine first.
func (r *Registry) LocationPlans() []*Plan {
	var out []*Plan
	for _, p := range r.plans {
		if p.LocationLevel != "" {
			out = append(out, p)
		}
	}
	return out
}

// CorrectionScheme returns the scheme redirect labels are drawn from.
func (r *Registry) CorrectionScheme() *codescheme.Scheme { return r.correction }

// Schema enumerates every field key a record may carry.
func (r *Registry) Schema() *model.Schema { return r.schema }
