// Package location expands a single manually coded location into every level
// of the location hierarchy.
package location

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/codescheme"
	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/plan"
)

var origin = model.PipelineOrigin("pipeline_location", "Pipeline Location Resolution")

// Stats counts resolution outcomes.
type Stats struct {
	Expanded   int `json:"expanded"`
	Control    int `json:"control"`
	Conflicts  int `json:"conflicts"`
	Unreviewed int `json:"unreviewed"`
}

// Resolver applies hierarchy resolution over the registry's location plans.
type Resolver struct {
	plans  []*plan.Plan
	lookup Lookup
	user   string
	now    func() time.Time
}

// NewResolver returns a Resolver for reg's location plans.
func NewResolver(reg *plan.Registry, lookup Lookup, user string) *Resolver {
	return &Resolver{plans: reg.LocationPlans(), lookup: lookup, user: user, now: time.Now}
}

type found struct {
	code codescheme.Code
	plan *plan.Plan
}

// Apply resolves every record. Each record receives one delta setting every
// level.
func (rs *Resolver) Apply(records []*model.Record) (Stats, error) {
	var st Stats
	if len(rs.plans) == 0 {
		return st, nil
	}
	for _, r := range records {
		set, outcome, err := rs.resolve(r)
		if err != nil {
			return st, err
		}
		switch outcome {
		case outcomeExpanded:
			st.Expanded++
		case outcomeControl:
			st.Control++
		case outcomeConflict:
			st.Conflicts++
		case outcomeUnreviewed:
			st.Unreviewed++
		}
		r.Append(set, model.NewMetadata(rs.user))
	}
	zap.L().Info("location: hierarchy resolved",
		zap.Int("expanded", st.Expanded),
		zap.Int("control", st.Control),
		zap.Int("conflicts", st.Conflicts),
		zap.Int("unreviewed", st.Unreviewed),
	)
	return st, nil
}

type outcome int

const (
	outcomeExpanded outcome = iota
	outcomeControl
	outcomeConflict
	outcomeUnreviewed
)

func (rs *Resolver) resolve(r *model.Record) (map[model.FieldKey]model.Value, outcome, error) {
	now := rs.now()

	var first *found
	conflict := false
	for _, p := range rs.plans {
		c, ok, err := plan.FirstCode(r, p.CodedField, p.Scheme)
		if err != nil {
			return nil, 0, err
		}
		if !ok || (c.IsControl() && c.ControlCode == codescheme.NotReviewed) {
			continue
		}
		if first == nil {
			first = &found{code: c, plan: p}
			continue
		}
		if !rs.agrees(*first, found{code: c, plan: p}) {
			conflict = true
			break
		}
	}

	switch {
	case conflict:
		set, err := rs.allControl(codescheme.CodingError, now)
		return set, outcomeConflict, err
	case first == nil:
		set, err := rs.allControl(codescheme.NotReviewed, now)
		return set, outcomeUnreviewed, err
	case first.code.IsControl():
		set, err := rs.allControl(first.code.ControlCode, now)
		return set, outcomeControl, err
	}

	set := make(map[model.FieldKey]model.Value, len(rs.plans))
	for _, p := range rs.plans {
		if p == first.plan {
			set[p.CodedField] = plan.CodeValue(p.Scheme, first.code, origin, now)
			continue
		}
		value, ok := rs.lookup.Resolve(first.code.MatchValue(), p.LocationLevel)
		if !ok {
			v, err := plan.ControlValue(p.Scheme, codescheme.NotCoded, origin, now)
			if err != nil {
				return nil, 0, err
			}
			set[p.CodedField] = v
			continue
		}
		c, err := p.Scheme.ByMatchValue(value)
		if err != nil {
			return nil, 0, err
		}
		set[p.CodedField] = plan.CodeValue(p.Scheme, c, origin, now)
	}
	return set, outcomeExpanded, nil
}

// agrees reports whether b is consistent with a: the same code, the same
// control tag, or a Normal code the lookup derives from a.
func (rs *Resolver) agrees(a, b found) bool {
	if a.code.ID == b.code.ID && a.plan.Scheme == b.plan.Scheme {
		return true
	}
	if a.code.IsControl() || b.code.IsControl() {
		return a.code.IsControl() && b.code.IsControl() && a.code.ControlCode == b.code.ControlCode
	}
	if a.plan.LocationLevel == b.plan.LocationLevel {
		return false
	}
	v, ok := rs.lookup.Resolve(a.code.MatchValue(), b.plan.LocationLevel)
	return ok && v == b.code.MatchValue()
}

func (rs *Resolver) allControl(cc codescheme.ControlCode, now time.Time) (map[model.FieldKey]model.Value, error) {
	set := make(map[model.FieldKey]model.Value, len(rs.plans))
	for _, p := range rs.plans {
		v, err := plan.ControlValue(p.Scheme, cc, origin, now)
		if err != nil {
			return nil, err
		}
		set[p.CodedField] = v
	}
	return set, nil
}
