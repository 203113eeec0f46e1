// Package schemesync keeps a plan's detailed ("reasons") channel consistent
// with its coarse binary channel when only the binary was reviewed.
package schemesync

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/codescheme"
	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/plan"
)

var origin = model.PipelineOrigin("pipeline_code_sync", "Pipeline Code Synchronisation")

// Synchronizer reconciles binary and reasons channels.
type Synchronizer struct {
	reg  *plan.Registry
	user string
	now  func() time.Time
}

// New returns a Synchronizer authoring deltas as user.
func New(reg *plan.Registry, user string) *Synchronizer {
	return &Synchronizer{reg: reg, user: user, now: time.Now}
}

// Apply updates every record whose raw field is present for a dual-scheme
// plan. When the binary field was reviewed and the reasons field was not,
// reasons takes the binary's control tag, or NOT_CODED if the binary code is
// Normal. It returns the number of fields updated.
func (s *Synchronizer) Apply(records []*model.Record) (int, error) {
	var updated int
	for _, p := range s.reg.Plans() {
		if !p.HasBinary() {
			continue
		}
		for _, r := range records {
			if !r.Has(p.RawField) {
				continue
			}
			v, ok, err := s.reconcile(r, p)
			if err != nil {
				return updated, err
			}
			if !ok {
				continue
			}
			r.Append(map[model.FieldKey]model.Value{p.CodedField: v}, model.NewMetadata(s.user))
			updated++
		}
	}
	zap.L().Info("schemesync: reasons synchronised", zap.Int("fields", updated))
	return updated, nil
}

func (s *Synchronizer) reconcile(r *model.Record, p *plan.Plan) (model.Value, bool, error) {
	binary, ok, err := plan.FirstCode(r, p.BinaryCodedField, p.BinaryScheme)
	if err != nil || !ok {
		return model.Value{}, false, err
	}
	if isNotReviewed(binary) {
		return model.Value{}, false, nil
	}

	reasons, err := plan.Codes(r, p.CodedField, p.Scheme)
	if err != nil {
		return model.Value{}, false, err
	}
	if len(reasons) > 1 || (len(reasons) == 1 && !isNotReviewed(reasons[0])) {
		return model.Value{}, false, nil
	}

	tag := codescheme.NotCoded
	if binary.IsControl() {
		tag = binary.ControlCode
	}
	v, err := plan.ControlValue(p.Scheme, tag, origin, s.now())
	if err != nil {
		return model.Value{}, false, err
	}
	return v, true, nil
}

func isNotReviewed(c codescheme.Code) bool {
	return c.IsControl() && c.ControlCode == codescheme.NotReviewed
}
