// Package impute fills coded fields that received no human input with
// deterministic control codes.
package impute

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/codescheme"
	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/plan"
)

var origin = model.PipelineOrigin("pipeline_auto_code", "Pipeline Auto-Coder")

// Stats summarises one imputation pass.
type Stats struct {
	Records int `json:"records"`
	Fields  int `json:"fields"`
}

// Imputer applies control-code imputation over a registry's plans.
type Imputer struct {
	reg  *plan.Registry
	user string
	now  func() time.Time
}

// New returns an Imputer that authors its deltas as user.
func New(reg *plan.Registry, user string) *Imputer {
	return &Imputer{reg: reg, user: user, now: time.Now}
}

// Missing sets TRUE_MISSING on coded (and binary) fields whose raw field is
// absent, and NOT_CODED on coded fields whose raw field is empty. Fields
// already holding a checked code other than NOT_REVIEWED are left alone.
// Each touched record gets exactly one delta.
func (im *Imputer) Missing(records []*model.Record) (Stats, error) {
	var st Stats
	for _, r := range records {
		set := make(map[model.FieldKey]model.Value)
		now := im.now()
		for _, p := range im.reg.Plans() {
			raw, present := r.Text(p.RawField)
			switch {
			case !present:
				if err := im.fill(r, set, p.CodedField, p.Scheme, codescheme.TrueMissing, now); err != nil {
					return st, err
				}
				if p.HasBinary() {
					if err := im.fill(r, set, p.BinaryCodedField, p.BinaryScheme, codescheme.TrueMissing, now); err != nil {
						return st, err
					}
				}
			case raw == "":
				if err := im.fill(r, set, p.CodedField, p.Scheme, codescheme.NotCoded, now); err != nil {
					return st, err
				}
			}
		}
		if len(set) > 0 {
			r.Append(set, model.NewMetadata(im.user))
			st.Records++
			st.Fields += len(set)
		}
	}
	zap.L().Info("impute: missing codes applied",
		zap.Int("records", st.Records),
		zap.Int("fields", st.Fields),
	)
	return st, nil
}

func (im *Imputer) fill(r *model.Record, set map[model.FieldKey]model.Value, field model.FieldKey, scheme *codescheme.Scheme, cc codescheme.ControlCode, now time.Time) error {
	held, err := substantive(r, field, scheme)
	if err != nil {
		return err
	}
	if held {
		return nil
	}
	v, err := plan.ControlValue(scheme, cc, origin, now)
	if err != nil {
		return err
	}
	set[field] = v
	return nil
}

// substantive reports whether field holds a checked code other than
// NOT_REVIEWED.
func substantive(r *model.Record, field model.FieldKey, scheme *codescheme.Scheme) (bool, error) {
	labels, ok := r.Labels(field)
	if !ok || len(labels) == 0 {
		return false, nil
	}
	for _, l := range labels {
		if !l.Checked {
			continue
		}
		c, err := scheme.ByID(l.CodeID)
		if err != nil {
			return false, err
		}
		if !(c.IsControl() && c.ControlCode == codescheme.NotReviewed) {
			return true, nil
		}
	}
	return false, nil
}

// CodingErrors sets CODING_ERROR on the coded (and binary) field of every
// plan whose scheme-correction label is CODING_ERROR.
func (im *Imputer) CodingErrors(records []*model.Record) (Stats, error) {
	correction := im.reg.CorrectionScheme()
	var st Stats
	for _, r := range records {
		set := make(map[model.FieldKey]model.Value)
		now := im.now()
		for _, p := range im.reg.Plans() {
			c, ok, err := plan.FirstCode(r, p.CorrectionField(), correction)
			if err != nil {
				return st, err
			}
			if !ok || !c.IsControl() || c.ControlCode != codescheme.CodingError {
				continue
			}
			if set[p.CodedField], err = plan.ControlValue(p.Scheme, codescheme.CodingError, origin, now); err != nil {
				return st, err
			}
			if p.HasBinary() {
				if set[p.BinaryCodedField], err = plan.ControlValue(p.BinaryScheme, codescheme.CodingError, origin, now); err != nil {
					return st, err
				}
			}
		}
		if len(set) > 0 {
			r.Append(set, model.NewMetadata(im.user))
			st.Records++
			st.Fields += len(set)
		}
	}
	zap.L().Info("impute: coding errors applied",
		zap.Int("records", st.Records),
		zap.Int("fields", st.Fields),
	)
	return st, nil
}
