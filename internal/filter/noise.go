// Package filter removes records that should not reach analysis.
package filter

import (
	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/codescheme"
	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/plan"
)

// NoiseOtherProject drops records whose repeating answer was labelled as
// belonging to another project. A plan's binary field decides when it has
// one; otherwise its coded field does. Only checked labels count.
func NoiseOtherProject(reg *plan.Registry, records []*model.Record) ([]*model.Record, int, error) {
	kept := make([]*model.Record, 0, len(records))
	for _, r := range records {
		noise, err := isNoise(reg, r)
		if err != nil {
			return nil, 0, err
		}
		if !noise {
			kept = append(kept, r)
		}
	}
	dropped := len(records) - len(kept)
	zap.L().Info("filter: removed noise from other projects",
		zap.Int("kept", len(kept)),
		zap.Int("dropped", dropped),
	)
	return kept, dropped, nil
}

func isNoise(reg *plan.Registry, r *model.Record) (bool, error) {
	for _, p := range reg.Repeating() {
		if !r.Has(p.RawField) {
			continue
		}
		field, scheme := p.CodedField, p.Scheme
		if p.HasBinary() {
			field, scheme = p.BinaryCodedField, p.BinaryScheme
		}
		labels, _ := r.Labels(field)
		for _, l := range labels {
			if !l.Checked {
				continue
			}
			c, err := scheme.ByID(l.CodeID)
			if err != nil {
				return false, err
			}
			if c.IsControl() && c.ControlCode == codescheme.NoiseOtherProject {
				return true, nil
			}
		}
	}
	return false, nil
}
