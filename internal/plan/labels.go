package plan

import (
	"time"

	"github.com/sells-group/survey-cli/internal/codescheme"
	"github.com/sells-group/survey-cli/internal/model"
)

// Codes resolves every label on field against scheme. A label naming a code
// the scheme does not define is a configuration error.
func Codes(r *model.Record, field model.FieldKey, scheme *codescheme.Scheme) ([]codescheme.Code, error) {
	labels, ok := r.Labels(field)
	if !ok {
		return nil, nil
	}
	out := make([]codescheme.Code, 0, len(labels))
	for _, l := range labels {
		c, err := scheme.ByID(l.CodeID)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// FirstCode returns the code of the first label on field. ok is false when
// the field carries no labels.
func FirstCode(r *model.Record, field model.FieldKey, scheme *codescheme.Scheme) (c codescheme.Code, ok bool, err error) {
	codes, err := Codes(r, field, scheme)
	if err != nil || len(codes) == 0 {
		return codescheme.Code{}, false, err
	}
	return codes[0], true, nil
}

// ControlValue returns a one-label value carrying scheme's code for cc.
func ControlValue(scheme *codescheme.Scheme, cc codescheme.ControlCode, origin model.Origin, now time.Time) (model.Value, error) {
	c, err := scheme.ByControlCode(cc)
	if err != nil {
		return model.Value{}, err
	}
	return CodeValue(scheme, c, origin, now), nil
}

// CodeValue returns a one-label value carrying c.
func CodeValue(scheme *codescheme.Scheme, c codescheme.Code, origin model.Origin, now time.Time) model.Value {
	return model.Labels(model.NewLabel(scheme.ID(), c.ID, origin, now))
}
