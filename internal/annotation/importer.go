package annotation

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/codescheme"
	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/plan"
)

var importOrigin = model.PipelineOrigin("pipeline_annotation_import", "Pipeline Annotation Import")

// Target names the fields one scheme is imported into.
type Target struct {
	IDField    model.FieldKey
	CodedField model.FieldKey
	Scheme     *codescheme.Scheme
	// Multi keeps every checked code instead of only the latest one.
	Multi bool
}

// Stats counts what an import did.
type Stats struct {
	Records  int `json:"records"`
	Labelled int `json:"labelled"`
	Pending  int `json:"pending"`
}

// Importer copies reviewed labels from a dataset onto records.
type Importer struct {
	user string
	now  func() time.Time
}

// NewImporter returns an importer attributing its deltas to user.
func NewImporter(user string) *Importer {
	return &Importer{user: user, now: func() time.Time { return time.Now().UTC() }}
}

// Import sets t.CodedField on every record carrying t.IDField. A message the
// dataset does not hold, or whose labels for the scheme were never checked,
// becomes NOT_REVIEWED. A label naming a code outside the scheme aborts the
// import.
func (im *Importer) Import(records []*model.Record, t Target, ds *Dataset) (Stats, error) {
	var st Stats
	for _, r := range records {
		id, ok := r.Text(t.IDField)
		if !ok {
			continue
		}
		st.Records++

		var labels []model.Label
		if m, ok := ds.Get(id); ok {
			if t.Multi {
				labels = latestChecked(m.Labels, t.Scheme.ID())
			} else if l, ok := latest(m.Labels, t.Scheme.ID()); ok && l.Checked {
				labels = []model.Label{l}
			}
		}
		for _, l := range labels {
			if _, err := t.Scheme.ByID(l.CodeID); err != nil {
				return st, err
			}
		}

		var v model.Value
		if len(labels) > 0 {
			v = model.Labels(labels...)
			st.Labelled++
		} else {
			nr, err := plan.ControlValue(t.Scheme, codescheme.NotReviewed, importOrigin, im.now())
			if err != nil {
				return st, err
			}
			v = nr
			st.Pending++
		}
		r.Append(map[model.FieldKey]model.Value{t.CodedField: v}, model.NewMetadata(im.user))
	}
	zap.L().Debug("annotation: imported labels",
		zap.String("field", string(t.CodedField)),
		zap.String("scheme", t.Scheme.ID()),
		zap.Int("records", st.Records),
		zap.Int("labelled", st.Labelled),
		zap.Int("pending", st.Pending),
	)
	return st, nil
}

// latest returns the newest label for scheme.
func latest(labels []model.Label, scheme string) (model.Label, bool) {
	for _, l := range labels {
		if l.SchemeID == scheme {
			return l, true
		}
	}
	return model.Label{}, false
}

// latestChecked returns, for each code of scheme, its newest label if that
// label is checked. Order follows first appearance.
func latestChecked(labels []model.Label, scheme string) []model.Label {
	seen := make(map[string]bool)
	var out []model.Label
	for _, l := range labels {
		if l.SchemeID != scheme || seen[l.CodeID] {
			continue
		}
		seen[l.CodeID] = true
		if l.Checked {
			out = append(out, l)
		}
	}
	return out
}
