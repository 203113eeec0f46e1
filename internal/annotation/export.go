package annotation

import (
	"time"

	"github.com/sells-group/survey-cli/internal/codescheme"
	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/plan"
)

// Source names the fields a plan's messages are exported from.
type Source struct {
	RawField  model.FieldKey
	TimeField model.FieldKey
	IDField   model.FieldKey
	// Coded lists the fields whose labels travel with the message, each with
	// the scheme it is coded under.
	Coded []Target
}

// Export builds a dataset of the messages still awaiting review: records
// carrying RawField whose coded fields are absent or NOT_REVIEWED. Each
// distinct text is exported once, dated by the earliest record carrying it.
func Export(records []*model.Record, src Source) (*Dataset, error) {
	ds := NewDataset()
	for _, r := range records {
		raw, ok := r.Text(src.RawField)
		if !ok {
			continue
		}
		pending, labels, err := reviewState(r, src.Coded)
		if err != nil {
			return nil, err
		}
		if !pending {
			continue
		}

		id := MessageID(raw)
		created := ""
		if src.TimeField != "" {
			created, _ = r.Text(src.TimeField)
		}
		if prev, ok := ds.Get(id); ok {
			if !earlier(created, prev.CreationDateTimeUTC) {
				continue
			}
			labels = prev.Labels
		}
		ds.Add(Message{MessageID: id, Text: raw, CreationDateTimeUTC: created, Labels: labels})
	}
	return ds, nil
}

// reviewState reports whether any coded field still needs review and
// collects the automatic labels to pre-fill the message with.
func reviewState(r *model.Record, coded []Target) (bool, []model.Label, error) {
	pending := false
	labels := []model.Label{}
	for _, t := range coded {
		c, ok, err := plan.FirstCode(r, t.CodedField, t.Scheme)
		if err != nil {
			return false, nil, err
		}
		if !ok || (c.IsControl() && c.ControlCode == codescheme.NotReviewed) {
			pending = true
			continue
		}
		ls, _ := r.Labels(t.CodedField)
		for _, l := range ls {
			if l.Origin.OriginType == model.OriginAutomatic {
				labels = append(labels, l)
			}
		}
	}
	return pending, labels, nil
}

func earlier(a, b string) bool {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA != nil || errB != nil {
		return b == "" && a != ""
	}
	return ta.Before(tb)
}
