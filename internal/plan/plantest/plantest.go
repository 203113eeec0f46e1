// Package plantest builds a small scheme set and registry for tests.
package plantest

import (
	"strings"
	"time"

	"github.com/sells-group/survey-cli/internal/codescheme"
	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/plan"
)

// Field keys declared by Registry.
const (
	Ep1Raw        model.FieldKey = "rqa_ep1_raw"
	Ep1Coded      model.FieldKey = "rqa_ep1_coded"
	Ep1YesNoCoded model.FieldKey = "rqa_ep1_yes_no_coded"
	Ep2Raw        model.FieldKey = "rqa_ep2_raw"
	Ep2Coded      model.FieldKey = "rqa_ep2_coded"
	Ep3Raw        model.FieldKey = "rqa_ep3_raw"
	Ep3Coded      model.FieldKey = "rqa_ep3_coded"
	SentOn        model.FieldKey = "sent_on"

	AgeRaw      model.FieldKey = "age_raw"
	AgeCoded    model.FieldKey = "age_coded"
	AgeTime     model.FieldKey = "age_time"
	GenderRaw   model.FieldKey = "gender_raw"
	GenderCoded model.FieldKey = "gender_coded"
	GenderTime  model.FieldKey = "gender_time"

	LocationRaw       model.FieldKey = "location_raw"
	LocationTime      model.FieldKey = "location_time"
	ConstituencyCoded model.FieldKey = "constituency_coded"
	CountyCoded       model.FieldKey = "county_coded"

	UID model.FieldKey = "uid"
)

// Control returns the conventional id of a control code in scheme.
func Control(scheme string, cc codescheme.ControlCode) string {
	return scheme + "-" + string(cc)
}

func controls(scheme string, tags ...codescheme.ControlCode) []codescheme.Code {
	out := make([]codescheme.Code, 0, len(tags))
	for _, cc := range tags {
		out = append(out, codescheme.Code{ID: Control(scheme, cc), Type: codescheme.CodeTypeControl, ControlCode: cc})
	}
	return out
}

func normals(scheme string, values ...string) []codescheme.Code {
	out := make([]codescheme.Code, 0, len(values))
	for _, v := range values {
		out = append(out, codescheme.Code{ID: scheme + "-" + v, Type: codescheme.CodeTypeNormal, MatchValues: []string{v}, ManualReview: true})
	}
	return out
}

var standardControls = []codescheme.ControlCode{
	codescheme.NotCoded, codescheme.NotReviewed, codescheme.TrueMissing,
	codescheme.CodingError, codescheme.NoiseOtherProject, codescheme.Stop,
}

func mustScheme(id string, codes []codescheme.Code) *codescheme.Scheme {
	s, err := codescheme.New(id, id, codes)
	if err != nil {
		panic(err)
	}
	return s
}

// Schemes returns the fixture scheme set.
func Schemes() *codescheme.Set {
	set, err := codescheme.NewSet(
		mustScheme("ws_correct_dataset", append(
			normals("ws", "ep1", "ep2", "ep3", "age", "gender", "location", "retired"),
			controls("ws", codescheme.NotReviewed, codescheme.CodingError, codescheme.NotCoded)...)),
		mustScheme("episode", append(normals("episode", "yes", "no", "maybe"), controls("episode", standardControls...)...)),
		mustScheme("yes_no", append(normals("yes_no", "yes", "no"), controls("yes_no", standardControls...)...)),
		mustScheme("age", append(normals("age", "18", "24", "30"), controls("age", standardControls...)...)),
		mustScheme("gender", append(normals("gender", "male", "female"), controls("gender", standardControls...)...)),
		mustScheme("constituency", append(normals("constituency", "kibra", "langata", "westlands"), controls("constituency", standardControls...)...)),
		mustScheme("county", append(normals("county", "nairobi", "mombasa"), controls("county", standardControls...)...)),
	)
	if err != nil {
		panic(err)
	}
	return set
}

// RegistryYAML is the fixture registry in file form.
const RegistryYAML = `
correction_scheme: ws_correct_dataset
fields: [uid]
plans:
  - raw_field: rqa_ep1_raw
    coded_field: rqa_ep1_coded
    time_field: sent_on
    coda_filename: ep1.json
    category: repeating
    scheme: episode
    binary_scheme: yes_no
    binary_coded_field: rqa_ep1_yes_no_coded
    redirect_match_value: ep1
  - raw_field: rqa_ep2_raw
    coded_field: rqa_ep2_coded
    time_field: sent_on
    coda_filename: ep2.json
    category: repeating
    scheme: episode
    redirect_match_value: ep2
  - raw_field: rqa_ep3_raw
    coded_field: rqa_ep3_coded
    time_field: sent_on
    coda_filename: ep3.json
    category: repeating
    scheme: episode
    redirect_match_value: ep3
  - raw_field: age_raw
    coded_field: age_coded
    time_field: age_time
    coda_filename: age.json
    category: singular
    scheme: age
    redirect_match_value: age
  - raw_field: gender_raw
    coded_field: gender_coded
    time_field: gender_time
    coda_filename: gender.json
    category: singular
    scheme: gender
    redirect_match_value: gender
  - raw_field: location_raw
    coded_field: constituency_coded
    time_field: location_time
    coda_filename: location.json
    category: singular
    scheme: constituency
    redirect_match_value: location
    location_level: constituency
  - raw_field: location_raw
    coded_field: county_coded
    time_field: location_time
    coda_filename: location.json
    category: singular
    scheme: county
    location_level: county
`

// Registry returns the fixture registry bound to Schemes.
func Registry() *plan.Registry {
	reg, err := plan.Decode(strings.NewReader(RegistryYAML), Schemes())
	if err != nil {
		panic(err)
	}
	return reg
}

// Manual returns a checked, manually applied label value for each code id.
func Manual(schemeID string, codeIDs ...string) model.Value {
	labels := make([]model.Label, 0, len(codeIDs))
	for _, id := range codeIDs {
		labels = append(labels, model.Label{
			SchemeID:    schemeID,
			CodeID:      id,
			DateTimeUTC: "2026-01-01T00:00:00Z",
			Checked:     true,
			Origin:      model.Origin{OriginID: "coder-1", Name: "Coder", OriginType: model.OriginManual},
		})
	}
	return model.Labels(labels...)
}

// Meta returns fixed provenance for test deltas.
func Meta() model.Metadata {
	return model.Metadata{Author: "test", Location: "plantest", Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Record builds a record for identity from flat values.
func Record(identity string, values map[model.FieldKey]model.Value) *model.Record {
	r := model.NewRecord(identity)
	r.Append(values, Meta())
	return r
}

// CodeID returns the single code id on field, or "" if absent.
func CodeID(r *model.Record, field model.FieldKey) string {
	ls, ok := r.Labels(field)
	if !ok || len(ls) == 0 {
		return ""
	}
	return ls[0].CodeID
}
