package impute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/survey-cli/internal/codescheme"
	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/plan/plantest"
)

func ctl(scheme string, cc codescheme.ControlCode) string { return plantest.Control(scheme, cc) }

func TestMissing_Totality(t *testing.T) {
	t.Parallel()

	reg := plantest.Registry()
	r := plantest.Record("uid-1", map[model.FieldKey]model.Value{
		plantest.Ep1Raw:        model.Text("yes"),
		plantest.Ep1Coded:      plantest.Manual("episode", "episode-yes"),
		plantest.Ep1YesNoCoded: plantest.Manual("yes_no", "yes_no-yes"),
		plantest.AgeRaw:        model.Text(""),
		plantest.LocationRaw:   model.Text("kibra"),
	})

	st, err := New(reg, "tester").Missing([]*model.Record{r})
	require.NoError(t, err)
	assert.Equal(t, Stats{Records: 1, Fields: 4}, st)

	assert.Equal(t, "episode-yes", plantest.CodeID(r, plantest.Ep1Coded))
	assert.Equal(t, "yes_no-yes", plantest.CodeID(r, plantest.Ep1YesNoCoded))
	assert.Equal(t, ctl("episode", codescheme.TrueMissing), plantest.CodeID(r, plantest.Ep2Coded))
	assert.Equal(t, ctl("episode", codescheme.TrueMissing), plantest.CodeID(r, plantest.Ep3Coded))
	assert.Equal(t, ctl("age", codescheme.NotCoded), plantest.CodeID(r, plantest.AgeCoded))
	assert.Equal(t, ctl("gender", codescheme.TrueMissing), plantest.CodeID(r, plantest.GenderCoded))
	assert.False(t, r.Has(plantest.ConstituencyCoded))
	assert.False(t, r.Has(plantest.CountyCoded))

	hist := r.History()
	require.Len(t, hist, 2)
	assert.Equal(t, "tester", hist[1].Meta.Author)
	assert.Equal(t, "impute.(*Imputer).Missing", hist[1].Meta.Location)

	ls, _ := r.Labels(plantest.GenderCoded)
	assert.True(t, ls[0].Checked)
	assert.Equal(t, model.OriginAutomatic, ls[0].Origin.OriginType)
}

func TestMissing_EmptyRawLeavesBinaryAlone(t *testing.T) {
	t.Parallel()

	r := plantest.Record("uid-1", map[model.FieldKey]model.Value{
		plantest.Ep1Raw: model.Text(""),
	})
	_, err := New(plantest.Registry(), "tester").Missing([]*model.Record{r})
	require.NoError(t, err)

	assert.Equal(t, ctl("episode", codescheme.NotCoded), plantest.CodeID(r, plantest.Ep1Coded))
	assert.False(t, r.Has(plantest.Ep1YesNoCoded))
}

func TestMissing_AbsentRawSetsBinary(t *testing.T) {
	t.Parallel()

	r := plantest.Record("uid-1", map[model.FieldKey]model.Value{plantest.UID: model.Text("uid-1")})
	_, err := New(plantest.Registry(), "tester").Missing([]*model.Record{r})
	require.NoError(t, err)

	assert.Equal(t, ctl("yes_no", codescheme.TrueMissing), plantest.CodeID(r, plantest.Ep1YesNoCoded))
	assert.Equal(t, ctl("constituency", codescheme.TrueMissing), plantest.CodeID(r, plantest.ConstituencyCoded))
	assert.Equal(t, ctl("county", codescheme.TrueMissing), plantest.CodeID(r, plantest.CountyCoded))
}

func TestMissing_NeverOverwritesHumanCode(t *testing.T) {
	t.Parallel()

	r := plantest.Record("uid-1", map[model.FieldKey]model.Value{
		plantest.AgeCoded:    plantest.Manual("age", "age-24"),
		plantest.GenderCoded: plantest.Manual("gender", ctl("gender", codescheme.NotReviewed)),
	})
	_, err := New(plantest.Registry(), "tester").Missing([]*model.Record{r})
	require.NoError(t, err)

	assert.Equal(t, "age-24", plantest.CodeID(r, plantest.AgeCoded))
	assert.Equal(t, ctl("gender", codescheme.TrueMissing), plantest.CodeID(r, plantest.GenderCoded))
}

func TestMissing_UnknownCodeIsFatal(t *testing.T) {
	t.Parallel()

	r := plantest.Record("uid-1", map[model.FieldKey]model.Value{
		plantest.AgeCoded: plantest.Manual("age", "age-999"),
	})
	_, err := New(plantest.Registry(), "tester").Missing([]*model.Record{r})
	require.Error(t, err)
	assert.True(t, codescheme.IsConfiguration(err))
}

func TestCodingErrors(t *testing.T) {
	t.Parallel()

	reg := plantest.Registry()
	ep1, _ := reg.ByRawField(plantest.Ep1Raw)
	ep2, _ := reg.ByRawField(plantest.Ep2Raw)
	age, _ := reg.ByRawField(plantest.AgeRaw)

	flagged := plantest.Record("uid-1", map[model.FieldKey]model.Value{
		plantest.Ep1Raw:       model.Text("hmm"),
		plantest.Ep1Coded:     plantest.Manual("episode", "episode-yes"),
		ep1.CorrectionField(): plantest.Manual("ws_correct_dataset", ctl("ws", codescheme.CodingError)),
		age.CorrectionField(): plantest.Manual("ws_correct_dataset", ctl("ws", codescheme.NotReviewed)),
	})
	clean := plantest.Record("uid-2", map[model.FieldKey]model.Value{
		ep2.CorrectionField(): plantest.Manual("ws_correct_dataset", "ws-ep3"),
	})

	st, err := New(reg, "tester").CodingErrors([]*model.Record{flagged, clean})
	require.NoError(t, err)
	assert.Equal(t, Stats{Records: 1, Fields: 2}, st)

	assert.Equal(t, ctl("episode", codescheme.CodingError), plantest.CodeID(flagged, plantest.Ep1Coded))
	assert.Equal(t, ctl("yes_no", codescheme.CodingError), plantest.CodeID(flagged, plantest.Ep1YesNoCoded))
	assert.False(t, flagged.Has(plantest.AgeCoded))
	assert.Len(t, clean.History(), 1)
}
