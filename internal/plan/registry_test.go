package plan_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/survey-cli/internal/codescheme"
	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/plan"
	"github.com/sells-group/survey-cli/internal/plan/plantest"
)

func TestRegistry_Partitions(t *testing.T) {
	t.Parallel()

	reg := plantest.Registry()

	assert.Len(t, reg.Plans(), 7)
	assert.Len(t, reg.Repeating(), 3)
	assert.Len(t, reg.Singular(), 4)
	assert.Len(t, reg.SlotPlans(), 6)

	loc := reg.LocationPlans()
	require.Len(t, loc, 2)
	assert.Equal(t, "constituency", loc[0].LocationLevel)
	assert.Equal(t, "county", loc[1].LocationLevel)

	p, ok := reg.ByRawField(plantest.LocationRaw)
	require.True(t, ok)
	assert.Equal(t, plantest.ConstituencyCoded, p.CodedField)

	_, ok = reg.ByRawField("nope")
	assert.False(t, ok)
}

func TestRegistry_DerivedFields(t *testing.T) {
	t.Parallel()

	p, ok := plantest.Registry().ByRawField(plantest.Ep1Raw)
	require.True(t, ok)

	assert.Equal(t, model.FieldKey("rqa_ep1_raw_id"), p.IDField)
	assert.Equal(t, model.FieldKey("rqa_ep1_raw_source"), p.SourceField())
	assert.Equal(t, model.FieldKey("rqa_ep1_coded_ws_correct_dataset"), p.CorrectionField())
	assert.Equal(t, model.FieldKey("rqa_ep1_raw_id_ws"), p.CorrectionIDField())
	assert.True(t, p.HasBinary())
	assert.Contains(t, p.Fields(), plantest.Ep1YesNoCoded)
}

func TestRegistry_ByRedirectCode(t *testing.T) {
	t.Parallel()

	reg := plantest.Registry()

	p, err := reg.ByRedirectCode("ws-ep3")
	require.NoError(t, err)
	assert.Equal(t, plantest.Ep3Raw, p.RawField)

	_, err = reg.ByRedirectCode("ws-unknown")
	require.Error(t, err)
	assert.True(t, codescheme.IsConfiguration(err))
}

func TestRegistry_Schema(t *testing.T) {
	t.Parallel()

	s := plantest.Registry().Schema()
	for _, k := range []model.FieldKey{plantest.UID, plantest.SentOn, plantest.AgeRaw, "age_raw_source", "county_coded_ws_correct_dataset"} {
		assert.True(t, s.Contains(k), k)
	}
	assert.False(t, s.Contains("favourite_colour"))
}

func TestDecode_ConfigurationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unloaded scheme",
			yaml: "correction_scheme: ws_correct_dataset\nplans:\n  - {raw_field: a, coded_field: b, category: singular, scheme: missing}\n",
			want: `scheme "missing" was never loaded`,
		},
		{
			name: "unloaded correction scheme",
			yaml: "correction_scheme: nope\nplans: []\n",
			want: "never loaded",
		},
		{
			name: "unknown redirect match value",
			yaml: "correction_scheme: ws_correct_dataset\nplans:\n  - {raw_field: a, coded_field: b, category: singular, scheme: age, redirect_match_value: zzz}\n",
			want: "redirect match value",
		},
		{
			name: "bad category",
			yaml: "correction_scheme: ws_correct_dataset\nplans:\n  - {raw_field: a, coded_field: b, category: sometimes, scheme: age}\n",
			want: "unknown category",
		},
		{
			name: "duplicate coded field",
			yaml: "correction_scheme: ws_correct_dataset\nplans:\n  - {raw_field: a, coded_field: b, category: singular, scheme: age}\n  - {raw_field: c, coded_field: b, category: singular, scheme: age}\n",
			want: "coded field declared twice",
		},
		{
			name: "shared raw with mixed categories",
			yaml: "correction_scheme: ws_correct_dataset\nplans:\n  - {raw_field: a, coded_field: b, category: singular, scheme: age}\n  - {raw_field: a, coded_field: c, category: repeating, scheme: age}\n",
			want: "different categories",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := plan.Decode(strings.NewReader(tt.yaml), plantest.Schemes())
			require.Error(t, err)
			assert.True(t, codescheme.IsConfiguration(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewRegistry_NonNormalRedirect(t *testing.T) {
	t.Parallel()

	set := plantest.Schemes()
	ws, err := set.Get("ws_correct_dataset")
	require.NoError(t, err)
	age, err := set.Get("age")
	require.NoError(t, err)

	nr, err := ws.ByControlCode(codescheme.NotReviewed)
	require.NoError(t, err)

	_, err = plan.NewRegistry(ws, []*plan.Plan{{
		RawField: "a", CodedField: "b", Category: plan.Singular, Scheme: age, RedirectCode: &nr,
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not Normal")

	_, err = plan.NewRegistry(nil, nil)
	assert.True(t, codescheme.IsConfiguration(err))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(plantest.RegistryYAML), 0o644))

	reg, err := plan.LoadFile(path, plantest.Schemes())
	require.NoError(t, err)
	assert.Len(t, reg.Plans(), 7)

	_, err = plan.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), plantest.Schemes())
	assert.Error(t, err)
}
