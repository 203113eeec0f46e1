package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/survey-cli/internal/codescheme"
	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/plan/plantest"
)

func kenya(t *testing.T) *TableLookup {
	t.Helper()
	l, err := NewTableLookup([]Row{
		{Value: "nairobi", Level: "county"},
		{Value: "mombasa", Level: "county"},
		{Value: "kibra", Level: "constituency", Parent: "nairobi"},
		{Value: "langata", Level: "constituency", Parent: "nairobi"},
	})
	require.NoError(t, err)
	return l
}

type mapLookup map[string]string

func (m mapLookup) Resolve(v, _ string) (string, bool) {
	out, ok := m[v]
	return out, ok
}

func TestResolver_Apply(t *testing.T) {
	t.Parallel()

	ctl := plantest.Control
	tests := []struct {
		name         string
		constituency string
		county       string
		wantConst    string
		wantCounty   string
		want         Stats
	}{
		{
			name: "fine code expands upward", constituency: "constituency-kibra",
			wantConst: "constituency-kibra", wantCounty: "county-nairobi", want: Stats{Expanded: 1},
		},
		{
			name: "coarse code cannot expand downward", county: "county-nairobi",
			wantConst: ctl("constituency", codescheme.NotCoded), wantCounty: "county-nairobi", want: Stats{Expanded: 1},
		},
		{
			name: "consistent levels are not a conflict", constituency: "constituency-langata", county: "county-nairobi",
			wantConst: "constituency-langata", wantCounty: "county-nairobi", want: Stats{Expanded: 1},
		},
		{
			name: "conflicting levels", constituency: "constituency-kibra", county: "county-mombasa",
			wantConst: ctl("constituency", codescheme.CodingError), wantCounty: ctl("county", codescheme.CodingError), want: Stats{Conflicts: 1},
		},
		{
			name: "unreviewed placeholders are skipped", constituency: ctl("constituency", codescheme.NotReviewed), county: "county-mombasa",
			wantConst: ctl("constituency", codescheme.NotCoded), wantCounty: "county-mombasa", want: Stats{Expanded: 1},
		},
		{
			name: "control code propagates", constituency: ctl("constituency", codescheme.Stop),
			wantConst: ctl("constituency", codescheme.Stop), wantCounty: ctl("county", codescheme.Stop), want: Stats{Control: 1},
		},
		{
			name: "matching control codes agree", constituency: ctl("constituency", codescheme.NoiseOtherProject), county: ctl("county", codescheme.NoiseOtherProject),
			wantConst: ctl("constituency", codescheme.NoiseOtherProject), wantCounty: ctl("county", codescheme.NoiseOtherProject), want: Stats{Control: 1},
		},
		{
			name: "nothing reviewed", wantConst: ctl("constituency", codescheme.NotReviewed), wantCounty: ctl("county", codescheme.NotReviewed), want: Stats{Unreviewed: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			values := map[model.FieldKey]model.Value{plantest.LocationRaw: model.Text("somewhere")}
			if tt.constituency != "" {
				values[plantest.ConstituencyCoded] = plantest.Manual("constituency", tt.constituency)
			}
			if tt.county != "" {
				values[plantest.CountyCoded] = plantest.Manual("county", tt.county)
			}
			r := plantest.Record("uid-1", values)

			st, err := NewResolver(plantest.Registry(), kenya(t), "tester").Apply([]*model.Record{r})
			require.NoError(t, err)
			assert.Equal(t, tt.want, st)
			assert.Equal(t, tt.wantConst, plantest.CodeID(r, plantest.ConstituencyCoded))
			assert.Equal(t, tt.wantCounty, plantest.CodeID(r, plantest.CountyCoded))
			assert.Len(t, r.History(), 2)
		})
	}
}

func TestResolver_LookupMissIsNotCoded(t *testing.T) {
	t.Parallel()

	r := plantest.Record("uid-1", map[model.FieldKey]model.Value{
		plantest.ConstituencyCoded: plantest.Manual("constituency", "constituency-westlands"),
	})
	_, err := NewResolver(plantest.Registry(), kenya(t), "tester").Apply([]*model.Record{r})
	require.NoError(t, err)
	assert.Equal(t, "constituency-westlands", plantest.CodeID(r, plantest.ConstituencyCoded))
	assert.Equal(t, plantest.Control("county", codescheme.NotCoded), plantest.CodeID(r, plantest.CountyCoded))
}

func TestResolver_LookupOutsideSchemeIsFatal(t *testing.T) {
	t.Parallel()

	r := plantest.Record("uid-1", map[model.FieldKey]model.Value{
		plantest.ConstituencyCoded: plantest.Manual("constituency", "constituency-kibra"),
	})
	_, err := NewResolver(plantest.Registry(), mapLookup{"kibra": "atlantis"}, "tester").Apply([]*model.Record{r})
	require.Error(t, err)
	assert.True(t, codescheme.IsConfiguration(err))
}
