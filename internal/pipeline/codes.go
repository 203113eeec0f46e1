package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/survey-cli/internal/annotation"
	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/plan"
)

func addStats(a *annotation.Stats, b annotation.Stats) {
	a.Records += b.Records
	a.Labelled += b.Labelled
	a.Pending += b.Pending
}

// importCorrections attaches the scheme-correction labels of every plan so
// the redirection engine can read them.
func importCorrections(ctx context.Context, reg *plan.Registry, records []*model.Record, codas *datasetCache, user string) (annotation.Stats, error) {
	var total annotation.Stats
	im := annotation.NewImporter(user)
	for _, p := range reg.Plans() {
		ds, err := codas.get(ctx, p.CodaFilename)
		if err != nil {
			return total, err
		}
		annotation.AssignIDs(records, p.RawField, p.CorrectionIDField(), user)
		st, err := im.Import(records, annotation.Target{
			IDField:    p.CorrectionIDField(),
			CodedField: p.CorrectionField(),
			Scheme:     reg.CorrectionScheme(),
		}, ds)
		if err != nil {
			return total, eris.Wrapf(err, "pipeline: import corrections for %s", p.CodedField)
		}
		addStats(&total, st)
	}
	return total, nil
}

// importCodes attaches the manual codes of every plan. Repeating plans keep
// every checked code; the rest keep the latest one.
func importCodes(ctx context.Context, reg *plan.Registry, records []*model.Record, codas *datasetCache, user string) (annotation.Stats, error) {
	var total annotation.Stats
	im := annotation.NewImporter(user)
	for _, p := range reg.Plans() {
		ds, err := codas.get(ctx, p.CodaFilename)
		if err != nil {
			return total, err
		}
		annotation.AssignIDs(records, p.RawField, p.IDField, user)
		for _, t := range targets(p) {
			st, err := im.Import(records, t, ds)
			if err != nil {
				return total, eris.Wrapf(err, "pipeline: import codes for %s", t.CodedField)
			}
			addStats(&total, st)
		}
	}
	return total, nil
}

// targets lists the coded fields a plan's annotation file feeds.
func targets(p *plan.Plan) []annotation.Target {
	out := []annotation.Target{{
		IDField:    p.IDField,
		CodedField: p.CodedField,
		Scheme:     p.Scheme,
		Multi:      p.Category == plan.Repeating,
	}}
	if p.HasBinary() {
		out = append(out, annotation.Target{
			IDField:    p.IDField,
			CodedField: p.BinaryCodedField,
			Scheme:     p.BinaryScheme,
		})
	}
	return out
}

// codedFields returns every coded field in the registry, once each.
func codedFields(reg *plan.Registry) []model.FieldKey {
	seen := make(map[model.FieldKey]bool)
	var out []model.FieldKey
	for _, p := range reg.Plans() {
		for _, t := range targets(p) {
			if !seen[t.CodedField] {
				seen[t.CodedField] = true
				out = append(out, t.CodedField)
			}
		}
	}
	return out
}
