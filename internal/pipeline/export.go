package pipeline

import (
	"context"
	"path"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/annotation"
	"github.com/sells-group/survey-cli/internal/plan"
	"github.com/sells-group/survey-cli/internal/recordio"
)

// ExportResult reports what ExportCoda wrote for one annotation file.
type ExportResult struct {
	Filename string `json:"filename"`
	Pending  int    `json:"pending"`
	Added    int    `json:"added"`
	Total    int    `json:"total"`
}

// ExportCoda writes every message still awaiting review in the records at
// inputKey into its plan's annotation file. Messages already present in a
// file are left as they are, so reviewed work is never overwritten.
func (p *Pipeline) ExportCoda(ctx context.Context, inputKey string) ([]ExportResult, error) {
	records, err := recordio.Load(ctx, p.blobs, inputKey, p.reg.Schema())
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: export load")
	}
	user := p.cfg.Pipeline.User

	var files []string
	byFile := make(map[string][]*plan.Plan)
	for _, pl := range p.reg.Plans() {
		if _, ok := byFile[pl.CodaFilename]; !ok {
			files = append(files, pl.CodaFilename)
		}
		byFile[pl.CodaFilename] = append(byFile[pl.CodaFilename], pl)
	}

	codas := newDatasetCache(p.blobs, p.cfg.Pipeline.AnnotationPrefix)
	out := make([]ExportResult, 0, len(files))
	for _, file := range files {
		plans := byFile[file]
		pending := annotation.NewDataset()
		for _, pl := range plans {
			annotation.AssignIDs(records, pl.RawField, pl.IDField, user)
			ds, err := annotation.Export(records, annotation.Source{
				RawField:  pl.RawField,
				TimeField: pl.TimeField,
				IDField:   pl.IDField,
				Coded:     targets(pl),
			})
			if err != nil {
				return nil, eris.Wrapf(err, "pipeline: export %s", pl.RawField)
			}
			pending.Merge(ds)
		}

		existing, err := codas.get(ctx, file)
		if err != nil {
			return nil, err
		}
		added := existing.Merge(pending)
		if added > 0 {
			if err := annotation.WriteDataset(ctx, p.blobs, path.Join(p.cfg.Pipeline.AnnotationPrefix, file), existing); err != nil {
				return nil, err
			}
		}
		zap.L().Info("pipeline: exported messages",
			zap.String("file", file),
			zap.Int("pending", pending.Len()),
			zap.Int("added", added),
		)
		out = append(out, ExportResult{Filename: file, Pending: pending.Len(), Added: added, Total: existing.Len()})
	}
	return out, nil
}
