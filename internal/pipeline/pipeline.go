// Package pipeline runs the reconciliation stage end to end: it reads a batch
// of records, applies every coding stage in order and writes the result.
package pipeline

import (
	"context"
	"path"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/annotation"
	"github.com/sells-group/survey-cli/internal/blob"
	"github.com/sells-group/survey-cli/internal/config"
	"github.com/sells-group/survey-cli/internal/filter"
	"github.com/sells-group/survey-cli/internal/impute"
	"github.com/sells-group/survey-cli/internal/location"
	"github.com/sells-group/survey-cli/internal/metrics"
	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/plan"
	"github.com/sells-group/survey-cli/internal/recordio"
	"github.com/sells-group/survey-cli/internal/redirect"
	"github.com/sells-group/survey-cli/internal/schemesync"
	"github.com/sells-group/survey-cli/internal/store"
)

// Phase names as recorded in run history.
const (
	PhaseLoad              = "load_records"
	PhaseImportCorrections = "import_corrections"
	PhaseRedirect          = "redirect"
	PhaseImportCodes       = "import_codes"
	PhaseImputeMissing     = "impute_missing"
	PhaseSynchronise       = "synchronise_schemes"
	PhaseLocate            = "resolve_locations"
	PhaseImputeErrors      = "impute_coding_errors"
	PhaseFilterNoise       = "filter_noise"
	PhaseWrite             = "write_records"
)

// Pipeline orchestrates one reconciliation run.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	blobs   blob.Store
	reg     *plan.Registry
	lookup  location.Lookup
	metrics *metrics.Metrics
}

// New creates a Pipeline. A nil lookup resolves no locations; a nil metrics
// sink records nothing.
func New(
	cfg *config.Config,
	st store.Store,
	blobs blob.Store,
	reg *plan.Registry,
	lookup location.Lookup,
	m *metrics.Metrics,
) *Pipeline {
	if lookup == nil {
		lookup = emptyLookup{}
	}
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		blobs:   blobs,
		reg:     reg,
		lookup:  lookup,
		metrics: m,
	}
}

type emptyLookup struct{}

func (emptyLookup) Resolve(string, string) (string, bool) { return "", false }

// Run executes every stage over the records at input.InputPath and writes
// the result to input.OutputPath. A structural error aborts the run: the run
// is marked failed and no output is written.
func (p *Pipeline) Run(ctx context.Context, input model.RunInput) (*model.RunResult, error) {
	if input.User == "" {
		input.User = p.cfg.Pipeline.User
	}
	log := zap.L().With(zap.String("input", input.InputPath), zap.String("output", input.OutputPath))
	log.Info("pipeline: starting run")

	result := &model.RunResult{}

	run, err := p.store.CreateRun(ctx, input)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log = log.With(zap.String("run_id", run.ID))

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) error {
		phase, phaseErr := p.store.CreatePhase(ctx, run.ID, name)
		if phaseErr != nil {
			log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
		}

		start := time.Now()
		phaseResult, fnErr := fn()
		elapsed := time.Since(start)

		if phaseResult == nil {
			phaseResult = &model.PhaseResult{}
		}
		phaseResult.Name = name
		phaseResult.Duration = elapsed.Milliseconds()

		if fnErr != nil {
			phaseResult.Status = model.PhaseStatusFailed
			phaseResult.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", phaseResult.Duration),
				zap.Error(fnErr),
			)
		} else if phaseResult.Status == "" {
			phaseResult.Status = model.PhaseStatusComplete
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", phaseResult.Duration),
				zap.Any("metadata", phaseResult.Metadata),
			)
		}

		if phase != nil {
			if err := p.store.CompletePhase(ctx, phase.ID, phaseResult); err != nil {
				log.Warn("pipeline: failed to complete phase", zap.String("phase", name), zap.Error(err))
			}
		}
		p.metrics.ObservePhase(name, phaseResult.Status, elapsed)
		result.Phases = append(result.Phases, *phaseResult)
		return fnErr
	}

	records, err := p.stages(ctx, run.ID, input, result, setStatus, trackPhase)
	if err != nil {
		result.Error = err.Error()
		p.finish(ctx, run.ID, model.RunStatusFailed, result, log)
		return result, eris.Wrapf(err, "pipeline: run %s", run.ID)
	}

	result.RecordsOut = len(records)
	p.finish(ctx, run.ID, model.RunStatusComplete, result, log)
	log.Info("pipeline: run complete",
		zap.Int("records_in", result.RecordsIn),
		zap.Int("records_out", result.RecordsOut),
		zap.Int("redirected", result.Redirected),
		zap.Int("imputed", result.Imputed),
	)
	return result, nil
}

type phaseFunc func(name string, fn func() (*model.PhaseResult, error)) error

// stages runs the phases in order and returns the records written.
func (p *Pipeline) stages(
	ctx context.Context,
	runID string,
	input model.RunInput,
	result *model.RunResult,
	setStatus func(model.RunStatus),
	trackPhase phaseFunc,
) ([]*model.Record, error) {
	user := input.User
	codas := newDatasetCache(p.blobs, p.cfg.Pipeline.AnnotationPrefix)

	var records []*model.Record
	err := trackPhase(PhaseLoad, func() (*model.PhaseResult, error) {
		var err error
		records, err = recordio.Load(ctx, p.blobs, input.InputPath, p.reg.Schema())
		if err != nil {
			return nil, err
		}
		result.RecordsIn = len(records)
		return meta("records", len(records)), nil
	})
	if err != nil {
		return nil, err
	}

	err = trackPhase(PhaseImportCorrections, func() (*model.PhaseResult, error) {
		st, err := importCorrections(ctx, p.reg, records, codas, user)
		if err != nil {
			return nil, err
		}
		p.metrics.AddLabels(PhaseImportCorrections, st.Labelled+st.Pending)
		return meta("labelled", st.Labelled, "pending", st.Pending), nil
	})
	if err != nil {
		return nil, err
	}

	setStatus(model.RunStatusRedirecting)
	err = trackPhase(PhaseRedirect, func() (*model.PhaseResult, error) {
		out, st, err := redirect.New(p.reg, user, p.cfg.Pipeline.Workers).Run(ctx, records)
		if err != nil {
			return nil, err
		}
		records = out
		result.Groups = st.Groups
		result.Redirected = st.Redirected
		return meta("groups", st.Groups, "records_in", st.RecordsIn, "records_out", st.RecordsOut,
			"redirected", st.Redirected, "units", st.Units), nil
	})
	if err != nil {
		return nil, err
	}

	setStatus(model.RunStatusCoding)
	err = trackPhase(PhaseImportCodes, func() (*model.PhaseResult, error) {
		st, err := importCodes(ctx, p.reg, records, codas, user)
		if err != nil {
			return nil, err
		}
		p.metrics.AddLabels(PhaseImportCodes, st.Labelled+st.Pending)
		return meta("labelled", st.Labelled, "pending", st.Pending), nil
	})
	if err != nil {
		return nil, err
	}

	imputer := impute.New(p.reg, user)

	setStatus(model.RunStatusImputing)
	err = trackPhase(PhaseImputeMissing, func() (*model.PhaseResult, error) {
		st, err := imputer.Missing(records)
		if err != nil {
			return nil, err
		}
		result.Imputed += st.Fields
		p.metrics.AddLabels(PhaseImputeMissing, st.Fields)
		return meta("records", st.Records, "fields", st.Fields), nil
	})
	if err != nil {
		return nil, err
	}

	setStatus(model.RunStatusSynchronising)
	err = trackPhase(PhaseSynchronise, func() (*model.PhaseResult, error) {
		n, err := schemesync.New(p.reg, user).Apply(records)
		if err != nil {
			return nil, err
		}
		p.metrics.AddLabels(PhaseSynchronise, n)
		return meta("fields", n), nil
	})
	if err != nil {
		return nil, err
	}

	setStatus(model.RunStatusLocating)
	err = trackPhase(PhaseLocate, func() (*model.PhaseResult, error) {
		if len(p.reg.LocationPlans()) == 0 {
			return &model.PhaseResult{Status: model.PhaseStatusSkipped}, nil
		}
		st, err := location.NewResolver(p.reg, p.lookup, user).Apply(records)
		if err != nil {
			return nil, err
		}
		return meta("expanded", st.Expanded, "control", st.Control,
			"conflicts", st.Conflicts, "unreviewed", st.Unreviewed), nil
	})
	if err != nil {
		return nil, err
	}

	err = trackPhase(PhaseImputeErrors, func() (*model.PhaseResult, error) {
		st, err := imputer.CodingErrors(records)
		if err != nil {
			return nil, err
		}
		result.Imputed += st.Fields
		p.metrics.AddLabels(PhaseImputeErrors, st.Fields)
		return meta("records", st.Records, "fields", st.Fields), nil
	})
	if err != nil {
		return nil, err
	}

	err = trackPhase(PhaseFilterNoise, func() (*model.PhaseResult, error) {
		if !p.cfg.Pipeline.FilterNoise {
			return &model.PhaseResult{Status: model.PhaseStatusSkipped}, nil
		}
		kept, dropped, err := filter.NoiseOtherProject(p.reg, records)
		if err != nil {
			return nil, err
		}
		records = kept
		result.Filtered = dropped
		return meta("dropped", dropped), nil
	})
	if err != nil {
		return nil, err
	}

	setStatus(model.RunStatusWriting)
	err = trackPhase(PhaseWrite, func() (*model.PhaseResult, error) {
		info, err := recordio.Save(ctx, p.blobs, input.OutputPath, records)
		if err != nil {
			return nil, err
		}
		counts := model.CountCodes(records, codedFields(p.reg))
		if err := p.store.SaveCodeCounts(ctx, runID, counts); err != nil {
			zap.L().Warn("pipeline: failed to save code counts", zap.String("run_id", runID), zap.Error(err))
		}
		return meta("records", len(records), "bytes", info.Size, "code_counts", len(counts)), nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// finish records the outcome of a run. Failures here are logged, never
// returned: the run itself already succeeded or failed.
func (p *Pipeline) finish(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult, log *zap.Logger) {
	if err := p.store.UpdateRunResult(ctx, runID, result); err != nil {
		log.Warn("pipeline: failed to save result", zap.Error(err))
	}
	p.metrics.ObserveRun(status, result, time.Now())
	if err := p.metrics.WriteTextfile(p.cfg.Metrics.Textfile); err != nil {
		log.Warn("pipeline: failed to write metrics", zap.Error(err))
	}
}

// meta builds a PhaseResult carrying alternating key/value metadata.
func meta(kv ...any) *model.PhaseResult {
	md := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		md[kv[i].(string)] = kv[i+1]
	}
	return &model.PhaseResult{Metadata: md}
}

// datasetCache loads each annotation file at most once per run.
type datasetCache struct {
	blobs  blob.Store
	prefix string
	loaded map[string]*annotation.Dataset
}

func newDatasetCache(blobs blob.Store, prefix string) *datasetCache {
	return &datasetCache{blobs: blobs, prefix: prefix, loaded: make(map[string]*annotation.Dataset)}
}

func (c *datasetCache) get(ctx context.Context, filename string) (*annotation.Dataset, error) {
	if ds, ok := c.loaded[filename]; ok {
		return ds, nil
	}
	ds, err := annotation.ReadDataset(ctx, c.blobs, path.Join(c.prefix, filename))
	if err != nil {
		return nil, err
	}
	c.loaded[filename] = ds
	return ds, nil
}
