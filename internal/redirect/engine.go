// Package redirect applies manually annotated scheme corrections, moving
// values logged under the wrong slot to the slot a reviewer named and
// repartitioning each identity's records accordingly.
package redirect

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/plan"
)

// Delimiter joins merged singular values and their source field names.
const Delimiter = "; "

// Stats summarises one engine run.
type Stats struct {
	Groups     int `json:"groups"`
	RecordsIn  int `json:"records_in"`
	RecordsOut int `json:"records_out"`
	Redirected int `json:"redirected"`
	Units      int `json:"units"`
}

func (s *Stats) add(o Stats) {
	s.Groups += o.Groups
	s.RecordsIn += o.RecordsIn
	s.RecordsOut += o.RecordsOut
	s.Redirected += o.Redirected
	s.Units += o.Units
}

// Engine redirects values between coding plans per identity group.
type Engine struct {
	reg     *plan.Registry
	user    string
	workers int
}

// New returns an Engine. workers bounds how many groups are corrected at
// once; values below one mean one.
func New(reg *plan.Registry, user string, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{reg: reg, user: user, workers: workers}
}

// Run groups records by identity, corrects each group, and returns the
// corrected records with each group's output in the group's order of first
// appearance. Input records of a group may be modified; treat them as
// consumed.
func (e *Engine) Run(ctx context.Context, records []*model.Record) ([]*model.Record, Stats, error) {
	groups := Group(records)

	type result struct {
		records []*model.Record
		stats   Stats
	}
	results := make([]result, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, group := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, st, err := e.correctGroup(group)
			if err != nil {
				return eris.Wrapf(err, "redirect: identity %s", group[0].Identity())
			}
			results[i] = result{records: out, stats: st}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}

	var (
		out   []*model.Record
		total Stats
	)
	for _, res := range results {
		out = append(out, res.records...)
		total.add(res.stats)
	}
	zap.L().Info("redirect: groups corrected",
		zap.Int("groups", total.Groups),
		zap.Int("records_in", total.RecordsIn),
		zap.Int("records_out", total.RecordsOut),
		zap.Int("redirected", total.Redirected),
	)
	return out, total, nil
}

// Group partitions records by identity, preserving first-appearance order of
// identities and input order within each group.
func Group(records []*model.Record) [][]*model.Record {
	index := make(map[string]int)
	var groups [][]*model.Record
	for _, r := range records {
		i, ok := index[r.Identity()]
		if !ok {
			i = len(groups)
			index[r.Identity()] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], r)
	}
	return groups
}

// tuple is one value found in a group, bound for a destination plan.
type tuple struct {
	value  string
	time   string
	at     time.Time
	source *plan.Plan
	dest   *plan.Plan
	record *model.Record
}

func (e *Engine) correctGroup(group []*model.Record) ([]*model.Record, Stats, error) {
	st := Stats{Groups: 1, RecordsIn: len(group)}

	tuples, err := e.collect(group)
	if err != nil {
		return nil, st, err
	}

	singular := make(map[model.FieldKey][]tuple)
	var units []tuple
	for _, t := range tuples {
		if t.dest != t.source {
			st.Redirected++
			zap.L().Debug("redirect: value moved",
				zap.String("identity", group[0].Identity()),
				zap.String("from", string(t.source.RawField)),
				zap.String("to", string(t.dest.RawField)),
			)
		}
		if t.dest.Category == plan.Singular {
			singular[t.dest.RawField] = append(singular[t.dest.RawField], t)
			continue
		}
		units = append(units, t)
	}

	template := group[0]
	e.applySingular(template, singular)
	template.Hide(e.repeatingFields(), model.NewMetadata(e.user))
	if len(units) == 0 {
		st.RecordsOut = 1
		return []*model.Record{template}, st, nil
	}

	out := make([]*model.Record, 0, len(units))
	for _, u := range units {
		c := template.Clone()
		set := map[model.FieldKey]model.Value{
			u.dest.RawField:      model.Text(u.value),
			u.dest.SourceField(): model.Text(string(u.source.RawField)),
		}
		if u.dest.TimeField != "" && u.time != "" {
			set[u.dest.TimeField] = model.Text(u.time)
		}
		if u.dest == u.source {
			// coding-error imputation reads the correction label
			for _, k := range []model.FieldKey{u.source.CorrectionField(), u.source.CorrectionIDField()} {
				if v, ok := u.record.Get(k); ok {
					set[k] = v
				}
			}
		}
		c.Append(set, model.NewMetadata(e.user))
		out = append(out, c)
	}
	st.Units = len(units)
	st.RecordsOut = len(out)
	return out, st, nil
}

// collect reads every (value, timestamp, source) tuple in the group and
// resolves its destination. Singular values are replicated across a group's
// records, so only the first record carrying one contributes it.
func (e *Engine) collect(group []*model.Record) ([]tuple, error) {
	var tuples []tuple
	for _, p := range e.reg.SlotPlans() {
		for _, r := range group {
			value, ok := r.Text(p.RawField)
			if !ok {
				continue
			}
			dest, err := e.destination(r, p)
			if err != nil {
				return nil, err
			}
			t := tuple{value: value, source: p, dest: dest, record: r}
			if p.TimeField != "" {
				t.time, _ = r.Text(p.TimeField)
				t.at = parseTime(r.Identity(), t.time)
			}
			tuples = append(tuples, t)
			if p.Category == plan.Singular {
				break
			}
		}
	}
	return tuples, nil
}

// destination resolves the plan the value of p in r belongs to. A missing or
// Control correction label keeps the value where it is.
func (e *Engine) destination(r *model.Record, p *plan.Plan) (*plan.Plan, error) {
	c, ok, err := plan.FirstCode(r, p.CorrectionField(), e.reg.CorrectionScheme())
	if err != nil {
		return nil, err
	}
	if !ok || !c.IsNormal() {
		return p, nil
	}
	return e.reg.ByRedirectCode(c.ID)
}

func parseTime(identity, s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	at, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		zap.L().Warn("redirect: unparseable timestamp",
			zap.String("identity", identity),
			zap.String("value", s),
		)
		return time.Time{}
	}
	return at
}

// applySingular rewrites the template's singular fields: fields that
// received tuples take the merged value, fields that received none are
// hidden.
func (e *Engine) applySingular(template *model.Record, received map[model.FieldKey][]tuple) {
	var hide []model.FieldKey
	set := make(map[model.FieldKey]model.Value)
	for _, p := range e.reg.SlotPlans() {
		if p.Category != plan.Singular {
			continue
		}
		ts := received[p.RawField]
		if len(ts) == 0 {
			if template.Has(p.RawField) {
				hide = append(hide, e.slotFields(p)...)
			}
			continue
		}
		value, at, source := merge(ts)
		set[p.RawField] = model.Text(value)
		set[p.SourceField()] = model.Text(source)
		if p.TimeField != "" && at != "" {
			set[p.TimeField] = model.Text(at)
		}
	}
	template.Hide(hide, model.NewMetadata(e.user))
	template.Append(set, model.NewMetadata(e.user))
}

// merge concatenates values and sources in ascending timestamp order and
// returns the earliest parseable timestamp.
func merge(ts []tuple) (value, at, source string) {
	sorted := make([]tuple, len(ts))
	copy(sorted, ts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].at.Before(sorted[j].at) })

	values := make([]string, len(sorted))
	sources := make([]string, len(sorted))
	for i, t := range sorted {
		values[i] = t.value
		sources[i] = string(t.source.RawField)
		if at == "" && !t.at.IsZero() {
			at = t.time
		}
	}
	if at == "" {
		for _, t := range sorted {
			if t.time != "" {
				at = t.time
				break
			}
		}
	}
	return strings.Join(values, Delimiter), at, strings.Join(sources, Delimiter)
}

// slotFields lists every field derived from p's raw field, including coded
// fields of plans sharing it.
func (e *Engine) slotFields(p *plan.Plan) []model.FieldKey {
	keys := []model.FieldKey{p.RawField, p.SourceField(), p.IDField}
	if p.TimeField != "" {
		keys = append(keys, p.TimeField)
	}
	for _, q := range e.reg.Plans() {
		if q.RawField != p.RawField {
			continue
		}
		keys = append(keys, q.CodedField)
		if q.HasBinary() {
			keys = append(keys, q.BinaryCodedField)
		}
	}
	return keys
}

// repeatingFields lists every field a repeating unit may carry. Time fields
// shared with singular plans are kept.
func (e *Engine) repeatingFields() []model.FieldKey {
	singularTime := make(map[model.FieldKey]bool)
	for _, p := range e.reg.Singular() {
		if p.TimeField != "" {
			singularTime[p.TimeField] = true
		}
	}
	var keys []model.FieldKey
	for _, p := range e.reg.Repeating() {
		keys = append(keys, p.RawField, p.SourceField(), p.IDField, p.CodedField,
			p.CorrectionField(), p.CorrectionIDField())
		if p.HasBinary() {
			keys = append(keys, p.BinaryCodedField)
		}
		if p.TimeField != "" && !singularTime[p.TimeField] {
			keys = append(keys, p.TimeField)
		}
	}
	return keys
}
