package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/survey-cli/internal/model"
)

func TestMetrics_ObserveRun(t *testing.T) {
	m := New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.ObserveRun(model.RunStatusComplete, &model.RunResult{RecordsIn: 10, RecordsOut: 14, Redirected: 3}, at)
	m.ObserveRun(model.RunStatusFailed, nil, at)

	assert.InDelta(t, 10, testutil.ToFloat64(m.records.WithLabelValues("in")), 0)
	assert.InDelta(t, 14, testutil.ToFloat64(m.records.WithLabelValues("out")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.redirected), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.runs.WithLabelValues("failed")), 0)
	assert.InDelta(t, float64(at.Unix()), testutil.ToFloat64(m.lastRun), 0)
}

func TestMetrics_Labels(t *testing.T) {
	m := New()
	m.AddLabels("impute_missing", 4)
	m.AddLabels("impute_missing", 0)
	m.AddLabels("sync", 2)

	assert.InDelta(t, 4, testutil.ToFloat64(m.labelsWritten.WithLabelValues("impute_missing")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.labelsWritten.WithLabelValues("sync")), 0)
}

func TestMetrics_PhaseHistogram(t *testing.T) {
	m := New()
	m.ObservePhase("redirect", model.PhaseStatusComplete, 20*time.Millisecond)
	m.ObservePhase("redirect", model.PhaseStatusComplete, 30*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.phaseDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObservePhase("redirect", model.PhaseStatusComplete, time.Second)
	m.AddLabels("sync", 1)
	m.ObserveRun(model.RunStatusComplete, nil, time.Now())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.ObserveRun(model.RunStatusComplete, &model.RunResult{RecordsIn: 2, RecordsOut: 2}, time.Now())

	path := filepath.Join(t.TempDir(), "survey.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `survey_records_total{direction="in"} 2`)
	assert.Contains(t, string(data), `survey_runs_total{status="complete"} 1`)
}
