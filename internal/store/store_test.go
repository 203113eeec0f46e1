package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/survey-cli/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testInput(user string) model.RunInput {
	return model.RunInput{User: user, InputPath: "in/records.jsonl", OutputPath: "out/records.jsonl.gz", PlansFile: "plans.yaml"}
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, testInput("analyst"))
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, model.RunStatusQueued, run.Status)

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, testInput("analyst"), got.Input)
		assert.Nil(t, got.Result)
	})

	t.Run("GetRunNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetRun(context.Background(), "missing")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("UpdateRunStatus", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, testInput("analyst"))
		require.NoError(t, err)
		require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusRedirecting))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusRedirecting, got.Status)

		err = s.UpdateRunStatus(ctx, "missing", model.RunStatusImputing)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("UpdateRunResult", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ok, err := s.CreateRun(ctx, testInput("analyst"))
		require.NoError(t, err)
		require.NoError(t, s.UpdateRunResult(ctx, ok.ID, &model.RunResult{
			RecordsIn: 10, RecordsOut: 12, Groups: 4, Redirected: 3,
			Phases: []model.PhaseResult{{Name: "redirect", Status: model.PhaseStatusComplete, Duration: 5}},
		}))

		failed, err := s.CreateRun(ctx, testInput("analyst"))
		require.NoError(t, err)
		require.NoError(t, s.UpdateRunResult(ctx, failed.ID, &model.RunResult{Error: "configuration error"}))

		got, err := s.GetRun(ctx, ok.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusComplete, got.Status)
		require.NotNil(t, got.Result)
		assert.Equal(t, 12, got.Result.RecordsOut)
		require.Len(t, got.Result.Phases, 1)
		assert.Equal(t, "redirect", got.Result.Phases[0].Name)

		got, err = s.GetRun(ctx, failed.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusFailed, got.Status)
		assert.Equal(t, "configuration error", got.Result.Error)
	})

	t.Run("ListRuns", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, user := range []string{"alice", "bob", "alice"} {
			_, err := s.CreateRun(ctx, testInput(user))
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)
		}
		runs, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Len(t, runs, 3)
		assert.False(t, runs[0].CreatedAt.Before(runs[2].CreatedAt))

		runs, err = s.ListRuns(ctx, RunFilter{User: "alice"})
		require.NoError(t, err)
		assert.Len(t, runs, 2)

		require.NoError(t, s.UpdateRunStatus(ctx, runs[0].ID, model.RunStatusFailed))
		runs, err = s.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
		require.NoError(t, err)
		assert.Len(t, runs, 1)

		runs, err = s.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	})

	t.Run("Phases", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, testInput("analyst"))
		require.NoError(t, err)

		p1, err := s.CreatePhase(ctx, run.ID, "redirect")
		require.NoError(t, err)
		assert.Equal(t, model.PhaseStatusRunning, p1.Status)
		time.Sleep(2 * time.Millisecond)
		p2, err := s.CreatePhase(ctx, run.ID, "impute_missing")
		require.NoError(t, err)

		require.NoError(t, s.CompletePhase(ctx, p1.ID, &model.PhaseResult{
			Name: "redirect", Status: model.PhaseStatusComplete, Duration: 42,
			Metadata: map[string]any{"groups": 3},
		}))

		phases, err := s.ListPhases(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, phases, 2)
		assert.Equal(t, p1.ID, phases[0].ID)
		assert.Equal(t, model.PhaseStatusComplete, phases[0].Status)
		require.NotNil(t, phases[0].Result)
		assert.Equal(t, int64(42), phases[0].Result.Duration)
		assert.Equal(t, p2.ID, phases[1].ID)
		assert.Nil(t, phases[1].Result)

		err = s.CompletePhase(ctx, "missing", &model.PhaseResult{Status: model.PhaseStatusFailed})
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("CodeCounts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, testInput("analyst"))
		require.NoError(t, err)

		require.NoError(t, s.SaveCodeCounts(ctx, run.ID, nil))
		require.NoError(t, s.SaveCodeCounts(ctx, run.ID, []model.CodeCount{
			{Field: "gender_coded", SchemeID: "gender", CodeID: "gender-male", Count: 2},
			{Field: "age_coded", SchemeID: "age", CodeID: "age-24", Count: 5},
		}))
		require.NoError(t, s.SaveCodeCounts(ctx, run.ID, []model.CodeCount{
			{Field: "age_coded", SchemeID: "age", CodeID: "age-24", Count: 7},
		}))

		counts, err := s.ListCodeCounts(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, []model.CodeCount{
			{Field: "age_coded", SchemeID: "age", CodeID: "age-24", Count: 7},
			{Field: "gender_coded", SchemeID: "gender", CodeID: "gender-male", Count: 2},
		}, counts)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestFinalStatus(t *testing.T) {
	assert.Equal(t, model.RunStatusComplete, finalStatus(nil))
	assert.Equal(t, model.RunStatusComplete, finalStatus(&model.RunResult{}))
	assert.Equal(t, model.RunStatusFailed, finalStatus(&model.RunResult{Error: "boom"}))
}
