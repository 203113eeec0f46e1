// Package store persists run history: runs, their phases, and the code
// counts of each run's output.
package store

import (
	"context"

	"github.com/sells-group/survey-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	User   string          `json:"user,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for reconciliation runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, input model.RunInput) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error
	ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error)

	// Output summary
	SaveCodeCounts(ctx context.Context, runID string, counts []model.CodeCount) error
	ListCodeCounts(ctx context.Context, runID string) ([]model.CodeCount, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// finalStatus is the status a run ends in once its result is recorded.
func finalStatus(result *model.RunResult) model.RunStatus {
	if result != nil && result.Error != "" {
		return model.RunStatusFailed
	}
	return model.RunStatusComplete
}

const defaultListLimit = 100
