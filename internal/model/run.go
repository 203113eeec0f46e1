package model

import "time"

// RunStatus represents the current state of a reconciliation run.
type RunStatus string

const (
	RunStatusQueued        RunStatus = "queued"
	RunStatusRedirecting   RunStatus = "redirecting"
	RunStatusCoding        RunStatus = "coding"
	RunStatusImputing      RunStatus = "imputing"
	RunStatusSynchronising RunStatus = "synchronising"
	RunStatusLocating      RunStatus = "locating"
	RunStatusWriting       RunStatus = "writing"
	RunStatusComplete      RunStatus = "complete"
	RunStatusFailed        RunStatus = "failed"
)

// RunInput describes what a run was asked to process.
type RunInput struct {
	User       string `json:"user"`
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	PlansFile  string `json:"plans_file"`
}

// Run represents a single reconciliation run over one batch of records.
type Run struct {
	ID        string     `json:"id"`
	Input     RunInput   `json:"input"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	RecordsIn  int           `json:"records_in"`
	RecordsOut int           `json:"records_out"`
	Groups     int           `json:"groups"`
	Redirected int           `json:"redirected"`
	Imputed    int           `json:"imputed"`
	Filtered   int           `json:"filtered"`
	Phases     []PhaseResult `json:"phases"`
	Error      string        `json:"error,omitempty"`
}

// RunPhase represents a phase within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
