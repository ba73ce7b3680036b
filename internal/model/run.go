// Package model defines the domain types shared across the ETL core:
// extraction runs, canonical prospects, attribute records, lineage
// entries, and quality reports.
package model

import "time"

// RunStatus represents the terminal (or in-flight) state of an extraction run.
type RunStatus string

const (
	RunStatusRunning        RunStatus = "running"
	RunStatusSuccess        RunStatus = "success"
	RunStatusPartialSuccess RunStatus = "partial_success"
	RunStatusFailed         RunStatus = "failed"
)

// Phase identifies one stage of the pipeline state machine.
type Phase string

const (
	PhaseExtract   Phase = "extract"
	PhaseTransform Phase = "transform"
	PhaseValidate  Phase = "validate"
	PhaseMerge     Phase = "merge"
	PhaseLoad      Phase = "load"
	PhasePublish   Phase = "publish"
)

// Phases lists all pipeline phases in execution order.
var Phases = []Phase{PhaseExtract, PhaseTransform, PhaseValidate, PhaseMerge, PhaseLoad, PhasePublish}

// PhaseStatus represents the state of a single phase execution.
type PhaseStatus string

const (
	PhaseStatusPending PhaseStatus = "pending"
	PhaseStatusRunning PhaseStatus = "running"
	PhaseStatusSuccess PhaseStatus = "success"
	PhaseStatusFailed  PhaseStatus = "failed"
	PhaseStatusSkipped PhaseStatus = "skipped"
)

// RunCounts aggregates per-run record counts across phases.
type RunCounts struct {
	RowsStaged      int64 `json:"rows_staged"`
	RowsTransformed int64 `json:"rows_transformed"`
	RowsFailed      int64 `json:"rows_failed"`
	EntitiesCreated int64 `json:"entities_created"`
	EntitiesMerged  int64 `json:"entities_merged"`
	LineageWritten  int64 `json:"lineage_written"`
}

// ExtractionRun is the audit anchor for one pipeline execution.
// Rows are never deleted; terminal status is set exactly once.
type ExtractionRun struct {
	ID          string     `json:"id"`
	BatchID     string     `json:"batch_id"`
	Status      RunStatus  `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	Counts      RunCounts  `json:"counts"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PhaseExecution records the outcome of one phase within a run.
type PhaseExecution struct {
	ID          int64          `json:"id"`
	RunID       string         `json:"run_id"`
	Phase       Phase          `json:"phase"`
	Status      PhaseStatus    `json:"status"`
	Detail      map[string]any `json:"detail,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// ExecutionRecord is the full result returned to callers of an extraction:
// the run row, its phase executions, and the quality report when one was
// produced. No error escapes the orchestrator without being captured here.
type ExecutionRecord struct {
	Run     ExtractionRun    `json:"run"`
	Phases  []PhaseExecution `json:"phases"`
	Quality *QualityReport   `json:"quality,omitempty"`
}

// PhaseByName returns the execution record for the named phase, or nil.
func (r *ExecutionRecord) PhaseByName(p Phase) *PhaseExecution {
	for i := range r.Phases {
		if r.Phases[i].Phase == p {
			return &r.Phases[i]
		}
	}
	return nil
}
