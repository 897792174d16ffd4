package model

import "time"

// RunStatus is the aggregate outcome of one ingestion run.
type RunStatus string

const (
	// RunCompleted means every selected source finished without error.
	RunCompleted RunStatus = "COMPLETED"
	// RunPartial means some sources failed but at least one succeeded.
	RunPartial RunStatus = "PARTIAL"
	// RunFailed means every selected source failed.
	RunFailed RunStatus = "FAILED"
)

// IngestError is a structured error recorded during a run, sufficient to
// diagnose which source or record failed without crashing the scheduler.
type IngestError struct {
	Message   string    `json:"message"`
	ItemName  string    `json:"item_name,omitempty"`
	Phase     string    `json:"phase"`
	Timestamp time.Time `json:"timestamp"`
}

// SourceStats accumulates per-source counters for one run.
type SourceStats struct {
	Source         string `json:"source"`
	Found          int    `json:"found"`
	Parsed         int    `json:"parsed"`
	NewCompanies   int    `json:"new_companies"`
	NewRounds      int    `json:"new_rounds"`
	Skipped        int    `json:"skipped"`
	Errors         int    `json:"errors"`
	Batches        int    `json:"batches"`
	CircuitSkipped bool   `json:"circuit_skipped,omitempty"`
	Failed         bool   `json:"failed,omitempty"`
}

// RunResult is the aggregate outcome returned by the orchestrator.
type RunResult struct {
	Status         RunStatus              `json:"status"`
	ItemsProcessed int                    `json:"items_processed"`
	ItemsCreated   int                    `json:"items_created"`
	ItemsSkipped   int                    `json:"items_skipped"`
	ItemsFailed    int                    `json:"items_failed"`
	DurationMs     int64                  `json:"duration_ms"`
	Sources        map[string]SourceStats `json:"per_source_breakdown"`
	Errors         []IngestError          `json:"errors,omitempty"`
}
