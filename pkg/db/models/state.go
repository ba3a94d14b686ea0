package models

import "time"

// Run modes. Full ignores the stage watermark and recomputes every entity;
// incremental recomputes only entities touched since the watermark. Both
// rescan full history per entity, so they converge to identical tables.
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
)

// Watermark is the per-stage high-water mark of input ingestion time
// incorporated by the last successfully committed run. It is monotonically
// non-decreasing and advances only after all dependent writes succeed and
// blocking validations pass. It is never derived from output tables.
type Watermark struct {
	Stage       string    `ch:"stage"`
	Watermark   time.Time `ch:"watermark"`
	RunID       string    `ch:"run_id"`
	CommittedAt time.Time `ch:"committed_at"`
}

// CheckResult is one validation rule outcome for one table.
type CheckResult struct {
	Rule     string  `ch:"rule"`
	Column   string  `ch:"column"`
	Passed   bool    `ch:"passed"`
	Blocking bool    `ch:"blocking"`
	Detail   string  `ch:"detail"`
	Observed float64 `ch:"observed"`
}

// ValidationReport collects the rule outcomes for one feature table in one
// run. A report with a failed blocking check stops the watermark commit for
// that table only.
type ValidationReport struct {
	Table   string        `ch:"table"`
	RunID   string        `ch:"run_id"`
	Checks  []CheckResult `ch:"-"`
	RanAt   time.Time     `ch:"ran_at"`
	Passed  bool          `ch:"passed"`
	Blocked bool          `ch:"blocked"`
}

// FailedChecks returns the subset of checks that did not pass.
func (r *ValidationReport) FailedChecks() []CheckResult {
	var out []CheckResult
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// RunReport is the structured, user-visible outcome of one stage run.
type RunReport struct {
	RunID              string            `ch:"run_id"`
	Stage              string            `ch:"stage"`
	Mode               string            `ch:"mode"`
	StartedAt          time.Time         `ch:"started_at"`
	DurationMs         float64           `ch:"duration_ms"`
	RowsRead           uint64            `ch:"rows_read"`
	RowsSkipped        uint64            `ch:"rows_skipped"`
	EntitiesRecomputed uint64            `ch:"entities_recomputed"`
	RowsWritten        uint64            `ch:"rows_written"`
	WatermarkBefore    time.Time         `ch:"watermark_before"`
	WatermarkAfter     time.Time         `ch:"watermark_after"`
	Advanced           bool              `ch:"advanced"`
	Cancelled          bool              `ch:"cancelled"`
	Error              string            `ch:"error"`
	Validation         *ValidationReport `ch:"-"`
}

// StageStatus is what the orchestrator-facing status call returns.
type StageStatus struct {
	Stage                string            `json:"stage"`
	Watermark            time.Time         `json:"watermark"`
	LastValidationReport *ValidationReport `json:"last_validation_report,omitempty"`
	LastRun              *RunReport        `json:"last_run,omitempty"`
}
