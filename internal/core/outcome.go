package core

import "time"

// Status is the classification of one unit's run.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Icon is the marker used for the status in the run summary.
func (s Status) Icon() string {
	switch s {
	case StatusSuccess:
		return "✅"
	case StatusFailed:
		return "❌"
	case StatusPartial:
		return "⚠️"
	default:
		return "⏸️"
	}
}

// Classify derives a unit status from its counters. It is the only place
// a status is decided:
//
//	failed == 0                 -> success
//	success == 0 && failed > 0  -> failed
//	otherwise                   -> partial
func Classify(success, failed int) Status {
	switch {
	case failed == 0:
		return StatusSuccess
	case success == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// Outcome is the result of one import unit.
type Outcome struct {
	Unit       string        `json:"unit"`
	Table      string        `json:"table,omitempty"`
	Success    int           `json:"success"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Status     Status        `json:"status"`
	FailedRows []FailedRow   `json:"failedRows,omitempty"`
	Duration   time.Duration `json:"durationNs"`
}

// pendingOutcome is the placeholder for a unit that has not run.
func pendingOutcome(def TableDefinition) Outcome {
	return Outcome{Unit: def.Info.Key, Table: def.Info.Table, Status: StatusPending}
}

// markFailed forces a failed classification after a unit-level error.
// Counters already consistent with a failure are kept; otherwise the unit
// is charged with every row it was given, and at least one.
func (o *Outcome) markFailed(rows int) {
	if o.Status == StatusFailed && o.Success == 0 && o.Failed > 0 {
		return
	}
	o.Success = 0
	o.Failed = max(rows, 1)
	o.Status = Classify(o.Success, o.Failed)
}
