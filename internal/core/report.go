package core

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// State is a step of the run lifecycle:
//
//	idle -> transaction_open -> all_units_succeeded -> committed   -> closed
//	                         \-> any_unit_failed     -> rolled_back -> closed
type State string

const (
	StateIdle              State = "idle"
	StateTransactionOpen   State = "transaction_open"
	StateAllUnitsSucceeded State = "all_units_succeeded"
	StateAnyUnitFailed     State = "any_unit_failed"
	StateCommitted         State = "committed"
	StateRolledBack        State = "rolled_back"
	StateClosed            State = "closed"
)

// Report describes one import run.
type Report struct {
	RunID      string    `json:"runId"`
	Source     string    `json:"source"`
	Rows       int       `json:"rows"`
	Requester  string    `json:"requester,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	// State is the last state reached before the connection was closed:
	// committed, rolled_back, or idle when no transaction could be opened.
	State       State     `json:"state"`
	Committed   bool      `json:"committed"`
	Outcomes    []Outcome `json:"outcomes"`
	FailedUnits []string  `json:"failedUnits,omitempty"`
	Error       string    `json:"error,omitempty"`
	ErrorCode   string    `json:"errorCode,omitempty"`
}

// Totals sums the counters of every unit.
func (r *Report) Totals() (success, failed, skipped int) {
	for _, o := range r.Outcomes {
		success += o.Success
		failed += o.Failed
		skipped += o.Skipped
	}
	return success, failed, skipped
}

// FailedRows collects the failed rows of every unit in run order.
func (r *Report) FailedRows() []FailedRow {
	var rows []FailedRow
	for _, o := range r.Outcomes {
		rows = append(rows, o.FailedRows...)
	}
	return rows
}

// Outcome returns the outcome recorded for a unit.
func (r *Report) Outcome(unit string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Unit == unit {
			return o, true
		}
	}
	return Outcome{}, false
}

// LogSummary writes the end-of-run summary, one line per unit. logger is
// expected to carry the run id.
func (r *Report) LogSummary(logger *slog.Logger) {
	rule := strings.Repeat("=", 80)

	logger.Info(rule)
	logger.Info("📊 import summary", "source", r.Source, "rows", r.Rows)
	logger.Info(rule)

	for _, o := range r.Outcomes {
		line := fmt.Sprintf("%s %s: success %d, failed %d", o.Status.Icon(), o.Unit, o.Success, o.Failed)
		switch o.Status {
		case StatusFailed:
			logger.Error(line, "skipped", o.Skipped)
		case StatusPartial:
			logger.Warn(line, "skipped", o.Skipped)
		default:
			logger.Info(line, "skipped", o.Skipped)
		}
	}

	success, failed, skipped := r.Totals()
	logger.Info(strings.Repeat("-", 80))
	logger.Info(fmt.Sprintf("📈 total: success %d, failed %d", success, failed), "skipped", skipped)

	switch {
	case len(r.FailedUnits) > 0:
		logger.Error("❌ failed units: " + strings.Join(r.FailedUnits, ", "))
		logger.Error("🔄 the whole transaction was rolled back because of the failed units")
	case r.Committed:
		logger.Info("🎉 all units imported")
	default:
		logger.Error("🔄 nothing was saved", "state", r.State, "error", r.Error)
	}

	logger.Info(rule)
}

// WriteJSON encodes the report.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteFailedRowsCSV writes every failed row as CSV with a byte order mark
// so spreadsheet tools detect UTF-8.
func (r *Report) WriteFailedRowsCSV(w io.Writer) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"unit", "line", "patient_id", "reason"}); err != nil {
		return err
	}
	for _, fr := range r.FailedRows() {
		rec := []string{fr.Unit, strconv.Itoa(fr.LineNumber), strconv.Itoa(fr.PatientID), fr.Reason}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
