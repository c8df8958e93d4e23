package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/traumaregistry/intake/internal/database"
	"github.com/traumaregistry/intake/internal/geocode"
	"github.com/traumaregistry/intake/internal/normalize"
)

// DBTX is the interface for database operations.
// Satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TableInfo contains display information about an import unit.
type TableInfo struct {
	Key   string // Unit name: "patient_basic_info"
	Table string // Destination table: "patient"
	Label string // Display name: "Patient basic info"
	Order int    // Position in the run, lowest first
}

// MapFunc turns one sheet row into the values for the unit's upsert, in
// Columns order. Returning an error wrapping ErrSkipRow drops the row
// without counting it as a failure.
type MapFunc func(row Row, rc *RunContext) ([]any, error)

// ApplyFunc runs a set-based unit against the open transaction.
type ApplyFunc func(ctx context.Context, tx DBTX, rc *RunContext) (Outcome, error)

// TableDefinition contains everything needed to run one import unit.
// Row units set Columns, ConflictColumns and Map; post-processing units set
// Apply instead.
type TableDefinition struct {
	Info            TableInfo
	Columns         []string // Database columns written by Map, in order
	ConflictColumns []string // Key identifying an existing row
	Map             MapFunc
	Apply           ApplyFunc
}

// IsUpdate reports whether the unit is a set-based post-processing step.
func (t TableDefinition) IsUpdate() bool {
	return t.Apply != nil
}

// ErrSkipRow marks a row the unit deliberately does not write.
var ErrSkipRow = errors.New("skip row")

// SkipRow returns an ErrSkipRow carrying the reason.
func SkipRow(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSkipRow, fmt.Sprintf(format, args...))
}

// Geocoder resolves normalized addresses to coordinates. Addresses it cannot
// resolve are absent from the result.
type Geocoder interface {
	Locate(ctx context.Context, addresses []string) (map[string]geocode.Coordinate, error)
}

// Recorder receives run measurements. Implemented by the metrics package.
type Recorder interface {
	ObserveUnit(unit, status string, success, failed, skipped int, d time.Duration)
	ObserveRun(state string, rows int, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveUnit(string, string, int, int, int, time.Duration) {}
func (nopRecorder) ObserveRun(string, int, time.Duration)                    {}

// Env holds the long-lived collaborators shared by every run.
type Env struct {
	Vocabulary *normalize.Vocabulary
	Geocoder   Geocoder // nil leaves coordinates untouched
	CityPrefix string   // Prefix forced onto normalized addresses: "上海市"
}

// RunContext is what units see while a run is in progress.
type RunContext struct {
	ID         string
	Sheet      *Sheet
	Dialect    database.Dialect
	Vocabulary *normalize.Vocabulary
	Geocoder   Geocoder
	CityPrefix string
	Severity   *normalize.SeverityIndex
}

// NewRunContext binds the shared environment to one sheet.
func NewRunContext(id string, sheet *Sheet, dialect database.Dialect, env Env) *RunContext {
	rc := &RunContext{
		ID:         id,
		Sheet:      sheet,
		Dialect:    dialect,
		Vocabulary: env.Vocabulary,
		Geocoder:   env.Geocoder,
		CityPrefix: env.CityPrefix,
	}
	if env.Vocabulary != nil {
		rc.Severity = env.Vocabulary.IndexSeverity(sheet.Header)
	}
	return rc
}

// FailedRow contains information about a row that failed to import.
type FailedRow struct {
	Unit       string `json:"unit"`
	LineNumber int    `json:"line"`
	PatientID  int    `json:"patientId,omitempty"`
	Reason     string `json:"reason"`
}
