package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/traumaregistry/intake/internal/logging"
	"github.com/traumaregistry/intake/internal/normalize"
)

// ContextCheckInterval is how often to check for context cancellation.
var ContextCheckInterval = 100

// PatientIDColumn is the sheet column holding each row's patient identity.
const PatientIDColumn = "序号"

// PatientID reads the identity key of a row. Zero means absent.
func PatientID(row Row) int {
	return normalize.Int(row.Get(PatientIDColumn))
}

// ImportTable upserts every row of the run's sheet into the unit's table.
//
// Each row runs inside its own savepoint so that a failing statement only
// discards that row's write while the enclosing transaction stays usable.
// Rows the mapper skips are counted but never affect the status. A unit
// whose every attempted row failed returns a *UnitFailedError.
func ImportTable(ctx context.Context, tx DBTX, rc *RunContext, def TableDefinition) (Outcome, error) {
	out := Outcome{Unit: def.Info.Key, Table: def.Info.Table, Status: StatusPending}
	logger := logging.WithFields(ctx, "unit", def.Info.Key)

	if def.Map == nil {
		return out, fmt.Errorf("unit %s has no row mapper", def.Info.Key)
	}
	query := rc.Dialect.Upsert(def.Info.Table, def.Columns, def.ConflictColumns)

	for i, row := range rc.Sheet.Rows {
		// Check for cancellation periodically
		if i%ContextCheckInterval == 0 && ctx.Err() != nil {
			return out, ctx.Err()
		}

		args, err := def.Map(row, rc)
		if errors.Is(err, ErrSkipRow) {
			out.Skipped++
			logger.Debug("row skipped", "line", row.Line, "reason", err)
			continue
		}
		if err != nil {
			out.recordFailure(def, row, fmt.Errorf("map: %w", err))
			logger.Error("row mapping failed", "line", row.Line, "patient_id", PatientID(row), "error", err)
			continue
		}
		if len(args) != len(def.Columns) {
			return out, fmt.Errorf("unit %s mapped %d values for %d columns", def.Info.Key, len(args), len(def.Columns))
		}

		// Use savepoint for each upsert
		savepointName := fmt.Sprintf("sp_%d", i)
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepointName); err != nil {
			return out, fmt.Errorf("create savepoint: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepointName); rbErr != nil {
				return out, fmt.Errorf("rollback to savepoint after %v: %w", err, rbErr)
			}
			out.recordFailure(def, row, fmt.Errorf("upsert: %w", err))
			logger.Error("row import failed", "line", row.Line, "patient_id", PatientID(row), "error", err)
			continue
		}

		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepointName); err != nil {
			return out, fmt.Errorf("release savepoint: %w", err)
		}
		out.Success++
	}

	out.Status = Classify(out.Success, out.Failed)
	if out.Status == StatusFailed {
		return out, &UnitFailedError{Unit: def.Info.Key, Failed: out.Failed}
	}
	return out, nil
}

func (o *Outcome) recordFailure(def TableDefinition, row Row, err error) {
	o.Failed++
	o.FailedRows = append(o.FailedRows, FailedRow{
		Unit:       def.Info.Key,
		LineNumber: row.Line,
		PatientID:  PatientID(row),
		Reason:     err.Error(),
	})
}
