package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/traumaregistry/intake/internal/database"
	"github.com/traumaregistry/intake/internal/logging"
)

const tracerName = "github.com/traumaregistry/intake/internal/core"

// Orchestrator runs every import unit of a sheet inside one master
// transaction. Either all units' writes are committed or none are.
type Orchestrator struct {
	db       *sql.DB
	dialect  database.Dialect
	env      Env
	units    []TableDefinition
	recorder Recorder
	tracer   trace.Tracer
	newID    func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithUnits replaces the registered units. Units run in the given order.
func WithUnits(units ...TableDefinition) Option {
	return func(o *Orchestrator) {
		o.units = units
	}
}

// WithRecorder sends run measurements to r.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// NewOrchestrator creates an orchestrator over the registered units.
func NewOrchestrator(db *sql.DB, dialect database.Dialect, env Env, opts ...Option) (*Orchestrator, error) {
	if db == nil {
		return nil, errors.New("orchestrator: nil database")
	}
	if env.Vocabulary == nil {
		return nil, errors.New("orchestrator: nil vocabulary")
	}

	o := &Orchestrator{
		db:       db,
		dialect:  dialect,
		env:      env,
		units:    All(),
		recorder: nopRecorder{},
		tracer:   otel.Tracer(tracerName),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}

	if len(o.units) == 0 {
		return nil, errors.New("orchestrator: no import units registered")
	}
	return o, nil
}

// Units returns the units in run order.
func (o *Orchestrator) Units() []TableDefinition {
	return o.units
}

// Run imports the sheet. The returned report is never nil; the error is
// non-nil whenever the run did not commit.
//
// Units run strictly in order. A unit that fails outright stops the run and
// rolls back every unit's writes, including those of units that had
// already succeeded. Units not reached stay pending in the report.
func (o *Orchestrator) Run(ctx context.Context, sheet *Sheet) (*Report, error) {
	rc := NewRunContext(o.newID(), sheet, o.dialect, o.env)
	ctx = logging.WithRunID(ctx, rc.ID)

	ctx, span := o.tracer.Start(ctx, "import.run", trace.WithAttributes(
		attribute.String("import.run_id", rc.ID),
		attribute.String("import.source", sheet.Name),
		attribute.Int("import.rows", len(sheet.Rows)),
	))
	defer span.End()

	logger := logging.FromContext(ctx)

	rep := &Report{
		RunID:     rc.ID,
		Source:    sheet.Name,
		Rows:      len(sheet.Rows),
		Requester: RequesterFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		StartedAt: time.Now(),
		State:     StateIdle,
		Outcomes:  make([]Outcome, len(o.units)),
	}
	for i, def := range o.units {
		rep.Outcomes[i] = pendingOutcome(def)
	}

	err := o.run(ctx, rc, rep)

	rep.FinishedAt = time.Now()
	if err != nil {
		rep.Error = err.Error()
		rep.ErrorCode = MapError(err).Code
		span.RecordError(err)
		span.SetStatus(codes.Error, string(rep.State))
	}
	span.SetAttributes(attribute.String("import.state", string(rep.State)))

	o.recorder.ObserveRun(string(rep.State), rep.Rows, rep.FinishedAt.Sub(rep.StartedAt))
	rep.LogSummary(logger)

	return rep, err
}

func (o *Orchestrator) run(ctx context.Context, rc *RunContext, rep *Report) error {
	logger := logging.FromContext(ctx)

	conn, err := o.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: acquire connection: %w", ErrBeginTransaction, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Warn("close connection failed", "error", cerr)
		}
		logger.Debug("run state", "from", rep.State, "to", StateClosed)
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginTransaction, err)
	}
	rep.transition(logger, StateTransactionOpen)
	logger.Info("🚀 master transaction opened", "units", len(o.units), "rows", len(rc.Sheet.Rows))

	var failures *multierror.Error
	for i, def := range o.units {
		out, uerr := o.runUnit(ctx, tx, rc, def)
		rep.Outcomes[i] = out
		if uerr != nil {
			rep.FailedUnits = append(rep.FailedUnits, def.Info.Key)
			failures = multierror.Append(failures, uerr)
			break
		}
	}

	if failures != nil {
		failures.ErrorFormat = joinErrors
		rep.transition(logger, StateAnyUnitFailed)

		// A cancelled ctx makes database/sql roll the tx back on its own.
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Error("rollback failed", "error", rbErr)
			failures = multierror.Append(failures, fmt.Errorf("rollback: %w", rbErr))
		}
		rep.transition(logger, StateRolledBack)
		logger.Error("❌ master transaction rolled back", "failed_units", rep.FailedUnits)

		return &ImportFailedError{Units: rep.FailedUnits, Err: failures.ErrorOrNil()}
	}

	rep.transition(logger, StateAllUnitsSucceeded)
	if err := tx.Commit(); err != nil {
		logger.Error("commit failed", "error", err)
		// The driver may not have released the transaction.
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Warn("rollback after failed commit", "error", rbErr)
		}
		rep.transition(logger, StateRolledBack)
		return fmt.Errorf("%w: %w", ErrCommit, err)
	}

	rep.Committed = true
	rep.transition(logger, StateCommitted)
	logger.Info("✅ master transaction committed")
	return nil
}

// runUnit executes one unit and turns every way it can end, panics
// included, into an outcome.
func (o *Orchestrator) runUnit(ctx context.Context, tx DBTX, rc *RunContext, def TableDefinition) (out Outcome, err error) {
	ctx, span := o.tracer.Start(ctx, "import.unit", trace.WithAttributes(
		attribute.String("import.unit", def.Info.Key),
		attribute.String("import.table", def.Info.Table),
	))
	logger := logging.WithFields(ctx, "unit", def.Info.Key)
	logger.Info("unit started", "table", def.Info.Table)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("unit panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}

		out.Unit, out.Table = def.Info.Key, def.Info.Table
		if err != nil {
			rows := len(rc.Sheet.Rows)
			if def.IsUpdate() {
				rows = 1
			}
			out.markFailed(rows)

			var ufe *UnitFailedError
			if !errors.As(err, &ufe) {
				err = &UnitFailedError{Unit: def.Info.Key, Failed: out.Failed, Err: err}
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, string(out.Status))
		}
		out.Duration = time.Since(start)

		span.SetAttributes(
			attribute.String("import.status", string(out.Status)),
			attribute.Int("import.success", out.Success),
			attribute.Int("import.failed", out.Failed),
			attribute.Int("import.skipped", out.Skipped),
		)
		span.End()

		o.recorder.ObserveUnit(def.Info.Key, string(out.Status), out.Success, out.Failed, out.Skipped, out.Duration)
		logOutcome(logger, out, err)
	}()

	if !def.IsUpdate() {
		return ImportTable(ctx, tx, rc, def)
	}

	out, err = def.Apply(ctx, tx, rc)
	if err != nil {
		return out, err
	}
	out.Status = Classify(out.Success, out.Failed)
	if out.Status == StatusFailed {
		return out, &UnitFailedError{Unit: def.Info.Key, Failed: out.Failed}
	}
	return out, nil
}

func logOutcome(logger *slog.Logger, out Outcome, err error) {
	msg := fmt.Sprintf("%s %s: success %d, failed %d", out.Status.Icon(), out.Unit, out.Success, out.Failed)
	switch out.Status {
	case StatusFailed:
		logger.Error(msg, "skipped", out.Skipped, "duration", out.Duration, "error", err)
	case StatusPartial:
		logger.Warn(msg, "skipped", out.Skipped, "duration", out.Duration)
	default:
		logger.Info(msg, "skipped", out.Skipped, "duration", out.Duration)
	}
}

func (r *Report) transition(logger *slog.Logger, to State) {
	logger.Debug("run state", "from", r.State, "to", to)
	r.State = to
}

// joinErrors renders a multierror on one line.
func joinErrors(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}
