package core

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/traumaregistry/intake/internal/database"
	"github.com/traumaregistry/intake/internal/logging"
	"github.com/traumaregistry/intake/internal/normalize"
)

func testEnv(t *testing.T) Env {
	t.Helper()
	v, err := normalize.DefaultVocabulary()
	if err != nil {
		t.Fatalf("DefaultVocabulary() error = %v", err)
	}
	return Env{Vocabulary: v, CityPrefix: "上海市"}
}

func testSheet(t *testing.T, ids ...string) *Sheet {
	t.Helper()
	records := [][]string{{PatientIDColumn, "姓名"}}
	for _, id := range ids {
		records = append(records, []string{id, "name-" + id})
	}
	s, err := NewSheet("test.csv", records)
	if err != nil {
		t.Fatalf("NewSheet() error = %v", err)
	}
	return s
}

// rowUnit upserts (patient_id, name) into table.
func rowUnit(key, table string, order int) TableDefinition {
	return TableDefinition{
		Info:            TableInfo{Key: key, Table: table, Order: order},
		Columns:         []string{"patient_id", "name"},
		ConflictColumns: []string{"patient_id"},
		Map: func(row Row, _ *RunContext) ([]any, error) {
			id := PatientID(row)
			if id == 0 {
				return nil, SkipRow("no patient number")
			}
			return []any{id, normalize.Text(row.Get("姓名"))}, nil
		},
	}
}

func applyUnit(key string, order int, fn ApplyFunc) TableDefinition {
	return TableDefinition{
		Info:  TableInfo{Key: key, Table: "injuryrecord", Order: order},
		Apply: fn,
	}
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func upsertSQL(def TableDefinition) string {
	return database.SQLite.Upsert(def.Info.Table, def.Columns, def.ConflictColumns)
}

func expectRow(mock sqlmock.Sqlmock, def TableDefinition, i int, execErr error) {
	sp := fmt.Sprintf("sp_%d", i)
	mock.ExpectExec("SAVEPOINT " + sp).WillReturnResult(sqlmock.NewResult(0, 0))
	if execErr != nil {
		mock.ExpectExec(upsertSQL(def)).WillReturnError(execErr)
		mock.ExpectExec("ROLLBACK TO SAVEPOINT " + sp).WillReturnResult(sqlmock.NewResult(0, 0))
		return
	}
	mock.ExpectExec(upsertSQL(def)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("RELEASE SAVEPOINT " + sp).WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestNewOrchestrator_Validation(t *testing.T) {
	db, _ := newMock(t)
	env := testEnv(t)

	if _, err := NewOrchestrator(nil, database.SQLite, env, WithUnits(rowUnit("a", "a", 1))); err == nil {
		t.Error("nil db: error = nil")
	}
	if _, err := NewOrchestrator(db, database.SQLite, Env{}, WithUnits(rowUnit("a", "a", 1))); err == nil {
		t.Error("nil vocabulary: error = nil")
	}
	if _, err := NewOrchestrator(db, database.SQLite, env, WithUnits()); err == nil {
		t.Error("no units: error = nil")
	}
}

func TestOrchestrator_BeginFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	o, err := NewOrchestrator(db, database.SQLite, testEnv(t), WithUnits(rowUnit("patients", "patient", 1)))
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	rep, err := o.Run(context.Background(), testSheet(t, "1"))
	if !errors.Is(err, ErrBeginTransaction) {
		t.Fatalf("Run() error = %v, want ErrBeginTransaction", err)
	}
	if rep.State != StateIdle || rep.Committed {
		t.Errorf("State = %s, Committed = %v", rep.State, rep.Committed)
	}
	if rep.ErrorCode != "IMP002" {
		t.Errorf("ErrorCode = %s, want IMP002", rep.ErrorCode)
	}
	if got := rep.Outcomes[0].Status; got != StatusPending {
		t.Errorf("unit status = %s, want pending", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestOrchestrator_CommitFailure(t *testing.T) {
	db, mock := newMock(t)
	def := rowUnit("patients", "patient", 1)

	mock.ExpectBegin()
	expectRow(mock, def, 0, nil)
	mock.ExpectCommit().WillReturnError(errors.New("server closed the connection"))

	o, err := NewOrchestrator(db, database.SQLite, testEnv(t), WithUnits(def))
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	rep, err := o.Run(context.Background(), testSheet(t, "1"))
	if !errors.Is(err, ErrCommit) {
		t.Fatalf("Run() error = %v, want ErrCommit", err)
	}
	if rep.State != StateRolledBack || rep.Committed {
		t.Errorf("State = %s, Committed = %v", rep.State, rep.Committed)
	}
	if rep.ErrorCode != "IMP003" {
		t.Errorf("ErrorCode = %s, want IMP003", rep.ErrorCode)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestOrchestrator_PartialUnitCommits(t *testing.T) {
	db, mock := newMock(t)
	def := rowUnit("patients", "patient", 1)

	mock.ExpectBegin()
	expectRow(mock, def, 0, nil)
	expectRow(mock, def, 1, errors.New("value too long"))
	expectRow(mock, def, 3, nil)
	mock.ExpectCommit()

	o, err := NewOrchestrator(db, database.SQLite, testEnv(t), WithUnits(def))
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	// row 2 has no identity and is skipped before any savepoint
	rep, err := o.Run(context.Background(), testSheet(t, "1", "2", "", "4"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.State != StateCommitted || !rep.Committed {
		t.Errorf("State = %s, Committed = %v", rep.State, rep.Committed)
	}

	out := rep.Outcomes[0]
	if out.Success != 2 || out.Failed != 1 || out.Skipped != 1 || out.Status != StatusPartial {
		t.Errorf("outcome = %+v", out)
	}
	failed := rep.FailedRows()
	if len(failed) != 1 || failed[0].PatientID != 2 || failed[0].LineNumber != 3 {
		t.Errorf("FailedRows() = %+v", failed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestOrchestrator_FailedUnitRollsBackAndStops(t *testing.T) {
	db, mock := newMock(t)
	patients := rowUnit("patients", "patient", 1)
	scores := rowUnit("scores", "gcs_score", 2)
	ran := false
	later := applyUnit("later", 3, func(context.Context, DBTX, *RunContext) (Outcome, error) {
		ran = true
		return Outcome{}, nil
	})

	mock.ExpectBegin()
	expectRow(mock, patients, 0, nil)
	expectRow(mock, patients, 1, nil)
	expectRow(mock, scores, 0, errors.New("no such table: gcs_score"))
	expectRow(mock, scores, 1, errors.New("no such table: gcs_score"))
	mock.ExpectRollback()

	o, err := NewOrchestrator(db, database.SQLite, testEnv(t), WithUnits(patients, scores, later))
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	rep, err := o.Run(context.Background(), testSheet(t, "1", "2"))
	var ife *ImportFailedError
	if !errors.As(err, &ife) {
		t.Fatalf("Run() error = %v, want *ImportFailedError", err)
	}
	var ufe *UnitFailedError
	if !errors.As(err, &ufe) || ufe.Unit != "scores" || ufe.Failed != 2 {
		t.Errorf("unit error = %+v", ufe)
	}
	if ran {
		t.Error("unit after the failure ran")
	}

	if rep.State != StateRolledBack || rep.Committed {
		t.Errorf("State = %s, Committed = %v", rep.State, rep.Committed)
	}
	if rep.ErrorCode != "IMP001" {
		t.Errorf("ErrorCode = %s, want IMP001", rep.ErrorCode)
	}
	if strings.Join(rep.FailedUnits, ",") != "scores" {
		t.Errorf("FailedUnits = %v", rep.FailedUnits)
	}

	want := []Status{StatusSuccess, StatusFailed, StatusPending}
	for i, s := range want {
		if rep.Outcomes[i].Status != s {
			t.Errorf("outcome %d status = %s, want %s", i, rep.Outcomes[i].Status, s)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestOrchestrator_SavepointFailureFailsUnit(t *testing.T) {
	db, mock := newMock(t)
	def := rowUnit("patients", "patient", 1)

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sp_0").WillReturnError(errors.New("savepoints not supported"))
	mock.ExpectRollback()

	o, err := NewOrchestrator(db, database.SQLite, testEnv(t), WithUnits(def))
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	rep, err := o.Run(context.Background(), testSheet(t, "1", "2", "3"))
	if err == nil {
		t.Fatal("Run() error = nil")
	}
	out := rep.Outcomes[0]
	if out.Status != StatusFailed || out.Success != 0 || out.Failed != 3 {
		t.Errorf("outcome = %+v, want failed 0/3", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestOrchestrator_PanicIsUnitFailure(t *testing.T) {
	db, mock := newMock(t)
	boom := applyUnit("boom", 1, func(context.Context, DBTX, *RunContext) (Outcome, error) {
		panic("nil map")
	})

	mock.ExpectBegin()
	mock.ExpectRollback()

	o, err := NewOrchestrator(db, database.SQLite, testEnv(t), WithUnits(boom))
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	rep, err := o.Run(context.Background(), testSheet(t, "1"))
	var ufe *UnitFailedError
	if !errors.As(err, &ufe) || !strings.Contains(ufe.Error(), "panic: nil map") {
		t.Fatalf("Run() error = %v, want unit panic", err)
	}
	out := rep.Outcomes[0]
	if out.Status != StatusFailed || out.Failed != 1 {
		t.Errorf("outcome = %+v, want failed with one failure", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestOrchestrator_ApplyErrorIncludesRollbackError(t *testing.T) {
	db, mock := newMock(t)
	bad := applyUnit("bad", 1, func(context.Context, DBTX, *RunContext) (Outcome, error) {
		return Outcome{}, errors.New("syntax error")
	})

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("connection reset"))

	o, err := NewOrchestrator(db, database.SQLite, testEnv(t), WithUnits(bad))
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	rep, err := o.Run(context.Background(), testSheet(t, "1"))
	if err == nil {
		t.Fatal("Run() error = nil")
	}
	for _, want := range []string{"unit bad failed: syntax error", "rollback: connection reset"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
	if rep.State != StateRolledBack {
		t.Errorf("State = %s, want rolled_back", rep.State)
	}
}

// A transaction already ended by the driver, as happens when the run's
// context is cancelled, is not a rollback failure.
func TestOrchestrator_RollbackOfEndedTransactionIgnored(t *testing.T) {
	db, mock := newMock(t)
	bad := applyUnit("bad", 1, func(_ context.Context, tx DBTX, _ *RunContext) (Outcome, error) {
		if err := tx.(*sql.Tx).Rollback(); err != nil {
			return Outcome{}, err
		}
		return Outcome{}, errors.New("context canceled")
	})

	mock.ExpectBegin()
	mock.ExpectRollback()

	o, err := NewOrchestrator(db, database.SQLite, testEnv(t), WithUnits(bad))
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	rep, err := o.Run(context.Background(), testSheet(t, "1"))
	var ife *ImportFailedError
	if !errors.As(err, &ife) {
		t.Fatalf("Run() error = %v, want *ImportFailedError", err)
	}
	if errors.Is(err, sql.ErrTxDone) || strings.Contains(err.Error(), "rollback:") {
		t.Errorf("error %q reports the ended transaction as a rollback failure", err)
	}
	if rep.State != StateRolledBack {
		t.Errorf("State = %s, want rolled_back", rep.State)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestOrchestrator_SummaryLoggedOnceWithRunID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logging.New(&buf, "info", "json"))
	defer slog.SetDefault(prev)

	db, mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	o, err := NewOrchestrator(db, database.SQLite, testEnv(t), WithUnits(rowUnit("patients", "patient", 1)))
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	o.newID = func() string { return "run-7" }

	if _, err := o.Run(context.Background(), testSheet(t, "1")); err == nil {
		t.Fatal("Run() error = nil")
	}

	var headers []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "import summary") {
			headers = append(headers, line)
		}
	}
	if len(headers) != 1 {
		t.Fatalf("summary header logged %d times, want 1", len(headers))
	}
	if n := strings.Count(headers[0], `"run_id"`); n != 1 {
		t.Errorf("summary header carries run_id %d times: %s", n, headers[0])
	}
	if !strings.Contains(headers[0], `"run_id":"run-7"`) {
		t.Errorf("summary header %s missing run_id", headers[0])
	}
}

type recordingRecorder struct {
	units []string
	state string
}

func (r *recordingRecorder) ObserveUnit(unit, status string, _, _, _ int, _ time.Duration) {
	r.units = append(r.units, unit+":"+status)
}

func (r *recordingRecorder) ObserveRun(state string, _ int, _ time.Duration) {
	r.state = state
}

func TestOrchestrator_RecordsMeasurements(t *testing.T) {
	db, mock := newMock(t)
	def := rowUnit("patients", "patient", 1)
	update := applyUnit("update", 2, func(context.Context, DBTX, *RunContext) (Outcome, error) {
		return Outcome{Success: 5}, nil
	})

	mock.ExpectBegin()
	expectRow(mock, def, 0, nil)
	mock.ExpectCommit()

	rec := &recordingRecorder{}
	o, err := NewOrchestrator(db, database.SQLite, testEnv(t), WithUnits(def, update), WithRecorder(rec))
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	rep, err := o.Run(context.Background(), testSheet(t, "1"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := strings.Join(rec.units, ","); got != "patients:success,update:success" {
		t.Errorf("units = %s", got)
	}
	if rec.state != string(StateCommitted) {
		t.Errorf("state = %s", rec.state)
	}
	if out, _ := rep.Outcome("update"); out.Success != 5 || out.Status != StatusSuccess {
		t.Errorf("update outcome = %+v", out)
	}
}
