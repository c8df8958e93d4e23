package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/traumaregistry/intake/internal/database"
)

func TestNewService_NilOrchestrator(t *testing.T) {
	if _, err := NewService(nil, nil); err == nil {
		t.Error("NewService(nil) error = nil")
	}
}

func TestService_ImportKeepsReport(t *testing.T) {
	db, mock := newMock(t)
	def := rowUnit("patients", "patient", 1)
	mock.ExpectBegin()
	expectRow(mock, def, 0, nil)
	mock.ExpectCommit()

	o, err := NewOrchestrator(db, database.SQLite, testEnv(t), WithUnits(def))
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	o.newID = func() string { return "run-1" }

	svc, err := NewService(o, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	rep, err := svc.Import(context.Background(), testSheet(t, "1"))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if !rep.Committed {
		t.Errorf("State = %s, want committed", rep.State)
	}

	got, err := svc.Report("run-1")
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if got != rep {
		t.Error("Report() returned a different report")
	}
	if svc.LimiterStatus().Active != 0 {
		t.Error("run slot not released")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestService_ReportNotFound(t *testing.T) {
	db, _ := newMock(t)
	o, err := NewOrchestrator(db, database.SQLite, testEnv(t), WithUnits(rowUnit("patients", "patient", 1)))
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	svc, _ := NewService(o, nil)

	_, err = svc.Report("missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("Report() error = %v, want ErrRunNotFound", err)
	}
	if MapError(err).Code != "REQ003" {
		t.Errorf("code = %s, want REQ003", MapError(err).Code)
	}
}

func TestService_BusyWhileRunning(t *testing.T) {
	db, _ := newMock(t)
	o, err := NewOrchestrator(db, database.SQLite, testEnv(t), WithUnits(rowUnit("patients", "patient", 1)))
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	limiter := NewImportLimiter(1, 20*time.Millisecond)
	svc, _ := NewService(o, limiter)

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer limiter.Release()

	rep, err := svc.Import(context.Background(), testSheet(t, "1"))
	if !errors.Is(err, ErrImportBusy) {
		t.Fatalf("Import() error = %v, want ErrImportBusy", err)
	}
	if rep != nil {
		t.Errorf("report = %+v, want nil", rep)
	}
}

func TestService_RefusesImportsAfterShutdown(t *testing.T) {
	db, _ := newMock(t)
	o, err := NewOrchestrator(db, database.SQLite, testEnv(t), WithUnits(rowUnit("patients", "patient", 1)))
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	svc, _ := NewService(o, nil)

	if err := svc.WaitForImports(context.Background()); err != nil {
		t.Fatalf("WaitForImports() error = %v", err)
	}

	rep, err := svc.Import(context.Background(), testSheet(t, "1"))
	if !errors.Is(err, ErrImportsClosed) {
		t.Fatalf("Import() error = %v, want ErrImportsClosed", err)
	}
	if rep != nil {
		t.Errorf("report = %+v, want nil", rep)
	}
}
