package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBeginTransaction wraps failures to open the master transaction.
	ErrBeginTransaction = errors.New("begin transaction")
	// ErrCommit wraps failures to commit the master transaction.
	ErrCommit = errors.New("commit transaction")
)

// UnitFailedError reports a unit that failed outright.
type UnitFailedError struct {
	Unit   string
	Failed int
	Err    error // Cause when the unit stopped on an error rather than row failures
}

func (e *UnitFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unit %s failed: %v", e.Unit, e.Err)
	}
	return fmt.Sprintf("unit %s failed: all %d attempted rows rejected", e.Unit, e.Failed)
}

func (e *UnitFailedError) Unwrap() error {
	return e.Err
}

// ImportFailedError is returned when a run was rolled back because at least
// one unit failed. Err aggregates the unit failures.
type ImportFailedError struct {
	Units []string
	Err   error
}

func (e *ImportFailedError) Error() string {
	return fmt.Sprintf("import rolled back: failed units [%s]: %v", strings.Join(e.Units, ", "), e.Err)
}

func (e *ImportFailedError) Unwrap() error {
	return e.Err
}
