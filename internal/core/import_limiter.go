package core

// import_limiter.go keeps imports from overlapping.
//
// A run holds one master transaction across nine tables, so two runs would
// contend for the same patient rows. The guard is a buffered channel whose
// length is the number of runs in flight; a request that finds it full
// waits up to maxWait and then fails with ErrImportBusy.
//
// WaitForDrain closes the guard for shutdown: it stops new runs at once and
// returns after the running one has given its slot back.

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrImportBusy is returned when a run is in progress and the wait
	// timeout expires. Clients should retry after the running import ends.
	ErrImportBusy = errors.New("import already running, please try again later")

	// ErrImportsClosed is returned once shutdown has started.
	ErrImportsClosed = errors.New("import service shutting down")
)

// DefaultMaxConcurrentImports is the default limit for parallel imports.
const DefaultMaxConcurrentImports = 1

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// ImportLimiter is the run guard.
type ImportLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

// NewImportLimiter creates a guard admitting maxConcurrent runs.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &ImportLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		closed:  make(chan struct{}),
	}
}

// Acquire takes a run slot. Every nil return must be paired with Release.
func (l *ImportLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case <-l.closed:
		return ErrImportsClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrImportBusy
	case l.slots <- struct{}{}:
	}

	// select picks at random among ready cases; a drain that started at the
	// same moment wins.
	select {
	case <-l.closed:
		<-l.slots
		return ErrImportsClosed
	default:
		return nil
	}
}

// Release gives the slot back.
func (l *ImportLimiter) Release() {
	<-l.slots
}

// ActiveCount returns the number of runs holding a slot.
func (l *ImportLimiter) ActiveCount() int {
	return len(l.slots)
}

// WaitForDrain refuses new runs and blocks until every slot is free or ctx
// ends. The guard stays closed either way.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	l.closeOnce.Do(func() { close(l.closed) })

	// Filling the channel means no run holds a slot.
	taken := 0
	defer func() {
		for ; taken > 0; taken-- {
			<-l.slots
		}
	}()
	for taken < cap(l.slots) {
		select {
		case l.slots <- struct{}{}:
			taken++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// ImportLimiterStatus is a snapshot of the guard.
type ImportLimiterStatus struct {
	Active        int  `json:"active"`
	Available     int  `json:"available"`
	MaxConcurrent int  `json:"max_concurrent"`
	Closed        bool `json:"closed"`
}

// Status returns the current guard state for monitoring.
func (l *ImportLimiter) Status() ImportLimiterStatus {
	active := len(l.slots)
	closed := false
	select {
	case <-l.closed:
		closed = true
	default:
	}
	return ImportLimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
		Closed:        closed,
	}
}
