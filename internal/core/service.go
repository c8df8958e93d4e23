package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ImportTimeout is the maximum duration for one import run.
var ImportTimeout = 30 * time.Minute

// ReportRetention is how long finished reports stay available by run ID.
var ReportRetention = 24 * time.Hour

// ErrRunNotFound is returned for run IDs the service does not know.
var ErrRunNotFound = errors.New("import run not found")

// Service serializes import runs and keeps their reports for lookup.
type Service struct {
	orch    *Orchestrator
	limiter *ImportLimiter

	mu      sync.RWMutex
	reports map[string]*Report
}

// NewService creates a service over an orchestrator. A nil limiter allows
// one run at a time with the default wait.
func NewService(orch *Orchestrator, limiter *ImportLimiter) (*Service, error) {
	if orch == nil {
		return nil, errors.New("service: nil orchestrator")
	}
	if limiter == nil {
		limiter = NewImportLimiter(DefaultMaxConcurrentImports, DefaultMaxWaitTime)
	}
	return &Service{
		orch:    orch,
		limiter: limiter,
		reports: make(map[string]*Report),
	}, nil
}

// Import runs the sheet once a run slot is free. The report is nil only
// when no slot could be acquired; otherwise it is kept for Report lookups.
func (s *Service) Import(ctx context.Context, sheet *Sheet) (*Report, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, ImportTimeout)
	defer cancel()

	rep, err := s.orch.Run(ctx, sheet)

	s.mu.Lock()
	s.reports[rep.RunID] = rep
	s.mu.Unlock()
	s.cleanup(rep.RunID, ReportRetention)

	return rep, err
}

// Report returns a finished run's report.
func (s *Service) Report(runID string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rep, ok := s.reports[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return rep, nil
}

// LimiterStatus returns the current state of the run guard.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports stops accepting imports and blocks until the running one
// finishes.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// cleanup removes the report from tracking after a delay.
func (s *Service) cleanup(runID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.reports, runID)
		s.mu.Unlock()
	})
}
