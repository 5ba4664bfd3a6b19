// Package workflow drives the collect, analyze and report steps of a session.
package workflow

import (
	"context"
	"sync"
	"time"

	"rjdctl/internal/client"
	"rjdctl/internal/errors"
	"rjdctl/internal/input"
	"rjdctl/internal/types"

	"golang.org/x/sync/semaphore"
)

// Session owns the inputs, the latest analysis result and the latest report
// location. It is safe for concurrent use; network calls run outside the lock.
type Session struct {
	inputs   *input.Collector
	analyzer client.Analyzer
	reporter client.ReportGenerator
	logger   *errors.Logger

	analysisGuard *semaphore.Weighted
	observers     []Observer

	mu    sync.Mutex
	epoch uint64
	// reportGuard is replaced with every new epoch. A superseded report
	// keeps the guard it acquired until its call unwinds.
	reportGuard    *semaphore.Weighted
	result         *types.AnalysisResult
	location       *types.ReportLocation
	analysis       OperationState
	report         OperationState
	cancelAnalysis context.CancelFunc
	cancelReport   context.CancelFunc
}

// Option configures a Session
type Option func(*Session)

// WithObserver registers fn for status transitions
func WithObserver(fn Observer) Option {
	return func(s *Session) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// NewSession creates an idle session
func NewSession(inputs *input.Collector, analyzer client.Analyzer, reporter client.ReportGenerator, logger *errors.Logger, opts ...Option) *Session {
	s := &Session{
		inputs:        inputs,
		analyzer:      analyzer,
		reporter:      reporter,
		logger:        logger,
		analysisGuard: semaphore.NewWeighted(1),
		reportGuard:   semaphore.NewWeighted(1),
		analysis:      OperationState{Status: StatusIdle},
		report:        OperationState{Status: StatusIdle},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Inputs returns the collector feeding this session
func (s *Session) Inputs() *input.Collector {
	return s.inputs
}

// Analyze submits the current inputs and blocks until the service answers.
// It returns TriggerIgnored when an input is missing and TriggerBusy when an
// analysis is already running.
func (s *Session) Analyze(ctx context.Context) Trigger {
	run, trigger := s.prepareAnalysis(ctx)
	if run != nil {
		run()
	}
	return trigger
}

// StartAnalysis is Analyze without waiting. When it returns TriggerRan the
// analysis is already in flight.
func (s *Session) StartAnalysis(ctx context.Context) Trigger {
	run, trigger := s.prepareAnalysis(ctx)
	if run != nil {
		go run()
	}
	return trigger
}

// prepareAnalysis checks preconditions and enters the in-flight state. The
// returned func performs the request and must be called exactly once.
func (s *Session) prepareAnalysis(ctx context.Context) (func(), Trigger) {
	in := s.inputs.Snapshot()
	if !in.Ready() {
		s.logger.Debug("Analysis skipped, inputs incomplete",
			"has_resume", in.Resume != nil,
			"has_job_description", in.JobDescription != "")
		return nil, TriggerIgnored
	}

	if !s.analysisGuard.TryAcquire(1) {
		s.logger.Debug("Analysis already in flight")
		return nil, TriggerBusy
	}

	ctx, cancel := context.WithCancel(ctx)
	started := OperationState{Status: StatusInFlight, StartedAt: time.Now()}

	s.mu.Lock()
	s.epoch++
	s.result = nil
	s.location = nil
	s.analysis = started
	s.report = OperationState{Status: StatusIdle}
	s.reportGuard = semaphore.NewWeighted(1)
	s.cancelAnalysis = cancel
	if s.cancelReport != nil {
		s.cancelReport()
		s.cancelReport = nil
	}
	epoch := s.epoch
	s.mu.Unlock()

	s.notify(OperationAnalysis, started)
	s.logger.Info("Analysis started",
		"epoch", epoch,
		"resume", in.Resume.Name,
		"resume_size", in.Resume.Size(),
		"job_description_length", len(in.JobDescription))

	run := func() {
		defer s.analysisGuard.Release(1)
		defer cancel()

		result, err := s.analyzer.Analyze(ctx, *in.Resume, in.JobDescription)
		finished := finish(started, err)

		s.mu.Lock()
		s.cancelAnalysis = nil
		s.analysis = finished
		if err == nil {
			s.result = result
		}
		s.mu.Unlock()

		s.notify(OperationAnalysis, finished)
		if err != nil {
			s.logger.LogError(err, "Analysis failed", "epoch", epoch, "duration", finished.Duration().String())
			return
		}
		s.logger.Info("Analysis succeeded",
			"epoch", epoch,
			"has_match_result", result.MatchResult != nil,
			"duration", finished.Duration().String())
	}
	return run, TriggerRan
}

// GenerateReport submits the current match result for a report. It returns
// TriggerIgnored when there is no match result and TriggerBusy when a report
// is already being generated. A reply that arrives after a newer analysis
// started is discarded.
func (s *Session) GenerateReport(ctx context.Context) Trigger {
	run, trigger := s.prepareReport(ctx)
	if run != nil {
		run()
	}
	return trigger
}

// StartReport is GenerateReport without waiting
func (s *Session) StartReport(ctx context.Context) Trigger {
	run, trigger := s.prepareReport(ctx)
	if run != nil {
		go run()
	}
	return trigger
}

func (s *Session) prepareReport(ctx context.Context) (func(), Trigger) {
	s.mu.Lock()
	var match *types.MatchResult
	if s.result != nil {
		match = s.result.MatchResult
	}
	if match == nil {
		s.mu.Unlock()
		s.logger.Debug("Report skipped, no match result")
		return nil, TriggerIgnored
	}

	guard := s.reportGuard
	if !guard.TryAcquire(1) {
		s.mu.Unlock()
		s.logger.Debug("Report already in flight")
		return nil, TriggerBusy
	}

	ctx, cancel := context.WithCancel(ctx)
	started := OperationState{Status: StatusInFlight, StartedAt: time.Now()}
	s.location = nil
	s.report = started
	s.cancelReport = cancel
	epoch := s.epoch
	s.mu.Unlock()

	s.notify(OperationReport, started)
	s.logger.Info("Report generation started", "epoch", epoch)

	run := func() {
		defer guard.Release(1)
		defer cancel()

		location, err := s.reporter.GenerateReport(ctx, match)
		finished := finish(started, err)

		s.mu.Lock()
		if s.epoch != epoch {
			current := s.epoch
			s.mu.Unlock()
			s.logger.Info("Discarding report for a superseded analysis",
				"report_epoch", epoch,
				"current_epoch", current)
			return
		}
		s.cancelReport = nil
		s.report = finished
		if err == nil {
			s.location = location
		}
		s.mu.Unlock()

		s.notify(OperationReport, finished)
		if err != nil {
			s.logger.LogError(err, "Report generation failed", "epoch", epoch)
			return
		}
		s.logger.Info("Report generated", "epoch", epoch, "url", location.URL)
	}
	return run, TriggerRan
}

func finish(started OperationState, err error) OperationState {
	finished := OperationState{StartedAt: started.StartedAt, FinishedAt: time.Now()}
	if err != nil {
		finished.Status = StatusFailed
		finished.Err = err
	} else {
		finished.Status = StatusSucceeded
	}
	return finished
}

// LoadAnalysis installs a previously saved analysis result as if it had just
// been received. It fails while an analysis is in flight.
func (s *Session) LoadAnalysis(result *types.AnalysisResult) error {
	if result == nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "no analysis result to load", nil)
	}
	if !s.analysisGuard.TryAcquire(1) {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"cannot load an analysis while another is in flight", nil)
	}
	defer s.analysisGuard.Release(1)

	now := time.Now()
	state := OperationState{Status: StatusSucceeded, StartedAt: now, FinishedAt: now}

	s.mu.Lock()
	s.epoch++
	s.result = result
	s.location = nil
	s.analysis = state
	s.report = OperationState{Status: StatusIdle}
	s.reportGuard = semaphore.NewWeighted(1)
	if s.cancelReport != nil {
		s.cancelReport()
		s.cancelReport = nil
	}
	s.mu.Unlock()

	s.notify(OperationAnalysis, state)
	return nil
}

// CancelAnalysis aborts an in-flight analysis. It reports whether one was running.
func (s *Session) CancelAnalysis() bool {
	s.mu.Lock()
	cancel := s.cancelAnalysis
	s.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	s.logger.Info("Analysis canceled")
	return true
}

// CancelReport aborts an in-flight report request
func (s *Session) CancelReport() bool {
	s.mu.Lock()
	cancel := s.cancelReport
	s.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	s.logger.Info("Report generation canceled")
	return true
}

// Snapshot returns a consistent copy of the session state
func (s *Session) Snapshot() Snapshot {
	in := s.inputs.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Resume:         in.Resume,
		JobDescription: in.JobDescription,
		Analysis:       s.analysis,
		Report:         s.report,
		Result:         s.result,
		Location:       s.location,
		Epoch:          s.epoch,
	}
}

func (s *Session) notify(operation string, state OperationState) {
	for _, fn := range s.observers {
		fn(operation, state)
	}
}
