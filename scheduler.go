package scripttest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// RunFunc runs the test files once.
type RunFunc func(ctx context.Context) error

// Scheduler runs the suite once, or repeatedly at a fixed interval.
type Scheduler struct {
	interval time.Duration
	runOnce  bool
	log      log.Logger
	run      RunFunc

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. An interval of zero means run-once mode.
func NewScheduler(interval time.Duration, logger log.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		runOnce:  interval == 0,
		log:      logger,
		done:     make(chan struct{}),
	}
}

// RegisterCallback sets the function run on every tick.
func (s *Scheduler) RegisterCallback(run RunFunc) {
	s.run = run
}

// Start runs the callback immediately and returns its error. In continuous
// mode later runs happen in the background until Stop is called or ctx ends;
// their errors are logged.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.run == nil {
		return errors.New("callback must be registered before starting scheduler")
	}

	s.done = make(chan struct{})
	s.running.Store(true)

	if s.runOnce {
		s.log.Info("Starting scheduler in run-once mode")
		return s.run(ctx)
	}

	s.log.Info("Starting scheduler in continuous mode", "interval", s.interval)
	if err := s.run(ctx); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if !s.running.Load() {
					s.log.Debug("Scheduler stopped, exiting periodic test runner")
					return
				}
				s.log.Info("Running periodic tests")
				if err := s.run(ctx); err != nil {
					s.log.Error("Error running periodic tests", "err", err)
				}
			case <-s.done:
				s.log.Debug("Done signal received, stopping periodic test runner")
				return
			case <-ctx.Done():
				s.log.Debug("Context canceled, stopping periodic test runner")
				s.running.Store(false)
				return
			}
		}
	}()
	return nil
}

// Stop prevents further runs. A run in progress is not interrupted.
func (s *Scheduler) Stop() error {
	if !s.running.Swap(false) {
		s.log.Debug("Scheduler already stopped, nothing to do")
		return nil
	}
	close(s.done)
	return nil
}

// Stopped returns true if the scheduler is stopped.
func (s *Scheduler) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until the periodic runner goroutine has terminated.
func (s *Scheduler) WaitForShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.log.Warn("Timed out waiting for goroutines to terminate", "err", ctx.Err())
		return ctx.Err()
	}
}
