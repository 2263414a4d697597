// Package scripttest runs JavaScript test files and reports their results.
package scripttest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/ethereum-optimism/infra/op-scripttest/exitcodes"
	"github.com/ethereum-optimism/infra/op-scripttest/jsruntime"
	"github.com/ethereum-optimism/infra/op-scripttest/metrics"
	"github.com/ethereum-optimism/infra/op-scripttest/reporting"
	"github.com/ethereum-optimism/infra/op-scripttest/runner"
)

var _ cliapp.Lifecycle = (*tester)(nil)

// tester runs the configured test files once or periodically.
type tester struct {
	config    *Config
	version   string
	suite     *Suite
	scheduler *Scheduler
	result    atomic.Pointer[RunResult]

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New creates the test runner lifecycle.
func New(config *Config, version string, shutdownCallback func(error)) (*tester, error) {
	return newTester(config, version, shutdownCallback, reporting.NewPrettyReporter(reporting.PrettyConfig{
		NoColor:         config != nil && config.NoColor,
		HideStacktraces: config != nil && config.HideStacktraces,
	}), nil)
}

func newTester(config *Config, version string, shutdownCallback func(error), reporter reporting.Reporter, exit func(int)) (*tester, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating tester with config",
		"files", len(config.Files),
		"filter", config.Filter,
		"slowThreshold", config.SlowThreshold,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	var filter *runner.Filter
	if config.Filter != "" {
		var err error
		filter, err = runner.NewFilter(config.Filter)
		if err != nil {
			return nil, fmt.Errorf("invalid filter: %w", err)
		}
	}

	cache, err := jsruntime.NewProgramCache(config.CacheSize)
	if err != nil {
		return nil, err
	}

	suite, err := NewSuite(SuiteConfig{
		Files:         config.Files,
		Filter:        filter,
		SlowThreshold: config.SlowThreshold,
		Reporter:      reporter,
		Cache:         cache,
		Log:           config.Log,
		Exit:          exit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create suite: %w", err)
	}

	t := &tester{
		config:           config,
		version:          version,
		suite:            suite,
		scheduler:        NewScheduler(config.RunInterval, config.Log),
		shutdownCallback: shutdownCallback,
	}
	t.scheduler.RegisterCallback(t.runTests)
	return t, nil
}

// Start runs the test files and, in continuous mode, schedules further runs.
// Start implements the cliapp.Lifecycle interface.
func (t *tester) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			t.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	if err := t.scheduler.Start(ctx); err != nil {
		t.config.Log.Error("Error running tests", "err", err)
		return err
	}

	if !t.config.RunOnce {
		t.config.Log.Debug("op-scripttest started successfully", "version", t.version)
		return nil
	}

	t.config.Log.Info("Tests completed, exiting (run-once mode)")
	if verdict := t.result.Load().Err(); verdict != nil {
		t.config.Log.Warn("Run-once test run completed with failures, returning exit code 1", "verdict", verdict)
		return NewTestFailureError(verdict)
	}
	go t.shutdownCallback(nil)
	return nil
}

// runTests runs every file once. Failed verdicts are not errors; they are
// kept in t.result.
func (t *tester) runTests(ctx context.Context) error {
	t.config.Log.Info("Running test files", "files", len(t.config.Files))
	result, err := t.suite.Run(ctx)
	if err != nil {
		if errors.Is(err, reporting.ErrInterrupted) {
			return err
		}
		metrics.RecordErrorDetails("run", err)
		return NewRuntimeError(err)
	}
	t.result.Store(result)
	t.config.Log.Info("Test run completed", "run_id", result.RunID, "duration", result.Duration, "verdict", result.Err())
	return nil
}

// Stop stops scheduling test runs.
// Stop implements the cliapp.Lifecycle interface.
func (t *tester) Stop(ctx context.Context) error {
	t.config.Log.Info("Stopping op-scripttest")
	if err := t.scheduler.Stop(); err != nil {
		return err
	}
	return t.scheduler.WaitForShutdown(ctx)
}

// Stopped returns true if no further runs will happen.
// Stopped implements the cliapp.Lifecycle interface.
func (t *tester) Stopped() bool {
	return t.scheduler.Stopped()
}

// Result returns the outcome of the latest completed run.
func (t *tester) Result() *RunResult {
	return t.result.Load()
}
