package scripttest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ethereum-optimism/infra/op-scripttest/events"
	"github.com/ethereum-optimism/infra/op-scripttest/jsruntime"
	"github.com/ethereum-optimism/infra/op-scripttest/reporting"
	"github.com/ethereum-optimism/infra/op-scripttest/runner"
	"github.com/ethereum-optimism/infra/op-scripttest/sandbox"
	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

// sigintProducer is the producer id of the interrupt watcher. Test files are
// run by producer 0.
const sigintProducer = 1

// SuiteConfig holds configuration for creating a new suite
type SuiteConfig struct {
	Files         []string
	Filter        *runner.Filter
	SlowThreshold time.Duration
	Reporter      reporting.Reporter
	Cache         *jsruntime.ProgramCache
	Log           log.Logger
	// Exit terminates the process once an interrupt has been reported. Defaults to os.Exit.
	Exit func(code int)
}

// Suite runs a list of test files one after another. Every file gets its own
// report; all reports of an invocation share one event channel.
type Suite struct {
	files    []string
	filter   *runner.Filter
	slow     time.Duration
	reporter reporting.Reporter
	cache    *jsruntime.ProgramCache
	log      log.Logger
	exit     func(code int)
	tracer   trace.Tracer
}

// FileResult is the verdict of one test file.
type FileResult struct {
	Path     string
	Failed   bool
	UsedOnly bool
	Duration time.Duration
}

// RunResult is the outcome of one invocation.
type RunResult struct {
	RunID    string
	Files    []FileResult
	Duration time.Duration
}

// Err returns the combined verdict of every file: nil, reporting.ErrOnlyUsed
// or reporting.ErrTestsFailed.
func (r *RunResult) Err() error {
	failed := false
	for _, f := range r.Files {
		if f.UsedOnly {
			return reporting.ErrOnlyUsed
		}
		failed = failed || f.Failed
	}
	if failed {
		return reporting.ErrTestsFailed
	}
	return nil
}

// NewSuite creates a new suite instance
func NewSuite(cfg SuiteConfig) (*Suite, error) {
	if len(cfg.Files) == 0 {
		return nil, errors.New("at least one test file is required")
	}
	if cfg.Reporter == nil {
		return nil, errors.New("reporter is required")
	}
	if cfg.SlowThreshold < 0 {
		return nil, fmt.Errorf("slow threshold cannot be negative: %s", cfg.SlowThreshold)
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Exit == nil {
		cfg.Exit = os.Exit
	}
	return &Suite{
		files:    cfg.Files,
		filter:   cfg.Filter,
		slow:     cfg.SlowThreshold,
		reporter: cfg.Reporter,
		cache:    cfg.Cache,
		log:      cfg.Log,
		exit:     cfg.Exit,
		tracer:   otel.Tracer("script suite"),
	}, nil
}

// Run runs every file and returns the per-file verdicts.
//
// The returned error is an infrastructure failure: an unreadable file, a
// sandbox fault, a decode or flush error. When ctx is cancelled the
// unfinished tests are reported as interrupted and the configured Exit is
// called; if it returns, Run returns reporting.ErrInterrupted.
func (s *Suite) Run(ctx context.Context) (*RunResult, error) {
	runID := uuid.New().String()
	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("run %s", runID))
	defer span.End()
	span.SetAttributes(attribute.Int("files", len(s.files)))

	result, err := s.run(ctx, runID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if verdict := result.Err(); verdict != nil {
		span.SetStatus(codes.Error, verdict.Error())
	}
	return result, err
}

func (s *Suite) run(ctx context.Context, runID string) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{RunID: runID}
	log := s.log.With("run_id", runID)

	agg, err := reporting.NewAggregator(reporting.AggregatorConfig{
		Reporter: reporting.NewMultiReporter(s.reporter, reporting.NewMetricsReporter(runID)),
		Log:      log,
		Exit:     s.exit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregator: %w", err)
	}

	tx, rx := events.NewChannel()
	defer rx.Close()
	defer tx.Close()
	sigint := tx.Producer(sigintProducer)
	defer sigint.Close()
	stopWatch := context.AfterFunc(ctx, func() {
		log.Warn("Interrupted, reporting unfinished tests")
		if err := sigint.Send(types.SigintEvent{}); err != nil {
			log.Debug("Failed to send interrupt", "err", err)
		}
	})
	defer stopWatch()

	for _, path := range s.files {
		if ctx.Err() != nil {
			// The watcher has queued a Sigint; the aggregator reports it.
			_, err := agg.Run(context.WithoutCancel(ctx), rx)
			result.Duration = time.Since(start)
			if err == nil {
				err = reporting.ErrInterrupted
			}
			return result, err
		}
		file, err := s.runFile(ctx, log.With("file", path), agg, tx, rx, path)
		if err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
		result.Files = append(result.Files, *file)
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (s *Suite) runFile(ctx context.Context, log log.Logger, agg *reporting.Aggregator,
	tx *events.Sender, rx *events.Receiver, path string) (*FileResult, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test file: %w", err)
	}
	rt, err := jsruntime.NewRuntime(jsruntime.Config{Output: tx.Output(), Cache: s.cache, Log: log})
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}
	defer rt.Close()
	exec, err := runner.NewExecutor(runner.Config{
		Runtime:       rt,
		Sender:        tx,
		Filter:        s.filter,
		SlowThreshold: s.slow,
		Log:           log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}
	module := sandbox.Module{Origin: FileOrigin(path), Source: source}

	log.Debug("Running test file")
	var outcome *reporting.Outcome
	var g errgroup.Group
	g.Go(func() error {
		var err error
		outcome, err = agg.Run(context.WithoutCancel(ctx), rx)
		return err
	})
	g.Go(func() error {
		runErr := exec.Run(ctx, module)
		// The report ends even when the run failed, so the aggregator returns.
		if err := tx.Send(types.ForceEndReportEvent{}); err != nil {
			return errors.Join(runErr, fmt.Errorf("failed to end report: %w", err))
		}
		return runErr
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug("Test file completed", "failed", outcome.Failed, "used_only", outcome.UsedOnly, "elapsed", outcome.Elapsed)
	return &FileResult{
		Path:     path,
		Failed:   outcome.Failed,
		UsedOnly: outcome.UsedOnly,
		Duration: outcome.Elapsed,
	}, nil
}

// FileOrigin returns the module origin of a test file.
func FileOrigin(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
