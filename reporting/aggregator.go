package reporting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-scripttest/events"
	"github.com/ethereum-optimism/infra/op-scripttest/exitcodes"
	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

var (
	// ErrTestsFailed is the verdict of a report with a failed or cancelled
	// test, or an uncaught error.
	ErrTestsFailed = errors.New("test failed")
	// ErrOnlyUsed is the verdict of a report where a test used the "only" option.
	ErrOnlyUsed = errors.New(`test failed because the "only" option was used`)
	// ErrInterrupted is returned by Run when the exit hook returns after a Sigint.
	ErrInterrupted = errors.New("test run interrupted")
)

// FlushError is returned when the reporter could not be flushed at the end of
// a report. It is an infrastructure failure, not a verdict.
type FlushError struct {
	Err error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush report: %v", e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}

// Outcome is the result of a completed report.
type Outcome struct {
	// Receiver is the receiver Run consumed. When Forced is set it is still
	// open and may be handed to the next Run.
	Receiver *events.Receiver
	Failed   bool
	UsedOnly bool
	Forced   bool
	Elapsed  time.Duration
}

// Err returns the verdict of the report: nil on success, ErrOnlyUsed or ErrTestsFailed.
func (o *Outcome) Err() error {
	if o.UsedOnly {
		return ErrOnlyUsed
	}
	if o.Failed {
		return ErrTestsFailed
	}
	return nil
}

// AggregatorConfig holds configuration for creating a new aggregator
type AggregatorConfig struct {
	Reporter Reporter
	Log      log.Logger
	// Exit terminates the process after a Sigint has been reported. Defaults to os.Exit.
	Exit func(code int)
}

// Aggregator consumes the events of test runs, forwards them to a Reporter
// and computes the verdict.
type Aggregator struct {
	reporter Reporter
	log      log.Logger
	exit     func(code int)
}

// NewAggregator creates a new aggregator instance
func NewAggregator(cfg AggregatorConfig) (*Aggregator, error) {
	if cfg.Reporter == nil {
		return nil, errors.New("reporter is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Exit == nil {
		cfg.Exit = os.Exit
	}
	return &Aggregator{
		reporter: cfg.Reporter,
		log:      cfg.Log,
		exit:     cfg.Exit,
	}, nil
}

// report is the state of one Run call. It is owned by the Run goroutine.
type report struct {
	tests    *types.TestDescriptions
	steps    *types.StepDescriptions
	started  map[types.ID]struct{}
	resolved map[types.ID]struct{}
	failed   bool
	usedOnly bool
	hadPlan  bool
	start    time.Time
}

func newReport() *report {
	return &report{
		tests:    types.NewTable[types.TestDescription](),
		steps:    types.NewTable[types.StepDescription](),
		started:  make(map[types.ID]struct{}),
		resolved: make(map[types.ID]struct{}),
		start:    time.Now(),
	}
}

// markStarted records id as started. It returns false if it already was.
func (r *report) markStarted(id types.ID) bool {
	if _, ok := r.started[id]; ok {
		return false
	}
	r.started[id] = struct{}{}
	return true
}

// markResolved records id as resolved. It returns false if it already was.
func (r *report) markResolved(id types.ID) bool {
	if _, ok := r.resolved[id]; ok {
		return false
	}
	r.resolved[id] = struct{}{}
	return true
}

func (r *report) unresolved() []types.ID {
	var ids []types.ID
	for id := range r.started {
		if _, ok := r.resolved[id]; !ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Run consumes rx until every sender is closed or a ForceEndReport event
// arrives, then reports the summary and flushes the reporter.
//
// The returned error is an infrastructure failure (*FlushError, or the
// context error if ctx ends first); the verdict is Outcome.Err. A Sigint event
// reports the unresolved tests and terminates the process.
func (a *Aggregator) Run(ctx context.Context, rx *events.Receiver) (*Outcome, error) {
	r := newReport()
	forced := false

loop:
	for {
		env, ok, err := rx.Recv(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		switch ev := env.Event.(type) {
		case types.RegisterEvent:
			ev.Descriptions.Each(func(id types.ID, desc types.TestDescription) bool {
				r.tests.Insert(id, desc)
				a.reporter.ReportRegister(&desc)
				return true
			})
		case types.PlanEvent:
			if !r.hadPlan {
				r.start = time.Now()
				r.hadPlan = true
			}
			if ev.Plan.UsedOnly {
				r.usedOnly = true
			}
			a.reporter.ReportPlan(&ev.Plan)
		case types.WaitEvent:
			desc, ok := a.test(r, ev.ID, ev.Kind())
			if ok && r.markStarted(ev.ID) {
				a.reporter.ReportWait(&desc)
			}
		case types.OutputEvent:
			a.reporter.ReportOutput(ev.Data)
		case types.SlowEvent:
			if desc, ok := a.test(r, ev.ID, ev.Kind()); ok {
				a.reporter.ReportSlow(&desc, ev.Elapsed)
			}
		case types.ResultEvent:
			desc, ok := a.test(r, ev.ID, ev.Kind())
			if !ok || !r.markResolved(ev.ID) {
				continue
			}
			if ev.Result.IsFailed() {
				r.failed = true
			}
			a.reporter.ReportResult(&desc, &ev.Result, ev.Elapsed)
		case types.UncaughtErrorEvent:
			r.failed = true
			a.reporter.ReportUncaughtError(ev.Origin, ev.Error)
		case types.StepRegisterEvent:
			r.steps.Insert(ev.Description.ID, ev.Description)
			a.reporter.ReportStepRegister(&ev.Description)
		case types.StepWaitEvent:
			desc, ok := a.step(r, ev.ID, ev.Kind())
			if ok && r.markStarted(ev.ID) {
				a.reporter.ReportStepWait(&desc)
			}
		case types.StepResultEvent:
			desc, ok := a.step(r, ev.ID, ev.Kind())
			if !ok || !r.markResolved(ev.ID) {
				continue
			}
			if ev.Result.Status == types.TestStatusFailed {
				r.failed = true
			}
			a.reporter.ReportStepResult(&desc, &ev.Result, ev.Elapsed, r.tests, r.steps)
		case types.CompletedEvent:
			a.reporter.ReportCompleted()
		case types.SigintEvent:
			a.interrupt(r)
			return nil, ErrInterrupted
		case types.ForceEndReportEvent:
			forced = true
			break loop
		default:
			a.log.Error("Unknown event", "kind", env.Event.Kind(), "producer", env.ProducerID)
		}
	}

	elapsed := time.Since(r.start)
	a.reporter.ReportSummary(elapsed, r.tests, r.steps)
	if err := a.reporter.FlushReport(elapsed, r.tests, r.steps); err != nil {
		return nil, &FlushError{Err: err}
	}

	return &Outcome{
		Receiver: rx,
		Failed:   r.failed,
		UsedOnly: r.usedOnly,
		Forced:   forced,
		Elapsed:  elapsed,
	}, nil
}

func (a *Aggregator) interrupt(r *report) {
	elapsed := time.Since(r.start)
	unresolved := r.unresolved()
	a.log.Debug("Interrupted", "unresolved", len(unresolved), "elapsed", elapsed)
	a.reporter.ReportSigint(unresolved, r.tests, r.steps)
	if err := a.reporter.FlushReport(elapsed, r.tests, r.steps); err != nil {
		a.log.Error("Failed to flush report after interrupt", "err", err)
	}
	a.exit(exitcodes.Interrupted)
}

func (a *Aggregator) test(r *report, id types.ID, kind types.EventKind) (types.TestDescription, bool) {
	desc, ok := r.tests.Get(id)
	if !ok {
		a.log.Warn("Event for unknown test", "kind", kind, "id", id)
	}
	return desc, ok
}

func (a *Aggregator) step(r *report, id types.ID, kind types.EventKind) (types.StepDescription, bool) {
	desc, ok := r.steps.Get(id)
	if !ok {
		a.log.Warn("Event for unknown step", "kind", kind, "id", id)
	}
	return desc, ok
}
