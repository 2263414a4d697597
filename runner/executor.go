package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-scripttest/registry"
	"github.com/ethereum-optimism/infra/op-scripttest/sandbox"
	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

// Config holds configuration for creating a new executor
type Config struct {
	Runtime   sandbox.Runtime
	Sender    registry.EventSender
	Allocator *registry.Allocator
	// Filter selects the tests to run. Nil applies only the only option.
	Filter *Filter
	// SlowThreshold is the interval between slow notifications for a running
	// test body. Zero disables them.
	SlowThreshold time.Duration
	Log           log.Logger
}

// Executor drives test modules through a sandbox and reports every step of
// the run as events. Modules are run one at a time.
type Executor struct {
	runtime   sandbox.Runtime
	sender    registry.EventSender
	allocator *registry.Allocator
	filter    *Filter
	slow      time.Duration
	log       log.Logger
	tracer    trace.Tracer
}

// NewExecutor creates a new executor instance
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.Runtime == nil {
		return nil, fmt.Errorf("runtime is required")
	}
	if cfg.Sender == nil {
		return nil, fmt.Errorf("event sender is required")
	}
	if cfg.Allocator == nil {
		cfg.Allocator = registry.Global
	}
	if cfg.SlowThreshold < 0 {
		return nil, fmt.Errorf("slow threshold cannot be negative: %s", cfg.SlowThreshold)
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Executor{
		runtime:   cfg.Runtime,
		sender:    cfg.Sender,
		allocator: cfg.Allocator,
		filter:    cfg.Filter,
		slow:      cfg.SlowThreshold,
		log:       cfg.Log,
		tracer:    otel.Tracer("script runner"),
	}, nil
}

// moduleRun is the state of a single Run call.
type moduleRun struct {
	origin      string
	snapshot    registry.Snapshot
	tests       []types.TestDescription
	selected    []int
	hadUncaught bool
}

// Run evaluates module and runs the tests it registers.
//
// Script errors never abort the run; they are reported as events. Run returns
// a *CoreError for sandbox faults, a *DecodeError for malformed test outcomes
// and an error wrapping events.ErrChannelClosed when the consumer is gone.
//
// Cancelling ctx stops the run from starting further test bodies. Sandbox
// calls already in flight are allowed to settle.
func (e *Executor) Run(ctx context.Context, module sandbox.Module) error {
	ctx, span := e.tracer.Start(ctx, fmt.Sprintf("module %s", module.Origin))
	defer span.End()

	err := e.run(ctx, module)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (e *Executor) run(ctx context.Context, module sandbox.Module) error {
	callCtx := context.WithoutCancel(ctx)

	reg, err := registry.NewRegistry(registry.Config{
		Log:       e.log,
		Allocator: e.allocator,
		Sender:    e.sender,
		Origin:    module.Origin,
	})
	if err != nil {
		return err
	}
	e.runtime.Bind(reg)

	e.log.Debug("Evaluating module", "origin", module.Origin)
	var evalErr *types.JSError
	if err := e.runtime.Evaluate(callCtx, module); err != nil {
		jsErr, ok := sandbox.AsScriptError(err)
		if !ok {
			return &CoreError{Origin: module.Origin, Op: "evaluate", Err: err}
		}
		evalErr = jsErr
	}

	r := &moduleRun{
		origin:   module.Origin,
		snapshot: reg.Take(),
	}
	r.snapshot.Descriptions.Each(func(_ types.ID, desc types.TestDescription) bool {
		r.tests = append(r.tests, desc)
		return true
	})
	if err := e.send(types.RegisterEvent{Descriptions: r.snapshot.Descriptions}); err != nil {
		return err
	}

	sel := e.filter.Select(r.tests)
	r.selected = sel.Indexes
	plan := types.Plan{
		Origin:      module.Origin,
		Total:       len(sel.Indexes),
		FilteredOut: sel.FilteredOut,
		UsedOnly:    sel.UsedOnly,
	}
	if err := e.send(types.PlanEvent{Plan: plan}); err != nil {
		return err
	}
	e.log.Debug("Planned module", "origin", module.Origin, "total", plan.Total,
		"filteredOut", plan.FilteredOut, "usedOnly", plan.UsedOnly, "hooks", r.snapshot.Hooks.Len())

	if evalErr != nil {
		// Tests registered before the error are still accounted for, as cancelled.
		if err := e.uncaught(r, evalErr); err != nil {
			return err
		}
	} else {
		if err := e.runBeforeAll(callCtx, r); err != nil {
			return err
		}
	}

	for _, idx := range r.selected {
		if err := e.runTest(ctx, callCtx, r, r.tests[idx], r.snapshot.Functions[idx]); err != nil {
			return err
		}
	}

	if err := e.send(types.CompletedEvent{}); err != nil {
		return err
	}

	return e.runAfterAll(callCtx, r)
}

func (e *Executor) runBeforeAll(ctx context.Context, r *moduleRun) error {
	for i, hook := range r.snapshot.Hooks.BeforeAll {
		_, err := e.runtime.Call(ctx, hook)
		if err == nil {
			continue
		}
		jsErr, ok := sandbox.AsScriptError(err)
		if !ok {
			return &CoreError{Origin: r.origin, Op: fmt.Sprintf("beforeAll hook %d", i), Err: err}
		}
		e.log.Debug("beforeAll hook failed, skipping every test", "origin", r.origin, "hook", i)
		r.selected = nil
		return e.sendUncaught(r.origin, jsErr)
	}
	return nil
}

func (e *Executor) runAfterAll(ctx context.Context, r *moduleRun) error {
	hooks := r.snapshot.Hooks.AfterAll
	for i := len(hooks) - 1; i >= 0; i-- {
		_, err := e.runtime.Call(ctx, hooks[i])
		if err == nil {
			continue
		}
		jsErr, ok := sandbox.AsScriptError(err)
		if !ok {
			return &CoreError{Origin: r.origin, Op: fmt.Sprintf("afterAll hook %d", i), Err: err}
		}
		if err := e.sendUncaught(r.origin, jsErr); err != nil {
			return err
		}
	}
	return nil
}

// runTest drives a single test through its hooks and body. ctx is the
// caller's context, callCtx is the non-cancelling context sandbox calls run under.
func (e *Executor) runTest(ctx, callCtx context.Context, r *moduleRun, desc types.TestDescription, fn sandbox.Callable) error {
	if desc.Ignore {
		return e.send(types.ResultEvent{ID: desc.ID, Result: types.ResultIgnored})
	}
	if r.hadUncaught || ctx.Err() != nil {
		return e.send(types.ResultEvent{ID: desc.ID, Result: types.ResultCancelled})
	}

	_, span := e.tracer.Start(ctx, fmt.Sprintf("test %s", desc.Name))
	defer span.End()
	span.SetAttributes(attribute.Int64("test.id", int64(desc.ID)))

	start := time.Now()
	if err := e.send(types.WaitEvent{ID: desc.ID}); err != nil {
		return err
	}
	e.log.Debug("Running test", "id", desc.ID, "name", desc.Name, "location", desc.Location)

	result := types.ResultIgnored
	beforeEachFailed := false
	for i, hook := range r.snapshot.Hooks.BeforeEach {
		_, err := e.runtime.Call(callCtx, hook)
		if err == nil {
			continue
		}
		jsErr, ok := sandbox.AsScriptError(err)
		if !ok {
			return &CoreError{Origin: r.origin, Op: fmt.Sprintf("beforeEach hook %d", i), Err: err}
		}
		beforeEachFailed = true
		if err := e.sendResult(desc.ID, types.FailedResult(types.JSErrorFailure(jsErr)), start); err != nil {
			return err
		}
		break
	}

	if !beforeEachFailed {
		value, err := e.callBody(callCtx, desc, fn, start)
		if err != nil {
			jsErr, ok := sandbox.AsScriptError(err)
			if !ok {
				return &CoreError{Origin: r.origin, Op: fmt.Sprintf("test %q", desc.Name), Err: err}
			}
			span.SetStatus(codes.Error, jsErr.Error())
			if err := e.uncaught(r, jsErr); err != nil {
				return err
			}
			return e.sendResult(desc.ID, types.ResultCancelled, start)
		}

		result, err = types.DecodeTestResult(value)
		if err != nil {
			return &DecodeError{ID: desc.ID, Name: desc.Name, Err: err}
		}
		if result.Status == types.TestStatusFailed {
			if err := e.sendResult(desc.ID, result, start); err != nil {
				return err
			}
		}
	}

	for i, hook := range r.snapshot.Hooks.AfterEach {
		_, err := e.runtime.Call(callCtx, hook)
		if err == nil {
			continue
		}
		jsErr, ok := sandbox.AsScriptError(err)
		if !ok {
			return &CoreError{Origin: r.origin, Op: fmt.Sprintf("afterEach hook %d", i), Err: err}
		}
		if err := e.sendResult(desc.ID, types.FailedResult(types.JSErrorFailure(jsErr)), start); err != nil {
			return err
		}
	}

	if result.IsFailed() {
		span.SetStatus(codes.Error, string(result.Status))
	}
	if result.Status == types.TestStatusFailed {
		return nil
	}
	return e.sendResult(desc.ID, result, start)
}

func (e *Executor) callBody(ctx context.Context, desc types.TestDescription, fn sandbox.Callable, start time.Time) (any, error) {
	stop := e.watchSlow(desc.ID, start)
	defer stop()
	return e.runtime.Call(ctx, fn)
}

// watchSlow reports the test as slow every threshold until stop is called.
// No slow event is sent once stop has returned.
func (e *Executor) watchSlow(id types.ID, start time.Time) (stop func()) {
	if e.slow <= 0 {
		return func() {}
	}
	ticker := time.NewTicker(e.slow)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ticker.C:
				if err := e.sender.Send(types.SlowEvent{ID: id, Elapsed: time.Since(start)}); err != nil {
					e.log.Debug("Failed to send slow notification", "id", id, "err", err)
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
		wg.Wait()
	}
}

func (e *Executor) uncaught(r *moduleRun, jsErr *types.JSError) error {
	r.hadUncaught = true
	return e.sendUncaught(r.origin, jsErr)
}

func (e *Executor) sendUncaught(origin string, jsErr *types.JSError) error {
	return e.send(types.UncaughtErrorEvent{Origin: origin, Error: jsErr})
}

func (e *Executor) sendResult(id types.ID, result types.TestResult, start time.Time) error {
	return e.send(types.ResultEvent{ID: id, Result: result, Elapsed: time.Since(start)})
}

func (e *Executor) send(ev types.Event) error {
	if err := e.sender.Send(ev); err != nil {
		return fmt.Errorf("send %s event: %w", ev.Kind(), err)
	}
	return nil
}

