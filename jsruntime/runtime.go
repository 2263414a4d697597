// Package jsruntime implements the sandbox on the goja JavaScript engine.
//
// A Runtime is single threaded. Every method must be called from the
// goroutine that drives the executor. Timers registered with setTimeout only
// fire while the runtime is waiting for a promise to settle.
package jsruntime

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-scripttest/sandbox"
	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

const preludeName = "scripttest:prelude.js"

//go:embed prelude.js
var preludeSource string

var preludeProgram = goja.MustCompile(preludeName, preludeSource, true)

var (
	_ sandbox.Runtime = (*Runtime)(nil)

	errNoHost = errors.New("no test host bound")
)

// pendingPromiseMessage is the message reported when a promise can no longer settle.
const pendingPromiseMessage = "Promise resolution is still pending but the event loop has already resolved."

// Config contains runtime configuration
type Config struct {
	// Output receives console output. Defaults to os.Stdout.
	Output io.Writer
	// Cache is shared by runtimes that evaluate the same files. Optional.
	Cache *ProgramCache
	Log   log.Logger
}

// Runtime is a goja backed sandbox.Runtime.
type Runtime struct {
	vm     *goja.Runtime
	host   sandbox.Host
	cache  *ProgramCache
	out    io.Writer
	log    log.Logger
	timers *timers

	stringify goja.Callable
}

// NewRuntime creates a runtime with the test API, console and timers installed.
func NewRuntime(cfg Config) (*Runtime, error) {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Runtime{
		vm:     goja.New(),
		cache:  cfg.Cache,
		out:    cfg.Output,
		log:    cfg.Log,
		timers: newTimers(),
	}

	stringify, ok := goja.AssertFunction(r.vm.Get("JSON").ToObject(r.vm).Get("stringify"))
	if !ok {
		return nil, errors.New("JSON.stringify is not available")
	}
	r.stringify = stringify

	if err := r.installGlobals(); err != nil {
		return nil, fmt.Errorf("failed to install globals: %w", err)
	}
	if err := r.installPrelude(); err != nil {
		return nil, fmt.Errorf("failed to install prelude: %w", err)
	}
	return r, nil
}

// Bind sets the host that receives registrations from evaluated modules.
func (r *Runtime) Bind(host sandbox.Host) {
	r.host = host
}

// Evaluate runs the top level of module. Timers it schedules are left pending.
func (r *Runtime) Evaluate(ctx context.Context, module sandbox.Module) error {
	if r.host == nil {
		return errNoHost
	}
	prg, err := r.cache.Compile(module.Origin, module.Source)
	if err != nil {
		return err
	}
	defer r.interruptOn(ctx)()
	if _, err := r.vm.RunProgram(prg); err != nil {
		return r.convert(err)
	}
	return nil
}

// Call invokes fn and drives timers until the value it returned settles.
func (r *Runtime) Call(ctx context.Context, fn sandbox.Callable) (any, error) {
	value, ok := fn.(goja.Value)
	if !ok {
		return nil, fmt.Errorf("not a script value: %T", fn)
	}
	callable, ok := goja.AssertFunction(value)
	if !ok {
		return nil, fmt.Errorf("not a script function: %s", value)
	}

	defer r.interruptOn(ctx)()
	ret, err := callable(goja.Undefined())
	if err != nil {
		return nil, r.convert(err)
	}
	settled, err := r.await(ctx, ret)
	if err != nil {
		return nil, err
	}
	if settled == nil || goja.IsUndefined(settled) || goja.IsNull(settled) {
		return nil, nil
	}
	return settled.Export(), nil
}

// PendingTimers reports the number of scheduled timers that have not fired.
func (r *Runtime) PendingTimers() int {
	return r.timers.pending()
}

// Close drops pending timers. The runtime must not be used afterwards.
func (r *Runtime) Close() {
	r.timers.clear()
	r.host = nil
}

// interruptOn stops script execution when ctx is done. The returned function
// must be called once the script returns.
func (r *Runtime) interruptOn(ctx context.Context) func() {
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		r.vm.Interrupt(ctx.Err())
		close(fired)
	})
	return func() {
		if !stop() {
			<-fired
		}
		r.vm.ClearInterrupt()
	}
}

func (r *Runtime) await(ctx context.Context, v goja.Value) (goja.Value, error) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return v, nil
	}
	promise, ok := obj.Export().(*goja.Promise)
	if !ok {
		return v, nil
	}
	for {
		switch promise.State() {
		case goja.PromiseStateFulfilled:
			return promise.Result(), nil
		case goja.PromiseStateRejected:
			return nil, sandbox.NewScriptError(r.jsError(promise.Result()))
		}
		ran, err := r.runTimer(ctx)
		if err != nil {
			return nil, err
		}
		if !ran {
			return nil, sandbox.NewScriptError(&types.JSError{Name: "Error", Message: pendingPromiseMessage})
		}
	}
}

// runTimer waits for the earliest timer and runs it. It reports false when no
// timer is scheduled.
func (r *Runtime) runTimer(ctx context.Context) (bool, error) {
	tm, ok := r.timers.next()
	if !ok {
		return false, nil
	}
	if wait := tm.when.Sub(r.timers.now()); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if _, err := tm.fn(goja.Undefined(), tm.args...); err != nil {
		return true, r.convert(err)
	}
	return true, nil
}

// convert turns thrown script values into *sandbox.ScriptError and leaves
// engine faults as they are.
func (r *Runtime) convert(err error) error {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		jsErr := r.jsError(exc.Value())
		if jsErr.Stack == "" {
			jsErr.Stack = exc.String()
		}
		return sandbox.NewScriptError(jsErr)
	}
	return fmt.Errorf("script engine: %w", err)
}

func (r *Runtime) jsError(v goja.Value) *types.JSError {
	if v == nil || goja.IsUndefined(v) {
		return &types.JSError{Name: "Uncaught", Message: "undefined"}
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return &types.JSError{Name: "Uncaught", Message: v.String()}
	}
	jsErr := &types.JSError{
		Name:    getString(obj, "name"),
		Message: getString(obj, "message"),
		Stack:   getString(obj, "stack"),
	}
	if jsErr.Name == "" && jsErr.Message == "" {
		jsErr.Name = "Uncaught"
		jsErr.Message = r.inspect(v)
	}
	return jsErr
}

func (r *Runtime) installGlobals() error {
	console := r.vm.NewObject()
	for _, name := range []string{"log", "info", "debug", "warn", "error"} {
		if err := console.Set(name, r.consoleWrite); err != nil {
			return err
		}
	}
	if err := r.vm.Set("console", console); err != nil {
		return err
	}
	if err := r.vm.Set("setTimeout", r.setTimeout); err != nil {
		return err
	}
	return r.vm.Set("clearTimeout", r.clearTimeout)
}

func (r *Runtime) installPrelude() error {
	v, err := r.vm.RunProgram(preludeProgram)
	if err != nil {
		return err
	}
	setup, ok := goja.AssertFunction(v)
	if !ok {
		return errors.New("prelude did not evaluate to a function")
	}
	_, err = setup(goja.Undefined(), r.newOps())
	return err
}

func (r *Runtime) consoleWrite(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, arg := range call.Arguments {
		parts[i] = r.inspect(arg)
	}
	if _, err := io.WriteString(r.out, strings.Join(parts, " ")+"\n"); err != nil {
		r.log.Warn("Failed to write console output", "err", err)
	}
	return goja.Undefined()
}

// inspect renders a value for console output.
func (r *Runtime) inspect(v goja.Value) string {
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.String()
	}
	if _, isFn := goja.AssertFunction(obj); isFn {
		return "[Function]"
	}
	if obj.ClassName() == "Error" {
		return r.jsError(obj).Trace()
	}
	out, err := r.stringify(goja.Undefined(), obj)
	if err != nil || goja.IsUndefined(out) {
		return obj.String()
	}
	return out.String()
}

func (r *Runtime) setTimeout(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(r.vm.NewTypeError("setTimeout: callback must be a function"))
	}
	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}
	return r.vm.ToValue(r.timers.add(fn, delay, args))
}

func (r *Runtime) clearTimeout(call goja.FunctionCall) goja.Value {
	r.timers.cancel(call.Argument(0).ToInteger())
	return goja.Undefined()
}

func getString(obj *goja.Object, key string) string {
	v := obj.Get(key)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func getBool(obj *goja.Object, key string) bool {
	v := obj.Get(key)
	return v != nil && v.ToBoolean()
}

func getID(obj *goja.Object, key string) types.ID {
	v := obj.Get(key)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0
	}
	return types.ID(v.ToInteger())
}
