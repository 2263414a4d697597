// Package sandbox defines the contract between the test executor and the
// script engine that evaluates test modules.
//
// The executor never touches engine values directly: test bodies and hooks are
// opaque Callables, and script failures surface as *ScriptError. Any other
// error returned by a Runtime is an engine fault and is not recoverable.
package sandbox

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

// Callable is an engine-owned function value (a test body or a hook).
type Callable any

// Module is a unit of script source evaluated by a Runtime.
type Module struct {
	// Origin identifies the module, e.g. "file:///abs/path/to/test.js".
	Origin string
	Source []byte
}

// TestRegistration holds the arguments of a register-test call.
type TestRegistration struct {
	Name              string
	Ignore            bool
	Only              bool
	SanitizeOps       bool
	SanitizeResources bool
	Location          types.TestLocation
}

// StepRegistration holds the arguments of a register-step call.
type StepRegistration struct {
	Name     string
	Location types.TestLocation
	Level    int
	ParentID types.ID
	RootID   types.ID
	RootName string
}

// Host is the registration surface a Runtime exposes to scripts.
type Host interface {
	Origin() string
	RegisterTest(reg TestRegistration, fn Callable) types.ID
	RegisterStep(reg StepRegistration) types.ID
	RegisterHook(kind string, fn Callable)
	StepWait(id types.ID)
	StepResult(id types.ID, result types.StepResult, elapsed time.Duration)
}

// Runtime evaluates modules and invokes the callables they register.
type Runtime interface {
	// Bind makes host the registration surface for subsequently evaluated
	// modules. It must be called before Evaluate.
	Bind(host Host)
	// Evaluate runs the module's top level to completion.
	Evaluate(ctx context.Context, module Module) error
	// Call invokes fn and waits for the value it returns to settle. The
	// settled value is returned as a plain Go value.
	Call(ctx context.Context, fn Callable) (any, error)
}

// ScriptError is an error thrown by script code that the script could have caught.
type ScriptError struct {
	Err *types.JSError
}

// NewScriptError wraps a script error.
func NewScriptError(err *types.JSError) *ScriptError {
	return &ScriptError{Err: err}
}

func (e *ScriptError) Error() string {
	return e.Err.Trace()
}

// AsScriptError returns the script error held by err, if any.
func AsScriptError(err error) (*types.JSError, bool) {
	var scriptErr *ScriptError
	if err != nil && errors.As(err, &scriptErr) {
		return scriptErr.Err, true
	}
	return nil, false
}
