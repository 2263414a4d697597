// Package sandboxtest provides an in-memory sandbox.Runtime for tests.
package sandboxtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum-optimism/infra/op-scripttest/sandbox"
	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

var _ sandbox.Runtime = (*Runtime)(nil)

// Func is the callable type understood by Runtime. Its return value is handed
// back as the settled value of the call.
type Func func(ctx context.Context) (any, error)

// Runtime evaluates modules by running Script against the bound host.
type Runtime struct {
	// Script plays the role of the module top level.
	Script func(host sandbox.Host) error

	host sandbox.Host
}

// New returns a runtime that runs script on evaluation.
func New(script func(host sandbox.Host) error) *Runtime {
	return &Runtime{Script: script}
}

func (r *Runtime) Bind(host sandbox.Host) {
	r.host = host
}

// Host returns the bound host.
func (r *Runtime) Host() sandbox.Host {
	return r.host
}

func (r *Runtime) Evaluate(ctx context.Context, module sandbox.Module) error {
	if r.host == nil {
		return errors.New("no host bound")
	}
	if r.Script == nil {
		return nil
	}
	return r.Script(r.host)
}

func (r *Runtime) Call(ctx context.Context, fn sandbox.Callable) (any, error) {
	f, ok := fn.(Func)
	if !ok {
		return nil, fmt.Errorf("not a sandboxtest.Func: %T", fn)
	}
	return f(ctx)
}

// Throw returns the error a script raises with `throw new Error(msg)`.
func Throw(msg string) error {
	return sandbox.NewScriptError(&types.JSError{Name: "Error", Message: msg})
}

// Returning is a test body that settles with value.
func Returning(value any) Func {
	return func(context.Context) (any, error) {
		return value, nil
	}
}

// Journal records the order in which callables ran.
type Journal struct {
	mu      sync.Mutex
	entries []string
}

// Record returns a callable that appends name to the journal and settles with result.
func (j *Journal) Record(name string, result any) Func {
	return j.RecordErr(name, result, nil)
}

// RecordErr is like Record but fails the call with err.
func (j *Journal) RecordErr(name string, result any, err error) Func {
	return func(context.Context) (any, error) {
		j.mu.Lock()
		j.entries = append(j.entries, name)
		j.mu.Unlock()
		return result, err
	}
}

// Entries returns the recorded names in call order.
func (j *Journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}
