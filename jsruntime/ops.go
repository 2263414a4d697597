package jsruntime

import (
	"time"

	"github.com/dop251/goja"

	"github.com/ethereum-optimism/infra/op-scripttest/sandbox"
	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

// newOps builds the host operations object handed to the prelude.
func (r *Runtime) newOps() *goja.Object {
	ops := r.vm.NewObject()
	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"registerTest":      r.opRegisterTest,
		"registerTestStep":  r.opRegisterStep,
		"registerTestHook":  r.opRegisterHook,
		"getOrigin":         r.opOrigin,
		"stepWait":          r.opStepWait,
		"stepResultOk":      r.opStepResult(types.StepOk),
		"stepResultIgnored": r.opStepResult(types.StepIgnored),
		"stepResultFailed":  r.opStepFailed,
		"formatError":       r.opFormatError,
	} {
		// Set only fails on frozen or exotic objects.
		_ = ops.Set(name, fn)
	}
	return ops
}

func (r *Runtime) mustHost() sandbox.Host {
	if r.host == nil {
		panic(r.vm.NewGoError(errNoHost))
	}
	return r.host
}

func (r *Runtime) opRegisterTest(call goja.FunctionCall) goja.Value {
	host := r.mustHost()
	desc := call.Argument(0).ToObject(r.vm)
	fn := call.Argument(1)
	if _, ok := goja.AssertFunction(fn); !ok {
		panic(r.vm.NewTypeError("test function must be a function"))
	}
	id := host.RegisterTest(sandbox.TestRegistration{
		Name:              getString(desc, "name"),
		Ignore:            getBool(desc, "ignore"),
		Only:              getBool(desc, "only"),
		SanitizeOps:       getBool(desc, "sanitizeOps"),
		SanitizeResources: getBool(desc, "sanitizeResources"),
		Location:          r.callerLocation(),
	}, fn)
	return r.vm.ToValue(int64(id))
}

func (r *Runtime) opRegisterStep(call goja.FunctionCall) goja.Value {
	host := r.mustHost()
	desc := call.Argument(0).ToObject(r.vm)
	id := host.RegisterStep(sandbox.StepRegistration{
		Name:     getString(desc, "name"),
		Location: r.callerLocation(),
		Level:    int(desc.Get("level").ToInteger()),
		ParentID: getID(desc, "parentId"),
		RootID:   getID(desc, "rootId"),
		RootName: getString(desc, "rootName"),
	})
	return r.vm.ToValue(int64(id))
}

func (r *Runtime) opRegisterHook(call goja.FunctionCall) goja.Value {
	host := r.mustHost()
	fn := call.Argument(1)
	if _, ok := goja.AssertFunction(fn); !ok {
		panic(r.vm.NewTypeError("hook must be a function"))
	}
	host.RegisterHook(call.Argument(0).String(), fn)
	return goja.Undefined()
}

func (r *Runtime) opOrigin(goja.FunctionCall) goja.Value {
	return r.vm.ToValue(r.mustHost().Origin())
}

func (r *Runtime) opStepWait(call goja.FunctionCall) goja.Value {
	r.mustHost().StepWait(types.ID(call.Argument(0).ToInteger()))
	return goja.Undefined()
}

func (r *Runtime) opStepResult(result types.StepResult) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		r.mustHost().StepResult(types.ID(call.Argument(0).ToInteger()), result, millis(call.Argument(1)))
		return goja.Undefined()
	}
}

func (r *Runtime) opStepFailed(call goja.FunctionCall) goja.Value {
	host := r.mustHost()
	failure, err := types.DecodeTestFailure(call.Argument(1).Export())
	if err != nil {
		panic(r.vm.NewTypeError(err.Error()))
	}
	host.StepResult(types.ID(call.Argument(0).ToInteger()), types.FailedStep(failure), millis(call.Argument(2)))
	return goja.Undefined()
}

func (r *Runtime) opFormatError(call goja.FunctionCall) goja.Value {
	jsErr := r.jsError(call.Argument(0))
	obj := r.vm.NewObject()
	_ = obj.Set("name", jsErr.Name)
	_ = obj.Set("message", jsErr.Message)
	_ = obj.Set("stack", jsErr.Stack)
	return obj
}

// callerLocation is the innermost frame of user code on the call stack.
func (r *Runtime) callerLocation() types.TestLocation {
	for _, frame := range r.vm.CaptureCallStack(0, nil) {
		name := frame.SrcName()
		if name == "" || name == "<native>" || name == preludeName {
			continue
		}
		pos := frame.Position()
		return types.TestLocation{
			FileName:     name,
			LineNumber:   uint32(pos.Line),
			ColumnNumber: uint32(pos.Column),
		}
	}
	return types.TestLocation{FileName: r.mustHost().Origin()}
}

func millis(v goja.Value) time.Duration {
	return time.Duration(v.ToFloat() * float64(time.Millisecond))
}
