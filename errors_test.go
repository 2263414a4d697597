package scripttest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ethereum-optimism/infra/op-scripttest/exitcodes"
	"github.com/ethereum-optimism/infra/op-scripttest/reporting"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: exitcodes.Success},
		{name: "failed tests", err: NewTestFailureError(reporting.ErrTestsFailed), want: exitcodes.TestFailure},
		{name: "only used", err: NewTestFailureError(reporting.ErrOnlyUsed), want: exitcodes.TestFailure},
		{name: "runtime error", err: NewRuntimeError(errors.New("unreadable")), want: exitcodes.RuntimeErr},
		{name: "wrapped runtime error", err: fmt.Errorf("start: %w", NewRuntimeError(errors.New("x"))), want: exitcodes.RuntimeErr},
		{name: "interrupted", err: reporting.ErrInterrupted, want: exitcodes.Interrupted},
		{name: "interrupted inside runtime error", err: NewRuntimeError(reporting.ErrInterrupted), want: exitcodes.Interrupted},
		{name: "unknown", err: errors.New("bad flag"), want: exitcodes.TestFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestErrorKinds(t *testing.T) {
	inner := errors.New("inner")

	runtimeErr := NewRuntimeError(inner)
	assert.True(t, IsRuntimeError(runtimeErr))
	assert.False(t, IsTestFailureError(runtimeErr))
	assert.ErrorIs(t, runtimeErr, inner)
	assert.Equal(t, "runtime error: inner", runtimeErr.Error())

	failure := NewTestFailureError(reporting.ErrTestsFailed)
	assert.True(t, IsTestFailureError(failure))
	assert.False(t, IsRuntimeError(failure))
	assert.ErrorIs(t, failure, reporting.ErrTestsFailed)

	assert.False(t, IsRuntimeError(nil))
	assert.False(t, IsTestFailureError(nil))
}
