package scripttest

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-scripttest/exitcodes"
	"github.com/ethereum-optimism/infra/op-scripttest/reporting"
)

// RuntimeError represents an operational error that should lead to exit code 2
// Examples include configuration errors, unreadable test files, sandbox faults
// and report flush failures.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError carries a failed verdict (exit code 1): a failed or
// cancelled test, an uncaught error, or use of the "only" option.
type TestFailureError struct {
	Err error
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %v", e.Err)
}

func (e *TestFailureError) Unwrap() error {
	return e.Err
}

// NewTestFailureError creates a new TestFailureError
func NewTestFailureError(err error) *TestFailureError {
	return &TestFailureError{Err: err}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}

// ExitCode maps an error returned by the tester to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitcodes.Success
	case errors.Is(err, reporting.ErrInterrupted):
		return exitcodes.Interrupted
	case IsRuntimeError(err):
		return exitcodes.RuntimeErr
	default:
		return exitcodes.TestFailure
	}
}
