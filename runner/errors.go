package runner

import (
	"fmt"

	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

// CoreError is an unrecoverable sandbox fault: the module could not be loaded,
// or the sandbox failed for a reason other than a script error.
type CoreError struct {
	Origin string
	Op     string
	Err    error
}

func (e *CoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Origin, e.Err)
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a test body settles with a value that is not a test outcome.
type DecodeError struct {
	ID   types.ID
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode result of test %q (id %d): %v", e.Name, e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
