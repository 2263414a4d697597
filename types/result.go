package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// TestStatus represents the terminal state of a test or step.
type TestStatus string

const (
	TestStatusOk        TestStatus = "ok"
	TestStatusIgnored   TestStatus = "ignored"
	TestStatusFailed    TestStatus = "failed"
	TestStatusCancelled TestStatus = "cancelled"
)

// FailureKind tags the variant held by a TestFailure.
type FailureKind string

const (
	FailureJSError                  FailureKind = "jsError"
	FailureFailedSteps              FailureKind = "failedSteps"
	FailureIncompleteSteps          FailureKind = "incompleteSteps"
	FailureLeaked                   FailureKind = "leaked"
	FailureIncomplete               FailureKind = "incomplete"
	FailureOverlapsWithSanitizers   FailureKind = "overlapsWithSanitizers"
	FailureHasSanitizersAndOverlaps FailureKind = "hasSanitizersAndOverlaps"
)

var ErrInvalidOutcome = errors.New("invalid test outcome")

// JSError is an error raised by a script, as reported by the sandbox.
type JSError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

func (e *JSError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Trace returns the stack when the sandbox provided one, the plain message otherwise.
func (e *JSError) Trace() string {
	if e.Stack != "" {
		return e.Stack
	}
	return e.Error()
}

// LeakReport carries the output of an external resource sanitizer.
type LeakReport struct {
	OpenedNotClosed []string
	ClosedNotOpened []string
}

// TestFailure describes why a test or step failed. Exactly the fields
// belonging to Kind are set.
type TestFailure struct {
	Kind        FailureKind
	Error       *JSError
	FailedSteps int
	Leaks       *LeakReport
	Overlaps    []string
}

// JSErrorFailure wraps a script error into a failure.
func JSErrorFailure(err *JSError) *TestFailure {
	return &TestFailure{Kind: FailureJSError, Error: err}
}

// FailedStepsFailure reports count failed steps.
func FailedStepsFailure(count int) *TestFailure {
	return &TestFailure{Kind: FailureFailedSteps, FailedSteps: count}
}

// String renders the failure as a single human readable line.
func (f *TestFailure) String() string {
	switch f.Kind {
	case FailureJSError:
		if f.Error == nil {
			return "Error"
		}
		return f.Error.Error()
	case FailureFailedSteps:
		if f.FailedSteps == 1 {
			return "1 test step failed."
		}
		return fmt.Sprintf("%d test steps failed.", f.FailedSteps)
	case FailureIncompleteSteps:
		return "Completed while steps were still running. Ensure all steps are awaited with `await t.step(...)`."
	case FailureLeaked:
		var parts []string
		if f.Leaks != nil {
			parts = append(parts, f.Leaks.OpenedNotClosed...)
			parts = append(parts, f.Leaks.ClosedNotOpened...)
		}
		return "Leaks detected: " + strings.Join(parts, ", ")
	case FailureIncomplete:
		return "Didn't complete before parent. Await step with `await t.step(...)`."
	case FailureOverlapsWithSanitizers:
		return "Started test step while another test step with sanitizers was running: " + strings.Join(f.Overlaps, ", ")
	case FailureHasSanitizersAndOverlaps:
		return "Started test step with sanitizers while another test step was running: " + strings.Join(f.Overlaps, ", ")
	default:
		return string(f.Kind)
	}
}

// TestResult is the terminal outcome of a test.
type TestResult struct {
	Status  TestStatus
	Failure *TestFailure
}

var (
	ResultOk        = TestResult{Status: TestStatusOk}
	ResultIgnored   = TestResult{Status: TestStatusIgnored}
	ResultCancelled = TestResult{Status: TestStatusCancelled}
)

// FailedResult builds a failed test result.
func FailedResult(failure *TestFailure) TestResult {
	return TestResult{Status: TestStatusFailed, Failure: failure}
}

// IsFailed reports whether the test result counts against the verdict.
func (r TestResult) IsFailed() bool {
	return r.Status == TestStatusFailed || r.Status == TestStatusCancelled
}

// StepResult is the terminal outcome of a step. Steps are never cancelled on
// their own.
type StepResult struct {
	Status  TestStatus
	Failure *TestFailure
}

var (
	StepOk      = StepResult{Status: TestStatusOk}
	StepIgnored = StepResult{Status: TestStatusIgnored}
)

// FailedStep builds a failed step result.
func FailedStep(failure *TestFailure) StepResult {
	return StepResult{Status: TestStatusFailed, Failure: failure}
}

// UnmarshalJSON decodes `"ok"`, `"ignored"`, `"cancelled"` or `{"failed": <failure>}`.
func (r *TestResult) UnmarshalJSON(data []byte) error {
	status, failure, err := decodeOutcome(data)
	if err != nil {
		return err
	}
	r.Status, r.Failure = status, failure
	return nil
}

// UnmarshalJSON decodes `"ok"`, `"ignored"` or `{"failed": <failure>}`.
func (r *StepResult) UnmarshalJSON(data []byte) error {
	status, failure, err := decodeOutcome(data)
	if err != nil {
		return err
	}
	if status == TestStatusCancelled {
		return fmt.Errorf("%w: steps cannot be cancelled", ErrInvalidOutcome)
	}
	r.Status, r.Failure = status, failure
	return nil
}

func decodeOutcome(data []byte) (TestStatus, *TestFailure, error) {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		switch TestStatus(tag) {
		case TestStatusOk, TestStatusIgnored, TestStatusCancelled:
			return TestStatus(tag), nil, nil
		}
		return "", nil, fmt.Errorf("%w: unknown status %q", ErrInvalidOutcome, tag)
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidOutcome, err)
	}
	raw, ok := tagged[string(TestStatusFailed)]
	if !ok || len(tagged) != 1 {
		return "", nil, fmt.Errorf("%w: expected a single \"failed\" key", ErrInvalidOutcome)
	}
	var failure TestFailure
	if err := json.Unmarshal(raw, &failure); err != nil {
		return "", nil, err
	}
	return TestStatusFailed, &failure, nil
}

// UnmarshalJSON decodes the externally tagged failure representation.
func (f *TestFailure) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		switch FailureKind(tag) {
		case FailureIncompleteSteps, FailureIncomplete:
			*f = TestFailure{Kind: FailureKind(tag)}
			return nil
		}
		return fmt.Errorf("%w: unknown failure %q", ErrInvalidOutcome, tag)
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutcome, err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("%w: expected exactly one failure kind, got %d", ErrInvalidOutcome, len(tagged))
	}
	for key, raw := range tagged {
		kind := FailureKind(key)
		switch kind {
		case FailureJSError:
			var jsErr JSError
			if err := json.Unmarshal(raw, &jsErr); err != nil {
				return fmt.Errorf("%w: jsError: %v", ErrInvalidOutcome, err)
			}
			*f = TestFailure{Kind: kind, Error: &jsErr}
		case FailureFailedSteps:
			var count int
			if err := json.Unmarshal(raw, &count); err != nil {
				return fmt.Errorf("%w: failedSteps: %v", ErrInvalidOutcome, err)
			}
			*f = TestFailure{Kind: kind, FailedSteps: count}
		case FailureLeaked:
			var pair [2][]string
			if err := json.Unmarshal(raw, &pair); err != nil {
				return fmt.Errorf("%w: leaked: %v", ErrInvalidOutcome, err)
			}
			*f = TestFailure{Kind: kind, Leaks: &LeakReport{OpenedNotClosed: pair[0], ClosedNotOpened: pair[1]}}
		case FailureOverlapsWithSanitizers, FailureHasSanitizersAndOverlaps:
			var names []string
			if err := json.Unmarshal(raw, &names); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidOutcome, key, err)
			}
			*f = TestFailure{Kind: kind, Overlaps: names}
		default:
			return fmt.Errorf("%w: unknown failure %q", ErrInvalidOutcome, key)
		}
	}
	return nil
}

// DecodeTestResult converts a value settled by the sandbox into a TestResult.
// The value is expected to have the JSON shape accepted by TestResult.UnmarshalJSON.
func DecodeTestResult(v any) (TestResult, error) {
	switch value := v.(type) {
	case TestResult:
		return value, nil
	case *TestResult:
		if value == nil {
			return TestResult{}, fmt.Errorf("%w: nil result", ErrInvalidOutcome)
		}
		return *value, nil
	}
	var result TestResult
	if err := decodeValue(v, &result); err != nil {
		return TestResult{}, err
	}
	return result, nil
}

// DecodeTestFailure converts a value produced by the sandbox into a TestFailure.
func DecodeTestFailure(v any) (*TestFailure, error) {
	var failure TestFailure
	if err := decodeValue(v, &failure); err != nil {
		return nil, err
	}
	return &failure, nil
}

func decodeValue(v any, out any) error {
	if v == nil {
		return fmt.Errorf("%w: no value", ErrInvalidOutcome)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutcome, err)
	}
	return json.Unmarshal(data, out)
}
