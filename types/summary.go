package types

// FailureEntry pairs a failure with the test or step it belongs to.
type FailureEntry struct {
	Description FailureDescription
	Failure     *TestFailure
}

// UncaughtError is a script error reported outside any single test result.
type UncaughtError struct {
	Origin string
	Error  *JSError
}

// Summary aggregates the results of a run.
type Summary struct {
	Total          int
	Passed         int
	Failed         int
	Ignored        int
	PassedSteps    int
	FailedSteps    int
	IgnoredSteps   int
	FilteredOut    int
	Measured       int
	Failures       []FailureEntry
	UncaughtErrors []UncaughtError
}

// AddPlan accounts for a plan.
func (s *Summary) AddPlan(plan *Plan) {
	s.Total += plan.Total
	s.FilteredOut += plan.FilteredOut
}

// AddResult accounts for a test result.
func (s *Summary) AddResult(desc *TestDescription, result *TestResult) {
	switch result.Status {
	case TestStatusOk:
		s.Passed++
	case TestStatusIgnored:
		s.Ignored++
	case TestStatusFailed:
		s.Failed++
		if result.Failure != nil {
			s.Failures = append(s.Failures, FailureEntry{Description: desc.FailureDescription(), Failure: result.Failure})
		}
	case TestStatusCancelled:
		s.Failed++
	}
}

// AddStepResult accounts for a step result. Failures that only summarize
// nested step failures are counted but not listed, the nested step is.
func (s *Summary) AddStepResult(desc *StepDescription, result *StepResult) {
	switch result.Status {
	case TestStatusOk:
		s.PassedSteps++
	case TestStatusIgnored:
		s.IgnoredSteps++
	case TestStatusFailed:
		s.FailedSteps++
		if result.Failure != nil && result.Failure.Kind != FailureFailedSteps {
			s.Failures = append(s.Failures, FailureEntry{Description: desc.FailureDescription(), Failure: result.Failure})
		}
	}
}

// AddUncaughtError accounts for an uncaught error.
func (s *Summary) AddUncaughtError(origin string, err *JSError) {
	s.Failed++
	s.UncaughtErrors = append(s.UncaughtErrors, UncaughtError{Origin: origin, Error: err})
}

// HasFailed reports whether the summary contains any failure.
func (s *Summary) HasFailed() bool {
	return s.Failed > 0 || len(s.Failures) > 0
}
