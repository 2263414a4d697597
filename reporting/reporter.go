// Package reporting folds test events into a verdict and renders them.
package reporting

import (
	"errors"
	"time"

	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

// Reporter presents the progress of a test run. The Aggregator calls it from a
// single goroutine, in event order.
type Reporter interface {
	ReportRegister(desc *types.TestDescription)
	ReportPlan(plan *types.Plan)
	ReportWait(desc *types.TestDescription)
	ReportOutput(data []byte)
	ReportSlow(desc *types.TestDescription, elapsed time.Duration)
	ReportResult(desc *types.TestDescription, result *types.TestResult, elapsed time.Duration)
	ReportUncaughtError(origin string, err *types.JSError)
	ReportStepRegister(desc *types.StepDescription)
	ReportStepWait(desc *types.StepDescription)
	ReportStepResult(desc *types.StepDescription, result *types.StepResult, elapsed time.Duration,
		tests *types.TestDescriptions, steps *types.StepDescriptions)
	ReportCompleted()
	ReportSigint(unresolved []types.ID, tests *types.TestDescriptions, steps *types.StepDescriptions)
	ReportSummary(elapsed time.Duration, tests *types.TestDescriptions, steps *types.StepDescriptions)
	FlushReport(elapsed time.Duration, tests *types.TestDescriptions, steps *types.StepDescriptions) error
}

var _ Reporter = (*MultiReporter)(nil)

// MultiReporter forwards every call to each of its reporters in order.
type MultiReporter struct {
	reporters []Reporter
}

// NewMultiReporter combines reporters. Nil entries are skipped.
func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	m := &MultiReporter{}
	for _, r := range reporters {
		if r != nil {
			m.reporters = append(m.reporters, r)
		}
	}
	return m
}

func (m *MultiReporter) ReportRegister(desc *types.TestDescription) {
	for _, r := range m.reporters {
		r.ReportRegister(desc)
	}
}

func (m *MultiReporter) ReportPlan(plan *types.Plan) {
	for _, r := range m.reporters {
		r.ReportPlan(plan)
	}
}

func (m *MultiReporter) ReportWait(desc *types.TestDescription) {
	for _, r := range m.reporters {
		r.ReportWait(desc)
	}
}

func (m *MultiReporter) ReportOutput(data []byte) {
	for _, r := range m.reporters {
		r.ReportOutput(data)
	}
}

func (m *MultiReporter) ReportSlow(desc *types.TestDescription, elapsed time.Duration) {
	for _, r := range m.reporters {
		r.ReportSlow(desc, elapsed)
	}
}

func (m *MultiReporter) ReportResult(desc *types.TestDescription, result *types.TestResult, elapsed time.Duration) {
	for _, r := range m.reporters {
		r.ReportResult(desc, result, elapsed)
	}
}

func (m *MultiReporter) ReportUncaughtError(origin string, err *types.JSError) {
	for _, r := range m.reporters {
		r.ReportUncaughtError(origin, err)
	}
}

func (m *MultiReporter) ReportStepRegister(desc *types.StepDescription) {
	for _, r := range m.reporters {
		r.ReportStepRegister(desc)
	}
}

func (m *MultiReporter) ReportStepWait(desc *types.StepDescription) {
	for _, r := range m.reporters {
		r.ReportStepWait(desc)
	}
}

func (m *MultiReporter) ReportStepResult(desc *types.StepDescription, result *types.StepResult, elapsed time.Duration,
	tests *types.TestDescriptions, steps *types.StepDescriptions) {
	for _, r := range m.reporters {
		r.ReportStepResult(desc, result, elapsed, tests, steps)
	}
}

func (m *MultiReporter) ReportCompleted() {
	for _, r := range m.reporters {
		r.ReportCompleted()
	}
}

func (m *MultiReporter) ReportSigint(unresolved []types.ID, tests *types.TestDescriptions, steps *types.StepDescriptions) {
	for _, r := range m.reporters {
		r.ReportSigint(unresolved, tests, steps)
	}
}

func (m *MultiReporter) ReportSummary(elapsed time.Duration, tests *types.TestDescriptions, steps *types.StepDescriptions) {
	for _, r := range m.reporters {
		r.ReportSummary(elapsed, tests, steps)
	}
}

// FlushReport flushes every reporter, even when an earlier one fails.
func (m *MultiReporter) FlushReport(elapsed time.Duration, tests *types.TestDescriptions, steps *types.StepDescriptions) error {
	var errs []error
	for _, r := range m.reporters {
		if err := r.FlushReport(elapsed, tests, steps); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
