package reporting

import (
	"time"

	"github.com/ethereum-optimism/infra/op-scripttest/metrics"
	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

var _ Reporter = (*MetricsReporter)(nil)

// MetricsReporter exports test results as Prometheus metrics labelled with the run id.
type MetricsReporter struct {
	runID  string
	failed bool
}

// NewMetricsReporter creates a reporter for the invocation identified by runID.
func NewMetricsReporter(runID string) *MetricsReporter {
	return &MetricsReporter{runID: runID}
}

func (m *MetricsReporter) ReportRegister(*types.TestDescription) {}
func (m *MetricsReporter) ReportPlan(*types.Plan)                {}
func (m *MetricsReporter) ReportWait(*types.TestDescription)     {}
func (m *MetricsReporter) ReportOutput([]byte)                   {}

func (m *MetricsReporter) ReportSlow(*types.TestDescription, time.Duration) {
	metrics.RecordSlow(m.runID)
}

func (m *MetricsReporter) ReportResult(_ *types.TestDescription, result *types.TestResult, elapsed time.Duration) {
	if result.IsFailed() {
		m.failed = true
	}
	metrics.RecordResult(m.runID, "test", result.Status, elapsed)
}

func (m *MetricsReporter) ReportUncaughtError(string, *types.JSError) {
	m.failed = true
	metrics.RecordUncaughtError(m.runID)
}

func (m *MetricsReporter) ReportStepRegister(*types.StepDescription) {}
func (m *MetricsReporter) ReportStepWait(*types.StepDescription)     {}

func (m *MetricsReporter) ReportStepResult(_ *types.StepDescription, result *types.StepResult, elapsed time.Duration,
	_ *types.TestDescriptions, _ *types.StepDescriptions) {
	metrics.RecordResult(m.runID, "step", result.Status, elapsed)
}

func (m *MetricsReporter) ReportCompleted() {}

func (m *MetricsReporter) ReportSigint([]types.ID, *types.TestDescriptions, *types.StepDescriptions) {
	metrics.RecordError("interrupted")
}

func (m *MetricsReporter) ReportSummary(elapsed time.Duration, _ *types.TestDescriptions, _ *types.StepDescriptions) {
	metrics.RecordReport(m.runID, m.failed, elapsed)
	m.failed = false
}

func (m *MetricsReporter) FlushReport(time.Duration, *types.TestDescriptions, *types.StepDescriptions) error {
	return nil
}
