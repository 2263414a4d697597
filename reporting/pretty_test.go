package reporting

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

func prettyFixture() (*types.TestDescriptions, *types.StepDescriptions) {
	tests := types.NewTable[types.TestDescription]()
	tests.Insert(1, types.TestDescription{
		ID: 1, Name: "adds numbers", Origin: "file:///work/math_test.js",
		Location: types.TestLocation{FileName: "file:///work/math_test.js", LineNumber: 3, ColumnNumber: 6},
	})
	tests.Insert(2, types.TestDescription{
		ID: 2, Name: "divides", Origin: "file:///work/math_test.js",
		Location: types.TestLocation{FileName: "file:///work/math_test.js", LineNumber: 9, ColumnNumber: 6},
	})
	steps := types.NewTable[types.StepDescription]()
	steps.Insert(3, types.StepDescription{
		ID: 3, Name: "by zero", Origin: "file:///work/math_test.js", Level: 1, ParentID: 2, RootID: 2, RootName: "divides",
		Location: types.TestLocation{FileName: "file:///work/math_test.js", LineNumber: 10, ColumnNumber: 11},
	})
	return tests, steps
}

func TestPrettyReporter_Run(t *testing.T) {
	var buf bytes.Buffer
	rep := NewPrettyReporter(PrettyConfig{Writer: &buf, NoColor: true})
	tests, steps := prettyFixture()
	adds, _ := tests.Get(1)
	divides, _ := tests.Get(2)
	byZero, _ := steps.Get(3)

	rep.ReportPlan(&types.Plan{Origin: "file:///work/math_test.js", Total: 2})
	rep.ReportWait(&adds)
	rep.ReportOutput([]byte("\x1b[31mred\x1b[0m log"))
	ok := types.ResultOk
	rep.ReportResult(&adds, &ok, 4*time.Millisecond)

	rep.ReportWait(&divides)
	rep.ReportStepRegister(&byZero)
	rep.ReportStepWait(&byZero)
	stepFailure := types.FailedStep(types.JSErrorFailure(&types.JSError{Name: "RangeError", Message: "division by zero", Stack: "RangeError: division by zero\n    at math_test.js:11:13"}))
	rep.ReportStepResult(&byZero, &stepFailure, time.Millisecond, tests, steps)
	failed := types.FailedResult(types.FailedStepsFailure(1))
	rep.ReportResult(&divides, &failed, 2*time.Millisecond)
	rep.ReportCompleted()
	rep.ReportSummary(10*time.Millisecond, tests, steps)

	// Nothing reaches the writer before the flush.
	assert.Zero(t, buf.Len())
	require.NoError(t, rep.FlushReport(10*time.Millisecond, tests, steps))

	out := buf.String()
	assert.Contains(t, out, "running 2 tests from /work/math_test.js\n")
	assert.Contains(t, out, "adds numbers ...\n------- output -------\nred log\n----- output end -----\nadds numbers ... ok (4ms)\n")
	assert.NotContains(t, out, "\x1b[")
	assert.Contains(t, out, "divides ...\n├── by zero ... FAILED (1ms)\n    RangeError: division by zero\n")
	assert.Contains(t, out, "divides ... FAILED (2ms)\n")
	assert.Contains(t, out, "ERRORS")
	assert.Contains(t, out, "divides ... by zero => file:///work/math_test.js")
	assert.Contains(t, out, "at math_test.js:11:13")
	assert.Contains(t, out, "FAILED")
}

func TestPrettyReporter_HideStacktraces(t *testing.T) {
	var buf bytes.Buffer
	rep := NewPrettyReporter(PrettyConfig{Writer: &buf, NoColor: true, HideStacktraces: true})
	rep.ReportUncaughtError("file:///work/a.js", &types.JSError{Name: "Error", Message: "top", Stack: "Error: top\n    at a.js:1:7"})
	rep.ReportSummary(time.Millisecond, nil, nil)
	require.NoError(t, rep.FlushReport(0, nil, nil))

	out := buf.String()
	assert.Contains(t, out, "Uncaught error from /work/a.js FAILED")
	assert.Contains(t, out, "Error: top")
	assert.NotContains(t, out, "at a.js:1:7")
}

func TestPrettyReporter_Sigint(t *testing.T) {
	var buf bytes.Buffer
	rep := NewPrettyReporter(PrettyConfig{Writer: &buf, NoColor: true})
	tests, steps := prettyFixture()
	divides, _ := tests.Get(2)

	rep.ReportWait(&divides)
	rep.ReportSigint([]types.ID{2, 3}, tests, steps)
	require.NoError(t, rep.FlushReport(0, tests, steps))

	out := buf.String()
	assert.Contains(t, out, "SIGINT: the following tests were interrupted")
	assert.Contains(t, out, "divides => file:///work/math_test.js:9:6")
	assert.Contains(t, out, "divides ... by zero =>")
}

func TestPrettyReporter_SummaryResetsBetweenReports(t *testing.T) {
	var buf bytes.Buffer
	rep := NewPrettyReporter(PrettyConfig{Writer: &buf, NoColor: true})
	tests, _ := prettyFixture()
	adds, _ := tests.Get(1)

	failed := types.FailedResult(types.JSErrorFailure(&types.JSError{Message: "first file"}))
	rep.ReportResult(&adds, &failed, 0)
	rep.ReportSummary(0, tests, nil)
	require.NoError(t, rep.FlushReport(0, tests, nil))
	buf.Reset()

	ok := types.ResultOk
	rep.ReportResult(&adds, &ok, 0)
	rep.ReportSummary(0, tests, nil)
	require.NoError(t, rep.FlushReport(0, tests, nil))
	assert.NotContains(t, buf.String(), "first file")
	assert.NotContains(t, buf.String(), "ERRORS")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestPrettyReporter_FlushError(t *testing.T) {
	rep := NewPrettyReporter(PrettyConfig{Writer: failingWriter{}, NoColor: true})
	rep.ReportCompleted()
	rep.ReportSummary(0, nil, nil)
	err := rep.FlushReport(0, nil, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "closed pipe"))
}
