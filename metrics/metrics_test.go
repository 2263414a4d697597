package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "nil error", err: nil},
		{name: "simple error", err: errors.New("test error")},
		{name: "error with special chars", err: errors.New("test@error#123")},
		{name: "error with multiple spaces", err: errors.New("test   error")},
	}

	validLabelRegex := regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			if !validLabelRegex.MatchString(result) {
				t.Errorf("errToLabel() = %v, is not a valid Prometheus label", result)
			}
		})
	}
}

func TestRecordErrorDetails(t *testing.T) {
	before := testutil.ToFloat64(errorsTotal.WithLabelValues("load.no_such_file"))
	RecordErrorDetails("load", nil)
	RecordErrorDetails("load", errors.New("no such file"))
	assert.Equal(t, before+1, testutil.ToFloat64(errorsTotal.WithLabelValues("load.no_such_file")))
}

func TestRecordResult(t *testing.T) {
	RecordResult("run-results", "test", types.TestStatusOk, 10*time.Millisecond)
	RecordResult("run-results", "test", types.TestStatusOk, 20*time.Millisecond)
	RecordResult("run-results", "step", types.TestStatusFailed, time.Millisecond)
	RecordResult("run-results", "test", "bogus", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(testResultsTotal.WithLabelValues("run-results", "test", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(testResultsTotal.WithLabelValues("run-results", "step", "failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(testResultsTotal.WithLabelValues("run-results", "test", "bogus")))
}

func TestRecordReport(t *testing.T) {
	RecordReport("run-report", true, time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(reportResults.WithLabelValues("run-report", "fail")))
	assert.Equal(t, 0.0, testutil.ToFloat64(reportResults.WithLabelValues("run-report", "pass")))

	RecordReport("run-report", false, 2*time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(reportResults.WithLabelValues("run-report", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reportResults.WithLabelValues("run-report", "pass")))
	assert.Equal(t, 2.0, testutil.ToFloat64(reportDuration.WithLabelValues("run-report")))
}

func TestRecordCounters(t *testing.T) {
	RecordUncaughtError("run-counters")
	RecordSlow("run-counters")
	RecordSlow("run-counters")
	assert.Equal(t, 1.0, testutil.ToFloat64(uncaughtErrorsTotal.WithLabelValues("run-counters")))
	assert.Equal(t, 2.0, testutil.ToFloat64(slowTestsTotal.WithLabelValues("run-counters")))
}
