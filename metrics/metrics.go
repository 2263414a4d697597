package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

const (
	MetricsNamespace = "scripttest"
)

var (
	Debug                bool = true
	validResults              = []types.TestStatus{types.TestStatusOk, types.TestStatusIgnored, types.TestStatusFailed, types.TestStatusCancelled}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	testResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "test_results_total",
		Help:      "Count of test results",
	}, []string{
		"run_id",
		"kind",
		"result",
	})

	testDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "test_duration_seconds",
		Help:      "Duration of test bodies",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{
		"run_id",
	})

	uncaughtErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "uncaught_errors_total",
		Help:      "Count of uncaught script errors",
	}, []string{
		"run_id",
	})

	slowTestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "slow_notifications_total",
		Help:      "Count of slow test notifications",
	}, []string{
		"run_id",
	})

	reportResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "report_results",
		Help:      "Outcome of the latest report of each run",
	}, []string{
		"run_id",
		"result",
	})

	reportDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "report_duration_seconds",
		Help:      "Duration of the latest report",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordResult counts a test or step result. kind is "test" or "step".
func RecordResult(runID string, kind string, result types.TestStatus, elapsed time.Duration) {
	if !isValidResult(result) {
		log.Error("RecordResult - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "test_results_total",
			"run_id", runID,
			"kind", kind,
			"result", result)
	}
	testResultsTotal.WithLabelValues(runID, kind, string(result)).Inc()
	if kind == "test" && result != types.TestStatusIgnored && result != types.TestStatusCancelled {
		testDuration.WithLabelValues(runID).Observe(elapsed.Seconds())
	}
}

func RecordUncaughtError(runID string) {
	uncaughtErrorsTotal.WithLabelValues(runID).Inc()
}

func RecordSlow(runID string) {
	slowTestsTotal.WithLabelValues(runID).Inc()
}

// RecordReport records the outcome of a finished report.
func RecordReport(runID string, failed bool, duration time.Duration) {
	result, other := "pass", "fail"
	if failed {
		result, other = other, result
	}
	reportResults.WithLabelValues(runID, result).Set(1)
	reportResults.WithLabelValues(runID, other).Set(0)
	reportDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func isValidResult(result types.TestStatus) bool {
	return slices.Contains(validResults, result)
}
