package scripttest

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-scripttest/exitcodes"
	"github.com/ethereum-optimism/infra/op-scripttest/reporting"
)

func testConfig(files ...string) *Config {
	return &Config{
		Files:     files,
		RunOnce:   true,
		CacheSize: 8,
		Log:       log.NewLogger(log.DiscardHandler()),
	}
}

func newTestTester(t *testing.T, cfg *Config, shutdown func(error)) (*tester, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	reporter := reporting.NewPrettyReporter(reporting.PrettyConfig{Writer: &out, NoColor: true})
	tr, err := newTester(cfg, "test", shutdown, reporter, func(int) {})
	require.NoError(t, err)
	return tr, &out
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "test", func(error) {})
	require.Error(t, err)

	cfg := testConfig("/abs/a_test.js")
	cfg.Filter = "/[/"
	_, err = New(cfg, "test", func(error) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter")
}

func TestTester_RunOncePasses(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "passing_test.js", passingFile)
	shutdown := make(chan error, 1)
	tr, out := newTestTester(t, testConfig(path), func(err error) { shutdown <- err })

	require.NoError(t, tr.Start(context.Background()))
	select {
	case err := <-shutdown:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("shutdown callback not called")
	}
	require.NotNil(t, tr.Result())
	assert.NoError(t, tr.Result().Err())
	assert.Contains(t, out.String(), "adds ... ok")
	assert.Equal(t, exitcodes.Success, ExitCode(nil))
}

func TestTester_RunOnceFails(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "failing_test.js", failingFile)
	tr, _ := newTestTester(t, testConfig(path), func(error) {
		t.Error("shutdown callback must not be called on failure")
	})

	err := tr.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.ErrorIs(t, err, reporting.ErrTestsFailed)
	assert.Equal(t, exitcodes.TestFailure, ExitCode(err))
}

func TestTester_RunOnceWithOnly(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "only_test.js", `
Test.test("focused", { only: true }, () => {});
Test.test("skipped", () => { throw new Error("must not run"); });
`)
	tr, out := newTestTester(t, testConfig(path), func(error) {
		t.Error("shutdown callback must not be called when only was used")
	})

	err := tr.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, reporting.ErrOnlyUsed)
	assert.Equal(t, exitcodes.TestFailure, ExitCode(err))
	assert.Contains(t, out.String(), "running 1 test from")
	assert.NotContains(t, out.String(), "must not run")
}

func TestTester_RuntimeError(t *testing.T) {
	tr, _ := newTestTester(t, testConfig(filepath.Join(t.TempDir(), "missing_test.js")), func(error) {})

	err := tr.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))
	assert.Equal(t, exitcodes.RuntimeErr, ExitCode(err))
	assert.Nil(t, tr.Result())
}

func TestTester_Continuous(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "passing_test.js", passingFile)
	cfg := testConfig(path)
	cfg.RunOnce = false
	cfg.RunInterval = 20 * time.Millisecond
	tr, _ := newTestTester(t, cfg, func(error) {
		t.Error("continuous mode must not shut down on its own")
	})

	require.NoError(t, tr.Start(context.Background()))
	first := tr.Result()
	require.NotNil(t, first)
	assert.False(t, tr.Stopped())

	require.Eventually(t, func() bool {
		return tr.Result().RunID != first.RunID
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.Stop(ctx))
	assert.True(t, tr.Stopped())
}
