package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-scripttest/metrics"
)

func TestHealthzServer(t *testing.T) {
	svc := New(Config{Log: log.NewLogger(log.DiscardHandler())})
	srv := httptest.NewServer(svc.Healthz.Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dashboard.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsServer(t *testing.T) {
	metrics.RecordError("service test")
	svc := New(Config{Log: log.NewLogger(log.DiscardHandler())})
	srv := httptest.NewServer(svc.Metrics.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "scripttest_errors_total")
}

func TestService_ShutdownWithoutStart(t *testing.T) {
	svc := New(Config{Log: log.NewLogger(log.DiscardHandler())})
	svc.Shutdown()
}
