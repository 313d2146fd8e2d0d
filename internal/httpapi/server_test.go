package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cream-quant/synthcore/internal/config"
	"github.com/cream-quant/synthcore/internal/registry"
)

func newTestServer(t *testing.T) (*Server, *registry.Memory) {
	t.Helper()
	reg := registry.NewMemory()
	srv := New(config.Default(), reg, nil, prometheus.NewRegistry())
	t.Cleanup(srv.Close)
	return srv, reg
}

func validateBody(t *testing.T, indicatorID string) []byte {
	t.Helper()
	n := 60
	signals := make([]float64, n)
	returns := make([]float64, n)
	for i := 0; i < n; i++ {
		signals[i] = float64(i%5) - 2
		returns[i] = 0.001 * (float64(i%7) - 3)
	}
	raw, err := json.Marshal(map[string]interface{}{
		"indicator_id": indicatorID,
		"signals":      signals,
		"returns":      returns,
		"n_trials":     3,
	})
	require.NoError(t, err)
	return raw
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestValidateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/validate", bytes.NewReader(validateBody(t, "api-test")))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "api-test", report["indicator_id"])
	assert.Equal(t, float64(5), report["total_gates"])
	assert.NotEmpty(t, report["run_id"])
}

func TestValidateScreensAgainstRegistry(t *testing.T) {
	srv, reg := newTestServer(t)

	// Register a twin of the candidate so orthogonality must fail.
	var payload struct {
		Signals []float64 `json:"signals"`
	}
	body := validateBody(t, "twin-check")
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, reg.Put(context.Background(), "twin", payload.Signals))

	req := httptest.NewRequest(http.MethodPost, "/validate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var report map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	orth := report["orthogonality"].(map[string]interface{})
	assert.Equal(t, false, orth["passed"])
	assert.Equal(t, "twin", orth["correlated_with"])
}

func TestValidateRejectsInvalidInput(t *testing.T) {
	srv, _ := newTestServer(t)

	raw, _ := json.Marshal(map[string]interface{}{
		"indicator_id": "",
		"signals":      []float64{1, 2},
		"returns":      []float64{1, 2},
	})
	req := httptest.NewRequest(http.MethodPost, "/validate", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid input")
}

func TestValidateRejectsMalformedJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/validate", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	days := 45
	raw, _ := json.Marshal(map[string]interface{}{
		"regime_gap_detected":     true,
		"rolling_ic_30day":        0.01,
		"ic_decay_days":           7,
		"days_since_last_attempt": days,
		"active_indicator_count":  10,
		"max_indicator_capacity":  20,
	})
	req := httptest.NewRequest(http.MethodPost, "/trigger", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var decision map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, true, decision["should_trigger"])
}

func TestReportsWithoutArchive(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/x", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRateLimiting(t *testing.T) {
	cfg := config.Default()
	cfg.Server.RateLimitRPS = 1
	cfg.Server.RateLimitBurst = 1
	srv := New(cfg, registry.NewMemory(), nil, prometheus.NewRegistry())
	t.Cleanup(srv.Close)

	body := validateBody(t, "rl-test")
	first := httptest.NewRecorder()
	srv.Router().ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/validate", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	srv.Router().ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/validate", bytes.NewReader(body)))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestReportStreamReceivesEvents(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/reports"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Give the handler a beat to register the subscriber.
	time.Sleep(50 * time.Millisecond)

	resp, err := http.Post(ts.URL+"/validate", "application/json", bytes.NewReader(validateBody(t, "stream-test")))
	require.NoError(t, err)
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event map[string]interface{}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "stream-test", event["indicator_id"])
	assert.NotEmpty(t, event["summary"])
}
