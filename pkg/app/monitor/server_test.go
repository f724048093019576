package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/chainsafe/switchly-settlement/pkg/config"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error { return m.err }

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func testConfig(metrics bool) *config.Config {
	return &config.Config{Monitoring: config.MonitoringConfig{Enabled: metrics, MetricsPath: "/metrics"}}
}

func TestRouter_HealthAndReady(t *testing.T) {
	store := &mockPinger{}
	ready := newReadiness(store)
	router := newRouter(testConfig(true), nil, nil, ready, zap.NewNop())

	rec := get(router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = get(router, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready.markReady()
	rec = get(router, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "READY", rec.Body.String())

	store.err = errors.New("connection refused")
	rec = get(router, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	router := newRouter(testConfig(true), nil, nil, newReadiness(nil), zap.NewNop())
	rec := get(router, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "settlement_sessions_active")

	router = newRouter(testConfig(false), nil, nil, newReadiness(nil), zap.NewNop())
	rec = get(router, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadiness_NilStore(t *testing.T) {
	r := newReadiness(nil)
	assert.ErrorIs(t, r.check(context.Background()), errNotReady)
	r.markReady()
	assert.NoError(t, r.check(context.Background()))
}

func TestRun_NilConfig(t *testing.T) {
	assert.Error(t, NewServer(nil).Run())
}
