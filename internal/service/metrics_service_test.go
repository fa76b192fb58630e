package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m *MetricsService, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue metrics
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMetricsServiceRecordsDomainCounters(t *testing.T) {
	m := NewMetricsService()

	m.RecordDispatchDecision(DispatchOutcomeBlocked)
	m.RecordDispatchDecision(DispatchOutcomeBlocked)
	m.RecordDispatchDecision(DispatchOutcomeOverride)
	m.RecordSnapshot("dispatch", "PASS")
	m.RecordCertificationExpired(3)
	m.RecordCertificationExpired(0)
	m.ObserveHTTPRequest(http.MethodGet, "/verify/:token", http.StatusOK, 5*time.Millisecond)

	assert.Equal(t, 2.0, counterValue(t, m, "dispatch_gate_decisions_total", map[string]string{"outcome": "blocked"}))
	assert.Equal(t, 1.0, counterValue(t, m, "dispatch_gate_decisions_total", map[string]string{"outcome": "override"}))
	assert.Equal(t, 1.0, counterValue(t, m, "compliance_snapshots_total", map[string]string{"source": "dispatch", "status": "PASS"}))
	assert.Equal(t, 3.0, counterValue(t, m, "certifications_expired_total", nil))
	assert.Equal(t, 1.0, counterValue(t, m, "http_requests_total", map[string]string{"method": "GET", "status": "200"}))
}

func TestMetricsServiceHandlerExposesRegistry(t *testing.T) {
	m := NewMetricsService()
	m.RecordVerification("found")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `verification_lookups_total{result="found"} 1`))
}

func TestMetricsServiceHandlerExposesSweepCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveSweep(2 * time.Second)
	m.RecordCertificationExpired(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "compliance_sweep_duration_seconds_count 1")
	assert.Contains(t, rec.Body.String(), "certifications_expired_total 2")
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordDispatchDecision(DispatchOutcomeClean)
	m.ObserveSweep(time.Second)
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
