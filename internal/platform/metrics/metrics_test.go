package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersEverything(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	require.NotNil(t, m.HTTP)
	require.NotNil(t, m.Diagnosis)
	require.NotNil(t, m.Consultation)
	require.NotNil(t, m.Rules)
}

func TestNewWithRegistry_DuplicateRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewWithRegistry(registry)
	require.NoError(t, err)

	_, err = NewWithRegistry(registry)
	assert.Error(t, err)
}

func TestDiagnosisMetrics_Record(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewDiagnosisMetrics(registry)
	require.NoError(t, err)

	m.RecordOutcome(OutcomeMatch, 3*time.Millisecond)
	m.RecordOutcome(OutcomeMatch, time.Millisecond)
	m.RecordOutcome(OutcomeNoMatch, time.Millisecond)
	m.RecordConfidence(80)
	m.RecordScoring(12, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Outcomes.WithLabelValues(OutcomeMatch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues(OutcomeNoMatch)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Outcomes.WithLabelValues(OutcomeError)))
}

func TestNilReceivers(t *testing.T) {
	var d *DiagnosisMetrics
	var c *ConsultationMetrics
	var r *RuleMetrics

	assert.NotPanics(t, func() {
		d.RecordOutcome(OutcomeError, time.Second)
		d.RecordConfidence(50)
		d.RecordScoring(1, 1)
		c.RecordWrite("record", "ok")
		r.RecordChange("create", "ok")
	})
}

func TestRuleAndConsultationMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	rules, err := NewRuleMetrics(registry)
	require.NoError(t, err)
	consults, err := NewConsultationMetrics(registry)
	require.NoError(t, err)

	rules.RecordChange("delete", "not_found")
	consults.RecordWrite("record", "error")

	assert.Equal(t, 1.0, testutil.ToFloat64(rules.Changes.WithLabelValues("delete", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(consults.Writes.WithLabelValues("record", "error")))
}

func TestHTTPMiddlewareAndHandler(t *testing.T) {
	m, err := NewWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)

	e := echo.New()
	e.Use(m.HTTP.Middleware())
	e.GET("/api/v1/rules/:code", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "rule not found")
	})
	e.GET("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rules/R999", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTP.RequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/rules/:code", "404")))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "gastrodx_http_requests_total"))
}
