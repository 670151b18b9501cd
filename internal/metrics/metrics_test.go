package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesDomainCounters(t *testing.T) {
	m := New()
	m.ObserveBooking(OutcomeCreated)
	m.ObserveBooking(OutcomeBusy)
	m.ObserveAvailability(true)
	m.ObserveCompleted(2)
	m.ObserveHTTPRequest(http.MethodGet, "/appointments/{id}", http.StatusOK, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, `appointment_bookings_total{outcome="created"} 1`)
	assert.Contains(t, text, `appointment_bookings_total{outcome="engineer_busy"} 1`)
	assert.Contains(t, text, `engineer_availability_checks_total{degraded="true"} 1`)
	assert.Contains(t, text, `appointments_completed_total 2`)
	assert.Contains(t, text, `http_requests_total{method="GET",route="/appointments/{id}",status="200"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBooking(OutcomeError)
		m.ObserveAvailability(false)
		m.ObserveCompleted(1)
		m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
