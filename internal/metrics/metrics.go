package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	bookings        *prometheus.CounterVec
	availability    *prometheus.CounterVec
	completed       prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	bookings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appointment_bookings_total",
		Help: "Booking attempts by outcome",
	}, []string{"outcome"})

	availability := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engineer_availability_checks_total",
		Help: "Availability computations, split by whether appointment data was missing",
	}, []string{"degraded"})

	completed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "appointments_completed_total",
		Help: "Confirmed appointments moved to complete by the worker",
	})

	registry.MustRegister(
		requestDuration, requestTotal, bookings, availability, completed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		bookings:        bookings,
		availability:    availability,
		completed:       completed,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, route, code).Inc()
}

// Booking outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeBusy     = "engineer_busy"
	OutcomeLockHeld = "lock_held"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

func (m *Metrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveAvailability(degraded bool) {
	if m == nil {
		return
	}
	m.availability.WithLabelValues(strconv.FormatBool(degraded)).Inc()
}

func (m *Metrics) ObserveCompleted(n int) {
	if m == nil {
		return
	}
	m.completed.Add(float64(n))
}
