package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldline/engineer-scheduling/internal/appointment"
	"github.com/fieldline/engineer-scheduling/internal/metrics"
	"github.com/fieldline/engineer-scheduling/internal/schedule"
)

type AppointmentService interface {
	PreviewMerge(slots []schedule.TimeSlot) ([]schedule.Interval, error)
	Book(ctx context.Context, req appointment.BookingRequest) ([]appointment.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	List(ctx context.Context, from, to time.Time) ([]appointment.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, patch appointment.AppointmentPatch) (*appointment.Appointment, error)
	Engineers(ctx context.Context) ([]appointment.Engineer, error)
	Availability(ctx context.Context, q appointment.AvailabilityQuery) (*appointment.AvailabilityResult, error)
}

type RouterConfig struct {
	Service  AppointmentService
	Postgres PingFunc
	Redis    PingFunc
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := validator.New()

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(LoggingMiddleware(logger))
	r.Use(MetricsMiddleware(cfg.Metrics))

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Post("/slots/merge", mergeSlotsHandler(cfg.Service, validate))

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentsHandler(cfg.Service, validate))
		r.Get("/", listAppointmentsHandler(cfg.Service))
		r.Get("/{id}", getAppointmentHandler(cfg.Service))
		r.Patch("/{id}", updateAppointmentHandler(cfg.Service, validate))
	})

	r.Route("/engineers", func(r chi.Router) {
		r.Get("/", listEngineersHandler(cfg.Service))
		r.Get("/availability", availabilityHandler(cfg.Service))
	})

	return r
}
