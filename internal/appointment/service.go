package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldline/engineer-scheduling/internal/metrics"
	redisclient "github.com/fieldline/engineer-scheduling/internal/redis"
	"github.com/fieldline/engineer-scheduling/internal/schedule"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentUpdated   = "APPOINTMENT_UPDATED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
)

const degradedWarning = "existing appointments could not be loaded; availability may under-report conflicts"

var (
	ErrNoSlots           = errors.New("at least one slot is required")
	ErrCalendarLocked    = errors.New("engineer calendar is being changed, please retry")
	ErrInvalidStatus     = errors.New("unknown appointment status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidRange      = errors.New("range end must be after start")
)

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		locker:  locker,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

type BookingRequest struct {
	Slots           []schedule.TimeSlot
	EngineerID      *uuid.UUID
	Customer        Customer
	Address         Address
	AppointmentType *string
}

type AvailabilityQuery struct {
	Interval             schedule.Interval
	ExcludeAppointmentID *uuid.UUID
}

type AvailabilityResult struct {
	Interval  schedule.Interval
	Engineers []schedule.EngineerAvailability
	Degraded  bool
	Warning   string
}

// AppointmentPatch carries the fields an edit may change. Nil means unchanged.
type AppointmentPatch struct {
	Date             *schedule.CalendarDate
	StartTime        *schedule.LocalTime
	EndTime          *schedule.LocalTime
	Status           *AppointmentStatus
	EngineerID       *uuid.UUID
	UnassignEngineer bool
	Customer         *Customer
	Address          *Address
	AppointmentType  *string
}

// PreviewMerge shows how many appointments a selection would produce without writing anything.
func (s *Service) PreviewMerge(slots []schedule.TimeSlot) ([]schedule.Interval, error) {
	if err := schedule.ValidateSlots(slots); err != nil {
		return nil, err
	}
	return schedule.MergeSlots(slots), nil
}

// Book merges the selected slots and creates one pending appointment per merged interval.
// When an engineer is named, the engineer's calendar days are locked and re-read
// so two concurrent bookings cannot both pass the busy check.
func (s *Service) Book(ctx context.Context, req BookingRequest) ([]Appointment, error) {
	created, err := s.book(ctx, req)
	s.metrics.ObserveBooking(bookingOutcome(err))
	return created, err
}

func (s *Service) book(ctx context.Context, req BookingRequest) ([]Appointment, error) {
	if len(req.Slots) == 0 {
		return nil, ErrNoSlots
	}
	if err := schedule.ValidateSlots(req.Slots); err != nil {
		return nil, err
	}

	intervals := schedule.MergeSlots(req.Slots)
	records := make([]Appointment, 0, len(intervals))
	for _, iv := range intervals {
		start, end := iv.Bounds()
		records = append(records, Appointment{
			ID:              uuid.New(),
			Date:            iv.Date,
			Start:           start,
			End:             end,
			Status:          StatusPending,
			EngineerID:      req.EngineerID,
			Customer:        req.Customer,
			Address:         req.Address,
			AppointmentType: req.AppointmentType,
		})
	}

	if req.EngineerID == nil {
		return s.create(ctx, records)
	}

	engineerID := *req.EngineerID
	if _, err := s.repo.GetEngineerByID(ctx, engineerID); err != nil {
		if errors.Is(err, ErrEngineerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load engineer: %w", err)
	}

	var created []Appointment
	err := s.withEngineerLock(ctx, engineerID, datesOf(intervals), func(lockCtx context.Context) error {
		from, to := schedule.Window(intervals)
		existing, err := s.repo.ListAppointmentsBetween(lockCtx, from, to)
		if err != nil {
			return fmt.Errorf("load existing appointments: %w", err)
		}
		if schedule.IsEngineerBusy(engineerID, intervals, bookedOf(existing)) {
			return ErrEngineerBusy
		}

		created, err = s.create(lockCtx, records)
		return err
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (s *Service) create(ctx context.Context, records []Appointment) ([]Appointment, error) {
	created, err := s.repo.CreateAppointments(ctx, records)
	if err != nil {
		if errors.Is(err, ErrEngineerBusy) {
			return nil, err
		}
		return nil, fmt.Errorf("create appointments: %w", err)
	}

	for _, a := range created {
		payload := map[string]any{
			"date":   a.Date.String(),
			"start":  a.Start,
			"end":    a.End,
			"status": a.Status,
		}
		if a.EngineerID != nil {
			payload["engineer_id"] = a.EngineerID.String()
		}
		s.logEvent(ctx, a.ID, EventAppointmentCreated, payload)
	}

	s.logger.Info("appointments booked", zap.Int("count", len(created)))
	return created, nil
}

// Availability labels every engineer on the roster as available or busy for the
// interval. A failed appointment read degrades to "nobody busy" with a warning
// instead of failing the request.
func (s *Service) Availability(ctx context.Context, q AvailabilityQuery) (*AvailabilityResult, error) {
	if !q.Interval.StartTime.Before(q.Interval.EndTime) {
		return nil, fmt.Errorf("%w: interval %s-%s", schedule.ErrInvalidSlot, q.Interval.StartTime, q.Interval.EndTime)
	}

	roster, err := s.repo.ListEngineers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list engineers: %w", err)
	}

	result := &AvailabilityResult{Interval: q.Interval}

	start, end := q.Interval.Bounds()
	existing, err := s.repo.ListAppointmentsBetween(ctx, start, end)
	if err != nil {
		s.logger.Warn("availability computed without existing appointments",
			zap.String("date", q.Interval.Date.String()),
			zap.Error(err),
		)
		existing = nil
		result.Degraded = true
		result.Warning = degradedWarning
	}

	busy := schedule.ComputeBusyEngineers(q.Interval, bookedOf(existing), schedule.BusyOptions{
		ExcludeAppointmentID: q.ExcludeAppointmentID,
	})
	result.Engineers = schedule.Classify(roster, busy)

	s.metrics.ObserveAvailability(result.Degraded)
	return result, nil
}

// Update applies an edit. If the result holds an engineer's time, the change is
// made under that engineer's calendar lock and checked against every other
// appointment; the record being edited never conflicts with itself.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch AppointmentPatch) (*Appointment, error) {
	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	next, err := s.applyPatch(ctx, *current, patch)
	if err != nil {
		return nil, err
	}

	write := func(writeCtx context.Context) (*Appointment, error) {
		updated, err := s.repo.UpdateAppointment(writeCtx, next, current.UpdatedAt)
		if err != nil {
			if errors.Is(err, ErrStaleWrite) || errors.Is(err, ErrEngineerBusy) || errors.Is(err, ErrAppointmentNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("update appointment: %w", err)
		}
		return updated, nil
	}

	var updated *Appointment
	if next.Status.Blocks() && next.EngineerID != nil {
		iv := next.Interval()
		err = s.withEngineerLock(ctx, *next.EngineerID, []schedule.CalendarDate{iv.Date}, func(lockCtx context.Context) error {
			existing, err := s.repo.ListAppointmentsBetween(lockCtx, next.Start, next.End)
			if err != nil {
				return fmt.Errorf("load existing appointments: %w", err)
			}
			busy := schedule.ComputeBusyEngineers(iv, bookedOf(existing), schedule.BusyOptions{ExcludeAppointmentID: &id})
			if busy.Has(*next.EngineerID) {
				return ErrEngineerBusy
			}

			updated, err = write(lockCtx)
			return err
		})
	} else {
		updated, err = write(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentUpdated, changes(*current, *updated))
	return updated, nil
}

func (s *Service) applyPatch(ctx context.Context, a Appointment, patch AppointmentPatch) (Appointment, error) {
	iv := a.Interval()
	if patch.Date != nil {
		iv.Date = *patch.Date
	}
	if patch.StartTime != nil {
		iv.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		iv.EndTime = *patch.EndTime
	}
	if !iv.StartTime.Before(iv.EndTime) {
		return a, fmt.Errorf("%w: %s starts at %s but ends at %s", schedule.ErrInvalidSlot, iv.Date, iv.StartTime, iv.EndTime)
	}
	a.Date = iv.Date
	a.Start, a.End = iv.Bounds()

	if patch.Status != nil {
		if !ValidStatus(*patch.Status) {
			return a, fmt.Errorf("%w: %q", ErrInvalidStatus, *patch.Status)
		}
		if !CanTransition(a.Status, *patch.Status) {
			return a, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, *patch.Status)
		}
		a.Status = *patch.Status
	}

	switch {
	case patch.UnassignEngineer:
		a.EngineerID = nil
	case patch.EngineerID != nil:
		if _, err := s.repo.GetEngineerByID(ctx, *patch.EngineerID); err != nil {
			if errors.Is(err, ErrEngineerNotFound) {
				return a, err
			}
			return a, fmt.Errorf("load engineer: %w", err)
		}
		engineerID := *patch.EngineerID
		a.EngineerID = &engineerID
	}

	if patch.Customer != nil {
		a.Customer = *patch.Customer
	}
	if patch.Address != nil {
		a.Address = *patch.Address
	}
	if patch.AppointmentType != nil {
		a.AppointmentType = patch.AppointmentType
	}

	return a, nil
}

// Get retrieves one appointment by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// List returns every appointment intersecting [from, to)
func (s *Service) List(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	if !to.After(from) {
		return nil, ErrInvalidRange
	}
	appts, err := s.repo.ListAppointmentsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

func (s *Service) Engineers(ctx context.Context) ([]Engineer, error) {
	roster, err := s.repo.ListEngineers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list engineers: %w", err)
	}
	return roster, nil
}

// CompleteElapsed is intended to be called by the worker periodically.
// It returns how many appointments moved to complete.
func (s *Service) CompleteElapsed(ctx context.Context) (int, error) {
	now := s.now()
	elapsed, err := s.repo.FindElapsedConfirmed(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find elapsed confirmed appointments: %w", err)
	}

	done := 0
	for _, appt := range elapsed {
		next := appt
		next.Status = StatusComplete

		_, err := s.repo.UpdateAppointment(ctx, next, appt.UpdatedAt)
		if err != nil {
			s.logger.Warn("failed to complete appointment", zap.Stringer("appointment_id", appt.ID), zap.Error(err))
			continue
		}
		s.logEvent(ctx, appt.ID, EventAppointmentCompleted, map[string]any{
			"reason": "worker",
		})
		done++
	}

	s.metrics.ObserveCompleted(done)
	return done, nil
}

func (s *Service) withEngineerLock(ctx context.Context, engineerID uuid.UUID, dates []schedule.CalendarDate, fn func(ctx context.Context) error) error {
	err := s.locker.WithEngineerLock(ctx, engineerID, dates, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrCalendarLocked
	}
	return err
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to insert event log",
			zap.String("event", eventType),
			zap.Stringer("appointment_id", appointmentID),
			zap.Error(err),
		)
	}
}

func datesOf(intervals []schedule.Interval) []schedule.CalendarDate {
	dates := make([]schedule.CalendarDate, 0, len(intervals))
	for _, iv := range intervals {
		dates = append(dates, iv.Date)
	}
	return dates
}

func changes(before, after Appointment) map[string]any {
	diff := map[string]any{}
	if before.Status != after.Status {
		diff["status"] = map[string]any{"from": before.Status, "to": after.Status}
	}
	if !before.Start.Equal(after.Start) || !before.End.Equal(after.End) {
		diff["start"] = after.Start
		diff["end"] = after.End
	}
	if !sameEngineer(before.EngineerID, after.EngineerID) {
		diff["engineer_id"] = after.EngineerID
	}
	return diff
}

func sameEngineer(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeCreated
	case errors.Is(err, ErrEngineerBusy):
		return metrics.OutcomeBusy
	case errors.Is(err, ErrCalendarLocked):
		return metrics.OutcomeLockHeld
	case errors.Is(err, ErrNoSlots), errors.Is(err, schedule.ErrInvalidSlot), errors.Is(err, ErrEngineerNotFound):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}
