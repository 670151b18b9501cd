package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEngineerNotFound    = errors.New("engineer not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrStaleWrite          = errors.New("appointment was changed by someone else")
	ErrEngineerBusy        = errors.New("engineer already has an overlapping appointment")
)

// Repository contains all DB interactions needed by the service.
// Implementations scope every call to a single tenant.
type Repository interface {
	ListEngineers(ctx context.Context) ([]Engineer, error)
	GetEngineerByID(ctx context.Context, id uuid.UUID) (*Engineer, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// For conflict checks: everything whose [start,end) touches [from,to)
	ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)

	// Creation and updates
	CreateAppointments(ctx context.Context, appts []Appointment) ([]Appointment, error)
	UpdateAppointment(ctx context.Context, appt Appointment, expectedUpdatedAt time.Time) (*Appointment, error)

	// Completion worker
	FindElapsedConfirmed(ctx context.Context, now time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
