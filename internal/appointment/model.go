package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/engineer-scheduling/internal/schedule"
)

type AppointmentStatus = schedule.Status

const (
	StatusPending   = schedule.StatusPending
	StatusOffered   = schedule.StatusOffered
	StatusConfirmed = schedule.StatusConfirmed
	StatusDeclined  = schedule.StatusDeclined
	StatusCancelled = schedule.StatusCancelled
	StatusComplete  = schedule.StatusComplete
)

// transitions lists the statuses each status may move to. Cancelled and
// complete are terminal.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusOffered, StatusConfirmed, StatusDeclined, StatusCancelled},
	StatusOffered:   {StatusConfirmed, StatusDeclined, StatusCancelled, StatusPending},
	StatusConfirmed: {StatusComplete, StatusCancelled},
	StatusDeclined:  {StatusPending},
}

func CanTransition(from, to AppointmentStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func ValidStatus(s AppointmentStatus) bool {
	switch s {
	case StatusPending, StatusOffered, StatusConfirmed, StatusDeclined, StatusCancelled, StatusComplete:
		return true
	}
	return false
}

type Engineer = schedule.Engineer

type Customer struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

type Address struct {
	Postcode string  `json:"postcode"`
	Line     *string `json:"line,omitempty"`
	Location *string `json:"location,omitempty"`
}

type Appointment struct {
	ID              uuid.UUID
	Date            schedule.CalendarDate
	Start           time.Time
	End             time.Time
	Status          AppointmentStatus
	EngineerID      *uuid.UUID
	Customer        Customer
	Address         Address
	AppointmentType *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Booked projects the record onto what the conflict resolver reads.
func (a Appointment) Booked() schedule.Booked {
	return schedule.Booked{
		ID:         a.ID,
		Start:      a.Start,
		End:        a.End,
		Status:     a.Status,
		EngineerID: a.EngineerID,
	}
}

// Interval recovers the calendar form of the stored instants. Stored instants
// are UTC literals, so they are read back in UTC.
func (a Appointment) Interval() schedule.Interval {
	return schedule.Interval{
		Date:      a.Date,
		StartTime: schedule.ClockOf(a.Start.UTC()),
		EndTime:   schedule.ClockOf(a.End.UTC()),
	}
}

func bookedOf(appts []Appointment) []schedule.Booked {
	out := make([]schedule.Booked, 0, len(appts))
	for _, a := range appts {
		out = append(out, a.Booked())
	}
	return out
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
