package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/engineer-scheduling/internal/appointment"
	"github.com/fieldline/engineer-scheduling/internal/schedule"
)

type MergeSlotsRequest struct {
	Slots []schedule.TimeSlot `json:"slots" validate:"required,min=1"`
}

type MergeSlotsResponse struct {
	Intervals []schedule.Interval `json:"intervals"`
	Count     int                 `json:"count"`
}

type CustomerPayload struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

type AddressPayload struct {
	Postcode string  `json:"postcode" validate:"required,max=16"`
	Line     *string `json:"line,omitempty"`
	Location *string `json:"location,omitempty"`
}

type CreateAppointmentsRequest struct {
	Slots           []schedule.TimeSlot `json:"slots" validate:"required,min=1"`
	EngineerID      *string             `json:"engineer_id,omitempty" validate:"omitempty,uuid"`
	Customer        CustomerPayload     `json:"customer"`
	Address         AddressPayload      `json:"address"`
	AppointmentType *string             `json:"appointment_type,omitempty" validate:"omitempty,max=64"`
}

type UpdateAppointmentRequest struct {
	Date             *schedule.CalendarDate `json:"date,omitempty"`
	StartTime        *schedule.LocalTime    `json:"start_time,omitempty"`
	EndTime          *schedule.LocalTime    `json:"end_time,omitempty"`
	Status           *string                `json:"status,omitempty" validate:"omitempty,oneof=pending offered confirmed declined cancelled complete"`
	EngineerID       *string                `json:"engineer_id,omitempty" validate:"omitempty,uuid"`
	UnassignEngineer bool                   `json:"unassign_engineer,omitempty"`
	Customer         *CustomerPayload       `json:"customer,omitempty"`
	Address          *AddressPayload        `json:"address,omitempty"`
	AppointmentType  *string                `json:"appointment_type,omitempty" validate:"omitempty,max=64"`
}

type AppointmentResponse struct {
	ID              uuid.UUID             `json:"id"`
	Date            schedule.CalendarDate `json:"date"`
	StartTime       schedule.LocalTime    `json:"start_time"`
	EndTime         schedule.LocalTime    `json:"end_time"`
	Start           time.Time             `json:"start"`
	End             time.Time             `json:"end"`
	Status          string                `json:"status"`
	EngineerID      *uuid.UUID            `json:"engineer_id,omitempty"`
	Customer        appointment.Customer  `json:"customer"`
	Address         appointment.Address   `json:"address"`
	AppointmentType *string               `json:"appointment_type,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

type AvailabilityResponse struct {
	Interval  schedule.Interval                `json:"interval"`
	Engineers []schedule.EngineerAvailability `json:"engineers"`
	Degraded  bool                             `json:"degraded"`
	Warning   string                           `json:"warning,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	iv := a.Interval()
	return AppointmentResponse{
		ID:              a.ID,
		Date:            a.Date,
		StartTime:       iv.StartTime,
		EndTime:         iv.EndTime,
		Start:           a.Start,
		End:             a.End,
		Status:          string(a.Status),
		EngineerID:      a.EngineerID,
		Customer:        a.Customer,
		Address:         a.Address,
		AppointmentType: a.AppointmentType,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toAppointmentResponses(appts []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

func (c CustomerPayload) toModel() appointment.Customer {
	return appointment.Customer{Name: c.Name, Email: c.Email, Phone: c.Phone}
}

func (a AddressPayload) toModel() appointment.Address {
	return appointment.Address{Postcode: a.Postcode, Line: a.Line, Location: a.Location}
}
