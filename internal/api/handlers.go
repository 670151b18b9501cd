package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fieldline/engineer-scheduling/internal/appointment"
	"github.com/fieldline/engineer-scheduling/internal/schedule"
)

func mergeSlotsHandler(svc AppointmentService, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MergeSlotsRequest
		if !decodeAndValidate(w, r, validate, &req) {
			return
		}

		intervals, err := svc.PreviewMerge(req.Slots)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, MergeSlotsResponse{Intervals: intervals, Count: len(intervals)})
	}
}

func createAppointmentsHandler(svc AppointmentService, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentsRequest
		if !decodeAndValidate(w, r, validate, &req) {
			return
		}

		booking := appointment.BookingRequest{
			Slots:           req.Slots,
			Customer:        req.Customer.toModel(),
			Address:         req.Address.toModel(),
			AppointmentType: req.AppointmentType,
		}
		if req.EngineerID != nil {
			id := uuid.MustParse(*req.EngineerID)
			booking.EngineerID = &id
		}

		created, err := svc.Book(r.Context(), booking)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponses(created))
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

// listAppointmentsHandler takes inclusive ?from= and ?to= calendar dates; to defaults to from.
func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := schedule.ParseCalendarDate(r.URL.Query().Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", err.Error())
			return
		}
		to := from
		if raw := r.URL.Query().Get("to"); raw != "" {
			if to, err = schedule.ParseCalendarDate(raw); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_to", err.Error())
				return
			}
		}

		appts, err := svc.List(r.Context(), schedule.StartOfDay(from), schedule.StartOfDay(to).Add(24*time.Hour))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func updateAppointmentHandler(svc AppointmentService, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if !decodeAndValidate(w, r, validate, &req) {
			return
		}

		patch := appointment.AppointmentPatch{
			Date:             req.Date,
			StartTime:        req.StartTime,
			EndTime:          req.EndTime,
			UnassignEngineer: req.UnassignEngineer,
			AppointmentType:  req.AppointmentType,
		}
		if req.Status != nil {
			status := appointment.AppointmentStatus(*req.Status)
			patch.Status = &status
		}
		if req.EngineerID != nil {
			engineerID := uuid.MustParse(*req.EngineerID)
			patch.EngineerID = &engineerID
		}
		if req.Customer != nil {
			c := req.Customer.toModel()
			patch.Customer = &c
		}
		if req.Address != nil {
			a := req.Address.toModel()
			patch.Address = &a
		}

		updated, err := svc.Update(r.Context(), id, patch)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*updated))
	}
}

func listEngineersHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roster, err := svc.Engineers(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if roster == nil {
			roster = []appointment.Engineer{}
		}
		writeJSON(w, http.StatusOK, roster)
	}
}

// availabilityHandler serves ?date=&start=&end=[&exclude=<appointment id>].
func availabilityHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		date, err := schedule.ParseCalendarDate(q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		start, err := schedule.ParseLocalTime(q.Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", err.Error())
			return
		}
		end, err := schedule.ParseLocalTime(q.Get("end"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", err.Error())
			return
		}

		query := appointment.AvailabilityQuery{
			Interval: schedule.Interval{Date: date, StartTime: start, EndTime: end},
		}
		if raw := q.Get("exclude"); raw != "" {
			exclude, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_exclude", "exclude must be a valid UUID")
				return
			}
			query.ExcludeAppointmentID = &exclude
		}

		res, err := svc.Availability(r.Context(), query)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			Interval:  res.Interval,
			Engineers: res.Engineers,
			Degraded:  res.Degraded,
			Warning:   res.Warning,
		})
	}
}

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrEngineerNotFound):
		writeError(w, http.StatusNotFound, "engineer_not_found", err.Error())
	case errors.Is(err, appointment.ErrEngineerBusy):
		writeError(w, http.StatusConflict, "engineer_busy", err.Error())
	case errors.Is(err, appointment.ErrCalendarLocked):
		writeError(w, http.StatusConflict, "calendar_locked", err.Error())
	case errors.Is(err, appointment.ErrStaleWrite):
		writeError(w, http.StatusConflict, "stale_write", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatus),
		errors.Is(err, appointment.ErrNoSlots),
		errors.Is(err, appointment.ErrInvalidRange),
		errors.Is(err, schedule.ErrInvalidSlot):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
