package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/engineer-scheduling/internal/appointment"
	"github.com/fieldline/engineer-scheduling/internal/metrics"
	"github.com/fieldline/engineer-scheduling/internal/schedule"
)

type stubService struct {
	booked       appointment.BookingRequest
	bookErr      error
	patch        appointment.AppointmentPatch
	updateErr    error
	getErr       error
	listFrom     time.Time
	listTo       time.Time
	availability appointment.AvailabilityQuery
	availErr     error
	roster       []appointment.Engineer
}

func (s *stubService) PreviewMerge(slots []schedule.TimeSlot) ([]schedule.Interval, error) {
	if err := schedule.ValidateSlots(slots); err != nil {
		return nil, err
	}
	return schedule.MergeSlots(slots), nil
}

func (s *stubService) Book(_ context.Context, req appointment.BookingRequest) ([]appointment.Appointment, error) {
	s.booked = req
	if s.bookErr != nil {
		return nil, s.bookErr
	}
	var out []appointment.Appointment
	for _, iv := range schedule.MergeSlots(req.Slots) {
		start, end := iv.Bounds()
		out = append(out, appointment.Appointment{
			ID:         uuid.New(),
			Date:       iv.Date,
			Start:      start,
			End:        end,
			Status:     appointment.StatusPending,
			EngineerID: req.EngineerID,
			Customer:   req.Customer,
			Address:    req.Address,
		})
	}
	return out, nil
}

func (s *stubService) Get(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &appointment.Appointment{
		ID:     id,
		Date:   schedule.NewCalendarDate(2024, time.June, 1),
		Start:  time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC),
		End:    time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC),
		Status: appointment.StatusConfirmed,
	}, nil
}

func (s *stubService) List(_ context.Context, from, to time.Time) ([]appointment.Appointment, error) {
	s.listFrom, s.listTo = from, to
	return nil, nil
}

func (s *stubService) Update(ctx context.Context, id uuid.UUID, patch appointment.AppointmentPatch) (*appointment.Appointment, error) {
	s.patch = patch
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return s.Get(ctx, id)
}

func (s *stubService) Engineers(context.Context) ([]appointment.Engineer, error) {
	return s.roster, nil
}

func (s *stubService) Availability(_ context.Context, q appointment.AvailabilityQuery) (*appointment.AvailabilityResult, error) {
	s.availability = q
	if s.availErr != nil {
		return nil, s.availErr
	}
	busy := schedule.EngineerSet{}
	if len(s.roster) > 0 {
		busy[s.roster[0].ID] = struct{}{}
	}
	return &appointment.AvailabilityResult{
		Interval:  q.Interval,
		Engineers: schedule.Classify(s.roster, busy),
	}, nil
}

func newTestRouter(svc AppointmentService) http.Handler {
	return NewRouter(RouterConfig{
		Service:  svc,
		Postgres: func(context.Context) error { return nil },
		Redis:    func(context.Context) error { return nil },
		Metrics:  metrics.New(),
		Env:      "test",
		Version:  "dev",
	})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestMergeSlotsEndpoint(t *testing.T) {
	h := newTestRouter(&stubService{})

	rec := do(t, h, http.MethodPost, "/slots/merge", `{"slots":[
		{"date":"2024-06-01","start_time":"08:30","end_time":"09:00"},
		{"date":"2024-06-01","start_time":"08:00","end_time":"08:30"},
		{"date":"2024-06-01","start_time":"10:00","end_time":"10:30"}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MergeSlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "08:00", resp.Intervals[0].StartTime.String())
	assert.Equal(t, "09:00", resp.Intervals[0].EndTime.String())
	assert.Equal(t, "10:00", resp.Intervals[1].StartTime.String())
}

func TestMergeSlotsRejectsBadInput(t *testing.T) {
	h := newTestRouter(&stubService{})

	rec := do(t, h, http.MethodPost, "/slots/merge", `{"slots":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decodeError(t, rec).Error)

	rec = do(t, h, http.MethodPost, "/slots/merge", `{"slots":[{"date":"2024-06-01","start_time":"25:00","end_time":"26:00"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", decodeError(t, rec).Error)

	rec = do(t, h, http.MethodPost, "/slots/merge", `{"slots":[{"date":"2024-06-01","start_time":"10:00","end_time":"09:00"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Error)
}

func TestCreateAppointmentsEndpoint(t *testing.T) {
	svc := &stubService{}
	h := newTestRouter(svc)
	engineerID := uuid.New()

	rec := do(t, h, http.MethodPost, "/appointments", `{
		"slots":[
			{"date":"2024-06-01","start_time":"08:00","end_time":"08:30"},
			{"date":"2024-06-01","start_time":"08:30","end_time":"09:00"}
		],
		"engineer_id":"`+engineerID.String()+`",
		"customer":{"name":"Ada","email":"ada@example.com"},
		"address":{"postcode":"SW1A 1AA"}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp []AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "pending", resp[0].Status)
	assert.Equal(t, "08:00", resp[0].StartTime.String())
	assert.Equal(t, "09:00", resp[0].EndTime.String())

	require.NotNil(t, svc.booked.EngineerID)
	assert.Equal(t, engineerID, *svc.booked.EngineerID)
	assert.Equal(t, "SW1A 1AA", svc.booked.Address.Postcode)
}

func TestCreateAppointmentsValidation(t *testing.T) {
	h := newTestRouter(&stubService{})
	slot := `{"date":"2024-06-01","start_time":"08:00","end_time":"08:30"}`

	cases := map[string]string{
		"missing postcode": `{"slots":[` + slot + `],"address":{}}`,
		"bad engineer id":  `{"slots":[` + slot + `],"engineer_id":"nope","address":{"postcode":"AB1"}}`,
		"bad email":        `{"slots":[` + slot + `],"customer":{"email":"nope"},"address":{"postcode":"AB1"}}`,
		"no slots":         `{"address":{"postcode":"AB1"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/appointments", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "validation_failed", decodeError(t, rec).Error)
		})
	}
}

func TestServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{appointment.ErrEngineerBusy, http.StatusConflict, "engineer_busy"},
		{appointment.ErrCalendarLocked, http.StatusConflict, "calendar_locked"},
		{appointment.ErrStaleWrite, http.StatusConflict, "stale_write"},
		{appointment.ErrInvalidTransition, http.StatusConflict, "invalid_status_transition"},
		{appointment.ErrEngineerNotFound, http.StatusNotFound, "engineer_not_found"},
		{appointment.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},
		{schedule.ErrInvalidSlot, http.StatusBadRequest, "invalid_request"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			h := newTestRouter(&stubService{updateErr: tc.err})
			rec := do(t, h, http.MethodPatch, "/appointments/"+uuid.NewString(), `{"status":"confirmed"}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decodeError(t, rec).Error)
		})
	}
}

func TestUpdateAppointmentEndpoint(t *testing.T) {
	svc := &stubService{}
	h := newTestRouter(svc)
	engineerID := uuid.New()
	id := uuid.New()

	rec := do(t, h, http.MethodPatch, "/appointments/"+id.String(), `{
		"date":"2024-06-02",
		"start_time":"9:30 AM",
		"end_time":"10:30",
		"status":"offered",
		"engineer_id":"`+engineerID.String()+`"
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, svc.patch.Date)
	assert.Equal(t, "2024-06-02", svc.patch.Date.String())
	require.NotNil(t, svc.patch.StartTime)
	assert.Equal(t, "09:30", svc.patch.StartTime.String())
	require.NotNil(t, svc.patch.Status)
	assert.Equal(t, appointment.StatusOffered, *svc.patch.Status)
	require.NotNil(t, svc.patch.EngineerID)
	assert.Equal(t, engineerID, *svc.patch.EngineerID)
	assert.Nil(t, svc.patch.Customer)

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.ID)
}

func TestUpdateAppointmentRejectsUnknownStatus(t *testing.T) {
	h := newTestRouter(&stubService{})

	rec := do(t, h, http.MethodPatch, "/appointments/"+uuid.NewString(), `{"status":"archived"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decodeError(t, rec).Error)

	rec = do(t, h, http.MethodPatch, "/appointments/not-a-uuid", `{"status":"confirmed"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_appointment_id", decodeError(t, rec).Error)
}

func TestGetAppointmentEndpoint(t *testing.T) {
	id := uuid.New()

	rec := do(t, newTestRouter(&stubService{}), http.MethodGet, "/appointments/"+id.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "confirmed", resp.Status)
	assert.Equal(t, "09:00", resp.StartTime.String())

	rec = do(t, newTestRouter(&stubService{getErr: appointment.ErrAppointmentNotFound}), http.MethodGet, "/appointments/"+id.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAppointmentsRange(t *testing.T) {
	svc := &stubService{}
	h := newTestRouter(svc)

	rec := do(t, h, http.MethodGet, "/appointments?from=2024-06-01&to=2024-06-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), svc.listFrom)
	assert.Equal(t, time.Date(2024, time.June, 4, 0, 0, 0, 0, time.UTC), svc.listTo)

	rec = do(t, h, http.MethodGet, "/appointments?from=2024-06-05", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, time.June, 6, 0, 0, 0, 0, time.UTC), svc.listTo)

	rec = do(t, h, http.MethodGet, "/appointments", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_from", decodeError(t, rec).Error)
}

func TestAvailabilityEndpoint(t *testing.T) {
	busy := appointment.Engineer{ID: uuid.New(), Name: "Sam"}
	free := appointment.Engineer{ID: uuid.New(), Name: "Kim"}
	svc := &stubService{roster: []appointment.Engineer{busy, free}}
	h := newTestRouter(svc)
	exclude := uuid.New()

	rec := do(t, h, http.MethodGet, "/engineers/availability?date=2024-06-01&start=09:00&end=10:00&exclude="+exclude.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Engineers, 2)
	assert.Equal(t, busy.ID, resp.Engineers[0].ID)
	assert.Equal(t, schedule.Busy, resp.Engineers[0].Status)
	assert.False(t, resp.Engineers[0].Selectable)
	assert.Equal(t, schedule.Available, resp.Engineers[1].Status)
	assert.True(t, resp.Engineers[1].Selectable)

	require.NotNil(t, svc.availability.ExcludeAppointmentID)
	assert.Equal(t, exclude, *svc.availability.ExcludeAppointmentID)
	assert.Equal(t, "09:00", svc.availability.Interval.StartTime.String())
}

func TestAvailabilityEndpointRejectsBadQuery(t *testing.T) {
	h := newTestRouter(&stubService{})

	cases := map[string]string{
		"invalid_date":    "/engineers/availability?date=June&start=09:00&end=10:00",
		"invalid_start":   "/engineers/availability?date=2024-06-01&start=nine&end=10:00",
		"invalid_end":     "/engineers/availability?date=2024-06-01&start=09:00",
		"invalid_exclude": "/engineers/availability?date=2024-06-01&start=09:00&end=10:00&exclude=x",
	}
	for code, target := range cases {
		t.Run(code, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, code, decodeError(t, rec).Error)
		})
	}
}

func TestListEngineersEmpty(t *testing.T) {
	rec := do(t, newTestRouter(&stubService{}), http.MethodGet, "/engineers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHealthEndpoints(t *testing.T) {
	rec := do(t, newTestRouter(&stubService{}), http.MethodGet, "/health/live", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("X-Request-ID"), "-")

	down := func(context.Context) error { return errors.New("down") }
	up := func(context.Context) error { return nil }

	cases := []struct {
		name     string
		postgres PingFunc
		redis    PingFunc
		code     int
		status   string
	}{
		{"all up", up, up, http.StatusOK, "ok"},
		{"redis down", up, down, http.StatusOK, "degraded"},
		{"postgres down", down, up, http.StatusServiceUnavailable, "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewRouter(RouterConfig{Service: &stubService{}, Postgres: tc.postgres, Redis: tc.redis})
			rec := do(t, h, http.MethodGet, "/health/ready", "")
			assert.Equal(t, tc.code, rec.Code)

			var resp ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.status, resp.Status)
		})
	}
}

func TestMetricsRecordRoutePattern(t *testing.T) {
	m := metrics.New()
	h := NewRouter(RouterConfig{Service: &stubService{}, Metrics: m})

	do(t, h, http.MethodGet, "/appointments/"+uuid.NewString(), "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/appointments/{id}"`)
}
