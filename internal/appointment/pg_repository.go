package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldline/engineer-scheduling/internal/schedule"
)

// SQLSTATE for exclusion_violation, raised by appointments_no_engineer_overlap.
const exclusionViolation = "23P01"

const appointmentColumns = `id, appointment_date, start_at, end_at, status, engineer_id,
	customer_name, customer_email, customer_phone,
	postcode, address_line, address_location, appointment_type,
	created_at, updated_at`

type PgRepository struct {
	pool     *pgxpool.Pool
	tenantID string
}

func NewPgRepository(pool *pgxpool.Pool, tenantID string) *PgRepository {
	return &PgRepository{pool: pool, tenantID: tenantID}
}

// Helpers

func scanEngineer(row pgx.Row) (*Engineer, error) {
	var e Engineer

	err := row.Scan(&e.ID, &e.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEngineerNotFound
		}
		return nil, err
	}

	return &e, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var day time.Time
	var status string

	err := row.Scan(
		&a.ID,
		&day,
		&a.Start,
		&a.End,
		&status,
		&a.EngineerID,
		&a.Customer.Name,
		&a.Customer.Email,
		&a.Customer.Phone,
		&a.Address.Postcode,
		&a.Address.Line,
		&a.Address.Location,
		&a.AppointmentType,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = schedule.DateOf(day)
	a.Status = AppointmentStatus(status)
	a.Start = a.Start.UTC()
	a.End = a.End.UTC()
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
		return fmt.Errorf("%w: %s", ErrEngineerBusy, pgErr.Detail)
	}
	return err
}

// Interface methods

func (r *PgRepository) ListEngineers(ctx context.Context) ([]Engineer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name
		FROM engineers
		WHERE tenant_id = $1
		ORDER BY name
	`, r.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Engineer
	for rows.Next() {
		e, err := scanEngineer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetEngineerByID(ctx context.Context, id uuid.UUID) (*Engineer, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name
		FROM engineers
		WHERE tenant_id = $1 AND id = $2
	`, r.tenantID, id)
	return scanEngineer(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1 AND id = $2
	`, r.tenantID, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1
		  AND start_at < $3
		  AND end_at > $2
		ORDER BY start_at
	`, r.tenantID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointments(ctx context.Context, appts []Appointment) ([]Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create appointments: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	created := make([]Appointment, 0, len(appts))
	for _, a := range appts {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO appointments (
				id, tenant_id, appointment_date, start_at, end_at, status, engineer_id,
				customer_name, customer_email, customer_phone,
				postcode, address_line, address_location, appointment_type,
				created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
			RETURNING `+appointmentColumns,
			a.ID, r.tenantID, schedule.StartOfDay(a.Date), a.Start, a.End, string(a.Status), a.EngineerID,
			a.Customer.Name, a.Customer.Email, a.Customer.Phone,
			a.Address.Postcode, a.Address.Line, a.Address.Location, a.AppointmentType,
		)

		out, err := scanAppointment(row)
		if err != nil {
			return nil, mapWriteError(err)
		}
		created = append(created, *out)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create appointments: %w", mapWriteError(err))
	}

	return created, nil
}

// UpdateAppointment writes every mutable field, but only if the row still
// carries expectedUpdatedAt. A miss on an existing row is ErrStaleWrite.
func (r *PgRepository) UpdateAppointment(ctx context.Context, a Appointment, expectedUpdatedAt time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET appointment_date = $3,
		    start_at = $4,
		    end_at = $5,
		    status = $6,
		    engineer_id = $7,
		    customer_name = $8,
		    customer_email = $9,
		    customer_phone = $10,
		    postcode = $11,
		    address_line = $12,
		    address_location = $13,
		    appointment_type = $14,
		    updated_at = now()
		WHERE tenant_id = $1
		  AND id = $2
		  AND updated_at = $15
		RETURNING `+appointmentColumns,
		r.tenantID, a.ID, schedule.StartOfDay(a.Date), a.Start, a.End, string(a.Status), a.EngineerID,
		a.Customer.Name, a.Customer.Email, a.Customer.Phone,
		a.Address.Postcode, a.Address.Line, a.Address.Location, a.AppointmentType,
		expectedUpdatedAt,
	)

	updated, err := scanAppointment(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, mapWriteError(err)
	}

	if _, getErr := r.GetAppointmentByID(ctx, a.ID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrStaleWrite
}

func (r *PgRepository) FindElapsedConfirmed(ctx context.Context, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1
		  AND status = 'confirmed'
		  AND end_at <= $2
	`, r.tenantID, now)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (tenant_id, event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, r.tenantID, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
