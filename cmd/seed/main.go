package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fieldline/engineer-scheduling/internal/appointment"
	"github.com/fieldline/engineer-scheduling/internal/config"
	"github.com/fieldline/engineer-scheduling/internal/db"
	"github.com/fieldline/engineer-scheduling/internal/logger"
	"github.com/fieldline/engineer-scheduling/internal/schedule"
)

var appointmentTypes = []string{
	"boiler service",
	"boiler repair",
	"meter install",
	"smart meter exchange",
	"gas safety check",
	"heat pump survey",
}

func main() {
	engineers := flag.Int("engineers", 25, "number of engineers to create")
	days := flag.Int("days", 14, "number of days of appointments to create, starting tomorrow")
	perDay := flag.Int("per-day", 3, "confirmed appointments per engineer per day")
	flag.Parse()
	if *perDay < 1 || *perDay > 8 {
		log.Fatalf("per-day must be between 1 and 8, got %d", *perDay)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	lg, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolConfig{})
	if err != nil {
		lg.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		lg.Fatal("apply schema", zap.Error(err))
	}

	gofakeit.Seed(time.Now().UnixNano())

	ids, err := seedEngineers(ctx, pool, cfg.TenantID, *engineers)
	if err != nil {
		lg.Fatal("seed engineers", zap.Error(err))
	}
	lg.Info("engineers seeded", zap.Int("count", len(ids)))

	repo := appointment.NewPgRepository(pool, cfg.TenantID)
	tomorrow := schedule.DateOf(time.Now().UTC().AddDate(0, 0, 1))
	total := 0
	for d := 0; d < *days; d++ {
		date := schedule.DateOf(schedule.StartOfDay(tomorrow).AddDate(0, 0, d))
		created, err := repo.CreateAppointments(ctx, dayOfAppointments(date, ids, *perDay))
		if err != nil {
			lg.Fatal("seed appointments", zap.String("date", date.String()), zap.Error(err))
		}
		total += len(created)
	}

	lg.Info("seed complete", zap.Int("appointments", total))
}

func seedEngineers(ctx context.Context, pool *pgxpool.Pool, tenantID string, count int) ([]uuid.UUID, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO engineers (id, tenant_id, name, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, tenantID, gofakeit.Name())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// dayOfAppointments gives each engineer perDay back-to-back confirmed hour-long
// visits from a random morning start, so seeded rows never overlap.
func dayOfAppointments(date schedule.CalendarDate, engineers []uuid.UUID, perDay int) []appointment.Appointment {
	out := make([]appointment.Appointment, 0, len(engineers)*perDay)
	for _, engineerID := range engineers {
		engineerID := engineerID
		hour := gofakeit.Number(8, 16-perDay)
		for i := 0; i < perDay; i++ {
			start := schedule.ToComparableInstant(date, schedule.NewLocalTime(hour+i, 0))
			name := gofakeit.Name()
			email := gofakeit.Email()
			phone := gofakeit.Phone()
			line := gofakeit.Street()
			city := gofakeit.City()
			kind := gofakeit.RandomString(appointmentTypes)

			out = append(out, appointment.Appointment{
				ID:              uuid.New(),
				Date:            date,
				Start:           start,
				End:             start.Add(time.Hour),
				Status:          appointment.StatusConfirmed,
				EngineerID:      &engineerID,
				Customer:        appointment.Customer{Name: &name, Email: &email, Phone: &phone},
				Address:         appointment.Address{Postcode: gofakeit.Zip(), Line: &line, Location: &city},
				AppointmentType: &kind,
			})
		}
	}
	return out
}
