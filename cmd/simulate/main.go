package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fieldline/engineer-scheduling/internal/config"
	"github.com/fieldline/engineer-scheduling/internal/logger"
	"github.com/fieldline/engineer-scheduling/internal/schedule"
)

// SimConfig drives a load run against a live api-server. Workers deliberately
// pick from a small set of engineers and days so bookings collide.
type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	ConfirmRatio float64
	ReadRatio    float64
	Days         int
	Engineers    int
}

type DataPool struct {
	Engineers    []uuid.UUID
	Dates        []schedule.CalendarDate
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err != nil:
		atomic.AddInt64(&om.Error, 1)
	case status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Percentiles() (p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}
	sorted := append([]time.Duration(nil), om.latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	at := func(pct int) time.Duration {
		idx := len(sorted) * pct / 100
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}
	return at(50), at(95), sorted[len(sorted)-1]
}

type Report struct {
	Booking      OperationMetrics
	Confirm      OperationMetrics
	Availability OperationMetrics
	ListDay      OperationMetrics
}

type Simulator struct {
	config SimConfig
	pool   *DataPool
	client *http.Client
	report Report
	logger *zap.Logger
}

func main() {
	_ = godotenv.Load()

	lg, err := logger.New(config.Config{Env: config.EnvDev, LogLevel: "info", LogFormat: "console"})
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		lg.Fatal("invalid config", zap.Error(err))
	}

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: lg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := sim.loadDataPool(ctx)
	if err != nil {
		lg.Fatal("load data pool", zap.Error(err))
	}
	sim.pool = pool

	lg.Info("starting simulation",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Int("engineers", len(pool.Engineers)),
		zap.Int("days", len(pool.Dates)),
	)

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		ConfirmRatio: getFloat("SIM_CONFIRM_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		Days:         getInt("SIM_DAYS", 3),
		Engineers:    getInt("SIM_ENGINEERS", 5),
	}

	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 || cfg.Engineers <= 0 {
		return fmt.Errorf("SIM_DAYS and SIM_ENGINEERS must be > 0")
	}
	return nil
}

func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/engineers", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list engineers: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list engineers: status %d", resp.StatusCode)
	}

	var roster []struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&roster); err != nil {
		return nil, fmt.Errorf("decode engineers: %w", err)
	}
	if len(roster) == 0 {
		return nil, fmt.Errorf("no engineers found, run cmd/seed first")
	}

	dp := &DataPool{}
	for i := 0; i < len(roster) && i < s.config.Engineers; i++ {
		dp.Engineers = append(dp.Engineers, roster[i].ID)
	}
	start := time.Now().UTC().AddDate(0, 0, 30)
	for d := 0; d < s.config.Days; d++ {
		dp.Dates = append(dp.Dates, schedule.DateOf(start.AddDate(0, 0, d)))
	}
	return dp, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()

	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.ConfirmRatio:
			s.doConfirm(ctx, rng)
		case rng.Intn(2) == 0:
			s.doAvailability(ctx, rng)
		default:
			s.doListDay(ctx, rng)
		}
	}
}

// doBooking requests two to four contiguous half-hour slots for one engineer
// and marks them offered so they block, which is where collisions surface.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	engineerID := s.pool.Engineers[rng.Intn(len(s.pool.Engineers))]
	date := s.pool.Dates[rng.Intn(len(s.pool.Dates))]
	startHalfHour := 16 + rng.Intn(16)
	n := 2 + rng.Intn(3)

	slots := make([]schedule.TimeSlot, 0, n)
	for i := 0; i < n; i++ {
		h := startHalfHour + i
		slots = append(slots, schedule.TimeSlot{
			Date:      date,
			StartTime: schedule.NewLocalTime(h/2, (h%2)*30),
			EndTime:   schedule.NewLocalTime((h+1)/2, ((h+1)%2)*30),
		})
	}

	body := map[string]any{
		"slots":       slots,
		"engineer_id": engineerID.String(),
		"address":     map[string]string{"postcode": "SIM 1AA"},
	}

	var created []struct {
		ID uuid.UUID `json:"id"`
	}
	start := time.Now()
	status, err := s.send(ctx, http.MethodPost, "/appointments", body, &created)
	s.report.Booking.Record(time.Since(start), status, err)

	for _, a := range created {
		s.pool.AddAppointment(a.ID)
		_, _ = s.send(ctx, http.MethodPatch, "/appointments/"+a.ID.String(), map[string]string{"status": "offered"}, nil)
	}
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.send(ctx, http.MethodPatch, "/appointments/"+id.String(), map[string]string{"status": "confirmed"}, nil)
	s.report.Confirm.Record(time.Since(start), status, err)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	date := s.pool.Dates[rng.Intn(len(s.pool.Dates))]
	hour := 8 + rng.Intn(9)

	q := url.Values{}
	q.Set("date", date.String())
	q.Set("start", schedule.NewLocalTime(hour, 0).String())
	q.Set("end", schedule.NewLocalTime(hour+1, 0).String())

	start := time.Now()
	status, err := s.send(ctx, http.MethodGet, "/engineers/availability?"+q.Encode(), nil, nil)
	s.report.Availability.Record(time.Since(start), status, err)
}

func (s *Simulator) doListDay(ctx context.Context, rng *rand.Rand) {
	date := s.pool.Dates[rng.Intn(len(s.pool.Dates))]

	start := time.Now()
	status, err := s.send(ctx, http.MethodGet, "/appointments?from="+date.String(), nil, nil)
	s.report.ListDay.Record(time.Since(start), status, err)
}

func (s *Simulator) send(ctx context.Context, method, path string, in, out any) (int, error) {
	var reader *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n\n", s.config.Workers)

	printOperationReport("Booking", &s.report.Booking)
	printOperationReport("Confirm", &s.report.Confirm)
	printOperationReport("Availability", &s.report.Availability)
	printOperationReport("List day", &s.report.ListDay)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	p50, p95, max := om.Percentiles()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: p50=%s p95=%s max=%s\n\n",
		p50.Round(time.Millisecond), p95.Round(time.Millisecond), max.Round(time.Millisecond))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
