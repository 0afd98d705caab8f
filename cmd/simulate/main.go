package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebook/appointment-booking/internal/config"
	"github.com/carebook/appointment-booking/internal/db"
	"github.com/carebook/appointment-booking/internal/logging"
)

// The simulator hammers the reservation endpoints with many workers sharing a
// small slot pool, so most requests race for the same slots. The interesting
// number in the report is the conflict rate: every loser of a claim race must
// see 409, never a double booking.

type simConfig struct {
	BaseURL      string
	Duration     time.Duration
	Workers      int
	PatientCount int
	SlotLimit    int
	ReserveRatio float64
	ConfirmRatio float64
	PostgresDSN  string
}

type reservation struct {
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
}

type dataPool struct {
	patients []uuid.UUID
	slots    []uuid.UUID

	mu           sync.Mutex
	reservations []reservation
}

func (p *dataPool) addReservation(r reservation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reservations = append(p.reservations, r)
}

func (p *dataPool) takeReservation(rng *rand.Rand) (reservation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.reservations) == 0 {
		return reservation{}, false
	}
	idx := rng.Intn(len(p.reservations))
	r := p.reservations[idx]
	p.reservations = append(p.reservations[:idx], p.reservations[idx+1:]...)
	return r, true
}

type opMetrics struct {
	mu        sync.Mutex
	total     int
	success   int
	conflict  int
	failed    int
	latencies []time.Duration
}

func (m *opMetrics) record(latency time.Duration, status int, okStatus int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	switch {
	case status == okStatus:
		m.success++
	case status == http.StatusConflict:
		m.conflict++
	default:
		m.failed++
	}
	m.latencies = append(m.latencies, latency)
}

func (m *opMetrics) report(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.total == 0 {
		return
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	avg := sum / time.Duration(len(sorted))
	p95 := sorted[len(sorted)*95/100%len(sorted)]

	fmt.Printf("%-10s total=%d success=%d conflict=%d failed=%d avg=%s p95=%s\n",
		name, m.total, m.success, m.conflict, m.failed,
		avg.Round(time.Millisecond), p95.Round(time.Millisecond))
}

type simulator struct {
	cfg    simConfig
	pool   *dataPool
	client *http.Client

	reserve opMetrics
	confirm opMetrics
	cancel  opMetrics
	read    opMetrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New(baseCfg.Env, "simulate")

	cfg := simConfig{
		BaseURL:      getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 20),
		PatientCount: getInt("SIM_PATIENTS", 500),
		SlotLimit:    getInt("SIM_SLOT_LIMIT", 200),
		ReserveRatio: 0.5,
		ConfirmRatio: 0.25,
		PostgresDSN:  baseCfg.PostgresDSN,
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Int("slot_limit", cfg.SlotLimit).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}

	pool, err := loadDataPool(context.Background(), pgPool, cfg)
	pgPool.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("data pool load failed")
	}

	log.Info().
		Int("patients", len(pool.patients)).
		Int("slots", len(pool.slots)).
		Msg("data pool loaded")

	sim := &simulator{
		cfg:    cfg,
		pool:   pool,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	sim.run()
	sim.printReport()
}

func loadDataPool(ctx context.Context, pg *pgxpool.Pool, cfg simConfig) (*dataPool, error) {
	pool := &dataPool{}

	// Patients are not stored anywhere; identity lives outside this service.
	for i := 0; i < cfg.PatientCount; i++ {
		pool.patients = append(pool.patients, uuid.New())
	}

	rows, err := pg.Query(ctx, `
		SELECT id FROM available_slots
		WHERE status = 'AVAILABLE' AND slot_date >= CURRENT_DATE
		ORDER BY slot_date, start_minute
		LIMIT $1
	`, cfg.SlotLimit)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		pool.slots = append(pool.slots, id)
	}
	if len(pool.slots) == 0 {
		return nil, fmt.Errorf("no open slots found, run cmd/seed first")
	}

	return pool, rows.Err()
}

func (s *simulator) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, rand.New(rand.NewSource(time.Now().UnixNano()+int64(workerID))))
		}(i)
	}
	wg.Wait()
}

func (s *simulator) worker(ctx context.Context, rng *rand.Rand) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.cfg.ReserveRatio:
			s.doReserve(ctx, rng)
		case r < s.cfg.ReserveRatio+s.cfg.ConfirmRatio:
			s.doConfirmOrCancel(ctx, rng)
		default:
			s.doRead(ctx, rng)
		}
	}
}

func (s *simulator) doReserve(ctx context.Context, rng *rand.Rand) {
	slotID := s.pool.slots[rng.Intn(len(s.pool.slots))]
	patientID := s.pool.patients[rng.Intn(len(s.pool.patients))]

	body, _ := json.Marshal(map[string]string{
		"slot_id":    slotID.String(),
		"patient_id": patientID.String(),
	})

	start := time.Now()
	status, respBody := s.post(ctx, "/appointments", body)
	s.reserve.record(time.Since(start), status, http.StatusCreated)

	if status == http.StatusCreated {
		var appt struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(respBody, &appt) == nil && appt.ID != uuid.Nil {
			s.pool.addReservation(reservation{AppointmentID: appt.ID, PatientID: patientID})
		}
	}
}

// doConfirmOrCancel resolves a pending reservation: mostly confirmed with a
// fake payment, sometimes cancelled so its slot returns to the pool.
func (s *simulator) doConfirmOrCancel(ctx context.Context, rng *rand.Rand) {
	r, ok := s.pool.takeReservation(rng)
	if !ok {
		return
	}

	if rng.Float64() < 0.2 {
		body, _ := json.Marshal(map[string]string{
			"user_id": r.PatientID.String(),
			"reason":  "changed my mind",
		})
		start := time.Now()
		status, _ := s.post(ctx, "/appointments/"+r.AppointmentID.String()+"/cancel", body)
		s.cancel.record(time.Since(start), status, http.StatusOK)
		return
	}

	body, _ := json.Marshal(map[string]string{
		"patient_id": r.PatientID.String(),
		"payment_id": uuid.NewString(),
	})
	start := time.Now()
	status, _ := s.post(ctx, "/appointments/"+r.AppointmentID.String()+"/confirm", body)
	s.confirm.record(time.Since(start), status, http.StatusOK)
}

func (s *simulator) doRead(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.patients[rng.Intn(len(s.pool.patients))]

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.cfg.BaseURL+"/patients/"+patientID.String()+"/appointments?limit=20", nil)
	if err != nil {
		return
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.read.record(time.Since(start), 0, http.StatusOK)
		return
	}
	resp.Body.Close()
	s.read.record(time.Since(start), resp.StatusCode, http.StatusOK)
}

func (s *simulator) post(ctx context.Context, path string, body []byte) (int, []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.Bytes()
}

func (s *simulator) printReport() {
	fmt.Println("\nSIMULATION REPORT")
	fmt.Printf("duration=%s workers=%d\n\n", s.cfg.Duration, s.cfg.Workers)
	s.reserve.report("reserve")
	s.confirm.report("confirm")
	s.cancel.report("cancel")
	s.read.report("read")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
