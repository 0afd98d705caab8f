package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/appointment-booking/internal/clock"
	"github.com/carebook/appointment-booking/internal/config"
	"github.com/carebook/appointment-booking/internal/events"
)

// Monday 2026-09-07, a fixed anchor so weekday math is stable.
var testMonday = time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func (p *recordingPublisher) lastType() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return ""
	}
	return p.events[len(p.events)-1].Type
}

func testConfig() config.Config {
	return config.Config{
		HoldWindow:  15 * time.Minute,
		HorizonDays: 14,

		SlotMinutesVideo:    15,
		SlotMinutesInPerson: 30,
		SlotMinutesAudio:    15,
		SlotMinutesChat:     15,

		FeeVideo:    50000,
		FeeInPerson: 70000,
		FeeAudio:    40000,
		FeeChat:     30000,
		Currency:    "INR",
	}
}

type fixture struct {
	repo         *MemoryRepository
	clk          *clock.Fake
	pub          *recordingPublisher
	svc          *Service
	availability *AvailabilityService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := NewMemoryRepository()
	clk := clock.NewFake(testMonday.Add(8 * time.Hour)) // Monday 08:00 UTC
	pub := &recordingPublisher{}
	cfg := testConfig()
	log := zerolog.Nop()

	return &fixture{
		repo:         repo,
		clk:          clk,
		pub:          pub,
		svc:          NewService(repo, pub, clk, cfg, log),
		availability: NewAvailabilityService(repo, clk, cfg, log),
	}
}

// seedSlot inserts one AVAILABLE slot directly into the repository.
func (f *fixture) seedSlot(t *testing.T, doctorID uuid.UUID, date time.Time, startMinute, durationMinutes int) AvailableSlot {
	t.Helper()

	slot := AvailableSlot{
		ID:               uuid.New(),
		DoctorID:         doctorID,
		Date:             date,
		StartMinute:      startMinute,
		EndMinute:        startMinute + durationMinutes,
		ConsultationType: ConsultationVideo,
		DurationMinutes:  durationMinutes,
		Status:           SlotAvailable,
		CreatedAt:        f.clk.Now(),
	}
	if err := f.repo.InsertSlots(context.Background(), []AvailableSlot{slot}); err != nil {
		t.Fatalf("insert slot: %v", err)
	}
	return slot
}

func (f *fixture) slotStatus(t *testing.T, slotID uuid.UUID) SlotStatus {
	t.Helper()
	s, err := f.repo.GetSlotByID(context.Background(), slotID)
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	return s.Status
}

func (f *fixture) appointmentStatus(t *testing.T, id uuid.UUID) AppointmentStatus {
	t.Helper()
	a, err := f.repo.GetAppointmentByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	return a.Status
}
