package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/appointment-booking/internal/booking"
	"github.com/carebook/appointment-booking/internal/clock"
	"github.com/carebook/appointment-booking/internal/config"
	"github.com/carebook/appointment-booking/internal/events"
)

var testMonday = time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)

type testServer struct {
	handler http.Handler
	repo    *booking.MemoryRepository
	clk     *clock.Fake
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := booking.NewMemoryRepository()
	clk := clock.NewFake(testMonday.Add(8 * time.Hour))
	cfg := config.Config{
		HoldWindow:       15 * time.Minute,
		HorizonDays:      14,
		SlotMinutesVideo: 15,
		FeeVideo:         50000,
		Currency:         "INR",
	}
	log := zerolog.Nop()

	handler := NewRouter(RouterConfig{
		Booking:      booking.NewService(repo, events.Nop{}, clk, cfg, log),
		Availability: booking.NewAvailabilityService(repo, clk, cfg, log),
		Env:          "test",
		Version:      "test",
		Logger:       log,
	})

	return &testServer{handler: handler, repo: repo, clk: clk}
}

func (s *testServer) seedSlot(t *testing.T, doctorID uuid.UUID) booking.AvailableSlot {
	t.Helper()
	slot := booking.AvailableSlot{
		ID:               uuid.New(),
		DoctorID:         doctorID,
		Date:             testMonday,
		StartMinute:      540,
		EndMinute:        555,
		ConsultationType: booking.ConsultationVideo,
		DurationMinutes:  15,
		Status:           booking.SlotAvailable,
	}
	if err := s.repo.InsertSlots(context.Background(), []booking.AvailableSlot{slot}); err != nil {
		t.Fatalf("insert slot: %v", err)
	}
	return slot
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeAppointment(t *testing.T, rec *httptest.ResponseRecorder) AppointmentResponse {
	t.Helper()
	var resp AppointmentResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode appointment: %v", err)
	}
	return resp
}

func TestReserveEndpoint(t *testing.T) {
	s := newTestServer(t)
	slot := s.seedSlot(t, uuid.New())
	patientID := uuid.New()

	rec := s.do(t, http.MethodPost, "/appointments", ReserveRequest{
		SlotID:    slot.ID.String(),
		PatientID: patientID.String(),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, want 201: %s", rec.Code, rec.Body)
	}

	appt := decodeAppointment(t, rec)
	if appt.Status != string(booking.StatusPendingPayment) {
		t.Errorf("status %s, want PENDING_PAYMENT", appt.Status)
	}
	if appt.TotalAmount != 50000 {
		t.Errorf("total %d, want 50000", appt.TotalAmount)
	}

	// A second reservation for the same slot conflicts.
	rec = s.do(t, http.MethodPost, "/appointments", ReserveRequest{
		SlotID:    slot.ID.String(),
		PatientID: uuid.New().String(),
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second reserve status %d, want 409", rec.Code)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Error != "slot_unavailable" {
		t.Errorf("error code %q, want slot_unavailable", errResp.Error)
	}
}

func TestReserveEndpointRejectsBadIDs(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/appointments", ReserveRequest{
		SlotID:    "not-a-uuid",
		PatientID: uuid.New().String(),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestConfirmEndpoint(t *testing.T) {
	s := newTestServer(t)
	slot := s.seedSlot(t, uuid.New())
	patientID := uuid.New()

	rec := s.do(t, http.MethodPost, "/appointments", ReserveRequest{
		SlotID:    slot.ID.String(),
		PatientID: patientID.String(),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("reserve status %d", rec.Code)
	}
	appt := decodeAppointment(t, rec)

	rec = s.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/confirm", ConfirmRequest{
		PatientID: patientID.String(),
		PaymentID: uuid.New().String(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status %d, want 200: %s", rec.Code, rec.Body)
	}
	confirmed := decodeAppointment(t, rec)
	if confirmed.Status != string(booking.StatusConfirmed) {
		t.Errorf("status %s, want CONFIRMED", confirmed.Status)
	}

	// Expired holds surface as 409 reservation_expired.
	slot2 := s.seedSlot(t, uuid.New())
	rec = s.do(t, http.MethodPost, "/appointments", ReserveRequest{
		SlotID:    slot2.ID.String(),
		PatientID: patientID.String(),
	})
	appt2 := decodeAppointment(t, rec)

	s.clk.Advance(16 * time.Minute)

	rec = s.do(t, http.MethodPost, "/appointments/"+appt2.ID.String()+"/confirm", ConfirmRequest{
		PatientID: patientID.String(),
		PaymentID: uuid.New().String(),
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expired confirm status %d, want 409", rec.Code)
	}
}

func TestAvailabilityAndSlotsEndpoints(t *testing.T) {
	s := newTestServer(t)
	doctorID := uuid.New()

	rec := s.do(t, http.MethodPost, "/doctors/"+doctorID.String()+"/availability", WeeklyAvailabilityRequest{
		DayOfWeek:        1, // Monday
		StartMinute:      540,
		EndMinute:        600,
		ConsultationType: "VIDEO",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add availability status %d: %s", rec.Code, rec.Body)
	}

	rec = s.do(t, http.MethodGet,
		"/doctors/"+doctorID.String()+"/slots?from=2026-09-07&to=2026-09-07", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list slots status %d: %s", rec.Code, rec.Body)
	}

	var slots AvailableSlotsResponse
	if err := json.NewDecoder(rec.Body).Decode(&slots); err != nil {
		t.Fatalf("decode slots: %v", err)
	}
	if slots.Total != 4 {
		t.Errorf("total %d, want 4", slots.Total)
	}
	if len(slots.Days) != 1 || slots.Days[0].Date != "2026-09-07" {
		t.Fatalf("days %+v, want one day 2026-09-07", slots.Days)
	}
	if len(slots.Days[0].Slots) != 4 {
		t.Errorf("day has %d slots, want 4", len(slots.Days[0].Slots))
	}
}

func TestSlotsEndpointValidatesRange(t *testing.T) {
	s := newTestServer(t)
	doctorID := uuid.New()

	rec := s.do(t, http.MethodGet, "/doctors/"+doctorID.String()+"/slots", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing range status %d, want 400", rec.Code)
	}

	rec = s.do(t, http.MethodGet,
		"/doctors/"+doctorID.String()+"/slots?from=2026-09-08&to=2026-09-07", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted range status %d, want 400", rec.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	s := newTestServer(t)
	slot := s.seedSlot(t, uuid.New())
	patientID := uuid.New()

	rec := s.do(t, http.MethodPost, "/appointments", ReserveRequest{
		SlotID:    slot.ID.String(),
		PatientID: patientID.String(),
	})
	appt := decodeAppointment(t, rec)

	rec = s.do(t, http.MethodGet, "/appointments/"+appt.ID.String()+"/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status %d: %s", rec.Code, rec.Body)
	}

	var history []StatusHistoryResponse
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history length %d, want 1", len(history))
	}
	if history[0].ToStatus != string(booking.StatusPendingPayment) {
		t.Errorf("to_status %s, want PENDING_PAYMENT", history[0].ToStatus)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID %q, want req-123", got)
	}
}
