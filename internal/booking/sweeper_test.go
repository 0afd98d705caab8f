package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/appointment-booking/internal/events"
)

func TestExpireLapsedReservations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	patientID := uuid.New()
	slot := f.seedSlot(t, uuid.New(), testMonday, 540, 15)

	appt, err := f.svc.Reserve(ctx, patientID, slot.ID, "")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// One minute past the hold deadline.
	f.clk.Advance(16 * time.Minute)

	n, err := f.svc.ExpireLapsedReservations(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired %d, want 1", n)
	}

	if got := f.appointmentStatus(t, appt.ID); got != StatusExpired {
		t.Errorf("appointment status %s, want EXPIRED", got)
	}
	if got := f.slotStatus(t, slot.ID); got != SlotAvailable {
		t.Errorf("slot status %s, want AVAILABLE", got)
	}
	if f.pub.lastType() != events.TypeExpired {
		t.Errorf("last event %q, want %q", f.pub.lastType(), events.TypeExpired)
	}

	// A second sweep finds nothing; the first one already settled the state.
	n, err = f.svc.ExpireLapsedReservations(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep expired %d, want 0", n)
	}
}

func TestSweepSkipsLiveReservations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	patientID := uuid.New()
	doctorID := uuid.New()

	confirmedSlot := f.seedSlot(t, doctorID, testMonday, 540, 15)
	pendingSlot := f.seedSlot(t, doctorID, testMonday, 600, 15)

	confirmed, err := f.svc.Reserve(ctx, patientID, confirmedSlot.ID, "")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := f.svc.Confirm(ctx, patientID, confirmed.ID, PaymentConfirmation{PaymentID: uuid.New()}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	f.clk.Advance(10 * time.Minute)
	pending, err := f.svc.Reserve(ctx, uuid.New(), pendingSlot.ID, "")
	if err != nil {
		t.Fatalf("reserve pending: %v", err)
	}

	// 16 minutes after the first reservation, 6 after the second: only a
	// confirmed appointment and a still-live hold exist.
	f.clk.Advance(6 * time.Minute)

	n, err := f.svc.ExpireLapsedReservations(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("expired %d, want 0", n)
	}
	if got := f.appointmentStatus(t, confirmed.ID); got != StatusConfirmed {
		t.Errorf("confirmed appointment became %s", got)
	}
	if got := f.appointmentStatus(t, pending.ID); got != StatusPendingPayment {
		t.Errorf("live hold became %s", got)
	}
}
