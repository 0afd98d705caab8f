package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func videoWindow(startMinute, endMinute int) WeeklyAvailabilityParams {
	return WeeklyAvailabilityParams{
		DayOfWeek:        time.Monday,
		StartMinute:      startMinute,
		EndMinute:        endMinute,
		ConsultationType: ConsultationVideo,
	}
}

func TestAddWeeklyAvailabilityGeneratesSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctorID := uuid.New()

	wa, err := f.availability.AddWeeklyAvailability(ctx, doctorID, videoWindow(540, 600))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if wa.SlotDurationMinutes != 15 {
		t.Errorf("duration defaulted to %d, want 15", wa.SlotDurationMinutes)
	}
	if !wa.Active {
		t.Error("new template not active")
	}

	slots, err := f.availability.AvailableSlots(ctx, doctorID, testMonday, testMonday, nil)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(slots) != 4 {
		t.Errorf("generated %d slots for the first Monday, want 4", len(slots))
	}
}

func TestAddWeeklyAvailabilityRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctorID := uuid.New()

	if _, err := f.availability.AddWeeklyAvailability(ctx, doctorID, videoWindow(540, 600)); err != nil {
		t.Fatalf("add first: %v", err)
	}

	_, err := f.availability.AddWeeklyAvailability(ctx, doctorID, videoWindow(570, 630))
	if !errors.Is(err, ErrOverlappingAvailability) {
		t.Fatalf("got %v, want ErrOverlappingAvailability", err)
	}

	// Adjacent windows touch but do not overlap.
	if _, err := f.availability.AddWeeklyAvailability(ctx, doctorID, videoWindow(600, 660)); err != nil {
		t.Fatalf("add adjacent: %v", err)
	}
}

func TestAddWeeklyAvailabilityValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctorID := uuid.New()

	if _, err := f.availability.AddWeeklyAvailability(ctx, doctorID, videoWindow(600, 540)); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("inverted window: got %v, want ErrInvalidWindow", err)
	}

	inPerson := videoWindow(540, 600)
	inPerson.ConsultationType = ConsultationInPerson
	if _, err := f.availability.AddWeeklyAvailability(ctx, doctorID, inPerson); !errors.Is(err, ErrClinicRequired) {
		t.Errorf("in-person without clinic: got %v, want ErrClinicRequired", err)
	}

	clinicID := uuid.New()
	inPerson.ClinicID = &clinicID
	wa, err := f.availability.AddWeeklyAvailability(ctx, doctorID, inPerson)
	if err != nil {
		t.Fatalf("in-person with clinic: %v", err)
	}
	if wa.SlotDurationMinutes != 30 {
		t.Errorf("in-person duration defaulted to %d, want 30", wa.SlotDurationMinutes)
	}
}

func TestDeactivateKeepsTemplateRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctorID := uuid.New()

	wa, err := f.availability.AddWeeklyAvailability(ctx, doctorID, videoWindow(540, 600))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := f.availability.DeactivateWeeklyAvailability(ctx, doctorID, wa.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	schedule, err := f.availability.WeeklySchedule(ctx, doctorID)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(schedule) != 0 {
		t.Errorf("active schedule has %d rows, want 0", len(schedule))
	}

	// The row itself survives for provenance.
	kept, err := f.repo.GetWeeklyAvailability(ctx, wa.ID)
	if err != nil {
		t.Fatalf("template row deleted: %v", err)
	}
	if kept.Active {
		t.Error("template still active")
	}

	slots, err := f.availability.AvailableSlots(ctx, doctorID, testMonday, testMonday.AddDate(0, 0, 14), nil)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("%d slots remain after deactivation, want 0", len(slots))
	}
}

func TestUpdateWeeklyAvailabilityWrongDoctor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctorID := uuid.New()

	wa, err := f.availability.AddWeeklyAvailability(ctx, doctorID, videoWindow(540, 600))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	_, err = f.availability.UpdateWeeklyAvailability(ctx, uuid.New(), wa.ID, videoWindow(540, 660))
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
}

func TestAddBlockedSlotRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctorID := uuid.New()

	start := testMonday.Add(9 * time.Hour)
	if _, err := f.availability.AddBlockedSlot(ctx, doctorID, start, start.Add(time.Hour), "surgery"); err != nil {
		t.Fatalf("add block: %v", err)
	}

	_, err := f.availability.AddBlockedSlot(ctx, doctorID, start.Add(30*time.Minute), start.Add(2*time.Hour), "meeting")
	if !errors.Is(err, ErrOverlappingBlock) {
		t.Fatalf("got %v, want ErrOverlappingBlock", err)
	}

	if _, err := f.availability.AddBlockedSlot(ctx, doctorID, start, start, "empty"); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("empty range: got %v, want ErrInvalidWindow", err)
	}
}

func TestBlockRemovesGeneratedSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctorID := uuid.New()

	if _, err := f.availability.AddWeeklyAvailability(ctx, doctorID, videoWindow(540, 600)); err != nil {
		t.Fatalf("add availability: %v", err)
	}

	// Block 09:15-09:45 on the first Monday.
	block, err := f.availability.AddBlockedSlot(ctx, doctorID,
		testMonday.Add(9*time.Hour+15*time.Minute),
		testMonday.Add(9*time.Hour+45*time.Minute), "admin time")
	if err != nil {
		t.Fatalf("add block: %v", err)
	}

	slots, err := f.availability.AvailableSlots(ctx, doctorID, testMonday, testMonday, nil)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("%d slots on blocked Monday, want 2", len(slots))
	}

	// Removing the block restores the full pool.
	if err := f.availability.RemoveBlockedSlot(ctx, doctorID, block.ID); err != nil {
		t.Fatalf("remove block: %v", err)
	}
	slots, err = f.availability.AvailableSlots(ctx, doctorID, testMonday, testMonday, nil)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(slots) != 4 {
		t.Errorf("%d slots after unblock, want 4", len(slots))
	}
}

func TestRemoveBlockedSlotWrongDoctor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctorID := uuid.New()

	start := testMonday.Add(9 * time.Hour)
	block, err := f.availability.AddBlockedSlot(ctx, doctorID, start, start.Add(time.Hour), "surgery")
	if err != nil {
		t.Fatalf("add block: %v", err)
	}

	if err := f.availability.RemoveBlockedSlot(ctx, uuid.New(), block.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
}
