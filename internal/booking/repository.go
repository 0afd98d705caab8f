package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppointmentFilter narrows appointment listings. Zero-value fields are
// ignored; Limit is clamped by the service.
type AppointmentFilter struct {
	Status *AppointmentStatus
	From   *time.Time // appointments scheduled at or after this instant
	Date   *time.Time // appointments on this calendar day
	Limit  int
	Offset int
}

// Repository contains all storage interactions needed by the services.
//
// ClaimSlot, ReleaseSlot, FinalizeSlot and the guarded appointment updates
// must each be a single atomic conditional write at the storage layer:
// concurrent reservation attempts for the same slot are the core correctness
// hazard, and a read-then-write pair cannot exclude them.
type Repository interface {
	// Weekly availability templates
	CreateWeeklyAvailability(ctx context.Context, wa *WeeklyAvailability) error
	UpdateWeeklyAvailability(ctx context.Context, wa *WeeklyAvailability) error
	GetWeeklyAvailability(ctx context.Context, id uuid.UUID) (*WeeklyAvailability, error)
	ListWeeklyAvailability(ctx context.Context, doctorID uuid.UUID, activeOnly bool) ([]WeeklyAvailability, error)

	// Blocked ranges
	CreateBlockedSlot(ctx context.Context, b *BlockedSlot) error
	GetBlockedSlot(ctx context.Context, id uuid.UUID) (*BlockedSlot, error)
	DeleteBlockedSlot(ctx context.Context, id uuid.UUID) error
	ListBlockedSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]BlockedSlot, error)

	// Slot store
	GetSlotByID(ctx context.Context, id uuid.UUID) (*AvailableSlot, error)
	InsertSlots(ctx context.Context, slots []AvailableSlot) error
	// DeleteAvailableSlots removes a doctor's still-AVAILABLE slots dated on
	// or after fromDate. The status filter is part of the delete itself so a
	// slot that has just been claimed can never be removed.
	DeleteAvailableSlots(ctx context.Context, doctorID uuid.UUID, fromDate time.Time) (int64, error)
	ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time, consultationType *ConsultationType) ([]AvailableSlot, error)
	// ListClaimedSlots returns a doctor's HELD and BOOKED slots dated on or
	// after fromDate. Regeneration uses it to avoid re-creating intervals
	// that survive the delete.
	ListClaimedSlots(ctx context.Context, doctorID uuid.UUID, fromDate time.Time) ([]AvailableSlot, error)

	// Atomic transitions. Each returns whether the guarded write applied.
	ClaimSlot(ctx context.Context, slotID, appointmentID uuid.UUID) (bool, error)   // AVAILABLE -> HELD
	ReleaseSlot(ctx context.Context, slotID uuid.UUID) (bool, error)                // HELD|BOOKED -> AVAILABLE
	FinalizeSlot(ctx context.Context, slotID uuid.UUID) (bool, error)               // HELD -> BOOKED

	// Appointments
	CreateAppointment(ctx context.Context, a *Appointment) error
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateAppointmentStatus applies from -> to only if the row is still in
	// from; ErrAppointmentNotFound when no row matched.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, from AppointmentStatus, cancelledBy uuid.UUID, reason string, at time.Time) (*Appointment, error)
	MarkRescheduled(ctx context.Context, id uuid.UUID, from AppointmentStatus, replacementID uuid.UUID, at time.Time) (*Appointment, error)

	// Expiry sweeper
	FindExpiredReservations(ctx context.Context, now time.Time) ([]Appointment, error)

	ListPatientAppointments(ctx context.Context, patientID uuid.UUID, f AppointmentFilter) ([]Appointment, error)
	ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, f AppointmentFilter) ([]Appointment, error)

	// Audit trail
	InsertStatusHistory(ctx context.Context, h StatusHistory) error
	ListStatusHistory(ctx context.Context, appointmentID uuid.UUID) ([]StatusHistory, error)
}
