package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeReserved    = "appointment.reserved"
	TypeConfirmed   = "appointment.confirmed"
	TypeCancelled   = "appointment.cancelled"
	TypeExpired     = "appointment.expired"
	TypeCompleted   = "appointment.completed"
	TypeRescheduled = "appointment.rescheduled"
)

// Event describes one appointment lifecycle transition for external
// consumers (notifications, search indexing, review triggers).
type Event struct {
	Type          string    `json:"type"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	SlotID        uuid.UUID `json:"slot_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher is a fire-and-forget sink. Delivery failures are logged by the
// caller and never roll back the transition that produced the event.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards all events. Used in tests and when no broker is configured.
type Nop struct{}

func (Nop) Publish(ctx context.Context, ev Event) error {
	return nil
}
