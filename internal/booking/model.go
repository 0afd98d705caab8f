package booking

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPendingPayment AppointmentStatus = "PENDING_PAYMENT"
	StatusConfirmed      AppointmentStatus = "CONFIRMED"
	StatusCompleted      AppointmentStatus = "COMPLETED"
	StatusCancelled      AppointmentStatus = "CANCELLED"
	StatusExpired        AppointmentStatus = "EXPIRED"
	StatusRescheduled    AppointmentStatus = "RESCHEDULED"
)

// validTransitions is the whole lifecycle. Anything not listed is rejected
// with ErrInvalidState, never silently ignored.
var validTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPendingPayment: {StatusConfirmed, StatusCancelled, StatusExpired},
	StatusConfirmed:      {StatusCompleted, StatusCancelled, StatusRescheduled},
}

func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition leaves the status.
func (s AppointmentStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

type SlotStatus string

const (
	SlotAvailable SlotStatus = "AVAILABLE"
	SlotHeld      SlotStatus = "HELD"
	SlotBooked    SlotStatus = "BOOKED"
)

type ConsultationType string

const (
	ConsultationVideo    ConsultationType = "VIDEO"
	ConsultationInPerson ConsultationType = "IN_PERSON"
	ConsultationAudio    ConsultationType = "AUDIO"
	ConsultationChat     ConsultationType = "CHAT"
)

func (t ConsultationType) Valid() bool {
	switch t {
	case ConsultationVideo, ConsultationInPerson, ConsultationAudio, ConsultationChat:
		return true
	}
	return false
}

// WeeklyAvailability is a doctor's recurring template for one weekday.
// Rows are deactivated rather than deleted so generated slots keep their
// provenance.
type WeeklyAvailability struct {
	ID                  uuid.UUID
	DoctorID            uuid.UUID
	ClinicID            *uuid.UUID
	DayOfWeek           time.Weekday
	StartMinute         int // minute of day, inclusive
	EndMinute           int // minute of day, exclusive
	SlotDurationMinutes int
	BufferMinutes       int
	ConsultationType    ConsultationType
	Active              bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// BlockedSlot overrides availability for a concrete time range (leave,
// personal block).
type BlockedSlot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	StartAt   time.Time
	EndAt     time.Time
	Reason    string
	CreatedAt time.Time
}

func (b BlockedSlot) Overlaps(start, end time.Time) bool {
	return b.StartAt.Before(end) && start.Before(b.EndAt)
}

// AvailableSlot is one concrete bookable interval. Status changes only
// through the repository's conditional-update primitives.
type AvailableSlot struct {
	ID               uuid.UUID
	DoctorID         uuid.UUID
	ClinicID         *uuid.UUID
	Date             time.Time // midnight UTC of the slot's calendar day
	StartMinute      int
	EndMinute        int
	ConsultationType ConsultationType
	DurationMinutes  int
	Status           SlotStatus
	AppointmentID    *uuid.UUID
	CreatedAt        time.Time
}

// StartAt returns the slot's starting instant.
func (s AvailableSlot) StartAt() time.Time {
	return s.Date.Add(time.Duration(s.StartMinute) * time.Minute)
}

// EndAt returns the slot's ending instant.
func (s AvailableSlot) EndAt() time.Time {
	return s.Date.Add(time.Duration(s.EndMinute) * time.Minute)
}

type Appointment struct {
	ID                 uuid.UUID
	PatientID          uuid.UUID
	DoctorID           uuid.UUID
	ClinicID           *uuid.UUID
	SlotID             uuid.UUID
	ScheduledAt        time.Time
	DurationMinutes    int
	ConsultationType   ConsultationType
	Status             AppointmentStatus
	ReservedUntil      *time.Time
	TotalAmount        int64 // minor currency units
	Currency           string
	BookingNotes       string
	CancelledAt        *time.Time
	CancelledBy        *uuid.UUID
	CancellationReason *string
	RescheduledFromID  *uuid.UUID
	RescheduledToID    *uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StatusHistory is the append-only audit trail. One row per transition.
type StatusHistory struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	FromStatus    *AppointmentStatus
	ToStatus      AppointmentStatus
	ChangedBy     *uuid.UUID
	Reason        string
	CreatedAt     time.Time
}
