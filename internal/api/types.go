package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebook/appointment-booking/internal/booking"
)

type ReserveRequest struct {
	SlotID    string `json:"slot_id"`
	PatientID string `json:"patient_id"`
	Notes     string `json:"notes,omitempty"`
}

type ConfirmRequest struct {
	PatientID     string `json:"patient_id"`
	PaymentID     string `json:"payment_id"`
	PaymentStatus string `json:"payment_status,omitempty"`
}

type CancelRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason,omitempty"`
}

type RescheduleRequest struct {
	PatientID string `json:"patient_id"`
	NewSlotID string `json:"new_slot_id"`
}

type WeeklyAvailabilityRequest struct {
	ClinicID            string `json:"clinic_id,omitempty"`
	DayOfWeek           int    `json:"day_of_week"`
	StartMinute         int    `json:"start_minute"`
	EndMinute           int    `json:"end_minute"`
	SlotDurationMinutes int    `json:"slot_duration_minutes,omitempty"`
	BufferMinutes       int    `json:"buffer_minutes,omitempty"`
	ConsultationType    string `json:"consultation_type"`
}

type BlockSlotRequest struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
	Reason  string    `json:"reason,omitempty"`
}

type AppointmentResponse struct {
	ID                uuid.UUID  `json:"id"`
	PatientID         uuid.UUID  `json:"patient_id"`
	DoctorID          uuid.UUID  `json:"doctor_id"`
	ClinicID          *uuid.UUID `json:"clinic_id,omitempty"`
	SlotID            uuid.UUID  `json:"slot_id"`
	ScheduledAt       time.Time  `json:"scheduled_at"`
	DurationMinutes   int        `json:"duration_minutes"`
	ConsultationType  string     `json:"consultation_type"`
	Status            string     `json:"status"`
	ReservedUntil     *time.Time `json:"reserved_until,omitempty"`
	TotalAmount       int64      `json:"total_amount"`
	Currency          string     `json:"currency"`
	RescheduledFromID *uuid.UUID `json:"rescheduled_from_id,omitempty"`
	RescheduledToID   *uuid.UUID `json:"rescheduled_to_id,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                a.ID,
		PatientID:         a.PatientID,
		DoctorID:          a.DoctorID,
		ClinicID:          a.ClinicID,
		SlotID:            a.SlotID,
		ScheduledAt:       a.ScheduledAt,
		DurationMinutes:   a.DurationMinutes,
		ConsultationType:  string(a.ConsultationType),
		Status:            string(a.Status),
		ReservedUntil:     a.ReservedUntil,
		TotalAmount:       a.TotalAmount,
		Currency:          a.Currency,
		RescheduledFromID: a.RescheduledFromID,
		RescheduledToID:   a.RescheduledToID,
	}
}

type SlotResponse struct {
	ID               uuid.UUID  `json:"id"`
	DoctorID         uuid.UUID  `json:"doctor_id"`
	ClinicID         *uuid.UUID `json:"clinic_id,omitempty"`
	Date             string     `json:"date"`
	StartAt          time.Time  `json:"start_at"`
	EndAt            time.Time  `json:"end_at"`
	DurationMinutes  int        `json:"duration_minutes"`
	ConsultationType string     `json:"consultation_type"`
}

type DaySlotsResponse struct {
	Date  string         `json:"date"`
	Slots []SlotResponse `json:"slots"`
}

type AvailableSlotsResponse struct {
	DoctorID uuid.UUID          `json:"doctor_id"`
	Days     []DaySlotsResponse `json:"days"`
	Total    int                `json:"total"`
}

type WeeklyAvailabilityResponse struct {
	ID                  uuid.UUID  `json:"id"`
	DoctorID            uuid.UUID  `json:"doctor_id"`
	ClinicID            *uuid.UUID `json:"clinic_id,omitempty"`
	DayOfWeek           int        `json:"day_of_week"`
	StartMinute         int        `json:"start_minute"`
	EndMinute           int        `json:"end_minute"`
	SlotDurationMinutes int        `json:"slot_duration_minutes"`
	BufferMinutes       int        `json:"buffer_minutes"`
	ConsultationType    string     `json:"consultation_type"`
	Active              bool       `json:"active"`
}

func toWeeklyAvailabilityResponse(wa *booking.WeeklyAvailability) WeeklyAvailabilityResponse {
	return WeeklyAvailabilityResponse{
		ID:                  wa.ID,
		DoctorID:            wa.DoctorID,
		ClinicID:            wa.ClinicID,
		DayOfWeek:           int(wa.DayOfWeek),
		StartMinute:         wa.StartMinute,
		EndMinute:           wa.EndMinute,
		SlotDurationMinutes: wa.SlotDurationMinutes,
		BufferMinutes:       wa.BufferMinutes,
		ConsultationType:    string(wa.ConsultationType),
		Active:              wa.Active,
	}
}

type BlockedSlotResponse struct {
	ID      uuid.UUID `json:"id"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
	Reason  string    `json:"reason,omitempty"`
}

type StatusHistoryResponse struct {
	FromStatus *string   `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	ChangedBy  *string   `json:"changed_by,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ChangedAt  time.Time `json:"changed_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
