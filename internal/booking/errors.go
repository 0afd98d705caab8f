package booking

import "errors"

var (
	ErrSlotUnavailable         = errors.New("slot is no longer available")
	ErrInvalidState            = errors.New("invalid status transition")
	ErrReservationExpired      = errors.New("reservation hold has expired")
	ErrForbidden               = errors.New("actor is not authorized for this appointment")
	ErrSlotNotFound            = errors.New("slot not found")
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrAvailabilityNotFound    = errors.New("availability entry not found")
	ErrBlockNotFound           = errors.New("blocked slot not found")
	ErrOverlappingBlock        = errors.New("blocked range overlaps an existing block")
	ErrOverlappingAvailability = errors.New("availability window overlaps an existing entry")
	ErrPastSlot                = errors.New("cannot book a slot in the past")
	ErrClinicRequired          = errors.New("clinic is required for in-person consultations")
	ErrInvalidWindow           = errors.New("start time must be before end time")
)
