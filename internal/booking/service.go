package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/appointment-booking/internal/clock"
	"github.com/carebook/appointment-booking/internal/config"
	"github.com/carebook/appointment-booking/internal/events"
)

// PaymentConfirmation is the inbound proof-of-payment signal. The gateway
// integration itself lives outside this service.
type PaymentConfirmation struct {
	PaymentID uuid.UUID
	Status    string
}

// Service orchestrates the reservation lifecycle on top of the slot store's
// atomic claim/release/finalize primitives. It holds no locks of its own:
// multiple instances may run these operations concurrently.
type Service struct {
	repo Repository
	pub  events.Publisher
	clk  clock.Clock
	cfg  config.Config
	log  zerolog.Logger
}

func NewService(repo Repository, pub events.Publisher, clk clock.Clock, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		pub:  pub,
		clk:  clk,
		cfg:  cfg,
		log:  log,
	}
}

// Reserve claims a slot for a patient and creates the appointment in
// PENDING_PAYMENT with a hold deadline. Exactly one concurrent Reserve per
// slot can succeed; the rest observe ErrSlotUnavailable.
func (s *Service) Reserve(ctx context.Context, patientID, slotID uuid.UUID, notes string) (*Appointment, error) {
	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	if slot.StartAt().Before(now) {
		return nil, ErrPastSlot
	}

	appointmentID := uuid.New()

	claimed, err := s.repo.ClaimSlot(ctx, slot.ID, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("claim slot: %w", err)
	}
	if !claimed {
		return nil, ErrSlotUnavailable
	}

	reservedUntil := now.Add(s.cfg.HoldWindow)
	appt := &Appointment{
		ID:               appointmentID,
		PatientID:        patientID,
		DoctorID:         slot.DoctorID,
		ClinicID:         slot.ClinicID,
		SlotID:           slot.ID,
		ScheduledAt:      slot.StartAt(),
		DurationMinutes:  slot.DurationMinutes,
		ConsultationType: slot.ConsultationType,
		Status:           StatusPendingPayment,
		ReservedUntil:    &reservedUntil,
		TotalAmount:      s.cfg.FeeFor(string(slot.ConsultationType)),
		Currency:         s.cfg.Currency,
		BookingNotes:     notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.CreateAppointment(ctx, appt); err != nil {
		// Claim succeeded but the appointment did not materialise: hand the
		// slot back before surfacing the error so no HELD slot is orphaned.
		if _, relErr := s.repo.ReleaseSlot(ctx, slot.ID); relErr != nil {
			s.log.Error().Err(relErr).
				Str("slot_id", slot.ID.String()).
				Msg("failed to release slot after create failure")
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.recordHistory(ctx, appt.ID, nil, StatusPendingPayment, &patientID, "slot reserved")
	s.publish(ctx, events.TypeReserved, appt)

	return appt, nil
}

// Confirm moves a pending appointment to CONFIRMED on receipt of the payment
// signal. The hold deadline is re-checked here against the injected clock;
// sweeper timing is never trusted.
func (s *Service) Confirm(ctx context.Context, patientID, appointmentID uuid.UUID, payment PaymentConfirmation) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if appt.PatientID != patientID {
		return nil, ErrForbidden
	}
	if appt.Status != StatusPendingPayment {
		return nil, ErrInvalidState
	}

	now := s.clk.Now()
	if appt.ReservedUntil != nil && appt.ReservedUntil.Before(now) {
		// Lapsed but not yet swept. Expire it here rather than wait for the
		// sweeper, then report the expiry to the caller.
		if expired, updErr := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPendingPayment, StatusExpired); updErr == nil {
			s.releaseSlot(ctx, appt.SlotID)
			s.recordHistory(ctx, appt.ID, &appt.Status, StatusExpired, nil, "confirm attempted after hold deadline")
			s.publish(ctx, events.TypeExpired, expired)
		} else if !errors.Is(updErr, ErrAppointmentNotFound) {
			s.log.Error().Err(updErr).
				Str("appointment_id", appt.ID.String()).
				Msg("failed to expire lapsed appointment during confirm")
		}
		return nil, ErrReservationExpired
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPendingPayment, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race with a cancel or sweep.
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	if ok, err := s.repo.FinalizeSlot(ctx, updated.SlotID); err != nil || !ok {
		s.log.Error().Err(err).
			Str("slot_id", updated.SlotID.String()).
			Bool("applied", ok).
			Msg("slot finalize did not apply after confirm")
	}

	s.recordHistory(ctx, updated.ID, &appt.Status, StatusConfirmed, &patientID,
		fmt.Sprintf("payment %s confirmed", payment.PaymentID))
	s.publish(ctx, events.TypeConfirmed, updated)

	return updated, nil
}

// Cancel is valid from PENDING_PAYMENT or CONFIRMED and only for the patient
// or doctor on the appointment. The slot is handed back to the pool.
func (s *Service) Cancel(ctx context.Context, userID, appointmentID uuid.UUID, reason string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if userID != appt.PatientID && userID != appt.DoctorID {
		return nil, ErrForbidden
	}
	if !CanTransition(appt.Status, StatusCancelled) {
		return nil, ErrInvalidState
	}

	updated, err := s.repo.MarkCancelled(ctx, appt.ID, appt.Status, userID, reason, s.clk.Now())
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.releaseSlot(ctx, updated.SlotID)
	s.recordHistory(ctx, updated.ID, &appt.Status, StatusCancelled, &userID, reason)
	s.publish(ctx, events.TypeCancelled, updated)

	return updated, nil
}

// Complete records the external consultation-completion signal. The slot
// stays BOOKED; the interval was consumed.
func (s *Service) Complete(ctx context.Context, appointmentID uuid.UUID) (*Appointment, error) {
	updated, err := s.repo.UpdateAppointmentStatus(ctx, appointmentID, StatusConfirmed, StatusCompleted)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			if _, getErr := s.repo.GetAppointmentByID(ctx, appointmentID); getErr != nil {
				return nil, getErr
			}
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	from := StatusConfirmed
	s.recordHistory(ctx, updated.ID, &from, StatusCompleted, nil, "consultation completed")
	s.publish(ctx, events.TypeCompleted, updated)

	return updated, nil
}

// Reschedule moves a confirmed appointment to a new slot. The old record
// becomes terminal RESCHEDULED with an explicit forward reference to its
// replacement; the replacement is created already CONFIRMED since payment
// carries over.
func (s *Service) Reschedule(ctx context.Context, patientID, appointmentID, newSlotID uuid.UUID) (*Appointment, error) {
	old, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if old.PatientID != patientID {
		return nil, ErrForbidden
	}
	if old.Status != StatusConfirmed {
		return nil, ErrInvalidState
	}

	newSlot, err := s.repo.GetSlotByID(ctx, newSlotID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	if newSlot.StartAt().Before(now) {
		return nil, ErrPastSlot
	}

	replacementID := uuid.New()

	claimed, err := s.repo.ClaimSlot(ctx, newSlot.ID, replacementID)
	if err != nil {
		return nil, fmt.Errorf("claim slot: %w", err)
	}
	if !claimed {
		return nil, ErrSlotUnavailable
	}

	oldID := old.ID
	replacement := &Appointment{
		ID:                replacementID,
		PatientID:         old.PatientID,
		DoctorID:          newSlot.DoctorID,
		ClinicID:          newSlot.ClinicID,
		SlotID:            newSlot.ID,
		ScheduledAt:       newSlot.StartAt(),
		DurationMinutes:   newSlot.DurationMinutes,
		ConsultationType:  newSlot.ConsultationType,
		Status:            StatusConfirmed,
		TotalAmount:       old.TotalAmount,
		Currency:          old.Currency,
		BookingNotes:      old.BookingNotes,
		RescheduledFromID: &oldID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.CreateAppointment(ctx, replacement); err != nil {
		if _, relErr := s.repo.ReleaseSlot(ctx, newSlot.ID); relErr != nil {
			s.log.Error().Err(relErr).
				Str("slot_id", newSlot.ID.String()).
				Msg("failed to release slot after create failure")
		}
		return nil, fmt.Errorf("create replacement appointment: %w", err)
	}

	if ok, err := s.repo.FinalizeSlot(ctx, newSlot.ID); err != nil || !ok {
		s.log.Error().Err(err).
			Str("slot_id", newSlot.ID.String()).
			Bool("applied", ok).
			Msg("slot finalize did not apply after reschedule")
	}

	updatedOld, err := s.repo.MarkRescheduled(ctx, old.ID, StatusConfirmed, replacementID, now)
	if err != nil {
		// The old record changed under us (cancelled or completed). Unwind
		// the replacement so no second active appointment survives.
		if _, cErr := s.repo.MarkCancelled(ctx, replacementID, StatusConfirmed, patientID, "reschedule aborted", now); cErr != nil {
			s.log.Error().Err(cErr).
				Str("appointment_id", replacementID.String()).
				Msg("failed to unwind replacement appointment")
		}
		s.releaseSlot(ctx, newSlot.ID)
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("mark rescheduled: %w", err)
	}

	s.releaseSlot(ctx, updatedOld.SlotID)

	from := StatusConfirmed
	s.recordHistory(ctx, updatedOld.ID, &from, StatusRescheduled, &patientID, "rescheduled to new slot")
	s.recordHistory(ctx, replacement.ID, nil, StatusConfirmed, &patientID, "created by reschedule")
	s.publish(ctx, events.TypeRescheduled, updatedOld)

	return replacement, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

func (s *Service) History(ctx context.Context, appointmentID uuid.UUID) ([]StatusHistory, error) {
	return s.repo.ListStatusHistory(ctx, appointmentID)
}

func (s *Service) PatientAppointments(ctx context.Context, patientID uuid.UUID, f AppointmentFilter) ([]Appointment, error) {
	f = clampFilter(f)
	appts, err := s.repo.ListPatientAppointments(ctx, patientID, f)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	return appts, nil
}

func (s *Service) DoctorAppointments(ctx context.Context, doctorID uuid.UUID, f AppointmentFilter) ([]Appointment, error) {
	appts, err := s.repo.ListDoctorAppointments(ctx, doctorID, f)
	if err != nil {
		return nil, fmt.Errorf("list doctor appointments: %w", err)
	}
	return appts, nil
}

func clampFilter(f AppointmentFilter) AppointmentFilter {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func (s *Service) releaseSlot(ctx context.Context, slotID uuid.UUID) {
	ok, err := s.repo.ReleaseSlot(ctx, slotID)
	if err != nil {
		s.log.Error().Err(err).
			Str("slot_id", slotID.String()).
			Msg("failed to release slot")
		return
	}
	if !ok {
		s.log.Warn().
			Str("slot_id", slotID.String()).
			Msg("slot release did not apply")
	}
}

func (s *Service) recordHistory(ctx context.Context, appointmentID uuid.UUID, from *AppointmentStatus, to AppointmentStatus, changedBy *uuid.UUID, reason string) {
	h := StatusHistory{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		FromStatus:    from,
		ToStatus:      to,
		ChangedBy:     changedBy,
		Reason:        reason,
		CreatedAt:     s.clk.Now(),
	}
	if err := s.repo.InsertStatusHistory(ctx, h); err != nil {
		s.log.Error().Err(err).
			Str("appointment_id", appointmentID.String()).
			Str("to_status", string(to)).
			Msg("failed to record status history")
	}
}

// publish sends a lifecycle event. Failures are logged only: events are
// best-effort notifications, not part of the consistency boundary.
func (s *Service) publish(ctx context.Context, eventType string, appt *Appointment) {
	ev := events.Event{
		Type:          eventType,
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		SlotID:        appt.SlotID,
		ScheduledAt:   appt.ScheduledAt,
		Status:        string(appt.Status),
		OccurredAt:    s.clk.Now(),
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appt.ID.String()).
			Msg("failed to publish event")
	}
}
