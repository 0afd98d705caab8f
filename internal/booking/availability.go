package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/appointment-booking/internal/clock"
	"github.com/carebook/appointment-booking/internal/config"
)

// WeeklyAvailabilityParams carries the doctor-editable fields of a weekly
// template. A zero SlotDurationMinutes picks the configured default for the
// consultation type.
type WeeklyAvailabilityParams struct {
	ClinicID            *uuid.UUID
	DayOfWeek           time.Weekday
	StartMinute         int
	EndMinute           int
	SlotDurationMinutes int
	BufferMinutes       int
	ConsultationType    ConsultationType
}

// AvailabilityService manages weekly templates and blocked ranges, and keeps
// the concrete slot pool regenerated after every edit.
type AvailabilityService struct {
	repo Repository
	clk  clock.Clock
	cfg  config.Config
	log  zerolog.Logger
}

func NewAvailabilityService(repo Repository, clk clock.Clock, cfg config.Config, log zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{
		repo: repo,
		clk:  clk,
		cfg:  cfg,
		log:  log,
	}
}

func (s *AvailabilityService) WeeklySchedule(ctx context.Context, doctorID uuid.UUID) ([]WeeklyAvailability, error) {
	return s.repo.ListWeeklyAvailability(ctx, doctorID, true)
}

func (s *AvailabilityService) AddWeeklyAvailability(ctx context.Context, doctorID uuid.UUID, p WeeklyAvailabilityParams) (*WeeklyAvailability, error) {
	if err := s.validateParams(p); err != nil {
		return nil, err
	}

	existing, err := s.repo.ListWeeklyAvailability(ctx, doctorID, true)
	if err != nil {
		return nil, fmt.Errorf("list weekly availability: %w", err)
	}
	if windowOverlaps(existing, p, uuid.Nil) {
		return nil, ErrOverlappingAvailability
	}

	duration := p.SlotDurationMinutes
	if duration == 0 {
		duration = s.cfg.SlotMinutesFor(string(p.ConsultationType))
	}

	now := s.clk.Now()
	wa := &WeeklyAvailability{
		ID:                  uuid.New(),
		DoctorID:            doctorID,
		ClinicID:            p.ClinicID,
		DayOfWeek:           p.DayOfWeek,
		StartMinute:         p.StartMinute,
		EndMinute:           p.EndMinute,
		SlotDurationMinutes: duration,
		BufferMinutes:       p.BufferMinutes,
		ConsultationType:    p.ConsultationType,
		Active:              true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.repo.CreateWeeklyAvailability(ctx, wa); err != nil {
		return nil, fmt.Errorf("create weekly availability: %w", err)
	}

	if err := s.RegenerateSlots(ctx, doctorID); err != nil {
		return nil, err
	}

	return wa, nil
}

func (s *AvailabilityService) UpdateWeeklyAvailability(ctx context.Context, doctorID, id uuid.UUID, p WeeklyAvailabilityParams) (*WeeklyAvailability, error) {
	if err := s.validateParams(p); err != nil {
		return nil, err
	}

	wa, err := s.repo.GetWeeklyAvailability(ctx, id)
	if err != nil {
		return nil, err
	}
	if wa.DoctorID != doctorID {
		return nil, ErrForbidden
	}

	existing, err := s.repo.ListWeeklyAvailability(ctx, doctorID, true)
	if err != nil {
		return nil, fmt.Errorf("list weekly availability: %w", err)
	}
	if windowOverlaps(existing, p, id) {
		return nil, ErrOverlappingAvailability
	}

	duration := p.SlotDurationMinutes
	if duration == 0 {
		duration = s.cfg.SlotMinutesFor(string(p.ConsultationType))
	}

	wa.DayOfWeek = p.DayOfWeek
	wa.StartMinute = p.StartMinute
	wa.EndMinute = p.EndMinute
	wa.SlotDurationMinutes = duration
	wa.BufferMinutes = p.BufferMinutes
	wa.ConsultationType = p.ConsultationType
	wa.UpdatedAt = s.clk.Now()

	if err := s.repo.UpdateWeeklyAvailability(ctx, wa); err != nil {
		return nil, fmt.Errorf("update weekly availability: %w", err)
	}

	if err := s.RegenerateSlots(ctx, doctorID); err != nil {
		return nil, err
	}

	return wa, nil
}

// DeactivateWeeklyAvailability flips the template inactive. Templates are
// never deleted so generated slots keep their provenance.
func (s *AvailabilityService) DeactivateWeeklyAvailability(ctx context.Context, doctorID, id uuid.UUID) error {
	wa, err := s.repo.GetWeeklyAvailability(ctx, id)
	if err != nil {
		return err
	}
	if wa.DoctorID != doctorID {
		return ErrForbidden
	}

	wa.Active = false
	wa.UpdatedAt = s.clk.Now()

	if err := s.repo.UpdateWeeklyAvailability(ctx, wa); err != nil {
		return fmt.Errorf("deactivate weekly availability: %w", err)
	}

	return s.RegenerateSlots(ctx, doctorID)
}

func (s *AvailabilityService) AddBlockedSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time, reason string) (*BlockedSlot, error) {
	if !start.Before(end) {
		return nil, ErrInvalidWindow
	}

	existing, err := s.repo.ListBlockedSlots(ctx, doctorID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list blocked slots: %w", err)
	}
	for _, b := range existing {
		if b.Overlaps(start, end) {
			return nil, ErrOverlappingBlock
		}
	}

	block := &BlockedSlot{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		StartAt:   start.UTC(),
		EndAt:     end.UTC(),
		Reason:    reason,
		CreatedAt: s.clk.Now(),
	}

	if err := s.repo.CreateBlockedSlot(ctx, block); err != nil {
		return nil, fmt.Errorf("create blocked slot: %w", err)
	}

	if err := s.RegenerateSlots(ctx, doctorID); err != nil {
		return nil, err
	}

	return block, nil
}

func (s *AvailabilityService) RemoveBlockedSlot(ctx context.Context, doctorID, blockID uuid.UUID) error {
	block, err := s.repo.GetBlockedSlot(ctx, blockID)
	if err != nil {
		return err
	}
	if block.DoctorID != doctorID {
		return ErrForbidden
	}

	if err := s.repo.DeleteBlockedSlot(ctx, blockID); err != nil {
		return err
	}

	return s.RegenerateSlots(ctx, doctorID)
}

func (s *AvailabilityService) BlockedSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]BlockedSlot, error) {
	return s.repo.ListBlockedSlots(ctx, doctorID, from, to)
}

// RegenerateSlots rebuilds a doctor's future slot pool from the current
// templates and blocks. The delete is scoped to still-AVAILABLE rows, so
// in-flight reservations are never disturbed and the operation is idempotent.
func (s *AvailabilityService) RegenerateSlots(ctx context.Context, doctorID uuid.UUID) error {
	now := s.clk.Now()
	from := midnightUTC(now)
	to := from.AddDate(0, 0, s.cfg.HorizonDays)

	templates, err := s.repo.ListWeeklyAvailability(ctx, doctorID, true)
	if err != nil {
		return fmt.Errorf("list weekly availability: %w", err)
	}

	blocks, err := s.repo.ListBlockedSlots(ctx, doctorID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("list blocked slots: %w", err)
	}

	deleted, err := s.repo.DeleteAvailableSlots(ctx, doctorID, from)
	if err != nil {
		return fmt.Errorf("delete available slots: %w", err)
	}

	// Claimed slots survive the delete; their intervals must not be offered
	// a second time.
	claimed, err := s.repo.ListClaimedSlots(ctx, doctorID, from)
	if err != nil {
		return fmt.Errorf("list claimed slots: %w", err)
	}

	slots := buildSlots(doctorID, templates, blocks, claimed, from, to, now)
	if err := s.repo.InsertSlots(ctx, slots); err != nil {
		return fmt.Errorf("insert slots: %w", err)
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Int64("deleted", deleted).
		Int("generated", len(slots)).
		Msg("slot pool regenerated")

	return nil
}

// RegenerateAll rebuilds slot pools for many doctors. A failure for one
// doctor is logged and does not abort the rest of the batch.
func (s *AvailabilityService) RegenerateAll(ctx context.Context, doctorIDs []uuid.UUID) {
	for _, id := range doctorIDs {
		if err := s.RegenerateSlots(ctx, id); err != nil {
			s.log.Error().Err(err).
				Str("doctor_id", id.String()).
				Msg("slot regeneration failed")
		}
	}
}

// AvailableSlots lists a doctor's open slots in [from, to], optionally
// filtered by consultation type.
func (s *AvailabilityService) AvailableSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time, consultationType *ConsultationType) ([]AvailableSlot, error) {
	return s.repo.ListAvailableSlots(ctx, doctorID, midnightUTC(from), midnightUTC(to), consultationType)
}

func (s *AvailabilityService) validateParams(p WeeklyAvailabilityParams) error {
	if p.StartMinute >= p.EndMinute {
		return ErrInvalidWindow
	}
	if !p.ConsultationType.Valid() {
		return fmt.Errorf("unknown consultation type %q", p.ConsultationType)
	}
	if p.ConsultationType == ConsultationInPerson && p.ClinicID == nil {
		return ErrClinicRequired
	}
	return nil
}

// windowOverlaps reports whether p collides with another active window on the
// same weekday, ignoring the row identified by skip. Overlapping windows are
// rejected outright: a doctor cannot run two consultations at once.
func windowOverlaps(existing []WeeklyAvailability, p WeeklyAvailabilityParams, skip uuid.UUID) bool {
	for _, wa := range existing {
		if wa.ID == skip || wa.DayOfWeek != p.DayOfWeek {
			continue
		}
		if p.StartMinute < wa.EndMinute && wa.StartMinute < p.EndMinute {
			return true
		}
	}
	return false
}
