package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanWeeklyAvailability(row pgx.Row) (*WeeklyAvailability, error) {
	var wa WeeklyAvailability
	var day int

	err := row.Scan(
		&wa.ID,
		&wa.DoctorID,
		&wa.ClinicID,
		&day,
		&wa.StartMinute,
		&wa.EndMinute,
		&wa.SlotDurationMinutes,
		&wa.BufferMinutes,
		&wa.ConsultationType,
		&wa.Active,
		&wa.CreatedAt,
		&wa.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAvailabilityNotFound
		}
		return nil, err
	}

	wa.DayOfWeek = time.Weekday(day)
	return &wa, nil
}

func scanBlockedSlot(row pgx.Row) (*BlockedSlot, error) {
	var b BlockedSlot

	err := row.Scan(
		&b.ID,
		&b.DoctorID,
		&b.StartAt,
		&b.EndAt,
		&b.Reason,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}

	return &b, nil
}

func scanSlot(row pgx.Row) (*AvailableSlot, error) {
	var s AvailableSlot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.ClinicID,
		&s.Date,
		&s.StartMinute,
		&s.EndMinute,
		&s.ConsultationType,
		&s.DurationMinutes,
		&s.Status,
		&s.AppointmentID,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.Date = s.Date.UTC()
	return &s, nil
}

const appointmentColumns = `id, patient_id, doctor_id, clinic_id, slot_id, scheduled_at,
		duration_minutes, consultation_type, status, reserved_until, total_amount,
		currency, booking_notes, cancelled_at, cancelled_by, cancellation_reason,
		rescheduled_from_id, rescheduled_to_id, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.ClinicID,
		&a.SlotID,
		&a.ScheduledAt,
		&a.DurationMinutes,
		&a.ConsultationType,
		&a.Status,
		&a.ReservedUntil,
		&a.TotalAmount,
		&a.Currency,
		&a.BookingNotes,
		&a.CancelledAt,
		&a.CancelledBy,
		&a.CancellationReason,
		&a.RescheduledFromID,
		&a.RescheduledToID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

// Weekly availability

func (r *PgRepository) CreateWeeklyAvailability(ctx context.Context, wa *WeeklyAvailability) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO weekly_availability
			(id, doctor_id, clinic_id, day_of_week, start_minute, end_minute,
			 slot_duration_minutes, buffer_minutes, consultation_type, is_active,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, wa.ID, wa.DoctorID, wa.ClinicID, int(wa.DayOfWeek), wa.StartMinute, wa.EndMinute,
		wa.SlotDurationMinutes, wa.BufferMinutes, wa.ConsultationType, wa.Active,
		wa.CreatedAt, wa.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert weekly availability: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateWeeklyAvailability(ctx context.Context, wa *WeeklyAvailability) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE weekly_availability
		SET day_of_week = $2,
		    start_minute = $3,
		    end_minute = $4,
		    slot_duration_minutes = $5,
		    buffer_minutes = $6,
		    consultation_type = $7,
		    is_active = $8,
		    updated_at = $9
		WHERE id = $1
	`, wa.ID, int(wa.DayOfWeek), wa.StartMinute, wa.EndMinute, wa.SlotDurationMinutes,
		wa.BufferMinutes, wa.ConsultationType, wa.Active, wa.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update weekly availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAvailabilityNotFound
	}
	return nil
}

func (r *PgRepository) GetWeeklyAvailability(ctx context.Context, id uuid.UUID) (*WeeklyAvailability, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, clinic_id, day_of_week, start_minute, end_minute,
		       slot_duration_minutes, buffer_minutes, consultation_type, is_active,
		       created_at, updated_at
		FROM weekly_availability
		WHERE id = $1
	`, id)
	return scanWeeklyAvailability(row)
}

func (r *PgRepository) ListWeeklyAvailability(ctx context.Context, doctorID uuid.UUID, activeOnly bool) ([]WeeklyAvailability, error) {
	q := `
		SELECT id, doctor_id, clinic_id, day_of_week, start_minute, end_minute,
		       slot_duration_minutes, buffer_minutes, consultation_type, is_active,
		       created_at, updated_at
		FROM weekly_availability
		WHERE doctor_id = $1`
	if activeOnly {
		q += ` AND is_active`
	}
	q += ` ORDER BY day_of_week, start_minute`

	rows, err := r.pool.Query(ctx, q, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WeeklyAvailability
	for rows.Next() {
		wa, err := scanWeeklyAvailability(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *wa)
	}
	return result, rows.Err()
}

// Blocked ranges

func (r *PgRepository) CreateBlockedSlot(ctx context.Context, b *BlockedSlot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO blocked_slots (id, doctor_id, start_at, end_at, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.ID, b.DoctorID, b.StartAt, b.EndAt, b.Reason, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert blocked slot: %w", err)
	}
	return nil
}

func (r *PgRepository) GetBlockedSlot(ctx context.Context, id uuid.UUID) (*BlockedSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, start_at, end_at, reason, created_at
		FROM blocked_slots
		WHERE id = $1
	`, id)
	return scanBlockedSlot(row)
}

func (r *PgRepository) DeleteBlockedSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blocked_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete blocked slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

func (r *PgRepository) ListBlockedSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]BlockedSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, start_at, end_at, reason, created_at
		FROM blocked_slots
		WHERE doctor_id = $1
		  AND start_at < $3
		  AND end_at > $2
		ORDER BY start_at
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BlockedSlot
	for rows.Next() {
		b, err := scanBlockedSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

// Slot store

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*AvailableSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, clinic_id, slot_date, start_minute, end_minute,
		       consultation_type, duration_minutes, status, appointment_id, created_at
		FROM available_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) InsertSlots(ctx context.Context, slots []AvailableSlot) error {
	if len(slots) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, s := range slots {
		_, err := tx.Exec(ctx, `
			INSERT INTO available_slots
				(id, doctor_id, clinic_id, slot_date, start_minute, end_minute,
				 consultation_type, duration_minutes, status, appointment_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, s.ID, s.DoctorID, s.ClinicID, s.Date, s.StartMinute, s.EndMinute,
			s.ConsultationType, s.DurationMinutes, s.Status, s.AppointmentID, s.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert slot: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) DeleteAvailableSlots(ctx context.Context, doctorID uuid.UUID, fromDate time.Time) (int64, error) {
	// The status filter lives inside the DELETE so a concurrently claimed
	// slot can never be removed.
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM available_slots
		WHERE doctor_id = $1
		  AND slot_date >= $2
		  AND status = 'AVAILABLE'
	`, doctorID, fromDate)
	if err != nil {
		return 0, fmt.Errorf("delete available slots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time, consultationType *ConsultationType) ([]AvailableSlot, error) {
	q := `
		SELECT id, doctor_id, clinic_id, slot_date, start_minute, end_minute,
		       consultation_type, duration_minutes, status, appointment_id, created_at
		FROM available_slots
		WHERE doctor_id = $1
		  AND slot_date >= $2
		  AND slot_date <= $3
		  AND status = 'AVAILABLE'`
	args := []any{doctorID, from, to}
	if consultationType != nil {
		args = append(args, *consultationType)
		q += ` AND consultation_type = $` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY slot_date, start_minute`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailableSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListClaimedSlots(ctx context.Context, doctorID uuid.UUID, fromDate time.Time) ([]AvailableSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, clinic_id, slot_date, start_minute, end_minute,
		       consultation_type, duration_minutes, status, appointment_id, created_at
		FROM available_slots
		WHERE doctor_id = $1
		  AND slot_date >= $2
		  AND status <> 'AVAILABLE'
	`, doctorID, fromDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailableSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) ClaimSlot(ctx context.Context, slotID, appointmentID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE available_slots
		SET status = 'HELD',
		    appointment_id = $2
		WHERE id = $1
		  AND status = 'AVAILABLE'
	`, slotID, appointmentID)
	if err != nil {
		return false, fmt.Errorf("claim slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) ReleaseSlot(ctx context.Context, slotID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE available_slots
		SET status = 'AVAILABLE',
		    appointment_id = NULL
		WHERE id = $1
		  AND status IN ('HELD', 'BOOKED')
	`, slotID)
	if err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) FinalizeSlot(ctx context.Context, slotID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE available_slots
		SET status = 'BOOKED'
		WHERE id = $1
		  AND status = 'HELD'
	`, slotID)
	if err != nil {
		return false, fmt.Errorf("finalize slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Appointments

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments
			(id, patient_id, doctor_id, clinic_id, slot_id, scheduled_at,
			 duration_minutes, consultation_type, status, reserved_until,
			 total_amount, currency, booking_notes, rescheduled_from_id,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, a.ID, a.PatientID, a.DoctorID, a.ClinicID, a.SlotID, a.ScheduledAt,
		a.DurationMinutes, a.ConsultationType, a.Status, a.ReservedUntil,
		a.TotalAmount, a.Currency, a.BookingNotes, a.RescheduledFromID,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) MarkCancelled(ctx context.Context, id uuid.UUID, from AppointmentStatus, cancelledBy uuid.UUID, reason string, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'CANCELLED',
		    cancelled_at = $2,
		    cancelled_by = $3,
		    cancellation_reason = $4,
		    updated_at = $2
		WHERE id = $1
		  AND status = $5
		RETURNING `+appointmentColumns+`
	`, id, at, cancelledBy, reason, from)
	return scanAppointment(row)
}

func (r *PgRepository) MarkRescheduled(ctx context.Context, id uuid.UUID, from AppointmentStatus, replacementID uuid.UUID, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'RESCHEDULED',
		    rescheduled_to_id = $2,
		    updated_at = $3
		WHERE id = $1
		  AND status = $4
		RETURNING `+appointmentColumns+`
	`, id, replacementID, at, from)
	return scanAppointment(row)
}

func (r *PgRepository) FindExpiredReservations(ctx context.Context, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'PENDING_PAYMENT'
		  AND reserved_until IS NOT NULL
		  AND reserved_until < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListPatientAppointments(ctx context.Context, patientID uuid.UUID, f AppointmentFilter) ([]Appointment, error) {
	q := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = $1`
	args := []any{patientID}

	if f.Status != nil {
		args = append(args, *f.Status)
		q += ` AND status = $` + strconv.Itoa(len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		q += ` AND scheduled_at >= $` + strconv.Itoa(len(args))
	}

	args = append(args, f.Limit)
	q += ` ORDER BY scheduled_at DESC LIMIT $` + strconv.Itoa(len(args))
	args = append(args, f.Offset)
	q += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, f AppointmentFilter) ([]Appointment, error) {
	q := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1`
	args := []any{doctorID}

	if f.Status != nil {
		args = append(args, *f.Status)
		q += ` AND status = $` + strconv.Itoa(len(args))
	}
	if f.Date != nil {
		args = append(args, *f.Date)
		q += ` AND scheduled_at::date = $` + strconv.Itoa(len(args)) + `::date`
	}
	q += ` ORDER BY scheduled_at ASC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// Audit trail

func (r *PgRepository) InsertStatusHistory(ctx context.Context, h StatusHistory) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_status_history
			(id, appointment_id, from_status, to_status, changed_by, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, h.ID, h.AppointmentID, h.FromStatus, h.ToStatus, h.ChangedBy, h.Reason, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

func (r *PgRepository) ListStatusHistory(ctx context.Context, appointmentID uuid.UUID) ([]StatusHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, from_status, to_status, changed_by, reason, created_at
		FROM appointment_status_history
		WHERE appointment_id = $1
		ORDER BY created_at
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []StatusHistory
	for rows.Next() {
		var h StatusHistory
		err := rows.Scan(&h.ID, &h.AppointmentID, &h.FromStatus, &h.ToStatus,
			&h.ChangedBy, &h.Reason, &h.CreatedAt)
		if err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}
