package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded in-memory Repository. It preserves the
// same conditional-update semantics as the Postgres implementation: every
// status transition is a compare-and-set under one lock acquisition.
type MemoryRepository struct {
	mu           sync.Mutex
	availability map[uuid.UUID]WeeklyAvailability
	blocks       map[uuid.UUID]BlockedSlot
	slots        map[uuid.UUID]AvailableSlot
	appointments map[uuid.UUID]Appointment
	history      []StatusHistory
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		availability: make(map[uuid.UUID]WeeklyAvailability),
		blocks:       make(map[uuid.UUID]BlockedSlot),
		slots:        make(map[uuid.UUID]AvailableSlot),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

// Weekly availability

func (r *MemoryRepository) CreateWeeklyAvailability(ctx context.Context, wa *WeeklyAvailability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.availability[wa.ID] = *wa
	return nil
}

func (r *MemoryRepository) UpdateWeeklyAvailability(ctx context.Context, wa *WeeklyAvailability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.availability[wa.ID]; !ok {
		return ErrAvailabilityNotFound
	}
	r.availability[wa.ID] = *wa
	return nil
}

func (r *MemoryRepository) GetWeeklyAvailability(ctx context.Context, id uuid.UUID) (*WeeklyAvailability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wa, ok := r.availability[id]
	if !ok {
		return nil, ErrAvailabilityNotFound
	}
	return &wa, nil
}

func (r *MemoryRepository) ListWeeklyAvailability(ctx context.Context, doctorID uuid.UUID, activeOnly bool) ([]WeeklyAvailability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []WeeklyAvailability
	for _, wa := range r.availability {
		if wa.DoctorID != doctorID {
			continue
		}
		if activeOnly && !wa.Active {
			continue
		}
		result = append(result, wa)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DayOfWeek != result[j].DayOfWeek {
			return result[i].DayOfWeek < result[j].DayOfWeek
		}
		return result[i].StartMinute < result[j].StartMinute
	})
	return result, nil
}

// Blocked ranges

func (r *MemoryRepository) CreateBlockedSlot(ctx context.Context, b *BlockedSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks[b.ID] = *b
	return nil
}

func (r *MemoryRepository) GetBlockedSlot(ctx context.Context, id uuid.UUID) (*BlockedSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blocks[id]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return &b, nil
}

func (r *MemoryRepository) DeleteBlockedSlot(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blocks[id]; !ok {
		return ErrBlockNotFound
	}
	delete(r.blocks, id)
	return nil
}

func (r *MemoryRepository) ListBlockedSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]BlockedSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []BlockedSlot
	for _, b := range r.blocks {
		if b.DoctorID != doctorID {
			continue
		}
		if !b.Overlaps(from, to) {
			continue
		}
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartAt.Before(result[j].StartAt)
	})
	return result, nil
}

// Slot store

func (r *MemoryRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*AvailableSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) InsertSlots(ctx context.Context, slots []AvailableSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range slots {
		r.slots[s.ID] = s
	}
	return nil
}

func (r *MemoryRepository) DeleteAvailableSlots(ctx context.Context, doctorID uuid.UUID, fromDate time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, s := range r.slots {
		if s.DoctorID != doctorID || s.Status != SlotAvailable {
			continue
		}
		if s.Date.Before(fromDate) {
			continue
		}
		delete(r.slots, id)
		deleted++
	}
	return deleted, nil
}

func (r *MemoryRepository) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time, consultationType *ConsultationType) ([]AvailableSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []AvailableSlot
	for _, s := range r.slots {
		if s.DoctorID != doctorID || s.Status != SlotAvailable {
			continue
		}
		if s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		if consultationType != nil && s.ConsultationType != *consultationType {
			continue
		}
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].StartMinute < result[j].StartMinute
	})
	return result, nil
}

func (r *MemoryRepository) ListClaimedSlots(ctx context.Context, doctorID uuid.UUID, fromDate time.Time) ([]AvailableSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []AvailableSlot
	for _, s := range r.slots {
		if s.DoctorID != doctorID || s.Status == SlotAvailable {
			continue
		}
		if s.Date.Before(fromDate) {
			continue
		}
		result = append(result, s)
	}
	return result, nil
}

func (r *MemoryRepository) ClaimSlot(ctx context.Context, slotID, appointmentID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok || s.Status != SlotAvailable {
		return false, nil
	}
	s.Status = SlotHeld
	apptID := appointmentID
	s.AppointmentID = &apptID
	r.slots[slotID] = s
	return true, nil
}

func (r *MemoryRepository) ReleaseSlot(ctx context.Context, slotID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok || (s.Status != SlotHeld && s.Status != SlotBooked) {
		return false, nil
	}
	s.Status = SlotAvailable
	s.AppointmentID = nil
	r.slots[slotID] = s
	return true, nil
}

func (r *MemoryRepository) FinalizeSlot(ctx context.Context, slotID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok || s.Status != SlotHeld {
		return false, nil
	}
	s.Status = SlotBooked
	r.slots[slotID] = s
	return true, nil
}

// Appointments

func (r *MemoryRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) MarkCancelled(ctx context.Context, id uuid.UUID, from AppointmentStatus, cancelledBy uuid.UUID, reason string, at time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	by := cancelledBy
	cancelledAt := at
	a.Status = StatusCancelled
	a.CancelledAt = &cancelledAt
	a.CancelledBy = &by
	a.CancellationReason = &reason
	a.UpdatedAt = at
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) MarkRescheduled(ctx context.Context, id uuid.UUID, from AppointmentStatus, replacementID uuid.UUID, at time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	repl := replacementID
	a.Status = StatusRescheduled
	a.RescheduledToID = &repl
	a.UpdatedAt = at
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) FindExpiredReservations(ctx context.Context, now time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.Status != StatusPendingPayment || a.ReservedUntil == nil {
			continue
		}
		if a.ReservedUntil.Before(now) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r *MemoryRepository) ListPatientAppointments(ctx context.Context, patientID uuid.UUID, f AppointmentFilter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []Appointment
	for _, a := range r.appointments {
		if a.PatientID != patientID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.From != nil && a.ScheduledAt.Before(*f.From) {
			continue
		}
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ScheduledAt.After(all[j].ScheduledAt)
	})

	return paginate(all, f.Limit, f.Offset), nil
}

func (r *MemoryRepository) ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, f AppointmentFilter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.DoctorID != doctorID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Date != nil {
			y1, m1, d1 := a.ScheduledAt.UTC().Date()
			y2, m2, d2 := f.Date.UTC().Date()
			if y1 != y2 || m1 != m2 || d1 != d2 {
				continue
			}
		}
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledAt.Before(result[j].ScheduledAt)
	})
	return result, nil
}

func paginate(all []Appointment, limit, offset int) []Appointment {
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

// Audit trail

func (r *MemoryRepository) InsertStatusHistory(ctx context.Context, h StatusHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, h)
	return nil
}

func (r *MemoryRepository) ListStatusHistory(ctx context.Context, appointmentID uuid.UUID) ([]StatusHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []StatusHistory
	for _, h := range r.history {
		if h.AppointmentID == appointmentID {
			result = append(result, h)
		}
	}
	return result, nil
}
