package booking

import (
	"time"

	"github.com/google/uuid"
)

// buildSlots expands a doctor's weekly templates into concrete dated slots
// for [from, to] inclusive, subtracting blocked ranges and intervals already
// occupied by claimed slots. Only active templates are expanded and slots
// starting before now are skipped. A slice that would run past a template's
// end minute is dropped rather than shortened.
func buildSlots(doctorID uuid.UUID, templates []WeeklyAvailability, blocks []BlockedSlot, claimed []AvailableSlot, from, to, now time.Time) []AvailableSlot {
	var slots []AvailableSlot

	for date := midnightUTC(from); !date.After(midnightUTC(to)); date = date.AddDate(0, 0, 1) {
		for _, tpl := range templates {
			if !tpl.Active || tpl.DayOfWeek != date.Weekday() {
				continue
			}

			step := tpl.SlotDurationMinutes + tpl.BufferMinutes
			if step <= 0 {
				continue
			}

			for start := tpl.StartMinute; start+tpl.SlotDurationMinutes <= tpl.EndMinute; start += step {
				end := start + tpl.SlotDurationMinutes
				startAt := date.Add(time.Duration(start) * time.Minute)
				endAt := date.Add(time.Duration(end) * time.Minute)

				if startAt.Before(now) {
					continue
				}
				if overlapsAny(blocks, startAt, endAt) {
					continue
				}
				if overlapsClaimed(claimed, startAt, endAt) {
					continue
				}

				slots = append(slots, AvailableSlot{
					ID:               uuid.New(),
					DoctorID:         doctorID,
					ClinicID:         tpl.ClinicID,
					Date:             date,
					StartMinute:      start,
					EndMinute:        end,
					ConsultationType: tpl.ConsultationType,
					DurationMinutes:  tpl.SlotDurationMinutes,
					Status:           SlotAvailable,
					CreatedAt:        now,
				})
			}
		}
	}

	return slots
}

func overlapsClaimed(claimed []AvailableSlot, start, end time.Time) bool {
	for _, s := range claimed {
		if s.StartAt().Before(end) && start.Before(s.EndAt()) {
			return true
		}
	}
	return false
}

func overlapsAny(blocks []BlockedSlot, start, end time.Time) bool {
	for _, b := range blocks {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
