package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/appointment-booking/internal/booking"
)

func listAvailabilityHandler(svc *booking.AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		schedule, err := svc.WeeklySchedule(r.Context(), doctorID)
		if err != nil {
			writeBookingError(w, err)
			return
		}

		out := make([]WeeklyAvailabilityResponse, 0, len(schedule))
		for i := range schedule {
			out = append(out, toWeeklyAvailabilityResponse(&schedule[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func addAvailabilityHandler(svc *booking.AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		params, ok := decodeAvailabilityParams(w, r)
		if !ok {
			return
		}

		wa, err := svc.AddWeeklyAvailability(r.Context(), doctorID, params)
		if err != nil {
			writeBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toWeeklyAvailabilityResponse(wa))
	}
}

func updateAvailabilityHandler(svc *booking.AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}
		availabilityID, ok := parseIDParam(w, r, "availabilityID")
		if !ok {
			return
		}

		params, ok := decodeAvailabilityParams(w, r)
		if !ok {
			return
		}

		wa, err := svc.UpdateWeeklyAvailability(r.Context(), doctorID, availabilityID, params)
		if err != nil {
			writeBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toWeeklyAvailabilityResponse(wa))
	}
}

func deactivateAvailabilityHandler(svc *booking.AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}
		availabilityID, ok := parseIDParam(w, r, "availabilityID")
		if !ok {
			return
		}

		if err := svc.DeactivateWeeklyAvailability(r.Context(), doctorID, availabilityID); err != nil {
			writeBookingError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func listBlocksHandler(svc *booking.AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		from, to, ok := parseDateRange(w, r)
		if !ok {
			return
		}

		blocks, err := svc.BlockedSlots(r.Context(), doctorID, from, to)
		if err != nil {
			writeBookingError(w, err)
			return
		}

		out := make([]BlockedSlotResponse, 0, len(blocks))
		for _, b := range blocks {
			out = append(out, BlockedSlotResponse{
				ID:      b.ID,
				StartAt: b.StartAt,
				EndAt:   b.EndAt,
				Reason:  b.Reason,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func addBlockHandler(svc *booking.AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		var req BlockSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		block, err := svc.AddBlockedSlot(r.Context(), doctorID, req.StartAt, req.EndAt, req.Reason)
		if err != nil {
			writeBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, BlockedSlotResponse{
			ID:      block.ID,
			StartAt: block.StartAt,
			EndAt:   block.EndAt,
			Reason:  block.Reason,
		})
	}
}

func removeBlockHandler(svc *booking.AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}
		blockID, ok := parseIDParam(w, r, "blockID")
		if !ok {
			return
		}

		if err := svc.RemoveBlockedSlot(r.Context(), doctorID, blockID); err != nil {
			writeBookingError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func listSlotsHandler(svc *booking.AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		from, to, ok := parseDateRange(w, r)
		if !ok {
			return
		}

		var consultationType *booking.ConsultationType
		if v := r.URL.Query().Get("type"); v != "" {
			ct := booking.ConsultationType(v)
			if !ct.Valid() {
				writeError(w, http.StatusBadRequest, "invalid_type", "unknown consultation type")
				return
			}
			consultationType = &ct
		}

		slots, err := svc.AvailableSlots(r.Context(), doctorID, from, to, consultationType)
		if err != nil {
			writeBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, groupSlotsByDay(doctorID, slots))
	}
}

func regenerateSlotsHandler(svc *booking.AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.RegenerateSlots(r.Context(), doctorID); err != nil {
			writeBookingError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeAvailabilityParams(w http.ResponseWriter, r *http.Request) (booking.WeeklyAvailabilityParams, bool) {
	var req WeeklyAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return booking.WeeklyAvailabilityParams{}, false
	}

	if req.DayOfWeek < 0 || req.DayOfWeek > 6 {
		writeError(w, http.StatusBadRequest, "invalid_day_of_week", "day_of_week must be 0 (Sunday) through 6 (Saturday)")
		return booking.WeeklyAvailabilityParams{}, false
	}

	params := booking.WeeklyAvailabilityParams{
		DayOfWeek:           time.Weekday(req.DayOfWeek),
		StartMinute:         req.StartMinute,
		EndMinute:           req.EndMinute,
		SlotDurationMinutes: req.SlotDurationMinutes,
		BufferMinutes:       req.BufferMinutes,
		ConsultationType:    booking.ConsultationType(req.ConsultationType),
	}

	if req.ClinicID != "" {
		clinicID, err := uuid.Parse(req.ClinicID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
			return booking.WeeklyAvailabilityParams{}, false
		}
		params.ClinicID = &clinicID
	}

	return params, true
}

func parseDateRange(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	q := r.URL.Query()

	fromStr := q.Get("from")
	toStr := q.Get("to")
	if fromStr == "" || toStr == "" {
		writeError(w, http.StatusBadRequest, "missing_range", "from and to query parameters are required")
		return time.Time{}, time.Time{}, false
	}

	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	to, err = time.Parse("2006-01-02", toStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "invalid_range", "to must not precede from")
		return time.Time{}, time.Time{}, false
	}

	return from, to, true
}

func groupSlotsByDay(doctorID uuid.UUID, slots []booking.AvailableSlot) AvailableSlotsResponse {
	resp := AvailableSlotsResponse{DoctorID: doctorID, Total: len(slots)}

	var day *DaySlotsResponse
	for _, s := range slots {
		date := s.Date.Format("2006-01-02")
		if day == nil || day.Date != date {
			resp.Days = append(resp.Days, DaySlotsResponse{Date: date})
			day = &resp.Days[len(resp.Days)-1]
		}
		day.Slots = append(day.Slots, SlotResponse{
			ID:               s.ID,
			DoctorID:         s.DoctorID,
			ClinicID:         s.ClinicID,
			Date:             date,
			StartAt:          s.StartAt(),
			EndAt:            s.EndAt(),
			DurationMinutes:  s.DurationMinutes,
			ConsultationType: string(s.ConsultationType),
		})
	}

	return resp
}
