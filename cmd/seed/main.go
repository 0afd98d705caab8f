package main

import (
	"context"
	"errors"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/carebook/appointment-booking/internal/booking"
	"github.com/carebook/appointment-booking/internal/clock"
	"github.com/carebook/appointment-booking/internal/config"
	"github.com/carebook/appointment-booking/internal/db"
	"github.com/carebook/appointment-booking/internal/logging"
)

const doctorCount = 50

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New(cfg.Env, "seed")
	log.Info().Int("doctors", doctorCount).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("schema apply failed")
	}
	log.Info().Msg("schema ensured")

	gofakeit.Seed(time.Now().UnixNano())

	repo := booking.NewPgRepository(pool)
	svc := booking.NewAvailabilityService(repo, clock.System{}, cfg, log)

	doctorIDs := make([]uuid.UUID, 0, doctorCount)
	for i := 0; i < doctorCount; i++ {
		doctorID := uuid.New()
		doctorIDs = append(doctorIDs, doctorID)

		if err := seedDoctor(ctx, svc, doctorID); err != nil {
			log.Fatal().Err(err).
				Str("doctor_id", doctorID.String()).
				Msg("seed doctor failed")
		}
	}

	// Each edit above already regenerated the touched doctor's pool, but a
	// final pass makes the seed safe to re-run against an old database whose
	// horizon has since moved on.
	svc.RegenerateAll(ctx, doctorIDs)

	log.Info().Int("doctors", len(doctorIDs)).Msg("seed complete")
}

// seedDoctor gives a doctor a handful of weekly windows across the work week,
// plus the odd blocked day.
func seedDoctor(ctx context.Context, svc *booking.AvailabilityService, doctorID uuid.UUID) error {
	types := []booking.ConsultationType{
		booking.ConsultationVideo,
		booking.ConsultationInPerson,
		booking.ConsultationAudio,
		booking.ConsultationChat,
	}

	clinicID := uuid.New()
	windows := gofakeit.Number(2, 4)

	for w := 0; w < windows; w++ {
		day := time.Weekday(gofakeit.Number(1, 5)) // Monday through Friday
		startHour := gofakeit.Number(8, 15)
		spanHours := gofakeit.Number(2, 4)
		ct := types[gofakeit.Number(0, len(types)-1)]

		params := booking.WeeklyAvailabilityParams{
			DayOfWeek:        day,
			StartMinute:      startHour * 60,
			EndMinute:        (startHour + spanHours) * 60,
			ConsultationType: ct,
		}
		if ct == booking.ConsultationInPerson {
			params.ClinicID = &clinicID
		}

		if _, err := svc.AddWeeklyAvailability(ctx, doctorID, params); err != nil {
			if errors.Is(err, booking.ErrOverlappingAvailability) {
				continue
			}
			return err
		}
	}

	// One in three doctors takes a day off next week.
	if gofakeit.Number(0, 2) == 0 {
		dayOff := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, gofakeit.Number(3, 9))
		_, err := svc.AddBlockedSlot(ctx, doctorID,
			dayOff, dayOff.Add(24*time.Hour), "personal leave")
		if err != nil && !errors.Is(err, booking.ErrOverlappingBlock) {
			return err
		}
	}

	return nil
}
