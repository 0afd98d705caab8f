package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/carebook/appointment-booking/internal/booking"
)

type RouterConfig struct {
	Booking      *booking.Service
	Availability *booking.AvailabilityService
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
	Logger       zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", reserveHandler(cfg.Booking))
		r.Get("/{id}", getAppointmentHandler(cfg.Booking))
		r.Get("/{id}/history", appointmentHistoryHandler(cfg.Booking))
		r.Post("/{id}/confirm", confirmHandler(cfg.Booking))
		r.Post("/{id}/cancel", cancelHandler(cfg.Booking))
		r.Post("/{id}/complete", completeHandler(cfg.Booking))
		r.Post("/{id}/reschedule", rescheduleHandler(cfg.Booking))
	})

	r.Route("/doctors/{id}", func(r chi.Router) {
		r.Get("/appointments", doctorAppointmentsHandler(cfg.Booking))

		r.Route("/availability", func(r chi.Router) {
			r.Get("/", listAvailabilityHandler(cfg.Availability))
			r.Post("/", addAvailabilityHandler(cfg.Availability))
			r.Put("/{availabilityID}", updateAvailabilityHandler(cfg.Availability))
			r.Delete("/{availabilityID}", deactivateAvailabilityHandler(cfg.Availability))
		})

		r.Route("/blocks", func(r chi.Router) {
			r.Get("/", listBlocksHandler(cfg.Availability))
			r.Post("/", addBlockHandler(cfg.Availability))
			r.Delete("/{blockID}", removeBlockHandler(cfg.Availability))
		})

		r.Route("/slots", func(r chi.Router) {
			r.Get("/", listSlotsHandler(cfg.Availability))
			r.Post("/regenerate", regenerateSlotsHandler(cfg.Availability))
		})
	})

	r.Get("/patients/{id}/appointments", patientAppointmentsHandler(cfg.Booking))

	return r
}
