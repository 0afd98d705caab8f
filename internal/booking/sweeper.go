package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebook/appointment-booking/internal/events"
)

// ExpireLapsedReservations finds PENDING_PAYMENT appointments whose hold has
// lapsed and releases them. Each expiry is guarded by the status check, so a
// racing sweep or a concurrent confirm simply skips the item. Returns the
// number of reservations expired by this run.
func (s *Service) ExpireLapsedReservations(ctx context.Context) (int, error) {
	now := s.clk.Now()

	candidates, err := s.repo.FindExpiredReservations(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find expired reservations: %w", err)
	}

	expired := 0
	for _, appt := range candidates {
		updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPendingPayment, StatusExpired)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// Confirmed, cancelled or already swept in the meantime.
				continue
			}
			s.log.Error().Err(err).
				Str("appointment_id", appt.ID.String()).
				Msg("failed to expire reservation")
			continue
		}

		s.releaseSlot(ctx, updated.SlotID)

		from := StatusPendingPayment
		s.recordHistory(ctx, updated.ID, &from, StatusExpired, nil, "hold deadline lapsed")
		s.publish(ctx, events.TypeExpired, updated)
		expired++
	}

	return expired, nil
}

// SweepLocker serialises sweep runs across worker replicas. A nil locker is
// fine: sweeps are idempotent, the lock only avoids redundant full scans.
type SweepLocker interface {
	WithSweepLock(ctx context.Context, fn func(ctx context.Context) error) error
}

// Sweeper periodically reclaims lapsed reservations. It is the liveness
// backstop: every held slot eventually returns to the pool even if no cancel
// or payment signal ever arrives.
type Sweeper struct {
	svc      *Service
	locker   SweepLocker
	interval time.Duration
	log      zerolog.Logger
}

func NewSweeper(svc *Service, locker SweepLocker, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		svc:      svc,
		locker:   locker,
		interval: interval,
		log:      log,
	}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("sweeper stopping")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	run := func(ctx context.Context) error {
		start := time.Now()
		n, err := w.svc.ExpireLapsedReservations(ctx)
		if err != nil {
			return err
		}
		w.log.Info().
			Int("expired", n).
			Dur("took", time.Since(start)).
			Msg("sweep run complete")
		return nil
	}

	var err error
	if w.locker != nil {
		err = w.locker.WithSweepLock(runCtx, run)
	} else {
		err = run(runCtx)
	}
	if err != nil {
		w.log.Error().Err(err).Msg("sweep run failed")
	}
}
