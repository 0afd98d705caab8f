package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/carebook/appointment-booking/internal/booking"
	"github.com/carebook/appointment-booking/internal/clock"
	"github.com/carebook/appointment-booking/internal/config"
	"github.com/carebook/appointment-booking/internal/db"
	"github.com/carebook/appointment-booking/internal/events"
	"github.com/carebook/appointment-booking/internal/logging"
	redisclient "github.com/carebook/appointment-booking/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New(cfg.Env, "expiry-worker")
	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.SweepInterval).
		Msg("expiry-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	repo := booking.NewPgRepository(pgPool)
	publisher := events.NewStreamPublisher(rdb, cfg.EventStream)
	svc := booking.NewService(repo, publisher, clock.System{}, cfg, log)
	locker := redisclient.NewRedisSweepLocker(rdb, cfg.LockTTL)

	sweeper := booking.NewSweeper(svc, locker, cfg.SweepInterval, log)
	sweeper.Run(rootCtx)

	log.Info().Msg("expiry-worker stopped")
}
