package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/pharmalink/schedcore/internal/config"
	kafkax "github.com/pharmalink/schedcore/internal/kafka"
	"github.com/pharmalink/schedcore/internal/postgres"
	"github.com/pharmalink/schedcore/internal/reservation"
	"github.com/pharmalink/schedcore/internal/sched"
)

// The sweeper moves lapsed TENTATIVE holds to their terminal EXPIRED status
// and announces them. Capacity reads filter expiry lazily, so this process
// can be down for any length of time without overbooking risk.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: cfg.ServiceName + "-sweeper"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", "err", err)
	}
	defer db.Close()

	pExpired := kafkax.NewProducer(cfg.KafkaBrokers, sched.TopicReservationExpired, 256)
	pExpired.Start(ctx)

	mgr := reservation.NewManager(&reservation.PGStore{DB: db})
	mgr.Expired = pExpired
	mgr.Service = cfg.ServiceName + "-sweeper"
	mgr.Log = logger

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("sweeper started", "interval", cfg.SweepInterval)
	for {
		select {
		case <-ticker.C:
			if _, err := mgr.SweepExpired(ctx, time.Now()); err != nil {
				logger.Error("sweep failed", "err", err)
			}
		case <-sig:
			logger.Info("shutting down...")
			pExpired.Close()
			cancel()
			pExpired.WaitClosed()
			return
		}
	}
}
