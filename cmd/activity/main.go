package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/pharmalink/schedcore/internal/activity"
	"github.com/pharmalink/schedcore/internal/config"
	kafkax "github.com/pharmalink/schedcore/internal/kafka"
	"github.com/pharmalink/schedcore/internal/redisx"
	"github.com/pharmalink/schedcore/internal/sched"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: cfg.ServiceName + "-activity"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &activity.Service{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-activity",
		Log:         logger,
	}

	group := getenv("ACTIVITY_GROUP", "activity-svc")
	workers := mustAtoi(os.Getenv("ACTIVITY_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, sched.TopicStatusChanged, workers)

	go func() {
		logger.Info("activity consumer started", "group", group, "topic", sched.TopicStatusChanged, "workers", workers)
		if err := cons.Start(ctx, svc.HandleStatusChanged); err != nil {
			logger.Error("consumer exit", "err", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
