package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/pharmalink/schedcore/internal/config"
	"github.com/pharmalink/schedcore/internal/httpx"
	kafkax "github.com/pharmalink/schedcore/internal/kafka"
	"github.com/pharmalink/schedcore/internal/kpi"
	"github.com/pharmalink/schedcore/internal/ledger"
	"github.com/pharmalink/schedcore/internal/postgres"
	"github.com/pharmalink/schedcore/internal/queue"
	"github.com/pharmalink/schedcore/internal/redisx"
	"github.com/pharmalink/schedcore/internal/reservation"
	"github.com/pharmalink/schedcore/internal/sched"
	"github.com/pharmalink/schedcore/internal/transition"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: cfg.ServiceName})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", "err", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, sched.TopicStatusChanged, 1024)
	pStatus.Start(ctx)
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, sched.TopicReservationCreated, 1024)
	pCreated.Start(ctx)

	ledgerSvc := ledger.New(&ledger.PGStore{DB: db})

	resMgr := reservation.NewManager(&reservation.PGStore{DB: db})
	resMgr.Created = pCreated
	resMgr.Service = cfg.ServiceName
	resMgr.DefaultTTL = cfg.ReservationTTL
	resMgr.Log = logger

	trSvc := transition.NewService(&transition.PGStore{DB: db})
	trSvc.Producer = pStatus
	trSvc.Redis = rdb
	trSvc.Service = cfg.ServiceName
	trSvc.Log = logger

	engine := kpi.NewEngine(kpi.NewPGStore(db))
	engine.Bands = kpi.Bands{HealthyAt: cfg.UtilHealthyAt, WarningAt: cfg.UtilWarningAt}
	engine.Targets = kpi.Targets{
		UtilizationPct:  cfg.UtilTargetPct,
		LeadTimeMinutes: cfg.LeadTimeTarget,
		YieldPct:        cfg.YieldTargetPct,
		OTIFPct:         cfg.OTIFTargetPct,
	}

	builder := queue.NewBuilder(&queue.PGStore{DB: db})
	builder.PageSize = cfg.QueuePageSize

	router := httpx.NewRouter()
	(&httpx.SchedHandler{
		Reservations: resMgr,
		Transitions:  trSvc,
		Ledger:       ledgerSvc,
		Redis:        rdb,
	}).Register(router)
	(&httpx.DashboardHandler{
		Ledger:  ledgerSvc,
		KPI:     engine,
		Queues:  builder,
		Redis:   rdb,
		Horizon: cfg.CapacityHorizon,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", "err", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pStatus.Close()
	pCreated.Close()
	cancel()
	pStatus.WaitClosed()
	pCreated.WaitClosed()
}
