package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ferretek/ferretek/internal/app"
	"github.com/ferretek/ferretek/internal/catalog"
	"github.com/ferretek/ferretek/internal/inventory"
	"github.com/ferretek/ferretek/internal/platform/db"
	"github.com/ferretek/ferretek/internal/sales"
	"github.com/ferretek/ferretek/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	catalogService := catalog.NewService(catalog.NewRepository(pool), nil)
	salesRepo := sales.NewRepository(pool)
	ledger := inventory.NewService(inventory.NewRepository(pool), nil, nil)
	salesService := sales.NewService(salesRepo, catalogService, ledger, nil, nil, nil, nil)

	lowStockTask, err := jobs.NewLowStockScanTask(time.Now())
	if err != nil {
		logger.Error("build low stock task", slog.Any("error", err))
		os.Exit(1)
	}
	dailyCloseTask, err := jobs.NewDailyCloseTask("")
	if err != nil {
		logger.Error("build daily close task", slog.Any("error", err))
		os.Exit(1)
	}
	staleSalesTask, err := jobs.NewReleaseStaleSalesTask(time.Hour)
	if err != nil {
		logger.Error("build stale sales task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLowStockScan, Handler: jobs.NewLowStockScanHandler(catalogService, logger)},
			{Type: jobs.TaskDailyClose, Handler: jobs.NewDailyCloseHandler(salesRepo, logger)},
			{Type: jobs.TaskReleaseStaleSales, Handler: jobs.NewReleaseStaleSalesHandler(salesService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 7 * * *", Task: lowStockTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 0 * * *", Task: dailyCloseTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/15 * * * *", Task: staleSalesTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
