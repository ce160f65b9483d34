package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/ferretek/ferretek/internal/app"
	"github.com/ferretek/ferretek/internal/auth"
	"github.com/ferretek/ferretek/internal/catalog"
	"github.com/ferretek/ferretek/internal/customers"
	"github.com/ferretek/ferretek/internal/inventory"
	"github.com/ferretek/ferretek/internal/platform/cache"
	"github.com/ferretek/ferretek/internal/platform/db"
	"github.com/ferretek/ferretek/internal/sales"
	"github.com/ferretek/ferretek/internal/shared"
	"github.com/ferretek/ferretek/internal/suppliers"
	"github.com/ferretek/ferretek/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, caching and checkout disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	auditLogger := shared.NewAuditLogger(pool)
	authmw := auth.NewMiddleware(cfg.JWTSecret, cfg.TokenTTL)

	catalogService := catalog.NewService(
		catalog.NewRepository(pool),
		catalog.NewCache(redisClient, cfg.ProductCacheTTL),
	)
	catalogHandler := catalog.NewHandler(logger, catalogService, authmw)

	inventoryService := inventory.NewService(inventory.NewRepository(pool), auditLogger, catalogService)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, authmw)

	customersService := customers.NewService(customers.NewRepository(pool))
	customersHandler := customers.NewHandler(logger, customersService, authmw)

	suppliersService := suppliers.NewService(suppliers.NewRepository(pool))
	suppliersHandler := suppliers.NewHandler(logger, suppliersService, authmw)

	var tasks sales.TaskEnqueuer
	if redisClient != nil {
		jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if err != nil {
			logger.Warn("jobs client", slog.Any("error", err))
		} else {
			defer func() {
				if err := jobsClient.Close(); err != nil {
					logger.Warn("jobs client close", slog.Any("error", err))
				}
			}()
			tasks = jobsClient
		}
	}

	salesService := sales.NewService(
		sales.NewRepository(pool),
		catalogService,
		inventoryService,
		sales.NewCalculator(nil),
		auditLogger,
		catalogService,
		tasks,
	)

	var checkout *sales.Checkout
	if cfg.PaymentGatewayURL != "" && redisClient != nil {
		gateway := sales.NewHTTPGateway(cfg.PaymentGatewayURL)
		checkout = sales.NewCheckout(salesService, gateway, redisClient, cfg.CheckoutTTL)
	}
	salesHandler := sales.NewHandler(logger, salesService, checkout, authmw)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Auth:             authmw,
		CatalogHandler:   catalogHandler,
		CustomersHandler: customersHandler,
		SuppliersHandler: suppliersHandler,
		InventoryHandler: inventoryHandler,
		SalesHandler:     salesHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
