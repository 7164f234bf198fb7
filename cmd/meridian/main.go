package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/documents"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/masterdata"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/receiving"
	"github.com/meridian-erp/meridian-erp/internal/shared"
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

	caps, err := db.ProbeCapabilities(ctx, pool)
	if err != nil {
		logger.Error("probe schema capabilities", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	validate := validator.New()
	metrics := observability.NewMetrics()
	audit := shared.NewAuditLogger(pool)
	idem := shared.NewIdempotencyStore(pool)
	onHandCache := ledger.NewCache(redisClient, cfg.OnHandCacheTTL)

	masterdataService := masterdata.NewService(masterdata.NewRepository(pool))
	masterdataHandler := masterdata.NewHandler(masterdataService)

	documentsService := documents.NewService(documents.NewRepository(pool), caps, audit, logger)
	documentsHandler := documents.NewHandler(logger, documentsService, validate)

	ledgerService := ledger.NewService(ledger.NewRepository(pool), masterdataService, onHandCache, audit, logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, validate, caps)

	receivingService := receiving.NewService(receiving.NewRepository(pool), masterdataService, onHandCache, idem, audit, caps, logger)
	receivingHandler := receiving.NewHandler(logger, receivingService, validate)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		DocumentsHandler:  documentsHandler,
		LedgerHandler:     ledgerHandler,
		ReceivingHandler:  receivingHandler,
		MasterDataHandler: masterdataHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
