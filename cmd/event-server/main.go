package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"linetest/database"
	"linetest/internal/config"
	"linetest/internal/microservices/http-api/repository"
	"linetest/internal/microservices/http-api/service"
	"linetest/internal/microservices/pcba"
	"linetest/internal/microservices/websocket"
	"linetest/internal/scheduler"
)

func main() {
	// Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Setup structured logging
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(logger)

	// Test records (gorm)
	db, err := database.Connect(cfg, logger)
	if err != nil {
		logger.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer database.Close(db)

	recordRepo := repository.NewTestRecordRepository(db)
	uploadLogRepo := repository.NewUploadLogRepository(db)
	records := service.NewTestRecordService(recordRepo, uploadLogRepo, hub, logger)

	// Stage board: Redis for the current state, PostgreSQL for history
	store, closeStore := openStageStore(ctx, cfg, logger)
	defer closeStore()

	tester := pcba.NewTester(cfg.PCBATesterPath, cfg.PCBAStageTimeout)
	if err := tester.Check(); err != nil {
		logger.Warn("pcba_tester_unavailable", "path", cfg.PCBATesterPath, "error", err)
	}
	events := pcba.NewService(hub, store, tester, logger)

	// Cloud upload
	var uploader *scheduler.Uploader
	if cfg.CloudUploadEnabled {
		uploader = scheduler.NewUploader(scheduler.Config{
			URL:      cfg.CloudAPIURL,
			APIKey:   cfg.CloudAPIKey,
			Interval: cfg.UploadScheduleInterval,
		}, recordRepo, uploadLogRepo, logger)
		uploader.Start()
		defer uploader.Stop()
	}

	router := newRouter(cfg, logger, hub, events, records)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("event_server_started",
			"addr", httpServer.Addr,
			"cloud_upload_enabled", cfg.CloudUploadEnabled,
			"station_auth", cfg.StationJWTSecret != "",
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("received_shutdown_signal")
	case err := <-errChan:
		logger.Error("server_error", "error", err.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	}
	// hijacked feed connections are not covered by Shutdown
	hub.CloseAll()
	logger.Info("server_stopped_gracefully")
}

// openStageStore returns the best stage store the environment allows. A
// missing Redis or PostgreSQL degrades the store instead of failing startup.
func openStageStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pcba.StageStore, func()) {
	cache, err := pcba.NewStageRedisRepo(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		logger.Warn("stage_cache_unavailable", "error", err)
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn("stage_history_unavailable", "error", err)
		if cache == nil {
			return nil, func() {}
		}
		return cache, func() { cache.Close() }
	}

	history := pcba.NewStageHistoryRepo(pool)
	if err := history.EnsureSchema(ctx); err != nil {
		logger.Warn("stage_history_schema_failed", "error", err)
	}

	hybrid := pcba.NewHybridStageStore(cache, history, logger)
	go hybrid.StartBatchWriter(context.Background())

	return hybrid, func() {
		hybrid.Close()
		cache.Close()
		pool.Close()
	}
}
