package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"thermaleye-service/internal/auth"
	"thermaleye-service/internal/config"
	"thermaleye-service/internal/db"
	httphandler "thermaleye-service/internal/http"
	"thermaleye-service/internal/http/middleware"
	"thermaleye-service/internal/logger"
	"thermaleye-service/internal/ocr"
	"thermaleye-service/internal/ratelimit"
	"thermaleye-service/internal/registry"
	"thermaleye-service/internal/repository"
	"thermaleye-service/internal/service"
	"thermaleye-service/internal/storage"
	"thermaleye-service/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	database, err := db.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect database")
	}

	assets, err := registry.NewLoader(appLogger).Load(cfg.Registry.TowersCSV, cfg.Registry.SchedulePaths)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to load asset registry")
	}

	recognizer := ocr.NewHTTPRecognizer(cfg.OCR.ServiceURL, cfg.OCR.ServiceTimeout)
	extractor := ocr.NewExtractor(recognizer, cfg.OCR, appLogger)

	ambient := weather.NewClient(cfg.Weather, appLogger)
	reportRepo := repository.NewReportRepository(database)

	// R2 storage is optional; without it snapshots are simply not kept.
	var snapshots service.SnapshotStore
	r2Client, err := storage.NewR2ClientFromEnv()
	switch {
	case err == nil:
		snapshots = r2Client
	case errors.Is(err, storage.ErrNotConfigured):
		appLogger.Warn().Msg("R2 storage not configured, snapshot uploads disabled")
	default:
		appLogger.Fatal().Err(err).Msg("failed to initialize R2 client")
	}

	reportService := service.NewReportService(
		extractor,
		assets,
		ambient,
		reportRepo,
		snapshots,
		cfg.Threshold.ReferenceYear,
		appLogger,
	)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	generalLimiter := ratelimit.NewLimiter(cfg.GeneralLimit.Calls, cfg.GeneralLimit.Period)
	uploadLimiter := ratelimit.NewLimiter(cfg.UploadLimit.Calls, cfg.UploadLimit.Period)

	handler := httphandler.NewHandler(reportService, cfg, appLogger)
	router := httphandler.NewRouter(
		handler,
		middleware.Auth(tokenParser),
		middleware.RateLimit(generalLimiter),
		middleware.RateLimit(uploadLimiter),
		cfg.Environment,
		database,
		appLogger,
	)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().Str("addr", addr).Msg("starting thermal inspection service")

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error().Err(err).Msg("failed to start server")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info().Msg("server exited")
}
