package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fars-analytics/internal/config"
	"fars-analytics/internal/dataset"
	"fars-analytics/internal/handlers"
	"fars-analytics/internal/render"
	"fars-analytics/internal/repository"
	"fars-analytics/internal/services"
	"fars-analytics/pkg/database"
	"fars-analytics/pkg/logging"
	"fars-analytics/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("fars-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting FARS analytics API server", logging.Fields{
		"version":     version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"data_dir":    cfg.Data.Dir,
		"map_format":  cfg.Render.Format,
		"db_enabled":  cfg.Database.Enabled,
	})

	metricsCollector := metrics.NewCollector("fars")

	loader := dataset.NewLoader(cfg.Data.Dir, logger, metricsCollector)
	renderer := render.NewPlotRenderer(cfg.Render.WidthCm, cfg.Render.HeightCm, cfg.Render.Format)

	summaryService := services.NewSummaryService(loader, logger, metricsCollector)
	mapService := services.NewMapService(loader, renderer, logger, metricsCollector)

	// The database only backs /api/fars/stored; the file based endpoints work without it
	var summaryRepo repository.SummaryRepository
	if cfg.Database.Enabled {
		db, err := database.NewPostgresDB(ctx, cfg.Database.Postgres(), logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{
				"db_host": cfg.Database.Host,
				"db_name": cfg.Database.Database,
			}, err)
		}
		defer db.Close()

		summaryRepo = repository.NewSummaryRepository(db, logger, metricsCollector)
	}

	farsHandler := handlers.NewFARSHandler(
		summaryService,
		mapService,
		summaryRepo,
		cfg.Render.ContentType(),
		logger,
		metricsCollector,
	)

	router := mux.NewRouter()
	farsHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
