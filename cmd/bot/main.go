package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/review-insights/review-insights-bot/internal/acquisition"
	"github.com/review-insights/review-insights-bot/internal/config"
	"github.com/review-insights/review-insights-bot/internal/metrics"
	"github.com/review-insights/review-insights-bot/internal/monitoring"
	"github.com/review-insights/review-insights-bot/internal/notifications"
	"github.com/review-insights/review-insights-bot/internal/scheduler"
	"github.com/review-insights/review-insights-bot/internal/storage"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Infof("Starting Review Insights Bot for %d businesses", len(cfg.Businesses))

	storageClient, err := newStorage(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}

	client, err := acquisition.NewClient(cfg.ProviderConfig())
	if err != nil {
		logrus.Fatalf("Failed to initialize provider client: %v", err)
	}

	notificationService := notifications.NewService(cfg)
	monitoringService := monitoring.NewService(cfg, client, storageClient, notificationService)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	schedulerService := scheduler.NewService(cfg, monitoringService)
	if err := schedulerService.Start(ctx); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      newRouter(ctx, monitoringService),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	stop()
	client.Limiter().Clear()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

// newStorage prefers Azure Blob Storage and falls back to a local directory
func newStorage(cfg *config.Config) (storage.StorageInterface, error) {
	if cfg.StorageAccount != "" {
		return storage.NewAzureStorage(cfg.StorageAccount, cfg.StorageContainer)
	}
	logrus.Infof("No storage account configured, storing snapshots in %s", cfg.LocalStorageDir)
	return storage.NewFileStorage(cfg.LocalStorageDir)
}

func newRouter(ctx context.Context, monitoringService *monitoring.Service) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(monitoringService)).Methods("GET")
	router.Handle("/metrics/prometheus", metrics.Handler()).Methods("GET")
	router.HandleFunc("/trigger", triggerHandler(ctx, monitoringService)).Methods("POST")
	router.HandleFunc("/analyze", analyzeHandler(monitoringService)).Methods("POST")

	return router
}
