package main

import (
	"context"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/review-insights/review-insights-bot/internal/models"
	"github.com/review-insights/review-insights-bot/internal/monitoring"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxAnalyzeBody = 10 << 20

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func metricsHandler(monitoringService *monitoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(monitoringService.GetMetrics()))
	}
}

func triggerHandler(ctx context.Context, monitoringService *monitoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := monitoringService.RunMonitoring
		if r.URL.Query().Get("type") == "urgent" {
			run = monitoringService.RunUrgentCheck
		}

		go func() {
			if err := run(ctx); err != nil {
				logrus.Errorf("Manual trigger failed: %v", err)
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"message": "Monitoring triggered successfully"})
	}
}

// analyzeHandler runs the batch analysis over a posted JSON array of reviews
func analyzeHandler(monitoringService *monitoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reviews []models.Review
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnalyzeBody)).Decode(&reviews); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid review payload: " + err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, monitoringService.Analyze(reviews))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}
