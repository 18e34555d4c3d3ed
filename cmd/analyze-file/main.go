package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/review-insights/review-insights-bot/internal/config"
	"github.com/review-insights/review-insights-bot/internal/console"
	"github.com/review-insights/review-insights-bot/internal/models"
	"github.com/review-insights/review-insights-bot/internal/monitoring"
	"github.com/review-insights/review-insights-bot/internal/normalize"
	"github.com/review-insights/review-insights-bot/internal/notifications"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	business := flag.String("business", "Sample Business", "business name used in the report")
	platform := flag.String("platform", "google", "platform for raw provider items")
	raw := flag.Bool("raw", false, "input is an array of raw provider items instead of reviews")
	send := flag.Bool("send", false, "send the report through the configured notification channels")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] reviews.json\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	reviews, err := readReviews(flag.Arg(0), *platform, *raw)
	if err != nil {
		log.Fatalf("Failed to read reviews: %v", err)
	}

	if !*send {
		service := monitoring.NewService(&config.Config{ReportSchedule: "weekly"}, nil, nil, nil)
		if err := console.PrintAnalysis(os.Stdout, *business, service.Analyze(reviews)); err != nil {
			log.Fatalf("Failed to print analysis: %v", err)
		}
		return
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	service := monitoring.NewService(cfg, nil, nil, nil)
	report := service.BuildReport(*business, reviews)
	if err := console.PrintAnalysis(os.Stdout, *business, report.Insights); err != nil {
		log.Fatalf("Failed to print analysis: %v", err)
	}

	if err := notifications.NewService(cfg).SendReport(report); err != nil {
		log.Fatalf("Failed to send report: %v", err)
	}
	fmt.Println("Report sent")
}

// readReviews loads normalized reviews, or raw provider items that are
// normalized on the way in
func readReviews(path, platform string, raw bool) ([]models.Review, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if raw {
		var items []normalize.RawItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("parse raw items: %w", err)
		}
		return normalize.Reviews(platform, items), nil
	}

	var reviews []models.Review
	if err := json.Unmarshal(data, &reviews); err != nil {
		return nil, fmt.Errorf("parse reviews: %w", err)
	}
	return reviews, nil
}
