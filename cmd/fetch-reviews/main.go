package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/review-insights/review-insights-bot/internal/acquisition"
	"github.com/review-insights/review-insights-bot/internal/analysis"
	"github.com/review-insights/review-insights-bot/internal/config"
	"github.com/review-insights/review-insights-bot/internal/console"
	"github.com/review-insights/review-insights-bot/internal/models"
	"github.com/sirupsen/logrus"
)

func main() {
	business := flag.String("business", "", "business name or search keyword (defaults to BUSINESS_NAME)")
	location := flag.String("location", "", "provider location name, e.g. \"Oakland,California,United States\"")
	platformName := flag.String("platform", "google", "review platform: google, trustpilot, tripadvisor or yelp")
	depth := flag.Int("depth", 50, "number of reviews to request")
	sortBy := flag.String("sort", "newest", "sort order: newest, highest_rating, lowest_rating or most_relevant")
	asJSON := flag.Bool("json", false, "print the reviews and analysis as JSON")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall timeout")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadProvider()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	platform, err := acquisition.ParsePlatform(*platformName)
	if err != nil {
		log.Fatalf("Invalid platform: %v", err)
	}

	params := models.TaskParams{
		Keyword:      *business,
		LocationName: *location,
		Depth:        *depth,
		SortBy:       *sortBy,
	}
	if params.Keyword == "" && len(cfg.Businesses) > 0 {
		params = cfg.Businesses[0].TaskParams(*depth)
		params.SortBy = *sortBy
	}

	client, err := acquisition.NewClient(cfg.ProviderConfig())
	if err != nil {
		log.Fatalf("Failed to create provider client: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	start := time.Now()
	reviews, err := client.FetchReviews(ctx, platform, params)
	if err != nil {
		if acquisition.IsTimedOut(err) {
			log.Fatalf("Provider task did not finish in time, try again later: %v", err)
		}
		log.Fatalf("Failed to fetch reviews: %v", err)
	}
	batch := analysis.AnalyzeBatch(reviews)

	if *asJSON {
		out := struct {
			Reviews  []models.Review       `json:"reviews"`
			Insights *models.BatchAnalysis `json:"insights"`
		}{reviews, batch}
		data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(out, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode output: %v", err)
		}
		fmt.Println(string(data))
		return
	}

	title := fmt.Sprintf("%s on %s (%d reviews in %v)", params.Keyword, platform, len(reviews), time.Since(start).Round(time.Millisecond))
	if err := console.PrintAnalysis(os.Stdout, title, batch); err != nil {
		log.Fatalf("Failed to print analysis: %v", err)
	}
}
