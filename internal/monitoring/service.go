package monitoring

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/review-insights/review-insights-bot/internal/acquisition"
	"github.com/review-insights/review-insights-bot/internal/analysis"
	"github.com/review-insights/review-insights-bot/internal/config"
	"github.com/review-insights/review-insights-bot/internal/models"
	"github.com/review-insights/review-insights-bot/internal/notifications"
	"github.com/review-insights/review-insights-bot/internal/ratelimit"
	"github.com/review-insights/review-insights-bot/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	urgentWindow = 4 * time.Hour
	urgentDepth  = 20
)

// ReviewFetcher fetches normalized reviews for one business on one platform
type ReviewFetcher interface {
	FetchReviews(ctx context.Context, platform acquisition.Platform, params models.TaskParams) ([]models.Review, error)
}

type limited interface {
	Limiter() *ratelimit.Limiter
}

// Service monitors reviews of the configured businesses
type Service struct {
	config              *config.Config
	fetcher             ReviewFetcher
	storage             storage.StorageInterface
	notificationService notifications.NotificationInterface
	metrics             *Metrics
	alerted             map[string]bool
	mu                  sync.RWMutex
}

// Metrics holds monitoring metrics
type Metrics struct {
	TotalReviews       int            `json:"total_reviews"`
	LastRun            time.Time      `json:"last_run"`
	LastRunDuration    string         `json:"last_run_duration"`
	PlatformMetrics    map[string]int `json:"platform_metrics"`
	SentimentBreakdown map[string]int `json:"sentiment_breakdown"`
	ComplaintCount     int            `json:"complaint_count"`
	AlertsSent         int            `json:"alerts_sent"`
	ErrorCount         int            `json:"error_count"`
	LimiterQueueDepth  int            `json:"limiter_queue_depth"`
	LimiterInFlight    int            `json:"limiter_in_flight"`
}

// source is one business on one platform
type source struct {
	business config.Business
	platform acquisition.Platform
}

// NewService creates a new monitoring service
func NewService(cfg *config.Config, fetcher ReviewFetcher, storage storage.StorageInterface, notificationService notifications.NotificationInterface) *Service {
	return &Service{
		config:              cfg,
		fetcher:             fetcher,
		storage:             storage,
		notificationService: notificationService,
		alerted:             make(map[string]bool),
		metrics: &Metrics{
			PlatformMetrics:    make(map[string]int),
			SentimentBreakdown: make(map[string]int),
		},
	}
}

// sources expands businesses into business/platform pairs. Platforms are
// validated when the config loads; unknown names are skipped here.
func (s *Service) sources() []source {
	var out []source
	for _, b := range s.config.Businesses {
		for _, name := range b.Platforms {
			p, err := acquisition.ParsePlatform(name)
			if err != nil {
				logrus.Warnf("Skipping %s for %s: %v", name, b.Name, err)
				continue
			}
			out = append(out, source{business: b, platform: p})
		}
	}
	return out
}

// fetchAll fetches every source concurrently. Results are indexed like
// srcs; failed sources leave a nil entry and are counted.
func (s *Service) fetchAll(ctx context.Context, srcs []source, params func(config.Business) models.TaskParams) ([][]models.Review, int) {
	results := make([][]models.Review, len(srcs))
	var (
		errMu      sync.Mutex
		errorCount int
	)

	var g errgroup.Group
	for i, src := range srcs {
		i, src := i, src
		g.Go(func() error {
			logrus.Infof("Fetching %s reviews for %s", src.platform, src.business.Name)
			reviews, err := s.fetcher.FetchReviews(ctx, src.platform, params(src.business))
			if err != nil {
				logrus.Errorf("Error fetching %s reviews for %s: %v", src.platform, src.business.Name, err)
				errMu.Lock()
				errorCount++
				errMu.Unlock()
				return nil
			}
			logrus.Infof("Found %d %s reviews for %s", len(reviews), src.platform, src.business.Name)
			results[i] = reviews
			return nil
		})
	}
	_ = g.Wait()

	return results, errorCount
}

// RunMonitoring fetches, analyzes and reports on every tracked business
func (s *Service) RunMonitoring(ctx context.Context) error {
	start := time.Now()
	logrus.Info("Starting monitoring run")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	srcs := s.sources()
	if len(srcs) == 0 {
		logrus.Warn("No businesses configured, nothing to monitor")
		return nil
	}

	window := s.searchWindow()
	logrus.Infof("Searching %d sources for reviews in the last %v", len(srcs), window)

	results, errorCount := s.fetchAll(ctx, srcs, func(b config.Business) models.TaskParams {
		params := b.TaskParams(s.config.ReviewDepth)
		params.SortBy = "newest"
		return params
	})

	byBusiness := make(map[string][]models.Review)
	var order []string
	for i, src := range srcs {
		name := src.business.Name
		if _, seen := byBusiness[name]; !seen {
			order = append(order, name)
			byBusiness[name] = nil
		}
		byBusiness[name] = append(byBusiness[name], withinWindow(results[i], start.Add(-window))...)
	}

	var (
		allReviews []models.Review
		complaints int
		failures   []string
	)
	for _, name := range order {
		reviews := byBusiness[name]
		allReviews = append(allReviews, reviews...)

		report := s.BuildReport(name, reviews)
		complaints += len(report.Insights.Complaints)

		if err := s.storeJSON(snapshotName("reports", name, start), report); err != nil {
			logrus.Errorf("Failed to store report for %s: %v", name, err)
			failures = append(failures, fmt.Sprintf("%s: store: %v", name, err))
			continue
		}

		if err := s.notificationService.SendReport(report); err != nil {
			logrus.Errorf("Failed to send report for %s: %v", name, err)
			failures = append(failures, fmt.Sprintf("%s: send: %v", name, err))
		}
	}

	s.updateMetrics(allReviews, complaints, time.Since(start), errorCount+len(failures))

	if len(failures) > 0 {
		return fmt.Errorf("monitoring run errors: %s", strings.Join(failures, "; "))
	}

	logrus.Infof("Monitoring run completed in %v", time.Since(start))
	return nil
}

func (s *Service) searchWindow() time.Duration {
	if s.config.ReportSchedule == "daily" {
		return 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

func withinWindow(reviews []models.Review, since time.Time) []models.Review {
	var out []models.Review
	for _, r := range reviews {
		if !r.Date.Before(since) {
			out = append(out, r)
		}
	}
	return out
}

// Analyze runs the batch analysis over reviews
func (s *Service) Analyze(reviews []models.Review) *models.BatchAnalysis {
	return analysis.AnalyzeBatch(reviews)
}

// BuildReport analyzes reviews and wraps them in a report for business
func (s *Service) BuildReport(business string, reviews []models.Review) *models.Report {
	insights := s.Analyze(reviews)

	report := &models.Report{
		GeneratedAt:  time.Now(),
		Period:       s.config.ReportSchedule,
		Business:     business,
		TotalReviews: len(reviews),
		Reviews:      reviews,
		Insights:     insights,
		Summary:      make(map[string]interface{}),
	}

	platformCount := make(map[string]int)
	sentimentCount := make(map[string]int)
	for _, review := range reviews {
		platformCount[review.Platform]++
		sentimentCount[analysis.AnalyzeSentiment(review.Content).Label]++
	}

	complaintCount := make(map[string]int)
	for _, c := range insights.Complaints {
		complaintCount[c.Category]++
	}

	report.Summary["platforms"] = platformCount
	report.Summary["sentiment"] = sentimentCount
	report.Summary["complaints"] = complaintCount
	report.Summary["top_platforms"] = topCounts(platformCount, 5)

	return report
}

func topCounts(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	var top []string
	for i, k := range keys {
		if i >= n {
			break
		}
		top = append(top, fmt.Sprintf("%s (%d)", k, counts[k]))
	}
	return top
}

// RunUrgentCheck looks at the newest reviews and alerts on serious
// complaints. A review is marked alerted only once its alert is delivered,
// so failed sends are retried on the next check.
func (s *Service) RunUrgentCheck(ctx context.Context) error {
	start := time.Now()
	logrus.Info("Starting urgent complaints check")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	srcs := s.sources()
	results, errorCount := s.fetchAll(ctx, srcs, func(b config.Business) models.TaskParams {
		params := b.TaskParams(min(s.config.ReviewDepth, urgentDepth))
		params.SortBy = "newest"
		return params
	})

	var alerts []*models.Alert
	pending := make(map[string]bool)
	for i, src := range srcs {
		for _, review := range withinWindow(results[i], start.Add(-urgentWindow)) {
			alert := s.urgentAlert(src.business.Name, review)
			if alert == nil || pending[alert.ID] {
				continue
			}
			pending[alert.ID] = true
			alerts = append(alerts, alert)
		}
	}

	s.addErrors(errorCount)

	if len(alerts) == 0 {
		logrus.Info("No urgent complaints found")
		return nil
	}

	logrus.Infof("Found %d urgent complaints requiring immediate notification", len(alerts))

	if err := s.storeJSON(snapshotName("alerts", "urgent", start), alerts); err != nil {
		logrus.Errorf("Failed to store urgent alerts: %v", err)
		s.addErrors(1)
		return err
	}

	var failures []string
	sent := 0
	for _, alert := range alerts {
		if err := s.notificationService.SendAlert(alert); err != nil {
			logrus.Errorf("Failed to send alert %s: %v", alert.ID, err)
			failures = append(failures, err.Error())
			continue
		}
		sent++

		s.mu.Lock()
		s.alerted[alert.ID] = true
		s.metrics.AlertsSent++
		s.mu.Unlock()
	}

	if len(failures) > 0 {
		s.addErrors(len(failures))
		return fmt.Errorf("failed to send %d urgent alerts: %s", len(failures), strings.Join(failures, "; "))
	}

	logrus.Infof("Urgent check completed in %v, sent %d urgent alerts", time.Since(start), sent)
	return nil
}

// urgentAlert returns an alert when the review is a complaint at or above
// the configured severity and no alert for it has been delivered yet
func (s *Service) urgentAlert(business string, review models.Review) *models.Alert {
	complaint := analysis.DetectComplaint(review.Content)
	if !complaint.IsComplaint || severityRank(complaint.Severity) < severityRank(s.config.UrgentSeverity) {
		return nil
	}
	complaint.ReviewID = review.ID

	key := review.Platform + "/" + review.ID
	s.mu.Lock()
	delivered := s.alerted["alert-"+key]
	s.mu.Unlock()
	if delivered {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"business": business,
		"platform": review.Platform,
		"review":   review.ID,
		"category": complaint.Category,
		"severity": complaint.Severity,
	}).Info("Urgent complaint detected")

	r := review
	return &models.Alert{
		ID:        "alert-" + key,
		Type:      alertType(complaint.Severity),
		Title:     fmt.Sprintf("%s complaint about %s on %s", strings.Title(complaint.Severity), business, review.Platform),
		Message:   fmt.Sprintf("%d-star review (%s): %s", review.Rating, complaint.Category, complaint.SuggestedAction),
		Business:  business,
		Review:    &r,
		Complaint: &complaint,
		CreatedAt: time.Now(),
	}
}

func severityRank(severity string) int {
	switch severity {
	case models.SeverityHigh:
		return 3
	case models.SeverityMedium:
		return 2
	case models.SeverityLow:
		return 1
	}
	return 0
}

func alertType(severity string) string {
	if severity == models.SeverityHigh {
		return "critical"
	}
	return "urgent"
}

func (s *Service) storeJSON(filename string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filename, err)
	}
	return s.storage.Store(filename, data)
}

func snapshotName(kind, name string, at time.Time) string {
	return fmt.Sprintf("%s/%s-%s.json", kind, slug(name), at.Format("2006-01-02-15-04-05"))
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// addErrors adds to the error count shared by monitoring runs and urgent checks
func (s *Service) addErrors(n int) {
	if n == 0 {
		return
	}
	s.mu.Lock()
	s.metrics.ErrorCount += n
	s.mu.Unlock()
}

func (s *Service) updateMetrics(reviews []models.Review, complaints int, duration time.Duration, errorCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalReviews = len(reviews)
	s.metrics.LastRun = time.Now()
	s.metrics.LastRunDuration = duration.String()
	s.metrics.ComplaintCount = complaints
	s.metrics.ErrorCount += errorCount

	// Reset counters
	s.metrics.PlatformMetrics = make(map[string]int)
	s.metrics.SentimentBreakdown = make(map[string]int)

	for _, review := range reviews {
		s.metrics.PlatformMetrics[review.Platform]++
		s.metrics.SentimentBreakdown[analysis.AnalyzeSentiment(review.Content).Label]++
	}
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	snapshot := *s.metrics
	s.mu.RUnlock()

	if l, ok := s.fetcher.(limited); ok && l.Limiter() != nil {
		snapshot.LimiterQueueDepth = l.Limiter().QueueDepth()
		snapshot.LimiterInFlight = l.Limiter().InFlight()
	}

	data, _ := json.MarshalIndent(snapshot, "", "  ")
	return string(data)
}
