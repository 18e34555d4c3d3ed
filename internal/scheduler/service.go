package scheduler

import (
	"context"
	"fmt"

	"github.com/review-insights/review-insights-bot/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	dailyExpression  = "0 0 9 * * *"
	weeklyExpression = "0 0 9 * * MON"
)

// Runner is the work the scheduler triggers
type Runner interface {
	RunMonitoring(ctx context.Context) error
	RunUrgentCheck(ctx context.Context) error
}

// Service handles scheduling of monitoring tasks
type Service struct {
	config *config.Config
	runner Runner
	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewService creates a new scheduler service. Overlapping runs of the same
// job are skipped and job panics are recovered.
func NewService(cfg *config.Config, runner Runner) *Service {
	logger := cron.VerbosePrintfLogger(logrus.StandardLogger())
	return &Service{
		config: cfg,
		runner: runner,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

// reportExpression returns the cron expression for the report schedule
func reportExpression(schedule string) string {
	if schedule == "daily" {
		// Run daily at 9 AM UTC
		return dailyExpression
	}
	// Run weekly on Monday at 9 AM UTC
	return weeklyExpression
}

// Start registers the report and urgent-check jobs. Jobs run with a context
// derived from ctx and are cancelled by Stop.
func (s *Service) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	_, err := s.cron.AddFunc(reportExpression(s.config.ReportSchedule), func() {
		logrus.Info("Starting scheduled monitoring run")
		if err := s.runner.RunMonitoring(ctx); err != nil {
			logrus.Errorf("Scheduled monitoring run failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid report schedule: %w", err)
	}

	urgent := s.config.UrgentSchedule
	if urgent == "" {
		urgent = "0 0 */4 * * *"
	}
	_, err = s.cron.AddFunc(urgent, func() {
		logrus.Info("Starting urgent complaints check")
		if err := s.runner.RunUrgentCheck(ctx); err != nil {
			logrus.Errorf("Urgent complaints check failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid urgent schedule %q: %w", urgent, err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s schedule (urgent checks: %s)", s.config.ReportSchedule, urgent)
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
