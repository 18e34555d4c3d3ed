package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/review-insights/review-insights-bot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	monitoring atomic.Int32
	urgent     atomic.Int32
}

func (r *countingRunner) RunMonitoring(ctx context.Context) error {
	r.monitoring.Add(1)
	return nil
}

func (r *countingRunner) RunUrgentCheck(ctx context.Context) error {
	r.urgent.Add(1)
	return errors.New("provider down")
}

func TestReportExpression(t *testing.T) {
	tests := []struct {
		schedule string
		want     string
	}{
		{"daily", "0 0 9 * * *"},
		{"weekly", "0 0 9 * * MON"},
		{"", "0 0 9 * * MON"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, reportExpression(tt.schedule))
	}
}

func TestService_StartRegistersJobs(t *testing.T) {
	runner := &countingRunner{}
	service := NewService(&config.Config{ReportSchedule: "daily"}, runner)

	require.NoError(t, service.Start(context.Background()))
	defer service.Stop()

	assert.Len(t, service.cron.Entries(), 2)
}

func TestService_RunsUrgentCheck(t *testing.T) {
	runner := &countingRunner{}
	service := NewService(&config.Config{ReportSchedule: "weekly", UrgentSchedule: "* * * * * *"}, runner)

	require.NoError(t, service.Start(context.Background()))

	assert.Eventually(t, func() bool { return runner.urgent.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	service.Stop()
	assert.Zero(t, runner.monitoring.Load())
}

func TestService_InvalidUrgentSchedule(t *testing.T) {
	service := NewService(&config.Config{ReportSchedule: "weekly", UrgentSchedule: "every now and then"}, &countingRunner{})

	err := service.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid urgent schedule")
	service.Stop()
}
