package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/notify"
	"github.com/wonny/limitup/internal/performance"
	"github.com/wonny/limitup/pkg/logger"
)

// Tracker values recommendations and reports on them
type Tracker interface {
	Sync(ctx context.Context, from, to time.Time) (*performance.SyncResult, error)
	Report(ctx context.Context, r contracts.DateRange) (*performance.Report, error)
	Lookback() contracts.DateRange
}

// PerformanceJob closes positions after the session and pushes the portfolio report
// ⭐ SSOT: 성과 동기화 스케줄은 이 Job에서만
type PerformanceJob struct {
	tracker     Tracker
	notifier    notify.Notifier
	destination string
	schedule    string
	now         func() time.Time
	logger      *logger.Logger
}

// NewPerformanceJob creates the performance job firing at clock on weekdays
func NewPerformanceJob(tracker Tracker, n notify.Notifier, destination, clock string, log *logger.Logger) (*PerformanceJob, error) {
	spec, err := ClockSpec(clock, 0, Weekdays)
	if err != nil {
		return nil, fmt.Errorf("performance schedule: %w", err)
	}
	return &PerformanceJob{
		tracker:     tracker,
		notifier:    n,
		destination: destination,
		schedule:    spec,
		now:         time.Now,
		logger:      log.WithComponent("job.performance"),
	}, nil
}

// Name returns the job name
func (j *PerformanceJob) Name() string {
	return "performance_sync"
}

// Schedule returns the cron schedule
func (j *PerformanceJob) Schedule() string {
	return j.schedule
}

// Description explains the job
func (j *PerformanceJob) Description() string {
	return "synthesize T+1 open / T+2 close trades and report portfolio statistics"
}

// Run syncs the lookback range and sends the report
func (j *PerformanceJob) Run(ctx context.Context) error {
	r := j.tracker.Lookback()

	// 1. Sync positions
	synced, err := j.tracker.Sync(ctx, r.From, r.To)
	if err != nil {
		return fmt.Errorf("performance sync: %w", err)
	}

	// 2. Report
	rep, err := j.tracker.Report(ctx, r)
	if err != nil {
		return fmt.Errorf("performance report: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"checked": synced.Checked,
		"closed":  synced.Closed,
		"pending": synced.Pending,
		"trades":  rep.Stats.Trades,
	}).Info("Performance job completed")

	notify.Send(ctx, j.notifier, notify.Stamp(notify.Performance(rep), j.destination, j.now()), j.logger)
	return nil
}
