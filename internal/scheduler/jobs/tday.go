package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/pipeline"
	"github.com/wonny/limitup/internal/scheduler"
	"github.com/wonny/limitup/pkg/logger"
)

// TDayRunner runs the T-day stage
type TDayRunner interface {
	RunTDay(ctx context.Context, date time.Time) (*pipeline.TDayResult, error)
}

// TDayJob scores today's limit-up list after the close
// ⭐ SSOT: T일 스케줄은 이 Job에서만
type TDayJob struct {
	runner   TDayRunner
	schedule string
	loc      *time.Location
	now      func() time.Time
	logger   *logger.Logger
}

// NewTDayJob creates the T-day job firing at clock (HH:MM) on weekdays
func NewTDayJob(runner TDayRunner, clock string, loc *time.Location, log *logger.Logger) (*TDayJob, error) {
	spec, err := ClockSpec(clock, 0, Weekdays)
	if err != nil {
		return nil, fmt.Errorf("t-day schedule: %w", err)
	}
	return &TDayJob{
		runner:   runner,
		schedule: spec,
		loc:      loc,
		now:      time.Now,
		logger:   log.WithComponent("job.t_day"),
	}, nil
}

// WithClock overrides the wall clock
func (j *TDayJob) WithClock(now func() time.Time) *TDayJob {
	j.now = now
	return j
}

// Name returns the job name
func (j *TDayJob) Name() string {
	return "t_day_scoring"
}

// Schedule returns the cron schedule
func (j *TDayJob) Schedule() string {
	return j.schedule
}

// Description explains the job
func (j *TDayJob) Description() string {
	return "score today's limit-up list and hand the top picks to T+1"
}

// RetryPolicy allows a couple of retries; provider outages after the close are often short
func (j *TDayJob) RetryPolicy() scheduler.RetryPolicy {
	return scheduler.RetryPolicy{MaxRetries: 2, Delay: 5 * time.Minute}
}

// Run executes the T-day stage for today
func (j *TDayJob) Run(ctx context.Context) error {
	today := midnight(j.now(), j.loc)
	res, err := j.runner.RunTDay(ctx, today)
	if err != nil {
		return err
	}
	if res.Skipped {
		j.logger.WithFields(map[string]interface{}{
			"date":   today.Format(contracts.DateLayout),
			"reason": res.Reason,
		}).Info("T-day job skipped")
	}
	return nil
}

func midnight(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
