package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/pipeline"
	"github.com/wonny/limitup/internal/scheduler"
	"github.com/wonny/limitup/internal/strategyconfig"
	"github.com/wonny/limitup/pkg/logger"
)

// AuctionRunner runs the T+1 stage
type AuctionRunner interface {
	RunAuction(ctx context.Context, date time.Time, wait bool) (*pipeline.AuctionResult, error)
}

// AuctionJob re-scores yesterday's picks inside the opening auction window.
// It fires slightly before the window and waits for it to open.
type AuctionJob struct {
	runner   AuctionRunner
	schedule string
	window   strategyconfig.TimeWindow
	loc      *time.Location
	now      func() time.Time
	logger   *logger.Logger
}

// NewAuctionJob creates the T+1 job
func NewAuctionJob(runner AuctionRunner, sched strategyconfig.ScheduleConfig, loc *time.Location, log *logger.Logger) (*AuctionJob, error) {
	spec, err := ClockSpec(sched.AuctionWindow.Start, sched.AuctionLeadDuration, Weekdays)
	if err != nil {
		return nil, fmt.Errorf("auction schedule: %w", err)
	}
	return &AuctionJob{
		runner:   runner,
		schedule: spec,
		window:   sched.AuctionWindow,
		loc:      loc,
		now:      time.Now,
		logger:   log.WithComponent("job.t1_auction"),
	}, nil
}

// WithClock overrides the wall clock
func (j *AuctionJob) WithClock(now func() time.Time) *AuctionJob {
	j.now = now
	return j
}

// Name returns the job name
func (j *AuctionJob) Name() string {
	return "t1_auction"
}

// Schedule returns the cron schedule
func (j *AuctionJob) Schedule() string {
	return j.schedule
}

// Description explains the job
func (j *AuctionJob) Description() string {
	return fmt.Sprintf("evaluate T-day picks with live auction data (%s-%s)", j.window.Start, j.window.End)
}

// RetryPolicy disables retries: a retry would land outside the window
func (j *AuctionJob) RetryPolicy() scheduler.RetryPolicy {
	return scheduler.RetryPolicy{}
}

// Run executes the T+1 stage for today. A blocked run is a valid outcome, not a failure.
func (j *AuctionJob) Run(ctx context.Context) error {
	today := midnight(j.now(), j.loc)
	res, err := j.runner.RunAuction(ctx, today, true)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{"date": today.Format(contracts.DateLayout)}
	switch {
	case res.Skipped:
		fields["reason"] = res.Reason
		j.logger.WithFields(fields).Info("Auction job skipped")
	case res.Blocked():
		fields["reason"] = res.Outcome.Reason
		j.logger.WithFields(fields).Warn("Auction job blocked")
	}
	return nil
}
