package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/wonny/limitup/internal/feedback"
	"github.com/wonny/limitup/internal/notify"
	"github.com/wonny/limitup/pkg/logger"
)

// Evolver runs the factor review
type Evolver interface {
	Evolve(ctx context.Context, force bool) (*feedback.EvolutionResult, error)
}

// FeedbackJob runs the weekly factor review.
// The optimizer throttles itself by review interval, so a weekly trigger is cheap.
type FeedbackJob struct {
	evolver     Evolver
	notifier    notify.Notifier
	destination string
	schedule    string
	now         func() time.Time
	logger      *logger.Logger
}

// NewFeedbackJob creates the feedback job firing at clock on weekday (0=Sunday)
func NewFeedbackJob(ev Evolver, n notify.Notifier, destination, clock string, weekday int, log *logger.Logger) (*FeedbackJob, error) {
	if weekday < 0 || weekday > 6 {
		return nil, fmt.Errorf("feedback schedule: weekday %d out of range", weekday)
	}
	spec, err := ClockSpec(clock, 0, strconv.Itoa(weekday))
	if err != nil {
		return nil, fmt.Errorf("feedback schedule: %w", err)
	}
	return &FeedbackJob{
		evolver:     ev,
		notifier:    n,
		destination: destination,
		schedule:    spec,
		now:         time.Now,
		logger:      log.WithComponent("job.feedback"),
	}, nil
}

// Name returns the job name
func (j *FeedbackJob) Name() string {
	return "factor_review"
}

// Schedule returns the cron schedule
func (j *FeedbackJob) Schedule() string {
	return j.schedule
}

// Description explains the job
func (j *FeedbackJob) Description() string {
	return "re-weight factors from realized outcomes and propose new ones"
}

// Run executes one review. Insufficient data is a no-op, not a failure.
func (j *FeedbackJob) Run(ctx context.Context) error {
	res, err := j.evolver.Evolve(ctx, false)
	if errors.Is(err, feedback.ErrInsufficientData) {
		j.logger.WithError(err).Info("Factor review skipped, not enough samples")
		return nil
	}
	if err != nil {
		return err
	}
	if res.Throttled {
		return nil
	}
	notify.Send(ctx, j.notifier, notify.Stamp(notify.Evolution(res), j.destination, j.now()), j.logger)
	return nil
}
