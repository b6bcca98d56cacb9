package scheduler

import (
	"context"
	"time"
)

// Job represents a scheduled job
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	// Name returns the job name
	Name() string

	// Run executes the job
	Run(ctx context.Context) error

	// Schedule returns the cron schedule expression (with seconds)
	// Examples: "0 0 20 * * 1-5" (weekdays at 8 PM)
	//           "@daily", "@hourly"
	Schedule() string
}

// Describer is implemented by jobs that explain themselves in `scheduler list`
type Describer interface {
	Description() string
}

// RetryPolicy controls how often a failed run is retried
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// Retrier is implemented by jobs that want a non-default retry policy
type Retrier interface {
	RetryPolicy() RetryPolicy
}

// DefaultRetryPolicy applies to jobs without their own policy
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, Delay: time.Minute}

// PolicyFor returns the job's retry policy
func PolicyFor(job Job) RetryPolicy {
	if r, ok := job.(Retrier); ok {
		return r.RetryPolicy()
	}
	return DefaultRetryPolicy
}

// JobResult represents the result of a job execution
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Skipped   bool          `json:"skipped,omitempty"` // overlapped a running instance
	Attempts  int           `json:"attempts,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// JobHistory stores job execution history
type JobHistory struct {
	Results []JobResult
}

// AddResult adds a job result to history
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)

	// Keep only last 100 results
	if len(h.Results) > 100 {
		h.Results = h.Results[len(h.Results)-100:]
	}
}

// GetLatestResults returns the latest N results
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}

	if n <= 0 {
		return []JobResult{}
	}

	return h.Results[len(h.Results)-n:]
}

// GetFailedResults returns all failed results (skipped triggers excluded)
func (h *JobHistory) GetFailedResults() []JobResult {
	failed := make([]JobResult, 0)
	for _, result := range h.Results {
		if !result.Success && !result.Skipped {
			failed = append(failed, result)
		}
	}
	return failed
}

// SuccessCount returns the number of successful runs
func (h *JobHistory) SuccessCount() int {
	n := 0
	for _, result := range h.Results {
		if result.Success {
			n++
		}
	}
	return n
}

// SkippedCount returns the number of overlapped triggers
func (h *JobHistory) SkippedCount() int {
	n := 0
	for _, result := range h.Results {
		if result.Skipped {
			n++
		}
	}
	return n
}

// GetSuccessRate returns the success rate over executed runs (0.0 - 1.0)
func (h *JobHistory) GetSuccessRate() float64 {
	executed := len(h.Results) - h.SkippedCount()
	if executed == 0 {
		return 0.0
	}
	return float64(h.SuccessCount()) / float64(executed)
}
