package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/limitup/pkg/logger"
	"github.com/wonny/limitup/pkg/metrics"
)

type fakeJob struct {
	name   string
	spec   string
	calls  int32
	fails  int32 // fail the first n calls
	block  chan struct{}
	panics bool
	policy *RetryPolicy
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.spec }
func (j *fakeJob) Description() string {
	return "fake " + j.name
}

func (j *fakeJob) Run(ctx context.Context) error {
	n := atomic.AddInt32(&j.calls, 1)
	if j.panics {
		panic("boom")
	}
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if n <= atomic.LoadInt32(&j.fails) {
		return errors.New("provider down")
	}
	return nil
}

type retryingJob struct {
	*fakeJob
}

func (j retryingJob) RetryPolicy() RetryPolicy { return *j.policy }

func newTestScheduler() *Scheduler {
	return New(time.UTC, metrics.New(), logger.Nop())
}

func TestScheduler_AddListRemove(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&fakeJob{name: "b", spec: "0 0 20 * * 1-5"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "a", spec: "0 */5 * * * *"}))

	assert.Error(t, s.AddJob(&fakeJob{name: "a", spec: "@daily"}), "duplicate")
	assert.Error(t, s.AddJob(&fakeJob{name: "c", spec: "not a spec"}))

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())
	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "fake a", list[0].Description)
	assert.Equal(t, "0 */5 * * * *", list[0].Schedule)

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"b"}, s.GetAllJobs())
}

func TestScheduler_RetriesWithPolicy(t *testing.T) {
	s := newTestScheduler()
	job := retryingJob{&fakeJob{name: "flaky", spec: "@daily", fails: 2, policy: &RetryPolicy{MaxRetries: 3, Delay: time.Millisecond}}}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunJobSync(context.Background(), "flaky")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), job.calls)
}

func TestScheduler_NoRetryPolicy(t *testing.T) {
	s := newTestScheduler()
	job := retryingJob{&fakeJob{name: "window", spec: "@daily", fails: 5, policy: &RetryPolicy{}}}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunJobSync(context.Background(), "window")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "provider down", res.Error)

	stats := s.GetJobStats()["window"]
	assert.Equal(t, 1, stats.FailureCount)
	assert.NotNil(t, stats.LastFailure)
	assert.Equal(t, 0.0, stats.SuccessRate)
}

func TestScheduler_SkipsOverlap(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "slow", spec: "@daily", block: make(chan struct{})}
	require.NoError(t, s.AddJob(job))

	done := make(chan JobResult, 1)
	go func() {
		res, _ := s.RunJobSync(context.Background(), "slow")
		done <- res
	}()
	require.Eventually(t, func() bool { return s.IsRunning("slow") }, time.Second, time.Millisecond)

	res, err := s.RunJobSync(context.Background(), "slow")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.calls))

	close(job.block)
	first := <-done
	assert.True(t, first.Success)

	stats := s.GetJobStats()["slow"]
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.SkippedCount)
	assert.Equal(t, 0, stats.FailureCount)
	assert.Equal(t, 1.0, stats.SuccessRate)
}

func TestScheduler_RecoversPanic(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(retryingJob{&fakeJob{name: "bad", spec: "@daily", panics: true, policy: &RetryPolicy{}}}))

	res, err := s.RunJobSync(context.Background(), "bad")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "panicked")
	assert.False(t, s.IsRunning("bad"))
}

func TestScheduler_StopCancelsRunningJobs(t *testing.T) {
	s := newTestScheduler()
	job := retryingJob{&fakeJob{name: "long", spec: "@daily", block: make(chan struct{}), policy: &RetryPolicy{}}}
	require.NoError(t, s.AddJob(job))
	s.Start()

	require.NoError(t, s.RunJob("long"))
	require.Eventually(t, func() bool { return s.IsRunning("long") }, time.Second, time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning("long"))

	h, err := s.GetJobHistory("long")
	require.NoError(t, err)
	require.Len(t, h.Results, 1)
	assert.Contains(t, h.Results[0].Error, context.Canceled.Error())
}

func TestScheduler_UnknownJob(t *testing.T) {
	s := newTestScheduler()
	assert.Error(t, s.RunJob("nope"))
	_, err := s.RunJobSync(context.Background(), "nope")
	assert.Error(t, err)
	_, err = s.GetJobHistory("nope")
	assert.Error(t, err)
}

func TestJobHistory_Bounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 120; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}
	assert.Len(t, h.Results, 100)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.Empty(t, h.GetLatestResults(0))
	assert.Equal(t, 0.5, h.GetSuccessRate())
}
