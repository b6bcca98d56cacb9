package jobs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/limitup/internal/auction"
	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/feedback"
	"github.com/wonny/limitup/internal/marketdata/mdtest"
	"github.com/wonny/limitup/internal/notify"
	"github.com/wonny/limitup/internal/performance"
	"github.com/wonny/limitup/internal/pipeline"
	"github.com/wonny/limitup/internal/scheduler"
	"github.com/wonny/limitup/internal/scheduler/jobs"
	"github.com/wonny/limitup/internal/store"
	"github.com/wonny/limitup/internal/strategyconfig"
	"github.com/wonny/limitup/pkg/database"
	"github.com/wonny/limitup/pkg/logger"
)

var loc = mdtest.D("20240222").Location()

type fakeRunner struct {
	mu      sync.Mutex
	dates   []time.Time
	waits   []bool
	tday    *pipeline.TDayResult
	auction *pipeline.AuctionResult
	err     error
}

func (f *fakeRunner) RunTDay(ctx context.Context, date time.Time) (*pipeline.TDayResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dates = append(f.dates, date)
	return f.tday, f.err
}

func (f *fakeRunner) RunAuction(ctx context.Context, date time.Time, wait bool) (*pipeline.AuctionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dates = append(f.dates, date)
	f.waits = append(f.waits, wait)
	return f.auction, f.err
}

type recorder struct {
	msgs []notify.Message
}

func (r *recorder) Notify(ctx context.Context, msg notify.Message) error {
	r.msgs = append(r.msgs, msg)
	return nil
}

func TestTDayJob(t *testing.T) {
	r := &fakeRunner{tday: &pipeline.TDayResult{}}
	j, err := jobs.NewTDayJob(r, "20:00", loc, logger.Nop())
	require.NoError(t, err)
	j.WithClock(func() time.Time { return time.Date(2024, 2, 22, 12, 0, 5, 0, time.UTC) }) // 20:00:05 CST

	assert.Equal(t, "0 0 20 * * 1-5", j.Schedule())
	assert.Equal(t, 2, scheduler.PolicyFor(j).MaxRetries)

	require.NoError(t, j.Run(context.Background()))
	require.Len(t, r.dates, 1)
	assert.True(t, r.dates[0].Equal(mdtest.D("20240222")))

	r.err = errors.New("limit list unavailable")
	assert.Error(t, j.Run(context.Background()))

	_, err = jobs.NewTDayJob(r, "8pm", loc, logger.Nop())
	assert.Error(t, err)
}

func TestAuctionJob_BlockedIsNotFailure(t *testing.T) {
	r := &fakeRunner{auction: &pipeline.AuctionResult{
		Outcome: &auction.Outcome{State: auction.StateBlocked, Reason: "window closed at 09:29:00"},
	}}
	j, err := jobs.NewAuctionJob(r, strategyconfig.Default().Schedule, loc, logger.Nop())
	require.NoError(t, err)
	j.WithClock(func() time.Time { return mdtest.D("20240222").Add(9*time.Hour + 24*time.Minute + 30*time.Second) })

	// 윈도우 30초 전에 시작
	assert.Equal(t, "30 24 9 * * 1-5", j.Schedule())
	assert.Equal(t, 0, scheduler.PolicyFor(j).MaxRetries)
	assert.Contains(t, j.Description(), "09:25-09:29")

	require.NoError(t, j.Run(context.Background()))
	require.Len(t, r.waits, 1)
	assert.True(t, r.waits[0])
	assert.True(t, r.dates[0].Equal(mdtest.D("20240222")))
}

type fakeTracker struct {
	synced contracts.DateRange
	err    error
}

func (f *fakeTracker) Lookback() contracts.DateRange {
	return contracts.DateRange{From: mdtest.D("20240122"), To: mdtest.D("20240222")}
}

func (f *fakeTracker) Sync(ctx context.Context, from, to time.Time) (*performance.SyncResult, error) {
	f.synced = contracts.DateRange{From: from, To: to}
	return &performance.SyncResult{From: from, To: to, Checked: 4, Closed: 3, Pending: 1}, f.err
}

func (f *fakeTracker) Report(ctx context.Context, r contracts.DateRange) (*performance.Report, error) {
	return &performance.Report{
		Range: r,
		Stats: performance.Compute([]performance.Outcome{{Symbol: "600100.SH", ReturnPct: 3, Score: 80}}, performance.StatsOptions{MinTrades: 30}),
	}, nil
}

func TestPerformanceJob(t *testing.T) {
	tr := &fakeTracker{}
	rec := &recorder{}
	j, err := jobs.NewPerformanceJob(tr, rec, "ops", "16:30", logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, "0 30 16 * * 1-5", j.Schedule())

	require.NoError(t, j.Run(context.Background()))
	assert.True(t, tr.synced.From.Equal(mdtest.D("20240122")))
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, notify.KindPerformance, rec.msgs[0].Kind)
	assert.Equal(t, "ops", rec.msgs[0].Destination)

	tr.err = errors.New("store locked")
	assert.Error(t, j.Run(context.Background()))
	assert.Len(t, rec.msgs, 1)
}

type fakeEvolver struct {
	res *feedback.EvolutionResult
	err error
}

func (f fakeEvolver) Evolve(ctx context.Context, force bool) (*feedback.EvolutionResult, error) {
	return f.res, f.err
}

func TestFeedbackJob(t *testing.T) {
	session := &contracts.LearningSession{Kind: feedback.KindEvolution, Status: contracts.SessionCompleted}

	tests := []struct {
		name     string
		ev       fakeEvolver
		wantErr  bool
		notified int
	}{
		{"completed", fakeEvolver{res: &feedback.EvolutionResult{Session: session}}, false, 1},
		{"throttled", fakeEvolver{res: &feedback.EvolutionResult{Throttled: true}}, false, 0},
		{"insufficient", fakeEvolver{err: feedback.ErrInsufficientData}, false, 0},
		{"store failure", fakeEvolver{err: errors.New("disk full")}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			j, err := jobs.NewFeedbackJob(tt.ev, rec, "ops", "16:30", 6, logger.Nop())
			require.NoError(t, err)
			assert.Equal(t, "0 30 16 * * 6", j.Schedule())

			err = j.Run(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, rec.msgs, tt.notified)
		})
	}

	_, err := jobs.NewFeedbackJob(fakeEvolver{}, nil, "", "16:30", 7, logger.Nop())
	assert.Error(t, err)
}

func TestMaintenanceJob(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "limitup.db"))
	require.NoError(t, err)
	st, err := store.NewSQLite(ctx, db, loc, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	now := mdtest.D("20250301").Add(2 * time.Hour)
	old := &contracts.Recommendation{
		ID: contracts.RecommendationID(mdtest.D("20230105"), "600100.SH"), TradeDate: mdtest.D("20230105"),
		T1Date: mdtest.D("20230106"), Symbol: "600100.SH", Status: contracts.StatusScored,
	}
	require.NoError(t, st.UpsertRecommendation(ctx, old))

	dir := filepath.Join(t.TempDir(), "backups")
	j, err := jobs.NewMaintenanceJob(st, strategyconfig.Default().Retention, dir, 7, "02:00", logger.Nop())
	require.NoError(t, err)
	j.WithClock(func() time.Time { return now })
	assert.Equal(t, "0 0 2 * * *", j.Schedule())

	require.NoError(t, j.Run(ctx))

	_, err = st.GetRecommendation(ctx, old.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
