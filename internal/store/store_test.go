package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/marketdata/mdtest"
	"github.com/wonny/limitup/internal/strategyconfig"
	"github.com/wonny/limitup/pkg/config"
	"github.com/wonny/limitup/pkg/database"
	"github.com/wonny/limitup/pkg/logger"
)

func newTestStore(t *testing.T, path string) *SQLStore {
	t.Helper()
	db, err := database.OpenSQLite(path)
	require.NoError(t, err)

	st, err := NewSQLite(context.Background(), db, mdtest.D("20240101").Location(), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func recommendation(date, t1, symbol string, score float64) *contracts.Recommendation {
	d := mdtest.D(date)
	return &contracts.Recommendation{
		ID:            contracts.RecommendationID(d, symbol),
		TradeDate:     d,
		T1Date:        mdtest.D(t1),
		Symbol:        symbol,
		Name:          "Test " + symbol,
		TotalScore:    score,
		TDayScore:     score,
		AuctionScore:  40,
		OpenChangePct: 3.2,
		Breakdown:     map[string]float64{"timing": 30},
		Snapshot: contracts.RecommendationSnapshot{
			SealRatio:   1.2,
			SealToMV:    0.0004,
			IsHotSector: true,
			Attributes:  contracts.CandidateAttributes{TurnoverRate: 8.5, PctChange: 10.01},
			Factors:     map[string]float64{"first_limit_time": 30, "turnover_rate": 4},
		},
		Status: contracts.StatusScored,
	}
}

func TestRecommendation_RoundTripAndIdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, ":memory:")

	rec := recommendation("20240221", "20240222", "600100.SH", 88.5)
	require.NoError(t, st.UpsertRecommendation(ctx, rec))
	created := rec.CreatedAt

	got, err := st.GetRecommendation(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.TradeDate.Equal(rec.TradeDate))
	assert.True(t, got.T1Date.Equal(rec.T1Date))
	assert.Equal(t, 88.5, got.TotalScore)
	assert.Equal(t, contracts.StatusScored, got.Status)
	assert.Nil(t, got.Decision)
	assert.Equal(t, 30.0, got.Breakdown["timing"])
	assert.Equal(t, 4.0, got.Snapshot.Factors["turnover_rate"])
	assert.True(t, got.Snapshot.IsHotSector)

	// 같은 (날짜, 종목)은 같은 행을 갱신
	again := recommendation("20240221", "20240222", "600100.SH", 91)
	again.Status = contracts.StatusEvaluated
	again.Decision = &contracts.Decision{Action: contracts.ActionBuy, Confidence: contracts.ConfidenceHigh, Position: 0.2}
	require.NoError(t, st.UpsertRecommendation(ctx, again))

	all, err := st.ListRecommendations(ctx, RecommendationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 91.0, all[0].TotalScore)
	assert.Equal(t, contracts.StatusEvaluated, all[0].Status)
	require.NotNil(t, all[0].Decision)
	assert.Equal(t, 0.2, all[0].Decision.Position)
	assert.True(t, all[0].CreatedAt.Equal(created), "created_at is kept on update")

	// T일 재채점은 T+1 결과를 덮어쓰지 않음
	rescored := recommendation("20240221", "20240222", "600100.SH", 95)
	require.NoError(t, st.UpsertRecommendation(ctx, rescored))
	got, err = st.GetRecommendation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusEvaluated, got.Status)
	assert.Equal(t, 91.0, got.TotalScore)
	require.NotNil(t, got.Decision)
	assert.Equal(t, contracts.ActionBuy, got.Decision.Action)
}

func TestRecommendation_NotFound(t *testing.T) {
	st := newTestStore(t, ":memory:")
	_, err := st.GetRecommendation(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRecommendations_Filters(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, ":memory:")

	for _, r := range []*contracts.Recommendation{
		recommendation("20240221", "20240222", "600100.SH", 70),
		recommendation("20240221", "20240222", "600200.SH", 90),
		recommendation("20240222", "20240223", "600300.SH", 80),
	} {
		require.NoError(t, st.UpsertRecommendation(ctx, r))
	}

	byT1, err := st.ListRecommendations(ctx, RecommendationFilter{T1Date: mdtest.D("20240222")})
	require.NoError(t, err)
	require.Len(t, byT1, 2)
	assert.Equal(t, "600200.SH", byT1[0].Symbol, "best score first")

	limited, err := st.ListRecommendations(ctx, RecommendationFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "600300.SH", limited[0].Symbol, "newest trade date first")

	ranged, err := st.ListRecommendations(ctx, RecommendationFilter{
		Range:    contracts.DateRange{From: mdtest.D("20240221"), To: mdtest.D("20240221")},
		Symbol:   "600100.SH",
		Statuses: []contracts.RecommendationStatus{contracts.StatusScored, contracts.StatusEvaluated},
	})
	require.NoError(t, err)
	require.Len(t, ranged, 1)

	none, err := st.ListRecommendations(ctx, RecommendationFilter{Statuses: []contracts.RecommendationStatus{contracts.StatusBlocked}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTrades_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, ":memory:")

	recID := contracts.RecommendationID(mdtest.D("20240221"), "600100.SH")
	buy := contracts.NewTrade(recID, contracts.SideBuy, mdtest.D("20240222"), "09:30:00", 10.5, 1000, contracts.TradeSimulated)
	sell := contracts.NewTrade(recID, contracts.SideSell, mdtest.D("20240223"), "15:00:00", 11, 1000, contracts.TradeSimulated)

	require.NoError(t, st.RecordTrade(ctx, sell))
	require.NoError(t, st.RecordTrade(ctx, buy))
	buy.Price = 10.6
	buy.Amount = 10600
	require.NoError(t, st.RecordTrade(ctx, buy))

	trades, err := st.ListTradesFor(ctx, recID)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, contracts.SideBuy, trades[0].Side)
	assert.Equal(t, 10.6, trades[0].Price)
	assert.Equal(t, recID+"_buy_20240222", trades[0].ID)
	assert.True(t, trades[1].Date.Equal(mdtest.D("20240223")))
	assert.Equal(t, contracts.TradeSimulated, trades[1].Status)
}

func closed(recID string, buy, sell string, ret float64) *contracts.PerformanceRecord {
	sd := mdtest.D(sell)
	sp := 10 * (1 + ret/100)
	return &contracts.PerformanceRecord{
		RecommendationID: recID,
		BuyDate:          mdtest.D(buy),
		BuyPrice:         10,
		SellDate:         &sd,
		SellPrice:        &sp,
		HoldingDays:      1,
		ReturnPct:        ret,
		WinLoss:          contracts.ClassifyReturn(ret),
	}
}

func TestPerformance_RecordGetAndAggregate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, ":memory:")

	pending := &contracts.PerformanceRecord{RecommendationID: "p", BuyDate: mdtest.D("20240222"), BuyPrice: 10, WinLoss: contracts.Pending}
	require.NoError(t, st.RecordPerformance(ctx, pending))

	got, err := st.GetPerformance(ctx, "p")
	require.NoError(t, err)
	assert.False(t, got.IsClosed())
	assert.Equal(t, contracts.Pending, got.WinLoss)
	assert.Equal(t, "p_perf", got.ID)

	// 매도 완료 후 같은 행 갱신
	require.NoError(t, st.RecordPerformance(ctx, closed("p", "20240222", "20240223", -5)))
	require.NoError(t, st.RecordPerformance(ctx, closed("w", "20240223", "20240226", 10)))
	require.NoError(t, st.RecordPerformance(ctx, &contracts.PerformanceRecord{
		RecommendationID: "o", BuyDate: mdtest.D("20240226"), BuyPrice: 10, WinLoss: contracts.Pending,
	}))

	got, err = st.GetPerformance(ctx, "p")
	require.NoError(t, err)
	require.True(t, got.IsClosed())
	assert.Equal(t, contracts.Loss, got.WinLoss)
	assert.InDelta(t, 9.5, *got.SellPrice, 1e-9)
	assert.True(t, got.SellDate.Equal(mdtest.D("20240223")))

	all, err := st.ListPerformance(ctx, contracts.DateRange{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	ranged, err := st.ListPerformance(ctx, contracts.DateRange{From: mdtest.D("20240223")})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	sum, err := st.AggregatePerformance(ctx, contracts.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Wins)
	assert.Equal(t, 1, sum.Losses)
	assert.Equal(t, 1, sum.Pending)
	assert.InDelta(t, 2.5, sum.AvgReturn, 1e-9)
	assert.InDelta(t, 10, sum.MaxReturn, 1e-9)
	assert.InDelta(t, -5, sum.MinReturn, 1e-9)
	assert.InDelta(t, 0.5, sum.WinRate, 1e-9)
	assert.InDelta(t, 2, sum.ProfitFactor, 1e-9)
}

func TestPerformance_RejectsInconsistentOutcome(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, ":memory:")

	bad := closed("x", "20240222", "20240223", 3)
	bad.WinLoss = contracts.Loss
	err := st.RecordPerformance(ctx, bad)
	require.Error(t, err)
	assert.False(t, IsTransient(err))

	open := &contracts.PerformanceRecord{RecommendationID: "y", BuyDate: mdtest.D("20240222"), BuyPrice: 10, WinLoss: contracts.Win}
	assert.Error(t, st.RecordPerformance(ctx, open))

	_, err = st.GetPerformance(ctx, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFactors_SeedAndUpdate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, ":memory:")
	now := time.Date(2024, 2, 22, 12, 0, 0, 0, time.UTC)

	seeds := DefaultFactors(strategyconfig.Default(), now)
	added, err := Seed(ctx, st, seeds)
	require.NoError(t, err)
	assert.Equal(t, 16, added)

	require.NoError(t, st.UpdateFactorWeight(ctx, "first_limit_time", 24.5, now.Add(time.Hour)))

	// 재시드는 기존 값을 덮어쓰지 않음
	added, err = Seed(ctx, st, seeds)
	require.NoError(t, err)
	assert.Zero(t, added)

	weights, err := st.GetFactorWeights(ctx)
	require.NoError(t, err)
	require.Len(t, weights, 16)
	byID := make(map[string]contracts.FactorWeight)
	for _, w := range weights {
		byID[w.FactorID] = w
	}
	assert.Equal(t, 24.5, byID["first_limit_time"].Weight)
	assert.True(t, byID["first_limit_time"].LastUpdated.Equal(now.Add(time.Hour)))
	assert.Equal(t, contracts.FactorTechnical, byID["first_limit_time"].Type)
	assert.Equal(t, contracts.FactorMoneyflow, byID["main_net_amount"].Type)
	assert.Equal(t, contracts.FactorMarket, byID["is_hot_sector"].Type)
	assert.Equal(t, contracts.FactorAuction, byID["auction_amount"].Type)
	assert.True(t, byID["dragon_list"].IsActive)

	// 가중치 0으로 설정된 인자는 비활성으로, 값은 허용 범위 안으로
	assert.False(t, byID["auction_turnover_rate"].IsActive)
	assert.Equal(t, 0.1, byID["auction_turnover_rate"].Weight)
	for id, w := range byID {
		assert.GreaterOrEqual(t, w.Weight, 0.1, id)
		assert.LessOrEqual(t, w.Weight, 50.0, id)
	}

	assert.ErrorIs(t, st.UpdateFactorWeight(ctx, "nope", 1, now), ErrNotFound)

	require.NoError(t, st.UpsertFactorWeight(ctx, contracts.FactorWeight{
		FactorID: "seal_ratio_div_pct_chg", Type: contracts.FactorDerived, Weight: 5,
		Formula: "seal_ratio / (pct_chg + 0.01)", IsActive: false,
	}))
	weights, err = st.GetFactorWeights(ctx)
	require.NoError(t, err)
	assert.Len(t, weights, 17)
}

func TestLearningSessions(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, ":memory:")
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	_, err := st.LastLearningSession(ctx, "factor_importance", contracts.SessionCompleted)
	assert.ErrorIs(t, err, ErrNotFound)

	first := &contracts.LearningSession{Kind: "factor_importance", ModelType: "random_forest", Status: contracts.SessionCompleted,
		Metrics: map[string]float64{"accuracy": 0.61}, CreatedAt: base, ExecutionTime: 1500 * time.Millisecond,
		Improvements: []contracts.WeightSuggestion{{FactorID: "first_limit_time", Kind: contracts.SuggestIncrease}}}
	skipped := &contracts.LearningSession{Kind: "factor_importance", Status: contracts.SessionSkipped, CreatedAt: base.Add(time.Hour)}
	require.NoError(t, st.AppendLearningSession(ctx, first))
	require.NoError(t, st.AppendLearningSession(ctx, skipped))
	assert.Len(t, first.ID, 36)

	last, err := st.LastLearningSession(ctx, "factor_importance", "")
	require.NoError(t, err)
	assert.Equal(t, skipped.ID, last.ID)

	done, err := st.LastLearningSession(ctx, "factor_importance", contracts.SessionCompleted)
	require.NoError(t, err)
	assert.Equal(t, first.ID, done.ID)
	assert.Equal(t, 0.61, done.Metrics["accuracy"])
	assert.Equal(t, 1500*time.Millisecond, done.ExecutionTime)
	require.Len(t, done.Improvements, 1)
	assert.Equal(t, contracts.SuggestIncrease, done.Improvements[0].Kind)
	assert.True(t, done.CreatedAt.Equal(base))
}

func TestTrainingSamples_OnlyClosed(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, ":memory:")

	win := recommendation("20240221", "20240222", "600100.SH", 90)
	loss := recommendation("20240221", "20240222", "600200.SH", 60)
	open := recommendation("20240222", "20240223", "600300.SH", 70)
	for _, r := range []*contracts.Recommendation{win, loss, open} {
		require.NoError(t, st.UpsertRecommendation(ctx, r))
	}
	require.NoError(t, st.RecordPerformance(ctx, closed(win.ID, "20240222", "20240223", 4)))
	require.NoError(t, st.RecordPerformance(ctx, closed(loss.ID, "20240222", "20240223", -2)))
	require.NoError(t, st.RecordPerformance(ctx, &contracts.PerformanceRecord{
		RecommendationID: open.ID, BuyDate: mdtest.D("20240223"), BuyPrice: 10, WinLoss: contracts.Pending,
	}))

	samples, err := st.TrainingSamples(ctx, contracts.DateRange{})
	require.NoError(t, err)
	require.Len(t, samples, 2)

	labels := map[string]int{}
	for _, s := range samples {
		labels[s.RecommendationID] = s.Label
		assert.Contains(t, s.Features, "score_ratio")
		assert.Contains(t, s.Features, "first_limit_time")
		assert.Equal(t, 1.0, s.Features["is_hot_sector"])
	}
	assert.Equal(t, 1, labels[win.ID])
	assert.Equal(t, 0, labels[loss.ID])
}

func TestCleanup_Retention(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, ":memory:")
	now := mdtest.D("20250301")

	old := recommendation("20240221", "20240222", "600100.SH", 80)
	fresh := recommendation("20250220", "20250221", "600200.SH", 80)
	require.NoError(t, st.UpsertRecommendation(ctx, old))
	require.NoError(t, st.UpsertRecommendation(ctx, fresh))
	require.NoError(t, st.RecordPerformance(ctx, closed(old.ID, "20240222", "20240223", 1)))
	require.NoError(t, st.RecordPerformance(ctx, closed(fresh.ID, "20250221", "20250224", 1)))

	require.NoError(t, st.RecordTrade(ctx, contracts.NewTrade(old.ID, contracts.SideBuy, mdtest.D("20240222"), "09:30:00", 10, 1000, contracts.TradeSimulated)))
	require.NoError(t, st.RecordTrade(ctx, contracts.NewTrade("ancient", contracts.SideBuy, mdtest.D("20230101"), "09:30:00", 10, 1000, contracts.TradeSimulated)))

	require.NoError(t, st.AppendLearningSession(ctx, &contracts.LearningSession{Kind: "factor_importance", Status: contracts.SessionCompleted,
		CreatedAt: time.Date(2022, 12, 1, 0, 0, 0, 0, time.UTC)}))
	require.NoError(t, st.AppendLearningSession(ctx, &contracts.LearningSession{Kind: "factor_importance", Status: contracts.SessionCompleted,
		CreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}))

	res, err := st.Cleanup(ctx, strategyconfig.Default().Retention, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Recommendations)
	assert.Equal(t, int64(1), res.Performance)
	assert.Equal(t, int64(1), res.Trades)
	assert.Equal(t, int64(1), res.LearningSessions)
	assert.Equal(t, int64(4), res.Total())

	_, err = st.GetRecommendation(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.GetPerformance(ctx, fresh.ID)
	assert.NoError(t, err)
	trades, err := st.ListTradesFor(ctx, old.ID)
	require.NoError(t, err)
	assert.Len(t, trades, 1, "trades outlive recommendations")
}

func TestBackup_VacuumIntoAndRotate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st := newTestStore(t, filepath.Join(dir, "limitup.db"))
	require.NoError(t, st.UpsertRecommendation(ctx, recommendation("20240221", "20240222", "600100.SH", 80)))

	backups := filepath.Join(dir, "backups")
	wrapped := NewRetrying(st, DefaultRetryConfig(), nil, logger.Nop())
	base := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)

	var last string
	for i := 0; i < 3; i++ {
		path, err := Backup(ctx, wrapped, backups, 2, base.AddDate(0, 0, i))
		require.NoError(t, err)
		assert.FileExists(t, path)
		last = path
	}

	files, err := filepath.Glob(filepath.Join(backups, "limitup_*.db"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Contains(t, files, last)

	// 백업 파일은 독립적으로 열림
	copyDB, err := database.OpenSQLite(last)
	require.NoError(t, err)
	defer copyDB.Close()
	var n int
	require.NoError(t, copyDB.Conn.QueryRow(`SELECT COUNT(*) FROM recommendations`).Scan(&n))
	assert.Equal(t, 1, n)
}

type flakyStore struct {
	Store
	fails int
	err   error
	calls int
}

func (f *flakyStore) RecordTrade(ctx context.Context, t *contracts.Trade) error {
	f.calls++
	if f.calls <= f.fails {
		return f.err
	}
	return nil
}

func TestRetrying(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	trade := &contracts.Trade{ID: "t"}
	busy := &PersistenceError{Op: "record trade", Transient: true, Err: errors.New("database is locked")}

	t.Run("transient then success", func(t *testing.T) {
		f := &flakyStore{fails: 2, err: busy}
		r := NewRetrying(f, cfg, nil, logger.Nop())
		require.NoError(t, r.RecordTrade(context.Background(), trade))
		assert.Equal(t, 3, f.calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		f := &flakyStore{fails: 10, err: busy}
		r := NewRetrying(f, cfg, nil, logger.Nop())
		err := r.RecordTrade(context.Background(), trade)
		assert.True(t, IsTransient(err))
		assert.Equal(t, 4, f.calls)
	})

	t.Run("structural error escalates immediately", func(t *testing.T) {
		f := &flakyStore{fails: 10, err: &PersistenceError{Op: "record trade", Err: errors.New("database or disk is full")}}
		r := NewRetrying(f, cfg, nil, logger.Nop())
		err := r.RecordTrade(context.Background(), trade)
		var pe *PersistenceError
		require.ErrorAs(t, err, &pe)
		assert.False(t, pe.Transient)
		assert.Equal(t, 1, f.calls)
	})

	t.Run("context cancelled", func(t *testing.T) {
		f := &flakyStore{fails: 10, err: busy}
		r := NewRetrying(f, RetryConfig{MaxRetries: 3, InitialDelay: time.Hour, MaxDelay: time.Hour}, nil, logger.Nop())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, r.RecordTrade(ctx, trade), context.Canceled)
	})
}

func TestTransientClassification(t *testing.T) {
	lite := &sqliteBackend{}
	assert.True(t, lite.Transient(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, lite.Transient(errors.New("UNIQUE constraint failed: trades.id")))

	pg := &pgBackend{}
	assert.True(t, pg.Transient(&pgconn.PgError{Code: "40001"}))
	assert.True(t, pg.Transient(&pgconn.PgError{Code: "08006"}))
	assert.False(t, pg.Transient(&pgconn.PgError{Code: "23505"}))
	assert.False(t, pg.Transient(&pgconn.PgError{Code: "53100"}), "disk full is structural")
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)", rebind("SELECT a FROM t WHERE x = ? AND y IN (?, ?)"))
	assert.Equal(t, "SELECT 1", rebind("SELECT 1"))
}

func TestSummarize_Empty(t *testing.T) {
	sum := Summarize(nil, contracts.DateRange{})
	assert.Zero(t, sum.Total)
	assert.Zero(t, sum.MaxReturn)
	assert.Zero(t, sum.ProfitFactor)
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() || os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	cfg, err := config.Load()
	require.NoError(t, err)

	ctx := context.Background()
	db, err := database.New(ctx, cfg.Database)
	require.NoError(t, err)
	st, err := NewPostgres(ctx, db, mdtest.D("20240101").Location(), logger.Nop())
	require.NoError(t, err)
	defer st.Close()

	rec := recommendation("20240221", "20240222", "600100.SH", 88.5)
	require.NoError(t, st.UpsertRecommendation(ctx, rec))
	got, err := st.GetRecommendation(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.TradeDate.Equal(rec.TradeDate))
	assert.Equal(t, 88.5, got.TotalScore)
	assert.True(t, st.Health(ctx).Healthy)

	_, err = Backup(ctx, st, t.TempDir(), 1, time.Now())
	assert.ErrorIs(t, err, ErrBackupUnsupported)
}
