package auction_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/limitup/internal/auction"
	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/fetch"
	"github.com/wonny/limitup/internal/marketdata"
	"github.com/wonny/limitup/internal/marketdata/mdtest"
	"github.com/wonny/limitup/internal/strategyconfig"
	"github.com/wonny/limitup/pkg/logger"
)

var (
	tDate  = mdtest.D("20240221")
	t1Date = mdtest.D("20240222")
)

func at(day time.Time, clock string) time.Time {
	t, err := strategyconfig.ClockOn(day, clock, day.Location())
	if err != nil {
		panic(err)
	}
	return t
}

func rec(symbol string, tDayScore float64) *contracts.Recommendation {
	return &contracts.Recommendation{
		ID:        contracts.RecommendationID(tDate, symbol),
		TradeDate: tDate,
		T1Date:    t1Date,
		Symbol:    symbol,
		TDayScore: tDayScore,
		Status:    contracts.StatusScored,
		Snapshot: contracts.RecommendationSnapshot{
			Factors: map[string]float64{"first_limit_time": 30},
		},
	}
}

func newEvaluator(p *mdtest.Primary, now time.Time) *auction.Evaluator {
	g := marketdata.NewGateway(p, nil, fetch.NewCache(logger.Nop()), fetch.Options{Timeout: 5 * time.Second}, t1Date.Location()).
		WithClock(func() time.Time { return now })
	return auction.NewEvaluator(g, nil, strategyconfig.Default(), t1Date.Location(), logger.Nop()).
		WithClock(func() time.Time { return now })
}

func withTDayVolume(p *mdtest.Primary, symbol string, vol float64) {
	p.Bars[symbol] = append(p.Bars[symbol], marketdata.DailyBar{Symbol: symbol, Date: tDate, Close: 10, Volume: vol})
}

func TestWindow(t *testing.T) {
	w, err := auction.NewWindow(strategyconfig.TimeWindow{Start: "09:25", End: "09:29"}, t1Date, t1Date.Location())
	require.NoError(t, err)

	tests := []struct {
		clock string
		state auction.State
	}{
		{"09:24:59", auction.StateAwaitingWindow},
		{"09:25", auction.StateInWindow},
		{"09:28:59", auction.StateInWindow},
		{"09:29", auction.StateHistorical},
		{"09:29:30", auction.StateHistorical},
		{"20:00", auction.StateHistorical},
	}
	for _, tt := range tests {
		t.Run(tt.clock, func(t *testing.T) {
			assert.Equal(t, tt.state, w.StateAt(at(t1Date, tt.clock)))
		})
	}
	assert.Equal(t, "09:25-09:29", w.String())
	assert.Equal(t, 4*time.Minute, w.Deadline().Sub(w.Start))

	_, err = auction.NewWindow(strategyconfig.TimeWindow{Start: "09:29", End: "09:25"}, t1Date, t1Date.Location())
	assert.Error(t, err)
	_, err = auction.NewWindow(strategyconfig.TimeWindow{Start: "9h25", End: "09:29"}, t1Date, t1Date.Location())
	assert.Error(t, err)
}

func TestWindow_WaitUntil(t *testing.T) {
	w, err := auction.NewWindow(strategyconfig.TimeWindow{Start: "09:25", End: "09:29"}, t1Date, t1Date.Location())
	require.NoError(t, err)

	// 이미 열림
	require.NoError(t, w.WaitUntil(context.Background(), func() time.Time { return at(t1Date, "09:26") }))

	start := time.Now()
	require.NoError(t, w.WaitUntil(context.Background(), func() time.Time { return w.Start.Add(-30 * time.Millisecond) }))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = w.WaitUntil(ctx, func() time.Time { return w.Start.Add(-time.Hour) })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScore(t *testing.T) {
	cfg := strategyconfig.Default().Auction

	full := &contracts.AuctionSnapshot{OpenChangePct: 12, VolumeRatio: 6, Amount: 1e8, Volume: 200, TDayVolume: 1000}
	total, parts := auction.Score(full, cfg)
	assert.InDelta(t, cfg.Weights.Sum(), total, 1e-9)
	assert.Len(t, parts, 5)

	down := &contracts.AuctionSnapshot{OpenChangePct: -4, VolumeRatio: 0, Amount: 0}
	total, parts = auction.Score(down, cfg)
	assert.Equal(t, 0.0, total)
	assert.Equal(t, 0.0, parts[auction.FactorOpenChangePct])
}

func TestPersistenceTier(t *testing.T) {
	tests := []struct {
		ratio float64
		want  float64
	}{
		{0.40, 1.0}, {0.15, 1.0}, {0.12, 0.8}, {0.05, 0.4}, {0.03, 0.2}, {0.029, 0}, {0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, auction.PersistenceTier(tt.ratio), "ratio %v", tt.ratio)
	}
}

func TestDecide(t *testing.T) {
	cfg := strategyconfig.Default().Auction.Decision
	snap := &contracts.AuctionSnapshot{OpenChangePct: 6, VolumeRatio: 3.5, Volume: 1, TDayVolume: 100}

	tests := []struct {
		final      float64
		action     contracts.Action
		confidence contracts.Confidence
		position   float64
	}{
		{85, contracts.ActionBuy, contracts.ConfidenceHigh, 0.2},
		{80, contracts.ActionBuy, contracts.ConfidenceHigh, 0.2},
		{65, contracts.ActionBuy, contracts.ConfidenceMedium, 0.14},
		{59.9, contracts.ActionWatch, contracts.ConfidenceLow, 0.06},
	}
	for _, tt := range tests {
		d := auction.Decide(tt.final, snap, cfg)
		assert.Equal(t, tt.action, d.Action, "final %v", tt.final)
		assert.Equal(t, tt.confidence, d.Confidence)
		assert.InDelta(t, tt.position, d.Position, 1e-9)
	}

	reasons := auction.Reasons(snap)
	assert.Equal(t, []string{
		"large gap up (>5%)",
		"auction volume ratio very high (>3)",
		"auction volume very weak (<3% of T-day), high one-day wonder risk",
	}, reasons)
}

func TestEvaluate_LiveInWindow(t *testing.T) {
	p := mdtest.NewPrimary()
	p.Auctions[mdtest.Key("600100.SH", t1Date)] = &marketdata.AuctionQuote{
		Symbol: "600100.SH", Date: t1Date, Price: 10.5, PreClose: 10,
		Volume: 150_000, Amount: 25_000_000, VolumeRatio: 2.5, HasVolumeRatio: true,
	}
	p.AuctionsHist[mdtest.Key("600100.SH", t1Date)] = &marketdata.AuctionQuote{Price: 99, PreClose: 10}
	withTDayVolume(p, "600100.SH", 1_000_000)

	original := rec("600100.SH", 90)
	e := newEvaluator(p, at(t1Date, "09:26"))

	out, err := e.Evaluate(context.Background(), t1Date, []*contracts.Recommendation{original})
	require.NoError(t, err)
	assert.Equal(t, auction.StateEvaluated, out.State)
	assert.Equal(t, auction.ModeLive, out.Mode)
	require.Len(t, out.Evaluated, 1)

	ev := out.Evaluated[0]
	// 17.5 gap + 10 volume ratio + 10 amount + 25 persistence
	assert.InDelta(t, 62.5, ev.AuctionScore, 1e-9)
	assert.InDelta(t, 90*0.7+62.5*0.3, ev.FinalScore, 1e-9)
	assert.Equal(t, contracts.TagLive, ev.Snapshot.Tag)
	assert.Equal(t, marketdata.ProviderAuctionLive, ev.Snapshot.Source)
	assert.Equal(t, contracts.ActionBuy, ev.Decision.Action)
	assert.Equal(t, contracts.ConfidenceHigh, ev.Decision.Confidence)

	updated := ev.Recommendation
	assert.Equal(t, contracts.StatusEvaluated, updated.Status)
	assert.InDelta(t, 5.0, updated.OpenChangePct, 1e-9)
	assert.Equal(t, 30.0, updated.Snapshot.Factors["first_limit_time"])
	assert.InDelta(t, 25.0, updated.Snapshot.Factors[auction.FactorVolumeToTDayVolume], 1e-9)

	// 원본은 변경되지 않음
	assert.Equal(t, contracts.StatusScored, original.Status)
	assert.Nil(t, original.Decision)
	assert.Equal(t, 0, p.CallCount("AuctionHistory"))
}

type storedWeights struct {
	rows []contracts.FactorWeight
	err  error
}

func (s storedWeights) GetFactorWeights(ctx context.Context) ([]contracts.FactorWeight, error) {
	return s.rows, s.err
}

func TestEvaluate_StoredWeights(t *testing.T) {
	p := mdtest.NewPrimary()
	p.Auctions[mdtest.Key("600100.SH", t1Date)] = &marketdata.AuctionQuote{
		Symbol: "600100.SH", Date: t1Date, Price: 10.5, PreClose: 10,
		Volume: 150_000, Amount: 25_000_000, VolumeRatio: 2.5, HasVolumeRatio: true,
	}
	withTDayVolume(p, "600100.SH", 1_000_000)
	now := at(t1Date, "09:26")

	tests := []struct {
		name    string
		source  auction.WeightSource
		score   float64
		gap     float64
		weights string
	}{
		{"config only", nil, 62.5, 17.5, "config"},
		{"store lookup fails", storedWeights{err: errors.New("db down")}, 62.5, 17.5, "config"},
		{
			"learned weights",
			storedWeights{rows: []contracts.FactorWeight{
				{FactorID: auction.FactorOpenChangePct, Weight: 0.1, IsActive: true},
				{FactorID: auction.FactorVolumeRatio, Weight: 20, IsActive: false},
				{FactorID: "first_limit_time", Weight: 1, IsActive: true},
			}},
			// 0.05 gap + 0 volume ratio + 10 amount + 25 persistence
			35.05, 0.05, "store",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := marketdata.NewGateway(p, nil, fetch.NewCache(logger.Nop()), fetch.Options{Timeout: 5 * time.Second}, t1Date.Location()).
				WithClock(func() time.Time { return now })
			e := auction.NewEvaluator(g, tt.source, strategyconfig.Default(), t1Date.Location(), logger.Nop()).
				WithClock(func() time.Time { return now })

			out, err := e.Evaluate(context.Background(), t1Date, []*contracts.Recommendation{rec("600100.SH", 90)})
			require.NoError(t, err)
			require.Len(t, out.Evaluated, 1)
			assert.Equal(t, tt.weights, out.Weights)

			ev := out.Evaluated[0]
			assert.InDelta(t, tt.score, ev.AuctionScore, 1e-9)
			assert.InDelta(t, tt.gap, ev.Factors[auction.FactorOpenChangePct], 1e-9)
			assert.InDelta(t, 90*0.7+tt.score*0.3, ev.FinalScore, 1e-9)
		})
	}
}

func TestEvaluate_InWindowDropsCandidatesWithoutLiveData(t *testing.T) {
	p := mdtest.NewPrimary()
	p.Auctions[mdtest.Key("600100.SH", t1Date)] = &marketdata.AuctionQuote{Price: 10.2, PreClose: 10}
	p.AuctionsHist[mdtest.Key("600200.SH", t1Date)] = &marketdata.AuctionQuote{Price: 10.2, PreClose: 10}

	e := newEvaluator(p, at(t1Date, "09:27"))
	out, err := e.Evaluate(context.Background(), t1Date, []*contracts.Recommendation{rec("600100.SH", 70), rec("600200.SH", 95)})
	require.NoError(t, err)

	assert.Equal(t, auction.StateEvaluated, out.State)
	require.Len(t, out.Evaluated, 1)
	assert.Equal(t, "600100.SH", out.Evaluated[0].Recommendation.Symbol)
	require.Len(t, out.Dropped, 1)
	assert.Equal(t, "600200.SH", out.Dropped[0].Symbol)
	assert.Contains(t, out.Dropped[0].Reason, "live auction data unavailable")
}

func TestEvaluate_InWindowAllProvidersFailIsBlocked(t *testing.T) {
	p := mdtest.NewPrimary()
	p.Errs["Auction"] = errors.New("tushare 502")
	p.AuctionsHist[mdtest.Key("600100.SH", t1Date)] = &marketdata.AuctionQuote{Price: 10.2, PreClose: 10}

	e := newEvaluator(p, at(t1Date, "09:25:30"))
	out, err := e.Evaluate(context.Background(), t1Date, []*contracts.Recommendation{rec("600100.SH", 90)})
	require.NoError(t, err)

	assert.True(t, out.Blocked())
	assert.Empty(t, out.Evaluated)
	assert.Contains(t, out.Reason, "no live auction data")
	require.Len(t, out.Dropped, 1)
}

func TestEvaluate_WindowClosesMidRun(t *testing.T) {
	p := mdtest.NewPrimary()
	p.Auctions[mdtest.Key("600100.SH", t1Date)] = &marketdata.AuctionQuote{Price: 10.2, PreClose: 10}
	p.Delay["Auction"] = 2 * time.Second

	w, err := auction.NewWindow(strategyconfig.Default().Schedule.AuctionWindow, t1Date, t1Date.Location())
	require.NoError(t, err)
	e := newEvaluator(p, w.Deadline().Add(-50*time.Millisecond))

	start := time.Now()
	out, err := e.Evaluate(context.Background(), t1Date, []*contracts.Recommendation{rec("600100.SH", 90), rec("600200.SH", 80)})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, out.Blocked())
	assert.Contains(t, out.Reason, "window closed")
	assert.Empty(t, out.Evaluated)
	assert.Len(t, out.Dropped, 2)
}

func TestEvaluate_HistoricalFallsBackToHistoryThenSimulated(t *testing.T) {
	p := mdtest.NewPrimary()
	p.AuctionsHist[mdtest.Key("600100.SH", t1Date)] = &marketdata.AuctionQuote{
		Symbol: "600100.SH", Price: 10.3, PreClose: 10, Volume: 60_000, Amount: 5_000_000,
	}
	p.Basics["600100.SH"] = []marketdata.DailyBasic{{Symbol: "600100.SH", Date: t1Date, VolumeRatio: 2.0, HasVolumeRatio: true}}
	withTDayVolume(p, "600100.SH", 1_000_000)

	e := newEvaluator(p, at(t1Date, "20:00"))
	out, err := e.Evaluate(context.Background(), t1Date, []*contracts.Recommendation{rec("600100.SH", 80), rec("600200.SH", 80)})
	require.NoError(t, err)

	assert.Equal(t, auction.StateEvaluated, out.State)
	assert.Equal(t, auction.ModeHistorical, out.Mode)
	require.Len(t, out.Evaluated, 2)

	bySymbol := map[string]auction.Evaluation{}
	for _, ev := range out.Evaluated {
		bySymbol[ev.Recommendation.Symbol] = ev
	}

	hist := bySymbol["600100.SH"]
	assert.Equal(t, contracts.TagHistory, hist.Snapshot.Tag)
	assert.Equal(t, 2.0, hist.Snapshot.VolumeRatio)
	// 10.5 gap + 8 volume ratio + 2 amount + 10 persistence (6%)
	assert.InDelta(t, 30.5, hist.AuctionScore, 1e-9)

	sim := bySymbol["600200.SH"]
	assert.Equal(t, contracts.TagSimulated, sim.Snapshot.Tag)
	assert.Equal(t, 60.0, sim.AuctionScore)
	assert.InDelta(t, 2.5, sim.Snapshot.OpenChangePct, 1e-9)
	assert.InDelta(t, 80*0.7+60*0.3, sim.FinalScore, 1e-9)

	// 정렬: final score 내림차순
	assert.Equal(t, "600200.SH", out.Evaluated[0].Recommendation.Symbol)
}

func TestEvaluate_NoRecommendationsIsBlocked(t *testing.T) {
	e := newEvaluator(mdtest.NewPrimary(), at(t1Date, "09:26"))
	out, err := e.Evaluate(context.Background(), t1Date, nil)
	require.NoError(t, err)
	assert.True(t, out.Blocked())
	assert.Equal(t, "no scored recommendations for this date", out.Reason)
}

func TestEvaluate_GapClamped(t *testing.T) {
	p := mdtest.NewPrimary()
	p.Auctions[mdtest.Key("600100.SH", t1Date)] = &marketdata.AuctionQuote{Price: 20, PreClose: 10}

	e := newEvaluator(p, at(t1Date, "09:26"))
	out, err := e.Evaluate(context.Background(), t1Date, []*contracts.Recommendation{rec("600100.SH", 50)})
	require.NoError(t, err)
	require.Len(t, out.Evaluated, 1)
	assert.Equal(t, 30.0, out.Evaluated[0].Snapshot.OpenChangePct)
}
