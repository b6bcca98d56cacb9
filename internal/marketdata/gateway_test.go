package marketdata_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/fetch"
	"github.com/wonny/limitup/internal/marketdata"
	"github.com/wonny/limitup/internal/marketdata/mdtest"
	"github.com/wonny/limitup/pkg/logger"
)

func newGateway(p *mdtest.Primary, s *mdtest.Secondary, now time.Time) *marketdata.Gateway {
	var secondary marketdata.SecondarySource
	if s != nil {
		secondary = s
	}
	g := marketdata.NewGateway(p, secondary, fetch.NewCache(logger.Nop()), fetch.Options{Timeout: time.Second}, now.Location())
	return g.WithClock(func() time.Time { return now })
}

func TestGateway_DailyBarsFallsBackToKline(t *testing.T) {
	p := mdtest.NewPrimary()
	s := mdtest.NewSecondary()
	p.Errs["Daily"] = errors.New("tushare 500")
	s.Bars["600519.SH"] = []marketdata.DailyBar{
		{Symbol: "600519.SH", Date: mdtest.D("20240221"), Close: 10},
		{Symbol: "600519.SH", Date: mdtest.D("20240222"), Close: 11},
	}
	g := newGateway(p, s, mdtest.D("20240223"))

	res, err := g.DailyBars(context.Background(), "600519.SH", mdtest.D("20240220"), mdtest.D("20240222"))
	require.NoError(t, err)
	assert.Equal(t, marketdata.ProviderKline, res.Provider)
	assert.Len(t, res.Value, 2)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, marketdata.ProviderDaily, res.Attempts[0].Provider)

	bar, provider, err := g.DailyBar(context.Background(), "600519.SH", mdtest.D("20240222"))
	require.NoError(t, err)
	assert.Equal(t, 11.0, bar.Close)
	assert.Equal(t, marketdata.ProviderKline, provider)
}

func TestGateway_MoneyFlowDerivedFallback(t *testing.T) {
	p := mdtest.NewPrimary()
	date := mdtest.D("20240222")
	p.Flows[mdtest.Key("000001.SZ", date)] = &marketdata.MoneyFlow{MainNetAmount: 1e7}
	g := newGateway(p, nil, date)

	res, err := g.MoneyFlow(context.Background(), "000001.SZ", date)
	require.NoError(t, err)
	assert.Equal(t, contracts.TagDerived, res.Tag)
	require.Len(t, res.Attempts, 1)
	assert.True(t, res.Attempts[0].Empty)
}

func TestGateway_AuctionLiveOnlySkipsHistory(t *testing.T) {
	p := mdtest.NewPrimary()
	s := mdtest.NewSecondary()
	date := mdtest.D("20240222")
	p.AuctionsHist[mdtest.Key("600000.SH", date)] = &marketdata.AuctionQuote{Price: 10.5, PreClose: 10}
	g := newGateway(p, s, date.Add(9*time.Hour+26*time.Minute))

	_, err := g.Auction(context.Background(), "600000.SH", date, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, fetch.ErrUnavailable)
	assert.Equal(t, 0, p.CallCount("AuctionHistory"))
	assert.Equal(t, 1, s.CallCount("Snapshot"))

	res, err := g.Auction(context.Background(), "600000.SH", date, false)
	require.NoError(t, err)
	assert.Equal(t, contracts.TagHistory, res.Tag)
}

func TestGateway_AuctionSnapshotIsTodayOnly(t *testing.T) {
	p := mdtest.NewPrimary()
	s := mdtest.NewSecondary()
	s.Snapshots["600000.SH"] = &marketdata.AuctionQuote{Price: 10.3, PreClose: 10}
	date := mdtest.D("20240222")

	g := newGateway(p, s, mdtest.D("20240223").Add(9*time.Hour+26*time.Minute))
	_, err := g.Auction(context.Background(), "600000.SH", date, true)
	require.Error(t, err)
	assert.Equal(t, 0, s.CallCount("Snapshot"))

	g = newGateway(p, s, date.Add(9*time.Hour+26*time.Minute))
	res, err := g.Auction(context.Background(), "600000.SH", date, true)
	require.NoError(t, err)
	assert.Equal(t, marketdata.ProviderSnapshot, res.Provider)
	assert.Equal(t, contracts.TagLive, res.Tag)
	assert.True(t, res.Value.Date.Equal(date))
}

func TestGateway_AuctionHistoryFillsPreClose(t *testing.T) {
	p := mdtest.NewPrimary()
	date := mdtest.D("20240222")
	p.AuctionsHist[mdtest.Key("600000.SH", date)] = &marketdata.AuctionQuote{Price: 10.5, Volume: 1000}
	p.Bars["600000.SH"] = []marketdata.DailyBar{
		{Date: mdtest.D("20240220"), Close: 9.8},
		{Date: mdtest.D("20240221"), Close: 10},
	}
	g := newGateway(p, nil, date.Add(20*time.Hour))

	res, err := g.Auction(context.Background(), "600000.SH", date, false)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Value.PreClose)

	gap, ok := res.Value.OpenChangePct()
	require.True(t, ok)
	assert.InDelta(t, 5.0, gap, 1e-9)
}

func TestGateway_PreviousClose(t *testing.T) {
	p := mdtest.NewPrimary()
	p.Bars["600000.SH"] = []marketdata.DailyBar{
		{Date: mdtest.D("20240208"), Close: 9.5},
		{Date: mdtest.D("20240219"), Close: 10.2},
	}
	g := newGateway(p, nil, mdtest.D("20240220"))
	ctx := context.Background()

	tests := []struct {
		name    string
		date    string
		want    float64
		wantErr bool
	}{
		{"next session", "20240220", 10.2, false},
		{"across the holiday", "20240219", 9.5, false},
		{"nothing before", "20240208", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.PreviousClose(ctx, "600000.SH", mdtest.D(tt.date))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGateway_CalendarFallsBackToIndexDays(t *testing.T) {
	p := mdtest.NewPrimary()
	s := mdtest.NewSecondary()
	p.Errs["TradeCalendar:SSE"] = errors.New("permission denied")
	s.Indexes["000001.SH"] = []marketdata.DailyBar{
		{Date: mdtest.D("20240221"), Close: 2900},
		{Date: mdtest.D("20240222"), Close: 2950},
	}
	g := newGateway(p, s, mdtest.D("20240223"))

	res, err := g.CalendarDays(context.Background(), mdtest.D("20240219"), mdtest.D("20240223"))
	require.NoError(t, err)
	assert.Equal(t, marketdata.ProviderIndexCalendar, res.Provider)
	assert.Equal(t, contracts.TagDerived, res.Tag)
	require.Len(t, res.Attempts, 2)
	assert.False(t, res.Attempts[0].Empty)
	assert.True(t, res.Attempts[1].Empty)
	for _, d := range res.Value {
		assert.True(t, d.IsOpen)
	}
}

func TestSumMargin(t *testing.T) {
	sum := marketdata.SumMargin([]marketdata.MarginSummary{
		{Exchange: "SSE", FinancingBalance: 8e11, FinancingBuy: 3e10, FinancingRepay: 2e10, TotalBalance: 8.1e11},
		{Exchange: "SZSE", FinancingBalance: 7e11, FinancingBuy: 2e10, FinancingRepay: 2e10, TotalBalance: 7.1e11},
	})
	assert.Equal(t, "ALL", sum.Exchange)
	assert.Equal(t, 1.5e12, sum.FinancingBalance)
	assert.Equal(t, 5e10, sum.FinancingBuy)
	assert.Equal(t, 1.52e12, sum.TotalBalance)
}
