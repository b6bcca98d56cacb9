package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/limitup/internal/fetch"
	"github.com/wonny/limitup/internal/marketdata"
	"github.com/wonny/limitup/internal/marketdata/mdtest"
	"github.com/wonny/limitup/pkg/logger"
)

// 2024 춘절 휴장
var springFestival = []time.Time{
	mdtest.D("20240209"), mdtest.D("20240212"), mdtest.D("20240213"),
	mdtest.D("20240214"), mdtest.D("20240215"), mdtest.D("20240216"),
}

func newFixture(secondary *mdtest.Secondary) (*Resolver, *mdtest.Primary) {
	p := mdtest.NewPrimary()
	from, to := mdtest.D("20231201"), mdtest.D("20240430")
	p.Calendars[marketdata.ExchangeSSE] = mdtest.WeekdayCalendar(marketdata.ExchangeSSE, from, to, springFestival...)
	p.Calendars[marketdata.ExchangeSZSE] = mdtest.WeekdayCalendar(marketdata.ExchangeSZSE, from, to, springFestival...)

	var sec marketdata.SecondarySource
	if secondary != nil {
		sec = secondary
	}
	loc := from.Location()
	gw := marketdata.NewGateway(p, sec, fetch.NewCache(logger.Nop()), fetch.Options{Timeout: time.Second}, loc)
	return NewResolver(gw, loc, logger.Nop()), p
}

func TestNextTradingDay(t *testing.T) {
	r, _ := newFixture(nil)

	tests := []struct {
		name string
		date string
		want string
	}{
		{"weekday", "20240222", "20240223"},
		{"friday to monday", "20240223", "20240226"},
		{"saturday", "20240224", "20240226"},
		{"before holiday", "20240208", "20240219"},
		{"inside holiday", "20240214", "20240219"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.NextTradingDay(context.Background(), mdtest.D(tt.date))
			require.NoError(t, err)
			assert.True(t, res.Date.Equal(mdtest.D(tt.want)), "got %s", res.Date)
			assert.Equal(t, ConfidenceAuthoritative, res.Confidence)
			assert.Equal(t, marketdata.ProviderTradeCalSSE, res.Source)
		})
	}
}

func TestPrevTradingDay(t *testing.T) {
	r, _ := newFixture(nil)

	tests := []struct {
		date string
		want string
	}{
		{"20240223", "20240222"},
		{"20240226", "20240223"},
		{"20240219", "20240208"},
		{"20240218", "20240208"},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			res, err := r.PrevTradingDay(context.Background(), mdtest.D(tt.date))
			require.NoError(t, err)
			assert.True(t, res.Date.Equal(mdtest.D(tt.want)), "got %s", res.Date)
		})
	}
}

func TestRoundTripOnTradingDays(t *testing.T) {
	r, _ := newFixture(nil)
	ctx := context.Background()

	for d := mdtest.D("20240201"); d.Before(mdtest.D("20240401")); d = d.AddDate(0, 0, 1) {
		open, _, err := r.IsTradingDay(ctx, d)
		require.NoError(t, err)
		if !open {
			continue
		}

		prev, err := r.PrevTradingDay(ctx, d)
		require.NoError(t, err)
		next, err := r.NextTradingDay(ctx, prev.Date)
		require.NoError(t, err)
		assert.True(t, next.Date.Equal(d), "round trip of %s gave %s", d, next.Date)
	}
}

func TestIsTradingDay(t *testing.T) {
	r, _ := newFixture(nil)
	ctx := context.Background()

	open, res, err := r.IsTradingDay(ctx, mdtest.D("20240222"))
	require.NoError(t, err)
	assert.True(t, open)
	assert.False(t, res.Degraded())

	open, _, err = r.IsTradingDay(ctx, mdtest.D("20240213"))
	require.NoError(t, err)
	assert.False(t, open)

	open, _, err = r.IsTradingDay(ctx, mdtest.D("20240224"))
	require.NoError(t, err)
	assert.False(t, open)
}

func TestFallsBackToSecondExchange(t *testing.T) {
	r, p := newFixture(nil)
	p.Errs["TradeCalendar:SSE"] = errors.New("502 bad gateway")

	res, err := r.NextTradingDay(context.Background(), mdtest.D("20240208"))
	require.NoError(t, err)
	assert.True(t, res.Date.Equal(mdtest.D("20240219")))
	assert.Equal(t, marketdata.ProviderTradeCalSZSE, res.Source)
	assert.Equal(t, ConfidenceAuthoritative, res.Confidence)
}

func TestHeuristicWhenAllSourcesFail(t *testing.T) {
	r, p := newFixture(nil)
	p.Errs["TradeCalendar:SSE"] = errors.New("down")
	p.Errs["TradeCalendar:SZSE"] = errors.New("down")

	// 휴장을 모르므로 주말만 건너뜀
	res, err := r.NextTradingDay(context.Background(), mdtest.D("20240208"))
	require.NoError(t, err)
	assert.True(t, res.Date.Equal(mdtest.D("20240209")))
	assert.Equal(t, ConfidenceLow, res.Confidence)
	assert.Equal(t, SourceHeuristic, res.Source)
	assert.True(t, res.Degraded())

	res, err = r.PrevTradingDay(context.Background(), mdtest.D("20240226"))
	require.NoError(t, err)
	assert.True(t, res.Date.Equal(mdtest.D("20240223")))
	assert.True(t, res.Degraded())
}

func TestHeuristicIsNotCached(t *testing.T) {
	r, p := newFixture(nil)
	p.Errs["TradeCalendar:SSE"] = errors.New("down")
	p.Errs["TradeCalendar:SZSE"] = errors.New("down")

	res, err := r.NextTradingDay(context.Background(), mdtest.D("20240208"))
	require.NoError(t, err)
	require.True(t, res.Degraded())

	delete(p.Errs, "TradeCalendar:SSE")
	res, err = r.NextTradingDay(context.Background(), mdtest.D("20240208"))
	require.NoError(t, err)
	assert.False(t, res.Degraded())
	assert.True(t, res.Date.Equal(mdtest.D("20240219")))
}

func TestResolutionIsCached(t *testing.T) {
	r, p := newFixture(nil)
	ctx := context.Background()

	_, err := r.NextTradingDay(ctx, mdtest.D("20240222"))
	require.NoError(t, err)
	_, err = r.NextTradingDay(ctx, mdtest.D("20240222"))
	require.NoError(t, err)

	assert.Equal(t, 1, p.CallCount("TradeCalendar:SSE"))
}

func TestDerivedCalendarUnknownFuture(t *testing.T) {
	s := mdtest.NewSecondary()
	s.Indexes["000001.SH"] = []marketdata.DailyBar{
		{Date: mdtest.D("20240221")},
		{Date: mdtest.D("20240222")},
	}
	r, p := newFixture(s)
	p.Errs["TradeCalendar:SSE"] = errors.New("down")
	p.Errs["TradeCalendar:SZSE"] = errors.New("down")

	prev, err := r.PrevTradingDay(context.Background(), mdtest.D("20240222"))
	require.NoError(t, err)
	assert.True(t, prev.Date.Equal(mdtest.D("20240221")))
	assert.Equal(t, marketdata.ProviderIndexCalendar, prev.Source)

	next, err := r.NextTradingDay(context.Background(), mdtest.D("20240222"))
	require.NoError(t, err)
	assert.True(t, next.Degraded())
	assert.True(t, next.Date.Equal(mdtest.D("20240223")))
}

func TestCancelledContextIsAnError(t *testing.T) {
	r, _ := newFixture(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.NextTradingDay(ctx, mdtest.D("20240222"))
	assert.Error(t, err)
}

func TestStepWeekday(t *testing.T) {
	assert.True(t, StepWeekday(mdtest.D("20240223"), 1).Equal(mdtest.D("20240226")))
	assert.True(t, StepWeekday(mdtest.D("20240226"), -1).Equal(mdtest.D("20240223")))
	assert.False(t, IsWeekday(mdtest.D("20240225")))
}
