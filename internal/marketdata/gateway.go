package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/fetch"
	"github.com/wonny/limitup/pkg/logger"
)

// Provider names, recorded as provenance on every fetch result
const (
	ProviderLimitList      = "tushare.limit_list_d"
	ProviderStockST        = "tushare.stock_st"
	ProviderTradeCalSSE    = "tushare.trade_cal.sse"
	ProviderTradeCalSZSE   = "tushare.trade_cal.szse"
	ProviderIndexCalendar  = "eastmoney.index_days"
	ProviderDaily          = "tushare.daily"
	ProviderKline          = "eastmoney.kline"
	ProviderDailyBasic     = "tushare.daily_basic"
	ProviderMoneyFlowDC    = "tushare.moneyflow_dc"
	ProviderMoneyFlow      = "tushare.moneyflow"
	ProviderSectorFlow     = "tushare.moneyflow_ind_dc"
	ProviderTopList        = "tushare.top_list"
	ProviderAuctionLive    = "tushare.stk_auction"
	ProviderSnapshot       = "eastmoney.snapshot"
	ProviderAuctionHistory = "tushare.stk_auction_o"
	ProviderIndexDaily     = "tushare.index_daily"
	ProviderIndexKline     = "eastmoney.index_kline"
	ProviderMargin         = "tushare.margin"
)

// calendarIndex supplies open days when both exchange calendars fail
const calendarIndex = "000001.SH"

// Gateway composes every external data need as an ordered provider chain
// ⭐ SSOT: 외부 시장 데이터는 Gateway를 통해서만 조회 (provider 원형은 경계 밖으로 나가지 않음)
type Gateway struct {
	primary   PrimarySource
	secondary SecondarySource
	cache     *fetch.Cache
	loc       *time.Location
	now       func() time.Time
	logger    *logger.Logger

	limitUps   *fetch.Fetcher[[]contracts.Candidate]
	limitDown  *fetch.Fetcher[int]
	restricted *fetch.Fetcher[map[string]string]
	calendar   *fetch.Fetcher[[]CalendarDay]
	daily      *fetch.Fetcher[[]DailyBar]
	basics     *fetch.Fetcher[[]DailyBasic]
	flows      *fetch.Fetcher[*MoneyFlow]
	sectors    *fetch.Fetcher[[]SectorFlow]
	topList    *fetch.Fetcher[*TopListEntry]
	auction    *fetch.Fetcher[*AuctionQuote]
	index      *fetch.Fetcher[[]DailyBar]
	margin     *fetch.Fetcher[[]MarginSummary]
}

// NewGateway wires the fetch chains. secondary may be nil.
func NewGateway(primary PrimarySource, secondary SecondarySource, cache *fetch.Cache, opts fetch.Options, loc *time.Location) *Gateway {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Gateway{
		primary:    primary,
		secondary:  secondary,
		cache:      cache,
		loc:        loc,
		now:        time.Now,
		logger:     opts.Logger.WithComponent("marketdata"),
		limitUps:   fetch.New[[]contracts.Candidate]("limit_ups", cache, opts),
		limitDown:  fetch.New[int]("limit_downs", cache, opts),
		restricted: fetch.New[map[string]string]("restricted", cache, opts),
		calendar:   fetch.New[[]CalendarDay]("calendar", cache, opts),
		daily:      fetch.New[[]DailyBar]("daily", cache, opts),
		basics:     fetch.New[[]DailyBasic]("daily_basic", cache, opts),
		flows:      fetch.New[*MoneyFlow]("moneyflow", cache, opts),
		sectors:    fetch.New[[]SectorFlow]("sector_flow", cache, opts),
		topList:    fetch.New[*TopListEntry]("top_list", cache, opts),
		auction:    fetch.New[*AuctionQuote]("auction", cache, opts),
		index:      fetch.New[[]DailyBar]("index", cache, opts),
		margin:     fetch.New[[]MarginSummary]("margin", cache, opts),
	}
}

// WithClock overrides the wall clock (tests)
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now
	return g
}

// Location returns the exchange timezone
func (g *Gateway) Location() *time.Location {
	return g.loc
}

// CacheStats exposes fetch cache statistics
func (g *Gateway) CacheStats() fetch.CacheStats {
	return g.cache.Stats()
}

func day(t time.Time) string {
	return t.Format(contracts.DateLayout)
}

// LimitUps returns the limit-up candidates of a trading day
func (g *Gateway) LimitUps(ctx context.Context, date time.Time) (*fetch.Result[[]contracts.Candidate], error) {
	return g.limitUps.Fetch(ctx, day(date), fetch.Provider[[]contracts.Candidate]{
		Name: ProviderLimitList,
		Tag:  contracts.TagHistory,
		Fetch: func(ctx context.Context) ([]contracts.Candidate, error) {
			return g.primary.LimitUps(ctx, date)
		},
	})
}

// LimitDownCount returns how many symbols closed limit-down
func (g *Gateway) LimitDownCount(ctx context.Context, date time.Time) (*fetch.Result[int], error) {
	return g.limitDown.Fetch(ctx, day(date), fetch.Provider[int]{
		Name: ProviderLimitList,
		Tag:  contracts.TagHistory,
		Fetch: func(ctx context.Context) (int, error) {
			return g.primary.LimitDownCount(ctx, date)
		},
	})
}

// RestrictedList returns the authoritative special-treatment list (symbol -> name)
func (g *Gateway) RestrictedList(ctx context.Context, date time.Time) (*fetch.Result[map[string]string], error) {
	return g.restricted.Fetch(ctx, day(date), fetch.Provider[map[string]string]{
		Name: ProviderStockST,
		Tag:  contracts.TagHistory,
		Fetch: func(ctx context.Context) (map[string]string, error) {
			return g.primary.SpecialTreatment(ctx, date)
		},
	})
}

// CalendarDays returns calendar rows for [from, to].
// Order: SSE calendar, SZSE calendar, index kline dates (open days only).
func (g *Gateway) CalendarDays(ctx context.Context, from, to time.Time) (*fetch.Result[[]CalendarDay], error) {
	providers := []fetch.Provider[[]CalendarDay]{
		g.exchangeCalendar(ProviderTradeCalSSE, ExchangeSSE, from, to),
		g.exchangeCalendar(ProviderTradeCalSZSE, ExchangeSZSE, from, to),
	}
	if g.secondary != nil {
		providers = append(providers, fetch.Provider[[]CalendarDay]{
			Name: ProviderIndexCalendar,
			Tag:  contracts.TagDerived,
			Fetch: func(ctx context.Context) ([]CalendarDay, error) {
				bars, err := g.secondary.IndexKline(ctx, calendarIndex, from, to)
				if err != nil {
					return nil, err
				}
				days := make([]CalendarDay, 0, len(bars))
				for _, b := range bars {
					days = append(days, CalendarDay{Exchange: ExchangeSSE, Date: b.Date, IsOpen: true})
				}
				return days, nil
			},
		})
	}
	return g.calendar.Fetch(ctx, day(from)+"-"+day(to), providers...)
}

func (g *Gateway) exchangeCalendar(name, exchange string, from, to time.Time) fetch.Provider[[]CalendarDay] {
	return fetch.Provider[[]CalendarDay]{
		Name: name,
		Tag:  contracts.TagHistory,
		Fetch: func(ctx context.Context) ([]CalendarDay, error) {
			return g.primary.TradeCalendar(ctx, exchange, from, to)
		},
	}
}

// DailyBars returns daily bars ascending by date
func (g *Gateway) DailyBars(ctx context.Context, symbol string, from, to time.Time) (*fetch.Result[[]DailyBar], error) {
	providers := []fetch.Provider[[]DailyBar]{{
		Name: ProviderDaily,
		Tag:  contracts.TagHistory,
		Fetch: func(ctx context.Context) ([]DailyBar, error) {
			return g.primary.Daily(ctx, symbol, from, to)
		},
	}}
	if g.secondary != nil {
		providers = append(providers, fetch.Provider[[]DailyBar]{
			Name: ProviderKline,
			Tag:  contracts.TagHistory,
			Fetch: func(ctx context.Context) ([]DailyBar, error) {
				return g.secondary.Kline(ctx, symbol, from, to)
			},
		})
	}
	return g.daily.Fetch(ctx, fmt.Sprintf("%s|%s-%s", symbol, day(from), day(to)), providers...)
}

// DailyBar returns the bar of one date
func (g *Gateway) DailyBar(ctx context.Context, symbol string, date time.Time) (*DailyBar, string, error) {
	res, err := g.DailyBars(ctx, symbol, date, date)
	if err != nil {
		return nil, "", err
	}
	for i := range res.Value {
		if sameDay(res.Value[i].Date.In(g.loc), date.In(g.loc)) {
			return &res.Value[i], res.Provider, nil
		}
	}
	return nil, res.Provider, fmt.Errorf("daily bar %s %s: %w", symbol, day(date), ErrNoData)
}

// previousCloseLookback spans long holidays such as the Spring Festival
const previousCloseLookback = 15 * 24 * time.Hour

// PreviousClose returns the last close strictly before date
func (g *Gateway) PreviousClose(ctx context.Context, symbol string, date time.Time) (float64, error) {
	d := date.In(g.loc)
	res, err := g.DailyBars(ctx, symbol, d.Add(-previousCloseLookback), d.AddDate(0, 0, -1))
	if err != nil {
		return 0, err
	}
	for i := len(res.Value) - 1; i >= 0; i-- {
		bar := res.Value[i]
		if bar.Close > 0 && bar.Date.Before(d) {
			return bar.Close, nil
		}
	}
	return 0, fmt.Errorf("previous close %s %s: %w", symbol, day(date), ErrNoData)
}

// DailyBasics returns turnover/valuation rows ascending by date
func (g *Gateway) DailyBasics(ctx context.Context, symbol string, from, to time.Time) (*fetch.Result[[]DailyBasic], error) {
	return g.basics.Fetch(ctx, fmt.Sprintf("%s|%s-%s", symbol, day(from), day(to)), fetch.Provider[[]DailyBasic]{
		Name: ProviderDailyBasic,
		Tag:  contracts.TagHistory,
		Fetch: func(ctx context.Context) ([]DailyBasic, error) {
			return g.primary.DailyBasic(ctx, symbol, from, to)
		},
	})
}

// MoneyFlow returns the order flow split, falling back to the generic endpoint
func (g *Gateway) MoneyFlow(ctx context.Context, symbol string, date time.Time) (*fetch.Result[*MoneyFlow], error) {
	return g.flows.Fetch(ctx, symbol+"|"+day(date),
		fetch.Provider[*MoneyFlow]{
			Name: ProviderMoneyFlowDC,
			Tag:  contracts.TagHistory,
			Fetch: func(ctx context.Context) (*MoneyFlow, error) {
				return g.primary.MoneyFlowDC(ctx, symbol, date)
			},
		},
		fetch.Provider[*MoneyFlow]{
			Name: ProviderMoneyFlow,
			Tag:  contracts.TagDerived,
			Fetch: func(ctx context.Context) (*MoneyFlow, error) {
				return g.primary.MoneyFlow(ctx, symbol, date)
			},
		},
	)
}

// SectorFlows returns industry sector flows for a day
func (g *Gateway) SectorFlows(ctx context.Context, date time.Time) (*fetch.Result[[]SectorFlow], error) {
	return g.sectors.Fetch(ctx, day(date), fetch.Provider[[]SectorFlow]{
		Name: ProviderSectorFlow,
		Tag:  contracts.TagHistory,
		Fetch: func(ctx context.Context) ([]SectorFlow, error) {
			return g.primary.SectorFlows(ctx, date)
		},
	})
}

// TopList returns the large-trade disclosure row for a symbol
func (g *Gateway) TopList(ctx context.Context, symbol string, date time.Time) (*fetch.Result[*TopListEntry], error) {
	return g.topList.Fetch(ctx, symbol+"|"+day(date), fetch.Provider[*TopListEntry]{
		Name: ProviderTopList,
		Tag:  contracts.TagHistory,
		Fetch: func(ctx context.Context) (*TopListEntry, error) {
			return g.primary.TopList(ctx, symbol, date)
		},
	})
}

// Auction returns the opening auction quote for symbol on date.
// liveOnly restricts the chain to providers tagged live.
func (g *Gateway) Auction(ctx context.Context, symbol string, date time.Time, liveOnly bool) (*fetch.Result[*AuctionQuote], error) {
	providers := []fetch.Provider[*AuctionQuote]{{
		Name: ProviderAuctionLive,
		Tag:  contracts.TagLive,
		Fetch: func(ctx context.Context) (*AuctionQuote, error) {
			return g.primary.Auction(ctx, symbol, date)
		},
	}}
	if g.secondary != nil {
		providers = append(providers, fetch.Provider[*AuctionQuote]{
			Name: ProviderSnapshot,
			Tag:  contracts.TagLive,
			Fetch: func(ctx context.Context) (*AuctionQuote, error) {
				// 스냅샷은 당일 시세만 제공
				if !sameDay(g.now().In(g.loc), date.In(g.loc)) {
					return nil, fmt.Errorf("snapshot is today-only: %w", ErrNoData)
				}
				q, err := g.secondary.Snapshot(ctx, symbol)
				if err != nil {
					return nil, err
				}
				q.Date = date
				return q, nil
			},
		})
	}
	if !liveOnly {
		providers = append(providers, fetch.Provider[*AuctionQuote]{
			Name: ProviderAuctionHistory,
			Tag:  contracts.TagHistory,
			Fetch: func(ctx context.Context) (*AuctionQuote, error) {
				q, err := g.primary.AuctionHistory(ctx, symbol, date)
				if err != nil {
					return nil, err
				}
				if q.PreClose <= 0 {
					preClose, err := g.PreviousClose(ctx, symbol, date)
					if err != nil {
						return nil, fmt.Errorf("auction history pre close: %w", err)
					}
					q.PreClose = preClose
				}
				return q, nil
			},
		})
	}
	return g.auction.Fetch(ctx, symbol+"|"+day(date), providers...)
}

// IndexBars returns index daily bars ascending by date
func (g *Gateway) IndexBars(ctx context.Context, code string, from, to time.Time) (*fetch.Result[[]DailyBar], error) {
	providers := []fetch.Provider[[]DailyBar]{{
		Name: ProviderIndexDaily,
		Tag:  contracts.TagHistory,
		Fetch: func(ctx context.Context) ([]DailyBar, error) {
			return g.primary.IndexDaily(ctx, code, from, to)
		},
	}}
	if g.secondary != nil {
		providers = append(providers, fetch.Provider[[]DailyBar]{
			Name: ProviderIndexKline,
			Tag:  contracts.TagHistory,
			Fetch: func(ctx context.Context) ([]DailyBar, error) {
				return g.secondary.IndexKline(ctx, code, from, to)
			},
		})
	}
	return g.index.Fetch(ctx, fmt.Sprintf("%s|%s-%s", code, day(from), day(to)), providers...)
}

// Margin returns per-exchange margin rows for a day
func (g *Gateway) Margin(ctx context.Context, date time.Time) (*fetch.Result[[]MarginSummary], error) {
	return g.margin.Fetch(ctx, day(date), fetch.Provider[[]MarginSummary]{
		Name: ProviderMargin,
		Tag:  contracts.TagHistory,
		Fetch: func(ctx context.Context) ([]MarginSummary, error) {
			return g.primary.Margin(ctx, date)
		},
	})
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
