// Package mdtest provides in-memory market data sources for tests and smoke runs
package mdtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/marketdata"
)

// Key joins a symbol and a date the way the fixture maps are keyed
func Key(symbol string, date time.Time) string {
	return symbol + "|" + date.Format(contracts.DateLayout)
}

// D parses a YYYYMMDD date in Asia/Shanghai
func D(s string) time.Time {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.FixedZone("CST", 8*3600)
	}
	t, err := time.ParseInLocation(contracts.DateLayout, s, loc)
	if err != nil {
		panic(err)
	}
	return t
}

// Primary is an in-memory marketdata.PrimarySource.
// Errs overrides a method by name ("Auction", "TradeCalendar:SSE", ...).
type Primary struct {
	mu sync.Mutex

	LimitUpRows  map[string][]contracts.Candidate // by date
	LimitDowns   map[string]int                   // by date
	ST           map[string]string
	Calendars    map[string][]marketdata.CalendarDay // by exchange
	Bars         map[string][]marketdata.DailyBar    // by symbol
	Basics       map[string][]marketdata.DailyBasic  // by symbol
	FlowsDC      map[string]*marketdata.MoneyFlow    // by Key
	Flows        map[string]*marketdata.MoneyFlow    // by Key
	Sectors      map[string][]marketdata.SectorFlow  // by date
	Tops         map[string]*marketdata.TopListEntry // by Key
	Auctions     map[string]*marketdata.AuctionQuote // by Key
	AuctionsHist map[string]*marketdata.AuctionQuote // by Key
	Indexes      map[string][]marketdata.DailyBar    // by code
	Margins      map[string][]marketdata.MarginSummary

	Errs  map[string]error
	Delay map[string]time.Duration
	Calls map[string]int
}

// NewPrimary returns an empty source
func NewPrimary() *Primary {
	return &Primary{
		LimitUpRows:  make(map[string][]contracts.Candidate),
		LimitDowns:   make(map[string]int),
		Calendars:    make(map[string][]marketdata.CalendarDay),
		Bars:         make(map[string][]marketdata.DailyBar),
		Basics:       make(map[string][]marketdata.DailyBasic),
		FlowsDC:      make(map[string]*marketdata.MoneyFlow),
		Flows:        make(map[string]*marketdata.MoneyFlow),
		Sectors:      make(map[string][]marketdata.SectorFlow),
		Tops:         make(map[string]*marketdata.TopListEntry),
		Auctions:     make(map[string]*marketdata.AuctionQuote),
		AuctionsHist: make(map[string]*marketdata.AuctionQuote),
		Indexes:      make(map[string][]marketdata.DailyBar),
		Margins:      make(map[string][]marketdata.MarginSummary),
		Errs:         make(map[string]error),
		Delay:        make(map[string]time.Duration),
		Calls:        make(map[string]int),
	}
}

// CallCount returns how often a method was called
func (p *Primary) CallCount(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls[method]
}

func (p *Primary) enter(ctx context.Context, method string) error {
	p.mu.Lock()
	p.Calls[method]++
	err := p.Errs[method]
	delay := p.Delay[method]
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func noData(what string) error {
	return fmt.Errorf("%s: %w", what, marketdata.ErrNoData)
}

func (p *Primary) LimitUps(ctx context.Context, date time.Time) ([]contracts.Candidate, error) {
	if err := p.enter(ctx, "LimitUps"); err != nil {
		return nil, err
	}
	rows := p.LimitUpRows[date.Format(contracts.DateLayout)]
	if len(rows) == 0 {
		return nil, noData("limit ups")
	}
	return append([]contracts.Candidate(nil), rows...), nil
}

func (p *Primary) LimitDownCount(ctx context.Context, date time.Time) (int, error) {
	if err := p.enter(ctx, "LimitDownCount"); err != nil {
		return 0, err
	}
	n, ok := p.LimitDowns[date.Format(contracts.DateLayout)]
	if !ok {
		return 0, noData("limit downs")
	}
	return n, nil
}

func (p *Primary) SpecialTreatment(ctx context.Context, date time.Time) (map[string]string, error) {
	if err := p.enter(ctx, "SpecialTreatment"); err != nil {
		return nil, err
	}
	if p.ST == nil {
		return nil, noData("stock_st")
	}
	out := make(map[string]string, len(p.ST))
	for k, v := range p.ST {
		out[k] = v
	}
	return out, nil
}

func (p *Primary) TradeCalendar(ctx context.Context, exchange string, from, to time.Time) ([]marketdata.CalendarDay, error) {
	if err := p.enter(ctx, "TradeCalendar:"+exchange); err != nil {
		return nil, err
	}
	var out []marketdata.CalendarDay
	for _, d := range p.Calendars[exchange] {
		if !d.Date.Before(from) && !d.Date.After(to) {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, noData("trade_cal")
	}
	return out, nil
}

func (p *Primary) Daily(ctx context.Context, symbol string, from, to time.Time) ([]marketdata.DailyBar, error) {
	if err := p.enter(ctx, "Daily"); err != nil {
		return nil, err
	}
	return barsIn(p.Bars[symbol], from, to, "daily")
}

func (p *Primary) DailyBasic(ctx context.Context, symbol string, from, to time.Time) ([]marketdata.DailyBasic, error) {
	if err := p.enter(ctx, "DailyBasic"); err != nil {
		return nil, err
	}
	var out []marketdata.DailyBasic
	for _, b := range p.Basics[symbol] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, noData("daily_basic")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (p *Primary) MoneyFlowDC(ctx context.Context, symbol string, date time.Time) (*marketdata.MoneyFlow, error) {
	if err := p.enter(ctx, "MoneyFlowDC"); err != nil {
		return nil, err
	}
	if f, ok := p.FlowsDC[Key(symbol, date)]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, noData("moneyflow_dc")
}

func (p *Primary) MoneyFlow(ctx context.Context, symbol string, date time.Time) (*marketdata.MoneyFlow, error) {
	if err := p.enter(ctx, "MoneyFlow"); err != nil {
		return nil, err
	}
	if f, ok := p.Flows[Key(symbol, date)]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, noData("moneyflow")
}

func (p *Primary) SectorFlows(ctx context.Context, date time.Time) ([]marketdata.SectorFlow, error) {
	if err := p.enter(ctx, "SectorFlows"); err != nil {
		return nil, err
	}
	rows := p.Sectors[date.Format(contracts.DateLayout)]
	if len(rows) == 0 {
		return nil, noData("moneyflow_ind_dc")
	}
	return append([]marketdata.SectorFlow(nil), rows...), nil
}

func (p *Primary) TopList(ctx context.Context, symbol string, date time.Time) (*marketdata.TopListEntry, error) {
	if err := p.enter(ctx, "TopList"); err != nil {
		return nil, err
	}
	if e, ok := p.Tops[Key(symbol, date)]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, noData("top_list")
}

func (p *Primary) Auction(ctx context.Context, symbol string, date time.Time) (*marketdata.AuctionQuote, error) {
	if err := p.enter(ctx, "Auction"); err != nil {
		return nil, err
	}
	if q, ok := p.Auctions[Key(symbol, date)]; ok {
		cp := *q
		return &cp, nil
	}
	return nil, noData("stk_auction")
}

func (p *Primary) AuctionHistory(ctx context.Context, symbol string, date time.Time) (*marketdata.AuctionQuote, error) {
	if err := p.enter(ctx, "AuctionHistory"); err != nil {
		return nil, err
	}
	if q, ok := p.AuctionsHist[Key(symbol, date)]; ok {
		cp := *q
		return &cp, nil
	}
	return nil, noData("stk_auction_o")
}

func (p *Primary) IndexDaily(ctx context.Context, code string, from, to time.Time) ([]marketdata.DailyBar, error) {
	if err := p.enter(ctx, "IndexDaily"); err != nil {
		return nil, err
	}
	return barsIn(p.Indexes[code], from, to, "index_daily")
}

func (p *Primary) Margin(ctx context.Context, date time.Time) ([]marketdata.MarginSummary, error) {
	if err := p.enter(ctx, "Margin"); err != nil {
		return nil, err
	}
	rows := p.Margins[date.Format(contracts.DateLayout)]
	if len(rows) == 0 {
		return nil, noData("margin")
	}
	return append([]marketdata.MarginSummary(nil), rows...), nil
}

// Secondary is an in-memory marketdata.SecondarySource
type Secondary struct {
	mu sync.Mutex

	Bars      map[string][]marketdata.DailyBar
	Indexes   map[string][]marketdata.DailyBar
	Snapshots map[string]*marketdata.AuctionQuote // by symbol

	Errs  map[string]error
	Calls map[string]int
}

// NewSecondary returns an empty source
func NewSecondary() *Secondary {
	return &Secondary{
		Bars:      make(map[string][]marketdata.DailyBar),
		Indexes:   make(map[string][]marketdata.DailyBar),
		Snapshots: make(map[string]*marketdata.AuctionQuote),
		Errs:      make(map[string]error),
		Calls:     make(map[string]int),
	}
}

// CallCount returns how often a method was called
func (s *Secondary) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls[method]
}

func (s *Secondary) enter(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls[method]++
	return s.Errs[method]
}

func (s *Secondary) Kline(ctx context.Context, symbol string, from, to time.Time) ([]marketdata.DailyBar, error) {
	if err := s.enter("Kline"); err != nil {
		return nil, err
	}
	return barsIn(s.Bars[symbol], from, to, "kline")
}

func (s *Secondary) IndexKline(ctx context.Context, code string, from, to time.Time) ([]marketdata.DailyBar, error) {
	if err := s.enter("IndexKline"); err != nil {
		return nil, err
	}
	return barsIn(s.Indexes[code], from, to, "index kline")
}

func (s *Secondary) Snapshot(ctx context.Context, symbol string) (*marketdata.AuctionQuote, error) {
	if err := s.enter("Snapshot"); err != nil {
		return nil, err
	}
	if q, ok := s.Snapshots[symbol]; ok {
		cp := *q
		return &cp, nil
	}
	return nil, noData("snapshot")
}

func barsIn(all []marketdata.DailyBar, from, to time.Time, what string) ([]marketdata.DailyBar, error) {
	var out []marketdata.DailyBar
	for _, b := range all {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, noData(what)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// WeekdayCalendar builds open weekday rows for [from, to], minus holidays
func WeekdayCalendar(exchange string, from, to time.Time, holidays ...time.Time) []marketdata.CalendarDay {
	closed := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		closed[h.Format(contracts.DateLayout)] = true
	}
	var out []marketdata.CalendarDay
	var prev time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		open := d.Weekday() != time.Saturday && d.Weekday() != time.Sunday && !closed[d.Format(contracts.DateLayout)]
		out = append(out, marketdata.CalendarDay{Exchange: exchange, Date: d, IsOpen: open, PrevTradeDate: prev})
		if open {
			prev = d
		}
	}
	return out
}
