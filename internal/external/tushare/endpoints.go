package tushare

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/marketdata"
)

// Unit conversions to yuan / shares
const (
	wan      = 10_000 // 万元
	thousand = 1_000  // 千元
	lot      = 100    // 手
)

const limitListFields = "trade_date,ts_code,industry,name,close,pct_chg,amount,limit_amount,float_mv,total_mv,turnover_ratio,fd_amount,first_time,last_time,open_times,up_stat,limit_times"

// LimitUps returns the limit-up list (limit_list_d, limit_type=U)
func (c *Client) LimitUps(ctx context.Context, date time.Time) ([]contracts.Candidate, error) {
	t, err := c.query(ctx, "limit_list_d", map[string]string{
		"trade_date": fmtDate(date),
		"limit_type": "U",
	}, limitListFields)
	if err != nil {
		return nil, err
	}

	out := make([]contracts.Candidate, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		symbol := t.str(i, "ts_code")
		if symbol == "" {
			c.logger.WithField("row", i).Warn("limit_list_d row without ts_code, skipped")
			continue
		}
		out = append(out, contracts.Candidate{
			Symbol:   symbol,
			Name:     t.str(i, "name"),
			AsOfDate: date,
			Attributes: contracts.CandidateAttributes{
				Close:          t.float(i, "close"),
				PctChange:      t.float(i, "pct_chg"),
				Amount:         t.float(i, "amount"),
				SealAmount:     t.float(i, "fd_amount"),
				FloatMarketCap: t.float(i, "float_mv"),
				TotalMarketCap: t.float(i, "total_mv"),
				TurnoverRate:   t.float(i, "turnover_ratio"),
				Industry:       t.str(i, "industry"),
				FirstLimitTime: t.clock(i, "first_time"),
				LastLimitTime:  t.clock(i, "last_time"),
				OpenTimes:      t.integer(i, "open_times"),
				LimitTimes:     t.integer(i, "limit_times"),
				UpStat:         t.str(i, "up_stat"),
			},
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("limit_list_d: %w", marketdata.ErrNoData)
	}
	return out, nil
}

// LimitDownCount returns the number of limit-down symbols (limit_type=D)
func (c *Client) LimitDownCount(ctx context.Context, date time.Time) (int, error) {
	t, err := c.query(ctx, "limit_list_d", map[string]string{
		"trade_date": fmtDate(date),
		"limit_type": "D",
	}, "ts_code")
	if err != nil {
		return 0, err
	}
	return t.Len(), nil
}

// SpecialTreatment returns the official ST list (stock_st)
func (c *Client) SpecialTreatment(ctx context.Context, date time.Time) (map[string]string, error) {
	t, err := c.query(ctx, "stock_st", map[string]string{
		"trade_date": fmtDate(date),
	}, "ts_code,name")
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, t.Len())
	for i := 0; i < t.Len(); i++ {
		out[t.str(i, "ts_code")] = t.str(i, "name")
	}
	return out, nil
}

// TradeCalendar returns calendar rows ascending by date (trade_cal)
func (c *Client) TradeCalendar(ctx context.Context, exchange string, from, to time.Time) ([]marketdata.CalendarDay, error) {
	t, err := c.query(ctx, "trade_cal", map[string]string{
		"exchange":   exchange,
		"start_date": fmtDate(from),
		"end_date":   fmtDate(to),
	}, "exchange,cal_date,is_open,pretrade_date")
	if err != nil {
		return nil, err
	}

	out := make([]marketdata.CalendarDay, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		d, ok := t.date(i, "cal_date")
		if !ok {
			return nil, fmt.Errorf("trade_cal row %d: %w: bad cal_date %q", i, marketdata.ErrMalformed, t.str(i, "cal_date"))
		}
		prev, _ := t.date(i, "pretrade_date")
		out = append(out, marketdata.CalendarDay{
			Exchange:      exchange,
			Date:          d,
			IsOpen:        t.integer(i, "is_open") == 1,
			PrevTradeDate: prev,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Daily returns unadjusted daily bars ascending by date (daily)
func (c *Client) Daily(ctx context.Context, symbol string, from, to time.Time) ([]marketdata.DailyBar, error) {
	t, err := c.query(ctx, "daily", map[string]string{
		"ts_code":    symbol,
		"start_date": fmtDate(from),
		"end_date":   fmtDate(to),
	}, "ts_code,trade_date,open,high,low,close,pre_close,pct_chg,vol,amount")
	if err != nil {
		return nil, err
	}
	return c.bars(t, symbol)
}

// IndexDaily returns index bars ascending by date (index_daily)
func (c *Client) IndexDaily(ctx context.Context, code string, from, to time.Time) ([]marketdata.DailyBar, error) {
	t, err := c.query(ctx, "index_daily", map[string]string{
		"ts_code":    code,
		"start_date": fmtDate(from),
		"end_date":   fmtDate(to),
	}, "ts_code,trade_date,open,high,low,close,pre_close,pct_chg,vol,amount")
	if err != nil {
		return nil, err
	}
	return c.bars(t, code)
}

func (c *Client) bars(t *table, symbol string) ([]marketdata.DailyBar, error) {
	out := make([]marketdata.DailyBar, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		d, ok := t.date(i, "trade_date")
		if !ok {
			return nil, fmt.Errorf("%s row %d: %w: bad trade_date", symbol, i, marketdata.ErrMalformed)
		}
		out = append(out, marketdata.DailyBar{
			Symbol:    symbol,
			Date:      d,
			Open:      t.float(i, "open"),
			High:      t.float(i, "high"),
			Low:       t.float(i, "low"),
			Close:     t.float(i, "close"),
			PreClose:  t.float(i, "pre_close"),
			PctChange: t.float(i, "pct_chg"),
			Volume:    t.float(i, "vol") * lot,
			Amount:    t.float(i, "amount") * thousand,
		})
	}
	// Tushare는 최신순으로 반환
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// DailyBasic returns turnover and valuation rows ascending by date (daily_basic)
func (c *Client) DailyBasic(ctx context.Context, symbol string, from, to time.Time) ([]marketdata.DailyBasic, error) {
	t, err := c.query(ctx, "daily_basic", map[string]string{
		"ts_code":    symbol,
		"start_date": fmtDate(from),
		"end_date":   fmtDate(to),
	}, "ts_code,trade_date,turnover_rate,turnover_rate_f,volume_ratio,circ_mv,total_mv")
	if err != nil {
		return nil, err
	}

	out := make([]marketdata.DailyBasic, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		d, ok := t.date(i, "trade_date")
		if !ok {
			return nil, fmt.Errorf("daily_basic row %d: %w: bad trade_date", i, marketdata.ErrMalformed)
		}
		vr, hasVR := t.num(i, "volume_ratio")
		out = append(out, marketdata.DailyBasic{
			Symbol:           symbol,
			Date:             d,
			TurnoverRate:     t.float(i, "turnover_rate"),
			TurnoverRateFree: t.float(i, "turnover_rate_f"),
			VolumeRatio:      vr,
			HasVolumeRatio:   hasVR,
			FloatMarketCap:   t.float(i, "circ_mv") * wan,
			TotalMarketCap:   t.float(i, "total_mv") * wan,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// MoneyFlowDC returns the Eastmoney-sourced flow split (moneyflow_dc)
func (c *Client) MoneyFlowDC(ctx context.Context, symbol string, date time.Time) (*marketdata.MoneyFlow, error) {
	t, err := c.query(ctx, "moneyflow_dc", map[string]string{
		"ts_code":    symbol,
		"trade_date": fmtDate(date),
	}, "ts_code,trade_date,net_amount,net_amount_rate,buy_md_amount")
	if err != nil {
		return nil, err
	}
	return &marketdata.MoneyFlow{
		Symbol:          symbol,
		Date:            date,
		MainNetAmount:   t.float(0, "net_amount") * wan,
		MainNetRatio:    t.float(0, "net_amount_rate"),
		MediumNetAmount: t.float(0, "buy_md_amount") * wan,
	}, nil
}

// MoneyFlow derives the flow split from the generic order-size endpoint (moneyflow)
func (c *Client) MoneyFlow(ctx context.Context, symbol string, date time.Time) (*marketdata.MoneyFlow, error) {
	t, err := c.query(ctx, "moneyflow", map[string]string{
		"ts_code":    symbol,
		"trade_date": fmtDate(date),
	}, "ts_code,trade_date,buy_sm_amount,buy_md_amount,sell_md_amount,buy_lg_amount,sell_lg_amount,buy_elg_amount,sell_elg_amount")
	if err != nil {
		return nil, err
	}

	mainNet := (t.float(0, "buy_lg_amount") - t.float(0, "sell_lg_amount")) +
		(t.float(0, "buy_elg_amount") - t.float(0, "sell_elg_amount"))
	total := t.float(0, "buy_sm_amount") + t.float(0, "buy_md_amount") +
		t.float(0, "buy_lg_amount") + t.float(0, "buy_elg_amount")

	ratio := 0.0
	if total > 0 {
		ratio = mainNet / total * 100
	}
	return &marketdata.MoneyFlow{
		Symbol:          symbol,
		Date:            date,
		MainNetAmount:   mainNet * wan,
		MainNetRatio:    ratio,
		MediumNetAmount: (t.float(0, "buy_md_amount") - t.float(0, "sell_md_amount")) * wan,
	}, nil
}

// SectorFlows returns industry sector flows (moneyflow_ind_dc)
func (c *Client) SectorFlows(ctx context.Context, date time.Time) ([]marketdata.SectorFlow, error) {
	t, err := c.query(ctx, "moneyflow_ind_dc", map[string]string{
		"trade_date":   fmtDate(date),
		"content_type": "行业",
	}, "ts_code,name,pct_change,net_amount,rank")
	if err != nil {
		return nil, err
	}

	out := make([]marketdata.SectorFlow, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		rank := t.integer(i, "rank")
		if _, ok := t.num(i, "rank"); !ok {
			rank = 999
		}
		out = append(out, marketdata.SectorFlow{
			Code:      t.str(i, "ts_code"),
			Name:      t.str(i, "name"),
			PctChange: t.float(i, "pct_change"),
			NetAmount: t.float(i, "net_amount"),
			Rank:      rank,
		})
	}
	return out, nil
}

// TopList returns the dragon-tiger list row of one symbol (top_list)
func (c *Client) TopList(ctx context.Context, symbol string, date time.Time) (*marketdata.TopListEntry, error) {
	t, err := c.query(ctx, "top_list", map[string]string{
		"ts_code":    symbol,
		"trade_date": fmtDate(date),
	}, "trade_date,ts_code,net_amount,net_rate,reason")
	if err != nil {
		return nil, err
	}
	return &marketdata.TopListEntry{
		Symbol:    symbol,
		Date:      date,
		NetAmount: t.float(0, "net_amount"),
		NetRate:   t.float(0, "net_rate"),
		Reason:    t.str(0, "reason"),
	}, nil
}

// Auction returns the live opening auction result (stk_auction)
func (c *Client) Auction(ctx context.Context, symbol string, date time.Time) (*marketdata.AuctionQuote, error) {
	t, err := c.query(ctx, "stk_auction", map[string]string{
		"ts_code":    symbol,
		"trade_date": fmtDate(date),
	}, "ts_code,trade_date,vol,price,amount,pre_close,turnover_rate,volume_ratio")
	if err != nil {
		return nil, err
	}

	q := &marketdata.AuctionQuote{
		Symbol:       symbol,
		Date:         date,
		Price:        t.float(0, "price"),
		PreClose:     t.float(0, "pre_close"),
		Volume:       t.float(0, "vol"),
		Amount:       t.float(0, "amount"),
		TurnoverRate: t.float(0, "turnover_rate"),
	}
	q.VolumeRatio, q.HasVolumeRatio = t.num(0, "volume_ratio")
	if q.Price <= 0 || q.PreClose <= 0 {
		return nil, fmt.Errorf("stk_auction %s: %w: price=%v pre_close=%v", symbol, marketdata.ErrMalformed, q.Price, q.PreClose)
	}
	return q, nil
}

// AuctionHistory returns the after-hours auction record (stk_auction_o).
// Its close field is the auction match price; PreClose is left for the caller.
func (c *Client) AuctionHistory(ctx context.Context, symbol string, date time.Time) (*marketdata.AuctionQuote, error) {
	t, err := c.query(ctx, "stk_auction_o", map[string]string{
		"ts_code":    symbol,
		"trade_date": fmtDate(date),
	}, "ts_code,trade_date,close,vol,amount,vwap")
	if err != nil {
		return nil, err
	}

	q := &marketdata.AuctionQuote{
		Symbol: symbol,
		Date:   date,
		Price:  t.float(0, "close"),
		Volume: t.float(0, "vol"),
		Amount: t.float(0, "amount"),
	}
	if q.Price <= 0 {
		return nil, fmt.Errorf("stk_auction_o %s: %w: close=%v", symbol, marketdata.ErrMalformed, q.Price)
	}
	return q, nil
}

// Margin returns per-exchange margin totals (margin)
func (c *Client) Margin(ctx context.Context, date time.Time) ([]marketdata.MarginSummary, error) {
	t, err := c.query(ctx, "margin", map[string]string{
		"trade_date": fmtDate(date),
	}, "trade_date,exchange_id,rzye,rzmre,rzche,rqye,rzrqye")
	if err != nil {
		return nil, err
	}

	out := make([]marketdata.MarginSummary, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		out = append(out, marketdata.MarginSummary{
			Exchange:         t.str(i, "exchange_id"),
			Date:             date,
			FinancingBalance: t.float(i, "rzye"),
			FinancingBuy:     t.float(i, "rzmre"),
			FinancingRepay:   t.float(i, "rzche"),
			ShortBalance:     t.float(i, "rqye"),
			TotalBalance:     t.float(i, "rzrqye"),
		})
	}
	return out, nil
}
