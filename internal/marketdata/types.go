package marketdata

import (
	"time"

	"github.com/wonny/limitup/internal/fetch"
)

// Sentinel errors shared with the fetch layer so providers and callers agree
var (
	ErrNoData    = fetch.ErrNoData
	ErrMalformed = fetch.ErrMalformed
)

// Exchange codes used by the calendar and margin endpoints
const (
	ExchangeSSE  = "SSE"
	ExchangeSZSE = "SZSE"
)

// CalendarDay is one row of an exchange trading calendar
type CalendarDay struct {
	Exchange      string    `json:"exchange"`
	Date          time.Time `json:"date"`
	IsOpen        bool      `json:"is_open"`
	PrevTradeDate time.Time `json:"prev_trade_date,omitempty"` // zero when the source does not supply it
}

// DailyBar is one daily OHLCV bar. Volume is in shares, Amount in yuan.
type DailyBar struct {
	Symbol    string    `json:"symbol"`
	Date      time.Time `json:"date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	PreClose  float64   `json:"pre_close"`
	PctChange float64   `json:"pct_chg"`
	Volume    float64   `json:"volume"`
	Amount    float64   `json:"amount"`
}

// DailyBasic holds per-day valuation and turnover indicators
type DailyBasic struct {
	Symbol           string    `json:"symbol"`
	Date             time.Time `json:"date"`
	TurnoverRate     float64   `json:"turnover_rate"`
	TurnoverRateFree float64   `json:"turnover_rate_f"` // free-float turnover, 0 when absent
	VolumeRatio      float64   `json:"volume_ratio"`
	HasVolumeRatio   bool      `json:"has_volume_ratio"`
	FloatMarketCap   float64   `json:"circ_mv"` // yuan
	TotalMarketCap   float64   `json:"total_mv"`
}

// MoneyFlow is the per-symbol order flow split. Amounts are in yuan.
type MoneyFlow struct {
	Symbol          string    `json:"symbol"`
	Date            time.Time `json:"date"`
	MainNetAmount   float64   `json:"main_net_amount"` // large + extra-large net
	MainNetRatio    float64   `json:"main_net_ratio"`  // percent of traded amount
	MediumNetAmount float64   `json:"medium_net_amount"`
}

// SectorFlow is one industry sector's daily move and money flow
type SectorFlow struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	PctChange float64 `json:"pct_change"`
	NetAmount float64 `json:"net_amount"` // yuan
	Rank      int     `json:"rank"`
}

// TopListEntry is a large-trade disclosure (dragon-tiger list) row
type TopListEntry struct {
	Symbol    string    `json:"symbol"`
	Date      time.Time `json:"date"`
	NetAmount float64   `json:"net_amount"` // yuan
	NetRate   float64   `json:"net_rate"`   // percent
	Reason    string    `json:"reason"`
}

// AuctionQuote is an opening call auction result as reported by a provider.
// Volume is in shares, Amount in yuan.
type AuctionQuote struct {
	Symbol         string    `json:"symbol"`
	Date           time.Time `json:"date"`
	Price          float64   `json:"price"`
	PreClose       float64   `json:"pre_close"`
	Volume         float64   `json:"volume"`
	Amount         float64   `json:"amount"`
	TurnoverRate   float64   `json:"turnover_rate"`
	VolumeRatio    float64   `json:"volume_ratio"`
	HasVolumeRatio bool      `json:"has_volume_ratio"`
}

// OpenChangePct is the auction price gap versus the previous close, in percent
func (q *AuctionQuote) OpenChangePct() (float64, bool) {
	if q.Price <= 0 || q.PreClose <= 0 {
		return 0, false
	}
	return (q.Price - q.PreClose) / q.PreClose * 100, true
}

// MarginSummary is one exchange's margin trading totals for a day (yuan)
type MarginSummary struct {
	Exchange         string    `json:"exchange"`
	Date             time.Time `json:"date"`
	FinancingBalance float64   `json:"rzye"`
	FinancingBuy     float64   `json:"rzmre"`
	FinancingRepay   float64   `json:"rzche"`
	ShortBalance     float64   `json:"rqye"`
	TotalBalance     float64   `json:"rzrqye"`
}

// SumMargin adds exchange rows into one market-wide summary
func SumMargin(rows []MarginSummary) MarginSummary {
	var out MarginSummary
	for _, r := range rows {
		if out.Date.IsZero() {
			out.Date = r.Date
		}
		out.FinancingBalance += r.FinancingBalance
		out.FinancingBuy += r.FinancingBuy
		out.FinancingRepay += r.FinancingRepay
		out.ShortBalance += r.ShortBalance
		out.TotalBalance += r.TotalBalance
	}
	out.Exchange = "ALL"
	return out
}
