package marketdata

import (
	"context"
	"time"

	"github.com/wonny/limitup/internal/contracts"
)

// PrimarySource is the full-featured market data API (Tushare Pro).
// Every method returns ErrNoData for a successful but empty answer.
type PrimarySource interface {
	LimitUps(ctx context.Context, date time.Time) ([]contracts.Candidate, error)
	LimitDownCount(ctx context.Context, date time.Time) (int, error)
	SpecialTreatment(ctx context.Context, date time.Time) (map[string]string, error)
	TradeCalendar(ctx context.Context, exchange string, from, to time.Time) ([]CalendarDay, error)
	Daily(ctx context.Context, symbol string, from, to time.Time) ([]DailyBar, error)
	DailyBasic(ctx context.Context, symbol string, from, to time.Time) ([]DailyBasic, error)
	MoneyFlowDC(ctx context.Context, symbol string, date time.Time) (*MoneyFlow, error)
	MoneyFlow(ctx context.Context, symbol string, date time.Time) (*MoneyFlow, error)
	SectorFlows(ctx context.Context, date time.Time) ([]SectorFlow, error)
	TopList(ctx context.Context, symbol string, date time.Time) (*TopListEntry, error)
	Auction(ctx context.Context, symbol string, date time.Time) (*AuctionQuote, error)
	AuctionHistory(ctx context.Context, symbol string, date time.Time) (*AuctionQuote, error)
	IndexDaily(ctx context.Context, code string, from, to time.Time) ([]DailyBar, error)
	Margin(ctx context.Context, date time.Time) ([]MarginSummary, error)
}

// SecondarySource is the quote-only backup API (Eastmoney)
type SecondarySource interface {
	Kline(ctx context.Context, symbol string, from, to time.Time) ([]DailyBar, error)
	IndexKline(ctx context.Context, code string, from, to time.Time) ([]DailyBar, error)
	// Snapshot returns the current session quote; it only describes today
	Snapshot(ctx context.Context, symbol string) (*AuctionQuote, error)
}
