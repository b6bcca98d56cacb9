package contracts

import "time"

// DataTag marks the provenance class of a fetched value
type DataTag string

const (
	TagLive      DataTag = "live"
	TagHistory   DataTag = "history"
	TagSimulated DataTag = "simulated"
	TagDerived   DataTag = "derived"
)

// AuctionSnapshot is the opening call auction result for one symbol on T+1
type AuctionSnapshot struct {
	Symbol        string    `json:"symbol"`
	Date          time.Time `json:"date"`
	Price         float64   `json:"price"` // auction match price (= open)
	PreClose      float64   `json:"pre_close"`
	OpenChangePct float64   `json:"open_change_pct"`
	Volume        float64   `json:"volume"` // shares
	Amount        float64   `json:"amount"` // yuan
	TurnoverRate  float64   `json:"turnover_rate"`
	VolumeRatio   float64   `json:"volume_ratio"`
	TDayVolume    float64   `json:"t_day_volume"` // shares traded on T
	Tag           DataTag   `json:"tag"`
	Source        string    `json:"source"`
}

// VolumeToTDay is auction volume over the whole T-day volume
func (a *AuctionSnapshot) VolumeToTDay() float64 {
	if a.TDayVolume <= 0 {
		return 0
	}
	return a.Volume / a.TDayVolume
}

// TrendSnapshot is the index close versus its short moving average
type TrendSnapshot struct {
	IndexCode string  `json:"index_code"`
	Close     float64 `json:"close"`
	MA        float64 `json:"ma"`
	Ratio     float64 `json:"ratio"`
	IsAbove   bool    `json:"is_above"`
	Source    string  `json:"source"`
	Degraded  bool    `json:"degraded"`
}

// LeverageSnapshot is the exchange-wide margin financing picture
type LeverageSnapshot struct {
	Date               time.Time `json:"date"`
	FinancingBalance   float64   `json:"financing_balance"` // yuan
	ShortBalance       float64   `json:"short_balance"`
	TotalBalance       float64   `json:"total_balance"`
	FinancingBuy       float64   `json:"financing_buy"`
	FinancingRepay     float64   `json:"financing_repay"`
	FinancingChangePct float64   `json:"financing_change_pct"`
	ShortChangePct     float64   `json:"short_change_pct"`
	BuyRepayRatio      float64   `json:"buy_repay_ratio"`
	HasPrevious        bool      `json:"has_previous"`
	RiskScore          int       `json:"risk_score"`
	RiskFactors        []string  `json:"risk_factors,omitempty"`
}

// RiskLevel buckets the leverage risk score
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskExtreme RiskLevel = "extreme"
)

// MarketCondition is the RiskGate output for one trading day
type MarketCondition struct {
	Date               time.Time         `json:"date"`
	MarketFilter       bool              `json:"market_filter"`
	MaxPosition        float64           `json:"max_position"`
	StopLossPct        float64           `json:"stop_loss_pct"`
	TakeProfitPct      float64           `json:"take_profit_pct"`
	BreakMAStop        bool              `json:"break_ma_stop"`
	SentimentScore     float64           `json:"sentiment_score"`
	Trend              TrendSnapshot     `json:"trend"`
	Leverage           *LeverageSnapshot `json:"leverage,omitempty"`
	RiskScore          int               `json:"risk_score"`
	RiskLevel          RiskLevel         `json:"risk_level"`
	PositionMultiplier float64           `json:"position_multiplier"`
	Condition          string            `json:"condition"`
	Suggestion         string            `json:"suggestion"`
	Notes              []string          `json:"notes,omitempty"`
}

// PerformanceSummary is the store-side aggregate over a date range
type PerformanceSummary struct {
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	Total        int       `json:"total"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	Pending      int       `json:"pending"`
	AvgReturn    float64   `json:"avg_return"`
	MaxReturn    float64   `json:"max_return"`
	MinReturn    float64   `json:"min_return"`
	GrossProfit  float64   `json:"gross_profit"`
	GrossLoss    float64   `json:"gross_loss"`
	WinRate      float64   `json:"win_rate"`
	ProfitFactor float64   `json:"profit_factor"`
}

// DateRange is an inclusive range of trading dates; zero bounds are open
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether d falls inside the range
func (r DateRange) Contains(d time.Time) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}
