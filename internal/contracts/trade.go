package contracts

import (
	"fmt"
	"math"
	"time"
)

// Side is buy or sell
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeStatus is the lifecycle of a trade record
type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeCompleted TradeStatus = "completed"
	TradeCancelled TradeStatus = "cancelled"
	TradeSimulated TradeStatus = "simulated"
)

// Trade is one (possibly simulated) fill tied to a recommendation
type Trade struct {
	ID               string      `json:"id"`
	RecommendationID string      `json:"recommendation_id"`
	Side             Side        `json:"side"`
	Date             time.Time   `json:"date"`
	Time             string      `json:"time"` // HH:MM:SS
	Price            float64     `json:"price"`
	Quantity         int         `json:"quantity"`
	Amount           float64     `json:"amount"`
	Status           TradeStatus `json:"status"`
	Notes            string      `json:"notes,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// TradeID derives the stable id from (recommendation, side, date)
func TradeID(recID string, side Side, date time.Time) string {
	return fmt.Sprintf("%s_%s_%s", recID, side, date.Format(DateLayout))
}

// NewTrade builds a trade with its derived id and amount
func NewTrade(recID string, side Side, date time.Time, clock string, price float64, qty int, status TradeStatus) *Trade {
	return &Trade{
		ID:               TradeID(recID, side, date),
		RecommendationID: recID,
		Side:             side,
		Date:             date,
		Time:             clock,
		Price:            price,
		Quantity:         qty,
		Amount:           price * float64(qty),
		Status:           status,
	}
}

// WinLoss classifies a closed position
type WinLoss string

const (
	Win     WinLoss = "win"
	Loss    WinLoss = "loss"
	Pending WinLoss = "pending"
)

// Code is the numeric form stored in the performance table (1, 0, -1)
func (w WinLoss) Code() int {
	switch w {
	case Win:
		return 1
	case Loss:
		return 0
	default:
		return -1
	}
}

// WinLossFromCode is the inverse of Code
func WinLossFromCode(c int) WinLoss {
	switch c {
	case 1:
		return Win
	case 0:
		return Loss
	default:
		return Pending
	}
}

// PerformanceRecord is the outcome of one buy/sell pair
// ⭐ SSOT: winLoss == win  <=>  returnPct > 0  <=>  sellPrice > buyPrice
type PerformanceRecord struct {
	ID               string     `json:"id"`
	RecommendationID string     `json:"recommendation_id"`
	Symbol           string     `json:"symbol"`
	BuyDate          time.Time  `json:"buy_date"`
	BuyPrice         float64    `json:"buy_price"`
	SellDate         *time.Time `json:"sell_date,omitempty"`
	SellPrice        *float64   `json:"sell_price,omitempty"`
	HoldingDays      int        `json:"holding_days"`
	ReturnPct        float64    `json:"return_pct"`
	WinLoss          WinLoss    `json:"win_loss"`
	MaxDrawdownPct   float64    `json:"max_drawdown_pct"`
	SharpeLike       float64    `json:"sharpe_like"`
	CalculatedAt     time.Time  `json:"calculated_at"`
}

// PerformanceID derives the stable id of a recommendation's performance row
func PerformanceID(recID string) string {
	return recID + "_perf"
}

// ReturnPct computes (sell-buy)/buy*100
func ReturnPct(buy, sell float64) float64 {
	if buy <= 0 {
		return 0
	}
	return (sell - buy) / buy * 100
}

// ClassifyReturn maps a return to win or loss
func ClassifyReturn(returnPct float64) WinLoss {
	if returnPct > 0 {
		return Win
	}
	return Loss
}

// SharpeLike is return over drawdown, 0 when drawdown is negligible
func SharpeLike(returnPct, maxDrawdownPct float64) float64 {
	dd := math.Abs(maxDrawdownPct)
	if dd <= 0.01 {
		return 0
	}
	return returnPct / (dd + 0.01)
}

// IsClosed reports whether the sell leg is present
func (p *PerformanceRecord) IsClosed() bool {
	return p.SellDate != nil && p.SellPrice != nil
}
