package risk

import (
	"fmt"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/marketdata"
)

// 레버리지 위험 임계값 (위안 단위, 두 거래소 합계)
const (
	financingHighWater    = 800_000_000_000   // 8000亿元
	financingExtremeWater = 1_000_000_000_000 // 1万亿元
)

// Leverage scores margin data of a day against the previous trading day.
// prev may be nil; change-based conditions are then skipped.
func Leverage(cur marketdata.MarginSummary, prev *marketdata.MarginSummary) *contracts.LeverageSnapshot {
	s := &contracts.LeverageSnapshot{
		Date:             cur.Date,
		FinancingBalance: cur.FinancingBalance,
		ShortBalance:     cur.ShortBalance,
		TotalBalance:     cur.TotalBalance,
		FinancingBuy:     cur.FinancingBuy,
		FinancingRepay:   cur.FinancingRepay,
	}
	if cur.FinancingRepay > 0 {
		s.BuyRepayRatio = cur.FinancingBuy / cur.FinancingRepay
	}
	if prev != nil {
		s.HasPrevious = true
		if prev.FinancingBalance > 0 {
			s.FinancingChangePct = (cur.FinancingBalance - prev.FinancingBalance) / prev.FinancingBalance * 100
		}
		if prev.ShortBalance > 0 {
			s.ShortChangePct = (cur.ShortBalance - prev.ShortBalance) / prev.ShortBalance * 100
		}
	}

	add := func(points int, factor string) {
		s.RiskScore += points
		s.RiskFactors = append(s.RiskFactors, factor)
	}

	// 심한 조건부터 검사
	if s.HasPrevious {
		switch {
		case s.FinancingChangePct < -5:
			add(5, fmt.Sprintf("financing balance down %.2f%%", s.FinancingChangePct))
		case s.FinancingChangePct < -2:
			add(3, fmt.Sprintf("financing balance down %.2f%%", s.FinancingChangePct))
		}
		switch {
		case s.ShortChangePct > 10:
			add(5, fmt.Sprintf("short balance up %.2f%%", s.ShortChangePct))
		case s.ShortChangePct > 5:
			add(3, fmt.Sprintf("short balance up %.2f%%", s.ShortChangePct))
		}
	}
	if cur.FinancingRepay > 0 {
		switch {
		case s.BuyRepayRatio < 0.6:
			add(4, fmt.Sprintf("financing buy/repay %.2f", s.BuyRepayRatio))
		case s.BuyRepayRatio < 0.8:
			add(2, fmt.Sprintf("financing buy/repay %.2f", s.BuyRepayRatio))
		}
	}
	switch {
	case cur.FinancingBalance > financingExtremeWater:
		add(3, "financing balance above 1 trillion")
	case cur.FinancingBalance > financingHighWater:
		add(2, "financing balance above 800 billion")
	}

	if s.RiskScore > 10 {
		s.RiskScore = 10
	}
	return s
}

// Level maps a leverage risk score to level, position multiplier, condition and suggestion
func Level(score int) (contracts.RiskLevel, float64, string, string) {
	switch {
	case score <= 2:
		return contracts.RiskLow, 1.0, "normal", "positions may be increased moderately"
	case score <= 5:
		return contracts.RiskMedium, 0.8, "normal", "control position size, trade cautiously"
	case score <= 8:
		return contracts.RiskHigh, 0.5, "elevated risk", "reduce positions, enforce stop loss"
	default:
		return contracts.RiskExtreme, 0.3, "extreme risk", "stay flat and watch"
	}
}
