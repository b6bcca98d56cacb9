package scoring

import (
	"math"
	"strconv"
)

// Factor ids (weights table keys)
const (
	FactorFirstLimitTime      = "first_limit_time"
	FactorBuyToSellRatio      = "buy_to_sell_ratio"
	FactorOrderAmountToCircMV = "order_amount_to_circ_mv"
	FactorTurnoverRate        = "turnover_rate"
	FactorTurnoverRateTo20MA  = "turnover_rate_to_20ma"
	FactorVolumeRatio         = "volume_ratio"
	FactorMainNetAmount       = "main_net_amount"
	FactorMainNetRatio        = "main_net_ratio"
	FactorMediumNetAmount     = "medium_net_amount"
	FactorIsHotSector         = "is_hot_sector"
	FactorDragonList          = "dragon_list"
)

// Factor groups; group maxima are the sum of their factor weights
const (
	GroupTiming       = "timing"
	GroupOrderQuality = "order_quality"
	GroupLiquidity    = "liquidity"
	GroupMoneyFlow    = "money_flow"
	GroupSectorHeat   = "sector_heat"
	GroupSpecialList  = "special_list"
)

// FactorGroups maps every T-day factor to its group
var FactorGroups = map[string]string{
	FactorFirstLimitTime:      GroupTiming,
	FactorBuyToSellRatio:      GroupOrderQuality,
	FactorOrderAmountToCircMV: GroupOrderQuality,
	FactorTurnoverRate:        GroupLiquidity,
	FactorTurnoverRateTo20MA:  GroupLiquidity,
	FactorVolumeRatio:         GroupLiquidity,
	FactorMainNetAmount:       GroupMoneyFlow,
	FactorMainNetRatio:        GroupMoneyFlow,
	FactorMediumNetAmount:     GroupMoneyFlow,
	FactorIsHotSector:         GroupSectorHeat,
	FactorDragonList:          GroupSpecialList,
}

// Groups lists the groups in report order
var Groups = []string{GroupTiming, GroupOrderQuality, GroupLiquidity, GroupMoneyFlow, GroupSectorHeat, GroupSpecialList}

// 각 함수는 가중치 대비 비율(0..1)을 반환

// TimingRatio scores the first limit-up time (HHMMSS); earlier is better.
// ok is false when the time is missing or unparseable.
func TimingRatio(firstTime string) (ratio float64, hour int, ok bool) {
	if len(firstTime) < 2 {
		return 0.5, -1, false
	}
	h, err := strconv.Atoi(firstTime[:2])
	if err != nil || h < 0 || h > 23 {
		return 0.5, -1, false
	}
	switch {
	case h < 10:
		return 1.0, h, true
	case h < 11:
		return 0.8, h, true
	case h < 13:
		return 0.6, h, true
	case h < 14:
		return 0.4, h, true
	default:
		return 0.2, h, true
	}
}

// SealRatioRatio scores seal amount / traded amount, full marks at 5
func SealRatioRatio(sealRatio float64) float64 {
	return capLinear(sealRatio, 5)
}

// SealToMVRatio scores seal amount / float market value in basis points, full marks at 10bp
func SealToMVRatio(sealToMV float64) float64 {
	return capLinear(sealToMV*10000, 10)
}

// TurnoverBellRatio prefers a mid-range turnover rate (percent)
func TurnoverBellRatio(turnover float64) float64 {
	switch {
	case turnover >= 2 && turnover <= 15:
		return 0.8
	case turnover >= 1 && turnover <= 20:
		return 0.6
	case turnover > 0:
		return 0.3
	default:
		return 0
	}
}

// Turnover20Ratio scores turnover over its 20-day average, full marks at 3x
func Turnover20Ratio(r float64) float64 {
	return capLinear(r, 3)
}

// VolumeRatioRatio scores the volume ratio, full marks at 3x
func VolumeRatioRatio(v float64) float64 {
	return capLinear(v, 3)
}

// MainNetAmountRatio tiers the large-order net inflow (yuan)
func MainNetAmountRatio(amount float64) float64 {
	switch {
	case amount > 10_000_000:
		return 1.0
	case amount > 5_000_000:
		return 0.8
	case amount > 0:
		return 0.5
	default:
		return 0
	}
}

// MainNetRatioRatio scores the net inflow percentage, full marks at 10%
func MainNetRatioRatio(pct float64) float64 {
	return capLinear(pct, 10)
}

// MediumNetRatio is a binary bonus for positive medium-order inflow
func MediumNetRatio(amount float64) float64 {
	if amount > 0 {
		return 0.5
	}
	return 0
}

// HotSectorRatio is 1.0 for a hot sector and 0.3 otherwise
func HotSectorRatio(hot bool) float64 {
	if hot {
		return 1.0
	}
	return 0.3
}

// DragonListRatio blends disclosed net amount (full at 10M) and net rate (full at 20%)
func DragonListRatio(netAmount, netRate float64) float64 {
	a := math.Min(math.Abs(netAmount)/10_000_000, 1)
	r := math.Min(math.Abs(netRate)/20, 1)
	return a*0.5 + r*0.5
}

// capLinear maps v into [0, 1] linearly with full marks at full
func capLinear(v, full float64) float64 {
	if full <= 0 || math.IsNaN(v) || v <= 0 {
		return 0
	}
	return math.Min(v, full) / full
}
