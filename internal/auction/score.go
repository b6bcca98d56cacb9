package auction

import (
	"math"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/strategyconfig"
)

// Auction factor ids (weights table keys)
const (
	FactorOpenChangePct      = "open_change_pct"
	FactorVolumeRatio        = "auction_volume_ratio"
	FactorTurnoverRate       = "auction_turnover_rate"
	FactorAmount             = "auction_amount"
	FactorVolumeToTDayVolume = "auction_volume_to_t_volume"
)

// Score sums the capped auction factor contributions
func Score(s *contracts.AuctionSnapshot, cfg strategyconfig.AuctionConfig) (float64, map[string]float64) {
	w := cfg.Weights
	parts := map[string]float64{
		// 음수 갭은 0점
		FactorOpenChangePct:      math.Min(math.Max(s.OpenChangePct, 0), 10) / 10 * w.OpenChangePct,
		FactorVolumeRatio:        math.Min(math.Max(s.VolumeRatio, 0), 5) / 5 * w.VolumeRatio,
		FactorTurnoverRate:       math.Min(math.Max(s.TurnoverRate, 0)/5, 1) * w.TurnoverRate,
		FactorAmount:             math.Min(math.Max(s.Amount, 0)/cfg.AmountFullScale, 1) * w.Amount,
		FactorVolumeToTDayVolume: PersistenceTier(s.VolumeToTDay()) * w.VolumeToTDayVolume,
	}
	total := 0.0
	for _, v := range parts {
		total += v
	}
	return total, parts
}

// PersistenceTier maps auction volume / T-day volume to a score ratio
func PersistenceTier(ratio float64) float64 {
	switch {
	case ratio >= 0.15:
		return 1.0
	case ratio >= 0.10:
		return 0.8
	case ratio >= 0.05:
		return 0.4
	case ratio >= 0.03:
		return 0.2
	default:
		return 0
	}
}

// ClampGap limits the opening gap to ±limit percent
func ClampGap(pct, limit float64) float64 {
	if limit <= 0 {
		return pct
	}
	return math.Max(-limit, math.Min(limit, pct))
}

// Blend combines the T-day and auction scores
func Blend(tDay, auction float64, cfg strategyconfig.BlendConfig) float64 {
	return tDay*cfg.TDay + auction*cfg.Auction
}

// Decide maps a final score to action, confidence and position
func Decide(final float64, s *contracts.AuctionSnapshot, cfg strategyconfig.DecisionConfig) contracts.Decision {
	d := contracts.Decision{Action: contracts.ActionWatch}
	switch {
	case final >= cfg.HighThreshold:
		d.Confidence = contracts.ConfidenceHigh
		d.Position = cfg.MaxPositionPerStock
	case final >= cfg.MediumThreshold:
		d.Confidence = contracts.ConfidenceMedium
		d.Position = cfg.MaxPositionPerStock * cfg.MediumFactor
	default:
		d.Confidence = contracts.ConfidenceLow
		d.Position = cfg.MaxPositionPerStock * cfg.LowFactor
	}
	d.Position = math.Round(d.Position*100) / 100
	if final >= cfg.MediumThreshold {
		d.Action = contracts.ActionBuy
	}
	d.Reasons = Reasons(s)
	return d
}

// Reasons describes which auction signals crossed notable thresholds
func Reasons(s *contracts.AuctionSnapshot) []string {
	var reasons []string

	gap := s.OpenChangePct
	switch {
	case gap > 5:
		reasons = append(reasons, "large gap up (>5%)")
	case gap > 3:
		reasons = append(reasons, "gap up (3-5%)")
	case gap > 0:
		reasons = append(reasons, "small gap up (0-3%)")
	case gap < -2:
		reasons = append(reasons, "large gap down (<-2%)")
	case gap < 0:
		reasons = append(reasons, "small gap down")
	}

	vr := s.VolumeRatio
	switch {
	case vr > 3:
		reasons = append(reasons, "auction volume ratio very high (>3)")
	case vr > 2:
		reasons = append(reasons, "auction volume ratio elevated (2-3)")
	case vr < 0.5:
		reasons = append(reasons, "auction volume ratio weak (<0.5)")
	}

	// 열기 지속성: 경매 거래량 / T일 거래량
	if s.Tag == contracts.TagSimulated {
		return reasons
	}
	p := s.VolumeToTDay()
	switch {
	case p >= 0.30:
		reasons = append(reasons, "auction volume extreme (>30% of T-day), heat persisting strongly")
	case p >= 0.20:
		reasons = append(reasons, "auction volume very strong (20-30% of T-day)")
	case p >= 0.15:
		reasons = append(reasons, "auction volume strong (15-20% of T-day)")
	case p >= 0.10:
		reasons = append(reasons, "auction volume moderate (10-15% of T-day)")
	case p >= 0.05:
		reasons = append(reasons, "auction volume fair (5-10% of T-day), heat fading")
	case p >= 0.03:
		reasons = append(reasons, "auction volume weak (3-5% of T-day), one-day wonder risk")
	default:
		reasons = append(reasons, "auction volume very weak (<3% of T-day), high one-day wonder risk")
	}
	return reasons
}
