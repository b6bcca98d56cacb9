package strategyconfig

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

var hhmmPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}
	if _, err := time.LoadLocation(cfg.Meta.Timezone); err != nil || cfg.Meta.Timezone == "" {
		return ValidationError{"meta.timezone", "must be a valid IANA timezone"}
	}

	// === Schedule ===
	for field, v := range map[string]string{
		"schedule.tday_time":            cfg.Schedule.TDayTime,
		"schedule.auction_window.start": cfg.Schedule.AuctionWindow.Start,
		"schedule.auction_window.end":   cfg.Schedule.AuctionWindow.End,
		"schedule.performance_time":     cfg.Schedule.PerformanceTime,
		"schedule.maintenance_time":     cfg.Schedule.MaintenanceTime,
	} {
		if err := validateHHMM(v); err != nil {
			return ValidationError{field, err.Error()}
		}
	}

	// auction_window: start < end
	startTime, _ := time.Parse("15:04", cfg.Schedule.AuctionWindow.Start)
	endTime, _ := time.Parse("15:04", cfg.Schedule.AuctionWindow.End)
	if !startTime.Before(endTime) {
		return ValidationError{"schedule.auction_window", "start must be before end"}
	}
	if cfg.Schedule.FeedbackWeekday < 0 || cfg.Schedule.FeedbackWeekday > 6 {
		return ValidationError{"schedule.feedback_weekday", "must be in [0, 6]"}
	}

	// === T-day ===
	if cfg.TDay.TopN <= 0 {
		return ValidationError{"tday.top_n", "must be > 0"}
	}
	for id, w := range cfg.TDay.Weights.Map() {
		if w < 0 {
			return ValidationError{"tday.weights." + id, "must be >= 0"}
		}
	}
	if cfg.TDay.TurnoverMinRows <= 0 || cfg.TDay.TurnoverMinRows > cfg.TDay.TurnoverLookbackDays {
		return ValidationError{"tday.turnover_min_rows", "must be in (0, turnover_lookback_days]"}
	}

	// === Auction ===
	w := cfg.Auction.Weights
	if w.OpenChangePct < 0 || w.VolumeRatio < 0 || w.TurnoverRate < 0 || w.Amount < 0 || w.VolumeToTDayVolume < 0 {
		return ValidationError{"auction.weights", "must be >= 0"}
	}
	if cfg.Auction.AmountFullScale <= 0 {
		return ValidationError{"auction.amount_full_scale", "must be > 0"}
	}
	if cfg.Auction.Blend.TDay < 0 || cfg.Auction.Blend.Auction < 0 {
		return ValidationError{"auction.blend", "must be >= 0"}
	}
	if err := validateSum(cfg.Auction.Blend.TDay+cfg.Auction.Blend.Auction, 1.0, 1e-6); err != nil {
		return ValidationError{"auction.blend", err.Error()}
	}
	d := cfg.Auction.Decision
	if d.MediumThreshold >= d.HighThreshold {
		return ValidationError{"auction.decision", "medium_threshold must be < high_threshold"}
	}
	if d.MaxPositionPerStock <= 0 || d.MaxPositionPerStock > 1 {
		return ValidationError{"auction.decision.max_position_per_stock", "must be in (0, 1]"}
	}
	if cfg.Auction.Simulated.Score < 0 {
		return ValidationError{"auction.simulated.score", "must be >= 0"}
	}
	if cfg.Auction.FinalCount <= 0 {
		return ValidationError{"auction.final_count", "must be > 0"}
	}

	// === Risk ===
	r := cfg.Risk
	if r.MADays <= 0 {
		return ValidationError{"risk.ma_days", "must be > 0"}
	}
	for field, v := range map[string]float64{
		"risk.max_position":        r.MaxPosition,
		"risk.weak_max_position":   r.WeakMaxPosition,
		"risk.strong_max_position": r.StrongMaxPosition,
	} {
		if v <= 0 || v > 1 {
			return ValidationError{field, "must be in (0, 1]"}
		}
	}
	if r.StopLossPct >= 0 {
		return ValidationError{"risk.stop_loss_pct", "must be < 0"}
	}
	switch r.Mode {
	case "enforce", "shadow", "off":
	default:
		return ValidationError{"risk.mode", "must be one of: enforce, shadow, off"}
	}

	// === Tracker ===
	if cfg.Tracker.Quantity <= 0 {
		return ValidationError{"tracker.quantity", "must be > 0"}
	}
	if cfg.Tracker.SimulationRuns < 0 || cfg.Tracker.SimulationHorizon < 0 {
		return ValidationError{"tracker.simulation_runs", "must be >= 0"}
	}
	if cfg.Tracker.SimulationRuns > 0 && cfg.Tracker.SimulationHorizon == 0 {
		return ValidationError{"tracker.simulation_horizon", "must be > 0 when simulation_runs is set"}
	}
	for i := 1; i < len(cfg.Tracker.ScoreBins); i++ {
		if cfg.Tracker.ScoreBins[i] <= cfg.Tracker.ScoreBins[i-1] {
			return ValidationError{"tracker.score_bins", "must be strictly increasing"}
		}
	}

	// === Feedback ===
	f := cfg.Feedback
	if f.MinWeight <= 0 || f.MinWeight >= f.MaxWeight {
		return ValidationError{"feedback.min_weight", "must be in (0, max_weight)"}
	}
	if f.Smoothing < 0 || f.Smoothing > 1 {
		return ValidationError{"feedback.smoothing", "must be in [0, 1]"}
	}
	if f.MinClassRatio < 0 || f.MinClassRatio > 1 {
		return ValidationError{"feedback.min_class_ratio", "must be in [0, 1]"}
	}
	for _, m := range f.Model.Order {
		switch m {
		case ModelRandomForest, ModelGradientBoosting, ModelCorrelation:
		default:
			return ValidationError{"feedback.model.order", fmt.Sprintf("unknown model %q", m)}
		}
	}
	if f.Model.TestSize < 0 || f.Model.TestSize >= 1 {
		return ValidationError{"feedback.model.test_size", "must be in [0, 1)"}
	}

	// === Retention / Fetch ===
	if cfg.Retention.RecommendationsDays <= 0 || cfg.Retention.TradesDays <= 0 {
		return ValidationError{"retention", "days must be > 0"}
	}
	if cfg.Fetch.CacheTTL <= 0 || cfg.Fetch.ProviderTimeout <= 0 {
		return ValidationError{"fetch", "cache_ttl and provider_timeout must be > 0"}
	}

	return nil
}

// Warn returns non-fatal recommendations
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// dragon list 미정규화 방지
	if cfg.TDay.Weights.DragonList > cfg.TDay.Weights.FirstLimitTime {
		warnings = append(warnings, Warning{
			Code:    "DRAGON_DOMINATES",
			Message: "dragon_list weight exceeds first_limit_time: list presence dominates the T-day score",
		})
	}

	start, _ := time.Parse("15:04", cfg.Schedule.AuctionWindow.Start)
	end, _ := time.Parse("15:04", cfg.Schedule.AuctionWindow.End)
	if end.Sub(start) > 5*time.Minute {
		warnings = append(warnings, Warning{
			Code:    "WIDE_AUCTION_WINDOW",
			Message: "auction window longer than 5m overlaps continuous trading",
		})
	}

	if cfg.Risk.WeakTrendRatio <= cfg.Risk.TrendTolerance {
		warnings = append(warnings, Warning{
			Code:    "WEAK_TREND_UNREACHABLE",
			Message: "risk.weak_trend_ratio <= risk.trend_tolerance: the near-MA position cut never applies",
		})
	}

	if cfg.Feedback.MinSamples < 50 {
		warnings = append(warnings, Warning{
			Code:    "SMALL_TRAINING_SET",
			Message: "feedback.min_samples < 50: weight updates will be noisy",
		})
	}

	return warnings
}

func validateHHMM(s string) error {
	if !hhmmPattern.MatchString(s) {
		return errors.New("must be HH:MM format")
	}
	_, err := time.Parse("15:04", s)
	return err
}

func validateSum(sum, target, epsilon float64) error {
	if sum < target-epsilon || sum > target+epsilon {
		return fmt.Errorf("must sum to %.2f, got %.4f", target, sum)
	}
	return nil
}
