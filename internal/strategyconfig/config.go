package strategyconfig

import "time"

// Config is the strategy configuration loaded from YAML
// ⭐ SSOT: 전략 수치(가중치/임계값/윈도우)는 여기서만 정의
type Config struct {
	Meta      MetaConfig      `yaml:"meta" json:"meta"`
	Schedule  ScheduleConfig  `yaml:"schedule" json:"schedule"`
	TDay      TDayConfig      `yaml:"tday" json:"tday"`
	Auction   AuctionConfig   `yaml:"auction" json:"auction"`
	Risk      RiskConfig      `yaml:"risk" json:"risk"`
	Tracker   TrackerConfig   `yaml:"tracker" json:"tracker"`
	Feedback  FeedbackConfig  `yaml:"feedback" json:"feedback"`
	Retention RetentionConfig `yaml:"retention" json:"retention"`
	Fetch     FetchConfig     `yaml:"fetch" json:"fetch"`
}

// MetaConfig identifies the strategy
type MetaConfig struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Timezone   string `yaml:"timezone" json:"timezone"`
}

// ScheduleConfig holds job times (exchange local)
type ScheduleConfig struct {
	TDayTime            string        `yaml:"tday_time" json:"tday_time"`               // HH:MM
	AuctionWindow       TimeWindow    `yaml:"auction_window" json:"auction_window"`     // HH:MM
	PerformanceTime     string        `yaml:"performance_time" json:"performance_time"` // HH:MM
	FeedbackWeekday     int           `yaml:"feedback_weekday" json:"feedback_weekday"` // 0=Sunday
	MaintenanceTime     string        `yaml:"maintenance_time" json:"maintenance_time"` // HH:MM
	AuctionLeadDuration time.Duration `yaml:"auction_lead" json:"auction_lead"`
}

// TimeWindow is a [Start, End) local time window
type TimeWindow struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// TDayConfig configures the T-day factor scorer
type TDayConfig struct {
	TopN                 int             `yaml:"top_n" json:"top_n"`
	ExcludedPrefixes     []string        `yaml:"excluded_prefixes" json:"excluded_prefixes"`
	Weights              TDayWeights     `yaml:"weights" json:"weights"`
	HotSector            HotSectorConfig `yaml:"hot_sector" json:"hot_sector"`
	TurnoverLookbackDays int             `yaml:"turnover_lookback_days" json:"turnover_lookback_days"`
	TurnoverMinRows      int             `yaml:"turnover_min_rows" json:"turnover_min_rows"`
	VolumeLookbackDays   int             `yaml:"volume_lookback_days" json:"volume_lookback_days"`
}

// TDayWeights are the default factor weights (points)
// 합계로 정규화하지 않음: 최대 점수 = 가중치 합
type TDayWeights struct {
	FirstLimitTime      float64 `yaml:"first_limit_time" json:"first_limit_time"`
	BuyToSellRatio      float64 `yaml:"buy_to_sell_ratio" json:"buy_to_sell_ratio"`
	OrderAmountToCircMV float64 `yaml:"order_amount_to_circ_mv" json:"order_amount_to_circ_mv"`
	TurnoverRate        float64 `yaml:"turnover_rate" json:"turnover_rate"`
	TurnoverRateTo20MA  float64 `yaml:"turnover_rate_to_20ma" json:"turnover_rate_to_20ma"`
	VolumeRatio         float64 `yaml:"volume_ratio" json:"volume_ratio"`
	MainNetAmount       float64 `yaml:"main_net_amount" json:"main_net_amount"`
	MainNetRatio        float64 `yaml:"main_net_ratio" json:"main_net_ratio"`
	MediumNetAmount     float64 `yaml:"medium_net_amount" json:"medium_net_amount"`
	IsHotSector         float64 `yaml:"is_hot_sector" json:"is_hot_sector"`
	DragonList          float64 `yaml:"dragon_list" json:"dragon_list"`
}

// Map returns weights keyed by factor id
func (w TDayWeights) Map() map[string]float64 {
	return map[string]float64{
		"first_limit_time":        w.FirstLimitTime,
		"buy_to_sell_ratio":       w.BuyToSellRatio,
		"order_amount_to_circ_mv": w.OrderAmountToCircMV,
		"turnover_rate":           w.TurnoverRate,
		"turnover_rate_to_20ma":   w.TurnoverRateTo20MA,
		"volume_ratio":            w.VolumeRatio,
		"main_net_amount":         w.MainNetAmount,
		"main_net_ratio":          w.MainNetRatio,
		"medium_net_amount":       w.MediumNetAmount,
		"is_hot_sector":           w.IsHotSector,
		"dragon_list":             w.DragonList,
	}
}

// Sum returns the maximum achievable T-day score
func (w TDayWeights) Sum() float64 {
	total := 0.0
	for _, v := range w.Map() {
		total += v
	}
	return total
}

// HotSectorConfig holds sector heat thresholds
type HotSectorConfig struct {
	MinPctChange float64 `yaml:"min_pct_change" json:"min_pct_change"`
	MinNetAmount float64 `yaml:"min_net_amount" json:"min_net_amount"` // yuan
	MaxRank      int     `yaml:"max_rank" json:"max_rank"`
	MinLimitUps  int     `yaml:"min_limit_ups" json:"min_limit_ups"`
}

// AuctionConfig configures the T+1 auction evaluator
type AuctionConfig struct {
	Weights         AuctionWeights   `yaml:"weights" json:"weights"`
	AmountFullScale float64          `yaml:"amount_full_scale" json:"amount_full_scale"` // yuan
	MaxGapPct       float64          `yaml:"max_gap_pct" json:"max_gap_pct"`
	Blend           BlendConfig      `yaml:"blend" json:"blend"`
	Decision        DecisionConfig   `yaml:"decision" json:"decision"`
	FinalCount      int              `yaml:"final_count" json:"final_count"`
	Simulated       SimulatedAuction `yaml:"simulated" json:"simulated"`
}

// AuctionWeights are the auction factor weights (points)
type AuctionWeights struct {
	OpenChangePct      float64 `yaml:"open_change_pct" json:"open_change_pct"`
	VolumeRatio        float64 `yaml:"auction_volume_ratio" json:"auction_volume_ratio"`
	TurnoverRate       float64 `yaml:"auction_turnover_rate" json:"auction_turnover_rate"`
	Amount             float64 `yaml:"auction_amount" json:"auction_amount"`
	VolumeToTDayVolume float64 `yaml:"auction_volume_to_t_volume" json:"auction_volume_to_t_volume"`
}

// Sum returns the maximum achievable auction score
func (w AuctionWeights) Sum() float64 {
	return w.OpenChangePct + w.VolumeRatio + w.TurnoverRate + w.Amount + w.VolumeToTDayVolume
}

// BlendConfig combines T-day and auction scores
type BlendConfig struct {
	TDay    float64 `yaml:"t_day" json:"t_day"`
	Auction float64 `yaml:"auction" json:"auction"`
}

// DecisionConfig maps final scores to actions and position sizes
type DecisionConfig struct {
	HighThreshold       float64 `yaml:"high_threshold" json:"high_threshold"`
	MediumThreshold     float64 `yaml:"medium_threshold" json:"medium_threshold"`
	MaxPositionPerStock float64 `yaml:"max_position_per_stock" json:"max_position_per_stock"`
	MediumFactor        float64 `yaml:"medium_factor" json:"medium_factor"`
	LowFactor           float64 `yaml:"low_factor" json:"low_factor"`
}

// SimulatedAuction is the score-neutral snapshot used outside the window
type SimulatedAuction struct {
	OpenChangePct float64 `yaml:"open_change_pct" json:"open_change_pct"`
	VolumeRatio   float64 `yaml:"volume_ratio" json:"volume_ratio"`
	Score         float64 `yaml:"score" json:"score"` // auction score assigned to a simulated snapshot
}

// RiskConfig configures the risk gate
type RiskConfig struct {
	SentimentFloor     float64 `yaml:"sentiment_floor" json:"sentiment_floor"`
	IndexCode          string  `yaml:"index_code" json:"index_code"`
	MADays             int     `yaml:"ma_days" json:"ma_days"`
	TrendTolerance     float64 `yaml:"trend_tolerance" json:"trend_tolerance"`
	MaxPosition        float64 `yaml:"max_position" json:"max_position"`
	WeakTrendRatio     float64 `yaml:"weak_trend_ratio" json:"weak_trend_ratio"`
	WeakMaxPosition    float64 `yaml:"weak_max_position" json:"weak_max_position"`
	StrongTrendRatio   float64 `yaml:"strong_trend_ratio" json:"strong_trend_ratio"`
	StrongMaxPosition  float64 `yaml:"strong_max_position" json:"strong_max_position"`
	StopLossPct        float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	TakeProfitPct      float64 `yaml:"take_profit_pct" json:"take_profit_pct"`
	BreakMAStop        bool    `yaml:"break_ma_stop" json:"break_ma_stop"`
	Mode               string  `yaml:"mode" json:"mode"` // enforce, shadow, off
	SentimentHeadlines int     `yaml:"sentiment_headlines" json:"sentiment_headlines"`
}

// TrackerConfig configures the performance tracker
type TrackerConfig struct {
	Quantity     int       `yaml:"quantity" json:"quantity"`
	BuyTime      string    `yaml:"buy_time" json:"buy_time"`
	SellTime     string    `yaml:"sell_time" json:"sell_time"`
	MinTrades    int       `yaml:"min_trades" json:"min_trades"`
	ScoreBins    []float64 `yaml:"score_bins" json:"score_bins"`
	LookbackDays int       `yaml:"lookback_days" json:"lookback_days"`

	// bootstrap outlook over the next SimulationHorizon trades; 0 runs disables it
	SimulationRuns    int `yaml:"simulation_runs" json:"simulation_runs"`
	SimulationHorizon int `yaml:"simulation_horizon" json:"simulation_horizon"`
}

// FeedbackConfig configures the feedback optimizer
type FeedbackConfig struct {
	Enabled            bool            `yaml:"enabled" json:"enabled"`
	MinSamples         int             `yaml:"min_samples" json:"min_samples"`
	MinClassRatio      float64         `yaml:"min_class_ratio" json:"min_class_ratio"`
	MinImportanceRows  int             `yaml:"min_importance_rows" json:"min_importance_rows"`
	MinWeight          float64         `yaml:"min_weight" json:"min_weight"`
	MaxWeight          float64         `yaml:"max_weight" json:"max_weight"`
	Smoothing          float64         `yaml:"smoothing" json:"smoothing"` // share of the old weight kept
	ImportanceScale    float64         `yaml:"importance_scale" json:"importance_scale"`
	SuggestScale       float64         `yaml:"suggest_scale" json:"suggest_scale"`
	TopFeatures        int             `yaml:"top_features" json:"top_features"`
	ReviewIntervalDays int             `yaml:"review_interval_days" json:"review_interval_days"`
	OptimizationCycles int             `yaml:"optimization_cycles" json:"optimization_cycles"`
	Model              ModelConfig     `yaml:"model" json:"model"`
	Discovery          DiscoveryConfig `yaml:"discovery" json:"discovery"`
}

// ModelConfig configures the importance models
type ModelConfig struct {
	Order    []string `yaml:"order" json:"order"`
	Trees    int      `yaml:"trees" json:"trees"`
	MaxDepth int      `yaml:"max_depth" json:"max_depth"`
	Rounds   int      `yaml:"rounds" json:"rounds"`
	Eta      float64  `yaml:"eta" json:"eta"`
	Seed     int64    `yaml:"seed" json:"seed"`
	TestSize float64  `yaml:"test_size" json:"test_size"`
}

// DiscoveryConfig configures new factor discovery
type DiscoveryConfig struct {
	Enabled              bool    `yaml:"enabled" json:"enabled"`
	MinRows              int     `yaml:"min_rows" json:"min_rows"`
	MaxFactors           int     `yaml:"max_factors" json:"max_factors"`
	CorrelationThreshold float64 `yaml:"correlation_threshold" json:"correlation_threshold"`
	MinImprovement       float64 `yaml:"min_improvement" json:"min_improvement"`
	TopK                 int     `yaml:"top_k" json:"top_k"`
}

// RetentionConfig configures store cleanup
type RetentionConfig struct {
	RecommendationsDays int `yaml:"recommendations_days" json:"recommendations_days"`
	TradesDays          int `yaml:"trades_days" json:"trades_days"`
	LearningDays        int `yaml:"learning_days" json:"learning_days"`
}

// FetchConfig configures the fallback fetcher
type FetchConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	ProviderTimeout time.Duration `yaml:"provider_timeout" json:"provider_timeout"`
	BreakerFailures int           `yaml:"breaker_failures" json:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" json:"breaker_cooldown"`
}

// DecisionSnapshot records the config a run was made with
type DecisionSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	StrategyID string    `json:"strategy_id"`
	RunID      string    `json:"run_id"`
	CreatedAt  time.Time `json:"created_at"`
}
