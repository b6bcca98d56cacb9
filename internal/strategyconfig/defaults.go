package strategyconfig

import "time"

// Default returns the built-in strategy configuration.
// config/strategy/limitup.yaml mirrors these values.
func Default() *Config {
	return &Config{
		Meta: MetaConfig{
			StrategyID: "limitup_t01",
			Timezone:   "Asia/Shanghai",
		},
		Schedule: ScheduleConfig{
			TDayTime:            "20:00",
			AuctionWindow:       TimeWindow{Start: "09:25", End: "09:29"},
			PerformanceTime:     "16:30",
			FeedbackWeekday:     6,
			MaintenanceTime:     "02:00",
			AuctionLeadDuration: 30 * time.Second,
		},
		TDay: TDayConfig{
			TopN:             5,
			ExcludedPrefixes: []string{"8", "4", "92", "688"},
			Weights: TDayWeights{
				FirstLimitTime:      30,
				BuyToSellRatio:      10,
				OrderAmountToCircMV: 15,
				TurnoverRate:        5,
				TurnoverRateTo20MA:  10,
				VolumeRatio:         5,
				MainNetAmount:       5,
				MainNetRatio:        5,
				MediumNetAmount:     5,
				IsHotSector:         10,
				DragonList:          10,
			},
			HotSector: HotSectorConfig{
				MinPctChange: 3,
				MinNetAmount: 50_000_000,
				MaxRank:      10,
				MinLimitUps:  3,
			},
			TurnoverLookbackDays: 60,
			TurnoverMinRows:      20,
			VolumeLookbackDays:   10,
		},
		Auction: AuctionConfig{
			Weights: AuctionWeights{
				OpenChangePct:      35,
				VolumeRatio:        20,
				TurnoverRate:       0,
				Amount:             20,
				VolumeToTDayVolume: 25,
			},
			AmountFullScale: 50_000_000,
			MaxGapPct:       30,
			Blend:           BlendConfig{TDay: 0.7, Auction: 0.3},
			Decision: DecisionConfig{
				HighThreshold:       80,
				MediumThreshold:     60,
				MaxPositionPerStock: 0.2,
				MediumFactor:        0.7,
				LowFactor:           0.3,
			},
			FinalCount: 3,
			Simulated:  SimulatedAuction{OpenChangePct: 2.5, VolumeRatio: 1.8, Score: 60},
		},
		Risk: RiskConfig{
			SentimentFloor:     40,
			IndexCode:          "000001.SH",
			MADays:             5,
			TrendTolerance:     0.995,
			MaxPosition:        0.15,
			WeakTrendRatio:     1.0,
			WeakMaxPosition:    0.10,
			StrongTrendRatio:   1.05,
			StrongMaxPosition:  0.18,
			StopLossPct:        -6,
			TakeProfitPct:      12,
			BreakMAStop:        true,
			Mode:               "enforce",
			SentimentHeadlines: 30,
		},
		Tracker: TrackerConfig{
			Quantity:     1000,
			BuyTime:      "09:30:00",
			SellTime:     "15:00:00",
			MinTrades:    30,
			ScoreBins:    []float64{0, 50, 70, 85, 100, 200},
			LookbackDays: 30,

			SimulationRuns:    2000,
			SimulationHorizon: 20,
		},
		Feedback: FeedbackConfig{
			Enabled:            true,
			MinSamples:         100,
			MinClassRatio:      0.3,
			MinImportanceRows:  20,
			MinWeight:          0.1,
			MaxWeight:          50,
			Smoothing:          0.7,
			ImportanceScale:    150,
			SuggestScale:       100,
			TopFeatures:        10,
			ReviewIntervalDays: 30,
			OptimizationCycles: 3,
			Model: ModelConfig{
				Order:    []string{ModelRandomForest, ModelGradientBoosting, ModelCorrelation},
				Trees:    100,
				MaxDepth: 5,
				Rounds:   50,
				Eta:      0.1,
				Seed:     42,
				TestSize: 0.2,
			},
			Discovery: DiscoveryConfig{
				Enabled:              true,
				MinRows:              50,
				MaxFactors:           50,
				CorrelationThreshold: 0.8,
				MinImprovement:       0.01,
				TopK:                 10,
			},
		},
		Retention: RetentionConfig{
			RecommendationsDays: 365,
			TradesDays:          730,
			LearningDays:        730,
		},
		Fetch: FetchConfig{
			CacheTTL:        5 * time.Minute,
			ProviderTimeout: 10 * time.Second,
			BreakerFailures: 5,
			BreakerCooldown: time.Minute,
		},
	}
}

// Importance model names, in default preference order
const (
	ModelRandomForest     = "random_forest"
	ModelGradientBoosting = "gradient_boosting"
	ModelCorrelation      = "correlation"
)
