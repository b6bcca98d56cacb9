package contracts

import (
	"math"
	"time"
)

// FactorType groups factors by the data they read
type FactorType string

const (
	FactorTechnical FactorType = "technical"
	FactorMoneyflow FactorType = "moneyflow"
	FactorMarket    FactorType = "market"
	FactorAuction   FactorType = "auction"
	FactorDerived   FactorType = "derived"
)

// FactorWeight is one tunable scoring weight
// ⭐ SSOT: FeedbackOptimizer(와 초기 시드)만 변경
type FactorWeight struct {
	FactorID    string     `json:"factor_id"`
	Group       string     `json:"group"`
	Type        FactorType `json:"type"`
	Weight      float64    `json:"weight"`
	Description string     `json:"description"`
	Formula     string     `json:"formula,omitempty"`
	IsActive    bool       `json:"is_active"`
	LastUpdated time.Time  `json:"last_updated"`
}

// SessionStatus is the terminal status of a learning run
type SessionStatus string

const (
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionSkipped   SessionStatus = "skipped"
)

// LearningSession is an append-only record of one optimizer run
type LearningSession struct {
	ID            string             `json:"id"`
	Kind          string             `json:"kind"` // factor_importance, factor_discovery, self_evolution
	ModelType     string             `json:"model_type"`
	TrainingSize  int                `json:"training_size"`
	TestSize      int                `json:"test_size"`
	Metrics       map[string]float64 `json:"metrics"`
	Improvements  []WeightSuggestion `json:"improvements"`
	NewFactors    []FactorProposal   `json:"new_factors"`
	ExecutionTime time.Duration      `json:"execution_time"`
	Status        SessionStatus      `json:"status"`
	Message       string             `json:"message,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// SuggestionKind classifies a weight suggestion
type SuggestionKind string

const (
	SuggestIncrease SuggestionKind = "increase"
	SuggestDecrease SuggestionKind = "decrease"
	SuggestNew      SuggestionKind = "new"
	SuggestRemove   SuggestionKind = "remove"
)

// WeightSuggestion is one proposed change to a factor weight
type WeightSuggestion struct {
	FactorID        string         `json:"factor_id"`
	Kind            SuggestionKind `json:"kind"`
	Importance      float64        `json:"importance"`
	CurrentWeight   float64        `json:"current_weight"`
	SuggestedWeight float64        `json:"suggested_weight"`
	AppliedWeight   float64        `json:"applied_weight,omitempty"`
	Reason          string         `json:"reason"`
}

// FactorProposal is a candidate factor found by discovery
type FactorProposal struct {
	FactorID    string  `json:"factor_id"`
	Formula     string  `json:"formula"`
	Correlation float64 `json:"correlation"`
	Improvement float64 `json:"improvement"`
}

// TrainingSample is one closed recommendation joined with its outcome
type TrainingSample struct {
	RecommendationID string             `json:"recommendation_id"`
	TradeDate        time.Time          `json:"trade_date"`
	Features         map[string]float64 `json:"features"`
	Label            int                `json:"label"` // 1 win, 0 loss
	ReturnPct        float64            `json:"return_pct"`
}

// Base feature names of a training sample, in model column order
var FeatureNames = []string{
	"total_score", "t_day_score", "auction_score", "open_change_pct",
	"seal_ratio", "seal_to_mv", "turnover_rate", "pct_chg",
	"is_hot_sector", "score_ratio", "total_to_open_ratio",
}

// Features extracts the model features of a recommendation.
// Per-factor contributions from the snapshot are added under their factor ids.
func Features(r *Recommendation) map[string]float64 {
	hot := 0.0
	if r.Snapshot.IsHotSector {
		hot = 1
	}
	f := map[string]float64{
		"total_score":         r.TotalScore,
		"t_day_score":         r.TDayScore,
		"auction_score":       r.AuctionScore,
		"open_change_pct":     r.OpenChangePct,
		"seal_ratio":          r.Snapshot.SealRatio,
		"seal_to_mv":          r.Snapshot.SealToMV,
		"turnover_rate":       r.Snapshot.Attributes.TurnoverRate,
		"pct_chg":             r.Snapshot.Attributes.PctChange,
		"is_hot_sector":       hot,
		"score_ratio":         r.AuctionScore / (r.TDayScore + 0.01),
		"total_to_open_ratio": r.TotalScore / (math.Abs(r.OpenChangePct) + 1),
	}
	for id, v := range r.Snapshot.Factors {
		if _, base := f[id]; !base {
			f[id] = v
		}
	}
	return f
}
