package contracts

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"
)

// DateLayout is the exchange date format used in ids and provider calls
const DateLayout = "20060102"

// RecommendationStatus tracks where a recommendation is in its lifecycle
type RecommendationStatus string

const (
	StatusScored    RecommendationStatus = "scored"    // T-day pass done
	StatusEvaluated RecommendationStatus = "evaluated" // T+1 auction pass done
	StatusBlocked   RecommendationStatus = "blocked"   // auction window could not produce a decision
	StatusNoTrade   RecommendationStatus = "no_trade"  // risk gate vetoed
)

// Action is the actionable part of a decision
type Action string

const (
	ActionBuy     Action = "buy"
	ActionWatch   Action = "watch"
	ActionNoTrade Action = "no_trade"
)

// Confidence buckets the final score
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Decision is the T+1 outcome for one recommendation
type Decision struct {
	Action     Action     `json:"action"`
	Confidence Confidence `json:"confidence"`
	Position   float64    `json:"position"` // fraction of capital, 0..1
	Reasons    []string   `json:"reasons"`
}

// Recommendation is the persisted unit handed from T-day to T+1
// ⭐ SSOT: 추천 레코드 (id는 (거래일, 종목)에서 결정적으로 생성)
type Recommendation struct {
	ID            string                 `json:"id"`
	TradeDate     time.Time              `json:"trade_date"`
	T1Date        time.Time              `json:"t1_date"`
	Symbol        string                 `json:"symbol"`
	Name          string                 `json:"name"`
	TotalScore    float64                `json:"total_score"`
	TDayScore     float64                `json:"t_day_score"`
	AuctionScore  float64                `json:"auction_score"`
	OpenChangePct float64                `json:"open_change_pct"`
	Breakdown     map[string]float64     `json:"breakdown"`
	Decision      *Decision              `json:"decision,omitempty"`
	Snapshot      RecommendationSnapshot `json:"snapshot"`
	Status        RecommendationStatus   `json:"status"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// RecommendationSnapshot is the audit payload stored with each recommendation
type RecommendationSnapshot struct {
	Attributes  CandidateAttributes `json:"attributes"`
	SealRatio   float64             `json:"seal_ratio"`
	SealToMV    float64             `json:"seal_to_mv"`
	IsHotSector bool                `json:"is_hot_sector"`
	Factors     map[string]float64  `json:"factors,omitempty"`
	Inputs      map[string]float64  `json:"inputs,omitempty"`
	Auction     *AuctionSnapshot    `json:"auction,omitempty"`
	Market      *MarketCondition    `json:"market,omitempty"`
	ConfigHash  string              `json:"config_hash,omitempty"`
	Notes       []string            `json:"notes,omitempty"`
}

// RecommendationID derives the stable id from (tradeDate, symbol)
func RecommendationID(tradeDate time.Time, symbol string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%s", tradeDate.Format(DateLayout), symbol)))
	return hex.EncodeToString(sum[:])[:16]
}

// NewRecommendation builds a scored recommendation from a T-day candidate
func NewRecommendation(sc ScoredCandidate, t1Date time.Time, configHash string, now time.Time) *Recommendation {
	attrs := sc.Attributes
	return &Recommendation{
		ID:         RecommendationID(sc.AsOfDate, sc.Symbol),
		TradeDate:  sc.AsOfDate,
		T1Date:     t1Date,
		Symbol:     sc.Symbol,
		Name:       sc.Name,
		TotalScore: sc.Score,
		TDayScore:  sc.Score,
		Breakdown:  copyMap(sc.Breakdown.Groups),
		Snapshot: RecommendationSnapshot{
			Attributes:  attrs,
			SealRatio:   attrs.SealRatio(),
			SealToMV:    attrs.SealToMV(),
			IsHotSector: sc.HotSector,
			Factors:     copyMap(sc.Breakdown.Factors),
			Inputs:      copyMap(sc.Breakdown.Inputs),
			ConfigHash:  configHash,
			Notes:       append([]string(nil), sc.Breakdown.Notes...),
		},
		Status:    StatusScored,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActionable reports whether the recommendation ended as a buy
func (r *Recommendation) IsActionable() bool {
	return r.Decision != nil && r.Decision.Action == ActionBuy
}

func copyMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
