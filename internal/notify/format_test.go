package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/limitup/internal/auction"
	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/feedback"
	"github.com/wonny/limitup/internal/performance"
)

var day = time.Date(2024, 2, 22, 0, 0, 0, 0, time.UTC)

func condition() *contracts.MarketCondition {
	return &contracts.MarketCondition{
		Date:           day,
		MarketFilter:   true,
		MaxPosition:    0.15,
		StopLossPct:    -6,
		SentimentScore: 62,
		Trend:          contracts.TrendSnapshot{IndexCode: "000001.SH", Close: 3010, MA: 2990, IsAbove: true},
		Leverage: &contracts.LeverageSnapshot{
			FinancingBalance:   1.52e12,
			ShortBalance:       8.2e9,
			FinancingChangePct: -2.5,
			ShortChangePct:     1.2,
			BuyRepayRatio:      0.75,
			HasPrevious:        true,
			RiskScore:          4,
			RiskFactors:        []string{"financing balance down >2%", "buy/repay < 0.8"},
		},
		RiskScore:  4,
		RiskLevel:  contracts.RiskMedium,
		Condition:  "normal",
		Suggestion: "control position size, trade cautiously",
	}
}

func rec() *contracts.Recommendation {
	return &contracts.Recommendation{
		Symbol:    "600100.SH",
		Name:      "Foo Tech",
		TDayScore: 80,
		T1Date:    day,
		Snapshot: contracts.RecommendationSnapshot{
			SealRatio:   1.234,
			SealToMV:    0.00042,
			IsHotSector: true,
			Attributes:  contracts.CandidateAttributes{PctChange: 10.01, FirstLimitTime: "093512", TurnoverRate: 8.5},
		},
	}
}

func TestRecommendations_Message(t *testing.T) {
	out := &auction.Outcome{Date: day, Mode: auction.ModeLive, State: auction.StateEvaluated}
	out.Window.Start = day.Add(9*time.Hour + 25*time.Minute)
	out.Window.End = day.Add(9*time.Hour + 29*time.Minute)

	ev := auction.Evaluation{
		Recommendation: rec(),
		Snapshot: &contracts.AuctionSnapshot{
			OpenChangePct: 3.2, VolumeRatio: 2.1, Amount: 15_200_000,
			Tag: contracts.TagLive, Source: "tushare.rt_auction",
		},
		AuctionScore: 97.5,
		FinalScore:   85.24,
		Decision: contracts.Decision{
			Action: contracts.ActionBuy, Confidence: contracts.ConfidenceHigh, Position: 0.2,
			Reasons: []string{"strong open"},
		},
	}

	m := Recommendations(out, []auction.Evaluation{ev}, condition())
	assert.Equal(t, KindRecommendation, m.Kind)
	assert.Equal(t, "📊 Limit-up picks - 2024-02-22", m.Title)

	for _, want := range []string{
		"Market: normal | Risk: medium (4/10)",
		"Index 000001.SH: 3010.00 vs MA 2990.00 (above)",
		"Financing balance: 1.52 trillion | Short balance: 8.20 bn",
		"Financing change: -2.50% | Short change: +1.20%",
		"Risk factors: financing balance down >2%, buy/repay < 0.8",
		"🎯 Picks (1)",
		"#1 Foo Tech (600100.SH)",
		"Score: 85.2 (T-day 80.0, auction 97.5)",
		"Action: buy | Position: 20.0% | Confidence: high",
		"open change: +3.20%",
		"amount: 15.20M",
		"first limit: 09:35:12",
		"seal/float mv: 4.20bp",
		"hot sector: yes",
		"Data source: live auction via tushare.rt_auction",
		"Set a stop loss (-6%)",
		"⏰ Data: live auction (09:25-09:29)",
	} {
		assert.Contains(t, m.Body, want)
	}
}

func TestRecommendations_Empty(t *testing.T) {
	m := Recommendations(&auction.Outcome{Date: day, Mode: auction.ModeHistorical}, nil, nil)
	assert.Contains(t, m.Body, "Market: unknown")
	assert.Contains(t, m.Body, "⚠️ No picks today")
	assert.Contains(t, m.Body, "historical analysis")
}

func TestBlocked_Notice(t *testing.T) {
	out := &auction.Outcome{
		Date:    day,
		State:   auction.StateBlocked,
		Reason:  "no live auction data",
		Dropped: []auction.Drop{{Symbol: "600100.SH", Reason: "auction unavailable"}},
	}
	out.Window.Start = day.Add(9*time.Hour + 25*time.Minute)
	out.Window.End = day.Add(9*time.Hour + 29*time.Minute)

	m := Blocked(out)
	assert.Equal(t, KindBlocked, m.Kind)
	assert.Equal(t, "⚠️ Cannot select - 2024-02-22", m.Title)
	assert.Contains(t, m.Body, "(09:25-09:29)")
	assert.Contains(t, m.Body, "Reason: no live auction data")
	assert.Contains(t, m.Body, "600100.SH: auction unavailable")
}

func TestTDay_Message(t *testing.T) {
	cond := condition()
	cond.MarketFilter = false

	m := TDay(day.AddDate(0, 0, -1), []*contracts.Recommendation{rec()}, cond)
	assert.Equal(t, "📝 T-day scoring - 2024-02-21", m.Title)
	assert.Contains(t, m.Body, "T-day shortlist (1), auction check on 2024-02-22")
	assert.Contains(t, m.Body, "T-day score: 80.0")
	assert.Contains(t, m.Body, "Market filter closed")

	empty := TDay(day, nil, nil)
	assert.Contains(t, empty.Body, "No limit-up candidates")
}

func TestPerformance_Message(t *testing.T) {
	rep := &performance.Report{
		Range:   contracts.DateRange{From: day.AddDate(0, 0, -30), To: day},
		Summary: &contracts.PerformanceSummary{Total: 5, Wins: 3, Losses: 1, Pending: 1},
		Stats: &performance.Stats{
			Trades: 4, Wins: 3, Losses: 1, WinRatePct: 75, AvgReturnPct: 2.5,
			ProfitFactor: 2.5, MaxDrawdown: 5, Assessment: "excellent",
			ByScore: []performance.GroupStats{{Key: "85-100", Trades: 2, WinRatePct: 100, AvgReturnPct: 4}, {Key: "<50"}},
		},
	}

	m := Performance(rep)
	assert.Contains(t, m.Body, "Period: 2024-01-23 ~ 2024-02-22")
	assert.Contains(t, m.Body, "Positions: 5 (closed 4, pending 1)")
	assert.Contains(t, m.Body, "Win rate: 75.0%\n")
	assert.Contains(t, m.Body, "Profit factor: 2.50")
	assert.Contains(t, m.Body, "85-100: 2 trades, win 100.0%, avg +4.00%")
	assert.NotContains(t, m.Body, "<50:")
	assert.Contains(t, m.Body, "Assessment: excellent")

	rep.Stats.CI = &performance.WinRateCI{Level: 0.95, LowerPct: 32.6, UpperPct: 100}
	rep.Stats.NoLosses = true
	m = Performance(rep)
	assert.Contains(t, m.Body, "Win rate: 75.0% (95% CI 32.6% ~ 100.0%)")
	assert.Contains(t, m.Body, "no losing trades")

	none := Performance(&performance.Report{Stats: &performance.Stats{}})
	assert.Contains(t, none.Body, "No closed trades yet")
}

func TestEvolution_Message(t *testing.T) {
	due := day.AddDate(0, 0, 30)
	m := Evolution(&feedback.EvolutionResult{Throttled: true, NextDue: due})
	assert.Contains(t, m.Body, "next review due 2024-03-23")

	m = Evolution(&feedback.EvolutionResult{Session: &contracts.LearningSession{
		Status:       contracts.SessionCompleted,
		ModelType:    "random_forest",
		TrainingSize: 96,
		TestSize:     24,
		Improvements: []contracts.WeightSuggestion{
			{FactorID: "first_limit_time", Kind: contracts.SuggestDecrease, CurrentWeight: 30, AppliedWeight: 21.6},
			{FactorID: "seal_ratio", Kind: contracts.SuggestNew},
		},
		NewFactors: []contracts.FactorProposal{{FactorID: "a_minus_b", Formula: "a - b", Correlation: 0.8123}},
	}})
	assert.Contains(t, m.Body, "Model: random_forest | Samples: 120")
	assert.Contains(t, m.Body, "first_limit_time: 30.00 -> 21.60 (decrease)")
	assert.NotContains(t, m.Body, "seal_ratio:")
	assert.Contains(t, m.Body, "new factor a_minus_b: a - b (|r| 0.812)")
}
