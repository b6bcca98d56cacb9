package performance

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outcomes(returns ...float64) []Outcome {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]Outcome, len(returns))
	for i, r := range returns {
		out[i] = Outcome{RecommendationID: string(rune('a' + i)), Symbol: "600100.SH", Score: 75, BuyDate: base.AddDate(0, 0, i), ReturnPct: r}
	}
	return out
}

func TestCompute_Basics(t *testing.T) {
	s := Compute(outcomes(10, -5, 4, -1), StatsOptions{ScoreBins: []float64{0, 50, 70, 85, 100, 200}, MinTrades: 30})

	assert.Equal(t, 4, s.Trades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 2, s.Losses)
	assert.InDelta(t, 50, s.WinRatePct, 1e-9)
	assert.InDelta(t, 2, s.AvgReturnPct, 1e-9)
	assert.InDelta(t, 1.5, s.MedianPct, 1e-9)
	assert.InDelta(t, 10, s.MaxReturnPct, 1e-9)
	assert.InDelta(t, -5, s.MinReturnPct, 1e-9)
	assert.InDelta(t, 14.0/6.0, s.ProfitFactor, 1e-9)
	assert.False(t, s.NoLosses)

	// 표본 표준편차
	std := math.Sqrt((64 + 49 + 4 + 9) / 3.0)
	assert.InDelta(t, std, s.StdReturnPct, 1e-9)
	assert.InDelta(t, 2*math.Sqrt(252)/(std*100), s.SharpeLike, 1e-9)

	// 1.10 -> 1.045 -> 1.0868 -> 1.0759: worst fall is the -5% step
	assert.InDelta(t, 5, s.MaxDrawdown, 1e-9)
	assert.Nil(t, s.CI)
	require.Len(t, s.ByScore, 1)
	assert.Equal(t, "70-85", s.ByScore[0].Key)
	assert.Equal(t, "average, optimization recommended", s.Assessment)
}

func TestCompute_Empty(t *testing.T) {
	s := Compute(nil, StatsOptions{})
	assert.Zero(t, s.Trades)
	assert.Empty(t, s.BySymbol)
	assert.Equal(t, "no closed trades", s.Assessment)
}

func TestCompute_NoLosses(t *testing.T) {
	s := Compute(outcomes(1, 2), StatsOptions{})
	assert.True(t, s.NoLosses)
	assert.Zero(t, s.ProfitFactor)
	assert.Zero(t, s.MaxDrawdown)
}

func TestCompute_ConfidenceInterval(t *testing.T) {
	rs := make([]float64, 40)
	for i := range rs {
		if i < 24 {
			rs[i] = 2
		} else {
			rs[i] = -1
		}
	}
	s := Compute(outcomes(rs...), StatsOptions{MinTrades: 30})
	require.NotNil(t, s.CI)

	se := math.Sqrt(0.6 * 0.4 / 40)
	assert.InDelta(t, (0.6-1.959964*se)*100, s.CI.LowerPct, 1e-3)
	assert.InDelta(t, (0.6+1.959964*se)*100, s.CI.UpperPct, 1e-3)
	assert.Equal(t, 0.95, s.CI.Level)
}

func TestScoreBins(t *testing.T) {
	edges := []float64{0, 50, 70, 85, 100, 200}
	assert.Equal(t, []string{"<50", "50-70", "70-85", "85-100", ">100"}, binLabels(edges))

	tests := []struct {
		score float64
		want  int
	}{
		{-3, 0}, {0, 0}, {50, 0}, {50.1, 1}, {70, 1}, {85, 2}, {99, 3}, {150, 4}, {250, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scoreBin(edges, tt.score), "score %v", tt.score)
	}
}

func TestPathDrawdown(t *testing.T) {
	assert.Zero(t, PathDrawdown([]float64{10}))
	assert.Zero(t, PathDrawdown([]float64{10, 11, 12}))
	assert.InDelta(t, 20, PathDrawdown([]float64{10, 12, 9.6, 11}), 1e-9)
}

func TestHistoricalVaR(t *testing.T) {
	rs := []float64{-8, -4, -2, 1, 2, 3, 3, 4, 5, 6, 7, 8, 9, 10, 10, 11, 12, 13, 14, 15}
	v := HistoricalVaR(rs, 0.95)
	// floor(0.05*20)=1 -> sorted[1] = -4
	assert.InDelta(t, 4, v.VaR, 1e-9)
	assert.InDelta(t, 6, v.CVaR, 1e-9)

	assert.Zero(t, HistoricalVaR([]float64{1, 2}, 0.95).VaR)
	assert.Zero(t, HistoricalVaR(nil, 0.95).CVaR)
}
