package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimingRatio(t *testing.T) {
	tests := []struct {
		name      string
		firstTime string
		ratio     float64
		hour      int
		ok        bool
	}{
		{"open auction", "092500", 1.0, 9, true},
		{"before ten", "095959", 1.0, 9, true},
		{"ten o'clock", "103000", 0.8, 10, true},
		{"late morning", "112900", 0.6, 11, true},
		{"after lunch", "130500", 0.4, 13, true},
		{"close", "145700", 0.2, 14, true},
		{"missing", "", 0.5, -1, false},
		{"garbage", "xx1234", 0.5, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratio, hour, ok := TimingRatio(tt.firstTime)
			assert.Equal(t, tt.ratio, ratio)
			assert.Equal(t, tt.hour, hour)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestRatiosStayInUnitRange(t *testing.T) {
	inputs := []float64{-1e9, -5, -0.1, 0, 0.1, 1, 2.5, 3, 10, 1e12, math.NaN()}
	funcs := map[string]func(float64) float64{
		"seal":        SealRatioRatio,
		"seal_to_mv":  SealToMVRatio,
		"bell":        TurnoverBellRatio,
		"turnover20":  Turnover20Ratio,
		"volume":      VolumeRatioRatio,
		"main_amount": MainNetAmountRatio,
		"main_ratio":  MainNetRatioRatio,
		"medium":      MediumNetRatio,
	}
	for name, fn := range funcs {
		for _, in := range inputs {
			r := fn(in)
			assert.GreaterOrEqual(t, r, 0.0, "%s(%v)", name, in)
			assert.LessOrEqual(t, r, 1.0, "%s(%v)", name, in)
		}
	}
}

func TestCapLinear(t *testing.T) {
	assert.Equal(t, 0.0, capLinear(-3, 5))
	assert.Equal(t, 0.5, capLinear(2.5, 5))
	assert.Equal(t, 1.0, capLinear(50, 5))
	assert.Equal(t, 0.0, capLinear(1, 0))
}

func TestTurnoverBellRatio(t *testing.T) {
	assert.Equal(t, 0.8, TurnoverBellRatio(2))
	assert.Equal(t, 0.8, TurnoverBellRatio(15))
	assert.Equal(t, 0.6, TurnoverBellRatio(18))
	assert.Equal(t, 0.6, TurnoverBellRatio(1.5))
	assert.Equal(t, 0.3, TurnoverBellRatio(25))
	assert.Equal(t, 0.0, TurnoverBellRatio(0))
}

func TestMainNetAmountRatio(t *testing.T) {
	assert.Equal(t, 1.0, MainNetAmountRatio(20_000_000))
	assert.Equal(t, 0.8, MainNetAmountRatio(6_000_000))
	assert.Equal(t, 0.5, MainNetAmountRatio(1))
	assert.Equal(t, 0.0, MainNetAmountRatio(-5_000_000))
}

func TestDragonListRatio(t *testing.T) {
	assert.Equal(t, 1.0, DragonListRatio(20_000_000, 25))
	assert.InDelta(t, 0.5, DragonListRatio(10_000_000, 0), 1e-9)
	assert.InDelta(t, 0.25+0.25, DragonListRatio(-5_000_000, -10), 1e-9)
}

func TestFactorGroupsCoverWeights(t *testing.T) {
	for _, id := range []string{
		FactorFirstLimitTime, FactorBuyToSellRatio, FactorOrderAmountToCircMV,
		FactorTurnoverRate, FactorTurnoverRateTo20MA, FactorVolumeRatio,
		FactorMainNetAmount, FactorMainNetRatio, FactorMediumNetAmount,
		FactorIsHotSector, FactorDragonList,
	} {
		g, ok := FactorGroups[id]
		assert.True(t, ok, id)
		assert.Contains(t, Groups, g)
	}
}
