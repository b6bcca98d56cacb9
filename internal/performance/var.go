package performance

import (
	"math"
	"sort"
)

// VaRResult holds historical Value-at-Risk figures in percent (loss as positive)
type VaRResult struct {
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
}

// HistoricalVaR 과거 수익률 기반 VaR (Historical Simulation)
// returnsPct: 거래별 수익률(%), 손실은 음수
func HistoricalVaR(returnsPct []float64, confidence float64) VaRResult {
	res := VaRResult{Confidence: confidence}
	if len(returnsPct) == 0 {
		return res
	}

	sorted := append([]float64(nil), returnsPct...)
	sort.Float64s(sorted)

	// (1-confidence) 백분위수
	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if sorted[idx] < 0 {
		res.VaR = -sorted[idx]
	}

	// CVaR: VaR 이하 tail 평균
	sum := 0.0
	for _, r := range sorted[:idx+1] {
		sum += r
	}
	if avg := sum / float64(idx+1); avg < 0 {
		res.CVaR = -avg
	}
	return res
}
