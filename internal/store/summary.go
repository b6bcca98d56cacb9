package store

import (
	"math"

	"github.com/wonny/limitup/internal/contracts"
)

// Summarize aggregates performance records; pending rows only count toward Pending.
// ProfitFactor is 0 when there are no losing trades.
func Summarize(records []*contracts.PerformanceRecord, r contracts.DateRange) *contracts.PerformanceSummary {
	sum := &contracts.PerformanceSummary{From: r.From, To: r.To}
	closed := 0
	total := 0.0
	sum.MaxReturn = math.Inf(-1)
	sum.MinReturn = math.Inf(1)

	for _, p := range records {
		sum.Total++
		if !p.IsClosed() {
			sum.Pending++
			continue
		}
		closed++
		total += p.ReturnPct
		sum.MaxReturn = math.Max(sum.MaxReturn, p.ReturnPct)
		sum.MinReturn = math.Min(sum.MinReturn, p.ReturnPct)
		if p.WinLoss == contracts.Win {
			sum.Wins++
			sum.GrossProfit += p.ReturnPct
		} else {
			sum.Losses++
			sum.GrossLoss += -p.ReturnPct
		}
	}

	if closed == 0 {
		sum.MaxReturn, sum.MinReturn = 0, 0
		return sum
	}
	sum.AvgReturn = total / float64(closed)
	sum.WinRate = float64(sum.Wins) / float64(closed)
	if sum.GrossLoss > 0 {
		sum.ProfitFactor = sum.GrossProfit / sum.GrossLoss
	}
	return sum
}
