package performance

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// tradingDaysPerYear annualizes the per-trade Sharpe-like ratio
const tradingDaysPerYear = 252

// Outcome is one closed position fed to the portfolio statistics
type Outcome struct {
	RecommendationID string    `json:"recommendation_id"`
	Symbol           string    `json:"symbol"`
	Score            float64   `json:"score"`
	BuyDate          time.Time `json:"buy_date"`
	ReturnPct        float64   `json:"return_pct"`
}

// Stats is the portfolio-level report over closed positions.
// Percent fields are in percent units (5 = 5%).
type Stats struct {
	Trades        int     `json:"trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRatePct    float64 `json:"win_rate_pct"`
	AvgReturnPct  float64 `json:"avg_return_pct"`
	MedianPct     float64 `json:"median_return_pct"`
	StdReturnPct  float64 `json:"std_return_pct"`
	MaxReturnPct  float64 `json:"max_return_pct"`
	MinReturnPct  float64 `json:"min_return_pct"`
	SharpeLike    float64 `json:"sharpe_like"`
	MaxDrawdown   float64 `json:"max_drawdown_pct"` // compounded, positive magnitude
	ProfitFactor  float64 `json:"profit_factor"`    // 0 when there is no losing trade
	NoLosses      bool    `json:"no_losses"`
	VaR95         float64 `json:"var_95_pct"`
	CVaR95        float64 `json:"cvar_95_pct"`
	Assessment    string  `json:"assessment"`
	DrawdownAlert bool    `json:"drawdown_alert"`

	CI       *WinRateCI   `json:"confidence_interval,omitempty"`
	MinCI    int          `json:"min_trades_for_ci"`
	BySymbol []GroupStats `json:"by_symbol"`
	ByScore  []GroupStats `json:"by_score"`
}

// WinRateCI is a normal-approximation interval on the win rate (percent)
type WinRateCI struct {
	Level    float64 `json:"level"`
	LowerPct float64 `json:"lower_pct"`
	UpperPct float64 `json:"upper_pct"`
}

// GroupStats summarizes one symbol or score bin
type GroupStats struct {
	Key          string  `json:"key"`
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	WinRatePct   float64 `json:"win_rate_pct"`
	AvgReturnPct float64 `json:"avg_return_pct"`
	StdReturnPct float64 `json:"std_return_pct"`
}

// StatsOptions tunes Compute
type StatsOptions struct {
	ScoreBins []float64 // edges, ascending
	MinTrades int       // CI is reported only at or above this count
	CILevel   float64   // default 0.95
}

// Compute builds portfolio statistics from closed outcomes.
// Outcomes are ordered by buy date for the compounded drawdown.
func Compute(outcomes []Outcome, opts StatsOptions) *Stats {
	if opts.CILevel <= 0 || opts.CILevel >= 1 {
		opts.CILevel = 0.95
	}
	s := &Stats{MinCI: opts.MinTrades, BySymbol: []GroupStats{}, ByScore: []GroupStats{}}
	if len(outcomes) == 0 {
		s.Assessment = assess(0, 0)
		return s
	}

	ordered := append([]Outcome(nil), outcomes...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].BuyDate.Equal(ordered[j].BuyDate) {
			return ordered[i].BuyDate.Before(ordered[j].BuyDate)
		}
		return ordered[i].RecommendationID < ordered[j].RecommendationID
	})

	returns := make([]float64, len(ordered))
	profit, loss := 0.0, 0.0
	for i, o := range ordered {
		returns[i] = o.ReturnPct
		if o.ReturnPct > 0 {
			s.Wins++
			profit += o.ReturnPct
		} else {
			s.Losses++
			loss += -o.ReturnPct
		}
	}

	// ===== 1. Return distribution =====
	s.Trades = len(returns)
	s.WinRatePct = float64(s.Wins) / float64(s.Trades) * 100
	s.AvgReturnPct = stat.Mean(returns, nil)
	s.MedianPct = median(returns)
	if s.Trades > 1 {
		s.StdReturnPct = stat.StdDev(returns, nil)
	}
	s.MaxReturnPct, s.MinReturnPct = extremes(returns)

	// ===== 2. Risk-adjusted =====
	if s.StdReturnPct > 0 {
		s.SharpeLike = s.AvgReturnPct * math.Sqrt(tradingDaysPerYear) / (s.StdReturnPct * 100)
	}
	s.MaxDrawdown = CompoundedDrawdown(returns)
	if loss > 0 {
		s.ProfitFactor = profit / loss
	} else {
		s.NoLosses = true
	}
	v := HistoricalVaR(returns, 0.95)
	s.VaR95, s.CVaR95 = v.VaR, v.CVaR

	// ===== 3. Confidence interval =====
	if opts.MinTrades > 0 && s.Trades >= opts.MinTrades {
		s.CI = winRateCI(s.Wins, s.Trades, opts.CILevel)
	}

	// ===== 4. Breakdowns =====
	s.BySymbol = groupBy(ordered, func(o Outcome) string { return o.Symbol })
	if len(opts.ScoreBins) >= 2 {
		labels := binLabels(opts.ScoreBins)
		byScore := groupBy(ordered, func(o Outcome) string { return labels[scoreBin(opts.ScoreBins, o.Score)] })
		rank := make(map[string]int, len(labels))
		for i, l := range labels {
			rank[l] = i
		}
		sort.SliceStable(byScore, func(i, j int) bool { return rank[byScore[i].Key] < rank[byScore[j].Key] })
		s.ByScore = byScore
	}

	s.Assessment = assess(s.WinRatePct, s.Trades)
	s.DrawdownAlert = s.MaxDrawdown > 20
	return s
}

// CompoundedDrawdown is the worst peak-to-trough fall of the compounded equity curve, in percent
func CompoundedDrawdown(returnsPct []float64) float64 {
	equity, peak, worst := 1.0, 1.0, 0.0
	for _, r := range returnsPct {
		equity *= 1 + r/100
		if equity > peak {
			peak = equity
		}
		if dd := (peak - equity) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}

// PathDrawdown is the worst peak-to-close fall over a close series, in percent
func PathDrawdown(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	peak, worst := closes[0], 0.0
	for _, c := range closes[1:] {
		if c > peak {
			peak = c
			continue
		}
		if peak > 0 {
			if dd := (peak - c) / peak * 100; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

func winRateCI(wins, n int, level float64) *WinRateCI {
	p := float64(wins) / float64(n)
	z := distuv.UnitNormal.Quantile((1 + level) / 2)
	se := math.Sqrt(p * (1 - p) / float64(n))
	return &WinRateCI{
		Level:    level,
		LowerPct: math.Max(0, (p-z*se)*100),
		UpperPct: math.Min(100, (p+z*se)*100),
	}
}

func groupBy(outcomes []Outcome, key func(Outcome) string) []GroupStats {
	buckets := make(map[string][]float64)
	var order []string
	for _, o := range outcomes {
		k := key(o)
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], o.ReturnPct)
	}
	sort.Strings(order)

	out := make([]GroupStats, 0, len(order))
	for _, k := range order {
		rs := buckets[k]
		g := GroupStats{Key: k, Trades: len(rs), AvgReturnPct: stat.Mean(rs, nil)}
		for _, r := range rs {
			if r > 0 {
				g.Wins++
			}
		}
		g.WinRatePct = float64(g.Wins) / float64(g.Trades) * 100
		if len(rs) > 1 {
			g.StdReturnPct = stat.StdDev(rs, nil)
		}
		out = append(out, g)
	}
	return out
}

// binLabels names the right-closed intervals of edges: "<50", "50-70", ..., ">100"
func binLabels(edges []float64) []string {
	n := len(edges) - 1
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		switch {
		case i == 0:
			labels[i] = fmt.Sprintf("<%g", edges[1])
		case i == n-1:
			labels[i] = fmt.Sprintf(">%g", edges[i])
		default:
			labels[i] = fmt.Sprintf("%g-%g", edges[i], edges[i+1])
		}
	}
	return labels
}

// scoreBin returns the (lo, hi] interval index; out-of-range scores go to the edge bins
func scoreBin(edges []float64, score float64) int {
	for i := 1; i < len(edges); i++ {
		if score <= edges[i] {
			return i - 1
		}
	}
	return len(edges) - 2
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func extremes(values []float64) (max, min float64) {
	max, min = math.Inf(-1), math.Inf(1)
	for _, v := range values {
		max = math.Max(max, v)
		min = math.Min(min, v)
	}
	return max, min
}

func assess(winRatePct float64, trades int) string {
	switch {
	case trades == 0:
		return "no closed trades"
	case winRatePct > 60:
		return "excellent, keep the current weights"
	case winRatePct > 50:
		return "good, room for optimization"
	case winRatePct > 40:
		return "average, optimization recommended"
	default:
		return "poor, major adjustment needed"
	}
}
