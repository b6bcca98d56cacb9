package performance

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ErrTooFewTrades is returned when the sample is too small to bootstrap
var ErrTooFewTrades = errors.New("too few closed trades to simulate")

// outlookPercentiles are reported in Outlook.Percentiles
var outlookPercentiles = []int{5, 25, 50, 75, 95}

// SimulationConfig drives the bootstrap outlook
// ⭐ SSOT: 재현성을 위해 Seed를 명시적으로 기록 (0=랜덤)
type SimulationConfig struct {
	Runs       int   `json:"runs"`        // 시뮬레이션 횟수
	Horizon    int   `json:"horizon"`     // 다음 N 거래 누적
	MinSamples int   `json:"min_samples"` // fail-closed: 미만이면 실패
	Seed       int64 `json:"seed"`
}

// Outlook is the simulated distribution of the compounded return over the next Horizon trades.
// Percent units; VaR/CVaR are losses as positive numbers.
type Outlook struct {
	Config      SimulationConfig `json:"config"`
	Samples     int              `json:"samples"`
	MeanPct     float64          `json:"mean_pct"`
	StdPct      float64          `json:"std_pct"`
	ProbLossPct float64          `json:"prob_loss_pct"`
	VaR95       float64          `json:"var_95_pct"`
	CVaR95      float64          `json:"cvar_95_pct"`
	Percentiles map[int]float64  `json:"percentiles"`
}

// Simulator resamples closed-trade returns with replacement.
// Not safe for concurrent use; create one per report.
type Simulator struct {
	cfg SimulationConfig
	rng *rand.Rand
}

// NewSimulator creates a simulator
func NewSimulator(cfg SimulationConfig) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 1
	}
	return &Simulator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Bootstrap simulates Runs paths of Horizon trades drawn from returnsPct
func (s *Simulator) Bootstrap(returnsPct []float64) (*Outlook, error) {
	if len(returnsPct) < s.cfg.MinSamples || len(returnsPct) == 0 {
		return nil, ErrTooFewTrades
	}
	if s.cfg.Runs <= 0 || s.cfg.Horizon <= 0 {
		return nil, errors.New("simulation runs and horizon must be positive")
	}

	paths := make([]float64, s.cfg.Runs)
	losses := 0
	for i := range paths {
		// 보유 기간 동안의 누적 수익률
		cum := 1.0
		for d := 0; d < s.cfg.Horizon; d++ {
			cum *= 1 + returnsPct[s.rng.Intn(len(returnsPct))]/100
		}
		paths[i] = (cum - 1) * 100
		if paths[i] < 0 {
			losses++
		}
	}

	std := 0.0
	if len(paths) > 1 {
		std = stat.StdDev(paths, nil)
	}

	sorted := append([]float64(nil), paths...)
	sort.Float64s(sorted)

	v := HistoricalVaR(sorted, 0.95)
	out := &Outlook{
		Config:      s.cfg,
		Samples:     len(returnsPct),
		MeanPct:     round2(stat.Mean(paths, nil)),
		StdPct:      round2(std),
		ProbLossPct: round2(float64(losses) / float64(len(paths)) * 100),
		VaR95:       round2(v.VaR),
		CVaR95:      round2(v.CVaR),
		Percentiles: make(map[int]float64, len(outlookPercentiles)),
	}
	for _, p := range outlookPercentiles {
		out.Percentiles[p] = round2(stat.Quantile(float64(p)/100, stat.Empirical, sorted, nil))
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
