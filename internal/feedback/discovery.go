package feedback

import (
	"fmt"
	"sort"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/strategyconfig"
)

// ratioEpsilon keeps a/(b+ε) finite
const ratioEpsilon = 0.01

// Discover builds ratio and difference combinations of the base features and
// keeps those whose |r| with the win label beats cfg.MinImprovement.
// Candidates nearly identical to a parent (|r| > CorrelationThreshold) are dropped.
func Discover(d *Dataset, cfg strategyconfig.DiscoveryConfig) []contracts.FactorProposal {
	if d.Len() < cfg.MinRows {
		return nil
	}

	base := make([]int, 0, len(contracts.FeatureNames))
	for j, col := range d.Columns {
		for _, name := range contracts.FeatureNames {
			if col == name {
				base = append(base, j)
			}
		}
	}

	y := d.Labels()
	parentCorr := make(map[int]float64, len(base))
	for _, j := range base {
		parentCorr[j], _ = labelCorrelation(d.Column(j), y)
	}

	var cands []contracts.FactorProposal
	consider := func(a, b int, id, formula string, fn func(x, z float64) float64) {
		xa, xb := d.Column(a), d.Column(b)
		values := make([]float64, len(xa))
		for i := range xa {
			values[i] = fn(xa[i], xb[i])
		}
		r, ok := labelCorrelation(values, y)
		if !ok || r <= cfg.MinImprovement {
			return
		}
		for _, parent := range [][]float64{xa, xb} {
			if twin, ok := labelCorrelation(values, parent); ok && twin > cfg.CorrelationThreshold {
				return
			}
		}
		best := parentCorr[a]
		if parentCorr[b] > best {
			best = parentCorr[b]
		}
		cands = append(cands, contracts.FactorProposal{
			FactorID:    id,
			Formula:     formula,
			Correlation: r,
			Improvement: r - best,
		})
	}

	for i, a := range base {
		for k, b := range base {
			if a == b {
				continue
			}
			na, nb := d.Columns[a], d.Columns[b]
			consider(a, b, na+"_div_"+nb, fmt.Sprintf("%s / (%s + %.2f)", na, nb, ratioEpsilon),
				func(p, q float64) float64 { return p / (q + ratioEpsilon) })
			if i < k {
				consider(a, b, na+"_minus_"+nb, fmt.Sprintf("%s - %s", na, nb),
					func(p, q float64) float64 { return p - q })
			}
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Correlation > cands[j].Correlation
	})

	out := make([]contracts.FactorProposal, 0, cfg.TopK)
	for _, c := range cands {
		if cfg.TopK > 0 && len(out) >= cfg.TopK {
			break
		}
		out = append(out, c)
	}
	return out
}
