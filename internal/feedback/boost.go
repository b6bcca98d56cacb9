package feedback

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/wonny/limitup/internal/strategyconfig"
)

// Booster is gradient boosting of depth-1 trees on logistic loss.
// Importance is the total split gain per feature.
type Booster struct {
	Rounds   int
	Eta      float64
	Lambda   float64
	MinRows  int
	TestSize float64
	Seed     int64
}

// NewBooster creates a boosted-stump model from the model config
func NewBooster(cfg strategyconfig.ModelConfig, minRows int) *Booster {
	return &Booster{
		Rounds:   cfg.Rounds,
		Eta:      cfg.Eta,
		Lambda:   1,
		MinRows:  minRows,
		TestSize: cfg.TestSize,
		Seed:     cfg.Seed,
	}
}

func (b *Booster) Name() string { return strategyconfig.ModelGradientBoosting }

type stump struct {
	feature     int
	threshold   float64
	left, right float64
}

func (s stump) value(row []float64) float64 {
	if row[s.feature] <= s.threshold {
		return s.left
	}
	return s.right
}

// Fit trains on the train split and reports log loss and accuracy
func (b *Booster) Fit(ctx context.Context, d *Dataset) (*Importance, error) {
	if d.Len() < b.MinRows {
		return nil, fmt.Errorf("%d rows < %d: %w", d.Len(), b.MinRows, ErrInsufficientData)
	}
	if b.Rounds <= 0 || b.Eta <= 0 || len(d.Columns) == 0 {
		return nil, fmt.Errorf("gradient boosting misconfigured: %w", ErrModelUnavailable)
	}

	train, test := d.Split(b.TestSize, b.Seed)
	n, nf := train.Len(), len(d.Columns)

	pos, _ := train.ClassCounts()
	p0 := clampProb(float64(pos) / float64(n))
	base := math.Log(p0 / (1 - p0))

	margin := make([]float64, n)
	for i := range margin {
		margin[i] = base
	}

	gain := make([]float64, nf)
	var stumps []stump
	g := make([]float64, n)
	h := make([]float64, n)
	order := make([]int, n)

	for r := 0; r < b.Rounds; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		G, H := 0.0, 0.0
		for i := 0; i < n; i++ {
			p := sigmoid(margin[i])
			g[i] = float64(train.Y[i]) - p
			h[i] = p * (1 - p)
			G += g[i]
			H += h[i]
		}
		parent := G * G / (H + b.Lambda)

		best, bestGain := stump{feature: -1}, 0.0
		for j := 0; j < nf; j++ {
			for i := range order {
				order[i] = i
			}
			sort.Slice(order, func(a, c int) bool { return train.X[order[a]][j] < train.X[order[c]][j] })

			GL, HL := 0.0, 0.0
			for k := 0; k < n-1; k++ {
				i := order[k]
				GL += g[i]
				HL += h[i]
				v, next := train.X[i][j], train.X[order[k+1]][j]
				if v == next {
					continue
				}
				GR, HR := G-GL, H-HL
				split := GL*GL/(HL+b.Lambda) + GR*GR/(HR+b.Lambda) - parent
				if split > bestGain {
					bestGain = split
					best = stump{
						feature:   j,
						threshold: (v + next) / 2,
						left:      GL / (HL + b.Lambda),
						right:     GR / (HR + b.Lambda),
					}
				}
			}
		}
		if best.feature < 0 {
			break
		}

		gain[best.feature] += bestGain
		stumps = append(stumps, best)
		for i := 0; i < n; i++ {
			margin[i] += b.Eta * best.value(train.X[i])
		}
	}

	scores, ok := normalize(d.Columns, gain)
	if !ok {
		return nil, fmt.Errorf("no split with positive gain: %w", ErrModelUnavailable)
	}

	predict := func(x [][]float64) []float64 {
		out := make([]float64, len(x))
		for i, row := range x {
			m := base
			for _, s := range stumps {
				m += b.Eta * s.value(row)
			}
			out[i] = sigmoid(m)
		}
		return out
	}

	metrics := map[string]float64{
		"rounds":         float64(len(stumps)),
		"train_accuracy": accuracy(predict(train.X), train.Y),
	}
	if test.Len() > 0 {
		pred := predict(test.X)
		metrics["test_accuracy"] = accuracy(pred, test.Y)
		metrics["test_logloss"] = logLoss(pred, test.Y)
	}
	return &Importance{Model: b.Name(), Scores: scores, Metrics: metrics}, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clampProb(p float64) float64 {
	return math.Min(math.Max(p, 1e-6), 1-1e-6)
}

func logLoss(pred []float64, y []int) float64 {
	if len(y) == 0 {
		return 0
	}
	s := 0.0
	for i, p := range pred {
		p = clampProb(p)
		if y[i] == 1 {
			s -= math.Log(p)
		} else {
			s -= math.Log(1 - p)
		}
	}
	return s / float64(len(y))
}
