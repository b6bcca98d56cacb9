package feedback

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/wonny/limitup/internal/strategyconfig"
)

// Forest is a bagged CART ensemble scored by mean Gini decrease
type Forest struct {
	Trees    int
	MaxDepth int
	MinRows  int
	TestSize float64
	Seed     int64
	minLeaf  int
}

// NewForest creates a random forest from the model config
func NewForest(cfg strategyconfig.ModelConfig, minRows int) *Forest {
	return &Forest{
		Trees:    cfg.Trees,
		MaxDepth: cfg.MaxDepth,
		MinRows:  minRows,
		TestSize: cfg.TestSize,
		Seed:     cfg.Seed,
		minLeaf:  1,
	}
}

func (f *Forest) Name() string { return strategyconfig.ModelRandomForest }

// Fit trains on the train split and reports test accuracy
func (f *Forest) Fit(ctx context.Context, d *Dataset) (*Importance, error) {
	if d.Len() < f.MinRows {
		return nil, fmt.Errorf("%d rows < %d: %w", d.Len(), f.MinRows, ErrInsufficientData)
	}
	if f.Trees <= 0 || f.MaxDepth <= 0 || len(d.Columns) == 0 {
		return nil, fmt.Errorf("random forest misconfigured: %w", ErrModelUnavailable)
	}

	train, test := d.Split(f.TestSize, f.Seed)
	rng := rand.New(rand.NewSource(f.Seed))
	nf := len(d.Columns)
	mtry := int(math.Max(1, math.Round(math.Sqrt(float64(nf)))))

	total := make([]float64, nf)
	trees := make([]*treeNode, 0, f.Trees)
	for t := 0; t < f.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// bootstrap
		idx := make([]int, train.Len())
		for i := range idx {
			idx[i] = rng.Intn(train.Len())
		}

		b := &cartBuilder{
			x:        train.X,
			y:        train.Y,
			maxDepth: f.MaxDepth,
			minLeaf:  f.minLeaf,
			mtry:     mtry,
			rng:      rng,
			gain:     make([]float64, nf),
		}
		trees = append(trees, b.build(idx, 0))

		sum := 0.0
		for _, g := range b.gain {
			sum += g
		}
		if sum > 0 {
			for j, g := range b.gain {
				total[j] += g / sum
			}
		}
	}

	scores, ok := normalize(d.Columns, total)
	if !ok {
		return nil, fmt.Errorf("no informative split found: %w", ErrModelUnavailable)
	}

	metrics := map[string]float64{
		"trees":          float64(len(trees)),
		"train_accuracy": accuracy(forestPredict(trees, train.X), train.Y),
	}
	if test.Len() > 0 {
		metrics["test_accuracy"] = accuracy(forestPredict(trees, test.X), test.Y)
	}
	return &Importance{Model: f.Name(), Scores: scores, Metrics: metrics}, nil
}

func forestPredict(trees []*treeNode, x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		s := 0.0
		for _, t := range trees {
			s += t.predict(row)
		}
		out[i] = s / float64(len(trees))
	}
	return out
}

// ===== CART =====

type treeNode struct {
	feature     int
	threshold   float64
	left, right *treeNode
	prob        float64 // share of positives at a leaf
}

func (n *treeNode) predict(row []float64) float64 {
	for n.left != nil {
		if row[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.prob
}

type cartBuilder struct {
	x        [][]float64
	y        []int
	maxDepth int
	minLeaf  int
	mtry     int
	rng      *rand.Rand
	gain     []float64
}

func gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 1 - p*p - (1-p)*(1-p)
}

func (b *cartBuilder) build(idx []int, depth int) *treeNode {
	pos := 0
	for _, i := range idx {
		pos += b.y[i]
	}
	leaf := &treeNode{prob: float64(pos) / float64(len(idx))}
	if depth >= b.maxDepth || pos == 0 || pos == len(idx) || len(idx) < 2*b.minLeaf {
		return leaf
	}

	parent := float64(len(idx)) * gini(pos, len(idx))
	bestGain, bestFeature, bestThreshold := 0.0, -1, 0.0

	features := b.rng.Perm(len(b.gain))[:b.mtry]
	sorted := make([]int, len(idx))
	for _, j := range features {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return b.x[sorted[a]][j] < b.x[sorted[c]][j] })

		leftPos := 0
		for k := 0; k < len(sorted)-1; k++ {
			leftPos += b.y[sorted[k]]
			v, next := b.x[sorted[k]][j], b.x[sorted[k+1]][j]
			nl := k + 1
			nr := len(sorted) - nl
			if v == next || nl < b.minLeaf || nr < b.minLeaf {
				continue
			}
			child := float64(nl)*gini(leftPos, nl) + float64(nr)*gini(pos-leftPos, nr)
			if g := parent - child; g > bestGain {
				bestGain, bestFeature, bestThreshold = g, j, (v+next)/2
			}
		}
	}
	if bestFeature < 0 {
		return leaf
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][bestFeature] <= bestThreshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.gain[bestFeature] += bestGain

	return &treeNode{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      b.build(left, depth+1),
		right:     b.build(right, depth+1),
	}
}
