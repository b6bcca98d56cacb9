package feedback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/wonny/limitup/pkg/logger"
)

var (
	// ErrInsufficientData means the training set fails the optimizer preconditions
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrModelUnavailable means a model could not produce importances for this dataset
	ErrModelUnavailable = errors.New("importance model unavailable")
)

// Importance is the normalized per-feature importance of one fitted model
type Importance struct {
	Model   string             `json:"model"`
	Scores  map[string]float64 `json:"scores"` // sums to 1
	Metrics map[string]float64 `json:"metrics"`
}

// Ranked returns features by descending importance, ties by name
func (im *Importance) Ranked() []string {
	out := make([]string, 0, len(im.Scores))
	for k := range im.Scores {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if im.Scores[out[i]] != im.Scores[out[j]] {
			return im.Scores[out[i]] > im.Scores[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// ImportanceModel fits a dataset and reports feature importances
type ImportanceModel interface {
	Name() string
	Fit(ctx context.Context, d *Dataset) (*Importance, error)
}

// Chain tries models in order and returns the first that succeeds
type Chain struct {
	models []ImportanceModel
	logger *logger.Logger
}

// NewChain creates a model chain
func NewChain(log *logger.Logger, models ...ImportanceModel) *Chain {
	if log == nil {
		log = logger.Nop()
	}
	return &Chain{models: models, logger: log}
}

// Fit returns the importances of the first model that can fit d
func (c *Chain) Fit(ctx context.Context, d *Dataset) (*Importance, error) {
	if len(c.models) == 0 {
		return nil, fmt.Errorf("no importance models configured: %w", ErrModelUnavailable)
	}

	var errs []error
	for _, m := range c.models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		im, err := m.Fit(ctx, d)
		if err == nil {
			return im, nil
		}
		c.logger.WithFields(map[string]interface{}{
			"model": m.Name(),
			"error": err.Error(),
		}).Warn("Importance model failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
	}
	return nil, errors.Join(errs...)
}

// normalize scales raw importances to sum 1; every column gets a key
func normalize(cols []string, raw []float64) (map[string]float64, bool) {
	total := 0.0
	for _, v := range raw {
		total += v
	}
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, false
	}
	out := make(map[string]float64, len(cols))
	for j, c := range cols {
		out[c] = raw[j] / total
	}
	return out, true
}

func accuracy(pred []float64, y []int) float64 {
	if len(y) == 0 {
		return 0
	}
	hit := 0
	for i, p := range pred {
		if (p >= 0.5) == (y[i] == 1) {
			hit++
		}
	}
	return float64(hit) / float64(len(y))
}
