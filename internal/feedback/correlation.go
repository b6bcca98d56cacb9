package feedback

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/limitup/internal/strategyconfig"
)

// Correlation scores features by |Pearson r| against the win label.
// Constant columns have no correlation and are left out.
type Correlation struct {
	MinRows int
}

// NewCorrelation creates the correlation fallback model
func NewCorrelation(minRows int) *Correlation {
	return &Correlation{MinRows: minRows}
}

func (c *Correlation) Name() string { return strategyconfig.ModelCorrelation }

// Fit computes normalized |r| per column
func (c *Correlation) Fit(ctx context.Context, d *Dataset) (*Importance, error) {
	if d.Len() < c.MinRows || d.Len() < 3 {
		return nil, fmt.Errorf("%d rows < %d: %w", d.Len(), c.MinRows, ErrInsufficientData)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	y := d.Labels()
	raw := make(map[string]float64, len(d.Columns))
	total := 0.0
	for j, col := range d.Columns {
		r, ok := labelCorrelation(d.Column(j), y)
		if !ok {
			continue
		}
		raw[col] = r
		total += r
	}
	if total <= 0 {
		return nil, fmt.Errorf("no correlated feature: %w", ErrModelUnavailable)
	}

	scores := make(map[string]float64, len(raw))
	for k, v := range raw {
		scores[k] = v / total
	}
	return &Importance{
		Model:   c.Name(),
		Scores:  scores,
		Metrics: map[string]float64{"features": float64(len(scores))},
	}, nil
}

// labelCorrelation is |r| between x and the labels; false when undefined
func labelCorrelation(x, y []float64) (float64, bool) {
	r := math.Abs(stat.Correlation(x, y, nil))
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}
