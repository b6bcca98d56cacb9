package performance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/store"
)

// Report is the portfolio report over a buy-date range
type Report struct {
	Range       contracts.DateRange           `json:"range"`
	Summary     *contracts.PerformanceSummary `json:"summary"`
	Stats       *Stats                        `json:"stats"`
	Outlook     *Outlook                      `json:"outlook,omitempty"`
	GeneratedAt time.Time                     `json:"generated_at"`
}

// Report aggregates closed positions bought inside r
func (t *Tracker) Report(ctx context.Context, r contracts.DateRange) (*Report, error) {
	records, err := t.store.ListPerformance(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("list performance: %w", err)
	}

	outcomes := make([]Outcome, 0, len(records))
	for _, p := range records {
		if !p.IsClosed() {
			continue
		}
		o := Outcome{
			RecommendationID: p.RecommendationID,
			Symbol:           p.Symbol,
			BuyDate:          p.BuyDate,
			ReturnPct:        p.ReturnPct,
		}
		rec, err := t.store.GetRecommendation(ctx, p.RecommendationID)
		switch {
		case err == nil:
			o.Score = rec.TotalScore
			if o.Symbol == "" {
				o.Symbol = rec.Symbol
			}
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
		outcomes = append(outcomes, o)
	}

	rep := &Report{
		Range:   r,
		Summary: store.Summarize(records, r),
		Stats: Compute(outcomes, StatsOptions{
			ScoreBins: t.cfg.ScoreBins,
			MinTrades: t.cfg.MinTrades,
		}),
		GeneratedAt: t.now(),
	}
	rep.Outlook = t.outlook(outcomes)
	return rep, nil
}

// outlook bootstraps the next-trades distribution; nil when disabled or the sample is too small
func (t *Tracker) outlook(outcomes []Outcome) *Outlook {
	if t.cfg.SimulationRuns <= 0 {
		return nil
	}
	returns := make([]float64, len(outcomes))
	for i, o := range outcomes {
		returns[i] = o.ReturnPct
	}
	sim := NewSimulator(SimulationConfig{
		Runs:       t.cfg.SimulationRuns,
		Horizon:    t.cfg.SimulationHorizon,
		MinSamples: t.cfg.MinTrades,
		Seed:       t.simSeed,
	})
	out, err := sim.Bootstrap(returns)
	if err != nil {
		if !errors.Is(err, ErrTooFewTrades) {
			t.logger.WithError(err).Warn("Outlook simulation failed")
		}
		return nil
	}
	return out
}

// Lookback returns the report range ending today, sized by the tracker config
func (t *Tracker) Lookback() contracts.DateRange {
	today := t.day(t.now())
	days := t.cfg.LookbackDays
	if days <= 0 {
		days = 30
	}
	return contracts.DateRange{From: today.AddDate(0, 0, -days), To: today}
}
