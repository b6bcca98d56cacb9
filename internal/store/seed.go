package store

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/limitup/internal/auction"
	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/scoring"
	"github.com/wonny/limitup/internal/strategyconfig"
	"github.com/wonny/limitup/pkg/config"
	"github.com/wonny/limitup/pkg/database"
	"github.com/wonny/limitup/pkg/logger"
	"github.com/wonny/limitup/pkg/metrics"
)

var factorDescriptions = map[string]string{
	scoring.FactorFirstLimitTime:      "time of the first limit-up touch, earlier is stronger",
	scoring.FactorBuyToSellRatio:      "seal amount over traded amount",
	scoring.FactorOrderAmountToCircMV: "seal amount over free-float market value",
	scoring.FactorTurnoverRate:        "turnover rate in the healthy band",
	scoring.FactorTurnoverRateTo20MA:  "turnover rate over its 20-day average",
	scoring.FactorVolumeRatio:         "volume over the 5-day average",
	scoring.FactorMainNetAmount:       "main-force net inflow",
	scoring.FactorMainNetRatio:        "main-force net inflow ratio",
	scoring.FactorMediumNetAmount:     "medium order net inflow",
	scoring.FactorIsHotSector:         "industry is a hot sector",
	scoring.FactorDragonList:          "on the top list with net buying",
	auction.FactorOpenChangePct:       "auction gap over previous close",
	auction.FactorVolumeRatio:         "auction volume ratio",
	auction.FactorTurnoverRate:        "auction turnover rate",
	auction.FactorAmount:              "auction traded amount",
	auction.FactorVolumeToTDayVolume:  "auction volume over T-day volume",
}

var groupTypes = map[string]contracts.FactorType{
	scoring.GroupTiming:       contracts.FactorTechnical,
	scoring.GroupOrderQuality: contracts.FactorTechnical,
	scoring.GroupLiquidity:    contracts.FactorTechnical,
	scoring.GroupMoneyFlow:    contracts.FactorMoneyflow,
	scoring.GroupSectorHeat:   contracts.FactorMarket,
	scoring.GroupSpecialList:  contracts.FactorMarket,
}

// DefaultFactors returns the seed rows of the factor table from the strategy weights
func DefaultFactors(cfg *strategyconfig.Config, now time.Time) []contracts.FactorWeight {
	out := make([]contracts.FactorWeight, 0, 16)
	for id, w := range cfg.TDay.Weights.Map() {
		group := scoring.FactorGroups[id]
		out = append(out, seedFactor(cfg.Feedback, id, group, groupTypes[group], w, now))
	}

	aw := cfg.Auction.Weights
	for id, w := range map[string]float64{
		auction.FactorOpenChangePct:      aw.OpenChangePct,
		auction.FactorVolumeRatio:        aw.VolumeRatio,
		auction.FactorTurnoverRate:       aw.TurnoverRate,
		auction.FactorAmount:             aw.Amount,
		auction.FactorVolumeToTDayVolume: aw.VolumeToTDayVolume,
	} {
		out = append(out, seedFactor(cfg.Feedback, id, "auction", contracts.FactorAuction, w, now))
	}
	return out
}

// seedFactor keeps the stored weight inside [min_weight, max_weight].
// A factor configured at 0 is seeded inactive so it still scores nothing.
func seedFactor(fc strategyconfig.FeedbackConfig, id, group string, typ contracts.FactorType, w float64, now time.Time) contracts.FactorWeight {
	weight := w
	if weight < fc.MinWeight {
		weight = fc.MinWeight
	}
	if weight > fc.MaxWeight {
		weight = fc.MaxWeight
	}
	return contracts.FactorWeight{
		FactorID:    id,
		Group:       group,
		Type:        typ,
		Weight:      weight,
		Description: factorDescriptions[id],
		IsActive:    w > 0,
		LastUpdated: now,
	}
}

// Seed inserts the factors that are not in the table yet; existing rows are left alone
func Seed(ctx context.Context, st Store, factors []contracts.FactorWeight) (int, error) {
	existing, err := st.GetFactorWeights(ctx)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, w := range existing {
		have[w.FactorID] = true
	}

	added := 0
	for _, w := range factors {
		if have[w.FactorID] {
			continue
		}
		if err := st.UpsertFactorWeight(ctx, w); err != nil {
			return added, fmt.Errorf("seed factor %s: %w", w.FactorID, err)
		}
		added++
	}
	return added, nil
}

// Open connects the configured backend, applies the schema, seeds default
// factors and wraps the result with the retry decorator
func Open(ctx context.Context, cfg *config.Config, strategy *strategyconfig.Config, loc *time.Location, m *metrics.Registry, log *logger.Logger) (Store, error) {
	var (
		st  *SQLStore
		err error
	)
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, derr := database.New(ctx, cfg.Database)
		if derr != nil {
			return nil, derr
		}
		st, err = NewPostgres(ctx, db, loc, log)
		if err != nil {
			db.Close()
			return nil, err
		}
	default:
		db, derr := database.OpenSQLite(cfg.Store.SQLitePath)
		if derr != nil {
			return nil, derr
		}
		st, err = NewSQLite(ctx, db, loc, log)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	wrapped := NewRetrying(st, DefaultRetryConfig(), m, log)
	added, err := Seed(ctx, wrapped, DefaultFactors(strategy, time.Now()))
	if err != nil {
		wrapped.Close()
		return nil, err
	}
	if added > 0 {
		log.WithFields(map[string]interface{}{
			"driver":  st.Driver(),
			"factors": added,
		}).Info("Seeded default factor weights")
	}
	return wrapped, nil
}
