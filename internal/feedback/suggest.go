package feedback

import (
	"fmt"
	"math"
	"sort"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/strategyconfig"
)

// removeAbove is the weight above which an unimportant factor is flagged for removal
const removeAbove = 10

// Suggest turns importances into weight suggestions for the top features,
// plus removals for heavy active factors the model did not see
func Suggest(im *Importance, weights []contracts.FactorWeight, cfg strategyconfig.FeedbackConfig) []contracts.WeightSuggestion {
	current := make(map[string]contracts.FactorWeight, len(weights))
	for _, w := range weights {
		current[w.FactorID] = w
	}

	ranked := im.Ranked()
	if cfg.TopFeatures > 0 && len(ranked) > cfg.TopFeatures {
		ranked = ranked[:cfg.TopFeatures]
	}

	var out []contracts.WeightSuggestion
	for _, id := range ranked {
		imp := im.Scores[id]
		suggested := round2(imp * cfg.SuggestScale)

		w, ok := current[id]
		switch {
		case !ok:
			out = append(out, contracts.WeightSuggestion{
				FactorID:        id,
				Kind:            contracts.SuggestNew,
				Importance:      imp,
				SuggestedWeight: suggested,
				Reason:          fmt.Sprintf("important feature (%.3f) has no factor", imp),
			})
		case suggested > w.Weight*1.5:
			out = append(out, contracts.WeightSuggestion{
				FactorID:        id,
				Kind:            contracts.SuggestIncrease,
				Importance:      imp,
				CurrentWeight:   w.Weight,
				SuggestedWeight: suggested,
				Reason:          fmt.Sprintf("importance %.3f above current weight %.2f", imp, w.Weight),
			})
		case suggested < w.Weight*0.7:
			out = append(out, contracts.WeightSuggestion{
				FactorID:        id,
				Kind:            contracts.SuggestDecrease,
				Importance:      imp,
				CurrentWeight:   w.Weight,
				SuggestedWeight: suggested,
				Reason:          fmt.Sprintf("importance %.3f below current weight %.2f", imp, w.Weight),
			})
		}
	}

	var removals []contracts.WeightSuggestion
	for _, w := range weights {
		if _, seen := im.Scores[w.FactorID]; seen || !w.IsActive || w.Weight <= removeAbove {
			continue
		}
		removals = append(removals, contracts.WeightSuggestion{
			FactorID:      w.FactorID,
			Kind:          contracts.SuggestRemove,
			CurrentWeight: w.Weight,
			Reason:        fmt.Sprintf("weight %.2f but no measured importance", w.Weight),
		})
	}
	sort.Slice(removals, func(i, j int) bool { return removals[i].FactorID < removals[j].FactorID })

	return append(out, removals...)
}

// SmoothedWeight blends the old weight with the scaled importance and clamps the result
// ⭐ SSOT: 가중치 갱신 공식
func SmoothedWeight(old, importance float64, cfg strategyconfig.FeedbackConfig) float64 {
	target := importance * cfg.ImportanceScale
	w := old*cfg.Smoothing + target*(1-cfg.Smoothing)
	return round2(clamp(w, cfg.MinWeight, cfg.MaxWeight))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
