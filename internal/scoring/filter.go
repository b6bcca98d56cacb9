package scoring

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/fetch"
	"github.com/wonny/limitup/pkg/logger"
)

// Restricted-list sources recorded on a FilterResult
const (
	RestrictedSourceHeuristic = "name_heuristic"
)

// Exclusion records why a candidate was dropped before scoring
type Exclusion struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// FilterResult is the outcome of the restricted gate
type FilterResult struct {
	Kept     []contracts.Candidate `json:"-"`
	Excluded []Exclusion           `json:"excluded"`
	Source   string                `json:"source"`
	Degraded bool                  `json:"degraded"` // name heuristic used
}

// RestrictedLister supplies the authoritative special-treatment list
type RestrictedLister interface {
	RestrictedList(ctx context.Context, date time.Time) (*fetch.Result[map[string]string], error)
}

// Filter drops restricted-board, special-treatment and delisting candidates.
// The authoritative list wins; the name pattern is used only if the lookup fails.
func Filter(ctx context.Context, src RestrictedLister, date time.Time, candidates []contracts.Candidate, excludedPrefixes []string, log *logger.Logger) FilterResult {
	out := FilterResult{Kept: make([]contracts.Candidate, 0, len(candidates))}

	var restricted map[string]string
	res, err := src.RestrictedList(ctx, date)
	switch {
	case err == nil:
		restricted = res.Value
		out.Source = res.Provider
	case isAllEmpty(err):
		// 조회 성공, ST 종목 없음
		restricted = map[string]string{}
		out.Source = "empty"
	default:
		out.Source = RestrictedSourceHeuristic
		out.Degraded = true
		log.WithFields(map[string]interface{}{
			"date":  date.Format(contracts.DateLayout),
			"error": err.Error(),
		}).Warn("Restricted list unavailable, falling back to name heuristic")
	}

	for _, c := range candidates {
		if reason, drop := excludeReason(c, restricted, excludedPrefixes); drop {
			out.Excluded = append(out.Excluded, Exclusion{Symbol: c.Symbol, Name: c.Name, Reason: reason})
			continue
		}
		out.Kept = append(out.Kept, c)
	}

	log.WithFields(map[string]interface{}{
		"date":     date.Format(contracts.DateLayout),
		"total":    len(candidates),
		"kept":     len(out.Kept),
		"excluded": len(out.Excluded),
		"source":   out.Source,
	}).Info("Candidate filter applied")

	return out
}

func excludeReason(c contracts.Candidate, restricted map[string]string, prefixes []string) (string, bool) {
	code := c.Code()
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(code, p) {
			return "restricted board (" + c.Board() + ")", true
		}
	}
	if strings.Contains(c.Name, "退") {
		return "delisting", true
	}
	if restricted != nil {
		if _, ok := restricted[c.Symbol]; ok {
			return "special treatment (list)", true
		}
		return "", false
	}
	if IsSpecialTreatmentName(c.Name) {
		return "special treatment (name)", true
	}
	return "", false
}

// IsSpecialTreatmentName matches ST / *ST names
func IsSpecialTreatmentName(name string) bool {
	return strings.Contains(strings.ToUpper(name), "ST")
}

func isAllEmpty(err error) bool {
	var ue *fetch.UnavailableError
	return errors.As(err, &ue) && ue.AllEmpty()
}
