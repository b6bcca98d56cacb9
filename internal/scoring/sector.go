package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/marketdata"
	"github.com/wonny/limitup/internal/strategyconfig"
)

// SectorHeat decides "hot sector" for one trading day.
// Hot = pct ≥ min AND net inflow ≥ min AND rank ≤ max AND limit-ups in industry ≥ min.
type SectorHeat struct {
	cfg       strategyconfig.HotSectorConfig
	flows     []marketdata.SectorFlow
	degraded  bool // sector flows unavailable, count-only
	limitUps  map[string]int
	decisions map[string]SectorDecision
}

// SectorDecision explains one industry's heat decision
type SectorDecision struct {
	Industry  string  `json:"industry"`
	Hot       bool    `json:"hot"`
	CountOnly bool    `json:"count_only"`
	LimitUps  int     `json:"limit_ups"`
	PctChange float64 `json:"pct_change,omitempty"`
	NetAmount float64 `json:"net_amount,omitempty"`
	Rank      int     `json:"rank,omitempty"`
	Reason    string  `json:"reason"`
}

// NewSectorHeat builds the decider from the full limit-up list of the day.
// flows == nil means sector data was unavailable.
func NewSectorHeat(cfg strategyconfig.HotSectorConfig, all []contracts.Candidate, flows []marketdata.SectorFlow) *SectorHeat {
	counts := make(map[string]int)
	for _, c := range all {
		if c.Attributes.Industry != "" {
			counts[c.Attributes.Industry]++
		}
	}
	sorted := append([]marketdata.SectorFlow(nil), flows...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	return &SectorHeat{
		cfg:       cfg,
		flows:     sorted,
		degraded:  len(flows) == 0,
		limitUps:  counts,
		decisions: make(map[string]SectorDecision),
	}
}

// Degraded reports whether decisions are count-only
func (h *SectorHeat) Degraded() bool {
	return h.degraded
}

// Decide returns the heat decision for an industry
func (h *SectorHeat) Decide(industry string) SectorDecision {
	if d, ok := h.decisions[industry]; ok {
		return d
	}
	d := h.decide(industry)
	h.decisions[industry] = d
	return d
}

func (h *SectorHeat) decide(industry string) SectorDecision {
	d := SectorDecision{Industry: industry, LimitUps: h.limitUps[industry]}
	if industry == "" {
		d.Reason = "no industry"
		return d
	}

	countOK := d.LimitUps >= h.cfg.MinLimitUps
	if h.degraded {
		d.CountOnly = true
		d.Hot = countOK
		d.Reason = fmt.Sprintf("sector flow unavailable, count-only: %d limit-ups (min %d)", d.LimitUps, h.cfg.MinLimitUps)
		return d
	}

	flow, ok := h.match(industry)
	if !ok {
		d.Reason = "industry not found in sector flows"
		return d
	}
	d.PctChange, d.NetAmount, d.Rank = flow.PctChange, flow.NetAmount, flow.Rank

	conds := []struct {
		ok   bool
		desc string
	}{
		{flow.PctChange >= h.cfg.MinPctChange, fmt.Sprintf("pct %.2f%% (min %.2f%%)", flow.PctChange, h.cfg.MinPctChange)},
		{flow.NetAmount >= h.cfg.MinNetAmount, fmt.Sprintf("net %.0f (min %.0f)", flow.NetAmount, h.cfg.MinNetAmount)},
		{flow.Rank <= h.cfg.MaxRank, fmt.Sprintf("rank %d (max %d)", flow.Rank, h.cfg.MaxRank)},
		{countOK, fmt.Sprintf("limit-ups %d (min %d)", d.LimitUps, h.cfg.MinLimitUps)},
	}

	d.Hot = true
	var failed []string
	for _, c := range conds {
		if !c.ok {
			d.Hot = false
			failed = append(failed, c.desc)
		}
	}
	if d.Hot {
		d.Reason = "all sector conditions met"
	} else {
		d.Reason = "failed: " + strings.Join(failed, ", ")
	}
	return d
}

// match finds the best-ranked sector whose name contains the industry
func (h *SectorHeat) match(industry string) (marketdata.SectorFlow, bool) {
	for _, f := range h.flows {
		if f.Name == industry {
			return f, true
		}
	}
	for _, f := range h.flows {
		if strings.Contains(f.Name, industry) {
			return f, true
		}
	}
	return marketdata.SectorFlow{}, false
}
