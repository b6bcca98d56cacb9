package contracts

import (
	"strings"
	"time"
)

// Candidate is one symbol that closed at its upper price limit on AsOfDate
// ⭐ SSOT: T일 후보 종목 (fetch 이후 불변)
type Candidate struct {
	Symbol     string              `json:"symbol"` // e.g. 600519.SH
	Name       string              `json:"name"`
	AsOfDate   time.Time           `json:"as_of_date"`
	Attributes CandidateAttributes `json:"attributes"`
}

// CandidateAttributes holds the limit-up list row for a candidate.
// Monetary fields are in yuan.
type CandidateAttributes struct {
	Close          float64 `json:"close"`
	PctChange      float64 `json:"pct_chg"`
	Amount         float64 `json:"amount"`    // turnover value
	SealAmount     float64 `json:"fd_amount"` // resting buy orders at the limit price
	FloatMarketCap float64 `json:"float_mv"`  // free-float market value
	TotalMarketCap float64 `json:"total_mv"`
	TurnoverRate   float64 `json:"turnover_ratio"` // percent
	Industry       string  `json:"industry"`
	FirstLimitTime string  `json:"first_time"` // HHMMSS
	LastLimitTime  string  `json:"last_time"`
	OpenTimes      int     `json:"open_times"` // times the limit was broken intraday
	LimitTimes     int     `json:"limit_times"`
	UpStat         string  `json:"up_stat"`
}

// SealRatio is seal amount over traded amount
func (a CandidateAttributes) SealRatio() float64 {
	if a.Amount <= 0 {
		return 0
	}
	return a.SealAmount / a.Amount
}

// SealToMV is seal amount over free-float market value
func (a CandidateAttributes) SealToMV() float64 {
	if a.FloatMarketCap <= 0 {
		return 0
	}
	return a.SealAmount / a.FloatMarketCap
}

// Board returns the listing board derived from the symbol code
func (c Candidate) Board() string {
	code := c.Code()
	switch {
	case strings.HasPrefix(code, "688"):
		return "star"
	case strings.HasPrefix(code, "30"):
		return "chinext"
	case strings.HasPrefix(code, "8"), strings.HasPrefix(code, "4"), strings.HasPrefix(code, "92"):
		return "bse"
	default:
		return "main"
	}
}

// Code returns the 6-digit code without exchange suffix
func (c Candidate) Code() string {
	return SymbolCode(c.Symbol)
}

// SymbolCode strips the exchange suffix ("600519.SH" -> "600519")
func SymbolCode(symbol string) string {
	if i := strings.IndexByte(symbol, '.'); i >= 0 {
		return symbol[:i]
	}
	return symbol
}

// ScoredCandidate is a candidate with its T-day score
type ScoredCandidate struct {
	Candidate
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
	HotSector bool           `json:"is_hot_sector"`
}

// ScoreBreakdown keeps per-group and per-factor contributions
type ScoreBreakdown struct {
	Groups  map[string]float64 `json:"groups"`
	Factors map[string]float64 `json:"factors"`
	Inputs  map[string]float64 `json:"inputs"` // raw values fed to each factor
	Notes   []string           `json:"notes,omitempty"`
}

// NewScoreBreakdown returns an empty breakdown
func NewScoreBreakdown() ScoreBreakdown {
	return ScoreBreakdown{
		Groups:  make(map[string]float64),
		Factors: make(map[string]float64),
		Inputs:  make(map[string]float64),
	}
}

// Total sums group contributions
func (b ScoreBreakdown) Total() float64 {
	total := 0.0
	for _, v := range b.Groups {
		total += v
	}
	return total
}
