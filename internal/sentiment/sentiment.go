// Package sentiment scores market mood on a 0-100 scale from limit-up/limit-down
// breadth and headline tone. Missing inputs count as neutral.
package sentiment

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/fetch"
	"github.com/wonny/limitup/pkg/logger"
)

const (
	Neutral = 50.0

	// 헤드라인이 있을 때 breadth 비중
	breadthWeight = 0.7
	toneWeight    = 0.3
)

var (
	positiveWords = []string{
		"利好", "增长", "超预期", "突破", "创新高", "推荐", "买入", "看好", "上涨", "强势", "涨停",
		"positive", "growth", "beat", "outperform", "buy", "bullish", "upgrade", "strong", "gain",
	}
	negativeWords = []string{
		"利空", "下跌", "亏损", "风险", "减持", "卖出", "谨慎", "预警", "暴跌", "调整", "跌停",
		"negative", "decline", "loss", "risk", "sell", "bearish", "downgrade", "weak", "drop", "fall",
	}
)

// BreadthSource supplies the day's limit-up and limit-down counts
type BreadthSource interface {
	LimitUps(ctx context.Context, date time.Time) (*fetch.Result[[]contracts.Candidate], error)
	LimitDownCount(ctx context.Context, date time.Time) (*fetch.Result[int], error)
}

// HeadlineSource supplies recent market headlines
type HeadlineSource interface {
	Headlines(ctx context.Context, limit int) ([]string, error)
}

// Reading is one sentiment measurement
type Reading struct {
	Date       time.Time `json:"date"`
	Score      float64   `json:"score"`
	Breadth    float64   `json:"breadth"`
	Tone       float64   `json:"tone"`
	LimitUps   int       `json:"limit_ups"`
	LimitDowns int       `json:"limit_downs"`
	Headlines  int       `json:"headlines"`
	Positive   int       `json:"positive"`
	Negative   int       `json:"negative"`
	Degraded   bool      `json:"degraded"`
	Notes      []string  `json:"notes,omitempty"`
}

// Analyzer computes sentiment readings
type Analyzer struct {
	breadth   BreadthSource
	headlines HeadlineSource // optional
	limit     int
	logger    *logger.Logger
}

// NewAnalyzer creates an analyzer. headlines may be nil.
func NewAnalyzer(breadth BreadthSource, headlines HeadlineSource, limit int, log *logger.Logger) *Analyzer {
	if limit <= 0 {
		limit = 30
	}
	return &Analyzer{
		breadth:   breadth,
		headlines: headlines,
		limit:     limit,
		logger:    log.WithComponent("sentiment"),
	}
}

// Read scores the market on date. It never fails; missing inputs are neutral and noted.
func (a *Analyzer) Read(ctx context.Context, date time.Time) Reading {
	r := Reading{Date: date, Breadth: Neutral, Tone: Neutral}

	// ===== 1. Breadth =====
	upOK, downOK := false, false
	if res, err := a.breadth.LimitUps(ctx, date); err == nil {
		r.LimitUps, upOK = len(res.Value), true
	} else if isAllEmpty(err) {
		upOK = true
	} else {
		r.Notes = append(r.Notes, "limit-up count unavailable: "+err.Error())
	}
	if res, err := a.breadth.LimitDownCount(ctx, date); err == nil {
		r.LimitDowns, downOK = res.Value, true
	} else if isAllEmpty(err) {
		downOK = true
	} else {
		r.Notes = append(r.Notes, "limit-down count unavailable: "+err.Error())
	}

	if upOK && downOK {
		r.Breadth = Breadth(r.LimitUps, r.LimitDowns)
	} else {
		r.Degraded = true
	}

	// ===== 2. Headline tone =====
	hasTone := false
	if a.headlines != nil {
		lines, err := a.headlines.Headlines(ctx, a.limit)
		switch {
		case err != nil:
			r.Degraded = true
			r.Notes = append(r.Notes, "headlines unavailable: "+err.Error())
		case len(lines) > 0:
			r.Tone, r.Positive, r.Negative = Tone(lines)
			r.Headlines = len(lines)
			hasTone = true
		}
	}

	// ===== 3. Blend =====
	if hasTone {
		r.Score = r.Breadth*breadthWeight + r.Tone*toneWeight
	} else {
		r.Score = r.Breadth
	}
	r.Score = math.Round(r.Score*100) / 100

	a.logger.WithFields(map[string]interface{}{
		"date":        date.Format(contracts.DateLayout),
		"score":       r.Score,
		"limit_ups":   r.LimitUps,
		"limit_downs": r.LimitDowns,
		"headlines":   r.Headlines,
		"degraded":    r.Degraded,
	}).Info("Sentiment computed")

	return r
}

// Breadth maps limit-up vs limit-down counts to 0-100; no moves is neutral
func Breadth(up, down int) float64 {
	if up+down <= 0 {
		return Neutral
	}
	return float64(up) / float64(up+down) * 100
}

// Tone scores headlines by keyword balance, 0-100 with 50 neutral
func Tone(lines []string) (tone float64, positive, negative int) {
	if len(lines) == 0 {
		return Neutral, 0, 0
	}
	total := 0.0
	for _, line := range lines {
		l := strings.ToLower(line)
		pos, neg := count(l, positiveWords), count(l, negativeWords)
		switch {
		case pos > neg:
			positive++
			total++
		case neg > pos:
			negative++
			total--
		}
	}
	avg := total / float64(len(lines))
	return Neutral + avg*50, positive, negative
}

func count(s string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(s, w) {
			n++
		}
	}
	return n
}

func isAllEmpty(err error) bool {
	var ue *fetch.UnavailableError
	return errors.As(err, &ue) && ue.AllEmpty()
}
