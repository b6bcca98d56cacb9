package risk

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wonny/limitup/internal/calendar"
	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/fetch"
	"github.com/wonny/limitup/internal/marketdata"
	"github.com/wonny/limitup/internal/sentiment"
	"github.com/wonny/limitup/internal/strategyconfig"
	"github.com/wonny/limitup/pkg/logger"
)

// Mode controls whether the gate changes decisions
type Mode string

const (
	ModeEnforce Mode = "enforce" // veto and cap positions
	ModeShadow  Mode = "shadow"  // annotate only
	ModeOff     Mode = "off"
)

// DataSource is the market data the gate reads
type DataSource interface {
	IndexBars(ctx context.Context, code string, from, to time.Time) (*fetch.Result[[]marketdata.DailyBar], error)
	Margin(ctx context.Context, date time.Time) (*fetch.Result[[]marketdata.MarginSummary], error)
}

// Calendar resolves the previous trading day for leverage deltas
type Calendar interface {
	PrevTradingDay(ctx context.Context, d time.Time) (calendar.Resolution, error)
}

// SentimentSource reads the market sentiment score
type SentimentSource interface {
	Read(ctx context.Context, date time.Time) sentiment.Reading
}

// Gate computes the market condition and applies it to recommendations
// ⭐ SSOT: 시장 필터/포지션 상한은 여기서만 결정
type Gate struct {
	data      DataSource
	cal       Calendar
	sentiment SentimentSource
	cfg       strategyconfig.RiskConfig
	logger    *logger.Logger
}

// NewGate creates a risk gate
func NewGate(data DataSource, cal Calendar, sent SentimentSource, cfg *strategyconfig.Config, log *logger.Logger) *Gate {
	return &Gate{
		data:      data,
		cal:       cal,
		sentiment: sent,
		cfg:       cfg.Risk,
		logger:    log.WithComponent("risk"),
	}
}

// Mode returns the configured gate mode
func (g *Gate) Mode() Mode {
	return Mode(g.cfg.Mode)
}

// Assess builds the market condition for date (the T day whose close is known)
func (g *Gate) Assess(ctx context.Context, date time.Time) *contracts.MarketCondition {
	cond := &contracts.MarketCondition{
		Date:          date,
		StopLossPct:   g.cfg.StopLossPct,
		TakeProfitPct: g.cfg.TakeProfitPct,
		BreakMAStop:   g.cfg.BreakMAStop,
	}

	// ===== 1. Sentiment =====
	reading := g.sentiment.Read(ctx, date)
	cond.SentimentScore = reading.Score
	if reading.Degraded {
		cond.Notes = append(cond.Notes, "sentiment degraded: "+joinNotes(reading.Notes))
	}

	// ===== 2. Index trend =====
	cond.Trend = g.trend(ctx, date)
	if cond.Trend.Degraded {
		cond.Notes = append(cond.Notes, "index trend unavailable, trading allowed")
	}

	cond.MarketFilter = cond.SentimentScore >= g.cfg.SentimentFloor && cond.Trend.IsAbove
	cond.MaxPosition = g.cfg.MaxPosition
	switch {
	case !cond.Trend.IsAbove:
		cond.Notes = append(cond.Notes, fmt.Sprintf("index below MA%d (ratio %.4f)", g.cfg.MADays, cond.Trend.Ratio))
	case cond.Trend.Ratio < g.cfg.WeakTrendRatio:
		cond.MaxPosition = g.cfg.WeakMaxPosition
		cond.Notes = append(cond.Notes, fmt.Sprintf("index close to MA%d (ratio %.4f), reduced position", g.cfg.MADays, cond.Trend.Ratio))
	case cond.Trend.Ratio > g.cfg.StrongTrendRatio:
		cond.MaxPosition = g.cfg.StrongMaxPosition
		cond.Notes = append(cond.Notes, fmt.Sprintf("index strong above MA%d (ratio %.4f), increased position", g.cfg.MADays, cond.Trend.Ratio))
	}
	if cond.SentimentScore < g.cfg.SentimentFloor {
		cond.Notes = append(cond.Notes, fmt.Sprintf("sentiment %.1f below floor %.0f, no new positions", cond.SentimentScore, g.cfg.SentimentFloor))
	}

	// ===== 3. Leverage =====
	cond.Leverage = g.leverage(ctx, date)
	if cond.Leverage != nil {
		cond.RiskScore = cond.Leverage.RiskScore
	} else {
		cond.Notes = append(cond.Notes, "margin data unavailable, leverage risk not scored")
	}
	cond.RiskLevel, cond.PositionMultiplier, cond.Condition, cond.Suggestion = Level(cond.RiskScore)

	g.logger.WithFields(map[string]interface{}{
		"date":          date.Format(contracts.DateLayout),
		"market_filter": cond.MarketFilter,
		"sentiment":     cond.SentimentScore,
		"trend_ratio":   cond.Trend.Ratio,
		"risk_score":    cond.RiskScore,
		"risk_level":    cond.RiskLevel,
		"max_position":  cond.MaxPosition,
	}).Info("Market condition assessed")

	return cond
}

// Apply returns updated copies of recs under cond.
// enforce: a failed market filter turns every recommendation into no_trade; otherwise
// positions are capped at maxPosition x multiplier. shadow: notes only. off: unchanged.
func (g *Gate) Apply(cond *contracts.MarketCondition, recs []*contracts.Recommendation) []*contracts.Recommendation {
	mode := g.Mode()
	out := make([]*contracts.Recommendation, 0, len(recs))
	limit := math.Round(cond.MaxPosition*cond.PositionMultiplier*100) / 100

	for _, rec := range recs {
		r := *rec
		if mode == ModeOff {
			out = append(out, &r)
			continue
		}
		r.Snapshot.Market = cond
		r.Snapshot.Notes = append([]string(nil), rec.Snapshot.Notes...)

		var d contracts.Decision
		if rec.Decision != nil {
			d = *rec.Decision
			d.Reasons = append([]string(nil), rec.Decision.Reasons...)
		}

		switch {
		case !cond.MarketFilter && mode == ModeShadow:
			r.Snapshot.Notes = append(r.Snapshot.Notes, "risk gate (shadow): would block, market filter failed")
		case !cond.MarketFilter:
			d.Action = contracts.ActionNoTrade
			d.Position = 0
			d.Reasons = append(d.Reasons, "market filter failed: "+joinNotes(cond.Notes))
			r.Status = contracts.StatusNoTrade
			r.Decision = &d
		case d.Position > limit && mode == ModeShadow:
			r.Snapshot.Notes = append(r.Snapshot.Notes, fmt.Sprintf("risk gate (shadow): would cap position %.2f to %.2f", d.Position, limit))
		case d.Position > limit:
			d.Reasons = append(d.Reasons, fmt.Sprintf("position capped %.2f -> %.2f (risk %s)", d.Position, limit, cond.RiskLevel))
			d.Position = limit
			r.Decision = &d
		}
		out = append(out, &r)
	}

	if mode != ModeOff && !cond.MarketFilter {
		g.logger.WithFields(map[string]interface{}{
			"mode":            mode,
			"recommendations": len(recs),
		}).Warn("Market filter failed")
	}
	return out
}

func (g *Gate) trend(ctx context.Context, date time.Time) contracts.TrendSnapshot {
	// MA 계산에 충분한 거래일 확보 (휴장 고려 3배)
	from := date.AddDate(0, 0, -g.cfg.MADays*3-10)
	res, err := g.data.IndexBars(ctx, g.cfg.IndexCode, from, date)
	if err != nil {
		g.logger.WithError(err).Warn("Index bars unavailable")
		return Trend(g.cfg.IndexCode, nil, g.cfg.MADays, g.cfg.TrendTolerance)
	}
	t := Trend(g.cfg.IndexCode, res.Value, g.cfg.MADays, g.cfg.TrendTolerance)
	t.Source = res.Provider
	return t
}

func (g *Gate) leverage(ctx context.Context, date time.Time) *contracts.LeverageSnapshot {
	res, err := g.data.Margin(ctx, date)
	if err != nil {
		g.logger.WithError(err).Warn("Margin data unavailable")
		return nil
	}
	cur := marketdata.SumMargin(res.Value)

	var prev *marketdata.MarginSummary
	if pd, err := g.cal.PrevTradingDay(ctx, date); err == nil {
		if pr, err := g.data.Margin(ctx, pd.Date); err == nil {
			p := marketdata.SumMargin(pr.Value)
			prev = &p
		}
	}
	return Leverage(cur, prev)
}

func joinNotes(notes []string) string {
	if len(notes) == 0 {
		return "no detail"
	}
	return strings.Join(notes, "; ")
}
