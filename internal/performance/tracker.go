package performance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/limitup/internal/calendar"
	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/fetch"
	"github.com/wonny/limitup/internal/marketdata"
	"github.com/wonny/limitup/internal/store"
	"github.com/wonny/limitup/internal/strategyconfig"
	"github.com/wonny/limitup/pkg/logger"
	"github.com/wonny/limitup/pkg/metrics"
)

// DataSource supplies the prices a position is valued with
type DataSource interface {
	DailyBar(ctx context.Context, symbol string, date time.Time) (*marketdata.DailyBar, string, error)
	DailyBars(ctx context.Context, symbol string, from, to time.Time) (*fetch.Result[[]marketdata.DailyBar], error)
}

// Calendar resolves the sell day after the buy day
type Calendar interface {
	NextTradingDay(ctx context.Context, date time.Time) (calendar.Resolution, error)
}

// Outcome labels of a single tracking pass
const (
	OutcomeClosed  = "closed"
	OutcomePending = "pending"
	OutcomeSkipped = "skipped"
	OutcomeKept    = "kept" // already closed, left alone
)

// Position is the tracking result of one recommendation
type Position struct {
	RecommendationID string                       `json:"recommendation_id"`
	Symbol           string                       `json:"symbol"`
	Outcome          string                       `json:"outcome"`
	Reason           string                       `json:"reason,omitempty"`
	Record           *contracts.PerformanceRecord `json:"record,omitempty"`
}

// SyncResult summarizes a Sync pass
type SyncResult struct {
	From      time.Time  `json:"from"`
	To        time.Time  `json:"to"`
	Checked   int        `json:"checked"`
	Closed    int        `json:"closed"`
	Pending   int        `json:"pending"`
	Skipped   int        `json:"skipped"`
	Kept      int        `json:"kept"`
	Positions []Position `json:"positions"`
}

// Tracker values recommendations as simulated T+1 open buys sold at the T+2 close
// ⭐ SSOT: 성과 레코드는 Tracker만 생성
type Tracker struct {
	data    DataSource
	cal     Calendar
	store   store.Store
	cfg     strategyconfig.TrackerConfig
	loc     *time.Location
	now     func() time.Time
	simSeed int64
	metrics *metrics.Registry
	logger  *logger.Logger
}

// NewTracker creates a tracker
func NewTracker(data DataSource, cal Calendar, st store.Store, cfg *strategyconfig.Config, loc *time.Location, m *metrics.Registry, log *logger.Logger) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Tracker{
		data:    data,
		cal:     cal,
		store:   st,
		cfg:     cfg.Tracker,
		loc:     loc,
		now:     time.Now,
		metrics: m,
		logger:  log.WithComponent("performance"),
	}
}

// WithClock overrides the wall clock (tests)
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// WithSimulationSeed fixes the outlook bootstrap seed (tests)
func (t *Tracker) WithSimulationSeed(seed int64) *Tracker {
	t.simSeed = seed
	return t
}

// Sync tracks every recommendation whose T+1 date falls in [from, to].
// Closed records are left alone, so repeated runs only fill in what is missing.
func (t *Tracker) Sync(ctx context.Context, from, to time.Time) (*SyncResult, error) {
	// T일은 T+1보다 앞서므로 거래일 범위를 넉넉히 잡고 T+1로 다시 거른다
	recs, err := t.store.ListRecommendations(ctx, store.RecommendationFilter{
		Range: contracts.DateRange{From: from.AddDate(0, 0, -15), To: to},
	})
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}

	window := contracts.DateRange{From: from, To: to}
	res := &SyncResult{From: from, To: to, Positions: make([]Position, 0)}
	for _, rec := range recs {
		if !window.Contains(rec.T1Date) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Checked++
		pos, err := t.track(ctx, rec, false)
		if err != nil {
			return res, err
		}
		switch pos.Outcome {
		case OutcomeClosed:
			res.Closed++
		case OutcomePending:
			res.Pending++
		case OutcomeSkipped:
			res.Skipped++
		case OutcomeKept:
			res.Kept++
		}
		t.metrics.TrackedPosition(pos.Outcome)
		res.Positions = append(res.Positions, pos)
	}

	t.logger.WithFields(map[string]interface{}{
		"from":    from.Format(contracts.DateLayout),
		"to":      to.Format(contracts.DateLayout),
		"checked": res.Checked,
		"closed":  res.Closed,
		"pending": res.Pending,
		"skipped": res.Skipped,
	}).Info("Performance sync completed")
	return res, nil
}

// Recalculate re-values one recommendation even when it is already closed
func (t *Tracker) Recalculate(ctx context.Context, recID string) (Position, error) {
	rec, err := t.store.GetRecommendation(ctx, recID)
	if err != nil {
		return Position{}, err
	}
	return t.track(ctx, rec, true)
}

// track values one recommendation. Only store failures are returned as errors;
// missing market data ends as skipped or pending.
func (t *Tracker) track(ctx context.Context, rec *contracts.Recommendation, force bool) (Position, error) {
	pos := Position{RecommendationID: rec.ID, Symbol: rec.Symbol}
	log := t.logger.WithFields(map[string]interface{}{
		"rec_id": rec.ID,
		"symbol": rec.Symbol,
	})

	if !force {
		existing, err := t.store.GetPerformance(ctx, rec.ID)
		switch {
		case err == nil && existing.IsClosed():
			pos.Outcome, pos.Record = OutcomeKept, existing
			return pos, nil
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return pos, err
		}
	}

	trades, err := t.store.ListTradesFor(ctx, rec.ID)
	if err != nil {
		return pos, err
	}
	buy, sell := legs(trades)

	// ===== 1. Buy leg: T+1 open =====
	if buy == nil || force {
		bar, provider, err := t.data.DailyBar(ctx, rec.Symbol, rec.T1Date)
		if err != nil || bar.Open <= 0 {
			pos.Outcome, pos.Reason = OutcomeSkipped, reasonf("no T+1 open", err)
			log.WithField("reason", pos.Reason).Warn("Cannot value buy leg")
			return pos, nil
		}
		buy = contracts.NewTrade(rec.ID, contracts.SideBuy, t.day(rec.T1Date), t.cfg.BuyTime, bar.Open, t.cfg.Quantity, contracts.TradeSimulated)
		buy.Notes = "open via " + provider
		if err := t.store.RecordTrade(ctx, buy); err != nil {
			return pos, err
		}
	}

	record := &contracts.PerformanceRecord{
		RecommendationID: rec.ID,
		Symbol:           rec.Symbol,
		BuyDate:          buy.Date,
		BuyPrice:         buy.Price,
		WinLoss:          contracts.Pending,
		CalculatedAt:     t.now(),
	}

	// ===== 2. Sell leg: next trading day close =====
	if sell == nil || force {
		var reason string
		sell, reason = t.sellLeg(ctx, rec, buy)
		if sell == nil {
			pos.Outcome, pos.Reason, pos.Record = OutcomePending, reason, record
			if err := t.store.RecordPerformance(ctx, record); err != nil {
				return pos, err
			}
			log.WithField("reason", reason).Debug("Position pending")
			return pos, nil
		}
		if err := t.store.RecordTrade(ctx, sell); err != nil {
			return pos, err
		}
	}

	// ===== 3. Close the record =====
	sellDate, sellPrice := sell.Date, sell.Price
	record.SellDate = &sellDate
	record.SellPrice = &sellPrice
	record.HoldingDays = int(sellDate.Sub(buy.Date).Hours() / 24)
	record.ReturnPct = contracts.ReturnPct(buy.Price, sell.Price)
	record.WinLoss = contracts.ClassifyReturn(record.ReturnPct)
	record.MaxDrawdownPct = t.drawdown(ctx, rec.Symbol, buy.Date, sellDate)
	record.SharpeLike = contracts.SharpeLike(record.ReturnPct, record.MaxDrawdownPct)

	if err := t.store.RecordPerformance(ctx, record); err != nil {
		return pos, err
	}
	pos.Outcome, pos.Record = OutcomeClosed, record

	log.WithFields(map[string]interface{}{
		"return_pct": record.ReturnPct,
		"win_loss":   record.WinLoss,
	}).Debug("Position closed")
	return pos, nil
}

func (t *Tracker) sellLeg(ctx context.Context, rec *contracts.Recommendation, buy *contracts.Trade) (*contracts.Trade, string) {
	next, err := t.cal.NextTradingDay(ctx, buy.Date)
	if err != nil {
		return nil, reasonf("sell day unresolved", err)
	}
	sellDay := t.day(next.Date)
	if sellDay.After(t.day(t.now())) {
		return nil, "sell day " + sellDay.Format(contracts.DateLayout) + " not reached"
	}

	bar, provider, err := t.data.DailyBar(ctx, rec.Symbol, sellDay)
	if err != nil || bar.Close <= 0 {
		return nil, reasonf("no close on "+sellDay.Format(contracts.DateLayout), err)
	}
	sell := contracts.NewTrade(rec.ID, contracts.SideSell, sellDay, t.cfg.SellTime, bar.Close, buy.Quantity, contracts.TradeSimulated)
	sell.Notes = "close via " + provider
	if next.Degraded() {
		sell.Notes += " (calendar " + string(next.Confidence) + ")"
	}
	return sell, ""
}

// drawdown is peak-to-close over the daily closes between buy and sell; 0 when unavailable
func (t *Tracker) drawdown(ctx context.Context, symbol string, from, to time.Time) float64 {
	res, err := t.data.DailyBars(ctx, symbol, from, to)
	if err != nil {
		t.logger.WithError(err).WithSymbol(symbol).Debug("Drawdown bars unavailable")
		return 0
	}
	closes := make([]float64, 0, len(res.Value))
	for _, b := range res.Value {
		closes = append(closes, b.Close)
	}
	return PathDrawdown(closes)
}

func (t *Tracker) day(d time.Time) time.Time {
	d = d.In(t.loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.loc)
}

// legs picks the usable buy and sell trades; cancelled and pending fills are ignored
func legs(trades []*contracts.Trade) (buy, sell *contracts.Trade) {
	for _, tr := range trades {
		if tr.Status != contracts.TradeCompleted && tr.Status != contracts.TradeSimulated {
			continue
		}
		switch tr.Side {
		case contracts.SideBuy:
			if buy == nil {
				buy = tr
			}
		case contracts.SideSell:
			sell = tr
		}
	}
	return buy, sell
}

func reasonf(what string, err error) string {
	if err == nil {
		return what
	}
	return what + ": " + err.Error()
}
