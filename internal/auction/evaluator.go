package auction

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/fetch"
	"github.com/wonny/limitup/internal/marketdata"
	"github.com/wonny/limitup/internal/strategyconfig"
	"github.com/wonny/limitup/pkg/logger"
	"github.com/wonny/limitup/pkg/metrics"
)

// Evaluation modes
const (
	ModeLive       = "live"
	ModeHistorical = "historical"
)

// DataSource is the market data the auction evaluator reads
type DataSource interface {
	Auction(ctx context.Context, symbol string, date time.Time, liveOnly bool) (*fetch.Result[*marketdata.AuctionQuote], error)
	DailyBar(ctx context.Context, symbol string, date time.Time) (*marketdata.DailyBar, string, error)
	DailyBasics(ctx context.Context, symbol string, from, to time.Time) (*fetch.Result[[]marketdata.DailyBasic], error)
}

// WeightSource returns persisted factor weights
type WeightSource interface {
	GetFactorWeights(ctx context.Context) ([]contracts.FactorWeight, error)
}

// Evaluation is one recommendation re-scored with its auction
type Evaluation struct {
	Recommendation *contracts.Recommendation  `json:"recommendation"`
	Snapshot       *contracts.AuctionSnapshot `json:"snapshot"`
	AuctionScore   float64                    `json:"auction_score"`
	FinalScore     float64                    `json:"final_score"`
	Factors        map[string]float64         `json:"factors"`
	Decision       contracts.Decision         `json:"decision"`
}

// Drop records a candidate left out of the run
type Drop struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Outcome is the result of one auction run
type Outcome struct {
	Date       time.Time    `json:"date"`
	Window     Window       `json:"window"`
	State      State        `json:"state"` // evaluated | blocked
	Mode       string       `json:"mode"`
	Weights    string       `json:"weight_source"` // store | config
	Evaluated  []Evaluation `json:"evaluated"`
	Dropped    []Drop       `json:"dropped,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Blocked reports whether the run produced no decision
func (o *Outcome) Blocked() bool {
	return o.State == StateBlocked
}

// Top returns the n best evaluations
func (o *Outcome) Top(n int) []Evaluation {
	if n <= 0 || n > len(o.Evaluated) {
		n = len(o.Evaluated)
	}
	return o.Evaluated[:n]
}

// Evaluator re-scores T-day recommendations with T+1 auction data.
// Inside the window only live data is accepted and the run is bounded by the window deadline.
// ⭐ SSOT: 경매 윈도우 게이트는 여기서만 판단
type Evaluator struct {
	data    DataSource
	weights WeightSource // optional
	cfg     strategyconfig.AuctionConfig
	window  strategyconfig.TimeWindow
	loc     *time.Location
	now     func() time.Time
	metrics *metrics.Registry
	logger  *logger.Logger
}

// NewEvaluator creates an evaluator. weights may be nil (config defaults only).
func NewEvaluator(data DataSource, weights WeightSource, cfg *strategyconfig.Config, loc *time.Location, log *logger.Logger) *Evaluator {
	return &Evaluator{
		data:    data,
		weights: weights,
		cfg:     cfg.Auction,
		window:  cfg.Schedule.AuctionWindow,
		loc:     loc,
		now:     time.Now,
		logger:  log.WithComponent("auction"),
	}
}

// Weights returns the effective auction weights and where they came from.
// Stored weights win over config; an inactive factor scores 0.
func (e *Evaluator) Weights(ctx context.Context) (strategyconfig.AuctionWeights, string) {
	w := e.cfg.Weights
	if e.weights == nil {
		return w, "config"
	}

	rows, err := e.weights.GetFactorWeights(ctx)
	if err != nil {
		e.logger.WithError(err).Warn("Factor weights unavailable, using config defaults")
		return w, "config"
	}
	fields := map[string]*float64{
		FactorOpenChangePct:      &w.OpenChangePct,
		FactorVolumeRatio:        &w.VolumeRatio,
		FactorTurnoverRate:       &w.TurnoverRate,
		FactorAmount:             &w.Amount,
		FactorVolumeToTDayVolume: &w.VolumeToTDayVolume,
	}
	applied := 0
	for _, fw := range rows {
		field, ok := fields[fw.FactorID]
		if !ok {
			continue
		}
		if !fw.IsActive {
			*field = 0
		} else if fw.Weight > 0 {
			*field = fw.Weight
		}
		applied++
	}
	if applied == 0 {
		return e.cfg.Weights, "config"
	}
	return w, "store"
}

// WithClock overrides the wall clock
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// WithMetrics records run outcomes
func (e *Evaluator) WithMetrics(m *metrics.Registry) *Evaluator {
	e.metrics = m
	return e
}

// Window returns the auction window on day
func (e *Evaluator) Window(day time.Time) (Window, error) {
	return NewWindow(e.window, day, e.loc)
}

// State classifies the current time against day's window
func (e *Evaluator) State(day time.Time) (State, error) {
	w, err := e.Window(day)
	if err != nil {
		return "", err
	}
	return w.StateAt(e.now()), nil
}

// WaitForWindow blocks until day's window opens
func (e *Evaluator) WaitForWindow(ctx context.Context, day time.Time) error {
	w, err := e.Window(day)
	if err != nil {
		return err
	}
	if st := w.StateAt(e.now()); st == StateAwaitingWindow {
		e.logger.WithFields(map[string]interface{}{
			"date":   day.Format(contracts.DateLayout),
			"window": w.String(),
			"wait":   w.Start.Sub(e.now()).String(),
		}).Info("Waiting for auction window")
	}
	return w.WaitUntil(ctx, e.now)
}

// Evaluate scores recs for T+1 date. Recommendations are copied, never mutated.
func (e *Evaluator) Evaluate(ctx context.Context, date time.Time, recs []*contracts.Recommendation) (*Outcome, error) {
	w, err := e.Window(date)
	if err != nil {
		return nil, err
	}
	start := e.now()
	out := &Outcome{Date: date, Window: w, StartedAt: start}

	state := w.StateAt(start)
	if state == StateInWindow {
		out.Mode = ModeLive
	} else {
		out.Mode = ModeHistorical
		if state == StateAwaitingWindow {
			e.logger.WithField("window", w.String()).Warn("Evaluating before the auction window, historical mode")
		}
	}

	log := e.logger.WithFields(map[string]interface{}{
		"date": date.Format(contracts.DateLayout),
		"mode": out.Mode,
	})

	if len(recs) == 0 {
		return e.finish(out, StateBlocked, "no scored recommendations for this date"), nil
	}

	cfg := e.cfg
	cfg.Weights, out.Weights = e.Weights(ctx)

	if out.Mode == ModeLive {
		var cancel context.CancelFunc
		// 주입된 시계 기준으로 남은 윈도우 시간만큼 제한
		ctx, cancel = context.WithTimeout(ctx, w.Deadline().Sub(start))
		defer cancel()
	}

	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) && out.Mode == ModeLive {
				return e.windowClosed(out, recs), nil
			}
			return nil, err
		}

		ev, reason := e.evaluateOne(ctx, date, rec, out.Mode, cfg)
		if ev == nil {
			if out.Mode == ModeLive && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return e.windowClosed(out, recs), nil
			}
			out.Dropped = append(out.Dropped, Drop{Symbol: rec.Symbol, Reason: reason})
			log.WithFields(map[string]interface{}{
				"symbol": rec.Symbol,
				"reason": reason,
			}).Warn("Candidate dropped from auction run")
			continue
		}
		out.Evaluated = append(out.Evaluated, *ev)
	}

	if len(out.Evaluated) == 0 {
		return e.finish(out, StateBlocked, fmt.Sprintf("no live auction data: all %d candidates dropped", len(recs))), nil
	}

	sort.SliceStable(out.Evaluated, func(i, j int) bool {
		a, b := out.Evaluated[i], out.Evaluated[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		return a.Recommendation.Symbol < b.Recommendation.Symbol
	})

	return e.finish(out, StateEvaluated, ""), nil
}

func (e *Evaluator) windowClosed(out *Outcome, recs []*contracts.Recommendation) *Outcome {
	done := make(map[string]bool, len(out.Dropped))
	for _, d := range out.Dropped {
		done[d.Symbol] = true
	}
	for _, rec := range recs {
		if !done[rec.Symbol] {
			out.Dropped = append(out.Dropped, Drop{Symbol: rec.Symbol, Reason: "window closed"})
		}
	}
	// 윈도우 종료 시 부분 결과는 버림
	out.Evaluated = nil
	return e.finish(out, StateBlocked, "window closed at "+out.Window.Deadline().Format("15:04:05"))
}

func (e *Evaluator) finish(out *Outcome, state State, reason string) *Outcome {
	out.State = state
	out.Reason = reason
	out.FinishedAt = e.now()
	e.metrics.AuctionOutcome(string(state), out.Mode)

	fields := map[string]interface{}{
		"date":      out.Date.Format(contracts.DateLayout),
		"state":     state,
		"mode":      out.Mode,
		"evaluated": len(out.Evaluated),
		"dropped":   len(out.Dropped),
	}
	if state == StateBlocked {
		fields["reason"] = reason
		e.logger.WithFields(fields).Warn("Auction run blocked")
	} else {
		e.logger.WithFields(fields).Info("Auction run evaluated")
	}
	return out
}

// evaluateOne returns nil and a reason when the candidate must be dropped
func (e *Evaluator) evaluateOne(ctx context.Context, date time.Time, rec *contracts.Recommendation, mode string, cfg strategyconfig.AuctionConfig) (*Evaluation, string) {
	live := mode == ModeLive

	snap, err := e.snapshot(ctx, date, rec, live)
	if err != nil {
		if live {
			return nil, fmt.Sprintf("live auction data unavailable: %v", err)
		}
		snap = e.simulated(date, rec)
	}
	if live && snap.Tag != contracts.TagLive {
		return nil, fmt.Sprintf("non-live auction data from %s (%s)", snap.Source, snap.Tag)
	}

	var auctionScore float64
	var factors map[string]float64
	if snap.Tag == contracts.TagSimulated {
		auctionScore = e.cfg.Simulated.Score
	} else {
		auctionScore, factors = Score(snap, cfg)
	}
	final := Blend(rec.TDayScore, auctionScore, e.cfg.Blend)
	decision := Decide(final, snap, e.cfg.Decision)

	updated := *rec
	updated.AuctionScore = auctionScore
	updated.TotalScore = final
	updated.OpenChangePct = snap.OpenChangePct
	updated.Decision = &decision
	updated.Status = contracts.StatusEvaluated
	updated.UpdatedAt = e.now()
	updated.Snapshot.Auction = snap
	updated.Snapshot.Factors = mergeFactors(rec.Snapshot.Factors, factors)

	return &Evaluation{
		Recommendation: &updated,
		Snapshot:       snap,
		AuctionScore:   auctionScore,
		FinalScore:     final,
		Factors:        factors,
		Decision:       decision,
	}, ""
}

// snapshot fetches the auction quote and fills the derived fields
func (e *Evaluator) snapshot(ctx context.Context, date time.Time, rec *contracts.Recommendation, live bool) (*contracts.AuctionSnapshot, error) {
	res, err := e.data.Auction(ctx, rec.Symbol, date, live)
	if err != nil {
		return nil, err
	}
	q := res.Value

	snap := &contracts.AuctionSnapshot{
		Symbol:       rec.Symbol,
		Date:         date,
		Price:        q.Price,
		PreClose:     q.PreClose,
		Volume:       q.Volume,
		Amount:       q.Amount,
		TurnoverRate: q.TurnoverRate,
		VolumeRatio:  1.0,
		Tag:          res.Tag,
		Source:       res.Provider,
	}
	if gap, ok := q.OpenChangePct(); ok {
		snap.OpenChangePct = ClampGap(gap, e.cfg.MaxGapPct)
	}

	switch {
	case q.HasVolumeRatio:
		snap.VolumeRatio = q.VolumeRatio
	case !live:
		// 과거 경매 데이터에는 량비가 없어 daily_basic으로 보충
		if b, err := e.data.DailyBasics(ctx, rec.Symbol, date, date); err == nil && len(b.Value) > 0 && b.Value[0].HasVolumeRatio {
			snap.VolumeRatio = b.Value[0].VolumeRatio
		}
	}

	if bar, _, err := e.data.DailyBar(ctx, rec.Symbol, rec.TradeDate); err == nil {
		snap.TDayVolume = bar.Volume
	} else {
		e.logger.WithFields(map[string]interface{}{
			"symbol": rec.Symbol,
			"date":   rec.TradeDate.Format(contracts.DateLayout),
			"error":  err.Error(),
		}).Warn("T-day volume unavailable, persistence tier scores 0")
	}
	return snap, nil
}

func (e *Evaluator) simulated(date time.Time, rec *contracts.Recommendation) *contracts.AuctionSnapshot {
	e.logger.WithSymbol(rec.Symbol).Debug("No auction data, using simulated snapshot")
	return &contracts.AuctionSnapshot{
		Symbol:        rec.Symbol,
		Date:          date,
		OpenChangePct: e.cfg.Simulated.OpenChangePct,
		VolumeRatio:   e.cfg.Simulated.VolumeRatio,
		Tag:           contracts.TagSimulated,
		Source:        "simulated",
	}
}

func mergeFactors(tDay, auction map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(tDay)+len(auction))
	for k, v := range tDay {
		out[k] = v
	}
	for k, v := range auction {
		out[k] = v
	}
	return out
}
