package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/limitup/internal/auction"
	"github.com/wonny/limitup/internal/calendar"
	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/notify"
	"github.com/wonny/limitup/internal/scoring"
	"github.com/wonny/limitup/internal/store"
	"github.com/wonny/limitup/internal/strategyconfig"
	"github.com/wonny/limitup/pkg/logger"
)

// Fixed historical pair used by the smoke-test mode
const (
	TestTDate  = "20240221"
	TestT1Date = "20240222"
)

// ErrLowConfidenceCalendar is returned when the T+1 day could only be guessed
var ErrLowConfidenceCalendar = errors.New("pipeline: trading day not confirmed by calendar data")

// Calendar resolves trading days
type Calendar interface {
	NextTradingDay(ctx context.Context, d time.Time) (calendar.Resolution, error)
	PrevTradingDay(ctx context.Context, d time.Time) (calendar.Resolution, error)
	IsTradingDay(ctx context.Context, d time.Time) (bool, calendar.Resolution, error)
}

// Scorer runs the T-day scoring pass
type Scorer interface {
	Run(ctx context.Context, date time.Time) (*scoring.Result, error)
}

// Evaluator runs the T+1 auction pass
type Evaluator interface {
	WaitForWindow(ctx context.Context, day time.Time) error
	Evaluate(ctx context.Context, date time.Time, recs []*contracts.Recommendation) (*auction.Outcome, error)
}

// Gate assesses the market and applies it to recommendations
type Gate interface {
	Assess(ctx context.Context, date time.Time) *contracts.MarketCondition
	Apply(cond *contracts.MarketCondition, recs []*contracts.Recommendation) []*contracts.Recommendation
}

// Orchestrator coordinates the T-day and T+1 stages
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	cal       Calendar
	scorer    Scorer
	evaluator Evaluator
	gate      Gate
	store     store.Store
	notifier  notify.Notifier

	topN        int
	finalCount  int
	configHash  string
	destination string

	now    func() time.Time
	logger *logger.Logger
}

// NewOrchestrator creates an orchestrator. notifier may be nil.
func NewOrchestrator(
	cal Calendar,
	scorer Scorer,
	evaluator Evaluator,
	gate Gate,
	st store.Store,
	notifier notify.Notifier,
	cfg *strategyconfig.Config,
	log *logger.Logger,
) *Orchestrator {
	o := &Orchestrator{
		cal:        cal,
		scorer:     scorer,
		evaluator:  evaluator,
		gate:       gate,
		store:      st,
		notifier:   notifier,
		topN:       cfg.TDay.TopN,
		finalCount: cfg.Auction.FinalCount,
		now:        time.Now,
		logger:     log.WithComponent("pipeline"),
	}
	if hash, err := strategyconfig.Hash(cfg); err == nil {
		o.configHash = hash
	} else {
		o.logger.WithError(err).Warn("Strategy config hash unavailable")
	}
	return o
}

// WithClock overrides the wall clock
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// WithDestination sets the notification destination id
func (o *Orchestrator) WithDestination(dest string) *Orchestrator {
	o.destination = dest
	return o
}

// TDayResult is one T-day run
type TDayResult struct {
	RunID           string                      `json:"run_id"`
	Date            time.Time                   `json:"date"`
	T1Date          time.Time                   `json:"t1_date"`
	T1Calendar      calendar.Resolution         `json:"t1_calendar"`
	Skipped         bool                        `json:"skipped"`
	Reason          string                      `json:"reason,omitempty"`
	Scoring         *scoring.Result             `json:"scoring,omitempty"`
	Recommendations []*contracts.Recommendation `json:"recommendations"`
	Condition       *contracts.MarketCondition  `json:"condition,omitempty"`
	Duration        time.Duration               `json:"duration"`
}

// AuctionResult is one T+1 run
type AuctionResult struct {
	RunID           string                      `json:"run_id"`
	Date            time.Time                   `json:"date"`
	Skipped         bool                        `json:"skipped"`
	Reason          string                      `json:"reason,omitempty"`
	Outcome         *auction.Outcome            `json:"outcome,omitempty"`
	Condition       *contracts.MarketCondition  `json:"condition,omitempty"`
	Recommendations []*contracts.Recommendation `json:"recommendations"` // every persisted row of the run
	Picks           []auction.Evaluation        `json:"picks"`
	Duration        time.Duration               `json:"duration"`
}

// Blocked reports whether the auction run produced no decision
func (r *AuctionResult) Blocked() bool {
	return r.Outcome != nil && r.Outcome.Blocked()
}

// FullResult chains a T-day run and its T+1 run
type FullResult struct {
	RunID   string         `json:"run_id"`
	TDay    *TDayResult    `json:"t_day"`
	Auction *AuctionResult `json:"t1_auction,omitempty"`
}

// RunTDay scores date's limit-up list and persists the top-N as recommendations for T+1
func (o *Orchestrator) RunTDay(ctx context.Context, date time.Time) (*TDayResult, error) {
	start := o.now()
	res := &TDayResult{RunID: uuid.NewString(), Date: date}
	log := o.logger.WithFields(map[string]interface{}{
		"run_id": res.RunID,
		"stage":  "t_day",
		"date":   date.Format(contracts.DateLayout),
	})
	log.Info("Starting T-day run")

	// ===== 1. Calendar =====
	open, cal, err := o.cal.IsTradingDay(ctx, date)
	if err != nil {
		return res, fmt.Errorf("t-day calendar: %w", err)
	}
	if !open {
		res.Skipped = true
		res.Reason = fmt.Sprintf("%s is not a trading day (%s)", date.Format(contracts.DateLayout), cal.Source)
		log.WithField("reason", res.Reason).Info("T-day run skipped")
		return res, nil
	}
	if cal.Degraded() {
		log.Warn("Trading day inferred from weekday heuristic")
	}

	// ===== 2. Scoring =====
	scored, err := o.scorer.Run(ctx, date)
	if err != nil {
		return res, fmt.Errorf("t-day scoring: %w", err)
	}
	res.Scoring = scored

	// ===== 3. Hand-off date =====
	next, err := o.cal.NextTradingDay(ctx, date)
	if err != nil {
		return res, fmt.Errorf("t-day next trading day: %w", err)
	}
	res.T1Date = next.Date
	res.T1Calendar = next

	// ===== 4. Persist =====
	now := o.now()
	for _, sc := range scored.Top(o.topN) {
		rec := contracts.NewRecommendation(sc, next.Date, o.configHash, now)
		if prev, err := o.store.GetRecommendation(ctx, rec.ID); err == nil && prev.Status != contracts.StatusScored {
			// T+1 결과가 이미 있으면 유지
			log.WithFields(map[string]interface{}{
				"symbol": rec.Symbol,
				"status": prev.Status,
			}).Warn("Recommendation already past the T-day stage, kept as is")
			res.Recommendations = append(res.Recommendations, prev)
			continue
		}
		if err := o.store.UpsertRecommendation(ctx, rec); err != nil {
			return res, fmt.Errorf("persist recommendation %s: %w", rec.Symbol, err)
		}
		res.Recommendations = append(res.Recommendations, rec)
	}

	// ===== 5. Notify =====
	res.Condition = o.gate.Assess(ctx, date)
	o.send(ctx, notify.TDay(date, res.Recommendations, res.Condition))

	res.Duration = o.now().Sub(start)
	log.WithFields(map[string]interface{}{
		"t1_date":         next.Date.Format(contracts.DateLayout),
		"candidates":      scored.Total,
		"recommendations": len(res.Recommendations),
		"duration":        res.Duration.String(),
	}).Info("T-day run completed")
	return res, nil
}

// RunAuction evaluates the recommendations handed to date (their T1Date).
// wait blocks until the auction window opens; the scheduler fires slightly early.
func (o *Orchestrator) RunAuction(ctx context.Context, date time.Time, wait bool) (*AuctionResult, error) {
	start := o.now()
	res := &AuctionResult{RunID: uuid.NewString(), Date: date}
	log := o.logger.WithFields(map[string]interface{}{
		"run_id": res.RunID,
		"stage":  "t1_auction",
		"date":   date.Format(contracts.DateLayout),
	})
	log.Info("Starting T+1 run")

	// ===== 1. Calendar =====
	open, cal, err := o.cal.IsTradingDay(ctx, date)
	if err != nil {
		return res, fmt.Errorf("t+1 calendar: %w", err)
	}
	if cal.Degraded() {
		// 휴리스틱 결과는 거래일 증명으로 인정하지 않음
		res.Skipped = true
		res.Reason = ErrLowConfidenceCalendar.Error()
		log.WithField("source", cal.Source).Warn("T+1 run skipped, calendar confidence low")
		return res, nil
	}
	if !open {
		res.Skipped = true
		res.Reason = fmt.Sprintf("%s is not a trading day", date.Format(contracts.DateLayout))
		log.WithField("reason", res.Reason).Info("T+1 run skipped")
		return res, nil
	}

	// ===== 2. Hand-off from the T-day run =====
	recs, err := o.store.ListRecommendations(ctx, store.RecommendationFilter{T1Date: date})
	if err != nil {
		return res, fmt.Errorf("load recommendations for %s: %w", date.Format(contracts.DateLayout), err)
	}

	// ===== 3. Market condition (T-day close) =====
	tDate, err := o.tradeDate(ctx, date, recs)
	if err != nil {
		return res, err
	}
	res.Condition = o.gate.Assess(ctx, tDate)

	// ===== 4. Auction =====
	if wait {
		if err := o.evaluator.WaitForWindow(ctx, date); err != nil {
			return res, fmt.Errorf("wait for auction window: %w", err)
		}
	}
	out, err := o.evaluator.Evaluate(ctx, date, recs)
	if err != nil {
		return res, fmt.Errorf("auction evaluate: %w", err)
	}
	res.Outcome = out

	// ===== 5. Persist + notify =====
	if out.Blocked() {
		if err := o.persistBlocked(ctx, res, recs, out); err != nil {
			return res, err
		}
		o.send(ctx, notify.Blocked(out))
	} else {
		if err := o.persistEvaluated(ctx, res, recs, out); err != nil {
			return res, err
		}
		o.send(ctx, notify.Recommendations(out, res.Picks, res.Condition))
	}

	res.Duration = o.now().Sub(start)
	log.WithFields(map[string]interface{}{
		"state":     out.State,
		"mode":      out.Mode,
		"evaluated": len(out.Evaluated),
		"dropped":   len(out.Dropped),
		"picks":     len(res.Picks),
		"duration":  res.Duration.String(),
	}).Info("T+1 run completed")
	return res, nil
}

// Full runs T-day on tDate and then T+1 on the following trading day, outside the window
func (o *Orchestrator) Full(ctx context.Context, tDate time.Time) (*FullResult, error) {
	res := &FullResult{RunID: uuid.NewString()}

	tday, err := o.RunTDay(ctx, tDate)
	res.TDay = tday
	if err != nil {
		return res, err
	}
	if tday.Skipped {
		return res, nil
	}

	t1, err := o.RunAuction(ctx, tday.T1Date, false)
	res.Auction = t1
	return res, err
}

// Test runs the full pipeline on the fixed historical pair
func (o *Orchestrator) Test(ctx context.Context, loc *time.Location) (*FullResult, error) {
	tDate, err := time.ParseInLocation(contracts.DateLayout, TestTDate, loc)
	if err != nil {
		return nil, err
	}
	res, err := o.Full(ctx, tDate)
	if err == nil && res.TDay != nil && !res.TDay.Skipped && res.TDay.T1Date.Format(contracts.DateLayout) != TestT1Date {
		o.logger.WithField("t1_date", res.TDay.T1Date.Format(contracts.DateLayout)).Warn("Test pair resolved to an unexpected T+1 date")
	}
	return res, err
}

// tradeDate is the T day behind date's recommendations
func (o *Orchestrator) tradeDate(ctx context.Context, date time.Time, recs []*contracts.Recommendation) (time.Time, error) {
	if len(recs) > 0 {
		return recs[0].TradeDate, nil
	}
	prev, err := o.cal.PrevTradingDay(ctx, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("t+1 previous trading day: %w", err)
	}
	return prev.Date, nil
}

func (o *Orchestrator) persistBlocked(ctx context.Context, res *AuctionResult, recs []*contracts.Recommendation, out *auction.Outcome) error {
	reasons := dropReasons(out)
	now := o.now()
	for _, rec := range recs {
		r := *rec
		r.Status = contracts.StatusBlocked
		r.UpdatedAt = now
		r.Snapshot.Market = res.Condition
		r.Snapshot.Notes = append(append([]string(nil), rec.Snapshot.Notes...), blockedNote(out.Reason, reasons[rec.Symbol]))
		if err := o.store.UpsertRecommendation(ctx, &r); err != nil {
			return fmt.Errorf("persist blocked %s: %w", r.Symbol, err)
		}
		res.Recommendations = append(res.Recommendations, &r)
	}
	return nil
}

func (o *Orchestrator) persistEvaluated(ctx context.Context, res *AuctionResult, recs []*contracts.Recommendation, out *auction.Outcome) error {
	evaluated := make([]*contracts.Recommendation, len(out.Evaluated))
	for i, ev := range out.Evaluated {
		evaluated[i] = ev.Recommendation
	}
	gated := o.gate.Apply(res.Condition, evaluated)

	for i, r := range gated {
		if err := o.store.UpsertRecommendation(ctx, r); err != nil {
			return fmt.Errorf("persist evaluated %s: %w", r.Symbol, err)
		}
		res.Recommendations = append(res.Recommendations, r)

		ev := out.Evaluated[i]
		ev.Recommendation = r
		if r.Decision != nil {
			ev.Decision = *r.Decision
		}
		if o.finalCount <= 0 || len(res.Picks) < o.finalCount {
			res.Picks = append(res.Picks, ev)
		}
	}

	// 라이브 데이터가 없어 빠진 후보는 blocked로 남김
	reasons := dropReasons(out)
	now := o.now()
	for _, rec := range recs {
		reason, dropped := reasons[rec.Symbol]
		if !dropped {
			continue
		}
		r := *rec
		r.Status = contracts.StatusBlocked
		r.UpdatedAt = now
		r.Snapshot.Market = res.Condition
		r.Snapshot.Notes = append(append([]string(nil), rec.Snapshot.Notes...), "auction dropped: "+reason)
		if err := o.store.UpsertRecommendation(ctx, &r); err != nil {
			return fmt.Errorf("persist dropped %s: %w", r.Symbol, err)
		}
		res.Recommendations = append(res.Recommendations, &r)
	}
	return nil
}

func (o *Orchestrator) send(ctx context.Context, msg notify.Message) {
	notify.Send(ctx, o.notifier, notify.Stamp(msg, o.destination, o.now()), o.logger)
}

func dropReasons(out *auction.Outcome) map[string]string {
	m := make(map[string]string, len(out.Dropped))
	for _, d := range out.Dropped {
		m[d.Symbol] = d.Reason
	}
	return m
}

func blockedNote(runReason, symbolReason string) string {
	switch {
	case symbolReason != "" && runReason != "":
		return fmt.Sprintf("auction blocked: %s (%s)", runReason, symbolReason)
	case symbolReason != "":
		return "auction blocked: " + symbolReason
	default:
		return "auction blocked: " + runReason
	}
}
