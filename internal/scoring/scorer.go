package scoring

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
)

// DataSource is the market data the T-day scorer reads
type DataSource interface {
	RestrictedLister
	LimitUps(ctx context.Context, date time.Time) (*fetch.Result[[]contracts.Candidate], error)
	DailyBasics(ctx context.Context, symbol string, from, to time.Time) (*fetch.Result[[]marketdata.DailyBasic], error)
	DailyBars(ctx context.Context, symbol string, from, to time.Time) (*fetch.Result[[]marketdata.DailyBar], error)
	Auction(ctx context.Context, symbol string, date time.Time, liveOnly bool) (*fetch.Result[*marketdata.AuctionQuote], error)
	MoneyFlow(ctx context.Context, symbol string, date time.Time) (*fetch.Result[*marketdata.MoneyFlow], error)
	SectorFlows(ctx context.Context, date time.Time) (*fetch.Result[[]marketdata.SectorFlow], error)
	TopList(ctx context.Context, symbol string, date time.Time) (*fetch.Result[*marketdata.TopListEntry], error)
}

// WeightSource returns persisted factor weights
type WeightSource interface {
	GetFactorWeights(ctx context.Context) ([]contracts.FactorWeight, error)
}

// Scorer computes T-day composite scores
// ⭐ SSOT: T일 점수 계산은 여기서만
type Scorer struct {
	data    DataSource
	weights WeightSource // optional
	cfg     strategyconfig.TDayConfig
	logger  *logger.Logger
}

// NewScorer creates a scorer. weights may be nil (config defaults only).
func NewScorer(data DataSource, weights WeightSource, cfg *strategyconfig.Config, log *logger.Logger) *Scorer {
	return &Scorer{
		data:    data,
		weights: weights,
		cfg:     cfg.TDay,
		logger:  log.WithComponent("scoring"),
	}
}

// Result is one T-day scoring run
type Result struct {
	Date           time.Time                   `json:"date"`
	Provider       string                      `json:"provider"`
	Total          int                         `json:"total"`
	Filter         FilterResult                `json:"filter"`
	Scored         []contracts.ScoredCandidate `json:"scored"`
	Weights        map[string]float64          `json:"weights"`
	WeightSource   string                      `json:"weight_source"`
	Budget         float64                     `json:"budget"`
	SectorDegraded bool                        `json:"sector_degraded"`
}

// Top returns the n best candidates
func (r *Result) Top(n int) []contracts.ScoredCandidate {
	if n <= 0 || n > len(r.Scored) {
		n = len(r.Scored)
	}
	return r.Scored[:n]
}

// Run fetches, filters and scores the limit-up list of date.
// An empty limit-up list is a valid, empty result.
func (s *Scorer) Run(ctx context.Context, date time.Time) (*Result, error) {
	res := &Result{Date: date}

	list, err := s.data.LimitUps(ctx, date)
	if err != nil {
		if isAllEmpty(err) {
			s.logger.WithDate(date).Warn("No limit-up candidates for date")
			res.Weights, res.WeightSource = s.Weights(ctx)
			res.Budget = sumWeights(res.Weights)
			return res, nil
		}
		return nil, fmt.Errorf("limit-up list %s: %w", date.Format(contracts.DateLayout), err)
	}
	res.Provider = list.Provider
	res.Total = len(list.Value)

	res.Filter = Filter(ctx, s.data, date, list.Value, s.cfg.ExcludedPrefixes, s.logger)

	var flows []marketdata.SectorFlow
	if sf, err := s.data.SectorFlows(ctx, date); err == nil {
		flows = sf.Value
	} else {
		s.logger.WithFields(map[string]interface{}{
			"date":  date.Format(contracts.DateLayout),
			"error": err.Error(),
		}).Warn("Sector flows unavailable, hot sector falls back to count-only")
	}
	heat := NewSectorHeat(s.cfg.HotSector, list.Value, flows)
	res.SectorDegraded = heat.Degraded()

	res.Weights, res.WeightSource = s.Weights(ctx)
	res.Budget = sumWeights(res.Weights)
	res.Scored = s.Score(ctx, date, res.Filter.Kept, heat, res.Weights)

	fields := map[string]interface{}{
		"date":          date.Format(contracts.DateLayout),
		"candidates":    res.Total,
		"scored":        len(res.Scored),
		"weight_source": res.WeightSource,
	}
	if len(res.Scored) > 0 {
		fields["top_symbol"] = res.Scored[0].Symbol
		fields["top_score"] = res.Scored[0].Score
	}
	s.logger.WithFields(fields).Info("T-day scoring completed")

	return res, nil
}

// Score scores candidates and sorts them by score (desc), then symbol
func (s *Scorer) Score(ctx context.Context, date time.Time, candidates []contracts.Candidate, heat *SectorHeat, weights map[string]float64) []contracts.ScoredCandidate {
	out := make([]contracts.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		out = append(out, s.scoreOne(ctx, date, c, heat, weights))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Weights returns the effective factor weights and where they came from
func (s *Scorer) Weights(ctx context.Context) (map[string]float64, string) {
	weights := s.cfg.Weights.Map()
	if s.weights == nil {
		return weights, "config"
	}

	rows, err := s.weights.GetFactorWeights(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Factor weights unavailable, using config defaults")
		return weights, "config"
	}
	applied := 0
	for _, fw := range rows {
		if _, ok := weights[fw.FactorID]; !ok {
			continue
		}
		if !fw.IsActive {
			weights[fw.FactorID] = 0
		} else if fw.Weight > 0 {
			weights[fw.FactorID] = fw.Weight
		}
		applied++
	}
	if applied == 0 {
		return weights, "config"
	}
	return weights, "store"
}

// scoreOne never fails: a factor whose data errors contributes 0 and leaves a note
func (s *Scorer) scoreOne(ctx context.Context, date time.Time, c contracts.Candidate, heat *SectorHeat, weights map[string]float64) contracts.ScoredCandidate {
	b := contracts.NewScoreBreakdown()
	attrs := c.Attributes

	set := func(factor string, ratio float64) {
		if ratio < 0 {
			ratio = 0
		}
		if ratio > 1 {
			ratio = 1
		}
		v := ratio * weights[factor]
		b.Factors[factor] = v
		b.Groups[FactorGroups[factor]] += v
	}
	fail := func(factor string, err error) {
		set(factor, 0)
		b.Notes = append(b.Notes, fmt.Sprintf("%s: %v", factor, err))
		s.logger.WithFields(map[string]interface{}{
			"symbol": c.Symbol,
			"factor": factor,
			"error":  err.Error(),
		}).Warn("Factor data unavailable, contributes 0")
	}
	for _, g := range Groups {
		b.Groups[g] = 0
	}

	// 1. timing
	ratio, hour, ok := TimingRatio(attrs.FirstLimitTime)
	if !ok {
		b.Notes = append(b.Notes, "first_limit_time missing, half weight")
	}
	b.Inputs["first_limit_hour"] = float64(hour)
	set(FactorFirstLimitTime, ratio)

	// 2. order quality
	b.Inputs["seal_ratio"] = attrs.SealRatio()
	b.Inputs["seal_to_mv"] = attrs.SealToMV()
	set(FactorBuyToSellRatio, SealRatioRatio(attrs.SealRatio()))
	set(FactorOrderAmountToCircMV, SealToMVRatio(attrs.SealToMV()))

	// 3. liquidity
	b.Inputs["turnover_rate"] = attrs.TurnoverRate
	set(FactorTurnoverRate, TurnoverBellRatio(attrs.TurnoverRate))

	basics, basicsErr := s.basics(ctx, c.Symbol, date)
	if t20, err := s.turnover20(basics, basicsErr); err != nil {
		fail(FactorTurnoverRateTo20MA, err)
	} else {
		b.Inputs["turnover_20ma_ratio"] = t20
		set(FactorTurnoverRateTo20MA, Turnover20Ratio(t20))
	}

	if vr, src, err := s.volumeRatio(ctx, c.Symbol, date, basics, basicsErr); err != nil {
		fail(FactorVolumeRatio, err)
	} else {
		b.Inputs["volume_ratio"] = vr
		if src != "" {
			b.Notes = append(b.Notes, "volume_ratio from "+src)
		}
		set(FactorVolumeRatio, VolumeRatioRatio(vr))
	}

	// 4. money flow
	if flow, err := s.data.MoneyFlow(ctx, c.Symbol, date); err != nil {
		if isAllEmpty(err) {
			set(FactorMainNetAmount, 0)
			set(FactorMainNetRatio, 0)
			set(FactorMediumNetAmount, 0)
		} else {
			fail(FactorMainNetAmount, err)
			fail(FactorMainNetRatio, err)
			fail(FactorMediumNetAmount, err)
		}
	} else {
		f := flow.Value
		b.Inputs["main_net_amount"] = f.MainNetAmount
		b.Inputs["main_net_ratio"] = f.MainNetRatio
		b.Inputs["medium_net_amount"] = f.MediumNetAmount
		set(FactorMainNetAmount, MainNetAmountRatio(f.MainNetAmount))
		set(FactorMainNetRatio, MainNetRatioRatio(f.MainNetRatio))
		set(FactorMediumNetAmount, MediumNetRatio(f.MediumNetAmount))
	}

	// 5. sector heat
	decision := heat.Decide(attrs.Industry)
	if decision.CountOnly {
		b.Notes = append(b.Notes, "hot sector count-only")
	}
	set(FactorIsHotSector, HotSectorRatio(decision.Hot))

	// 6. specialized list
	if top, err := s.data.TopList(ctx, c.Symbol, date); err != nil {
		if isAllEmpty(err) {
			set(FactorDragonList, 0)
		} else {
			fail(FactorDragonList, err)
		}
	} else {
		b.Inputs["top_list_net_amount"] = top.Value.NetAmount
		b.Inputs["top_list_net_rate"] = top.Value.NetRate
		set(FactorDragonList, DragonListRatio(top.Value.NetAmount, top.Value.NetRate))
	}

	return contracts.ScoredCandidate{
		Candidate: c,
		Score:     b.Total(),
		Breakdown: b,
		HotSector: decision.Hot,
	}
}

func (s *Scorer) basics(ctx context.Context, symbol string, date time.Time) ([]marketdata.DailyBasic, error) {
	lookback := s.cfg.TurnoverLookbackDays
	if lookback <= 0 {
		lookback = 60
	}
	res, err := s.data.DailyBasics(ctx, symbol, date.AddDate(0, 0, -lookback), date)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// turnover20 is the latest turnover over the mean of the last 20 rows.
// Too few rows or no data gives the neutral 1.0.
func (s *Scorer) turnover20(rows []marketdata.DailyBasic, err error) (float64, error) {
	if err != nil {
		if isAllEmpty(err) {
			return 1.0, nil
		}
		return 0, err
	}
	minRows := s.cfg.TurnoverMinRows
	if minRows <= 0 {
		minRows = 20
	}
	if len(rows) < minRows {
		return 1.0, nil
	}

	useFree := false
	for _, r := range rows {
		if r.TurnoverRateFree > 0 {
			useFree = true
			break
		}
	}
	value := func(r marketdata.DailyBasic) float64 {
		if useFree {
			return r.TurnoverRateFree
		}
		return r.TurnoverRate
	}

	tail := rows[len(rows)-minRows:]
	sum := 0.0
	for _, r := range tail {
		sum += value(r)
	}
	mean := sum / float64(len(tail))
	if mean <= 0 {
		return 1.0, nil
	}
	return value(rows[len(rows)-1]) / mean, nil
}

// volumeRatio tries daily_basic, then the T-day auction record, then today / prior 5-day mean
func (s *Scorer) volumeRatio(ctx context.Context, symbol string, date time.Time, basics []marketdata.DailyBasic, basicsErr error) (float64, string, error) {
	if basicsErr == nil && len(basics) > 0 {
		last := basics[len(basics)-1]
		if last.HasVolumeRatio && sameDate(last.Date, date) {
			return last.VolumeRatio, "", nil
		}
	}

	var lastErr error
	if basicsErr != nil && !isAllEmpty(basicsErr) {
		lastErr = basicsErr
	}

	if q, err := s.data.Auction(ctx, symbol, date, true); err == nil {
		if q.Value.HasVolumeRatio {
			return q.Value.VolumeRatio, "auction", nil
		}
	} else if !isAllEmpty(err) {
		lastErr = err
	}

	lookback := s.cfg.VolumeLookbackDays
	if lookback <= 0 {
		lookback = 10
	}
	bars, err := s.data.DailyBars(ctx, symbol, date.AddDate(0, 0, -lookback), date)
	if err == nil && len(bars.Value) >= 6 {
		recent := bars.Value[len(bars.Value)-6:]
		sum := 0.0
		for _, b := range recent[:5] {
			sum += b.Volume
		}
		if avg := sum / 5; avg > 0 {
			return recent[5].Volume / avg, "5-day average", nil
		}
	} else if err != nil && !isAllEmpty(err) {
		lastErr = err
	}

	if lastErr != nil && !errors.Is(lastErr, marketdata.ErrNoData) {
		return 0, "", lastErr
	}
	return 1.0, "default", nil
}

func sumWeights(w map[string]float64) float64 {
	total := 0.0
	for _, v := range w {
		if v > 0 {
			total += v
		}
	}
	return total
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
