package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/store"
	"github.com/wonny/limitup/internal/strategyconfig"
	"github.com/wonny/limitup/pkg/logger"
	"github.com/wonny/limitup/pkg/metrics"
)

// Learning session kinds
const (
	KindImportance = "factor_importance"
	KindDiscovery  = "factor_discovery"
	KindEvolution  = "self_evolution"
)

var errFeedbackDisabled = errors.New("feedback disabled")

// EvolutionResult is the outcome of one self-evolution run
type EvolutionResult struct {
	Session   *contracts.LearningSession   `json:"session"`
	Cycles    []*contracts.LearningSession `json:"cycles,omitempty"`
	Throttled bool                         `json:"throttled"`
	NextDue   time.Time                    `json:"next_due,omitempty"`
}

// Optimizer re-weights factors from closed trade outcomes
// ⭐ SSOT: factor 가중치는 Optimizer만 변경 (시드 제외)
type Optimizer struct {
	store   store.Store
	cfg     strategyconfig.FeedbackConfig
	chain   *Chain
	now     func() time.Time
	metrics *metrics.Registry
	logger  *logger.Logger
}

// NewOptimizer creates an optimizer with the configured model chain
func NewOptimizer(st store.Store, cfg *strategyconfig.Config, m *metrics.Registry, log *logger.Logger) *Optimizer {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("feedback")
	fc := cfg.Feedback

	var models []ImportanceModel
	for _, name := range fc.Model.Order {
		switch name {
		case strategyconfig.ModelRandomForest:
			models = append(models, NewForest(fc.Model, fc.MinImportanceRows))
		case strategyconfig.ModelGradientBoosting:
			models = append(models, NewBooster(fc.Model, fc.MinImportanceRows))
		case strategyconfig.ModelCorrelation:
			models = append(models, NewCorrelation(fc.MinImportanceRows))
		default:
			log.WithField("model", name).Warn("Unknown importance model ignored")
		}
	}

	return &Optimizer{
		store:   st,
		cfg:     fc,
		chain:   NewChain(log, models...),
		now:     time.Now,
		metrics: m,
		logger:  log,
	}
}

// WithClock overrides the clock
func (o *Optimizer) WithClock(now func() time.Time) *Optimizer {
	o.now = now
	return o
}

// WithModels replaces the importance model chain
func (o *Optimizer) WithModels(models ...ImportanceModel) *Optimizer {
	o.chain = NewChain(o.logger, models...)
	return o
}

// CheckSamples applies the training preconditions: enough rows, both classes,
// and a minority/majority ratio of at least MinClassRatio
func CheckSamples(d *Dataset, cfg strategyconfig.FeedbackConfig) error {
	n := d.Len()
	if n < cfg.MinSamples {
		return fmt.Errorf("%d samples < %d: %w", n, cfg.MinSamples, ErrInsufficientData)
	}
	pos, neg := d.ClassCounts()
	if pos == 0 || neg == 0 {
		return fmt.Errorf("single class (wins %d, losses %d): %w", pos, neg, ErrInsufficientData)
	}
	minor, major := pos, neg
	if minor > major {
		minor, major = major, minor
	}
	if ratio := float64(minor) / float64(major); ratio < cfg.MinClassRatio {
		return fmt.Errorf("class ratio %.2f < %.2f: %w", ratio, cfg.MinClassRatio, ErrInsufficientData)
	}
	return nil
}

// ===== 1. Importance & weight update =====

// Optimize fits the model chain on all closed samples, suggests changes and applies
// smoothed weights to existing factors. Unmet preconditions give a skipped session
// and ErrInsufficientData.
func (o *Optimizer) Optimize(ctx context.Context) (*contracts.LearningSession, error) {
	start := time.Now()
	session := &contracts.LearningSession{Kind: KindImportance}

	samples, err := o.store.TrainingSamples(ctx, contracts.DateRange{})
	if err != nil {
		return o.fail(ctx, session, start, fmt.Errorf("load training samples: %w", err))
	}

	d := NewDataset(samples)
	train, test := d.Split(o.cfg.Model.TestSize, o.cfg.Model.Seed)
	session.TrainingSize = train.Len()
	session.TestSize = test.Len()

	if err := CheckSamples(d, o.cfg); err != nil {
		return o.skip(ctx, session, start, err)
	}

	im, err := o.chain.Fit(ctx, d)
	if err != nil {
		return o.fail(ctx, session, start, fmt.Errorf("fit importance: %w", err))
	}
	session.ModelType = im.Model

	weights, err := o.store.GetFactorWeights(ctx)
	if err != nil {
		return o.fail(ctx, session, start, fmt.Errorf("load factor weights: %w", err))
	}

	suggestions := Suggest(im, weights, o.cfg)
	applied, err := o.apply(ctx, im, weights)
	if err != nil {
		return o.fail(ctx, session, start, err)
	}
	for i := range suggestions {
		if w, ok := applied[suggestions[i].FactorID]; ok {
			suggestions[i].AppliedWeight = w
		}
	}

	pos, _ := d.ClassCounts()
	session.Metrics = map[string]float64{
		"samples":         float64(d.Len()),
		"win_rate":        float64(pos) / float64(d.Len()),
		"weights_updated": float64(len(applied)),
	}
	for k, v := range im.Metrics {
		session.Metrics[k] = v
	}
	session.Improvements = suggestions
	session.Status = contracts.SessionCompleted
	session.Message = fmt.Sprintf("%d suggestions, %d weights updated", len(suggestions), len(applied))

	return session, o.finish(ctx, session, start)
}

// apply moves every factor the model scored toward its importance.
// Features without a factor row are only suggested, never created.
func (o *Optimizer) apply(ctx context.Context, im *Importance, weights []contracts.FactorWeight) (map[string]float64, error) {
	applied := make(map[string]float64)
	at := o.now()
	for _, w := range weights {
		imp, ok := im.Scores[w.FactorID]
		if !ok {
			continue
		}
		next := SmoothedWeight(w.Weight, imp, o.cfg)
		if next == w.Weight {
			continue
		}
		if err := o.store.UpdateFactorWeight(ctx, w.FactorID, next, at); err != nil {
			return applied, fmt.Errorf("update factor %s: %w", w.FactorID, err)
		}
		applied[w.FactorID] = next

		o.logger.WithFields(map[string]interface{}{
			"factor":     w.FactorID,
			"old":        w.Weight,
			"new":        next,
			"importance": imp,
		}).Debug("Factor weight updated")
	}
	return applied, nil
}

// ===== 2. Factor discovery =====

// DiscoverFactors proposes combination factors and persists new ones inactive
func (o *Optimizer) DiscoverFactors(ctx context.Context) (*contracts.LearningSession, error) {
	start := time.Now()
	session := &contracts.LearningSession{Kind: KindDiscovery, ModelType: strategyconfig.ModelCorrelation}
	dc := o.cfg.Discovery

	samples, err := o.store.TrainingSamples(ctx, contracts.DateRange{})
	if err != nil {
		return o.fail(ctx, session, start, fmt.Errorf("load training samples: %w", err))
	}
	d := NewDataset(samples)
	session.TrainingSize = d.Len()

	if d.Len() < dc.MinRows {
		return o.skip(ctx, session, start, fmt.Errorf("%d rows < %d: %w", d.Len(), dc.MinRows, ErrInsufficientData))
	}

	weights, err := o.store.GetFactorWeights(ctx)
	if err != nil {
		return o.fail(ctx, session, start, fmt.Errorf("load factor weights: %w", err))
	}
	existing := make(map[string]bool, len(weights))
	derived := 0
	for _, w := range weights {
		existing[w.FactorID] = true
		if w.Type == contracts.FactorDerived {
			derived++
		}
	}

	proposals := Discover(d, dc)
	var added []contracts.FactorProposal
	for _, p := range proposals {
		if existing[p.FactorID] {
			continue
		}
		if dc.MaxFactors > 0 && derived >= dc.MaxFactors {
			o.logger.WithField("max_factors", dc.MaxFactors).Warn("Derived factor limit reached")
			break
		}
		err := o.store.UpsertFactorWeight(ctx, contracts.FactorWeight{
			FactorID:    p.FactorID,
			Group:       string(contracts.FactorDerived),
			Type:        contracts.FactorDerived,
			Weight:      round2(clamp(p.Correlation*o.cfg.SuggestScale, o.cfg.MinWeight, o.cfg.MaxWeight)),
			Description: fmt.Sprintf("discovered (|r|=%.3f)", p.Correlation),
			Formula:     p.Formula,
			IsActive:    false,
			LastUpdated: o.now(),
		})
		if err != nil {
			return o.fail(ctx, session, start, fmt.Errorf("persist factor %s: %w", p.FactorID, err))
		}
		derived++
		added = append(added, p)
	}

	session.NewFactors = added
	session.Metrics = map[string]float64{
		"samples":    float64(d.Len()),
		"candidates": float64(len(proposals)),
		"persisted":  float64(len(added)),
	}
	session.Status = contracts.SessionCompleted
	session.Message = fmt.Sprintf("%d candidates, %d new factors", len(proposals), len(added))

	return session, o.finish(ctx, session, start)
}

// ===== 3. Self-evolution =====

// Evolve runs optimization cycles with discovery, at most once per review interval
// unless force is set
func (o *Optimizer) Evolve(ctx context.Context, force bool) (*EvolutionResult, error) {
	start := time.Now()
	session := &contracts.LearningSession{Kind: KindEvolution}

	if !o.cfg.Enabled {
		s, err := o.skip(ctx, session, start, errFeedbackDisabled)
		if errors.Is(err, errFeedbackDisabled) {
			err = nil
		}
		return &EvolutionResult{Session: s}, err
	}

	// ===== throttle =====
	last, err := o.store.LastLearningSession(ctx, KindEvolution, contracts.SessionCompleted)
	switch {
	case err == nil:
		due := last.CreatedAt.AddDate(0, 0, o.cfg.ReviewIntervalDays)
		if !force && o.now().Before(due) {
			session.Status = contracts.SessionSkipped
			session.Message = fmt.Sprintf("throttled, next review due %s", due.Format("2006-01-02"))
			err := o.finish(ctx, session, start)
			return &EvolutionResult{Session: session, Throttled: true, NextDue: due}, err
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, fmt.Errorf("last evolution session: %w", err)
	}

	// ===== cycles =====
	res := &EvolutionResult{Session: session}
	cycles := o.cfg.OptimizationCycles
	if cycles <= 0 {
		cycles = 1
	}

	completed := 0
	var cause error
	for c := 1; c <= cycles; c++ {
		s, err := o.Optimize(ctx)
		if s != nil {
			res.Cycles = append(res.Cycles, s)
		}
		if err != nil {
			cause = err
			break
		}
		completed++
		session.Improvements = s.Improvements
		session.ModelType = s.ModelType
		session.TrainingSize, session.TestSize = s.TrainingSize, s.TestSize

		if !o.cfg.Discovery.Enabled {
			continue
		}
		ds, err := o.DiscoverFactors(ctx)
		if ds != nil {
			res.Cycles = append(res.Cycles, ds)
			session.NewFactors = append(session.NewFactors, ds.NewFactors...)
		}
		if err != nil && !errors.Is(err, ErrInsufficientData) {
			cause = err
			break
		}
	}

	session.Metrics = map[string]float64{
		"cycles":      float64(completed),
		"new_factors": float64(len(session.NewFactors)),
	}

	switch {
	case completed == 0 && errors.Is(cause, ErrInsufficientData):
		s, err := o.skip(ctx, session, start, cause)
		res.Session = s
		return res, err
	case cause != nil && completed == 0:
		s, err := o.fail(ctx, session, start, cause)
		res.Session = s
		return res, err
	case cause != nil:
		session.Message = fmt.Sprintf("stopped after %d cycles: %v", completed, cause)
	default:
		session.Message = fmt.Sprintf("%d cycles, %d new factors", completed, len(session.NewFactors))
	}
	session.Status = contracts.SessionCompleted
	return res, o.finish(ctx, session, start)
}

// ===== helpers =====

// skip logs a skipped session; cause is returned unless appending failed
func (o *Optimizer) skip(ctx context.Context, s *contracts.LearningSession, start time.Time, cause error) (*contracts.LearningSession, error) {
	s.Status = contracts.SessionSkipped
	s.Message = cause.Error()
	if err := o.finish(ctx, s, start); err != nil {
		return s, err
	}
	return s, cause
}

func (o *Optimizer) fail(ctx context.Context, s *contracts.LearningSession, start time.Time, cause error) (*contracts.LearningSession, error) {
	s.Status = contracts.SessionFailed
	s.Message = cause.Error()
	if err := o.finish(ctx, s, start); err != nil {
		return s, errors.Join(cause, err)
	}
	return s, cause
}

// finish appends the session to the learning log
func (o *Optimizer) finish(ctx context.Context, s *contracts.LearningSession, start time.Time) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = o.now()
	s.ExecutionTime = time.Since(start)
	o.metrics.LearningSession(s.Kind, string(s.Status))

	log := o.logger.WithFields(map[string]interface{}{
		"session": s.ID,
		"kind":    s.Kind,
		"model":   s.ModelType,
		"status":  string(s.Status),
		"samples": s.TrainingSize + s.TestSize,
	})
	if s.Status == contracts.SessionFailed {
		log.Error(s.Message)
	} else {
		log.Info(s.Message)
	}

	if err := o.store.AppendLearningSession(ctx, s); err != nil {
		return fmt.Errorf("append learning session: %w", err)
	}
	return nil
}
