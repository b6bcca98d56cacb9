package store

import (
	"context"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/strategyconfig"
	"github.com/wonny/limitup/pkg/logger"
	"github.com/wonny/limitup/pkg/metrics"
)

// RetryConfig bounds the write retry loop
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig returns the retry policy used by Open
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   4,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
	}
}

// Retrying decorates a Store: transient write failures are retried with
// exponential backoff, structural ones are returned at once. Reads pass through.
type Retrying struct {
	Store
	cfg     RetryConfig
	metrics *metrics.Registry
	logger  *logger.Logger
}

// NewRetrying wraps s with the retry policy
func NewRetrying(s Store, cfg RetryConfig, m *metrics.Registry, log *logger.Logger) *Retrying {
	return &Retrying{
		Store:   s,
		cfg:     cfg,
		metrics: m,
		logger:  log.WithComponent("store"),
	}
}

// Unwrap returns the decorated store
func (r *Retrying) Unwrap() Store {
	return r.Store
}

func (r *Retrying) do(ctx context.Context, op string, fn func() error) error {
	delay := r.cfg.InitialDelay
	var err error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt == r.cfg.MaxRetries {
			break
		}

		r.metrics.StoreRetry(op)
		r.logger.WithFields(map[string]interface{}{
			"op":      op,
			"attempt": attempt + 1,
			"delay":   delay,
			"error":   err.Error(),
		}).Warn("Retrying store write")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > r.cfg.MaxDelay {
			delay = r.cfg.MaxDelay
		}
	}

	r.logger.WithError(err).WithField("op", op).Error("Store write failed after retries")
	return err
}

func (r *Retrying) UpsertRecommendation(ctx context.Context, rec *contracts.Recommendation) error {
	return r.do(ctx, "upsert_recommendation", func() error { return r.Store.UpsertRecommendation(ctx, rec) })
}

func (r *Retrying) RecordTrade(ctx context.Context, t *contracts.Trade) error {
	return r.do(ctx, "record_trade", func() error { return r.Store.RecordTrade(ctx, t) })
}

func (r *Retrying) RecordPerformance(ctx context.Context, p *contracts.PerformanceRecord) error {
	return r.do(ctx, "record_performance", func() error { return r.Store.RecordPerformance(ctx, p) })
}

func (r *Retrying) UpsertFactorWeight(ctx context.Context, w contracts.FactorWeight) error {
	return r.do(ctx, "upsert_factor", func() error { return r.Store.UpsertFactorWeight(ctx, w) })
}

func (r *Retrying) UpdateFactorWeight(ctx context.Context, factorID string, weight float64, at time.Time) error {
	return r.do(ctx, "update_factor", func() error { return r.Store.UpdateFactorWeight(ctx, factorID, weight, at) })
}

func (r *Retrying) AppendLearningSession(ctx context.Context, s *contracts.LearningSession) error {
	return r.do(ctx, "append_learning_session", func() error { return r.Store.AppendLearningSession(ctx, s) })
}

func (r *Retrying) Cleanup(ctx context.Context, p strategyconfig.RetentionConfig, now time.Time) (*CleanupResult, error) {
	var res *CleanupResult
	err := r.do(ctx, "cleanup", func() error {
		var err error
		res, err = r.Store.Cleanup(ctx, p, now)
		return err
	})
	return res, err
}
