package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/strategyconfig"
	"github.com/wonny/limitup/pkg/database"
)

// ErrNotFound is returned when a keyed lookup has no row
var ErrNotFound = errors.New("store: not found")

// Store persists recommendations, trades, performance, factor weights and learning logs.
// Writes are serialized; reads may run concurrently.
// ⭐ SSOT: 영속 데이터 접근은 Store 인터페이스로만
type Store interface {
	// ===== Recommendations =====
	UpsertRecommendation(ctx context.Context, rec *contracts.Recommendation) error
	GetRecommendation(ctx context.Context, id string) (*contracts.Recommendation, error)
	ListRecommendations(ctx context.Context, f RecommendationFilter) ([]*contracts.Recommendation, error)

	// ===== Trades & performance =====
	RecordTrade(ctx context.Context, t *contracts.Trade) error
	ListTradesFor(ctx context.Context, recID string) ([]*contracts.Trade, error)
	RecordPerformance(ctx context.Context, p *contracts.PerformanceRecord) error
	GetPerformance(ctx context.Context, recID string) (*contracts.PerformanceRecord, error)
	ListPerformance(ctx context.Context, r contracts.DateRange) ([]*contracts.PerformanceRecord, error)
	AggregatePerformance(ctx context.Context, r contracts.DateRange) (*contracts.PerformanceSummary, error)

	// ===== Factors & learning =====
	GetFactorWeights(ctx context.Context) ([]contracts.FactorWeight, error)
	UpsertFactorWeight(ctx context.Context, w contracts.FactorWeight) error
	UpdateFactorWeight(ctx context.Context, factorID string, weight float64, at time.Time) error
	AppendLearningSession(ctx context.Context, s *contracts.LearningSession) error
	LastLearningSession(ctx context.Context, kind string, status contracts.SessionStatus) (*contracts.LearningSession, error)
	TrainingSamples(ctx context.Context, r contracts.DateRange) ([]contracts.TrainingSample, error)

	// ===== Maintenance =====
	Cleanup(ctx context.Context, p strategyconfig.RetentionConfig, now time.Time) (*CleanupResult, error)
	Health(ctx context.Context) database.Health
	Close() error
}

// RecommendationFilter narrows ListRecommendations; zero fields do not filter
type RecommendationFilter struct {
	TradeDate time.Time
	T1Date    time.Time
	Range     contracts.DateRange // on trade date
	Symbol    string
	Statuses  []contracts.RecommendationStatus
	Limit     int
}

// CleanupResult counts rows removed by retention
type CleanupResult struct {
	Recommendations  int64 `json:"recommendations"`
	Performance      int64 `json:"performance"`
	Trades           int64 `json:"trades"`
	LearningSessions int64 `json:"learning_sessions"`
}

// Total is the number of rows removed
func (r *CleanupResult) Total() int64 {
	return r.Recommendations + r.Performance + r.Trades + r.LearningSessions
}

// PersistenceError wraps a backend failure with its retry class
type PersistenceError struct {
	Op        string
	Transient bool // busy/locked/connection; safe to retry
	Err       error
}

func (e *PersistenceError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("store %s (%s): %v", e.Op, kind, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable persistence failure
func IsTransient(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.Transient
}
