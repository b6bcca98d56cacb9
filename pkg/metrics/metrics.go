package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics for the service
// ⭐ SSOT: 메트릭 정의는 여기서만
// A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	ProviderCalls    *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	BreakerState     *prometheus.GaugeVec

	JobRuns     *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec

	AuctionOutcomes  *prometheus.CounterVec
	StoreRetries     *prometheus.CounterVec
	TrackedPositions *prometheus.CounterVec
	LearningSessions *prometheus.CounterVec
}

// New creates a registry with every metric registered
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		ProviderCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limitup_provider_calls_total",
				Help: "Provider calls by fetcher, provider and outcome",
			},
			[]string{"fetcher", "provider", "outcome"},
		),

		ProviderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "limitup_provider_duration_seconds",
				Help:    "Provider call latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"fetcher", "provider"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limitup_fetch_cache_hits_total",
				Help: "Fetch cache hits by fetcher and tier",
			},
			[]string{"fetcher", "tier"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limitup_fetch_cache_misses_total",
				Help: "Fetch cache misses by fetcher",
			},
			[]string{"fetcher"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "limitup_provider_breaker_state",
				Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
			},
			[]string{"provider"},
		),

		JobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limitup_job_runs_total",
				Help: "Scheduled job runs by job and status",
			},
			[]string{"job", "status"},
		),

		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "limitup_job_duration_seconds",
				Help:    "Scheduled job duration in seconds",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 900},
			},
			[]string{"job"},
		),

		AuctionOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limitup_auction_outcomes_total",
				Help: "Auction evaluation terminal states",
			},
			[]string{"state", "mode"},
		),

		StoreRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limitup_store_write_retries_total",
				Help: "Store write retries by operation",
			},
			[]string{"op"},
		),

		TrackedPositions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limitup_tracked_positions_total",
				Help: "Performance tracker results by outcome (closed, pending, skipped)",
			},
			[]string{"outcome"},
		),

		LearningSessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limitup_learning_sessions_total",
				Help: "Feedback optimizer sessions by kind and status",
			},
			[]string{"kind", "status"},
		),
	}

	r.reg.MustRegister(
		r.ProviderCalls,
		r.ProviderDuration,
		r.CacheHits,
		r.CacheMisses,
		r.BreakerState,
		r.JobRuns,
		r.JobDuration,
		r.AuctionOutcomes,
		r.StoreRetries,
		r.TrackedPositions,
		r.LearningSessions,
	)

	return r
}

// Handler exposes the registry for scraping
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveProvider records one provider attempt
func (r *Registry) ObserveProvider(fetcher, provider, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.ProviderCalls.WithLabelValues(fetcher, provider, outcome).Inc()
	r.ProviderDuration.WithLabelValues(fetcher, provider).Observe(d.Seconds())
}

// CacheHit records a cache hit on the given tier (local, redis)
func (r *Registry) CacheHit(fetcher, tier string) {
	if r == nil {
		return
	}
	r.CacheHits.WithLabelValues(fetcher, tier).Inc()
}

// CacheMiss records a cache miss
func (r *Registry) CacheMiss(fetcher string) {
	if r == nil {
		return
	}
	r.CacheMisses.WithLabelValues(fetcher).Inc()
}

// SetBreakerState records a circuit breaker transition
func (r *Registry) SetBreakerState(provider string, state float64) {
	if r == nil {
		return
	}
	r.BreakerState.WithLabelValues(provider).Set(state)
}

// ObserveJob records one job run
func (r *Registry) ObserveJob(job string, success bool, d time.Duration) {
	if r == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	r.JobRuns.WithLabelValues(job, status).Inc()
	r.JobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// AuctionOutcome records a terminal auction state
func (r *Registry) AuctionOutcome(state, mode string) {
	if r == nil {
		return
	}
	r.AuctionOutcomes.WithLabelValues(state, mode).Inc()
}

// StoreRetry records a retried store write
func (r *Registry) StoreRetry(op string) {
	if r == nil {
		return
	}
	r.StoreRetries.WithLabelValues(op).Inc()
}

// TrackedPosition records one performance tracker result
func (r *Registry) TrackedPosition(outcome string) {
	if r == nil {
		return
	}
	r.TrackedPositions.WithLabelValues(outcome).Inc()
}

// LearningSession records a finished optimizer session
func (r *Registry) LearningSession(kind, status string) {
	if r == nil {
		return
	}
	r.LearningSessions.WithLabelValues(kind, status).Inc()
}
