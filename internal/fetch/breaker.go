package fetch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wonny/limitup/pkg/logger"
	"github.com/wonny/limitup/pkg/metrics"
)

// BreakerConfig configures per-provider circuit breakers
type BreakerConfig struct {
	ConsecutiveFailures uint32
	Cooldown            time.Duration
	HalfOpenRequests    uint32
}

// Breakers keeps one circuit breaker per provider name
type Breakers struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	cfg      BreakerConfig
	logger   *logger.Logger
	metrics  *metrics.Registry
}

// NewBreakers creates a breaker manager
func NewBreakers(cfg BreakerConfig, log *logger.Logger, m *metrics.Registry) *Breakers {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}
	return &Breakers{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		cfg:      cfg,
		logger:   log,
		metrics:  m,
	}
}

func (b *Breakers) get(provider string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[provider]; ok {
		return cb
	}

	settings := gobreaker.Settings{
		Name:        provider,
		MaxRequests: b.cfg.HalfOpenRequests,
		Timeout:     b.cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			// 빈 응답과 호출자 취소는 공급자 장애가 아님
			return err == nil || errors.Is(err, ErrNoData) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.WithFields(map[string]interface{}{
				"provider": name,
				"from":     from.String(),
				"to":       to.String(),
			}).Warn("Provider circuit breaker state changed")
			b.metrics.SetBreakerState(name, float64(to))
		},
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	b.breakers[provider] = cb
	return cb
}

// Execute runs fn through the provider's breaker
func (b *Breakers) Execute(provider string, fn func() (interface{}, error)) (interface{}, error) {
	if b == nil {
		return fn()
	}
	return b.get(provider).Execute(fn)
}

// State returns the breaker state name for a provider
func (b *Breakers) State(provider string) string {
	if b == nil {
		return gobreaker.StateClosed.String()
	}
	return b.get(provider).State().String()
}
