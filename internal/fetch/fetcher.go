package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/pkg/logger"
	"github.com/wonny/limitup/pkg/metrics"
	"github.com/wonny/limitup/pkg/redis"
)

// Provider is one source in a fallback chain
type Provider[T any] struct {
	Name  string
	Tag   contracts.DataTag
	Fetch func(ctx context.Context) (T, error)
}

// Result is a successful fetch with its provenance
type Result[T any] struct {
	Value     T                 `json:"value"`
	Provider  string            `json:"provider"`
	Tag       contracts.DataTag `json:"tag"`
	FromCache bool              `json:"from_cache"`
	Attempts  []Attempt         `json:"attempts,omitempty"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// Options configures a Fetcher
type Options struct {
	TTL      time.Duration
	Timeout  time.Duration // per provider call
	Breakers *Breakers
	L2       *redis.Cache  // optional shared tier
	L2TTL    time.Duration // shared tier TTL; 0 uses TTL
	Metrics  *metrics.Registry
	Logger   *logger.Logger
}

// Fetcher resolves a value through an ordered provider chain with caching
// ⭐ SSOT: 모든 외부 데이터 조회는 Fetcher를 통과
type Fetcher[T any] struct {
	name  string
	cache *Cache
	opts  Options
	now   func() time.Time
}

// New creates a Fetcher sharing the given cache
func New[T any](name string, cache *Cache, opts Options) *Fetcher[T] {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Fetcher[T]{
		name:  name,
		cache: cache,
		opts:  opts,
		now:   time.Now,
	}
}

// Name returns the fetcher name
func (f *Fetcher[T]) Name() string {
	return f.name
}

// Fetch returns the cached value for key or walks the providers in order.
// A cached value is reused only if it came from one of the given providers.
func (f *Fetcher[T]) Fetch(ctx context.Context, key string, providers ...Provider[T]) (*Result[T], error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("%s[%s]: no providers configured", f.name, key)
	}

	cacheKey := f.name + "|" + key

	// ===== 1. Local cache =====
	if e, ok := f.cache.get(cacheKey); ok && hasProvider(providers, e.provider) {
		if v, ok := e.value.(T); ok {
			f.opts.Metrics.CacheHit(f.name, "local")
			return &Result[T]{
				Value:     v,
				Provider:  e.provider,
				Tag:       e.tag,
				FromCache: true,
				FetchedAt: e.fetchedAt,
			}, nil
		}
	}

	// ===== 2. Shared cache (redis) =====
	if res, ok := f.fromL2(ctx, cacheKey, providers); ok {
		f.opts.Metrics.CacheHit(f.name, "redis")
		f.store(cacheKey, res)
		return res, nil
	}
	f.opts.Metrics.CacheMiss(f.name)

	// ===== 3. Providers in order =====
	attempts := make([]Attempt, 0, len(providers))
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			return nil, f.unavailable(key, attempts, err)
		}

		start := time.Now()
		value, err := f.execute(ctx, p)
		elapsed := time.Since(start)

		if err == nil {
			f.opts.Metrics.ObserveProvider(f.name, p.Name, "success", elapsed)
			res := &Result[T]{
				Value:     value,
				Provider:  p.Name,
				Tag:       p.Tag,
				Attempts:  attempts,
				FetchedAt: f.now(),
			}
			f.store(cacheKey, res)
			f.toL2(ctx, cacheKey, res)

			if len(attempts) > 0 {
				f.opts.Logger.WithFields(map[string]interface{}{
					"fetcher":  f.name,
					"key":      key,
					"provider": p.Name,
					"skipped":  len(attempts),
				}).Info("Fetched from fallback provider")
			}
			return res, nil
		}

		empty := errors.Is(err, ErrNoData)
		outcome := "error"
		if empty {
			outcome = "empty"
		}
		f.opts.Metrics.ObserveProvider(f.name, p.Name, outcome, elapsed)

		attempts = append(attempts, Attempt{
			Provider: p.Name,
			Tag:      p.Tag,
			Err:      err.Error(),
			Empty:    empty,
			Duration: elapsed,
		})

		f.opts.Logger.WithFields(map[string]interface{}{
			"fetcher":  f.name,
			"key":      key,
			"provider": p.Name,
			"empty":    empty,
			"error":    err.Error(),
		}).Warn("Provider failed, trying next")
	}

	return nil, f.unavailable(key, attempts, ctx.Err())
}

// Invalidate drops a cached key
func (f *Fetcher[T]) Invalidate(ctx context.Context, key string) {
	cacheKey := f.name + "|" + key
	f.cache.Delete(cacheKey)
	if f.opts.L2 != nil {
		_ = f.opts.L2.Delete(ctx, redis.FetchKey(f.name, cacheKey))
	}
}

// execute calls one provider under its breaker and timeout.
// A provider that ignores its context is abandoned when the timeout fires.
func (f *Fetcher[T]) execute(ctx context.Context, p Provider[T]) (T, error) {
	var zero T

	out, err := f.opts.Breakers.Execute(p.Name, func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()

		type outcome struct {
			value T
			err   error
		}
		ch := make(chan outcome, 1)
		go func() {
			v, err := p.Fetch(cctx)
			ch <- outcome{v, err}
		}()

		select {
		case o := <-ch:
			return o.value, o.err
		case <-cctx.Done():
			return zero, fmt.Errorf("provider %s: %w", p.Name, cctx.Err())
		}
	})
	if err != nil {
		return zero, err
	}

	v, ok := out.(T)
	if !ok {
		return zero, fmt.Errorf("provider %s: %w: unexpected type %T", p.Name, ErrMalformed, out)
	}
	return v, nil
}

func (f *Fetcher[T]) unavailable(key string, attempts []Attempt, cause error) error {
	err := &UnavailableError{
		Fetcher:  f.name,
		Key:      key,
		Attempts: attempts,
		Cause:    cause,
	}
	f.opts.Logger.WithFields(map[string]interface{}{
		"fetcher":  f.name,
		"key":      key,
		"attempts": len(attempts),
	}).Error("All providers unavailable")
	return err
}

func (f *Fetcher[T]) store(cacheKey string, res *Result[T]) {
	f.cache.set(cacheKey, &cacheEntry{
		value:     res.Value,
		provider:  res.Provider,
		tag:       res.Tag,
		fetchedAt: res.FetchedAt,
		expiresAt: f.cache.now().Add(f.opts.TTL),
	})
}

type l2Entry[T any] struct {
	Value     T                 `json:"value"`
	Provider  string            `json:"provider"`
	Tag       contracts.DataTag `json:"tag"`
	FetchedAt time.Time         `json:"fetched_at"`
}

func (f *Fetcher[T]) fromL2(ctx context.Context, cacheKey string, providers []Provider[T]) (*Result[T], bool) {
	if f.opts.L2 == nil {
		return nil, false
	}
	var e l2Entry[T]
	found, err := f.opts.L2.Get(ctx, redis.FetchKey(f.name, cacheKey), &e)
	if err != nil || !found || !hasProvider(providers, e.Provider) {
		return nil, false
	}
	return &Result[T]{
		Value:     e.Value,
		Provider:  e.Provider,
		Tag:       e.Tag,
		FromCache: true,
		FetchedAt: e.FetchedAt,
	}, true
}

func (f *Fetcher[T]) toL2(ctx context.Context, cacheKey string, res *Result[T]) {
	if f.opts.L2 == nil {
		return
	}
	ttl := f.opts.L2TTL
	if ttl <= 0 {
		ttl = f.opts.TTL
	}
	e := l2Entry[T]{Value: res.Value, Provider: res.Provider, Tag: res.Tag, FetchedAt: res.FetchedAt}
	if err := f.opts.L2.Set(ctx, redis.FetchKey(f.name, cacheKey), e, ttl); err != nil {
		f.opts.Logger.WithError(err).Debug("Shared cache write failed")
	}
}

func hasProvider[T any](providers []Provider[T], name string) bool {
	for _, p := range providers {
		if p.Name == name {
			return true
		}
	}
	return false
}
