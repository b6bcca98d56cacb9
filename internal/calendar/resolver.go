package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/internal/fetch"
	"github.com/wonny/limitup/internal/marketdata"
	"github.com/wonny/limitup/pkg/logger"
	"github.com/wonny/limitup/pkg/redis"
)

// ErrNotFound means calendar data was available but held no matching trading day
var ErrNotFound = errors.New("trading day not found")

// Confidence tells callers whether a resolution came from calendar data
type Confidence string

const (
	ConfidenceAuthoritative Confidence = "authoritative"
	ConfidenceLow           Confidence = "low" // weekend-skipping heuristic
)

// SourceHeuristic is recorded when no calendar source answered
const SourceHeuristic = "weekday_heuristic"

// Lookup windows around the queried date
const (
	prevLookback  = 60
	prevLookahead = 5
	nextLookahead = 30
)

const (
	dirNext = "next"
	dirPrev = "prev"
	dirOpen = "open"
)

// Resolution is a resolved trading day with its provenance
type Resolution struct {
	Date       time.Time  `json:"date"`
	Confidence Confidence `json:"confidence"`
	Source     string     `json:"source"`
	IsOpen     bool       `json:"is_open"` // only meaningful for IsTradingDay
}

// Degraded reports whether the result came from the heuristic
func (r Resolution) Degraded() bool {
	return r.Confidence != ConfidenceAuthoritative
}

// Source supplies calendar rows through a fallback chain
type Source interface {
	CalendarDays(ctx context.Context, from, to time.Time) (*fetch.Result[[]marketdata.CalendarDay], error)
}

// Resolver resolves next/previous trading days with a per-instance cache
// ⭐ SSOT: 거래일 판정은 Resolver에서만
type Resolver struct {
	source Source
	loc    *time.Location
	logger *logger.Logger
	shared *redis.Cache // optional

	mu    sync.RWMutex
	cache map[string]Resolution
}

// NewResolver creates a resolver
func NewResolver(source Source, loc *time.Location, log *logger.Logger) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		source: source,
		loc:    loc,
		logger: log.WithComponent("calendar"),
		cache:  make(map[string]Resolution),
	}
}

// WithSharedCache persists authoritative resolutions across processes
func (r *Resolver) WithSharedCache(c *redis.Cache) *Resolver {
	r.shared = c
	return r
}

// NextTradingDay returns the first trading day strictly after date
func (r *Resolver) NextTradingDay(ctx context.Context, date time.Time) (Resolution, error) {
	date = r.midnight(date)
	return r.resolve(ctx, dirNext, date, func(days []marketdata.CalendarDay, tag contracts.DataTag) (time.Time, bool) {
		for _, d := range days {
			if d.IsOpen && r.midnight(d.Date).After(date) {
				return r.midnight(d.Date), true
			}
		}
		return time.Time{}, false
	}, date, date.AddDate(0, 0, nextLookahead))
}

// PrevTradingDay returns the last trading day strictly before date
func (r *Resolver) PrevTradingDay(ctx context.Context, date time.Time) (Resolution, error) {
	date = r.midnight(date)
	return r.resolve(ctx, dirPrev, date, func(days []marketdata.CalendarDay, tag contracts.DataTag) (time.Time, bool) {
		// 공급자가 pretrade_date를 주면 그대로 사용
		for _, d := range days {
			if r.midnight(d.Date).Equal(date) && !d.PrevTradeDate.IsZero() {
				return r.midnight(d.PrevTradeDate), true
			}
		}
		for i := len(days) - 1; i >= 0; i-- {
			if days[i].IsOpen && r.midnight(days[i].Date).Before(date) {
				return r.midnight(days[i].Date), true
			}
		}
		return time.Time{}, false
	}, date.AddDate(0, 0, -prevLookback), date.AddDate(0, 0, prevLookahead))
}

// IsTradingDay reports whether date is an open session
func (r *Resolver) IsTradingDay(ctx context.Context, date time.Time) (bool, Resolution, error) {
	date = r.midnight(date)
	res, err := r.resolve(ctx, dirOpen, date, func(days []marketdata.CalendarDay, tag contracts.DataTag) (time.Time, bool) {
		for _, d := range days {
			if r.midnight(d.Date).Equal(date) {
				if d.IsOpen {
					return date, true
				}
				return time.Time{}, true
			}
		}
		// 지수 일봉 기반 달력은 개장일만 포함
		if tag == contracts.TagDerived && !date.After(lastDay(days)) {
			return time.Time{}, true
		}
		return time.Time{}, false
	}, date.AddDate(0, 0, -7), date.AddDate(0, 0, 7))
	if err != nil {
		return false, res, err
	}
	return res.IsOpen, res, nil
}

type matcher func(days []marketdata.CalendarDay, tag contracts.DataTag) (time.Time, bool)

func (r *Resolver) resolve(ctx context.Context, dir string, date time.Time, match matcher, from, to time.Time) (Resolution, error) {
	key := dir + "|" + date.Format(contracts.DateLayout)

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if res, ok := r.fromShared(ctx, dir, date); ok {
		r.remember(key, res)
		return res, nil
	}

	result, err := r.source.CalendarDays(ctx, from, to)
	if err != nil {
		if ctx.Err() != nil {
			return Resolution{}, fmt.Errorf("calendar %s %s: %w", dir, date.Format(contracts.DateLayout), err)
		}
		res := r.heuristic(dir, date)
		r.logger.WithFields(map[string]interface{}{
			"direction": dir,
			"date":      date.Format(contracts.DateLayout),
			"resolved":  res.Date.Format(contracts.DateLayout),
			"error":     err.Error(),
		}).Warn("Calendar sources unavailable, using weekday heuristic (low confidence)")
		// 추정 결과는 캐시하지 않음: 다음 호출에서 다시 조회
		return res, nil
	}

	days := append([]marketdata.CalendarDay(nil), result.Value...)
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })

	found, ok := match(days, result.Tag)
	if !ok {
		if result.Tag == contracts.TagDerived {
			// 지수 일봉은 미래 개장일을 알 수 없음
			res := r.heuristic(dir, date)
			r.logger.WithFields(map[string]interface{}{
				"direction": dir,
				"date":      date.Format(contracts.DateLayout),
				"source":    result.Provider,
			}).Warn("Derived calendar has no answer, using weekday heuristic (low confidence)")
			return res, nil
		}
		return Resolution{}, fmt.Errorf("calendar %s %s via %s: %w", dir, date.Format(contracts.DateLayout), result.Provider, ErrNotFound)
	}

	res := Resolution{
		Date:       found,
		Confidence: ConfidenceAuthoritative,
		Source:     result.Provider,
		IsOpen:     !found.IsZero(),
	}
	if dir == dirOpen && found.IsZero() {
		res.Date = date
	}
	r.remember(key, res)
	r.toShared(ctx, dir, date, res)
	return res, nil
}

func (r *Resolver) remember(key string, res Resolution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = res
}

func (r *Resolver) fromShared(ctx context.Context, dir string, date time.Time) (Resolution, bool) {
	if r.shared == nil {
		return Resolution{}, false
	}
	var res Resolution
	found, err := r.shared.Get(ctx, redis.CalendarKey(dir, date.Format(contracts.DateLayout)), &res)
	if err != nil || !found {
		return Resolution{}, false
	}
	res.Date = res.Date.In(r.loc)
	return res, true
}

func (r *Resolver) toShared(ctx context.Context, dir string, date time.Time, res Resolution) {
	if r.shared == nil {
		return
	}
	if err := r.shared.Set(ctx, redis.CalendarKey(dir, date.Format(contracts.DateLayout)), res, redis.CalendarTTL); err != nil {
		r.logger.WithError(err).Debug("Calendar shared cache write failed")
	}
}

// heuristic skips weekends only
func (r *Resolver) heuristic(dir string, date time.Time) Resolution {
	res := Resolution{Confidence: ConfidenceLow, Source: SourceHeuristic}
	switch dir {
	case dirNext:
		res.Date = StepWeekday(date, 1)
		res.IsOpen = true
	case dirPrev:
		res.Date = StepWeekday(date, -1)
		res.IsOpen = true
	default:
		res.Date = date
		res.IsOpen = IsWeekday(date)
	}
	return res
}

func (r *Resolver) midnight(t time.Time) time.Time {
	y, m, d := t.In(r.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.loc)
}

// IsWeekday reports Monday through Friday
func IsWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// StepWeekday moves one weekday in the given direction (+1 / -1)
func StepWeekday(t time.Time, step int) time.Time {
	d := t.AddDate(0, 0, step)
	for !IsWeekday(d) {
		d = d.AddDate(0, 0, step)
	}
	return d
}

func lastDay(days []marketdata.CalendarDay) time.Time {
	if len(days) == 0 {
		return time.Time{}
	}
	return days[len(days)-1].Date
}
