package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/limitup/internal/auction"
	"github.com/wonny/limitup/internal/calendar"
	"github.com/wonny/limitup/internal/external/eastmoney"
	"github.com/wonny/limitup/internal/external/news"
	"github.com/wonny/limitup/internal/external/tushare"
	"github.com/wonny/limitup/internal/feedback"
	"github.com/wonny/limitup/internal/fetch"
	"github.com/wonny/limitup/internal/marketdata"
	"github.com/wonny/limitup/internal/notify"
	"github.com/wonny/limitup/internal/performance"
	"github.com/wonny/limitup/internal/pipeline"
	"github.com/wonny/limitup/internal/risk"
	"github.com/wonny/limitup/internal/scheduler"
	"github.com/wonny/limitup/internal/scheduler/jobs"
	"github.com/wonny/limitup/internal/scoring"
	"github.com/wonny/limitup/internal/sentiment"
	"github.com/wonny/limitup/internal/store"
	"github.com/wonny/limitup/internal/strategyconfig"
	"github.com/wonny/limitup/pkg/config"
	"github.com/wonny/limitup/pkg/httputil"
	"github.com/wonny/limitup/pkg/logger"
	"github.com/wonny/limitup/pkg/metrics"
	"github.com/wonny/limitup/pkg/redis"
)

// app is the wired runtime shared by every command
// ⭐ SSOT: 의존성 조립은 newApp에서만
type app struct {
	cfg      *config.Config
	strategy *strategyconfig.Config
	snapshot *strategyconfig.DecisionSnapshot
	loc      *time.Location
	log      *logger.Logger
	metrics  *metrics.Registry

	redis   *redis.Client // nil when disabled or unreachable
	cache   *fetch.Cache
	gateway *marketdata.Gateway
	store   store.Store

	calendar     *calendar.Resolver
	hub          *notify.Hub
	notifier     notify.Notifier
	orchestrator *pipeline.Orchestrator
	tracker      *performance.Tracker
	optimizer    *feedback.Optimizer
}

func newApp(ctx context.Context) (*app, error) {
	// ===== 1. Config & logging =====
	cfg, err := config.LoadFrom(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if rootCmd.PersistentFlags().Changed("env") {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	strategy, raw, err := strategyconfig.LoadOrDefault(cfg.StrategyPath)
	if err != nil {
		return nil, fmt.Errorf("load strategy %s: %w", cfg.StrategyPath, err)
	}
	snapshot, err := strategyconfig.NewDecisionSnapshot(strategy, raw, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("snapshot strategy: %w", err)
	}
	log.WithFields(map[string]interface{}{
		"strategy":    strategy.Meta.StrategyID,
		"config_hash": snapshot.ConfigHash,
		"path":        cfg.StrategyPath,
	}).Info("Strategy loaded")

	a := &app{
		cfg:      cfg,
		strategy: strategy,
		snapshot: snapshot,
		loc:      loc,
		log:      log,
	}
	// nil registry는 모든 관측을 무시
	if cfg.MetricsEnabled {
		a.metrics = metrics.New()
	}

	// ===== 2. Shared tier (optional) =====
	var l2 *redis.Cache
	if cfg.Redis.Enabled {
		rc, err := redis.New(cfg.Redis)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, using process-local cache only")
		} else {
			a.redis = rc
			l2 = redis.NewCache(rc, "limitup")
		}
	}

	// ===== 3. Providers =====
	primary := tushare.NewClient(a.providerHTTP("tushare", cfg.Tushare.RatePerMin), cfg.Tushare, loc, log.WithComponent("tushare"))
	secondary := eastmoney.NewClient(a.providerHTTP("eastmoney", 0), cfg.Eastmoney, loc, log.WithComponent("eastmoney"))
	newsHTTP := httputil.New(cfg, log).WithUserAgent(cfg.News.UserAgent)
	headlines := news.NewClient(newsHTTP, cfg.News, log.WithComponent("news"))

	// ===== 4. Fetch layer =====
	a.cache = fetch.NewCache(log)
	opts := fetch.Options{
		TTL:     strategy.Fetch.CacheTTL,
		Timeout: strategy.Fetch.ProviderTimeout,
		Breakers: fetch.NewBreakers(fetch.BreakerConfig{
			ConsecutiveFailures: uint32(strategy.Fetch.BreakerFailures),
			Cooldown:            strategy.Fetch.BreakerCooldown,
		}, log, a.metrics),
		L2:      l2,
		L2TTL:   cfg.Fetch.CacheTTL,
		Metrics: a.metrics,
		Logger:  log,
	}
	a.gateway = marketdata.NewGateway(primary, secondary, a.cache, opts, loc)

	// ===== 5. Store =====
	a.store, err = store.Open(ctx, cfg, strategy, loc, a.metrics, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	// ===== 6. Domain =====
	a.calendar = calendar.NewResolver(a.gateway, loc, log)
	if l2 != nil {
		a.calendar = a.calendar.WithSharedCache(l2)
	}

	var headlineSource sentiment.HeadlineSource
	if headlines.Enabled() {
		headlineSource = headlines
	}
	analyzer := sentiment.NewAnalyzer(a.gateway, headlineSource, cfg.News.Limit, log)

	a.hub = notify.NewHub(log)
	notifiers := notify.Multi{notify.NewLogNotifier(log), a.hub}
	if cfg.Notify.WebhookURL != "" {
		webhookHTTP := httputil.New(cfg, log).WithRetry(2, time.Second)
		notifiers = append(notifiers, notify.NewWebhookNotifier(webhookHTTP, cfg.Notify.WebhookURL, log))
	}
	a.notifier = notifiers

	a.orchestrator = pipeline.NewOrchestrator(
		a.calendar,
		scoring.NewScorer(a.gateway, a.store, strategy, log),
		auction.NewEvaluator(a.gateway, a.store, strategy, loc, log).WithMetrics(a.metrics),
		risk.NewGate(a.gateway, a.calendar, analyzer, strategy, log),
		a.store,
		a.notifier,
		strategy,
		log,
	).WithDestination(cfg.Notify.Destination)

	a.tracker = performance.NewTracker(a.gateway, a.calendar, a.store, strategy, loc, a.metrics, log)
	a.optimizer = feedback.NewOptimizer(a.store, strategy, a.metrics, log)

	return a, nil
}

// providerHTTP builds a rate-limited client; perMinute <= 0 disables limiting
func (a *app) providerHTTP(key string, perMinute int) *httputil.Client {
	c := httputil.New(a.cfg, a.log).WithRetry(2, 500*time.Millisecond)
	if perMinute <= 0 {
		return c
	}
	if a.redis != nil {
		return c.WithRateLimiter(redis.NewRateLimiter(a.redis, "limitup"), redis.RateLimitConfig{
			Key:    key,
			Limit:  perMinute,
			Window: time.Minute,
		})
	}
	return c.WithLocalLimit(float64(perMinute)/60, 1)
}

// newScheduler registers every job against the wired runtime
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	s := a.strategy.Schedule
	dest := a.cfg.Notify.Destination

	tday, err := jobs.NewTDayJob(a.orchestrator, s.TDayTime, a.loc, a.log)
	if err != nil {
		return nil, err
	}
	auctionJob, err := jobs.NewAuctionJob(a.orchestrator, s, a.loc, a.log)
	if err != nil {
		return nil, err
	}
	perf, err := jobs.NewPerformanceJob(a.tracker, a.notifier, dest, s.PerformanceTime, a.log)
	if err != nil {
		return nil, err
	}
	review, err := jobs.NewFeedbackJob(a.optimizer, a.notifier, dest, s.PerformanceTime, s.FeedbackWeekday, a.log)
	if err != nil {
		return nil, err
	}
	maintenance, err := jobs.NewMaintenanceJob(a.store, a.strategy.Retention, a.cfg.Store.BackupDir, a.cfg.Store.BackupKeep, s.MaintenanceTime, a.log)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(a.loc, a.metrics, a.log)
	for _, job := range []scheduler.Job{
		tday,
		auctionJob,
		perf,
		review,
		maintenance,
		jobs.NewCacheCleanupJob(a.cache, a.log),
	} {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// today returns midnight of the current exchange day
func (a *app) today() time.Time {
	now := time.Now().In(a.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.loc)
}

// Close releases the store, the websocket hub and redis
func (a *app) Close() {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.WithError(err).Warn("Store close failed")
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
