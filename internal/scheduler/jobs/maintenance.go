package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/limitup/internal/fetch"
	"github.com/wonny/limitup/internal/store"
	"github.com/wonny/limitup/internal/strategyconfig"
	"github.com/wonny/limitup/pkg/logger"
)

// CacheCleanupJob evicts expired fetch cache entries
type CacheCleanupJob struct {
	cache  *fetch.Cache
	logger *logger.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(c *fetch.Cache, log *logger.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache:  c,
		logger: log.WithComponent("job.cache_cleanup"),
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Schedule returns the cron schedule (every 5 minutes)
func (j *CacheCleanupJob) Schedule() string {
	return "0 */5 * * * *"
}

// Run executes the cache cleanup
func (j *CacheCleanupJob) Run(ctx context.Context) error {
	count := j.cache.CleanStale()
	if count > 0 {
		j.logger.WithField("removed", count).Info("Cache cleanup completed")
	}
	return nil
}

// MaintenanceJob applies retention and backs the store up
// ⭐ SSOT: 보존 기간 정리/백업 스케줄은 이 Job에서만
type MaintenanceJob struct {
	store     store.Store
	retention strategyconfig.RetentionConfig
	backupDir string
	keep      int
	schedule  string
	now       func() time.Time
	logger    *logger.Logger
}

// NewMaintenanceJob creates the nightly maintenance job. backupDir "" disables backups.
func NewMaintenanceJob(st store.Store, retention strategyconfig.RetentionConfig, backupDir string, keep int, clock string, log *logger.Logger) (*MaintenanceJob, error) {
	spec, err := ClockSpec(clock, 0, "*")
	if err != nil {
		return nil, fmt.Errorf("maintenance schedule: %w", err)
	}
	return &MaintenanceJob{
		store:     st,
		retention: retention,
		backupDir: backupDir,
		keep:      keep,
		schedule:  spec,
		now:       time.Now,
		logger:    log.WithComponent("job.maintenance"),
	}, nil
}

// WithClock overrides the wall clock
func (j *MaintenanceJob) WithClock(now func() time.Time) *MaintenanceJob {
	j.now = now
	return j
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "store_maintenance"
}

// Schedule returns the cron schedule
func (j *MaintenanceJob) Schedule() string {
	return j.schedule
}

// Description explains the job
func (j *MaintenanceJob) Description() string {
	return "apply retention and rotate store backups"
}

// Run executes cleanup then backup
func (j *MaintenanceJob) Run(ctx context.Context) error {
	now := j.now()

	// 1. Retention
	removed, err := j.store.Cleanup(ctx, j.retention, now)
	if err != nil {
		return fmt.Errorf("retention cleanup: %w", err)
	}
	j.logger.WithFields(map[string]interface{}{
		"recommendations":   removed.Recommendations,
		"trades":            removed.Trades,
		"performance":       removed.Performance,
		"learning_sessions": removed.LearningSessions,
	}).Info("Retention cleanup completed")

	// 2. Backup
	if j.backupDir == "" {
		return nil
	}
	path, err := store.Backup(ctx, j.store, j.backupDir, j.keep, now)
	if errors.Is(err, store.ErrBackupUnsupported) {
		j.logger.Debug("Store driver has no file backup, skipped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("store backup: %w", err)
	}
	j.logger.WithField("path", path).Info("Store backup written")
	return nil
}
