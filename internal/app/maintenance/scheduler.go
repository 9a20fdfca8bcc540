package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/models"
	"github.com/charlesng35/menuguard/internal/permissions"
	"github.com/charlesng35/menuguard/pkg/logger"
)

const (
	defaultMigrationSpec    = "@every 1h"
	defaultPurgeSpec        = "@every 10m"
	defaultHistorySpec      = "@daily"
	defaultHistoryRetention = 90
)

// MigrationRunner runs the can_manage_own consolidation.
type MigrationRunner interface {
	Run(ctx context.Context) (permissions.MigrationResult, error)
}

// CachePurger removes expired capability cache entries.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Scheduler runs the consolidation, cache purging and run history pruning on cron
// schedules. A nil dependency skips the corresponding job.
type Scheduler struct {
	db        *gorm.DB
	migrator  MigrationRunner
	purger    CachePurger
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention int

	migrationSchedule string
	purgeSchedule     string
	historySchedule   string
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for history retention.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCachePurger enables purging of expired database cache entries.
func WithCachePurger(p CachePurger) Option {
	return func(s *Scheduler) {
		s.purger = p
	}
}

// WithMigrationSchedule overrides the cron specification for migration runs. An empty
// spec keeps the default.
func WithMigrationSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.migrationSchedule = spec
		}
	}
}

// WithPurgeSchedule overrides the cron specification for cache purging.
func WithPurgeSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.purgeSchedule = spec
		}
	}
}

// WithHistoryRetentionDays adjusts how long finished migration runs are kept.
func WithHistoryRetentionDays(days int) Option {
	return func(s *Scheduler) {
		if days > 0 {
			s.retention = days
		}
	}
}

// NewScheduler constructs a Scheduler with sensible defaults.
func NewScheduler(db *gorm.DB, migrator MigrationRunner, opts ...Option) *Scheduler {
	s := &Scheduler{
		db:                db,
		migrator:          migrator,
		now:               time.Now,
		retention:         defaultHistoryRetention,
		migrationSchedule: defaultMigrationSpec,
		purgeSchedule:     defaultPurgeSpec,
		historySchedule:   defaultHistorySpec,
		log:               logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

// Start registers the enabled jobs and launches the scheduler.
func (s *Scheduler) Start() error {
	if s.migrator == nil && s.purger == nil && s.db == nil {
		return nil
	}

	if s.migrator != nil {
		if _, err := s.cron.AddFunc(s.migrationSchedule, func() {
			if err := s.runMigration(context.Background()); err != nil {
				s.log.Warn("scheduled migration failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: migration schedule: %w", err)
		}
	}

	if s.purger != nil {
		if _, err := s.cron.AddFunc(s.purgeSchedule, func() {
			if _, err := s.purger.PurgeExpired(context.Background()); err != nil {
				s.log.Warn("cache purge failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: purge schedule: %w", err)
		}
	}

	if s.db != nil {
		if _, err := s.cron.AddFunc(s.historySchedule, func() {
			if _, err := PruneMigrationHistory(context.Background(), s.db, s.cutoff()); err != nil {
				s.log.Warn("migration history pruning failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: history schedule: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes every configured job sequentially.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if s.migrator != nil {
		errs = multierr.Append(errs, s.runMigration(ctx))
	}

	if s.purger != nil {
		if _, err := s.purger.PurgeExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.db != nil {
		if _, err := PruneMigrationHistory(ctx, s.db, s.cutoff()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// runMigration treats a run held by another replica as success.
func (s *Scheduler) runMigration(ctx context.Context) error {
	_, err := s.migrator.Run(ctx)
	if errors.Is(err, permissions.ErrMigrationInProgress) {
		s.log.Debug("migration skipped; another run holds the claim")
		return nil
	}
	return err
}

func (s *Scheduler) cutoff() time.Time {
	return s.now().AddDate(0, 0, -s.retention)
}

// PruneMigrationHistory removes finished migration runs that started before cutoff.
// Running records are kept.
func PruneMigrationHistory(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("prune migration history: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).
		Where("started_at < ? AND status <> ?", cutoff, models.MigrationRunning).
		Delete(&models.MigrationRun{})
	if result.Error != nil {
		return 0, fmt.Errorf("prune migration history: %w", result.Error)
	}
	return result.RowsAffected, nil
}
