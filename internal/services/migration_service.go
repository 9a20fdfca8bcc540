package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/charlesng35/menuguard/internal/models"
	"github.com/charlesng35/menuguard/internal/permissions"
	apperrors "github.com/charlesng35/menuguard/pkg/errors"
	"github.com/charlesng35/menuguard/pkg/logger"
	"github.com/charlesng35/menuguard/pkg/metrics"
)

// MigrationService runs the can_manage_own consolidation for operators and the scheduler,
// adding logging and metrics around the migrator.
type MigrationService struct {
	migrator    *permissions.Migrator
	invalidator CapabilityInvalidator
	roles       RoleLister
	log         *zap.Logger
}

// RoleLister lists role ids whose cached maps a migration may have changed.
type RoleLister interface {
	RoleIDs(ctx context.Context) ([]uint, error)
}

// NewMigrationService wraps the migrator. invalidator and roles may be nil when
// resolution is not cached.
func NewMigrationService(migrator *permissions.Migrator, invalidator CapabilityInvalidator, roles RoleLister) (*MigrationService, error) {
	if migrator == nil {
		return nil, errors.New("migration service: migrator is required")
	}
	return &MigrationService{
		migrator:    migrator,
		invalidator: invalidator,
		roles:       roles,
		log:         logger.WithModule("permission_migration"),
	}, nil
}

// Run executes one migration run. A run refused because another holds the claim returns
// an AppError with status 409.
func (s *MigrationService) Run(ctx context.Context) (permissions.MigrationResult, error) {
	ctx = ensureContext(ctx)

	result, err := s.migrator.RunPermissionMigration(ctx)
	if errors.Is(err, permissions.ErrMigrationInProgress) {
		metrics.MigrationRuns.WithLabelValues("busy").Inc()
		s.log.Info("permission migration skipped: another run holds the claim")
		return result, apperrors.ErrMigrationRunning.WithInternal(err)
	}

	metrics.MigrationRows.WithLabelValues("inspected").Add(float64(result.Inspected))
	metrics.MigrationRows.WithLabelValues("updated").Add(float64(result.Updated))
	metrics.MigrationRows.WithLabelValues("skipped").Add(float64(result.Skipped))
	metrics.MigrationRows.WithLabelValues("conflict").Add(float64(len(result.Conflicts)))

	fields := []zap.Field{
		zap.String("run_id", result.RunID),
		zap.Int("inspected", result.Inspected),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Strings("legacy_columns", result.LegacyColumns),
	}

	if result.Updated > 0 {
		s.invalidateAll(ctx)
	}

	if err != nil {
		metrics.MigrationRuns.WithLabelValues("failed").Inc()
		s.log.Error("permission migration failed", append(fields, zap.Error(err))...)
		return result, fmt.Errorf("migration service: %w", err)
	}

	metrics.MigrationRuns.WithLabelValues("completed").Inc()
	for _, conflict := range result.Conflicts {
		s.log.Warn("can_manage_own granted without legacy flags",
			zap.Uint("role_id", conflict.RoleID),
			zap.Uint("menu_id", conflict.MenuID),
		)
	}
	s.log.Info("permission migration finished", fields...)
	return result, nil
}

// Pending reports how many rows still need migrating.
func (s *MigrationService) Pending(ctx context.Context) (int64, error) {
	return s.migrator.Pending(ensureContext(ctx))
}

func (s *MigrationService) invalidateAll(ctx context.Context) {
	if s.invalidator == nil || s.roles == nil {
		return
	}
	// Invalidation still runs when the migration itself was cancelled.
	ctx = context.WithoutCancel(ctx)
	ids, err := s.roles.RoleIDs(ctx)
	if err != nil {
		s.log.Warn("capability cache invalidation skipped", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}
	if err := s.invalidator.Invalidate(ctx, ids...); err != nil {
		s.log.Warn("capability cache invalidation failed", zap.Error(err))
	}
}

// LastRun returns the most recent recorded run, or nil.
func (s *MigrationService) LastRun(ctx context.Context) (*models.MigrationRun, error) {
	return s.migrator.LastRun(ensureContext(ctx))
}
