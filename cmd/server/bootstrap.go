package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/api"
	"github.com/charlesng35/menuguard/internal/app"
	"github.com/charlesng35/menuguard/internal/app/maintenance"
	"github.com/charlesng35/menuguard/internal/cache"
	"github.com/charlesng35/menuguard/internal/monitoring"
	"github.com/charlesng35/menuguard/internal/monitoring/checks"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Engine     *app.Engine
	Scheduler  *maintenance.Scheduler
	Router     *gin.Engine
	closeCache func() error
}

// bootstrapRuntime initialises the database, the capability cache, services, scheduled
// maintenance and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = app.OpenDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	capStore, closeCache, err := cfg.Cache.NewStore(ctx, stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise capability cache: %w", err)
	}
	stack.closeCache = closeCache
	log.Info("capability cache ready", zap.String("driver", cfg.Cache.Driver), zap.Duration("ttl", cfg.Cache.TTL))

	stack.Engine, err = app.NewEngine(stack.DB, capStore, cfg.Cache.TTL, cfg.Migration)
	if err != nil {
		return nil, fmt.Errorf("initialise permission engine: %w", err)
	}

	if cfg.Migration.RunOnStart {
		runStartupMigration(ctx, stack.Engine, log)
	}

	var schedulerOpts []maintenance.Option
	if purger, ok := capStore.(*cache.DatabaseStore); ok {
		schedulerOpts = append(schedulerOpts, maintenance.WithCachePurger(purger))
	}
	var runner maintenance.MigrationRunner
	if cfg.Migration.Schedule != "" {
		runner = stack.Engine.Migrations
		schedulerOpts = append(schedulerOpts, maintenance.WithMigrationSchedule(cfg.Migration.Schedule))
	}
	stack.Scheduler = maintenance.NewScheduler(stack.DB, runner, schedulerOpts...)
	if err := stack.Scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	adminMenuID, err := app.ResolveAdminMenuID(ctx, stack.DB, cfg.Server)
	if err != nil {
		return nil, err
	}

	health := monitoring.NewChecker(
		checks.Database(stack.DB, 0),
		checks.Cache(capStore, cfg.Cache.Driver, 0),
		checks.Migration(stack.Engine.Migrations),
	)

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:              stack.DB,
		Resolver:        stack.Engine.Resolver,
		Permissions:     stack.Engine.Permissions,
		Migrations:      stack.Engine.Migrations,
		RoleHeader:      cfg.Server.RoleHeader,
		AdminMenuID:     adminMenuID,
		Health:          health,
		MetricsEnabled:  cfg.Monitoring.Prometheus.Enabled,
		MetricsEndpoint: cfg.Monitoring.Prometheus.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// runStartupMigration consolidates legacy grants before serving. Failures are logged and
// left to the scheduled runs.
func runStartupMigration(ctx context.Context, engine *app.Engine, log *zap.Logger) {
	result, err := engine.Migrations.Run(ctx)
	switch {
	case err == nil:
		log.Info("startup permission migration finished",
			zap.String("run_id", result.RunID),
			zap.Int("updated", result.Updated),
		)
	case errors.Is(err, context.Canceled):
		log.Warn("startup permission migration cancelled", zap.Error(err))
	default:
		log.Warn("startup permission migration failed", zap.Error(err))
	}
}

// Shutdown stops maintenance jobs and releases the cache and database.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		select {
		case <-s.Scheduler.Stop().Done():
		case <-ctx.Done():
			log.Warn("maintenance jobs still running at shutdown")
		}
	}

	if s.closeCache != nil {
		if err := s.closeCache(); err != nil {
			log.Warn("capability cache shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		app.CloseDatabase(s.DB)
	}
}
