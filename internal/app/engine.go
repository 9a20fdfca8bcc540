package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/cache"
	"github.com/charlesng35/menuguard/internal/permissions"
	"github.com/charlesng35/menuguard/internal/services"
	"github.com/charlesng35/menuguard/internal/store"
	"github.com/charlesng35/menuguard/pkg/logger"
)

// Engine bundles the resolver chain and the services built on top of it.
type Engine struct {
	// Resolver is the instrumented, optionally cached, resolver handed to consumers.
	Resolver permissions.CapabilityResolver
	// Cache is nil when resolution is not cached.
	Cache       *permissions.CachedResolver
	Migrator    *permissions.Migrator
	Permissions *services.PermissionService
	Migrations  *services.MigrationService
}

// NewEngine wires the resolver, the optional capability cache and the services. A nil
// capStore disables caching.
func NewEngine(db *gorm.DB, capStore cache.Store, cacheTTL time.Duration, migration MigrationConfig) (*Engine, error) {
	if db == nil {
		return nil, errors.New("engine: db is required")
	}

	base, err := permissions.NewResolverFromDB(db)
	if err != nil {
		return nil, err
	}

	engine := &Engine{}
	var (
		resolver    permissions.CapabilityResolver = base
		invalidator services.CapabilityInvalidator
	)

	if capStore != nil {
		log := logger.WithModule("capability_cache")
		cached, err := permissions.NewCachedResolver(base, capStore,
			permissions.WithCacheTTL(cacheTTL),
			permissions.WithCacheErrorHandler(func(err error) {
				log.Warn("capability cache degraded", zap.Error(err))
			}),
		)
		if err != nil {
			return nil, err
		}
		engine.Cache = cached
		resolver = cached
		invalidator = cached
	}

	observed, err := services.NewObservedResolver(resolver)
	if err != nil {
		return nil, err
	}
	engine.Resolver = observed

	var migratorOpts []permissions.MigratorOption
	if migration.BatchSize > 0 {
		migratorOpts = append(migratorOpts, permissions.WithBatchSize(migration.BatchSize))
	}
	if migration.LockTTL > 0 {
		migratorOpts = append(migratorOpts, permissions.WithLockTTL(migration.LockTTL))
	}
	engine.Migrator, err = permissions.NewMigrator(db, migratorOpts...)
	if err != nil {
		return nil, err
	}

	engine.Permissions, err = services.NewPermissionService(db, invalidator)
	if err != nil {
		return nil, err
	}

	roles, err := store.NewRoleStore(db)
	if err != nil {
		return nil, err
	}
	engine.Migrations, err = services.NewMigrationService(engine.Migrator, invalidator, roles)
	if err != nil {
		return nil, err
	}

	return engine, nil
}

// ResolveAdminMenuID returns the menu entry guarding the admin API: AdminMenuID when set,
// otherwise the single entry at AdminMenuURL. Zero means the admin API stays unmounted.
func ResolveAdminMenuID(ctx context.Context, db *gorm.DB, cfg ServerConfig) (uint, error) {
	if cfg.AdminMenuID != 0 {
		return cfg.AdminMenuID, nil
	}
	url := strings.TrimSpace(cfg.AdminMenuURL)
	if url == "" {
		return 0, nil
	}

	catalog, err := store.NewMenuCatalog(db)
	if err != nil {
		return 0, err
	}
	menu, err := catalog.GetMenuByURL(ctx, url)
	switch {
	case errors.Is(err, store.ErrMenuNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("admin menu %q: %w", url, err)
	}
	return menu.ID, nil
}
