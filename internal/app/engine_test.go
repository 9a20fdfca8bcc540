package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/menuguard/internal/cache"
	"github.com/charlesng35/menuguard/internal/database/testutil"
	"github.com/charlesng35/menuguard/internal/models"
	"github.com/charlesng35/menuguard/internal/permissions"
)

func TestNewEngineCachesAndInvalidates(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	memory := cache.NewMemoryStore(16, time.Minute)

	engine, err := NewEngine(db, memory, time.Minute, MigrationConfig{BatchSize: 10, LockTTL: time.Minute})
	require.NoError(t, err)
	require.NotNil(t, engine.Cache)

	ctx := context.Background()
	var staff models.Role
	require.NoError(t, db.Take(&staff, "code = ?", "staff").Error)

	m, err := engine.Resolver.ResolvePermissions(ctx, staff.ID)
	require.NoError(t, err)
	require.Zero(t, m.Len())
	require.Equal(t, 1, memory.Len())

	var tasks models.MenuEntry
	require.NoError(t, db.Take(&tasks, "url = ?", "/ops/tasks").Error)
	_, err = engine.Permissions.Grant(ctx, staff.ID, tasks.ID, models.PermissionBits{CanReadData: true})
	require.NoError(t, err)

	m, err = engine.Resolver.ResolvePermissions(ctx, staff.ID)
	require.NoError(t, err)
	require.True(t, m.Allows(permissions.MenuByID(tasks.ID), permissions.ActionRead))
}

func TestNewEngineWithoutCache(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	engine, err := NewEngine(db, nil, 0, MigrationConfig{})
	require.NoError(t, err)
	require.Nil(t, engine.Cache)

	result, err := engine.Migrations.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, result.Updated)

	_, err = NewEngine(nil, nil, 0, MigrationConfig{})
	require.Error(t, err)
}

func TestResolveAdminMenuID(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	ctx := context.Background()

	var roles models.MenuEntry
	require.NoError(t, db.Take(&roles, "url = ?", "/admin/roles").Error)

	id, err := ResolveAdminMenuID(ctx, db, ServerConfig{AdminMenuURL: "/admin/roles"})
	require.NoError(t, err)
	require.Equal(t, roles.ID, id)

	id, err = ResolveAdminMenuID(ctx, db, ServerConfig{AdminMenuID: 42, AdminMenuURL: "/admin/roles"})
	require.NoError(t, err)
	require.EqualValues(t, 42, id)

	id, err = ResolveAdminMenuID(ctx, db, ServerConfig{AdminMenuURL: "/nowhere"})
	require.NoError(t, err)
	require.Zero(t, id)

	id, err = ResolveAdminMenuID(ctx, db, ServerConfig{})
	require.NoError(t, err)
	require.Zero(t, id)
}
