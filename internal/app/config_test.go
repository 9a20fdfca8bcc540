package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/menuguard/internal/cache"
	"github.com/charlesng35/menuguard/internal/database/testutil"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "X-Upstream-Role", cfg.Server.RoleHeader)
	require.EqualValues(t, 7, cfg.Server.AdminMenuID)
	require.Equal(t, "/admin/roles", cfg.Server.AdminMenuURL)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.False(t, cfg.Database.Seed)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5432, cfg.Database.Postgres.Port)

	require.Equal(t, CacheDriverRedis, cfg.Cache.Driver)
	require.Equal(t, 90*time.Second, cfg.Cache.TTL)
	require.Equal(t, 256, cfg.Cache.Size)
	require.Equal(t, "redis.example.com:6380", cfg.Cache.Redis.Address)
	require.Equal(t, 2, cfg.Cache.Redis.DB)
	require.True(t, cfg.Cache.Redis.TLS)
	require.Equal(t, 3*time.Second, cfg.Cache.Redis.Timeout)

	require.Equal(t, "*/15 * * * *", cfg.Migration.Schedule)
	require.Equal(t, 250, cfg.Migration.BatchSize)
	require.Equal(t, 5*time.Minute, cfg.Migration.LockTTL)
	require.False(t, cfg.Migration.RunOnStart)

	require.False(t, cfg.Monitoring.Prometheus.Enabled)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "X-Role-ID", cfg.Server.RoleHeader)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.True(t, cfg.Database.Seed)
	require.Equal(t, CacheDriverMemory, cfg.Cache.Driver)
	require.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	require.Equal(t, 500, cfg.Migration.BatchSize)
	require.Equal(t, 2*time.Minute, cfg.Migration.LockTTL)
	require.True(t, cfg.Migration.RunOnStart)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("MENUGUARD_CACHE_DRIVER", "none")
	t.Setenv("MENUGUARD_MIGRATION_BATCH_SIZE", "50")
	t.Setenv("MENUGUARD_SERVER_ADMIN_MENU_ID", "12")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, CacheDriverNone, cfg.Cache.Driver)
	require.Equal(t, 50, cfg.Migration.BatchSize)
	require.EqualValues(t, 12, cfg.Server.AdminMenuID)
}

func TestLoadConfigRejectsUnknownCacheDriver(t *testing.T) {
	_, err := LoadConfig(filepath.Join("testdata", "invalid"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "memcached")
}

func TestCacheConfigNewStore(t *testing.T) {
	ctx := context.Background()

	store, closeFn, err := CacheConfig{Driver: CacheDriverNone}.NewStore(ctx, nil)
	require.NoError(t, err)
	require.Nil(t, store)
	require.NoError(t, closeFn())

	store, _, err = CacheConfig{Driver: CacheDriverMemory, Size: 8, TTL: time.Minute}.NewStore(ctx, nil)
	require.NoError(t, err)
	require.IsType(t, &cache.MemoryStore{}, store)

	_, _, err = CacheConfig{Driver: CacheDriverDatabase}.NewStore(ctx, nil)
	require.Error(t, err)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, _, err = CacheConfig{Driver: CacheDriverDatabase}.NewStore(ctx, db)
	require.NoError(t, err)
	require.IsType(t, &cache.DatabaseStore{}, store)

	_, _, err = CacheConfig{Driver: CacheDriverRedis}.NewStore(ctx, nil)
	require.Error(t, err, "redis requires an address")
}

func TestRedisClientConfigTrimsFields(t *testing.T) {
	cfg := CacheConfig{Redis: RedisCacheConfig{
		Address:  " 127.0.0.1:6379 ",
		Username: " user ",
		Password: "pass",
		DB:       3,
		TLS:      true,
		Timeout:  2 * time.Second,
	}}

	require.Equal(t, cache.RedisConfig{
		Address:  "127.0.0.1:6379",
		Username: "user",
		Password: "pass",
		DB:       3,
		TLS:      true,
		Timeout:  2 * time.Second,
	}, cfg.RedisClientConfig())
}
