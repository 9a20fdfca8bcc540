package app

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/cache"
)

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,
	}
}

// NewStore builds the capability cache selected by Driver. It returns a nil store for the
// "none" driver. The returned close function is never nil.
func (c CacheConfig) NewStore(ctx context.Context, db *gorm.DB) (cache.Store, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case CacheDriverNone:
		return nil, noop, nil
	case "", CacheDriverMemory:
		return cache.NewMemoryStore(c.Size, c.TTL), noop, nil
	case CacheDriverDatabase:
		if db == nil {
			return nil, noop, fmt.Errorf("cache: database driver requires a database handle")
		}
		return cache.NewDatabaseStore(db), noop, nil
	case CacheDriverRedis:
		store, err := cache.NewRedisStore(ctx, c.RedisClientConfig())
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("cache: unsupported driver %q", c.Driver)
	}
}
