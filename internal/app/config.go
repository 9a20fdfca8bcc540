package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the menuguard service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Migration  MigrationConfig  `mapstructure:"migration"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	// RoleHeader names the header carrying the upstream-authenticated role id.
	RoleHeader string `mapstructure:"role_header"`
	// AdminMenuID guards the admin API. When zero the entry at AdminMenuURL is used.
	AdminMenuID  uint   `mapstructure:"admin_menu_id"`
	AdminMenuURL string `mapstructure:"admin_menu_url"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Seed     bool         `mapstructure:"seed"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Cache drivers accepted by CacheConfig.Driver.
const (
	CacheDriverNone     = "none"
	CacheDriverMemory   = "memory"
	CacheDriverDatabase = "database"
	CacheDriverRedis    = "redis"
)

// CacheConfig describes where resolved capability maps are cached.
type CacheConfig struct {
	Driver string           `mapstructure:"driver"`
	TTL    time.Duration    `mapstructure:"ttl"`
	Size   int              `mapstructure:"size"`
	Redis  RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MigrationConfig controls the can_manage_own consolidation runs.
type MigrationConfig struct {
	// Schedule is a cron spec. Empty disables scheduled runs.
	Schedule   string        `mapstructure:"schedule"`
	BatchSize  int           `mapstructure:"batch_size"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles the metrics endpoint.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("MENUGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Cache.Driver)) {
	case CacheDriverNone, CacheDriverMemory, CacheDriverDatabase, CacheDriverRedis:
	default:
		return fmt.Errorf("config: unsupported cache driver %q", c.Cache.Driver)
	}
	if c.Migration.BatchSize <= 0 {
		return errors.New("config: migration.batch_size must be positive")
	}
	if c.Migration.LockTTL <= 0 {
		return errors.New("config: migration.lock_ttl must be positive")
	}
	if strings.TrimSpace(c.Server.RoleHeader) == "" {
		return errors.New("config: server.role_header is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.role_header", "X-Role-ID")
	v.SetDefault("server.admin_menu_id", 0)
	v.SetDefault("server.admin_menu_url", "/admin/roles")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/menuguard.sqlite")
	v.SetDefault("database.seed", true)

	v.SetDefault("cache.driver", CacheDriverMemory)
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("migration.schedule", "@every 1h")
	v.SetDefault("migration.batch_size", 500)
	v.SetDefault("migration.lock_ttl", "2m")
	v.SetDefault("migration.run_on_start", true)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
