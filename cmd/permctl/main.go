package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/app"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "permctl",
	Short: "Inspect and maintain menu permissions",
	Long: `permctl works directly against the menuguard database.

It resolves capability maps, validates the menu catalog, seeds defaults and
runs the can_manage_own migration without going through the HTTP API.`,
	Example: `  permctl migrate --check
  permctl migrate
  permctl resolve --role 1
  permctl resolve --role 2 --json
  permctl validate
  permctl seed`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration directory or file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level written to stderr")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// session is the configuration and database handle shared by one command invocation.
type session struct {
	cfg *app.Config
	db  *gorm.DB
}

func (s *session) Close() {
	app.CloseDatabase(s.db)
}

// openSession loads configuration and connects. Seeding only happens when seed is set,
// whatever the configuration says.
func openSession(seed bool) (*session, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := app.ConfigureLogging(logLevel, "console"); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	cfg.Database.Seed = seed
	db, err := app.OpenDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, db: db}, nil
}

// engine builds the services. Only shared cache drivers are attached, so invalidation
// reaches a running server; a process-local memory cache would be thrown away on exit.
func (s *session) engine(ctx context.Context) (*app.Engine, func() error, error) {
	noop := func() error { return nil }

	cacheCfg := s.cfg.Cache
	switch strings.ToLower(strings.TrimSpace(cacheCfg.Driver)) {
	case app.CacheDriverDatabase, app.CacheDriverRedis:
	default:
		cacheCfg.Driver = app.CacheDriverNone
	}

	store, closeStore, err := cacheCfg.NewStore(ctx, s.db)
	if err != nil {
		return nil, noop, err
	}
	engine, err := app.NewEngine(s.db, store, s.cfg.Cache.TTL, s.cfg.Migration)
	if err != nil {
		_ = closeStore()
		return nil, noop, err
	}
	return engine, closeStore, nil
}

func loadConfig(path string) (*app.Config, error) {
	if strings.TrimSpace(path) == "" {
		return app.LoadConfig()
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("config path %q does not exist", path)
	case err != nil:
		return nil, fmt.Errorf("stat config path: %w", err)
	case info.IsDir():
		return app.LoadConfig(path)
	default:
		return app.LoadConfig(filepath.Dir(path))
	}
}
