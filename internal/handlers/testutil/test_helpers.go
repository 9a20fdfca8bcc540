package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/api"
	"github.com/charlesng35/menuguard/internal/app"
	"github.com/charlesng35/menuguard/internal/cache"
	sharedtestutil "github.com/charlesng35/menuguard/internal/database/testutil"
	"github.com/charlesng35/menuguard/internal/middleware"
	"github.com/charlesng35/menuguard/internal/models"
	"github.com/charlesng35/menuguard/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by a seeded in-memory database for
// handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	Engine *app.Engine
	Cache  *cache.MemoryStore

	AdminMenuID uint
	AdminRoleID uint
	StaffRoleID uint
}

// EnvOption customises NewEnv.
type EnvOption func(*envConfig)

type envConfig struct {
	legacyColumns bool
}

// WithLegacyColumns adds the deprecated permission columns before the router is built.
func WithLegacyColumns() EnvOption {
	return func(cfg *envConfig) {
		cfg.legacyColumns = true
	}
}

// NewEnv provisions a fresh handler test environment with migrations and seed data applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	cfg := envConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	gin.SetMode(gin.TestMode)

	dbOpts := []sharedtestutil.TestDBOption{sharedtestutil.WithSeedData()}
	if cfg.legacyColumns {
		dbOpts = append(dbOpts, sharedtestutil.WithLegacyColumns())
	}
	db := sharedtestutil.MustOpenTestDB(t, dbOpts...)

	memory := cache.NewMemoryStore(64, time.Minute)
	engine, err := app.NewEngine(db, memory, time.Minute, app.MigrationConfig{BatchSize: 2, LockTTL: time.Minute})
	require.NoError(t, err)

	adminMenuID, err := app.ResolveAdminMenuID(context.Background(), db, app.ServerConfig{AdminMenuURL: "/admin/roles"})
	require.NoError(t, err)
	require.NotZero(t, adminMenuID)

	router, err := api.NewRouter(api.Dependencies{
		DB:              db,
		Resolver:        engine.Resolver,
		Permissions:     engine.Permissions,
		Migrations:      engine.Migrations,
		RoleHeader:      middleware.DefaultRoleHeader,
		AdminMenuID:     adminMenuID,
		MetricsEnabled:  true,
		MetricsEndpoint: "/metrics",
	})
	require.NoError(t, err)

	env := &Env{
		T:           t,
		DB:          db,
		Router:      router,
		Engine:      engine,
		Cache:       memory,
		AdminMenuID: adminMenuID,
	}
	env.AdminRoleID = env.RoleID("admin")
	env.StaffRoleID = env.RoleID("staff")
	return env
}

// RoleID returns the id of the seeded role with code.
func (e *Env) RoleID(code string) uint {
	e.T.Helper()
	var role models.Role
	require.NoError(e.T, e.DB.Take(&role, "code = ?", code).Error)
	return role.ID
}

// MenuID returns the id of the menu entry at url.
func (e *Env) MenuID(url string) uint {
	e.T.Helper()
	var menu models.MenuEntry
	require.NoError(e.T, e.DB.Take(&menu, "url = ?", url).Error)
	return menu.ID
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router as roleID. A zero roleID
// sends no role header.
func (e *Env) Request(method, path string, body any, roleID uint) *httptest.ResponseRecorder {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if roleID != 0 {
		req.Header.Set(middleware.DefaultRoleHeader, strconv.FormatUint(uint64(roleID), 10))
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
