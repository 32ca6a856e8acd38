package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/startupsquad-prog/company-os-sub003/internal/access"
	"github.com/startupsquad-prog/company-os-sub003/internal/authz"
	"github.com/startupsquad-prog/company-os-sub003/internal/crm/leads"
	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
	"github.com/startupsquad-prog/company-os-sub003/internal/gateway"
	"github.com/startupsquad-prog/company-os-sub003/internal/observability"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage/memory"
	"github.com/startupsquad-prog/company-os-sub003/jobs"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	unsetEnv(t, "STORAGE_DRIVER", "APP_ENV", "APP_ADDR", "PERMISSION_CACHE_TTL", "RATE_LIMIT_PER_MINUTE", "SESSION_TTL", "PG_DSN")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, 5*time.Minute, cfg.PermissionCacheTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsInvalidDriver(t *testing.T) {
	unsetEnv(t, "APP_ENV", "SESSION_TTL", "PG_DSN")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage driver")

	t.Setenv("STORAGE_DRIVER", StorageMemory)
	t.Setenv("APP_ENV", "production")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestLoggerHonoursLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", LogLevel: "warn", AppEnv: "test"})
	logger.Info("hidden")
	logger.Warn("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "test", entry["env"])
}

func TestTestModeSkipsStartup(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", AppEnv: "test"})

	for _, v := range []string{"1", "true", "TRUE"} {
		t.Setenv(testModeEnv, v)
		assert.True(t, InTestMode(), v)
	}
	assert.True(t, SkipStartup(logger, "worker"))
	assert.Contains(t, buf.String(), `"component":"worker"`)

	for _, v := range []string{"", "0", "yes"} {
		t.Setenv(testModeEnv, v)
		assert.False(t, InTestMode(), v)
	}
	assert.False(t, SkipStartup(nil, "server"))
}

type routerFixture struct {
	handler  http.Handler
	store    *memory.Store
	sessions *authz.SessionStore
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := memory.New()
	sessions := authz.NewSessionStore(client, time.Hour)
	resolver := &authz.SessionResolver{
		Sessions:    sessions,
		Store:       store,
		Permissions: authz.NewPermissionStore(store, client, time.Minute, nil),
	}
	metrics := observability.NewMetrics()
	guard := access.NewGuard(authz.ContextResolver{}, nil, nil, observability.NewAccessMetrics(metrics.Registerer()))
	gw, err := gateway.New(gateway.Config{Store: store, Guard: guard})
	require.NoError(t, err)

	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second, RateLimitPerMinute: 1000}
	handler := NewRouter(RouterParams{
		Config:       cfg,
		Auth:         &authz.Middleware{Resolver: resolver},
		LeadsHandler: leads.NewHandler(nil, leads.NewService(gw, nil, nil)),
		JobHandler:   jobs.NewHandler(nil, nil),
		Metrics:      metrics,
	})
	return routerFixture{handler: handler, store: store, sessions: sessions}
}

func (f routerFixture) login(t *testing.T, role authz.Role, perms ...string) string {
	t.Helper()
	id := uuid.New()
	now := time.Now().UTC()
	f.store.Seed(entity.Profiles.Table, storage.Record{
		"id": id, "email": id.String() + "@company.test", "full_name": "Router Test",
		"role": string(role), "department_id": nil,
		"created_at": now, "updated_at": now, "deleted_at": nil,
	})
	for _, p := range perms {
		perm, err := authz.ParsePermission(p)
		require.NoError(t, err)
		f.store.Seed(authz.RolePermissionsTable, storage.Record{
			"role": string(role), "resource": perm.Resource, "action": perm.Action,
		})
	}
	sess, err := f.sessions.Issue(context.Background(), id)
	require.NoError(t, err)
	return sess.Token
}

func (f routerFixture) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthAndHeaders(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = f.do(http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRouterWhoami(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.do(http.MethodGet, "/whoami", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := f.login(t, authz.RoleEmployee, "leads.read")
	rec = f.do(http.MethodGet, "/whoami", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var body whoamiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "employee", body.Role)
	assert.Equal(t, []string{"leads.read"}, body.Permissions)
}

func TestRouterLeadsRequireAuthentication(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.do(http.MethodGet, "/leads", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/leads", "bogus-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := f.login(t, authz.RoleEmployee)
	rec = f.do(http.MethodGet, "/leads", token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	token = f.login(t, authz.RoleManager, "leads.read")
	rec = f.do(http.MethodGet, "/leads", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestRouterJobsRequireJobsRead(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.do(http.MethodGet, "/jobs/health", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := f.login(t, authz.RoleEmployee, "leads.read")
	rec = f.do(http.MethodGet, "/jobs/health", token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	token = f.login(t, authz.RoleManager, JobsReadPermission.String())
	rec = f.do(http.MethodGet, "/jobs/health", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"queue":"notifications","pending":0,"retry":0,"failed":0}]`, rec.Body.String())

	token = f.login(t, authz.RoleAdmin)
	rec = f.do(http.MethodGet, "/jobs/health", token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	f.do(http.MethodGet, "/healthz", "")
	rec := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "companyos_http_requests_total")
}

func TestOpenStoreMemory(t *testing.T) {
	store, closeFn, err := OpenStore(context.Background(), &Config{StorageDriver: StorageMemory})
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &memory.Store{}, store)

	_, _, err = OpenStore(context.Background(), &Config{StorageDriver: "mongo"})
	require.Error(t, err)
}
