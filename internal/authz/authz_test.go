package authz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage/memory"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func seedRolePermissions(store *memory.Store, role Role, perms ...string) {
	for _, p := range perms {
		perm, _ := ParsePermission(p)
		store.Seed(RolePermissionsTable, storage.Record{
			"role":     string(role),
			"resource": perm.Resource,
			"action":   perm.Action,
		})
	}
}

func TestRankAndParseRole(t *testing.T) {
	assert.Less(t, Rank(RoleEmployee), Rank(RoleManager))
	assert.Less(t, Rank(RoleManager), Rank(RoleAdmin))
	assert.GreaterOrEqual(t, Rank(RoleSuperAdmin), Rank(RoleAdmin))

	r, err := ParseRole(" Manager ")
	require.NoError(t, err)
	assert.Equal(t, RoleManager, r)

	_, err = ParseRole("intern")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestAuthContextIsImmutable(t *testing.T) {
	dept := uuid.New()
	ac := NewAuthContext(uuid.New(), RoleManager, &dept, Permission{"leads", "read"})

	dept = uuid.New()
	got := ac.DepartmentID()
	require.NotNil(t, got)
	assert.NotEqual(t, dept, *got)

	*got = uuid.Nil
	assert.NotEqual(t, uuid.Nil, *ac.DepartmentID())
}

func TestRoleEvaluator(t *testing.T) {
	ev := RoleEvaluator{}
	ctx := context.Background()

	employee := NewAuthContext(uuid.New(), RoleEmployee, nil,
		Permission{"leads", "read"}, Permission{"tickets", Wildcard})
	ok, err := ev.HasPermission(ctx, employee, "leads", "read")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = ev.HasPermission(ctx, employee, "leads", "delete")
	assert.False(t, ok)
	ok, _ = ev.HasPermission(ctx, employee, "tickets", "delete")
	assert.True(t, ok)

	admin := NewAuthContext(uuid.New(), RoleSuperAdmin, nil)
	ok, _ = ev.HasPermission(ctx, admin, "anything", "goes")
	assert.True(t, ok)
	assert.True(t, ev.IsAdmin(admin))
	assert.True(t, ev.IsManager(admin))
	assert.False(t, ev.IsManager(employee))

	ok, _ = ev.HasPermission(ctx, nil, "leads", "read")
	assert.False(t, ok)
}

func TestPermissionStoreCachesAcrossLevels(t *testing.T) {
	mr, client := newRedis(t)
	store := memory.New()
	seedRolePermissions(store, RoleEmployee, "leads.read", "leads.create")

	perms := NewPermissionStore(store, client, time.Minute, nil)
	ctx := context.Background()

	got, err := perms.ForRole(ctx, RoleEmployee)
	require.NoError(t, err)
	assert.Equal(t, []Permission{{"leads", "create"}, {"leads", "read"}}, got)
	assert.Equal(t, int64(1), store.Calls())
	assert.True(t, mr.Exists(permissionKeyPrefix+"employee"))

	_, err = perms.ForRole(ctx, RoleEmployee)
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.Calls(), "local cache hit")

	// A fresh process still hits Redis before the database.
	other := NewPermissionStore(store, client, time.Minute, nil)
	_, err = other.ForRole(ctx, RoleEmployee)
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.Calls())

	require.NoError(t, other.Invalidate(ctx, RoleEmployee))
	assert.False(t, mr.Exists(permissionKeyPrefix+"employee"))
	_, err = other.ForRole(ctx, RoleEmployee)
	require.NoError(t, err)
	assert.Equal(t, int64(2), store.Calls())
}

func TestPermissionStoreWithoutRedis(t *testing.T) {
	store := memory.New()
	seedRolePermissions(store, RoleManager, "tickets.*")
	perms := NewPermissionStore(store, nil, time.Minute, nil)

	got, err := perms.ForRole(context.Background(), RoleManager)
	require.NoError(t, err)
	assert.Equal(t, []Permission{{"tickets", Wildcard}}, got)
}

// blockingStore holds every Select until release is closed or the query's
// context ends.
type blockingStore struct {
	*memory.Store
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) Select(ctx context.Context, sel storage.Select) ([]storage.Record, error) {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.Store.Select(ctx, sel)
}

func TestPermissionStoreSharedLoadSurvivesCallerCancellation(t *testing.T) {
	inner := memory.New()
	seedRolePermissions(inner, RoleEmployee, "leads.read")
	store := &blockingStore{Store: inner, started: make(chan struct{}), release: make(chan struct{})}
	perms := NewPermissionStore(store, nil, time.Minute, nil)

	first, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := perms.ForRole(first, RoleEmployee)
		firstErr <- err
	}()
	<-store.started

	type result struct {
		perms []Permission
		err   error
	}
	second := make(chan result, 1)
	go func() {
		got, err := perms.ForRole(context.Background(), RoleEmployee)
		second <- result{got, err}
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(store.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, []Permission{{"leads", "read"}}, res.perms)
}

func TestPermissionStoreNormalisesStoredRows(t *testing.T) {
	store := memory.New()
	store.Seed(RolePermissionsTable,
		storage.Record{"role": "employee", "resource": "Leads", "action": "Read"},
		storage.Record{"role": "employee", "resource": "tickets", "action": ""},
	)
	_, client := newRedis(t)

	got, err := NewPermissionStore(store, client, time.Minute, nil).ForRole(context.Background(), RoleEmployee)
	require.NoError(t, err)
	assert.Equal(t, []Permission{{"leads", "read"}}, got)

	// A second process reads the Redis copy and sees the same permissions.
	cached, err := NewPermissionStore(memory.New(), client, time.Minute, nil).ForRole(context.Background(), RoleEmployee)
	require.NoError(t, err)
	assert.Equal(t, got, cached)
}

func newSessionResolver(t *testing.T) (*SessionResolver, *memory.Store) {
	t.Helper()
	_, client := newRedis(t)
	store := memory.New()
	return &SessionResolver{
		Sessions:    NewSessionStore(client, time.Hour),
		Store:       store,
		Permissions: NewPermissionStore(store, client, time.Minute, nil),
	}, store
}

func seedProfile(store *memory.Store, role string, dept *uuid.UUID, deleted bool) uuid.UUID {
	id := uuid.New()
	rec := storage.Record{
		"id":            id,
		"email":         id.String() + "@company.test",
		"full_name":     "Test User",
		"role":          role,
		"department_id": nil,
		"created_at":    time.Now(),
		"updated_at":    time.Now(),
		"deleted_at":    nil,
	}
	if dept != nil {
		rec["department_id"] = *dept
	}
	if deleted {
		rec["deleted_at"] = time.Now()
	}
	store.Seed(entity.Profiles.Table, rec)
	return id
}

func TestSessionResolver(t *testing.T) {
	resolver, store := newSessionResolver(t)
	ctx := context.Background()
	dept := uuid.New()
	profileID := seedProfile(store, "manager", &dept, false)
	seedRolePermissions(store, RoleManager, "leads.read")

	sess, err := resolver.Sessions.Issue(ctx, profileID)
	require.NoError(t, err)

	ac, err := resolver.Resolve(WithToken(ctx, sess.Token))
	require.NoError(t, err)
	require.NotNil(t, ac)
	assert.Equal(t, profileID, ac.ProfileID())
	assert.Equal(t, RoleManager, ac.Role())
	assert.Equal(t, dept, *ac.DepartmentID())
	assert.True(t, ac.Has(Permission{"leads", "read"}))

	ac, err = resolver.ResolveToken(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, ac)

	require.NoError(t, resolver.Sessions.Revoke(ctx, sess.Token))
	ac, err = resolver.ResolveToken(ctx, sess.Token)
	require.NoError(t, err)
	assert.Nil(t, ac)
}

func TestSessionResolverIgnoresDeletedProfiles(t *testing.T) {
	resolver, store := newSessionResolver(t)
	ctx := context.Background()
	profileID := seedProfile(store, "employee", nil, true)
	sess, err := resolver.Sessions.Issue(ctx, profileID)
	require.NoError(t, err)

	ac, err := resolver.ResolveToken(ctx, sess.Token)
	require.NoError(t, err)
	assert.Nil(t, ac)
}

func TestMiddlewareAuthenticate(t *testing.T) {
	resolver, store := newSessionResolver(t)
	ctx := context.Background()
	profileID := seedProfile(store, "employee", nil, false)
	sess, err := resolver.Sessions.Issue(ctx, profileID)
	require.NoError(t, err)

	mw := Middleware{Resolver: resolver}
	var seen *AuthContext
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/leads", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, seen)
	assert.Equal(t, profileID, seen.ProfileID())

	seen = nil
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/leads", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Nil(t, seen)
}

func TestMiddlewareRequireAny(t *testing.T) {
	mw := Middleware{}
	handler := mw.RequireAny(Permission{"leads", "read"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name string
		ac   *AuthContext
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"missing permission", NewAuthContext(uuid.New(), RoleEmployee, nil), http.StatusForbidden},
		{"granted", NewAuthContext(uuid.New(), RoleEmployee, nil, Permission{"leads", "read"}), http.StatusOK},
		{"admin", NewAuthContext(uuid.New(), RoleAdmin, nil), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/leads", nil)
			if tc.ac != nil {
				req = req.WithContext(WithAuthContext(req.Context(), tc.ac))
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tc.want, rr.Code)
		})
	}
}
