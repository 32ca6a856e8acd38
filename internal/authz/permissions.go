package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
	"github.com/startupsquad-prog/company-os-sub003/internal/query"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

// RolePermissionsTable maps roles to granted permissions.
var RolePermissionsTable = storage.Table{Schema: "core", Name: "role_permissions"}

const (
	permissionKeyPrefix   = "authz:permissions:"
	permissionLoadTimeout = 5 * time.Second
)

type permissionRow struct {
	Resource string `db:"resource"`
	Action   string `db:"action"`
}

// PermissionStore loads role permissions with a two level cache: an
// in-process LRU in front of Redis in front of the database.
type PermissionStore struct {
	store  storage.Store
	redis  *redis.Client
	local  *expirable.LRU[Role, []Permission]
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger

	loadTimeout time.Duration
}

// NewPermissionStore constructs the store. client may be nil, in which case
// only the local cache is used.
func NewPermissionStore(store storage.Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *PermissionStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionStore{
		store:  store,
		redis:  client,
		local:  expirable.NewLRU[Role, []Permission](64, nil, ttl),
		ttl:    ttl,
		logger: logger,

		loadTimeout: permissionLoadTimeout,
	}
}

// ForRole returns the permissions granted to role. Concurrent callers share
// one load, which outlives any single caller's cancellation.
func (p *PermissionStore) ForRole(ctx context.Context, role Role) ([]Permission, error) {
	if perms, ok := p.local.Get(role); ok {
		return perms, nil
	}
	detached := context.WithoutCancel(ctx)
	resultChan := p.group.DoChan(string(role), func() (any, error) {
		loadCtx, cancel := context.WithTimeout(detached, p.loadTimeout)
		defer cancel()
		perms, err := p.fetchShared(loadCtx, role)
		if err != nil {
			return nil, err
		}
		p.local.Add(role, perms)
		return perms, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Permission), nil
	}
}

// Invalidate drops cached permissions for role on both levels.
func (p *PermissionStore) Invalidate(ctx context.Context, role Role) error {
	p.local.Remove(role)
	if p.redis == nil {
		return nil
	}
	if err := p.redis.Del(ctx, permissionKeyPrefix+string(role)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("authz: invalidate %s: %w", role, err)
	}
	return nil
}

func (p *PermissionStore) fetchShared(ctx context.Context, role Role) ([]Permission, error) {
	if p.redis == nil {
		return p.load(ctx, role)
	}
	key := permissionKeyPrefix + string(role)
	payload, err := p.redis.Get(ctx, key).Bytes()
	if err == nil {
		var names []string
		if err := json.Unmarshal(payload, &names); err == nil {
			return parsePermissions(names), nil
		}
		p.logger.Warn("authz: corrupt permission cache entry", slog.String("role", string(role)))
	} else if !errors.Is(err, redis.Nil) {
		p.logger.Warn("authz: permission cache read", slog.Any("error", err))
	}

	perms, err := p.load(ctx, role)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(perms))
	for _, perm := range perms {
		names = append(names, perm.String())
	}
	raw, err := json.Marshal(names)
	if err != nil {
		return nil, err
	}
	if err := p.redis.Set(ctx, key, raw, p.ttl).Err(); err != nil {
		p.logger.Warn("authz: permission cache write", slog.Any("error", err))
	}
	return perms, nil
}

func (p *PermissionStore) load(ctx context.Context, role Role) ([]Permission, error) {
	rows, err := p.store.Select(ctx, storage.Select{
		Table: RolePermissionsTable,
		Where: query.Eq{Column: "role", Value: string(role)},
	})
	if err != nil {
		return nil, fmt.Errorf("authz: load permissions for %s: %w", role, err)
	}
	perms := make([]Permission, 0, len(rows))
	for _, rec := range rows {
		var row permissionRow
		if err := entity.DecodeInto(rec, &row); err != nil {
			return nil, fmt.Errorf("authz: decode permission for %s: %w", role, err)
		}
		perm, err := ParsePermission(row.Resource + "." + row.Action)
		if err != nil {
			p.logger.Warn("authz: skipping malformed permission", slog.String("role", string(role)), slog.Any("error", err))
			continue
		}
		perms = append(perms, perm)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].String() < perms[j].String() })
	return perms, nil
}

func parsePermissions(names []string) []Permission {
	perms := make([]Permission, 0, len(names))
	for _, n := range names {
		if perm, err := ParsePermission(n); err == nil {
			perms = append(perms, perm)
		}
	}
	return perms
}
