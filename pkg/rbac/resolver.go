package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/taskcore/pkg/storage"
)

// Resolver computes effective permission sets, caching the permission names
// of each role.
type Resolver struct {
	roles storage.RoleReader
	cache *lru.LRU[string, []string]
}

// NewResolver creates a resolver. size bounds the number of cached roles and
// ttl bounds how stale a cached role may become.
func NewResolver(roles storage.RoleReader, size int, ttl time.Duration) *Resolver {
	if size <= 0 {
		size = 256
	}
	return &Resolver{
		roles: roles,
		cache: lru.NewLRU[string, []string](size, nil, ttl),
	}
}

// Permissions returns the union of the permissions granted by the named
// roles, deduplicated by name in first-seen order. Unknown roles contribute
// nothing.
func (r *Resolver) Permissions(ctx context.Context, roleNames []string) ([]string, error) {
	seen := make(map[string]bool)
	out := []string{}
	for _, name := range roleNames {
		perms, err := r.rolePermissions(ctx, name)
		if err != nil {
			return nil, err
		}
		for _, p := range perms {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (r *Resolver) rolePermissions(ctx context.Context, name string) ([]string, error) {
	if perms, ok := r.cache.Get(name); ok {
		return perms, nil
	}

	role, err := r.roles.GetRoleByName(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve role %s: %w", name, err)
	}

	perms := role.PermissionNames()
	r.cache.Add(name, perms)
	return perms, nil
}

// Invalidate drops every cached role.
func (r *Resolver) Invalidate() {
	r.cache.Purge()
}

// Len returns the number of cached roles.
func (r *Resolver) Len() int {
	return r.cache.Len()
}
