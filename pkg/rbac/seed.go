package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/storage"
)

// Seed installs the built-in permission and role catalog. Missing permissions,
// roles and grants are created; existing grants are never removed.
func Seed(ctx context.Context, store storage.Store, log logrus.FieldLogger) error {
	return store.WithTx(ctx, func(q storage.Queries) error {
		ids := make(map[string]int64, len(Permissions))
		for _, spec := range Permissions {
			perm, err := q.GetPermissionByName(ctx, spec.Name)
			if errors.Is(err, storage.ErrNotFound) {
				perm = &model.Permission{Name: spec.Name, Description: spec.Description}
				if err := q.CreatePermission(ctx, perm); err != nil {
					return fmt.Errorf("failed to seed permission %s: %w", spec.Name, err)
				}
				log.WithField("permission", spec.Name).Info("Seeded permission")
			} else if err != nil {
				return fmt.Errorf("failed to look up permission %s: %w", spec.Name, err)
			}
			ids[spec.Name] = perm.ID
		}

		for _, spec := range Roles {
			want := make([]int64, 0, len(spec.Permissions))
			for _, name := range spec.Permissions {
				want = append(want, ids[name])
			}

			role, err := q.GetRoleByName(ctx, spec.Name)
			if errors.Is(err, storage.ErrNotFound) {
				role = &model.Role{Name: spec.Name, Description: spec.Description, CreatedAt: time.Now().UTC()}
				if err := q.CreateRole(ctx, role); err != nil {
					return fmt.Errorf("failed to seed role %s: %w", spec.Name, err)
				}
				if err := q.SetRolePermissions(ctx, role.ID, want); err != nil {
					return fmt.Errorf("failed to grant role %s: %w", spec.Name, err)
				}
				log.WithField("role", spec.Name).Info("Seeded role")
				continue
			} else if err != nil {
				return fmt.Errorf("failed to look up role %s: %w", spec.Name, err)
			}

			merged, added := mergeGrants(permissionIDs(role.Permissions), want)
			if added == 0 {
				continue
			}
			if err := q.SetRolePermissions(ctx, role.ID, merged); err != nil {
				return fmt.Errorf("failed to grant role %s: %w", spec.Name, err)
			}
			log.WithFields(logrus.Fields{"role": spec.Name, "added": added}).Info("Added missing grants to role")
		}
		return nil
	})
}

// SeedAdmin creates an enabled ADMIN user when email is not yet registered.
// It reports whether a user was created.
func SeedAdmin(ctx context.Context, store storage.Store, encoder auth.PasswordEncoder, email, password string) (bool, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return false, nil
	}

	created := false
	err := store.WithTx(ctx, func(q storage.Queries) error {
		exists, err := q.EmailExists(ctx, email)
		if err != nil || exists {
			return err
		}

		role, err := q.GetRoleByName(ctx, RoleAdmin)
		if err != nil {
			return fmt.Errorf("failed to load role %s: %w", RoleAdmin, err)
		}
		hash, err := encoder.Encode(password)
		if err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}

		user := &model.User{
			Email:        email,
			PasswordHash: hash,
			FullName:     "Administrator",
			Enabled:      true,
			Roles:        []model.Role{*role},
			CreatedAt:    time.Now().UTC(),
		}
		if err := q.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}
		created = true
		return nil
	})
	return created, err
}

// mergeGrants returns have plus every id of want not already present, and how
// many ids were added.
func mergeGrants(have, want []int64) ([]int64, int) {
	seen := make(map[int64]bool, len(have))
	for _, id := range have {
		seen[id] = true
	}
	out := append([]int64(nil), have...)
	added := 0
	for _, id := range want {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
			added++
		}
	}
	return out, added
}

func permissionIDs(perms []model.Permission) []int64 {
	ids := make([]int64, len(perms))
	for i, p := range perms {
		ids[i] = p.ID
	}
	return ids
}
