package rbac

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/storage"
)

// RoleInput creates a role.
type RoleInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// RoleUpdate changes a role. A nil Description leaves it unchanged; a nil
// Permissions leaves the grants unchanged, while an empty one clears them.
type RoleUpdate struct {
	Description *string  `json:"description"`
	Permissions []string `json:"permissions"`
}

// PermissionInput creates a permission.
type PermissionInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PermissionUpdate changes a permission; nil fields are left unchanged.
type PermissionUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// AdminService manages roles and permissions. Every operation requires
// SYSTEM_ADMIN.
type AdminService struct {
	store    storage.Store
	resolver *Resolver
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewAdminService creates an admin service.
func NewAdminService(store storage.Store, resolver *Resolver, log logrus.FieldLogger) *AdminService {
	return &AdminService{
		store:    store,
		resolver: resolver,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *AdminService) ListRoles(ctx context.Context, p *auth.Principal) ([]model.Role, error) {
	if err := Require(p, PermSystemAdmin); err != nil {
		return nil, err
	}
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return roles, nil
}

func (s *AdminService) GetRole(ctx context.Context, p *auth.Principal, id int64) (*model.Role, error) {
	if err := Require(p, PermSystemAdmin); err != nil {
		return nil, err
	}
	role, err := s.store.GetRoleByID(ctx, id)
	if err != nil {
		return nil, notFound(err, apperrors.CodeRoleNotFound)
	}
	return role, nil
}

// CreateRole upper-cases the name and resolves every permission by name.
func (s *AdminService) CreateRole(ctx context.Context, p *auth.Principal, in RoleInput) (*model.Role, error) {
	if err := Require(p, PermSystemAdmin); err != nil {
		return nil, err
	}
	name := strings.ToUpper(strings.TrimSpace(in.Name))
	if name == "" {
		return nil, apperrors.Newf(apperrors.CodeValidation, "role name is required")
	}

	var role *model.Role
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		if _, err := q.GetRoleByName(ctx, name); err == nil {
			return apperrors.New(apperrors.CodeRoleExists)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return apperrors.Internal(err)
		}

		perms, err := resolvePermissions(ctx, q, in.Permissions)
		if err != nil {
			return err
		}

		role = &model.Role{
			Name:        name,
			Description: strings.TrimSpace(in.Description),
			Permissions: perms,
			CreatedAt:   s.now(),
		}
		if err := q.CreateRole(ctx, role); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return apperrors.New(apperrors.CodeRoleExists)
			}
			return apperrors.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.resolver.Invalidate()
	s.log.WithFields(logrus.Fields{"role": name, "actor_id": p.UserID}).Info("Role created")
	return role, nil
}

func (s *AdminService) UpdateRole(ctx context.Context, p *auth.Principal, id int64, in RoleUpdate) (*model.Role, error) {
	if err := Require(p, PermSystemAdmin); err != nil {
		return nil, err
	}

	var role *model.Role
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		var err error
		role, err = q.GetRoleByID(ctx, id)
		if err != nil {
			return notFound(err, apperrors.CodeRoleNotFound)
		}

		if in.Description != nil {
			role.Description = strings.TrimSpace(*in.Description)
			role.UpdatedAt = s.now()
			if err := q.UpdateRole(ctx, role); err != nil {
				return apperrors.Internal(err)
			}
		}

		if in.Permissions != nil {
			perms, err := resolvePermissions(ctx, q, in.Permissions)
			if err != nil {
				return err
			}
			if err := q.SetRolePermissions(ctx, role.ID, permissionIDs(perms)); err != nil {
				return apperrors.Internal(err)
			}
			role.Permissions = perms
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.resolver.Invalidate()
	return role, nil
}

func (s *AdminService) DeleteRole(ctx context.Context, p *auth.Principal, id int64) error {
	if err := Require(p, PermSystemAdmin); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		if err := q.DeleteRole(ctx, id); err != nil {
			return notFound(err, apperrors.CodeRoleNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.resolver.Invalidate()
	s.log.WithFields(logrus.Fields{"role_id": id, "actor_id": p.UserID}).Info("Role deleted")
	return nil
}

func (s *AdminService) ListPermissions(ctx context.Context, p *auth.Principal) ([]model.Permission, error) {
	if err := Require(p, PermSystemAdmin); err != nil {
		return nil, err
	}
	perms, err := s.store.ListPermissions(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return perms, nil
}

func (s *AdminService) CreatePermission(ctx context.Context, p *auth.Principal, in PermissionInput) (*model.Permission, error) {
	if err := Require(p, PermSystemAdmin); err != nil {
		return nil, err
	}
	name := strings.ToUpper(strings.TrimSpace(in.Name))
	if name == "" {
		return nil, apperrors.Newf(apperrors.CodeValidation, "permission name is required")
	}

	perm := &model.Permission{Name: name, Description: strings.TrimSpace(in.Description)}
	if err := s.store.CreatePermission(ctx, perm); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, apperrors.New(apperrors.CodePermissionExists)
		}
		return nil, apperrors.Internal(err)
	}

	s.resolver.Invalidate()
	return perm, nil
}

// UpdatePermission renames and/or redescribes a permission. A rename onto an
// existing name fails PERMISSION_ALREADY_EXISTS.
func (s *AdminService) UpdatePermission(ctx context.Context, p *auth.Principal, id int64, in PermissionUpdate) (*model.Permission, error) {
	if err := Require(p, PermSystemAdmin); err != nil {
		return nil, err
	}

	var perm *model.Permission
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		var err error
		perm, err = q.GetPermissionByID(ctx, id)
		if err != nil {
			return notFound(err, apperrors.CodePermissionNotFound)
		}

		if in.Name != nil {
			name := strings.ToUpper(strings.TrimSpace(*in.Name))
			if name == "" {
				return apperrors.Newf(apperrors.CodeValidation, "permission name is required")
			}
			if name != perm.Name {
				if _, err := q.GetPermissionByName(ctx, name); err == nil {
					return apperrors.New(apperrors.CodePermissionExists)
				} else if !errors.Is(err, storage.ErrNotFound) {
					return apperrors.Internal(err)
				}
				perm.Name = name
			}
		}
		if in.Description != nil {
			perm.Description = strings.TrimSpace(*in.Description)
		}

		if err := q.UpdatePermission(ctx, perm); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return apperrors.New(apperrors.CodePermissionExists)
			}
			return apperrors.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.resolver.Invalidate()
	return perm, nil
}

// DeletePermission removes the permission and every grant of it.
func (s *AdminService) DeletePermission(ctx context.Context, p *auth.Principal, id int64) error {
	if err := Require(p, PermSystemAdmin); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		if err := q.DeletePermission(ctx, id); err != nil {
			return notFound(err, apperrors.CodePermissionNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.resolver.Invalidate()
	return nil
}

// resolvePermissions loads permissions by (upper-cased) name, failing
// PERMISSION_NOT_FOUND on the first unknown one.
func resolvePermissions(ctx context.Context, q storage.RoleReader, names []string) ([]model.Permission, error) {
	perms := make([]model.Permission, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToUpper(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true

		perm, err := q.GetPermissionByName(ctx, n)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, apperrors.Newf(apperrors.CodePermissionNotFound, "permission %s not found", n)
			}
			return nil, apperrors.Internal(err)
		}
		perms = append(perms, *perm)
	}
	return perms, nil
}

func notFound(err error, code apperrors.Code) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.New(code)
	}
	return apperrors.Internal(err)
}
