// Package users implements administrative user management. Every operation
// requires SYSTEM_ADMIN. Users are never removed: deleting a user disables it.
package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/rbac"
	"github.com/platinummonkey/taskcore/pkg/session"
	"github.com/platinummonkey/taskcore/pkg/storage"
)

// CreateInput creates a user. Roles defaults to USER.
type CreateInput struct {
	Email    string   `json:"email"`
	FullName string   `json:"fullName"`
	Password string   `json:"password"`
	Enabled  bool     `json:"enabled"`
	Roles    []string `json:"roles"`
}

// UpdateInput changes a user; nil fields are left unchanged.
type UpdateInput struct {
	FullName *string `json:"fullName"`
	Enabled  *bool   `json:"enabled"`
}

// Service manages user accounts on behalf of administrators.
type Service struct {
	store   storage.Store
	encoder auth.PasswordEncoder
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewService creates a user admin service.
func NewService(store storage.Store, encoder auth.PasswordEncoder, log logrus.FieldLogger) *Service {
	return &Service{
		store:   store,
		encoder: encoder,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) List(ctx context.Context, p *auth.Principal, page model.Page) (model.PageResult[model.User], error) {
	if err := rbac.Require(p, rbac.PermSystemAdmin); err != nil {
		return model.PageResult[model.User]{}, err
	}
	page = page.Normalize()
	users, total, err := s.store.ListUsers(ctx, page)
	if err != nil {
		return model.PageResult[model.User]{}, apperrors.Internal(err)
	}
	return model.NewPageResult(users, total, page), nil
}

func (s *Service) Get(ctx context.Context, p *auth.Principal, id int64) (*model.User, error) {
	if err := rbac.Require(p, rbac.PermSystemAdmin); err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, notFound(err, apperrors.CodeUserNotFound)
	}
	return user, nil
}

// Create adds a user with the requested roles and enabled flag. No
// verification mail is sent.
func (s *Service) Create(ctx context.Context, p *auth.Principal, in CreateInput) (*model.User, error) {
	if err := rbac.Require(p, rbac.PermSystemAdmin); err != nil {
		return nil, err
	}
	email := model.NormalizeEmail(in.Email)
	if err := session.ValidateEmail(email); err != nil {
		return nil, err
	}
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		return nil, apperrors.Newf(apperrors.CodeValidation, "fullName is required")
	}
	if err := session.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	names := in.Roles
	if len(names) == 0 {
		names = []string{rbac.RoleUser}
	}

	hash, err := s.encoder.Encode(in.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	var user *model.User
	err = s.store.WithTx(ctx, func(q storage.Queries) error {
		exists, err := q.EmailExists(ctx, email)
		if err != nil {
			return apperrors.Internal(err)
		}
		if exists {
			return apperrors.New(apperrors.CodeEmailAlreadyExists)
		}

		roles, err := resolveRoles(ctx, q, names)
		if err != nil {
			return err
		}

		now := s.now()
		user = &model.User{
			Email:        email,
			PasswordHash: hash,
			FullName:     fullName,
			Enabled:      in.Enabled,
			Roles:        roles,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := q.CreateUser(ctx, user); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return apperrors.New(apperrors.CodeEmailAlreadyExists)
			}
			return apperrors.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "actor_id": p.UserID}).Info("User created")
	return user, nil
}

func (s *Service) Update(ctx context.Context, p *auth.Principal, id int64, in UpdateInput) (*model.User, error) {
	if err := rbac.Require(p, rbac.PermSystemAdmin); err != nil {
		return nil, err
	}
	if in.FullName != nil && strings.TrimSpace(*in.FullName) == "" {
		return nil, apperrors.Newf(apperrors.CodeValidation, "fullName must not be blank")
	}

	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, notFound(err, apperrors.CodeUserNotFound)
	}
	if in.FullName != nil {
		user.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Enabled != nil {
		user.Enabled = *in.Enabled
	}
	user.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, notFound(err, apperrors.CodeUserNotFound)
	}
	return user, nil
}

// Delete disables the user in place.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, id int64) error {
	enabled := false
	if _, err := s.Update(ctx, p, id, UpdateInput{Enabled: &enabled}); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"user_id": id, "actor_id": p.UserID}).Info("User disabled")
	return nil
}

// SetRoles replaces the user's role set.
func (s *Service) SetRoles(ctx context.Context, p *auth.Principal, id int64, names []string) (*model.User, error) {
	if err := rbac.Require(p, rbac.PermSystemAdmin); err != nil {
		return nil, err
	}

	var user *model.User
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		var err error
		user, err = q.GetUserByID(ctx, id)
		if err != nil {
			return notFound(err, apperrors.CodeUserNotFound)
		}
		roles, err := resolveRoles(ctx, q, names)
		if err != nil {
			return err
		}
		ids := make([]int64, len(roles))
		for i, r := range roles {
			ids[i] = r.ID
		}
		if err := q.SetUserRoles(ctx, user.ID, ids); err != nil {
			return apperrors.Internal(err)
		}
		user.Roles = roles
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  id,
		"actor_id": p.UserID,
		"roles":    user.RoleNames(),
	}).Info("User roles replaced")
	return user, nil
}

// resolveRoles loads roles by upper-cased name, failing ROLE_NOT_FOUND on
// the first unknown one.
func resolveRoles(ctx context.Context, q storage.RoleReader, names []string) ([]model.Role, error) {
	roles := make([]model.Role, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToUpper(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true

		role, err := q.GetRoleByName(ctx, n)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, apperrors.Newf(apperrors.CodeRoleNotFound, "role %s not found", n)
			}
			return nil, apperrors.Internal(err)
		}
		roles = append(roles, *role)
	}
	return roles, nil
}

func notFound(err error, code apperrors.Code) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.New(code)
	}
	return apperrors.Internal(err)
}
