package rbac

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/storage/sqlstore"
	"github.com/platinummonkey/taskcore/pkg/storage/storetest"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func seededStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	store := storetest.New(t)
	require.NoError(t, Seed(context.Background(), store, quietLogger()))
	return store
}

func adminPrincipal() *auth.Principal {
	return auth.NewPrincipal(1, "admin@example.com", []string{RoleAdmin}, allPermissionNames())
}

func userPrincipal() *auth.Principal {
	return auth.NewPrincipal(2, "user@example.com", []string{RoleUser}, Roles[0].Permissions)
}

func TestCatalog(t *testing.T) {
	assert.Len(t, Permissions, 7)
	assert.Equal(t, []string{PermTaskRead, PermTaskCreate, PermTaskUpdateOwned, PermTaskDeleteOwned}, Roles[0].Permissions)
	assert.ElementsMatch(t, allPermissionNames(), Roles[1].Permissions)
}

func TestSeed_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	require.NoError(t, Seed(ctx, store, quietLogger()))

	perms, err := store.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, perms, len(Permissions))

	user, err := store.GetRoleByName(ctx, RoleUser)
	require.NoError(t, err)
	assert.ElementsMatch(t, Roles[0].Permissions, user.PermissionNames())

	admin, err := store.GetRoleByName(ctx, RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, admin.Permissions, len(Permissions))
}

func TestSeed_AddsMissingGrantsWithoutRemoving(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	role, err := store.GetRoleByName(ctx, RoleUser)
	require.NoError(t, err)
	assign, err := store.GetPermissionByName(ctx, PermTaskAssign)
	require.NoError(t, err)
	read, err := store.GetPermissionByName(ctx, PermTaskRead)
	require.NoError(t, err)

	// USER loses everything except TASK_READ and gains TASK_ASSIGN.
	require.NoError(t, store.SetRolePermissions(ctx, role.ID, []int64{read.ID, assign.ID}))
	require.NoError(t, Seed(ctx, store, quietLogger()))

	role, err = store.GetRoleByName(ctx, RoleUser)
	require.NoError(t, err)
	assert.ElementsMatch(t, append([]string{PermTaskAssign}, Roles[0].Permissions...), role.PermissionNames())
}

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	encoder := auth.NewBcryptEncoder(4)

	created, err := SeedAdmin(ctx, store, encoder, " Admin@Example.com ", "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = SeedAdmin(ctx, store, encoder, "admin@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.False(t, created)

	user, err := store.GetUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.True(t, user.Enabled)
	assert.Equal(t, []string{RoleAdmin}, user.RoleNames())
	assert.True(t, encoder.Matches(user.PasswordHash, "s3cret-pass"))

	created, err = SeedAdmin(ctx, store, encoder, "", "")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestResolver_UnionDeduplicated(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	resolver := NewResolver(store, 16, time.Minute)

	perms, err := resolver.Permissions(ctx, []string{RoleUser, RoleAdmin, "GHOST"})
	require.NoError(t, err)
	assert.Len(t, perms, len(Permissions))
	assert.Equal(t, Roles[0].Permissions, perms[:4], "first-seen order")
	assert.Equal(t, 2, resolver.Len(), "unknown roles are not cached")

	empty, err := resolver.Permissions(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestResolver_InvalidatedByAdminMutation(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	resolver := NewResolver(store, 16, time.Hour)
	admin := NewAdminService(store, resolver, quietLogger())

	perms, err := resolver.Permissions(ctx, []string{RoleUser})
	require.NoError(t, err)
	assert.NotContains(t, perms, PermTaskAssign)

	role, err := store.GetRoleByName(ctx, RoleUser)
	require.NoError(t, err)
	_, err = admin.UpdateRole(ctx, adminPrincipal(), role.ID, RoleUpdate{
		Permissions: []string{PermTaskRead, PermTaskAssign},
	})
	require.NoError(t, err)

	perms, err = resolver.Permissions(ctx, []string{RoleUser})
	require.NoError(t, err)
	assert.Equal(t, []string{PermTaskRead, PermTaskAssign}, perms)
}

func TestRequire(t *testing.T) {
	assert.True(t, apperrors.HasCode(Require(nil, PermSystemAdmin), apperrors.CodeUnauthorized))
	assert.True(t, apperrors.HasCode(Require(userPrincipal(), PermSystemAdmin), apperrors.CodeForbidden))
	assert.NoError(t, Require(adminPrincipal(), PermSystemAdmin))
	assert.True(t, IsSystemAdmin(adminPrincipal()))
	assert.False(t, IsSystemAdmin(userPrincipal()))
}

func TestAdminService_Roles(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	svc := NewAdminService(store, NewResolver(store, 16, time.Minute), quietLogger())
	admin := adminPrincipal()

	_, err := svc.ListRoles(ctx, userPrincipal())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	role, err := svc.CreateRole(ctx, admin, RoleInput{Name: " reviewer ", Permissions: []string{"task_read"}})
	require.NoError(t, err)
	assert.Equal(t, "REVIEWER", role.Name)
	assert.Equal(t, []string{PermTaskRead}, role.PermissionNames())

	_, err = svc.CreateRole(ctx, admin, RoleInput{Name: "Reviewer"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRoleExists))

	_, err = svc.CreateRole(ctx, admin, RoleInput{Name: "OTHER", Permissions: []string{"NOPE"}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionNotFound))

	_, err = svc.CreateRole(ctx, admin, RoleInput{Name: "  "})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	desc := "Reads things"
	updated, err := svc.UpdateRole(ctx, admin, role.ID, RoleUpdate{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Reads things", updated.Description)
	assert.Equal(t, []string{PermTaskRead}, updated.PermissionNames(), "nil permissions leave grants")

	got, err := svc.GetRole(ctx, admin, role.ID)
	require.NoError(t, err)
	assert.Equal(t, "Reads things", got.Description)

	require.NoError(t, svc.DeleteRole(ctx, admin, role.ID))
	err = svc.DeleteRole(ctx, admin, role.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRoleNotFound))

	_, err = svc.GetRole(ctx, admin, role.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRoleNotFound))
}

func TestAdminService_Permissions(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	svc := NewAdminService(store, NewResolver(store, 16, time.Minute), quietLogger())
	admin := adminPrincipal()

	perm, err := svc.CreatePermission(ctx, admin, PermissionInput{Name: "report_export"})
	require.NoError(t, err)
	assert.Equal(t, "REPORT_EXPORT", perm.Name)

	_, err = svc.CreatePermission(ctx, admin, PermissionInput{Name: "REPORT_EXPORT"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionExists))

	taken := PermTaskRead
	_, err = svc.UpdatePermission(ctx, admin, perm.ID, PermissionUpdate{Name: &taken})
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionExists))

	newName, desc := "report_download", "Download reports"
	updated, err := svc.UpdatePermission(ctx, admin, perm.ID, PermissionUpdate{Name: &newName, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "REPORT_DOWNLOAD", updated.Name)
	assert.Equal(t, "Download reports", updated.Description)

	_, err = svc.UpdatePermission(ctx, admin, 9999, PermissionUpdate{Description: &desc})
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionNotFound))

	require.NoError(t, svc.DeletePermission(ctx, admin, perm.ID))
	err = svc.DeletePermission(ctx, admin, perm.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionNotFound))

	perms, err := svc.ListPermissions(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, perms, len(Permissions))
}

func TestMergeGrants(t *testing.T) {
	merged, added := mergeGrants([]int64{1, 2}, []int64{2, 3, 3})
	assert.Equal(t, []int64{1, 2, 3}, merged)
	assert.Equal(t, 1, added)
}
