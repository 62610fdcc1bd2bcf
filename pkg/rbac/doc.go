// Package rbac resolves and administers role-based permissions.
//
// Permissions are named capabilities (TASK_READ, SYSTEM_ADMIN, ...). Roles are
// named sets of permissions, and a user holds any number of roles. A user's
// effective permission set is the union of the permissions of every role they
// hold, deduplicated by name:
//
//	resolver := rbac.NewResolver(store, 256, 5*time.Minute)
//	perms, err := resolver.Permissions(ctx, user.RoleNames())
//
// The Resolver caches each role's permission names. AdminService invalidates
// the cache on every role or permission mutation.
//
// Seed installs the built-in catalog (roles USER and ADMIN and their
// permissions) and is safe to run on every start.
package rbac
