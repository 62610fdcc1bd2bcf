package rbac

// Built-in permission names.
const (
	PermSystemAdmin     = "SYSTEM_ADMIN"
	PermTaskRead        = "TASK_READ"
	PermTaskCreate      = "TASK_CREATE"
	PermTaskUpdateOwned = "TASK_UPDATE_OWN_OR_ASSIGNED"
	PermTaskDeleteOwned = "TASK_DELETE_OWN_OR_ASSIGNED"
	PermTaskAssign      = "TASK_ASSIGN"
	PermAdminGrant      = "ADMIN_GRANT"
)

// Built-in role names.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// PermissionSpec describes a catalog permission.
type PermissionSpec struct {
	Name        string
	Description string
}

// RoleSpec describes a catalog role and the permissions it is granted.
type RoleSpec struct {
	Name        string
	Description string
	Permissions []string
}

// Permissions is the built-in permission catalog.
var Permissions = []PermissionSpec{
	{PermSystemAdmin, "Full administrative access; bypasses ownership checks"},
	{PermTaskRead, "View tasks the caller created or is assigned to"},
	{PermTaskCreate, "Create tasks"},
	{PermTaskUpdateOwned, "Update tasks the caller created or is assigned to"},
	{PermTaskDeleteOwned, "Delete tasks the caller created or is assigned to"},
	{PermTaskAssign, "Assign tasks to users"},
	{PermAdminGrant, "Grant roles and permissions"},
}

// Roles is the built-in role catalog.
var Roles = []RoleSpec{
	{
		Name:        RoleUser,
		Description: "Default role for registered users",
		Permissions: []string{PermTaskRead, PermTaskCreate, PermTaskUpdateOwned, PermTaskDeleteOwned},
	},
	{
		Name:        RoleAdmin,
		Description: "Administrator",
		Permissions: allPermissionNames(),
	},
}

func allPermissionNames() []string {
	names := make([]string, len(Permissions))
	for i, p := range Permissions {
		names[i] = p.Name
	}
	return names
}
