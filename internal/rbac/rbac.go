// Package rbac resolves a user's roles and the permissions granted to them,
// and manages role assignments and role permission grants.
package rbac

import (
	"slices"
	"sort"
)

const (
	RoleAdmin     = "admin"
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleDeveloper = "developer"
)

const (
	ModuleUser           = "user"
	ModuleRole           = "role"
	ModulePermission     = "permission"
	ModuleRoleUser       = "role_user"
	ModuleRolePermission = "role_permission"
)

const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

var (
	RoleNames = []string{RoleAdmin, RoleUser, RoleModerator, RoleDeveloper}
	Modules   = []string{ModuleUser, ModuleRole, ModulePermission, ModuleRoleUser, ModuleRolePermission}
	Actions   = []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
)

// DefaultRole is attached to every registered user.
const DefaultRole = RoleUser

func IsRoleName(name string) bool { return slices.Contains(RoleNames, name) }
func IsModule(module string) bool { return slices.Contains(Modules, module) }
func IsAction(action string) bool { return slices.Contains(Actions, action) }

// PermissionKey flattens a (module, action) pair into "module.action".
func PermissionKey(module, action string) string {
	return module + "." + action
}

// AllPermissionKeys lists every module and action combination.
func AllPermissionKeys() []string {
	keys := make([]string, 0, len(Modules)*len(Actions))
	for _, m := range Modules {
		for _, a := range Actions {
			keys = append(keys, PermissionKey(m, a))
		}
	}
	return keys
}

// DefaultGrants is the seeded grant matrix per role.
func DefaultGrants() map[string][]string {
	return map[string][]string{
		RoleAdmin: AllPermissionKeys(),
		RoleModerator: {
			PermissionKey(ModuleUser, ActionRead),
			PermissionKey(ModuleUser, ActionUpdate),
			PermissionKey(ModuleRole, ActionRead),
			PermissionKey(ModulePermission, ActionRead),
		},
		RoleDeveloper: {
			PermissionKey(ModuleUser, ActionRead),
			PermissionKey(ModuleRole, ActionRead),
			PermissionKey(ModulePermission, ActionRead),
		},
		RoleUser: {
			PermissionKey(ModuleUser, ActionRead),
		},
	}
}

// Grants is the resolved authorization context of a user.
type Grants struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// GrantRow is one row of the resolution join. Module and Action are empty
// for roles without enabled grants.
type GrantRow struct {
	RoleName string `db:"role_name"`
	Module   string `db:"module"`
	Action   string `db:"action"`
}

// Flatten deduplicates rows into sorted role and permission sets.
func Flatten(rows []GrantRow) *Grants {
	roles := map[string]struct{}{}
	perms := map[string]struct{}{}
	for _, row := range rows {
		roles[row.RoleName] = struct{}{}
		if row.Module != "" && row.Action != "" {
			perms[PermissionKey(row.Module, row.Action)] = struct{}{}
		}
	}
	return &Grants{Roles: sortedKeys(roles), Permissions: sortedKeys(perms)}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
