// Package datamodel groups the persistence models shared by the repositories.
package datamodel

import (
	"github.com/frahmantamala/auth-rbac/internal/core/datamodel/rbac"
	"github.com/frahmantamala/auth-rbac/internal/core/datamodel/token"
	"github.com/frahmantamala/auth-rbac/internal/core/datamodel/user"
)

// All returns every model in dependency order. Production schemas come from
// the goose migrations; this list drives AutoMigrate for in-memory databases.
func All() []interface{} {
	return []interface{}{
		&user.User{},
		&rbac.Role{},
		&rbac.Permission{},
		&rbac.RolePermission{},
		&rbac.RoleUser{},
		&token.AuthToken{},
		&token.VerificationToken{},
	}
}
