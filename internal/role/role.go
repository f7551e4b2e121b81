package role

import (
	"time"

	rbacDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/rbac"
)

type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Permissions []Grant   `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Grant is a permission attached to a role, enabled or not.
type Grant struct {
	PermissionID   string `json:"permission_id" gorm:"column:permission_id"`
	Module         string `json:"module" gorm:"column:module"`
	Action         string `json:"action" gorm:"column:action"`
	CanDoTheAction bool   `json:"can_do_the_action" gorm:"column:can_do_the_action"`
}

// GrantRow is a Grant keyed by its role, as loaded in bulk.
type GrantRow struct {
	RoleID string `gorm:"column:role_id"`
	Grant  `gorm:"embedded"`
}

func FromDataModel(r *rbacDatamodel.Role, grants []Grant) *Role {
	if grants == nil {
		grants = []Grant{}
	}
	return &Role{
		ID:          r.ID,
		Name:        r.Name,
		Permissions: grants,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
