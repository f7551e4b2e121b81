package rbac

import "time"

type Role struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Name      string    `gorm:"column:name;size:50;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Role) TableName() string {
	return "roles"
}

type Permission struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Module    string    `gorm:"column:module;size:50;not null;uniqueIndex:idx_permissions_module_action"`
	Action    string    `gorm:"column:action;size:50;not null;uniqueIndex:idx_permissions_module_action"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Permission) TableName() string {
	return "permissions"
}

// Key is the flattened "module.action" form used in authorization checks.
func (p Permission) Key() string {
	return p.Module + "." + p.Action
}

// RolePermission is a grant. A disabled grant is kept so it can be re-enabled
// without losing the association.
type RolePermission struct {
	RoleID         string    `gorm:"primaryKey;column:role_id;size:36"`
	PermissionID   string    `gorm:"primaryKey;column:permission_id;size:36"`
	CanDoTheAction bool      `gorm:"column:can_do_the_action;not null"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}

type RoleUser struct {
	UserID    string    `gorm:"primaryKey;column:user_id;size:36"`
	RoleID    string    `gorm:"primaryKey;column:role_id;size:36;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (RoleUser) TableName() string {
	return "role_users"
}
