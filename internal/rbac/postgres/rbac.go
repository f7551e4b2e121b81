package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/auth-rbac/internal/core/datamodel"
	rbacDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/rbac"
	"github.com/frahmantamala/auth-rbac/internal/rbac"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const loadGrantsQuery = `
SELECT r.name AS role_name,
       COALESCE(p.module, '') AS module,
       COALESCE(p.action, '') AS action
FROM role_users ru
JOIN roles r ON r.id = ru.role_id
LEFT JOIN role_permissions rp ON rp.role_id = r.id AND rp.can_do_the_action = ?
LEFT JOIN permissions p ON p.id = rp.permission_id
WHERE ru.user_id = ?
ORDER BY r.name`

// RBACRepository writes through gorm and resolves grants with a single sqlx
// join over the same connection pool.
type RBACRepository struct {
	db    *gorm.DB
	query *sqlx.DB
}

func NewRBACRepository(db *gorm.DB, query *sqlx.DB) rbac.RepositoryAPI {
	return &RBACRepository{db: db, query: query}
}

func (r *RBACRepository) LoadGrants(ctx context.Context, userID string) ([]rbac.GrantRow, error) {
	var rows []rbac.GrantRow
	if err := r.query.SelectContext(ctx, &rows, r.query.Rebind(loadGrantsQuery), true, userID); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *RBACRepository) RoleExists(ctx context.Context, roleID string) (bool, error) {
	var n int64
	err := datamodel.Conn(ctx, r.db).Model(&rbacDatamodel.Role{}).Where("id = ?", roleID).Count(&n).Error
	return n > 0, err
}

func (r *RBACRepository) PermissionExists(ctx context.Context, permissionID string) (bool, error) {
	var n int64
	err := datamodel.Conn(ctx, r.db).Model(&rbacDatamodel.Permission{}).Where("id = ?", permissionID).Count(&n).Error
	return n > 0, err
}

func (r *RBACRepository) FindRoleByName(ctx context.Context, name string) (*rbacDatamodel.Role, error) {
	var role rbacDatamodel.Role
	err := datamodel.Conn(ctx, r.db).Where("name = ?", name).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

// CreateRole runs in its own savepoint so a duplicate name leaves an
// enclosing transaction usable.
func (r *RBACRepository) CreateRole(ctx context.Context, role *rbacDatamodel.Role) error {
	return datamodel.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return tx.Create(role).Error
	})
}

func (r *RBACRepository) AssignRole(ctx context.Context, userID, roleID string, at time.Time) error {
	return datamodel.Conn(ctx, r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rbacDatamodel.RoleUser{UserID: userID, RoleID: roleID, CreatedAt: at}).Error
}

func (r *RBACRepository) RemoveRole(ctx context.Context, userID, roleID string) (int64, error) {
	res := datamodel.Conn(ctx, r.db).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&rbacDatamodel.RoleUser{})
	return res.RowsAffected, res.Error
}

func (r *RBACRepository) UpsertGrant(ctx context.Context, roleID, permissionID string, enabled bool, at time.Time) error {
	grant := &rbacDatamodel.RolePermission{
		RoleID:         roleID,
		PermissionID:   permissionID,
		CanDoTheAction: enabled,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	return datamodel.Conn(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "role_id"}, {Name: "permission_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"can_do_the_action", "updated_at"}),
		}).
		Create(grant).Error
}

func (r *RBACRepository) UpdateGrant(ctx context.Context, roleID, permissionID string, enabled bool, at time.Time) (int64, error) {
	res := datamodel.Conn(ctx, r.db).
		Model(&rbacDatamodel.RolePermission{}).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Updates(map[string]interface{}{"can_do_the_action": enabled, "updated_at": at})
	return res.RowsAffected, res.Error
}

func (r *RBACRepository) DeleteGrant(ctx context.Context, roleID, permissionID string) (int64, error) {
	res := datamodel.Conn(ctx, r.db).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Delete(&rbacDatamodel.RolePermission{})
	return res.RowsAffected, res.Error
}
