package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/auth-rbac/internal/core/datamodel"
	rbacDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/rbac"
	"github.com/frahmantamala/auth-rbac/internal/role"
	"gorm.io/gorm"
)

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) role.RepositoryAPI {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) List(ctx context.Context) ([]*rbacDatamodel.Role, error) {
	var roles []*rbacDatamodel.Role
	err := datamodel.Conn(ctx, r.db).Order("name ASC").Find(&roles).Error
	return roles, err
}

func (r *RoleRepository) FindByID(ctx context.Context, id string) (*rbacDatamodel.Role, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *RoleRepository) FindByName(ctx context.Context, name string) (*rbacDatamodel.Role, error) {
	return r.findOne(ctx, "name = ?", name)
}

func (r *RoleRepository) findOne(ctx context.Context, query string, args ...interface{}) (*rbacDatamodel.Role, error) {
	var found rbacDatamodel.Role
	err := datamodel.Conn(ctx, r.db).Where(query, args...).First(&found).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &found, nil
}

func (r *RoleRepository) Create(ctx context.Context, rl *rbacDatamodel.Role) error {
	return datamodel.Conn(ctx, r.db).Create(rl).Error
}

func (r *RoleRepository) UpdateName(ctx context.Context, rl *rbacDatamodel.Role) (bool, error) {
	res := datamodel.Conn(ctx, r.db).
		Model(&rbacDatamodel.Role{}).
		Where("id = ?", rl.ID).
		Updates(map[string]interface{}{"name": rl.Name, "updated_at": rl.UpdatedAt})
	return res.RowsAffected > 0, res.Error
}

func (r *RoleRepository) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := datamodel.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&rbacDatamodel.RoleUser{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", id).Delete(&rbacDatamodel.RolePermission{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&rbacDatamodel.Role{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

func (r *RoleRepository) GrantsOf(ctx context.Context, roleIDs []string) ([]role.GrantRow, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	var rows []role.GrantRow
	err := datamodel.Conn(ctx, r.db).
		Table("role_permissions rp").
		Select("rp.role_id, rp.permission_id, p.module, p.action, rp.can_do_the_action").
		Joins("JOIN permissions p ON p.id = rp.permission_id").
		Where("rp.role_id IN ?", roleIDs).
		Order("p.module ASC, p.action ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *RoleRepository) FindPermission(ctx context.Context, module, action string) (*rbacDatamodel.Permission, error) {
	var p rbacDatamodel.Permission
	err := datamodel.Conn(ctx, r.db).Where("module = ? AND action = ?", module, action).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
