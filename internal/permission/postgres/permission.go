package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/auth-rbac/internal/core/datamodel"
	rbacDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/rbac"
	"github.com/frahmantamala/auth-rbac/internal/permission"
	"gorm.io/gorm"
)

type PermissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) permission.RepositoryAPI {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) List(ctx context.Context) ([]*rbacDatamodel.Permission, error) {
	var perms []*rbacDatamodel.Permission
	err := datamodel.Conn(ctx, r.db).Order("module ASC").Order("action ASC").Find(&perms).Error
	return perms, err
}

func (r *PermissionRepository) FindByID(ctx context.Context, id string) (*rbacDatamodel.Permission, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *PermissionRepository) FindByPair(ctx context.Context, module, action string) (*rbacDatamodel.Permission, error) {
	return r.findOne(ctx, "module = ? AND action = ?", module, action)
}

func (r *PermissionRepository) findOne(ctx context.Context, query string, args ...interface{}) (*rbacDatamodel.Permission, error) {
	var p rbacDatamodel.Permission
	err := datamodel.Conn(ctx, r.db).Where(query, args...).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *PermissionRepository) Create(ctx context.Context, p *rbacDatamodel.Permission) error {
	return datamodel.Conn(ctx, r.db).Create(p).Error
}

func (r *PermissionRepository) Update(ctx context.Context, p *rbacDatamodel.Permission) (bool, error) {
	res := datamodel.Conn(ctx, r.db).
		Model(&rbacDatamodel.Permission{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{"module": p.Module, "action": p.Action, "updated_at": p.UpdatedAt})
	return res.RowsAffected > 0, res.Error
}

func (r *PermissionRepository) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := datamodel.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("permission_id = ?", id).Delete(&rbacDatamodel.RolePermission{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&rbacDatamodel.Permission{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}
