package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/auth-rbac/internal/core/datamodel"
	rbacDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/rbac"
	tokenDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/token"
	userDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/user"
	"github.com/frahmantamala/auth-rbac/internal/user"
	"gorm.io/gorm"
)

const emailFreeClause = "NOT EXISTS (SELECT 1 FROM users u2 WHERE u2.id <> ? AND (u2.email = ? OR u2.new_email = ?))"

var errEmailHeld = errors.New("email held by another user")

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.RepositoryAPI {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *userDatamodel.User) error {
	return datamodel.Conn(ctx, r.db).Create(u).Error
}

func (r *UserRepository) CreateIfEmailFree(ctx context.Context, u *userDatamodel.User) (bool, error) {
	err := datamodel.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		var n int64
		err := tx.Model(&userDatamodel.User{}).
			Where("id = ?", u.ID).
			Where(emailFreeClause, u.ID, u.Email, u.Email).
			Count(&n).Error
		if err != nil {
			return err
		}
		if n == 0 {
			return errEmailHeld
		}
		return nil
	})
	if errors.Is(err, errEmailHeld) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	return err == nil, err
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...interface{}) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := datamodel.Conn(ctx, r.db).Where(query, args...).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*userDatamodel.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *UserRepository) FindByNewEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	return r.findOne(ctx, "new_email = ?", email)
}

func (r *UserRepository) EmailTaken(ctx context.Context, email, exceptUserID string) (bool, error) {
	var n int64
	err := datamodel.Conn(ctx, r.db).
		Model(&userDatamodel.User{}).
		Where("id <> ? AND (email = ? OR new_email = ?)", exceptUserID, email, email).
		Count(&n).Error
	return n > 0, err
}

func (r *UserRepository) update(ctx context.Context, scope func(*gorm.DB) *gorm.DB, values map[string]interface{}) (bool, error) {
	res := scope(datamodel.Conn(ctx, r.db).Model(&userDatamodel.User{})).Updates(values)
	return res.RowsAffected > 0, res.Error
}

func (r *UserRepository) UpdateStatus(ctx context.Context, id, status string, at time.Time) (bool, error) {
	return r.update(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}, map[string]interface{}{"status": status, "updated_at": at})
}

func (r *UserRepository) SetPendingEmail(ctx context.Context, id, email string, at time.Time) (bool, error) {
	return r.update(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ? AND status = ?", id, userDatamodel.StatusActive).
			Where(emailFreeClause, id, email, email)
	}, map[string]interface{}{"new_email": email, "updated_at": at})
}

func (r *UserRepository) ClearPendingEmail(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.update(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ? AND new_email IS NOT NULL", id)
	}, map[string]interface{}{"new_email": nil, "updated_at": at})
}

func (r *UserRepository) PromotePendingEmail(ctx context.Context, id, expected string, at time.Time) (bool, error) {
	return r.update(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ? AND new_email = ?", id, expected)
	}, map[string]interface{}{"email": expected, "new_email": nil, "updated_at": at})
}

func (r *UserRepository) SetEmail(ctx context.Context, id, email string, at time.Time) (bool, error) {
	return r.update(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id).Where(emailFreeClause, id, email, email)
	}, map[string]interface{}{"email": email, "updated_at": at})
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string, history []string, at time.Time) (bool, error) {
	// Updates with a struct so the json serializer applies to the history.
	res := datamodel.Conn(ctx, r.db).
		Model(&userDatamodel.User{ID: id}).
		Select("password_hash", "password_history", "updated_at").
		Updates(&userDatamodel.User{PasswordHash: &hash, PasswordHistory: history, UpdatedAt: at})
	return res.RowsAffected > 0, res.Error
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update user.ProfileUpdate, at time.Time) (bool, error) {
	values := map[string]interface{}{"updated_at": at}
	if update.FirstName != nil {
		values["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		values["last_name"] = *update.LastName
	}
	if update.Status != nil {
		values["status"] = *update.Status
	}
	return r.update(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}, values)
}

func (r *UserRepository) List(ctx context.Context, filter user.ListFilter) ([]*userDatamodel.User, int64, error) {
	query := datamodel.Conn(ctx, r.db).Model(&userDatamodel.User{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []*userDatamodel.User
	err := query.Order("created_at ASC").Order("id ASC").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&users).Error
	return users, total, err
}

func (r *UserRepository) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := datamodel.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&rbacDatamodel.RoleUser{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&tokenDatamodel.AuthToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&tokenDatamodel.VerificationToken{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&userDatamodel.User{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}
