package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/auth-rbac/internal/authtoken"
	"github.com/frahmantamala/auth-rbac/internal/core/datamodel"
	tokenDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/token"
	"gorm.io/gorm"
)

type AuthTokenRepository struct {
	db *gorm.DB
}

func NewAuthTokenRepository(db *gorm.DB) authtoken.RepositoryAPI {
	return &AuthTokenRepository{db: db}
}

func (r *AuthTokenRepository) Create(ctx context.Context, token *tokenDatamodel.AuthToken) error {
	return datamodel.Conn(ctx, r.db).Create(token).Error
}

func (r *AuthTokenRepository) FindByAccessHash(ctx context.Context, hash string) (*tokenDatamodel.AuthToken, error) {
	return r.findOne(ctx, "access_token_hash = ?", hash)
}

func (r *AuthTokenRepository) FindByRefreshHash(ctx context.Context, hash string) (*tokenDatamodel.AuthToken, error) {
	return r.findOne(ctx, "refresh_token_hash = ?", hash)
}

func (r *AuthTokenRepository) findOne(ctx context.Context, query string, args ...interface{}) (*tokenDatamodel.AuthToken, error) {
	var token tokenDatamodel.AuthToken
	err := datamodel.Conn(ctx, r.db).Where(query, args...).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (r *AuthTokenRepository) Replace(ctx context.Context, userID, oldRefreshHash string, next *tokenDatamodel.AuthToken) (bool, error) {
	replaced := false
	err := datamodel.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND refresh_token_hash = ?", userID, oldRefreshHash).
			Delete(&tokenDatamodel.AuthToken{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Create(next).Error; err != nil {
			return err
		}
		replaced = true
		return nil
	})
	return replaced, err
}

func (r *AuthTokenRepository) DeleteByAccessHash(ctx context.Context, hash string) (int64, error) {
	res := datamodel.Conn(ctx, r.db).Where("access_token_hash = ?", hash).Delete(&tokenDatamodel.AuthToken{})
	return res.RowsAffected, res.Error
}

func (r *AuthTokenRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	res := datamodel.Conn(ctx, r.db).Where("user_id = ?", userID).Delete(&tokenDatamodel.AuthToken{})
	return res.RowsAffected, res.Error
}
