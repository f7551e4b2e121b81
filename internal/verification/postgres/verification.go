package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/auth-rbac/internal/core/datamodel"
	tokenDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/token"
	"github.com/frahmantamala/auth-rbac/internal/verification"
	"gorm.io/gorm"
)

type VerificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) verification.RepositoryAPI {
	return &VerificationRepository{db: db}
}

func (r *VerificationRepository) Create(ctx context.Context, token *tokenDatamodel.VerificationToken) error {
	return datamodel.Conn(ctx, r.db).Create(token).Error
}

func (r *VerificationRepository) FindEffective(ctx context.Context, filter verification.Filter) (*tokenDatamodel.VerificationToken, error) {
	q := datamodel.Conn(ctx, r.db).
		Where("token_hash = ? AND type = ? AND status = ? AND expires_at > ?",
			filter.TokenHash, filter.Type, tokenDatamodel.StatusUnverified, filter.Now)
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Email != "" {
		q = q.Where("email = ?", filter.Email)
	}

	var token tokenDatamodel.VerificationToken
	err := q.Order("created_at DESC").First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (r *VerificationRepository) MarkVerified(ctx context.Context, id string, filter verification.Filter) (bool, error) {
	res := datamodel.Conn(ctx, r.db).
		Model(&tokenDatamodel.VerificationToken{}).
		Where("id = ? AND status = ? AND expires_at > ?", id, tokenDatamodel.StatusUnverified, filter.Now).
		Updates(map[string]interface{}{
			"status":     tokenDatamodel.StatusVerified,
			"updated_at": filter.Now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *VerificationRepository) CancelAll(ctx context.Context, userID, tokenType string, filter verification.Filter) (int64, error) {
	res := datamodel.Conn(ctx, r.db).
		Model(&tokenDatamodel.VerificationToken{}).
		Where("user_id = ? AND type = ? AND status = ?", userID, tokenType, tokenDatamodel.StatusUnverified).
		Updates(map[string]interface{}{
			"status":     tokenDatamodel.StatusCancelled,
			"updated_at": filter.Now,
		})
	return res.RowsAffected, res.Error
}

func (r *VerificationRepository) DeleteAll(ctx context.Context, userID, tokenType string) (int64, error) {
	res := datamodel.Conn(ctx, r.db).
		Where("user_id = ? AND type = ?", userID, tokenType).
		Delete(&tokenDatamodel.VerificationToken{})
	return res.RowsAffected, res.Error
}
