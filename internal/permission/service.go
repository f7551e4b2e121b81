package permission

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/auth-rbac/internal"
	rbacDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/rbac"
	"github.com/frahmantamala/auth-rbac/internal/credential"
	"github.com/frahmantamala/auth-rbac/internal/rbac"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RepositoryAPI interface {
	List(ctx context.Context) ([]*rbacDatamodel.Permission, error)
	FindByID(ctx context.Context, id string) (*rbacDatamodel.Permission, error)
	FindByPair(ctx context.Context, module, action string) (*rbacDatamodel.Permission, error)
	Create(ctx context.Context, p *rbacDatamodel.Permission) error
	Update(ctx context.Context, p *rbacDatamodel.Permission) (bool, error)
	// Delete removes the permission with every grant of it.
	Delete(ctx context.Context, id string) (bool, error)
}

// CacheInvalidator drops resolved grants after permissions change.
type CacheInvalidator interface {
	InvalidateAll(ctx context.Context)
}

type Service struct {
	repo   RepositoryAPI
	cache  CacheInvalidator
	clock  credential.Clock
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, cache CacheInvalidator, clock credential.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = credential.SystemClock{}
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		clock:  clock,
		logger: logger,
	}
}

func (s *Service) Create(ctx context.Context, module, action string) (*Permission, error) {
	existing, err := s.repo.FindByPair(ctx, module, action)
	if err != nil {
		return nil, internal.NewInternalError("failed to look up permission", err)
	}
	if existing != nil {
		return nil, internal.ErrPermissionAlreadyExists
	}

	now := s.clock.Now()
	p := &rbacDatamodel.Permission{ID: uuid.NewString(), Module: module, Action: action, CreatedAt: now, UpdatedAt: now}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, internal.ErrPermissionAlreadyExists
		}
		return nil, internal.NewInternalError("failed to create permission", err)
	}

	s.logger.InfoContext(ctx, "permission created", "permission_id", p.ID, "key", p.Key())
	return FromDataModel(p), nil
}

func (s *Service) List(ctx context.Context) ([]*Permission, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list permissions", err)
	}
	perms := make([]*Permission, 0, len(rows))
	for _, row := range rows {
		perms = append(perms, FromDataModel(row))
	}
	return perms, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Permission, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to get permission", err)
	}
	if row == nil {
		return nil, internal.ErrPermissionNotFound
	}
	return FromDataModel(row), nil
}

func (s *Service) Update(ctx context.Context, id, module, action string) (*Permission, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to get permission", err)
	}
	if row == nil {
		return nil, internal.ErrPermissionNotFound
	}

	row.Module, row.Action, row.UpdatedAt = module, action, s.clock.Now()
	if _, err := s.repo.Update(ctx, row); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, internal.ErrPermissionAlreadyExists
		}
		return nil, internal.NewInternalError("failed to update permission", err)
	}
	s.cache.InvalidateAll(ctx)

	s.logger.InfoContext(ctx, "permission updated", "permission_id", id, "key", row.Key())
	return FromDataModel(row), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return internal.NewInternalError("failed to delete permission", err)
	}
	if !ok {
		return internal.ErrPermissionNotFound
	}
	s.cache.InvalidateAll(ctx)
	s.logger.InfoContext(ctx, "permission deleted", "permission_id", id)
	return nil
}

// Seed creates every module and action pair that does not exist yet.
func (s *Service) Seed(ctx context.Context) ([]*Permission, error) {
	for _, module := range rbac.Modules {
		for _, action := range rbac.Actions {
			if _, err := s.Create(ctx, module, action); err != nil && !errors.Is(err, internal.ErrPermissionAlreadyExists) {
				return nil, err
			}
		}
	}
	return s.List(ctx)
}
