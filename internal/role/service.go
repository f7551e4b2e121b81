package role

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/frahmantamala/auth-rbac/internal"
	rbacDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/rbac"
	"github.com/frahmantamala/auth-rbac/internal/credential"
	"github.com/frahmantamala/auth-rbac/internal/rbac"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RepositoryAPI interface {
	List(ctx context.Context) ([]*rbacDatamodel.Role, error)
	FindByID(ctx context.Context, id string) (*rbacDatamodel.Role, error)
	FindByName(ctx context.Context, name string) (*rbacDatamodel.Role, error)
	Create(ctx context.Context, r *rbacDatamodel.Role) error
	UpdateName(ctx context.Context, r *rbacDatamodel.Role) (bool, error)
	// Delete removes the role with its assignments and grants.
	Delete(ctx context.Context, id string) (bool, error)
	GrantsOf(ctx context.Context, roleIDs []string) ([]GrantRow, error)
	FindPermission(ctx context.Context, module, action string) (*rbacDatamodel.Permission, error)
}

// GrantManager is the part of rbac.Resolver that edits grants.
type GrantManager interface {
	GrantPermission(ctx context.Context, roleID, permissionID string, enabled bool) error
	UpdatePermission(ctx context.Context, roleID, permissionID string, enabled bool) error
	RevokePermission(ctx context.Context, roleID, permissionID string) error
	InvalidateAll(ctx context.Context)
}

type Service struct {
	repo   RepositoryAPI
	grants GrantManager
	clock  credential.Clock
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, grants GrantManager, clock credential.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = credential.SystemClock{}
	}
	return &Service{
		repo:   repo,
		grants: grants,
		clock:  clock,
		logger: logger,
	}
}

func (s *Service) Create(ctx context.Context, name string) (*Role, error) {
	existing, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, internal.NewInternalError("failed to look up role", err)
	}
	if existing != nil {
		return nil, internal.ErrRoleAlreadyExists
	}

	now := s.clock.Now()
	r := &rbacDatamodel.Role{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.repo.Create(ctx, r); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, internal.ErrRoleAlreadyExists
		}
		return nil, internal.NewInternalError("failed to create role", err)
	}

	s.logger.InfoContext(ctx, "role created", "role_id", r.ID, "name", name)
	return FromDataModel(r, nil), nil
}

// List returns every role with its grants, enabled and disabled.
func (s *Service) List(ctx context.Context) ([]*Role, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list roles", err)
	}
	return s.withGrants(ctx, rows)
}

func (s *Service) Get(ctx context.Context, id string) (*Role, error) {
	row, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	roles, err := s.withGrants(ctx, []*rbacDatamodel.Role{row})
	if err != nil {
		return nil, err
	}
	return roles[0], nil
}

func (s *Service) Update(ctx context.Context, id, name string) (*Role, error) {
	row, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if row.Name == name {
		return s.Get(ctx, id)
	}

	row.Name = name
	row.UpdatedAt = s.clock.Now()
	if _, err := s.repo.UpdateName(ctx, row); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, internal.ErrRoleAlreadyExists
		}
		return nil, internal.NewInternalError("failed to update role", err)
	}
	s.grants.InvalidateAll(ctx)

	s.logger.InfoContext(ctx, "role renamed", "role_id", id, "name", name)
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return internal.NewInternalError("failed to delete role", err)
	}
	if !ok {
		return internal.ErrRoleNotFound
	}
	s.grants.InvalidateAll(ctx)
	s.logger.InfoContext(ctx, "role deleted", "role_id", id)
	return nil
}

// Seed creates every system role that does not exist yet and returns all of
// them.
func (s *Service) Seed(ctx context.Context) ([]*Role, error) {
	for _, name := range rbac.RoleNames {
		if _, err := s.Create(ctx, name); err != nil && !errors.Is(err, internal.ErrRoleAlreadyExists) {
			return nil, err
		}
	}
	return s.List(ctx)
}

// SeedDefaultGrants applies rbac.DefaultGrants. Roles and permissions must be
// seeded first; missing ones are skipped.
func (s *Service) SeedDefaultGrants(ctx context.Context) (int, error) {
	applied := 0
	for roleName, keys := range rbac.DefaultGrants() {
		r, err := s.repo.FindByName(ctx, roleName)
		if err != nil {
			return applied, internal.NewInternalError("failed to look up role", err)
		}
		if r == nil {
			s.logger.WarnContext(ctx, "skipping grants of missing role", "role", roleName)
			continue
		}
		for _, key := range keys {
			module, action, _ := strings.Cut(key, ".")
			p, err := s.repo.FindPermission(ctx, module, action)
			if err != nil {
				return applied, internal.NewInternalError("failed to look up permission", err)
			}
			if p == nil {
				s.logger.WarnContext(ctx, "skipping missing permission", "permission", key)
				continue
			}
			if err := s.grants.GrantPermission(ctx, r.ID, p.ID, true); err != nil {
				return applied, err
			}
			applied++
		}
	}
	return applied, nil
}

func (s *Service) AssignPermission(ctx context.Context, roleID, permissionID string, enabled bool) (*Role, error) {
	if err := s.grants.GrantPermission(ctx, roleID, permissionID, enabled); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "permission granted", "role_id", roleID, "permission_id", permissionID, "enabled", enabled)
	return s.Get(ctx, roleID)
}

func (s *Service) UpdatePermission(ctx context.Context, roleID, permissionID string, enabled bool) (*Role, error) {
	if err := s.grants.UpdatePermission(ctx, roleID, permissionID, enabled); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "permission grant updated", "role_id", roleID, "permission_id", permissionID, "enabled", enabled)
	return s.Get(ctx, roleID)
}

func (s *Service) RevokePermission(ctx context.Context, roleID, permissionID string) error {
	if err := s.grants.RevokePermission(ctx, roleID, permissionID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "permission revoked", "role_id", roleID, "permission_id", permissionID)
	return nil
}

func (s *Service) find(ctx context.Context, id string) (*rbacDatamodel.Role, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to get role", err)
	}
	if row == nil {
		return nil, internal.ErrRoleNotFound
	}
	return row, nil
}

func (s *Service) withGrants(ctx context.Context, rows []*rbacDatamodel.Role) ([]*Role, error) {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	grantRows, err := s.repo.GrantsOf(ctx, ids)
	if err != nil {
		return nil, internal.NewInternalError("failed to load grants", err)
	}
	byRole := make(map[string][]Grant, len(rows))
	for _, g := range grantRows {
		byRole[g.RoleID] = append(byRole[g.RoleID], g.Grant)
	}

	roles := make([]*Role, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, FromDataModel(row, byRole[row.ID]))
	}
	return roles, nil
}
