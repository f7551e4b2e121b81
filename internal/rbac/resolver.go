package rbac

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/auth-rbac/internal"
	rbacDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/rbac"
	"github.com/frahmantamala/auth-rbac/internal/credential"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RepositoryAPI interface {
	LoadGrants(ctx context.Context, userID string) ([]GrantRow, error)
	RoleExists(ctx context.Context, roleID string) (bool, error)
	PermissionExists(ctx context.Context, permissionID string) (bool, error)
	FindRoleByName(ctx context.Context, name string) (*rbacDatamodel.Role, error)
	CreateRole(ctx context.Context, role *rbacDatamodel.Role) error
	AssignRole(ctx context.Context, userID, roleID string, at time.Time) error
	RemoveRole(ctx context.Context, userID, roleID string) (int64, error)
	UpsertGrant(ctx context.Context, roleID, permissionID string, enabled bool, at time.Time) error
	UpdateGrant(ctx context.Context, roleID, permissionID string, enabled bool, at time.Time) (int64, error)
	DeleteGrant(ctx context.Context, roleID, permissionID string) (int64, error)
}

type Resolver struct {
	repo   RepositoryAPI
	cache  Cache
	clock  credential.Clock
	logger *slog.Logger
}

func NewResolver(repo RepositoryAPI, cache Cache, clock credential.Clock, logger *slog.Logger) *Resolver {
	if cache == nil {
		cache = NopCache{}
	}
	if clock == nil {
		clock = credential.SystemClock{}
	}
	return &Resolver{repo: repo, cache: cache, clock: clock, logger: logger}
}

// Resolve returns the user's roles and the flattened set of enabled
// permissions granted to them.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*Grants, error) {
	if grants, ok, err := r.cache.Get(ctx, userID); err != nil {
		r.logger.WarnContext(ctx, "rbac cache read failed", "user_id", userID, "error", err)
	} else if ok {
		return grants, nil
	}

	rows, err := r.repo.LoadGrants(ctx, userID)
	if err != nil {
		return nil, internal.NewInternalError("failed to resolve grants", err)
	}
	grants := Flatten(rows)

	if err := r.cache.Set(ctx, userID, grants); err != nil {
		r.logger.WarnContext(ctx, "rbac cache write failed", "user_id", userID, "error", err)
	}
	return grants, nil
}

// AssignRole attaches roleID to userID. Assigning twice is a no-op.
func (r *Resolver) AssignRole(ctx context.Context, userID, roleID string) error {
	if err := r.requireRole(ctx, roleID); err != nil {
		return err
	}
	if err := r.repo.AssignRole(ctx, userID, roleID, r.clock.Now()); err != nil {
		return internal.NewInternalError("failed to assign role", err)
	}
	r.invalidateUser(ctx, userID)
	return nil
}

// AssignDefaultRole attaches DefaultRole, creating the role row on first use.
func (r *Resolver) AssignDefaultRole(ctx context.Context, userID string) error {
	role, err := r.ensureRole(ctx, DefaultRole)
	if err != nil {
		return err
	}
	if err := r.repo.AssignRole(ctx, userID, role.ID, r.clock.Now()); err != nil {
		return internal.NewInternalError("failed to assign default role", err)
	}
	r.invalidateUser(ctx, userID)
	return nil
}

func (r *Resolver) ensureRole(ctx context.Context, name string) (*rbacDatamodel.Role, error) {
	role, err := r.repo.FindRoleByName(ctx, name)
	if err != nil {
		return nil, internal.NewInternalError("failed to look up role", err)
	}
	if role != nil {
		return role, nil
	}

	now := r.clock.Now()
	role = &rbacDatamodel.Role{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := r.repo.CreateRole(ctx, role); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, internal.NewInternalError("failed to create role", err)
		}
		// lost a creation race, read the winner
		role, err = r.repo.FindRoleByName(ctx, name)
		if err != nil || role == nil {
			return nil, internal.NewInternalError("failed to look up role", err)
		}
	}
	return role, nil
}

// AssignRoleByName is AssignRole keyed by the role's name.
func (r *Resolver) AssignRoleByName(ctx context.Context, userID, name string) error {
	role, err := r.roleByName(ctx, name)
	if err != nil {
		return err
	}
	if err := r.repo.AssignRole(ctx, userID, role.ID, r.clock.Now()); err != nil {
		return internal.NewInternalError("failed to assign role", err)
	}
	r.invalidateUser(ctx, userID)
	return nil
}

// RevokeRoleByName is RevokeRole keyed by the role's name.
func (r *Resolver) RevokeRoleByName(ctx context.Context, userID, name string) error {
	role, err := r.roleByName(ctx, name)
	if err != nil {
		return err
	}
	return r.revoke(ctx, userID, role.ID)
}

func (r *Resolver) roleByName(ctx context.Context, name string) (*rbacDatamodel.Role, error) {
	role, err := r.repo.FindRoleByName(ctx, name)
	if err != nil {
		return nil, internal.NewInternalError("failed to look up role", err)
	}
	if role == nil {
		return nil, internal.ErrRoleNotFound
	}
	return role, nil
}

// RevokeRole detaches roleID from userID.
func (r *Resolver) RevokeRole(ctx context.Context, userID, roleID string) error {
	if err := r.requireRole(ctx, roleID); err != nil {
		return err
	}
	return r.revoke(ctx, userID, roleID)
}

func (r *Resolver) revoke(ctx context.Context, userID, roleID string) error {
	n, err := r.repo.RemoveRole(ctx, userID, roleID)
	if err != nil {
		return internal.NewInternalError("failed to revoke role", err)
	}
	if n == 0 {
		return internal.ErrRoleAssignmentNotFound
	}
	r.invalidateUser(ctx, userID)
	return nil
}

// GrantPermission creates or overwrites the grant of permissionID to roleID.
func (r *Resolver) GrantPermission(ctx context.Context, roleID, permissionID string, enabled bool) error {
	if err := r.requireRole(ctx, roleID); err != nil {
		return err
	}
	if err := r.requirePermission(ctx, permissionID); err != nil {
		return err
	}
	if err := r.repo.UpsertGrant(ctx, roleID, permissionID, enabled, r.clock.Now()); err != nil {
		return internal.NewInternalError("failed to grant permission", err)
	}
	r.InvalidateAll(ctx)
	return nil
}

// UpdatePermission toggles an existing grant.
func (r *Resolver) UpdatePermission(ctx context.Context, roleID, permissionID string, enabled bool) error {
	n, err := r.repo.UpdateGrant(ctx, roleID, permissionID, enabled, r.clock.Now())
	if err != nil {
		return internal.NewInternalError("failed to update grant", err)
	}
	if n == 0 {
		return internal.ErrGrantNotFound
	}
	r.InvalidateAll(ctx)
	return nil
}

func (r *Resolver) RevokePermission(ctx context.Context, roleID, permissionID string) error {
	n, err := r.repo.DeleteGrant(ctx, roleID, permissionID)
	if err != nil {
		return internal.NewInternalError("failed to revoke grant", err)
	}
	if n == 0 {
		return internal.ErrGrantNotFound
	}
	r.InvalidateAll(ctx)
	return nil
}

// InvalidateUser drops the cached resolution of one user.
func (r *Resolver) InvalidateUser(ctx context.Context, userID string) {
	r.invalidateUser(ctx, userID)
}

// InvalidateAll drops every cached resolution, used after role, permission
// or grant changes.
func (r *Resolver) InvalidateAll(ctx context.Context) {
	if err := r.cache.InvalidateAll(ctx); err != nil {
		r.logger.WarnContext(ctx, "rbac cache flush failed", "error", err)
	}
}

func (r *Resolver) invalidateUser(ctx context.Context, userID string) {
	if err := r.cache.Invalidate(ctx, userID); err != nil {
		r.logger.WarnContext(ctx, "rbac cache invalidation failed", "user_id", userID, "error", err)
	}
}

func (r *Resolver) requireRole(ctx context.Context, roleID string) error {
	ok, err := r.repo.RoleExists(ctx, roleID)
	if err != nil {
		return internal.NewInternalError("failed to look up role", err)
	}
	if !ok {
		return internal.ErrRoleNotFound
	}
	return nil
}

func (r *Resolver) requirePermission(ctx context.Context, permissionID string) error {
	ok, err := r.repo.PermissionExists(ctx, permissionID)
	if err != nil {
		return internal.NewInternalError("failed to look up permission", err)
	}
	if !ok {
		return internal.ErrPermissionNotFound
	}
	return nil
}
