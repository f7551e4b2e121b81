package user

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/auth-rbac/internal"
	"github.com/frahmantamala/auth-rbac/internal/core/datamodel"
	userDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/user"
	"github.com/frahmantamala/auth-rbac/internal/credential"
	"github.com/frahmantamala/auth-rbac/internal/rbac"
	"github.com/google/uuid"
)

// RoleResolver is the part of rbac.Resolver used by user administration.
type RoleResolver interface {
	Resolve(ctx context.Context, userID string) (*rbac.Grants, error)
	AssignRoleByName(ctx context.Context, userID, name string) error
	AssignDefaultRole(ctx context.Context, userID string) error
	RevokeRoleByName(ctx context.Context, userID, name string) error
	InvalidateUser(ctx context.Context, userID string)
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

type Service struct {
	repo     RepositoryAPI
	resolver RoleResolver
	hasher   PasswordHasher
	tx       datamodel.Transactor
	clock    credential.Clock
	logger   *slog.Logger
}

func NewService(repo RepositoryAPI, resolver RoleResolver, hasher PasswordHasher, clock credential.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = credential.SystemClock{}
	}
	return &Service{
		repo:     repo,
		resolver: resolver,
		hasher:   hasher,
		tx:       datamodel.NoTx{},
		clock:    clock,
		logger:   logger,
	}
}

// WithTx makes Create store the user and its roles in one transaction.
func (s *Service) WithTx(tx datamodel.Transactor) *Service {
	s.tx = tx
	return s
}

// Page is one page of the user listing.
type Page struct {
	Users  []*User `json:"users"`
	Total  int64   `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

func (s *Service) List(ctx context.Context, filter ListFilter) (*Page, error) {
	filter = filter.Normalize()
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list users", "error", err)
		return nil, internal.NewInternalError("failed to list users", err)
	}

	users := make([]*User, 0, len(rows))
	for _, row := range rows {
		users = append(users, FromDataModel(row))
	}
	return &Page{Users: users, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// Create adds a user on behalf of an administrator. The user is active when
// a password is given and invited otherwise.
func (s *Service) Create(ctx context.Context, dto CreateUserDTO) (*User, error) {
	now := s.clock.Now()
	row := &userDatamodel.User{
		ID:        uuid.NewString(),
		Email:     credential.NormalizeEmail(dto.Email),
		FirstName: dto.FirstName,
		LastName:  dto.LastName,
		Status:    userDatamodel.StatusInvited,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if dto.Password != "" {
		hash, err := s.hasher.Hash(dto.Password)
		if err != nil {
			return nil, internal.NewInternalError("failed to hash password", err)
		}
		row.PasswordHash = &hash
		row.Status = userDatamodel.StatusActive
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		created, err := s.repo.CreateIfEmailFree(ctx, row)
		if err != nil {
			return internal.NewInternalError("failed to create user", err)
		}
		if !created {
			return internal.ErrEmailAlreadyInUse
		}
		if len(dto.Roles) == 0 {
			return s.resolver.AssignDefaultRole(ctx, row.ID)
		}
		for _, name := range dto.Roles {
			if err := s.resolver.AssignRoleByName(ctx, row.ID, name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user created", "user_id", row.ID, "status", row.Status)
	return s.Get(ctx, row.ID)
}

// Get returns the projection of id together with its role names.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to get user", err)
	}
	if row == nil {
		return nil, internal.ErrUserNotFound
	}

	grants, err := s.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromDataModelWithRoles(row, grants.Roles), nil
}

func (s *Service) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*User, error) {
	ok, err := s.repo.UpdateProfile(ctx, id, update, s.clock.Now())
	if err != nil {
		return nil, internal.NewInternalError("failed to update user", err)
	}
	if !ok {
		return nil, internal.ErrUserNotFound
	}
	s.logger.InfoContext(ctx, "user profile updated", "user_id", id)
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return internal.NewInternalError("failed to delete user", err)
	}
	if !ok {
		return internal.ErrUserNotFound
	}
	s.resolver.InvalidateUser(ctx, id)
	s.logger.InfoContext(ctx, "user deleted", "user_id", id)
	return nil
}

func (s *Service) AssignRole(ctx context.Context, id, roleName string) (*User, error) {
	if err := s.requireUser(ctx, id); err != nil {
		return nil, err
	}
	if err := s.resolver.AssignRoleByName(ctx, id, roleName); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "role assigned", "user_id", id, "role", roleName)
	return s.Get(ctx, id)
}

func (s *Service) RevokeRole(ctx context.Context, id, roleName string) error {
	if err := s.requireUser(ctx, id); err != nil {
		return err
	}
	if err := s.resolver.RevokeRoleByName(ctx, id, roleName); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "role revoked", "user_id", id, "role", roleName)
	return nil
}

func (s *Service) requireUser(ctx context.Context, id string) error {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return internal.NewInternalError("failed to get user", err)
	}
	if row == nil {
		return internal.ErrUserNotFound
	}
	return nil
}
