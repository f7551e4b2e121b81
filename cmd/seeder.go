package cmd

import (
	"context"
	"fmt"

	rbacDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/user"
	"github.com/frahmantamala/auth-rbac/internal/credential"
	"github.com/frahmantamala/auth-rbac/internal/rbac"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	adminEmail    string
	adminPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed roles, permissions and the default grants",
	Long: `Create the four system roles, every module and action permission and the default
grant matrix. With --admin-email an active admin user is created as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		deps, err := initializeDependencies(ctx)
		if err != nil {
			return err
		}
		defer deps.close()

		return seed(ctx, deps)
	},
}

func seed(ctx context.Context, deps *Dependencies) error {
	log := deps.Logger

	roles, err := deps.Roles.Seed(ctx)
	if err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	log.Info("roles seeded", "count", len(roles))

	perms, err := deps.Perms.Seed(ctx)
	if err != nil {
		return fmt.Errorf("seed permissions: %w", err)
	}
	log.Info("permissions seeded", "count", len(perms))

	if clearData {
		res := deps.Gorm.WithContext(ctx).Where("1 = 1").Delete(&rbacDatamodel.RolePermission{})
		if res.Error != nil {
			return fmt.Errorf("clear grants: %w", res.Error)
		}
		deps.Resolver.InvalidateAll(ctx)
		log.Info("existing grants removed", "count", res.RowsAffected)
	}

	applied, err := deps.Roles.SeedDefaultGrants(ctx)
	if err != nil {
		return fmt.Errorf("seed grants: %w", err)
	}
	log.Info("default grants applied", "count", applied)

	if adminEmail == "" {
		return nil
	}
	return seedAdmin(ctx, deps)
}

// seedAdmin creates an active admin, or just attaches the admin role when the
// address is already registered.
func seedAdmin(ctx context.Context, deps *Dependencies) error {
	email := credential.NormalizeEmail(adminEmail)

	existing, err := deps.Users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("look up admin: %w", err)
	}

	userID := ""
	if existing != nil {
		userID = existing.ID
		deps.Logger.Info("admin user already exists; will ensure role", "email", email)
	} else {
		if !credential.IsStrongPassword(adminPassword) {
			return fmt.Errorf("admin password must be at least %d characters and mix cases, digits and symbols", credential.MinPasswordLength)
		}
		hash, err := credential.NewPasswordHasher(deps.Config.Security.BCryptCost).Hash(adminPassword)
		if err != nil {
			return err
		}
		u := &userDatamodel.User{
			ID:           uuid.NewString(),
			Email:        email,
			FirstName:    "Admin",
			PasswordHash: &hash,
			Status:       userDatamodel.StatusActive,
		}
		if err := deps.Users.Create(ctx, u); err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		userID = u.ID
		deps.Logger.Info("seeded admin user", "email", email)
	}

	for _, name := range []string{rbac.RoleAdmin, rbac.DefaultRole} {
		if err := deps.Resolver.AssignRoleByName(ctx, userID, name); err != nil {
			return fmt.Errorf("assign %s role: %w", name, err)
		}
	}
	return nil
}

func init() {
	seedCmd.Flags().StringVar(&adminEmail, "admin-email", "", "create or promote this user to admin")
	seedCmd.Flags().StringVar(&adminPassword, "admin-password", "", "password of a newly created admin")
}
