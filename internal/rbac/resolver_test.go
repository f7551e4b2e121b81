package rbac_test

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/frahmantamala/auth-rbac/internal"
	"github.com/frahmantamala/auth-rbac/internal/core/datamodel/memdb"
	rbacDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/rbac"
	"github.com/frahmantamala/auth-rbac/internal/credential"
	"github.com/frahmantamala/auth-rbac/internal/rbac"
	rbacPostgres "github.com/frahmantamala/auth-rbac/internal/rbac/postgres"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("Resolver", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		cache    *memoryCache
		resolver *rbac.Resolver
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = memdb.Open()
		Expect(err).NotTo(HaveOccurred())
		query, err := memdb.SQLX(db)
		Expect(err).NotTo(HaveOccurred())

		cache = newMemoryCache()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		resolver = rbac.NewResolver(rbacPostgres.NewRBACRepository(db, query), cache, credential.SystemClock{}, logger)
	})

	createRole := func(name string) string {
		now := time.Now().UTC()
		role := rbacDatamodel.Role{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
		Expect(db.Create(&role).Error).NotTo(HaveOccurred())
		return role.ID
	}

	createPermission := func(module, action string) string {
		now := time.Now().UTC()
		perm := rbacDatamodel.Permission{ID: uuid.NewString(), Module: module, Action: action, CreatedAt: now, UpdatedAt: now}
		Expect(db.Create(&perm).Error).NotTo(HaveOccurred())
		return perm.ID
	}

	Describe("Resolve", func() {
		It("returns empty sets for a user without roles", func() {
			grants, err := resolver.Resolve(ctx, "nobody")

			Expect(err).NotTo(HaveOccurred())
			Expect(grants.Roles).To(BeEmpty())
			Expect(grants.Permissions).To(BeEmpty())
		})

		It("returns the role even when it has no grants", func() {
			roleID := createRole("developer")
			Expect(resolver.AssignRole(ctx, "u1", roleID)).To(Succeed())

			grants, err := resolver.Resolve(ctx, "u1")

			Expect(err).NotTo(HaveOccurred())
			Expect(grants.Roles).To(Equal([]string{"developer"}))
			Expect(grants.Permissions).To(BeEmpty())
		})

		It("unions the enabled grants of every held role", func() {
			// Given
			admin := createRole("admin")
			user := createRole("user")
			read := createPermission("user", "read")
			create := createPermission("role", "create")
			Expect(resolver.GrantPermission(ctx, admin, create, true)).To(Succeed())
			Expect(resolver.GrantPermission(ctx, admin, read, true)).To(Succeed())
			Expect(resolver.GrantPermission(ctx, user, read, true)).To(Succeed())
			Expect(resolver.AssignRole(ctx, "u1", admin)).To(Succeed())
			Expect(resolver.AssignRole(ctx, "u1", user)).To(Succeed())

			// When
			grants, err := resolver.Resolve(ctx, "u1")

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(grants.Roles).To(Equal([]string{"admin", "user"}))
			Expect(grants.Permissions).To(Equal([]string{"role.create", "user.read"}))
		})

		It("ignores disabled grants", func() {
			role := createRole("moderator")
			perm := createPermission("user", "update")
			Expect(resolver.GrantPermission(ctx, role, perm, false)).To(Succeed())
			Expect(resolver.AssignRole(ctx, "u1", role)).To(Succeed())

			grants, err := resolver.Resolve(ctx, "u1")

			Expect(err).NotTo(HaveOccurred())
			Expect(grants.Roles).To(Equal([]string{"moderator"}))
			Expect(grants.Permissions).To(BeEmpty())
		})

		It("serves repeated resolutions from the cache", func() {
			role := createRole("user")
			Expect(resolver.AssignRole(ctx, "u1", role)).To(Succeed())

			_, err := resolver.Resolve(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			_, err = resolver.Resolve(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())

			Expect(cache.hits).To(Equal(1))
		})

		It("reflects grant changes immediately", func() {
			role := createRole("user")
			perm := createPermission("user", "read")
			Expect(resolver.GrantPermission(ctx, role, perm, true)).To(Succeed())
			Expect(resolver.AssignRole(ctx, "u1", role)).To(Succeed())
			grants, err := resolver.Resolve(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(grants.Permissions).To(ContainElement("user.read"))

			Expect(resolver.UpdatePermission(ctx, role, perm, false)).To(Succeed())

			grants, err = resolver.Resolve(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(grants.Permissions).To(BeEmpty())
		})
	})

	Describe("AssignRole", func() {
		It("is idempotent", func() {
			role := createRole("user")

			Expect(resolver.AssignRole(ctx, "u1", role)).To(Succeed())
			Expect(resolver.AssignRole(ctx, "u1", role)).To(Succeed())

			var n int64
			db.Model(&rbacDatamodel.RoleUser{}).Where("user_id = ?", "u1").Count(&n)
			Expect(n).To(BeEquivalentTo(1))
		})

		It("rejects unknown roles", func() {
			err := resolver.AssignRole(ctx, "u1", uuid.NewString())

			Expect(err).To(MatchError(internal.ErrRoleNotFound))
		})
	})

	Describe("AssignDefaultRole", func() {
		It("creates the default role on first use and reuses it afterwards", func() {
			Expect(resolver.AssignDefaultRole(ctx, "u1")).To(Succeed())
			Expect(resolver.AssignDefaultRole(ctx, "u2")).To(Succeed())

			var roles []rbacDatamodel.Role
			Expect(db.Find(&roles).Error).NotTo(HaveOccurred())
			Expect(roles).To(HaveLen(1))
			Expect(roles[0].Name).To(Equal(rbac.DefaultRole))

			grants, err := resolver.Resolve(ctx, "u2")
			Expect(err).NotTo(HaveOccurred())
			Expect(grants.Roles).To(Equal([]string{rbac.DefaultRole}))
		})
	})

	Describe("RevokeRole", func() {
		It("removes the assignment and drops the cached entry", func() {
			role := createRole("user")
			Expect(resolver.AssignRole(ctx, "u1", role)).To(Succeed())
			_, err := resolver.Resolve(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())

			Expect(resolver.RevokeRole(ctx, "u1", role)).To(Succeed())

			grants, err := resolver.Resolve(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(grants.Roles).To(BeEmpty())
		})

		It("reports a missing assignment", func() {
			role := createRole("user")

			err := resolver.RevokeRole(ctx, "u1", role)

			Expect(err).To(MatchError(internal.ErrRoleAssignmentNotFound))
		})
	})

	Describe("grants", func() {
		It("overwrites an existing grant on re-grant", func() {
			role := createRole("user")
			perm := createPermission("user", "read")

			Expect(resolver.GrantPermission(ctx, role, perm, false)).To(Succeed())
			Expect(resolver.GrantPermission(ctx, role, perm, true)).To(Succeed())

			var grant rbacDatamodel.RolePermission
			Expect(db.Where("role_id = ? AND permission_id = ?", role, perm).First(&grant).Error).NotTo(HaveOccurred())
			Expect(grant.CanDoTheAction).To(BeTrue())
		})

		It("requires an existing permission", func() {
			role := createRole("user")

			err := resolver.GrantPermission(ctx, role, uuid.NewString(), true)

			Expect(err).To(MatchError(internal.ErrPermissionNotFound))
		})

		It("refuses to update a grant that does not exist", func() {
			role := createRole("user")
			perm := createPermission("user", "read")

			err := resolver.UpdatePermission(ctx, role, perm, true)

			Expect(err).To(MatchError(internal.ErrGrantNotFound))
		})

		It("revokes a grant", func() {
			role := createRole("user")
			perm := createPermission("user", "read")
			Expect(resolver.GrantPermission(ctx, role, perm, true)).To(Succeed())

			Expect(resolver.RevokePermission(ctx, role, perm)).To(Succeed())
			Expect(resolver.RevokePermission(ctx, role, perm)).To(MatchError(internal.ErrGrantNotFound))
		})
	})
})
