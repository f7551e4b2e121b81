package user_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/frahmantamala/auth-rbac/internal"
	"github.com/frahmantamala/auth-rbac/internal/core/datamodel"
	"github.com/frahmantamala/auth-rbac/internal/core/datamodel/memdb"
	userDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/user"
	"github.com/frahmantamala/auth-rbac/internal/credential"
	"github.com/frahmantamala/auth-rbac/internal/rbac"
	rbacPostgres "github.com/frahmantamala/auth-rbac/internal/rbac/postgres"
	"github.com/frahmantamala/auth-rbac/internal/role"
	rolePostgres "github.com/frahmantamala/auth-rbac/internal/role/postgres"
	"github.com/frahmantamala/auth-rbac/internal/transport"
	"github.com/frahmantamala/auth-rbac/internal/user"
	userPostgres "github.com/frahmantamala/auth-rbac/internal/user/postgres"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

var _ = Describe("User Handler Integration", func() {
	var (
		ctx      context.Context
		repo     user.RepositoryAPI
		resolver *rbac.Resolver
		router   chi.Router
		now      time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		db, err := memdb.Open()
		Expect(err).NotTo(HaveOccurred())
		query, err := memdb.SQLX(db)
		Expect(err).NotTo(HaveOccurred())

		slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
		repo = userPostgres.NewUserRepository(db)
		resolver = rbac.NewResolver(rbacPostgres.NewRBACRepository(db, query), nil, nil, slogger)
		_, err = role.NewService(rolePostgres.NewRoleRepository(db), resolver, nil, slogger).Seed(ctx)
		Expect(err).NotTo(HaveOccurred())

		service := user.NewService(repo, resolver, credential.NewPasswordHasher(bcrypt.MinCost), nil, slogger).
			WithTx(datamodel.NewTransactor(db))
		handler := user.NewHandler(&transport.BaseHandler{Logger: slogger}, service)
		router = chi.NewRouter()
		router.Post("/users", handler.CreateUser)
		router.Get("/users", handler.ListUsers)
		router.Get("/users/{id}", handler.GetUser)
		router.Patch("/users/{id}", handler.UpdateUser)
		router.Delete("/users/{id}", handler.DeleteUser)
		router.Post("/users/{id}/roles/{roleName}", handler.AssignRole)
		router.Delete("/users/{id}/roles/{roleName}", handler.RevokeRole)

		now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	})

	createUser := func(email, status string) *userDatamodel.User {
		hash := "hash-of-" + email
		u := &userDatamodel.User{
			ID:           uuid.NewString(),
			Email:        email,
			PasswordHash: &hash,
			Status:       status,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		Expect(repo.Create(ctx, u)).To(Succeed())
		now = now.Add(time.Second)
		return u
	}

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	errorCode := func(w *httptest.ResponseRecorder) internal.ErrorCode {
		var body internal.Response
		Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
		return body.Error.Code
	}

	Describe("creating", func() {
		It("invites a user without a password", func() {
			w := do(http.MethodPost, "/users", `{"email":"New@X.com","first_name":"Ada"}`)

			Expect(w.Code).To(Equal(http.StatusCreated))
			var got user.User
			Expect(json.Unmarshal(w.Body.Bytes(), &got)).To(Succeed())
			Expect(got.Email).To(Equal("new@x.com"))
			Expect(got.Status).To(Equal(userDatamodel.StatusInvited))
			Expect(got.Roles).To(ConsistOf(rbac.DefaultRole))

			row, err := repo.FindByID(ctx, got.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(row.PasswordHash).To(BeNil())
		})

		It("activates a user created with a password and the requested roles", func() {
			w := do(http.MethodPost, "/users", `{"email":"dev@x.com","password":"Pw1!aaaa","roles":["developer","moderator"]}`)

			Expect(w.Code).To(Equal(http.StatusCreated))
			var got user.User
			Expect(json.Unmarshal(w.Body.Bytes(), &got)).To(Succeed())
			Expect(got.Status).To(Equal(userDatamodel.StatusActive))
			Expect(got.Roles).To(ConsistOf(rbac.RoleDeveloper, rbac.RoleModerator))

			row, err := repo.FindByID(ctx, got.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(row.PasswordHash).NotTo(BeNil())
			Expect(credential.NewPasswordHasher(bcrypt.MinCost).Compare("Pw1!aaaa", *row.PasswordHash)).To(BeTrue())
		})

		It("rejects a weak password and an unknown role together", func() {
			w := do(http.MethodPost, "/users", `{"email":"a@x.com","password":"weak","roles":["superuser"]}`)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).To(ContainSubstring(string(internal.ErrCodePasswordIsWeak)))
			Expect(w.Body.String()).To(ContainSubstring(string(internal.ErrCodeInvalidRoleName)))
		})

		It("refuses an address already in use", func() {
			createUser("a@x.com", userDatamodel.StatusActive)

			w := do(http.MethodPost, "/users", `{"email":"a@x.com"}`)

			Expect(w.Code).To(Equal(http.StatusConflict))
			Expect(errorCode(w)).To(Equal(internal.ErrCodeEmailAlreadyInUse))
		})
	})

	Describe("listing", func() {
		It("filters by status and pages the result", func() {
			createUser("a@x.com", userDatamodel.StatusActive)
			createUser("b@x.com", userDatamodel.StatusActive)
			createUser("c@x.com", userDatamodel.StatusUnverified)

			w := do(http.MethodGet, "/users?status=active&limit=1", "")

			Expect(w.Code).To(Equal(http.StatusOK))
			var page user.Page
			Expect(json.Unmarshal(w.Body.Bytes(), &page)).To(Succeed())
			Expect(page.Total).To(BeEquivalentTo(2))
			Expect(page.Users).To(HaveLen(1))
			Expect(page.Limit).To(Equal(1))
		})

		It("rejects an unknown status and a negative offset together", func() {
			w := do(http.MethodGet, "/users?status=deleted&offset=-1", "")

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			var body internal.Response
			Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Message).To(HaveLen(2))
		})
	})

	Describe("single user", func() {
		It("returns the projection with role names and never the password hash", func() {
			u := createUser("a@x.com", userDatamodel.StatusActive)
			Expect(resolver.AssignRoleByName(ctx, u.ID, rbac.RoleModerator)).To(Succeed())

			w := do(http.MethodGet, "/users/"+u.ID, "")

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).NotTo(ContainSubstring("hash-of-"))
			var got user.User
			Expect(json.Unmarshal(w.Body.Bytes(), &got)).To(Succeed())
			Expect(got.Email).To(Equal("a@x.com"))
			Expect(got.Roles).To(ConsistOf(rbac.RoleModerator))
		})

		It("rejects malformed ids before touching storage", func() {
			w := do(http.MethodGet, "/users/not-a-uuid", "")

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("reports unknown users as 404", func() {
			w := do(http.MethodGet, "/users/"+uuid.NewString(), "")

			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(errorCode(w)).To(Equal(internal.ErrCodeUserDoesNotExist))
		})

		It("updates only the supplied profile fields", func() {
			u := createUser("a@x.com", userDatamodel.StatusActive)

			w := do(http.MethodPatch, "/users/"+u.ID, `{"first_name":"Ada","status":"inactive"}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			row, err := repo.FindByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(row.FirstName).To(Equal("Ada"))
			Expect(row.LastName).To(BeEmpty())
			Expect(row.Status).To(Equal(userDatamodel.StatusInactive))
		})

		It("deletes users with their role assignments", func() {
			u := createUser("a@x.com", userDatamodel.StatusActive)
			Expect(resolver.AssignRoleByName(ctx, u.ID, rbac.RoleUser)).To(Succeed())

			Expect(do(http.MethodDelete, "/users/"+u.ID, "").Code).To(Equal(http.StatusNoContent))

			row, err := repo.FindByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(row).To(BeNil())
			grants, err := resolver.Resolve(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(grants.Roles).To(BeEmpty())

			Expect(do(http.MethodDelete, "/users/"+u.ID, "").Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("roles", func() {
		It("assigns and revokes by role name", func() {
			u := createUser("a@x.com", userDatamodel.StatusActive)

			w := do(http.MethodPost, "/users/"+u.ID+"/roles/developer", "")
			Expect(w.Code).To(Equal(http.StatusCreated))
			var got user.User
			Expect(json.Unmarshal(w.Body.Bytes(), &got)).To(Succeed())
			Expect(got.Roles).To(ContainElement(rbac.RoleDeveloper))

			Expect(do(http.MethodDelete, "/users/"+u.ID+"/roles/developer", "").Code).To(Equal(http.StatusNoContent))

			grants, err := resolver.Resolve(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(grants.Roles).NotTo(ContainElement(rbac.RoleDeveloper))
		})

		It("rejects role names outside the system roles", func() {
			u := createUser("a@x.com", userDatamodel.StatusActive)

			w := do(http.MethodPost, "/users/"+u.ID+"/roles/superuser", "")

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(errorCode(w)).To(Equal(internal.ErrCodeValidationFailed))
			Expect(w.Body.String()).To(ContainSubstring(string(internal.ErrCodeInvalidRoleName)))
		})

		It("reports revoking an unassigned role as 404", func() {
			u := createUser("a@x.com", userDatamodel.StatusActive)

			w := do(http.MethodDelete, "/users/"+u.ID+"/roles/admin", "")

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})
})
