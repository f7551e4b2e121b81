package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/frahmantamala/auth-rbac/internal"
	"github.com/frahmantamala/auth-rbac/internal/auth"
	rbacDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/user"
	"github.com/frahmantamala/auth-rbac/internal/rbac"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("Guard", func() {
	var (
		ctx    context.Context
		f      *fixture
		userID string
		token  string
	)

	echoIdentity := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := internal.IdentityFromContext(r.Context())
		Expect(ok).To(BeTrue())
		_ = json.NewEncoder(w).Encode(identity)
	})

	serve := func(h http.Handler, bearer string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture()
		userID = f.registerActive(ctx, "a@x.com", password).ID
		token = f.login(ctx, "a@x.com", password).AccessToken
	})

	Describe("Authenticate", func() {
		It("attaches the resolved identity", func() {
			w := serve(f.guard.Authenticate(echoIdentity), token)

			Expect(w.Code).To(Equal(http.StatusOK))
			var identity internal.Identity
			Expect(json.NewDecoder(w.Body).Decode(&identity)).To(Succeed())
			Expect(identity.UserID).To(Equal(userID))
			Expect(identity.Roles).To(Equal([]string{rbac.RoleUser}))
		})

		It("rejects a missing or malformed token with 401", func() {
			Expect(serve(f.guard.Authenticate(echoIdentity), "").Code).To(Equal(http.StatusUnauthorized))
			Expect(serve(f.guard.Authenticate(echoIdentity), "not-a-jwt").Code).To(Equal(http.StatusUnauthorized))
			Expect(testutil.ToFloat64(f.metrics.AuthorizationDenialsTotal.WithLabelValues(auth.DenialMissingToken))).To(Equal(1.0))
		})

		It("rejects the token once the session is gone", func() {
			Expect(f.service.Logout(ctx, token)).To(Succeed())

			w := serve(f.guard.Authenticate(echoIdentity), token)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("rejects inactive users with 403", func() {
			_, err := f.users.UpdateStatus(ctx, userID, userDatamodel.StatusInactive, time.Now())
			Expect(err).NotTo(HaveOccurred())

			w := serve(f.guard.Authenticate(echoIdentity), token)

			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(w.Body.String()).To(ContainSubstring(string(internal.ErrCodeUserIsInactive)))
		})

		It("rejects tokens of deleted users", func() {
			_, err := f.users.Delete(ctx, userID)
			Expect(err).NotTo(HaveOccurred())

			w := serve(f.guard.Authenticate(echoIdentity), token)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("Authorize", func() {
		It("matches roles any-of", func() {
			h := f.guard.Require(auth.Policy{Roles: []string{rbac.RoleAdmin, rbac.RoleUser}})(echoIdentity)

			Expect(serve(h, token).Code).To(Equal(http.StatusOK))
		})

		It("answers 403 when no role matches", func() {
			h := f.guard.Require(auth.Policy{Roles: []string{rbac.RoleAdmin}})(echoIdentity)

			w := serve(h, token)

			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(w.Body.String()).To(ContainSubstring(string(internal.ErrCodeInsufficientRole)))
		})

		It("matches permissions all-of", func() {
			// Given the user role is granted user.read only
			var userRole rbacDatamodel.Role
			Expect(f.db.Where("name = ?", rbac.RoleUser).First(&userRole).Error).To(Succeed())
			now := time.Now().UTC()
			perm := rbacDatamodel.Permission{ID: uuid.NewString(), Module: rbac.ModuleUser, Action: rbac.ActionRead, CreatedAt: now, UpdatedAt: now}
			Expect(f.db.Create(&perm).Error).To(Succeed())
			Expect(f.resolver.GrantPermission(ctx, userRole.ID, perm.ID, true)).To(Succeed())

			readOnly := f.guard.Require(auth.Policy{Permissions: []string{"user.read"}})(echoIdentity)
			readWrite := f.guard.Require(auth.Policy{Permissions: []string{"user.read", "user.update"}})(echoIdentity)

			Expect(serve(readOnly, token).Code).To(Equal(http.StatusOK))
			w := serve(readWrite, token)
			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(w.Body.String()).To(ContainSubstring(string(internal.ErrCodeInsufficientPermission)))
		})

		It("answers 401 without an authenticated identity", func() {
			h := f.guard.Authorize(auth.Policy{})(echoIdentity)

			Expect(serve(h, token).Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
