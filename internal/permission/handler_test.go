package permission_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/frahmantamala/auth-rbac/internal"
	"github.com/frahmantamala/auth-rbac/internal/core/datamodel/memdb"
	"github.com/frahmantamala/auth-rbac/internal/permission"
	permissionPostgres "github.com/frahmantamala/auth-rbac/internal/permission/postgres"
	"github.com/frahmantamala/auth-rbac/internal/rbac"
	"github.com/frahmantamala/auth-rbac/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) InvalidateAll(context.Context) { c.calls++ }

var _ = Describe("Permission Handler Integration", func() {
	var (
		service     *permission.Service
		invalidator *countingInvalidator
		router      chi.Router
	)

	BeforeEach(func() {
		db, err := memdb.Open()
		Expect(err).NotTo(HaveOccurred())

		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		invalidator = &countingInvalidator{}
		service = permission.NewService(permissionPostgres.NewPermissionRepository(db), invalidator, nil, slogger)
		handler := permission.NewHandler(&transport.BaseHandler{Logger: slogger}, service)

		router = chi.NewRouter()
		router.Post("/permissions", handler.CreatePermission)
		router.Get("/permissions", handler.ListPermissions)
		router.Post("/permissions/seed", handler.SeedPermissions)
		router.Get("/permissions/{id}", handler.GetPermission)
		router.Patch("/permissions/{id}", handler.UpdatePermission)
		router.Delete("/permissions/{id}", handler.DeletePermission)
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("creates a permission", func() {
		w := do(http.MethodPost, "/permissions", `{"module":"user","action":"read"}`)

		Expect(w.Code).To(Equal(http.StatusCreated))
		var p permission.Permission
		Expect(json.NewDecoder(w.Body).Decode(&p)).To(Succeed())
		Expect(p.Key).To(Equal("user.read"))
	})

	It("rejects a duplicate pair with 409", func() {
		Expect(do(http.MethodPost, "/permissions", `{"module":"user","action":"read"}`).Code).To(Equal(http.StatusCreated))

		w := do(http.MethodPost, "/permissions", `{"module":"user","action":"read"}`)

		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(w.Body.String()).To(ContainSubstring(string(internal.ErrCodePermissionAlreadyExists)))
	})

	It("rejects unknown modules and actions in one response", func() {
		w := do(http.MethodPost, "/permissions", `{"module":"billing","action":"approve"}`)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		var body internal.Response
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		Expect(body.Success).To(BeFalse())
		Expect(body.Message).To(HaveLen(2))
	})

	It("seeds every module and action pair idempotently", func() {
		Expect(do(http.MethodPost, "/permissions/seed", "").Code).To(Equal(http.StatusCreated))
		w := do(http.MethodPost, "/permissions/seed", "")

		Expect(w.Code).To(Equal(http.StatusCreated))
		var resp permission.PermissionsResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Permissions).To(HaveLen(len(rbac.Modules) * len(rbac.Actions)))
	})

	It("updates and deletes a permission and flushes the grant cache", func() {
		created, err := service.Create(context.Background(), "role", "read")
		Expect(err).NotTo(HaveOccurred())

		w := do(http.MethodPatch, "/permissions/"+created.ID, `{"module":"role","action":"update"}`)
		Expect(w.Code).To(Equal(http.StatusOK))

		w = do(http.MethodDelete, "/permissions/"+created.ID, "")
		Expect(w.Code).To(Equal(http.StatusNoContent))
		Expect(invalidator.calls).To(Equal(2))

		w = do(http.MethodGet, "/permissions/"+created.ID, "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("rejects a malformed id", func() {
		w := do(http.MethodGet, "/permissions/not-a-uuid", "")

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
