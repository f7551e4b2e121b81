package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/auth-rbac/internal/auth"
	"github.com/frahmantamala/auth-rbac/internal/metrics"
	"github.com/frahmantamala/auth-rbac/internal/permission"
	"github.com/frahmantamala/auth-rbac/internal/rbac"
	"github.com/frahmantamala/auth-rbac/internal/role"
	"github.com/frahmantamala/auth-rbac/internal/transport/middleware"
	"github.com/frahmantamala/auth-rbac/internal/transport/swagger"
	"github.com/frahmantamala/auth-rbac/internal/user"
	"github.com/go-chi/chi"
)

const APIPrefix = "/api/v1"

// RouterDependencies is everything RegisterAllRoutes mounts. Metrics and
// OpenAPI are optional.
type RouterDependencies struct {
	AuthHandler       *auth.Handler
	UserHandler       *user.Handler
	RoleHandler       *role.Handler
	PermissionHandler *permission.Handler
	Guard             *auth.Guard
	Health            *HealthHandler
	Metrics           *metrics.Metrics
	MetricsPath       string
	OpenAPI           []byte
	AllowedOrigins    string
	Logger            *slog.Logger
}

// Route is one entry of the route table. A nil Policy marks a public route.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
	Policy  *auth.Policy
}

func authenticated() *auth.Policy {
	return &auth.Policy{}
}

func require(roles []string, module, action string) *auth.Policy {
	return &auth.Policy{Roles: roles, Permissions: []string{rbac.PermissionKey(module, action)}}
}

var (
	adminOnly    = []string{rbac.RoleAdmin}
	adminOrDev   = []string{rbac.RoleAdmin, rbac.RoleDeveloper}
	userManagers = []string{rbac.RoleAdmin, rbac.RoleModerator, rbac.RoleDeveloper}
	// grant routes are gated on the permission alone
	anyRole []string
)

// Routes lists every API route with the policy enforced on it. Patterns are
// relative to APIPrefix.
func Routes(deps RouterDependencies) []Route {
	a, u, ro, p := deps.AuthHandler, deps.UserHandler, deps.RoleHandler, deps.PermissionHandler

	return []Route{
		{http.MethodPost, "/auth/register", a.Register, nil},
		{http.MethodPost, "/auth/verify-user-email", a.VerifyUserEmail, nil},
		{http.MethodPost, "/auth/resend-verification-email", a.ResendVerificationEmail, nil},
		{http.MethodPost, "/auth/login", a.Login, nil},
		{http.MethodPost, "/auth/refresh-token", a.RefreshToken, nil},
		{http.MethodPost, "/auth/cancel-change-email", a.CancelChangeEmail, nil},
		{http.MethodPost, "/auth/forgot-password", a.ForgotPassword, nil},
		{http.MethodPost, "/auth/retry-forgot-password", a.RetryForgotPassword, nil},
		{http.MethodPost, "/auth/verify-forgot-password", a.VerifyForgotPassword, nil},
		{http.MethodPost, "/auth/verify-forgot-password-code", a.VerifyForgotPasswordCode, nil},

		{http.MethodPost, "/auth/logout", a.Logout, authenticated()},
		{http.MethodGet, "/auth/user", a.Me, authenticated()},
		{http.MethodPost, "/auth/change-email", a.ChangeEmail, authenticated()},
		{http.MethodPost, "/auth/verify-change-email", a.VerifyChangeEmail, authenticated()},
		{http.MethodPost, "/auth/change-password", a.ChangePassword, authenticated()},
		{http.MethodPost, "/auth/verify-user-password", a.VerifyUserPassword, authenticated()},

		{http.MethodPost, "/auth/set-user-email", a.SetUserEmail, require(adminOnly, rbac.ModuleUser, rbac.ActionUpdate)},
		{http.MethodPost, "/auth/set-user-password", a.SetUserPassword, require(adminOnly, rbac.ModuleUser, rbac.ActionUpdate)},
		{http.MethodPost, "/auth/assign-role", a.AssignRole, require(adminOnly, rbac.ModuleRoleUser, rbac.ActionCreate)},
		{http.MethodPost, "/auth/revoke-role", a.RevokeRole, require(adminOnly, rbac.ModuleRoleUser, rbac.ActionDelete)},

		{http.MethodPost, "/roles", ro.CreateRole, require(adminOrDev, rbac.ModuleRole, rbac.ActionCreate)},
		{http.MethodGet, "/roles", ro.ListRoles, require(adminOrDev, rbac.ModuleRole, rbac.ActionRead)},
		{http.MethodPost, "/roles/seed", ro.SeedRoles, require(adminOrDev, rbac.ModuleRole, rbac.ActionCreate)},
		{http.MethodGet, "/roles/{id}", ro.GetRole, require(adminOrDev, rbac.ModuleRole, rbac.ActionRead)},
		{http.MethodPatch, "/roles/{id}", ro.UpdateRole, require(adminOrDev, rbac.ModuleRole, rbac.ActionUpdate)},
		{http.MethodDelete, "/roles/{id}", ro.DeleteRole, require(adminOrDev, rbac.ModuleRole, rbac.ActionDelete)},
		{http.MethodPost, "/roles/permissions/assign", ro.AssignPermission, require(anyRole, rbac.ModuleRolePermission, rbac.ActionCreate)},
		{http.MethodPatch, "/roles/permissions/update", ro.UpdatePermission, require(anyRole, rbac.ModuleRolePermission, rbac.ActionUpdate)},
		{http.MethodPost, "/roles/permissions/revoke", ro.RevokePermission, require(anyRole, rbac.ModuleRolePermission, rbac.ActionDelete)},

		{http.MethodPost, "/permissions", p.CreatePermission, require(adminOrDev, rbac.ModulePermission, rbac.ActionCreate)},
		{http.MethodGet, "/permissions", p.ListPermissions, require(adminOrDev, rbac.ModulePermission, rbac.ActionRead)},
		{http.MethodPost, "/permissions/seed", p.SeedPermissions, require(adminOrDev, rbac.ModulePermission, rbac.ActionCreate)},
		{http.MethodGet, "/permissions/{id}", p.GetPermission, require(adminOrDev, rbac.ModulePermission, rbac.ActionRead)},
		{http.MethodPatch, "/permissions/{id}", p.UpdatePermission, require(adminOrDev, rbac.ModulePermission, rbac.ActionUpdate)},
		{http.MethodDelete, "/permissions/{id}", p.DeletePermission, require(adminOrDev, rbac.ModulePermission, rbac.ActionDelete)},

		{http.MethodPost, "/users", u.CreateUser, require(adminOnly, rbac.ModuleUser, rbac.ActionCreate)},
		{http.MethodGet, "/users", u.ListUsers, require(userManagers, rbac.ModuleUser, rbac.ActionRead)},
		{http.MethodGet, "/users/{id}", u.GetUser, require(userManagers, rbac.ModuleUser, rbac.ActionRead)},
		{http.MethodPatch, "/users/{id}", u.UpdateUser, require(userManagers, rbac.ModuleUser, rbac.ActionUpdate)},
		{http.MethodDelete, "/users/{id}", u.DeleteUser, require(adminOnly, rbac.ModuleUser, rbac.ActionDelete)},
		{http.MethodPost, "/users/{id}/roles/{roleName}", u.AssignRole, require(adminOnly, rbac.ModuleRoleUser, rbac.ActionCreate)},
		{http.MethodDelete, "/users/{id}/roles/{roleName}", u.RevokeRole, require(adminOnly, rbac.ModuleRoleUser, rbac.ActionDelete)},
	}
}

func RegisterAllRoutes(router *chi.Mux, deps RouterDependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	health := deps.Health
	if health == nil {
		health = NewHealthHandler(nil)
	}

	metricsPath := deps.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware)
	}
	router.Use(middleware.LoggingMiddleware(logger, metricsPath, APIPrefix+"/ping"))

	if deps.Metrics != nil {
		router.Method(http.MethodGet, metricsPath, deps.Metrics.Handler())
	}

	if len(deps.OpenAPI) > 0 {
		swagger.Mount(router, deps.OpenAPI)
	}

	router.Route(APIPrefix, func(r chi.Router) {
		r.Get("/health", health.healthCheckHandler)
		r.Get("/ping", health.pingHandler)

		for _, route := range Routes(deps) {
			if route.Policy == nil {
				r.Method(route.Method, route.Pattern, route.Handler)
				continue
			}
			r.With(deps.Guard.Require(*route.Policy)).Method(route.Method, route.Pattern, route.Handler)
		}
	})
}
