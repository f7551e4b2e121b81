package auth

import (
	"context"
	"net/http"

	"github.com/frahmantamala/auth-rbac/internal"
	userDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/user"
	"github.com/frahmantamala/auth-rbac/internal/transport"
	"github.com/frahmantamala/auth-rbac/pkg/logger"
)

// Denial reasons reported to the Recorder.
const (
	DenialMissingToken           = "missing_token"
	DenialInvalidToken           = "invalid_token"
	DenialUnknownUser            = "unknown_user"
	DenialInactiveUser           = "inactive_user"
	DenialInsufficientRole       = "insufficient_role"
	DenialInsufficientPermission = "insufficient_permission"
)

// Policy is the requirement a route declares when the router is built.
// Roles match any-of, Permissions match all-of. The zero Policy only
// requires authentication.
type Policy struct {
	Roles       []string
	Permissions []string
}

// UserFinder is the lookup the guard needs to confirm the token subject.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*userDatamodel.User, error)
}

// Guard turns bearer tokens into an internal.Identity and enforces policies.
type Guard struct {
	*transport.BaseHandler
	sessions SessionStore
	users    UserFinder
	roles    RoleResolver
	metrics  Recorder
}

func NewGuard(baseHandler *transport.BaseHandler, sessions SessionStore, users UserFinder, roles RoleResolver, recorder Recorder) *Guard {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Guard{
		BaseHandler: baseHandler,
		sessions:    sessions,
		users:       users,
		roles:       roles,
		metrics:     recorder,
	}
}

// Authenticate rejects the request with 401 unless it carries a valid access
// token whose session is stored and whose subject still exists. Inactive
// users get 403.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, reason, err := g.identify(r)
		if err != nil {
			if reason != "" {
				g.metrics.AuthorizationDenied(reason)
			}
			g.WriteAppError(w, r, err)
			return
		}

		ctx := internal.ContextWithIdentity(r.Context(), identity)
		ctx = logger.With(ctx, "user_id", identity.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Guard) identify(r *http.Request) (*internal.Identity, string, error) {
	ctx := r.Context()
	token := transport.BearerToken(r)
	if token == "" {
		return nil, DenialMissingToken, internal.ErrUnauthorized
	}

	claims, err := g.sessions.Authenticate(ctx, token)
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok && appErr.StatusCode == http.StatusUnauthorized {
			return nil, DenialInvalidToken, err
		}
		return nil, "", err
	}

	row, err := g.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, "", internal.NewInternalError("failed to get user", err)
	}
	if row == nil {
		return nil, DenialUnknownUser, internal.ErrUnauthorized
	}
	if row.Status == userDatamodel.StatusInactive {
		return nil, DenialInactiveUser, internal.ErrUserInactive
	}

	grants, err := g.roles.Resolve(ctx, row.ID)
	if err != nil {
		return nil, "", err
	}

	return &internal.Identity{
		UserID:      row.ID,
		Email:       row.Email,
		AccessToken: token,
		Roles:       grants.Roles,
		Permissions: grants.Permissions,
	}, "", nil
}

// Authorize enforces policy on an authenticated request.
func (g *Guard) Authorize(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := internal.IdentityFromContext(r.Context())
			if !ok {
				g.metrics.AuthorizationDenied(DenialMissingToken)
				g.WriteAppError(w, r, internal.ErrUnauthorized)
				return
			}

			if !identity.HasAnyRole(policy.Roles...) {
				logger.From(r.Context()).WarnContext(r.Context(), "access denied: insufficient role",
					"required_roles", policy.Roles,
					"roles", identity.Roles)
				g.metrics.AuthorizationDenied(DenialInsufficientRole)
				g.WriteAppError(w, r, internal.ErrInsufficientRole)
				return
			}

			if !identity.HasAllPermissions(policy.Permissions...) {
				logger.From(r.Context()).WarnContext(r.Context(), "access denied: insufficient permission",
					"required_permissions", policy.Permissions)
				g.metrics.AuthorizationDenied(DenialInsufficientPermission)
				g.WriteAppError(w, r, internal.ErrInsufficientPermission)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Require authenticates and then authorizes against policy.
func (g *Guard) Require(policy Policy) func(http.Handler) http.Handler {
	authorize := g.Authorize(policy)
	return func(next http.Handler) http.Handler {
		return g.Authenticate(authorize(next))
	}
}
