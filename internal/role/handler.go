package role

import (
	"context"
	"net/http"

	"github.com/frahmantamala/auth-rbac/internal/core/common/validation"
	"github.com/frahmantamala/auth-rbac/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Create(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Get(ctx context.Context, id string) (*Role, error)
	Update(ctx context.Context, id, name string) (*Role, error)
	Delete(ctx context.Context, id string) error
	Seed(ctx context.Context) ([]*Role, error)
	AssignPermission(ctx context.Context, roleID, permissionID string, enabled bool) (*Role, error)
	UpdatePermission(ctx context.Context, roleID, permissionID string, enabled bool) (*Role, error)
	RevokePermission(ctx context.Context, roleID, permissionID string) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

type RolesResponse struct {
	Roles []*Role `json:"roles"`
}

// CreateRole handles POST /roles
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var dto RoleDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if err := validation.Check(dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	created, err := h.Service.Create(r.Context(), dto.Name)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, created)
}

// ListRoles handles GET /roles
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Service.List(r.Context())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, RolesResponse{Roles: roles})
}

// GetRole handles GET /roles/{id}
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	path := rolePath{ID: chi.URLParam(r, "id")}
	if err := validation.Check(path); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	found, err := h.Service.Get(r.Context(), path.ID)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, found)
}

// UpdateRole handles PATCH /roles/{id}
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	path := rolePath{ID: chi.URLParam(r, "id")}
	if err := validation.Check(path); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	var dto RoleDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if err := validation.Check(dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	updated, err := h.Service.Update(r.Context(), path.ID, dto.Name)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, updated)
}

// DeleteRole handles DELETE /roles/{id}
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	path := rolePath{ID: chi.URLParam(r, "id")}
	if err := validation.Check(path); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	if err := h.Service.Delete(r.Context(), path.ID); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SeedRoles handles POST /roles/seed
func (h *Handler) SeedRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Service.Seed(r.Context())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, RolesResponse{Roles: roles})
}

func (h *Handler) decodeGrant(w http.ResponseWriter, r *http.Request) (*GrantDTO, bool) {
	var dto GrantDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return nil, false
	}
	if err := validation.Check(dto); err != nil {
		h.WriteAppError(w, r, err)
		return nil, false
	}
	return &dto, true
}

// AssignPermission handles POST /roles/permissions/assign
func (h *Handler) AssignPermission(w http.ResponseWriter, r *http.Request) {
	dto, ok := h.decodeGrant(w, r)
	if !ok {
		return
	}

	updated, err := h.Service.AssignPermission(r.Context(), dto.RoleID, dto.PermissionID, dto.Enabled())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, updated)
}

// UpdatePermission handles PATCH /roles/permissions/update
func (h *Handler) UpdatePermission(w http.ResponseWriter, r *http.Request) {
	dto, ok := h.decodeGrant(w, r)
	if !ok {
		return
	}

	updated, err := h.Service.UpdatePermission(r.Context(), dto.RoleID, dto.PermissionID, dto.Enabled())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, updated)
}

// RevokePermission handles POST /roles/permissions/revoke
func (h *Handler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	dto, ok := h.decodeGrant(w, r)
	if !ok {
		return
	}

	if err := h.Service.RevokePermission(r.Context(), dto.RoleID, dto.PermissionID); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusCreated, "PERMISSION_REVOKED")
}
