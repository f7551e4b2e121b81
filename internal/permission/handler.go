package permission

import (
	"context"
	"net/http"

	"github.com/frahmantamala/auth-rbac/internal/core/common/validation"
	"github.com/frahmantamala/auth-rbac/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Create(ctx context.Context, module, action string) (*Permission, error)
	List(ctx context.Context) ([]*Permission, error)
	Get(ctx context.Context, id string) (*Permission, error)
	Update(ctx context.Context, id, module, action string) (*Permission, error)
	Delete(ctx context.Context, id string) error
	Seed(ctx context.Context) ([]*Permission, error)
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

type PermissionsResponse struct {
	Permissions []*Permission `json:"permissions"`
}

// CreatePermission handles POST /permissions
func (h *Handler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var dto PermissionDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if err := validation.Check(dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	created, err := h.Service.Create(r.Context(), dto.Module, dto.Action)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, created)
}

// ListPermissions handles GET /permissions
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.Service.List(r.Context())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, PermissionsResponse{Permissions: perms})
}

// GetPermission handles GET /permissions/{id}
func (h *Handler) GetPermission(w http.ResponseWriter, r *http.Request) {
	path := permissionPath{ID: chi.URLParam(r, "id")}
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

// UpdatePermission handles PATCH /permissions/{id}
func (h *Handler) UpdatePermission(w http.ResponseWriter, r *http.Request) {
	path := permissionPath{ID: chi.URLParam(r, "id")}
	if err := validation.Check(path); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	var dto PermissionDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if err := validation.Check(dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	updated, err := h.Service.Update(r.Context(), path.ID, dto.Module, dto.Action)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, updated)
}

// DeletePermission handles DELETE /permissions/{id}
func (h *Handler) DeletePermission(w http.ResponseWriter, r *http.Request) {
	path := permissionPath{ID: chi.URLParam(r, "id")}
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

// SeedPermissions handles POST /permissions/seed
func (h *Handler) SeedPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.Service.Seed(r.Context())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, PermissionsResponse{Permissions: perms})
}
