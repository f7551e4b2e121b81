package user

import (
	"context"
	"net/http"

	"github.com/frahmantamala/auth-rbac/internal/core/common/validation"
	"github.com/frahmantamala/auth-rbac/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Create(ctx context.Context, dto CreateUserDTO) (*User, error)
	List(ctx context.Context, filter ListFilter) (*Page, error)
	Get(ctx context.Context, id string) (*User, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*User, error)
	Delete(ctx context.Context, id string) error
	AssignRole(ctx context.Context, id, roleName string) (*User, error)
	RevokeRole(ctx context.Context, id, roleName string) error
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

// CreateUser handles POST /users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var dto CreateUserDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if err := validation.Check(dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	u, err := h.Service.Create(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, u)
}

// ListUsers handles GET /users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := ListUsersQuery{Status: q.Get("status"), Limit: q.Get("limit"), Offset: q.Get("offset")}
	if err := validation.Check(query); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	page, err := h.Service.List(r.Context(), query.ToFilter())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, page)
}

// GetUser handles GET /users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	path := userPath{ID: chi.URLParam(r, "id")}
	if err := validation.Check(path); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	u, err := h.Service.Get(r.Context(), path.ID)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

// UpdateUser handles PATCH /users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	path := userPath{ID: chi.URLParam(r, "id")}
	if err := validation.Check(path); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	var dto UpdateUserDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if err := validation.Check(dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	u, err := h.Service.UpdateProfile(r.Context(), path.ID, dto.ToProfileUpdate())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

// DeleteUser handles DELETE /users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	path := userPath{ID: chi.URLParam(r, "id")}
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

// AssignRole handles POST /users/{id}/roles/{roleName}
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	path := userRolePath{ID: chi.URLParam(r, "id"), RoleName: chi.URLParam(r, "roleName")}
	if err := validation.Check(path); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	u, err := h.Service.AssignRole(r.Context(), path.ID, path.RoleName)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, u)
}

// RevokeRole handles DELETE /users/{id}/roles/{roleName}
func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	path := userRolePath{ID: chi.URLParam(r, "id"), RoleName: chi.URLParam(r, "roleName")}
	if err := validation.Check(path); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	if err := h.Service.RevokeRole(r.Context(), path.ID, path.RoleName); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
