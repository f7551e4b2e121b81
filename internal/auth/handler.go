package auth

import (
	"context"
	"net/http"

	"github.com/frahmantamala/auth-rbac/internal"
	"github.com/frahmantamala/auth-rbac/internal/authtoken"
	"github.com/frahmantamala/auth-rbac/internal/transport"
	"github.com/frahmantamala/auth-rbac/internal/user"
)

type ServiceAPI interface {
	Register(ctx context.Context, dto RegisterDTO) (*user.User, error)
	VerifyEmail(ctx context.Context, dto EmailTokenDTO) (*user.User, error)
	ResendVerificationEmail(ctx context.Context, dto EmailDTO) error
	Login(ctx context.Context, dto LoginDTO) (*authtoken.Pair, error)
	Refresh(ctx context.Context, dto RefreshTokenDTO) (*authtoken.Pair, error)
	Logout(ctx context.Context, accessToken string) error
	ChangeEmail(ctx context.Context, userID string, dto EmailDTO) (*user.User, error)
	CancelChangeEmail(ctx context.Context, dto EmailDTO) error
	VerifyChangeEmail(ctx context.Context, userID string, dto TokenDTO) (*user.User, error)
	SetUserEmail(ctx context.Context, dto SetUserEmailDTO) (*user.User, error)
	ChangePassword(ctx context.Context, userID string, dto ChangePasswordDTO) error
	SetUserPassword(ctx context.Context, dto SetUserPasswordDTO) error
	ForgotPassword(ctx context.Context, dto EmailDTO) error
	RetryForgotPassword(ctx context.Context, dto EmailDTO) error
	VerifyForgotPassword(ctx context.Context, dto VerifyForgotPasswordDTO) (*user.User, error)
	VerifyForgotPasswordCode(ctx context.Context, dto EmailTokenDTO) error
	VerifyUserPassword(ctx context.Context, userID string, dto PasswordDTO) (bool, error)
	Me(ctx context.Context, userID string) (*user.User, error)
	AssignRole(ctx context.Context, dto RoleAssignmentDTO) error
	RevokeRole(ctx context.Context, dto RoleAssignmentDTO) error
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

// decode reads the body into dst and writes the error response itself when
// it fails.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := h.DecodeJSON(w, r, dst); err != nil {
		h.WriteAppError(w, r, err)
		return false
	}
	return true
}

// identity returns the caller set by Guard.Authenticate.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (*internal.Identity, bool) {
	identity, ok := internal.IdentityFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, r, internal.ErrUnauthorized)
		return nil, false
	}
	return identity, true
}

// Register handles POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if !h.decode(w, r, &dto) {
		return
	}
	u, err := h.Service.Register(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, u)
}

// VerifyUserEmail handles POST /auth/verify-user-email
func (h *Handler) VerifyUserEmail(w http.ResponseWriter, r *http.Request) {
	var dto EmailTokenDTO
	if !h.decode(w, r, &dto) {
		return
	}
	u, err := h.Service.VerifyEmail(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, u)
}

// ResendVerificationEmail handles POST /auth/resend-verification-email
func (h *Handler) ResendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	var dto EmailDTO
	if !h.decode(w, r, &dto) {
		return
	}
	if err := h.Service.ResendVerificationEmail(r.Context(), dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusCreated, MessageVerificationEmailSent)
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if !h.decode(w, r, &dto) {
		return
	}
	pair, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, pair)
}

// RefreshToken handles POST /auth/refresh-token
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if !h.decode(w, r, &dto) {
		return
	}
	pair, err := h.Service.Refresh(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, pair)
}

// Logout handles POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if err := h.Service.Logout(r.Context(), token); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusCreated, MessageLogoutSuccessful)
}

// ChangeEmail handles POST /auth/change-email
func (h *Handler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	var dto EmailDTO
	if !h.decode(w, r, &dto) {
		return
	}
	u, err := h.Service.ChangeEmail(r.Context(), identity.UserID, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, u)
}

// CancelChangeEmail handles POST /auth/cancel-change-email
func (h *Handler) CancelChangeEmail(w http.ResponseWriter, r *http.Request) {
	var dto EmailDTO
	if !h.decode(w, r, &dto) {
		return
	}
	if err := h.Service.CancelChangeEmail(r.Context(), dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusCreated, MessageChangeEmailCancelled)
}

// VerifyChangeEmail handles POST /auth/verify-change-email
func (h *Handler) VerifyChangeEmail(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	var dto TokenDTO
	if !h.decode(w, r, &dto) {
		return
	}
	u, err := h.Service.VerifyChangeEmail(r.Context(), identity.UserID, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, u)
}

// SetUserEmail handles POST /auth/set-user-email
func (h *Handler) SetUserEmail(w http.ResponseWriter, r *http.Request) {
	var dto SetUserEmailDTO
	if !h.decode(w, r, &dto) {
		return
	}
	u, err := h.Service.SetUserEmail(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, u)
}

// ChangePassword handles POST /auth/change-password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	var dto ChangePasswordDTO
	if !h.decode(w, r, &dto) {
		return
	}
	if err := h.Service.ChangePassword(r.Context(), identity.UserID, dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusCreated, MessagePasswordChanged)
}

// SetUserPassword handles POST /auth/set-user-password
func (h *Handler) SetUserPassword(w http.ResponseWriter, r *http.Request) {
	var dto SetUserPasswordDTO
	if !h.decode(w, r, &dto) {
		return
	}
	if err := h.Service.SetUserPassword(r.Context(), dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusCreated, MessageUserPasswordUpdated)
}

// ForgotPassword handles POST /auth/forgot-password
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var dto EmailDTO
	if !h.decode(w, r, &dto) {
		return
	}
	if err := h.Service.ForgotPassword(r.Context(), dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusCreated, MessageForgotPasswordSent)
}

// RetryForgotPassword handles POST /auth/retry-forgot-password
func (h *Handler) RetryForgotPassword(w http.ResponseWriter, r *http.Request) {
	var dto EmailDTO
	if !h.decode(w, r, &dto) {
		return
	}
	if err := h.Service.RetryForgotPassword(r.Context(), dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusCreated, MessageForgotPasswordResent)
}

// VerifyForgotPassword handles POST /auth/verify-forgot-password
func (h *Handler) VerifyForgotPassword(w http.ResponseWriter, r *http.Request) {
	var dto VerifyForgotPasswordDTO
	if !h.decode(w, r, &dto) {
		return
	}
	u, err := h.Service.VerifyForgotPassword(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, u)
}

// VerifyForgotPasswordCode handles POST /auth/verify-forgot-password-code
func (h *Handler) VerifyForgotPasswordCode(w http.ResponseWriter, r *http.Request) {
	var dto EmailTokenDTO
	if !h.decode(w, r, &dto) {
		return
	}
	if err := h.Service.VerifyForgotPasswordCode(r.Context(), dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusCreated, MessageCodeIsValid)
}

// VerifyUserPassword handles POST /auth/verify-user-password
func (h *Handler) VerifyUserPassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	var dto PasswordDTO
	if !h.decode(w, r, &dto) {
		return
	}
	matched, err := h.Service.VerifyUserPassword(r.Context(), identity.UserID, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	message := MessagePasswordIsCorrect
	if !matched {
		message = MessagePasswordIsIncorrect
	}
	h.WriteJSON(w, http.StatusCreated, transport.MessageResponse{Success: matched, Message: message})
}

// Me handles GET /auth/user
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	u, err := h.Service.Me(r.Context(), identity.UserID)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

// AssignRole handles POST /auth/assign-role
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var dto RoleAssignmentDTO
	if !h.decode(w, r, &dto) {
		return
	}
	if err := h.Service.AssignRole(r.Context(), dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusCreated, MessageRoleAssigned)
}

// RevokeRole handles POST /auth/revoke-role
func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	var dto RoleAssignmentDTO
	if !h.decode(w, r, &dto) {
		return
	}
	if err := h.Service.RevokeRole(r.Context(), dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusCreated, MessageRoleRevoked)
}
