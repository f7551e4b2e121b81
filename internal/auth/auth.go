// Package auth implements the account flows (registration, email
// verification, login, token refresh, email and password changes) and the
// request guards that authenticate bearer tokens and enforce route policies.
package auth

import (
	"context"

	"github.com/frahmantamala/auth-rbac/internal/authtoken"
	tokenDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/token"
	"github.com/frahmantamala/auth-rbac/internal/credential"
	"github.com/frahmantamala/auth-rbac/internal/rbac"
	"github.com/frahmantamala/auth-rbac/internal/verification"
)

// Response messages of the flows that return no resource.
const (
	MessageVerificationEmailSent = "VERIFICATION_EMAIL_SENT"
	MessageLogoutSuccessful      = "LOGOUT_SUCCESSFUL"
	MessageChangeEmailCancelled  = "CHANGE_EMAIL_CANCELLED"
	MessagePasswordChanged       = "PASSWORD_CHANGED"
	MessageForgotPasswordSent    = "FORGOT_PASSWORD_EMAIL_SENT"
	MessageForgotPasswordResent  = "FORGOT_PASSWORD_EMAIL_RESENT"
	MessageCodeIsValid           = "OTP_IS_VALID"
	MessagePasswordIsCorrect     = "PASSWORD_IS_CORRECT"
	MessagePasswordIsIncorrect   = "PASSWORD_IS_INCORRECT"
	MessageRoleAssigned          = "ROLE_ASSIGNED"
	MessageRoleRevoked           = "ROLE_REVOKED"
	MessageUserPasswordUpdated   = "USER_PASSWORD_UPDATED"
)

// Verifier issues and redeems verification codes.
type Verifier interface {
	Issue(ctx context.Context, identity verification.Identity, tokenType string) (*verification.Issued, error)
	Find(ctx context.Context, identity verification.Identity, token, tokenType string) (*tokenDatamodel.VerificationToken, error)
	Consume(ctx context.Context, id string) error
	CancelAll(ctx context.Context, userID, tokenType string) error
}

// SessionStore is the part of authtoken.Service the flows and guards use.
type SessionStore interface {
	IssuePair(ctx context.Context, subject credential.Subject) (*authtoken.Pair, error)
	DecodeAccess(accessToken string) (*credential.Claims, error)
	ValidateRefresh(ctx context.Context, refreshToken, userID string) (*authtoken.Session, error)
	Rotate(ctx context.Context, oldRefreshToken string, subject credential.Subject) (*authtoken.Pair, error)
	Authenticate(ctx context.Context, accessToken string) (*credential.Claims, error)
	Revoke(ctx context.Context, accessToken string) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

// RoleResolver is the part of rbac.Resolver the flows and guards use.
type RoleResolver interface {
	Resolve(ctx context.Context, userID string) (*rbac.Grants, error)
	AssignRole(ctx context.Context, userID, roleID string) error
	RevokeRole(ctx context.Context, userID, roleID string) error
	AssignDefaultRole(ctx context.Context, userID string) error
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Compare(plaintext, hash string) bool
}

// Recorder receives auth outcomes for metrics.
type Recorder interface {
	LoginAttempt(outcome string)
	TokenRefresh(outcome string)
	SessionsRevoked(n int64)
	AuthorizationDenied(reason string)
}

type NopRecorder struct{}

func (NopRecorder) LoginAttempt(string)        {}
func (NopRecorder) TokenRefresh(string)        {}
func (NopRecorder) SessionsRevoked(int64)      {}
func (NopRecorder) AuthorizationDenied(string) {}
