package auth

import (
	"github.com/frahmantamala/auth-rbac/internal/core/common/validation"
	ozzo "github.com/go-ozzo/ozzo-validation"
)

// RegisterDTO is the body of POST /auth/register.
type RegisterDTO struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (d RegisterDTO) Validate() error {
	return ozzo.ValidateStruct(&d,
		ozzo.Field(&d.Email, ozzo.Required, validation.Email),
		ozzo.Field(&d.Password, ozzo.Required, validation.StrongPassword),
		ozzo.Field(&d.FirstName, ozzo.Length(0, 200)),
		ozzo.Field(&d.LastName, ozzo.Length(0, 200)),
	)
}

type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (d LoginDTO) Validate() error {
	return ozzo.ValidateStruct(&d,
		ozzo.Field(&d.Email, ozzo.Required, validation.Email),
		ozzo.Field(&d.Password, ozzo.Required),
	)
}

// RefreshTokenDTO carries the pair being exchanged. The access token may
// already be expired.
type RefreshTokenDTO struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (d RefreshTokenDTO) Validate() error {
	return ozzo.ValidateStruct(&d,
		ozzo.Field(&d.AccessToken, ozzo.Required),
		ozzo.Field(&d.RefreshToken, ozzo.Required),
	)
}

// EmailDTO is used by resend-verification, forgot-password and
// cancel-change-email.
type EmailDTO struct {
	Email string `json:"email"`
}

func (d EmailDTO) Validate() error {
	return ozzo.ValidateStruct(&d,
		ozzo.Field(&d.Email, ozzo.Required, validation.Email),
	)
}

// EmailTokenDTO pairs an email with the code sent to it.
type EmailTokenDTO struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

func (d EmailTokenDTO) Validate() error {
	return ozzo.ValidateStruct(&d,
		ozzo.Field(&d.Email, ozzo.Required, validation.Email),
		ozzo.Field(&d.Token, ozzo.Required),
	)
}

type TokenDTO struct {
	Token string `json:"token"`
}

func (d TokenDTO) Validate() error {
	return ozzo.ValidateStruct(&d, ozzo.Field(&d.Token, ozzo.Required))
}

type SetUserEmailDTO struct {
	UserID   string `json:"user_id"`
	NewEmail string `json:"new_email"`
}

func (d SetUserEmailDTO) Validate() error {
	return ozzo.ValidateStruct(&d,
		ozzo.Field(&d.UserID, validation.ID...),
		ozzo.Field(&d.NewEmail, ozzo.Required, validation.Email),
	)
}

type ChangePasswordDTO struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (d ChangePasswordDTO) Validate() error {
	return ozzo.ValidateStruct(&d,
		ozzo.Field(&d.OldPassword, ozzo.Required),
		ozzo.Field(&d.NewPassword, ozzo.Required, validation.StrongPassword),
	)
}

type SetUserPasswordDTO struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (d SetUserPasswordDTO) Validate() error {
	return ozzo.ValidateStruct(&d,
		ozzo.Field(&d.UserID, validation.ID...),
		ozzo.Field(&d.Password, ozzo.Required, validation.StrongPassword),
	)
}

type VerifyForgotPasswordDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

func (d VerifyForgotPasswordDTO) Validate() error {
	return ozzo.ValidateStruct(&d,
		ozzo.Field(&d.Email, ozzo.Required, validation.Email),
		ozzo.Field(&d.Password, ozzo.Required, validation.StrongPassword),
		ozzo.Field(&d.Token, ozzo.Required),
	)
}

type PasswordDTO struct {
	Password string `json:"password"`
}

func (d PasswordDTO) Validate() error {
	return ozzo.ValidateStruct(&d, ozzo.Field(&d.Password, ozzo.Required))
}

// RoleAssignmentDTO is the body of assign-role and revoke-role.
type RoleAssignmentDTO struct {
	UserID string `json:"user_id"`
	RoleID string `json:"role_id"`
}

func (d RoleAssignmentDTO) Validate() error {
	return ozzo.ValidateStruct(&d,
		ozzo.Field(&d.UserID, validation.ID...),
		ozzo.Field(&d.RoleID, validation.ID...),
	)
}
