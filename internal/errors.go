package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeDomain       ErrorType = "DOMAIN_ERROR"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidRoleName  ErrorCode = "INVALID_ROLE_NAME"
	ErrCodeInvalidModule    ErrorCode = "INVALID_MODULE"
	ErrCodeInvalidAction    ErrorCode = "INVALID_ACTION"
	ErrCodeEmailIsInvalid   ErrorCode = "EMAIL_IS_INVALID"
	ErrCodePasswordIsWeak   ErrorCode = "PASSWORD_IS_WEAK"

	ErrCodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidCredentials  ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeInvalidAccessToken  ErrorCode = "INVALID_ACCESS_TOKEN"
	ErrCodeInvalidRefreshToken ErrorCode = "INVALID_REFRESH_TOKEN"

	ErrCodeInsufficientRole       ErrorCode = "INSUFFICIENT_ROLE"
	ErrCodeInsufficientPermission ErrorCode = "INSUFFICIENT_PERMISSION"
	ErrCodeUserIsInactive         ErrorCode = "USER_IS_INACTIVE"

	ErrCodeUserDoesNotExist      ErrorCode = "USER_DOES_NOT_EXIST"
	ErrCodeRoleNotFound          ErrorCode = "ROLE_NOT_FOUND"
	ErrCodePermissionNotFound    ErrorCode = "PERMISSION_NOT_FOUND"
	ErrCodeRoleAssignmentMissing ErrorCode = "ROLE_ASSIGNMENT_NOT_FOUND"
	ErrCodeGrantNotFound         ErrorCode = "GRANT_NOT_FOUND"
	ErrCodeSessionNotFound       ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeNoChangeEmailRequest  ErrorCode = "NO_CHANGE_EMAIL_REQUEST_IS_FOUND"

	ErrCodeEmailAlreadyInUse       ErrorCode = "EMAIL_IS_ALREADY_IN_USE"
	ErrCodeNewEmailAlreadyInUse    ErrorCode = "NEW_EMAIL_IS_ALREADY_ASSOCIATED_WITH_A_USER"
	ErrCodeRoleAlreadyExists       ErrorCode = "ROLE_ALREADY_EXISTS"
	ErrCodePermissionAlreadyExists ErrorCode = "PERMISSION_ALREADY_EXISTS"

	ErrCodeInvalidToken           ErrorCode = "INVALID_TOKEN"
	ErrCodeNewPasswordSameAsOld   ErrorCode = "NEW_PASSWORD_IS_SAME_AS_OLD_PASSWORD"
	ErrCodeUserPasswordNotSet     ErrorCode = "USER_PASSWORD_NOT_SET"
	ErrCodeOldPasswordIsIncorrect ErrorCode = "OLD_PASSWORD_IS_INCORRECT"
	ErrCodePasswordIsAlreadyUsed  ErrorCode = "PASSWORD_IS_ALREADY_USED_BEFORE"
	ErrCodeUserIsAlreadyVerified  ErrorCode = "USER_IS_ALREADY_VERIFIED"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
	ErrCodeMalformedRequest       ErrorCode = "MALFORMED_REQUEST"
	ErrCodeUserStatusPrefix       string    = "USER_IS_"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Messages lists every human readable message carried by the error, one per
// field violation for validation errors.
func (e *AppError) Messages() []string {
	if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
		messages := make([]string, len(validationErrors.Errors))
		for i, err := range validationErrors.Errors {
			messages[i] = err.Message
		}
		return messages
	}
	return []string{e.Message}
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same type and code so copies created through
// WithCause still satisfy errors.Is against the package sentinels.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithCause returns a copy carrying cause; sentinels are never mutated.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewValidationFieldErrors aggregates several field violations into one error.
func NewValidationFieldErrors(errs []ValidationError) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    ValidationErrors{Errors: errs},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewDomainError reports a broken business rule.
func NewDomainError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeDomain,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewUserStatusError reports that a flow requires an active user.
func NewUserStatusError(status string) *AppError {
	code := ErrorCode(ErrCodeUserStatusPrefix + strings.ToUpper(status))
	return NewDomainError(fmt.Sprintf("user is %s", status), code)
}

var (
	ErrUnauthorized        = NewUnauthorizedError("Unauthorized", ErrCodeUnauthorized)
	ErrInvalidCredentials  = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrInvalidAccessToken  = NewUnauthorizedError("Invalid access token", ErrCodeInvalidAccessToken)
	ErrInvalidRefreshToken = NewUnauthorizedError("Invalid refresh token", ErrCodeInvalidRefreshToken)

	ErrInsufficientRole       = NewForbiddenError("Insufficient role", ErrCodeInsufficientRole)
	ErrInsufficientPermission = NewForbiddenError("Insufficient permission", ErrCodeInsufficientPermission)
	ErrUserInactive           = NewForbiddenError("User account is inactive", ErrCodeUserIsInactive)

	ErrUserNotFound           = NewNotFoundError("User does not exist", ErrCodeUserDoesNotExist)
	ErrRoleNotFound           = NewNotFoundError("Role not found", ErrCodeRoleNotFound)
	ErrPermissionNotFound     = NewNotFoundError("Permission not found", ErrCodePermissionNotFound)
	ErrRoleAssignmentNotFound = NewNotFoundError("User does not have this role", ErrCodeRoleAssignmentMissing)
	ErrGrantNotFound          = NewNotFoundError("Role has no such permission grant", ErrCodeGrantNotFound)
	ErrSessionNotFound        = NewNotFoundError("Session not found", ErrCodeSessionNotFound)
	ErrNoChangeEmailRequest   = NewNotFoundError("No change email request is found", ErrCodeNoChangeEmailRequest)

	ErrEmailAlreadyInUse       = NewConflictError("Email is already in use", ErrCodeEmailAlreadyInUse)
	ErrNewEmailAlreadyInUse    = NewConflictError("New email is already associated with a user", ErrCodeNewEmailAlreadyInUse)
	ErrRoleAlreadyExists       = NewConflictError("Role already exists", ErrCodeRoleAlreadyExists)
	ErrPermissionAlreadyExists = NewConflictError("Permission already exists", ErrCodePermissionAlreadyExists)

	ErrInvalidVerificationToken = NewDomainError("Invalid or expired token", ErrCodeInvalidToken)
	ErrNewPasswordSameAsOld     = NewDomainError("New password is same as old password", ErrCodeNewPasswordSameAsOld)
	ErrUserPasswordNotSet       = NewDomainError("User password is not set", ErrCodeUserPasswordNotSet)
	ErrOldPasswordIsIncorrect   = NewDomainError("Old password is incorrect", ErrCodeOldPasswordIsIncorrect)
	ErrPasswordAlreadyUsed      = NewDomainError("Password is already used before", ErrCodePasswordIsAlreadyUsed)
	ErrUserAlreadyVerified      = NewDomainError("User is already verified", ErrCodeUserIsAlreadyVerified)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Response is the error body written at the HTTP boundary.
type Response struct {
	Success bool      `json:"success"`
	Message []string  `json:"message"`
	Error   *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Success: false, Message: e.Messages(), Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
