package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/frahmantamala/auth-rbac/internal"
	"github.com/frahmantamala/auth-rbac/internal/credential"
	ozzo "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// RuleError is returned by the rules in this package so the HTTP layer can
// surface a stable code next to the message.
type RuleError struct {
	Code    apperrors.ErrorCode
	Message string
}

func (e RuleError) Error() string {
	return e.Message
}

// Check runs the ozzo rules declared by v and converts the outcome into an
// aggregated validation AppError.
func Check(v ozzo.Validatable) error {
	return Translate(v.Validate())
}

// Translate converts ozzo errors into *apperrors.AppError, keeping every field
// violation rather than the first one.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	var internalErr ozzo.InternalError
	if errors.As(err, &internalErr) {
		return apperrors.NewInternalError("validation failed unexpectedly", err)
	}

	var fieldErrs ozzo.Errors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(err.Error(), codeOf(err))
	}

	var collected []apperrors.ValidationError
	flatten("", fieldErrs, &collected)
	sort.Slice(collected, func(i, j int) bool { return collected[i].Field < collected[j].Field })

	return apperrors.NewValidationFieldErrors(collected)
}

func flatten(prefix string, errs ozzo.Errors, out *[]apperrors.ValidationError) {
	for field, err := range errs {
		if err == nil {
			continue
		}
		name := field
		if prefix != "" {
			name = prefix + "." + field
		}
		var nested ozzo.Errors
		if errors.As(err, &nested) {
			flatten(name, nested, out)
			continue
		}
		*out = append(*out, apperrors.ValidationError{
			Field:   name,
			Message: fmt.Sprintf("%s %s", name, err.Error()),
			Code:    string(codeOf(err)),
		})
	}
}

// ID validates identifiers taken from the path or body.
var ID = []ozzo.Rule{ozzo.Required, is.UUID}

func codeOf(err error) apperrors.ErrorCode {
	var ruleErr RuleError
	if errors.As(err, &ruleErr) {
		return ruleErr.Code
	}
	return apperrors.ErrCodeValidationFailed
}

func stringRule(code apperrors.ErrorCode, message string, ok func(string) bool) ozzo.Rule {
	return ozzo.By(func(value interface{}) error {
		value, isNil := ozzo.Indirect(value)
		if isNil {
			return nil
		}
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		if !ok(s) {
			return RuleError{Code: code, Message: message}
		}
		return nil
	})
}

var (
	// Email accepts syntactically valid addresses; empty values are left to Required.
	Email = stringRule(apperrors.ErrCodeEmailIsInvalid, "must be a valid email address", credential.IsValidEmail)

	// StrongPassword enforces the password strength policy.
	StrongPassword = stringRule(apperrors.ErrCodePasswordIsWeak,
		fmt.Sprintf("must be at least %d characters and contain lower case, upper case, digit and symbol", credential.MinPasswordLength),
		credential.IsStrongPassword)
)

// OneOf restricts a string to allowed, reporting code on mismatch.
func OneOf(code apperrors.ErrorCode, allowed ...string) ozzo.Rule {
	return stringRule(code, "must be one of "+strings.Join(allowed, ", "), func(s string) bool {
		for _, a := range allowed {
			if s == a {
				return true
			}
		}
		return false
	})
}
