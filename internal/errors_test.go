package internal_test

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/frahmantamala/auth-rbac/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("AppError", func() {
	It("matches sentinels through wrapping and WithCause", func() {
		err := fmt.Errorf("login: %w", internal.ErrInvalidCredentials.WithCause(errors.New("bcrypt mismatch")))

		Expect(errors.Is(err, internal.ErrInvalidCredentials)).To(BeTrue())
		Expect(errors.Is(err, internal.ErrUnauthorized)).To(BeFalse())

		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(internal.ErrInvalidCredentials.Cause).To(BeNil())
	})

	It("derives status codes from user status", func() {
		err := internal.NewUserStatusError("unverified")

		Expect(err.Code).To(Equal(internal.ErrorCode("USER_IS_UNVERIFIED")))
		Expect(err.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("lists every field violation in the response body", func() {
		err := internal.NewValidationFieldErrors([]internal.ValidationError{
			{Field: "email", Message: "email is required", Code: "VALIDATION_FAILED"},
			{Field: "password", Message: "password is weak", Code: "PASSWORD_IS_WEAK"},
		})

		status, body := err.ToHTTPResponse()

		Expect(status).To(Equal(http.StatusBadRequest))
		resp, ok := body.(internal.Response)
		Expect(ok).To(BeTrue())
		Expect(resp.Success).To(BeFalse())
		Expect(resp.Message).To(Equal([]string{"email is required", "password is weak"}))
		Expect(err.Error()).To(Equal("email is required"))
	})
})
