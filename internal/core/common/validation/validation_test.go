package validation_test

import (
	"github.com/frahmantamala/auth-rbac/internal"
	"github.com/frahmantamala/auth-rbac/internal/core/common/validation"
	ozzo "github.com/go-ozzo/ozzo-validation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type signup struct {
	Email    string
	Password string
	Role     *string
}

func (s signup) Validate() error {
	return ozzo.ValidateStruct(&s,
		ozzo.Field(&s.Email, ozzo.Required, validation.Email),
		ozzo.Field(&s.Password, ozzo.Required, validation.StrongPassword),
		ozzo.Field(&s.Role, validation.OneOf(internal.ErrCodeInvalidRoleName, "admin", "user")),
	)
}

var _ = Describe("Check", func() {
	It("passes valid input", func() {
		Expect(validation.Check(signup{Email: "a@x.com", Password: "Pw1!aaaa"})).To(Succeed())
	})

	It("aggregates every field violation sorted by field", func() {
		role := "root"
		err := validation.Check(signup{Email: "nope", Password: "short", Role: &role})

		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(400))
		Expect(appErr.Code).To(Equal(internal.ErrCodeValidationFailed))

		details, ok := appErr.Details.(internal.ValidationErrors)
		Expect(ok).To(BeTrue())
		Expect(details.Errors).To(HaveLen(3))
		Expect(details.Errors[0].Field).To(Equal("Email"))
		Expect(details.Errors[0].Code).To(Equal(string(internal.ErrCodeEmailIsInvalid)))
		Expect(details.Errors[1].Code).To(Equal(string(internal.ErrCodePasswordIsWeak)))
		Expect(details.Errors[2].Code).To(Equal(string(internal.ErrCodeInvalidRoleName)))
		Expect(appErr.Messages()).To(HaveLen(3))
	})

	It("reports missing required fields with the generic code", func() {
		err := validation.Check(signup{})

		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		details := appErr.Details.(internal.ValidationErrors)
		Expect(details.Errors).To(HaveLen(2))
		for _, e := range details.Errors {
			Expect(e.Code).To(Equal(string(internal.ErrCodeValidationFailed)))
		}
	})

	It("leaves nil optional fields alone", func() {
		Expect(validation.Check(signup{Email: "a@x.com", Password: "Pw1!aaaa", Role: nil})).To(Succeed())
	})
})

var _ = Describe("Translate", func() {
	It("returns nil for nil", func() {
		Expect(validation.Translate(nil)).To(BeNil())
	})
})
