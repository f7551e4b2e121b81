package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/auth-rbac/internal"
	"github.com/frahmantamala/auth-rbac/internal/auth"
	"github.com/frahmantamala/auth-rbac/internal/authtoken"
	tokenDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/token"
	"github.com/frahmantamala/auth-rbac/internal/transport"
	"github.com/frahmantamala/auth-rbac/internal/user"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Handler", func() {
	var (
		ctx    context.Context
		f      *fixture
		router chi.Router
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture()
		h := auth.NewHandler(f.base, f.service)

		router = chi.NewRouter()
		router.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/verify-user-email", h.VerifyUserEmail)
			r.Post("/login", h.Login)
			r.Post("/refresh-token", h.RefreshToken)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Post("/verify-forgot-password-code", h.VerifyForgotPasswordCode)
			r.Group(func(pr chi.Router) {
				pr.Use(f.guard.Authenticate)
				pr.Get("/user", h.Me)
				pr.Post("/logout", h.Logout)
				pr.Post("/change-password", h.ChangePassword)
				pr.Post("/verify-user-password", h.VerifyUserPassword)
			})
		})
	})

	do := func(method, path, bearer, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder, v interface{}) {
		Expect(json.NewDecoder(w.Body).Decode(v)).To(Succeed())
	}

	loginPair := func() *authtoken.Pair {
		w := do(http.MethodPost, "/auth/login", "", `{"email":"a@x.com","password":"Pw1!aaaa"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		var pair authtoken.Pair
		decode(w, &pair)
		return &pair
	}

	It("walks register, verify, login and me", func() {
		w := do(http.MethodPost, "/auth/register", "", `{"email":"a@x.com","password":"Pw1!aaaa"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		var registered user.User
		decode(w, &registered)
		Expect(registered.Status).To(Equal("unverified"))

		code := f.publisher.code(tokenDatamodel.TypeUserVerification, "a@x.com")
		w = do(http.MethodPost, "/auth/verify-user-email", "", `{"email":"a@x.com","token":"`+code+`"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		var verified user.User
		decode(w, &verified)
		Expect(verified.Status).To(Equal("active"))

		pair := loginPair()
		Expect(pair.AccessToken).NotTo(BeEmpty())
		Expect(pair.RefreshToken).NotTo(BeEmpty())

		w = do(http.MethodGet, "/auth/user", pair.AccessToken, "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var me user.User
		decode(w, &me)
		Expect(me.Roles).To(Equal([]string{"user"}))
		Expect(w.Body.String()).NotTo(ContainSubstring("password"))
	})

	It("answers a wrong password with 401 and no token", func() {
		f.registerActive(ctx, "a@x.com", password)

		w := do(http.MethodPost, "/auth/login", "", `{"email":"a@x.com","password":"Wrong1!pass"}`)

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(w.Body.String()).NotTo(ContainSubstring("access_token"))
		var body struct {
			Success bool `json:"success"`
		}
		decode(w, &body)
		Expect(body.Success).To(BeFalse())
	})

	It("rejects a same-password change with 400", func() {
		f.registerActive(ctx, "a@x.com", password)
		pair := loginPair()

		w := do(http.MethodPost, "/auth/change-password", pair.AccessToken, `{"old_password":"Pw1!aaaa","new_password":"Pw1!aaaa"}`)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring(string(internal.ErrCodeNewPasswordSameAsOld)))
	})

	It("reports every validation failure in one response", func() {
		w := do(http.MethodPost, "/auth/register", "", `{"email":"nope","password":"weak"}`)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		var body struct {
			Success bool     `json:"success"`
			Message []string `json:"message"`
		}
		decode(w, &body)
		Expect(body.Success).To(BeFalse())
		Expect(body.Message).To(HaveLen(2))
	})

	It("rejects unknown fields", func() {
		w := do(http.MethodPost, "/auth/login", "", `{"email":"a@x.com","password":"x","admin":true}`)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring(string(internal.ErrCodeMalformedRequest)))
	})

	It("refreshes with a 201", func() {
		f.registerActive(ctx, "a@x.com", password)
		pair := loginPair()

		w := do(http.MethodPost, "/auth/refresh-token", "",
			`{"access_token":"`+pair.AccessToken+`","refresh_token":"`+pair.RefreshToken+`"}`)

		Expect(w.Code).To(Equal(http.StatusCreated))
	})

	It("logs out and then rejects the token", func() {
		f.registerActive(ctx, "a@x.com", password)
		pair := loginPair()

		w := do(http.MethodPost, "/auth/logout", pair.AccessToken, "")
		Expect(w.Code).To(Equal(http.StatusCreated))
		var msg transport.MessageResponse
		decode(w, &msg)
		Expect(msg).To(Equal(transport.MessageResponse{Success: true, Message: auth.MessageLogoutSuccessful}))

		Expect(do(http.MethodPost, "/auth/logout", pair.AccessToken, "").Code).To(Equal(http.StatusUnauthorized))
		Expect(do(http.MethodPost, "/auth/logout", "", "").Code).To(Equal(http.StatusUnauthorized))
	})

	It("reports the password check in the success flag", func() {
		f.registerActive(ctx, "a@x.com", password)
		pair := loginPair()

		w := do(http.MethodPost, "/auth/verify-user-password", pair.AccessToken, `{"password":"nope"}`)

		Expect(w.Code).To(Equal(http.StatusCreated))
		var msg transport.MessageResponse
		decode(w, &msg)
		Expect(msg.Success).To(BeFalse())
		Expect(msg.Message).To(Equal(auth.MessagePasswordIsIncorrect))
	})

	It("answers forgot-password for unknown users with 404", func() {
		w := do(http.MethodPost, "/auth/forgot-password", "", `{"email":"nobody@x.com"}`)

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("confirms a valid reset code as OTP_IS_VALID", func() {
		f.registerActive(ctx, "a@x.com", password)
		Expect(do(http.MethodPost, "/auth/forgot-password", "", `{"email":"a@x.com"}`).Code).To(Equal(http.StatusCreated))
		code := f.publisher.code(tokenDatamodel.TypeForgotPassword, "a@x.com")

		w := do(http.MethodPost, "/auth/verify-forgot-password-code", "", `{"email":"a@x.com","token":"`+code+`"}`)

		Expect(w.Code).To(Equal(http.StatusCreated))
		var msg transport.MessageResponse
		decode(w, &msg)
		Expect(msg).To(Equal(transport.MessageResponse{Success: true, Message: "OTP_IS_VALID"}))
	})

	It("rejects a wrong reset code with 400", func() {
		f.registerActive(ctx, "a@x.com", password)
		Expect(do(http.MethodPost, "/auth/forgot-password", "", `{"email":"a@x.com"}`).Code).To(Equal(http.StatusCreated))

		w := do(http.MethodPost, "/auth/verify-forgot-password-code", "", `{"email":"a@x.com","token":"bad"}`)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring(string(internal.ErrCodeInvalidToken)))
	})
})
