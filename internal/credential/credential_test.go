package credential_test

import (
	"bytes"
	"crypto/rand"
	"strings"
	"time"

	"github.com/frahmantamala/auth-rbac/internal/credential"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

var _ = Describe("PasswordHasher", func() {
	hasher := credential.NewPasswordHasher(bcrypt.MinCost)

	It("verifies the password it hashed", func() {
		for _, p := range []string{"Pw1!aaaa", "another-Secret9?", "ünïcødé-Pw1!"} {
			hash, err := hasher.Hash(p)
			Expect(err).NotTo(HaveOccurred())
			Expect(hash).NotTo(Equal(p))
			Expect(hasher.Compare(p, hash)).To(BeTrue())
		}
	})

	It("rejects a different password", func() {
		hash, err := hasher.Hash("Pw1!aaaa")
		Expect(err).NotTo(HaveOccurred())
		Expect(hasher.Compare("Pw1!aaab", hash)).To(BeFalse())
		Expect(hasher.Compare("Pw1!aaaa", "")).To(BeFalse())
		Expect(hasher.Compare("Pw1!aaaa", "not-a-bcrypt-hash")).To(BeFalse())
	})

	It("salts every hash", func() {
		a, _ := hasher.Hash("Pw1!aaaa")
		b, _ := hasher.Hash("Pw1!aaaa")
		Expect(a).NotTo(Equal(b))
	})
})

var _ = Describe("Policy", func() {
	DescribeTable("IsStrongPassword",
		func(password string, expected bool) {
			Expect(credential.IsStrongPassword(password)).To(Equal(expected))
		},
		Entry("all classes present", "Pw1!aaaa", true),
		Entry("too short", "Pw1!aaa", false),
		Entry("missing upper", "pw1!aaaa", false),
		Entry("missing lower", "PW1!AAAA", false),
		Entry("missing digit", "Pwx!aaaa", false),
		Entry("missing symbol", "Pw1aaaaa", false),
		Entry("space as the symbol", "Pw1 aaaa", true),
		Entry("tab is not a symbol", "Pw1\taaaa", false),
	)

	DescribeTable("IsValidEmail",
		func(email string, expected bool) {
			Expect(credential.IsValidEmail(email)).To(Equal(expected))
		},
		Entry("plain address", "a@x.com", true),
		Entry("empty", "", false),
		Entry("missing at", "ax.com", false),
		Entry("missing domain", "a@", false),
	)

	It("normalizes addresses", func() {
		Expect(credential.NormalizeEmail("  A@X.Com ")).To(Equal("a@x.com"))
	})
})

var _ = Describe("JWTSigner", func() {
	var (
		clock  *fakeClock
		signer *credential.JWTSigner
		sub    credential.Subject
	)

	BeforeEach(func() {
		clock = &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
		signer = credential.NewJWTSigner(credential.JWTConfig{
			Secret:     "test-secret-test-secret-test-secret",
			Issuer:     "auth-rbac-test",
			AccessTTL:  time.Hour,
			RefreshTTL: 7 * 24 * time.Hour,
		}, clock, rand.Reader)
		sub = credential.Subject{UserID: "user-1", Email: "a@x.com", Roles: []string{"user"}}
	})

	It("round-trips access claims", func() {
		token, expiresAt, err := signer.Generate(sub, credential.TokenTypeAccess)
		Expect(err).NotTo(HaveOccurred())
		Expect(expiresAt).To(Equal(clock.now.Add(time.Hour)))

		claims, err := signer.Verify(token, credential.TokenTypeAccess)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.Subject).To(Equal("user-1"))
		Expect(claims.UserID).To(Equal("user-1"))
		Expect(claims.Email).To(Equal("a@x.com"))
		Expect(claims.Roles).To(ConsistOf("user"))
		Expect(claims.Issuer).To(Equal("auth-rbac-test"))
		Expect(claims.ID).NotTo(BeEmpty())
	})

	It("keeps refresh tokens minimal", func() {
		token, _, err := signer.Generate(sub, credential.TokenTypeRefresh)
		Expect(err).NotTo(HaveOccurred())

		claims, err := signer.Verify(token, credential.TokenTypeRefresh)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.Email).To(BeEmpty())
		Expect(claims.Roles).To(BeEmpty())
	})

	It("issues distinct tokens within the same second", func() {
		a, _, _ := signer.Generate(sub, credential.TokenTypeAccess)
		b, _, _ := signer.Generate(sub, credential.TokenTypeAccess)
		Expect(a).NotTo(Equal(b))
	})

	It("rejects a token of the wrong kind", func() {
		token, _, _ := signer.Generate(sub, credential.TokenTypeRefresh)
		_, err := signer.Verify(token, credential.TokenTypeAccess)
		Expect(err).To(MatchError(credential.ErrInvalidToken))
	})

	It("rejects expired tokens", func() {
		token, _, _ := signer.Generate(sub, credential.TokenTypeAccess)
		clock.Advance(time.Hour + time.Second)
		_, err := signer.Verify(token, credential.TokenTypeAccess)
		Expect(err).To(MatchError(credential.ErrExpiredToken))
	})

	It("rejects tampered tokens", func() {
		token, _, _ := signer.Generate(sub, credential.TokenTypeAccess)
		parts := strings.Split(token, ".")
		parts[2] = strings.Repeat("A", len(parts[2]))
		_, err := signer.Verify(strings.Join(parts, "."), credential.TokenTypeAccess)
		Expect(err).To(MatchError(credential.ErrInvalidToken))
	})

	It("rejects tokens signed with another secret", func() {
		other := credential.NewJWTSigner(credential.JWTConfig{
			Secret: "another-secret-another-secret-xx", Issuer: "auth-rbac-test",
			AccessTTL: time.Hour, RefreshTTL: time.Hour,
		}, clock, rand.Reader)
		token, _, _ := other.Generate(sub, credential.TokenTypeAccess)
		_, err := signer.Verify(token, credential.TokenTypeAccess)
		Expect(err).To(HaveOccurred())
	})

	It("decodes expired tokens without verification", func() {
		token, _, _ := signer.Generate(sub, credential.TokenTypeAccess)
		clock.Advance(48 * time.Hour)

		claims, err := signer.Decode(token)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.Subject).To(Equal("user-1"))

		_, err = signer.Decode("garbage")
		Expect(err).To(MatchError(credential.ErrInvalidToken))
	})
})

var _ = Describe("RandomToken", func() {
	It("hex encodes the requested number of bytes", func() {
		token, err := credential.RandomToken(bytes.NewReader(bytes.Repeat([]byte{0xab}, 16)), 16)
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal(strings.Repeat("ab", 16)))
	})

	It("fails when the source runs dry", func() {
		_, err := credential.RandomToken(bytes.NewReader([]byte{1, 2}), 16)
		Expect(err).To(HaveOccurred())
	})

	It("hashes tokens to a stable digest", func() {
		Expect(credential.HashToken("abc")).To(Equal(credential.HashToken("abc")))
		Expect(credential.HashToken("abc")).To(HaveLen(64))
		Expect(credential.HashToken("abc")).NotTo(Equal(credential.HashToken("abd")))
	})
})
