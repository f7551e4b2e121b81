package verification_test

import (
	"context"
	"crypto/rand"
	"log/slog"
	"os"
	"time"

	"github.com/frahmantamala/auth-rbac/internal"
	"github.com/frahmantamala/auth-rbac/internal/core/datamodel/memdb"
	tokenDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/token"
	"github.com/frahmantamala/auth-rbac/internal/verification"
	verificationPostgres "github.com/frahmantamala/auth-rbac/internal/verification/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("Verification Service", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		clock    *fakeClock
		service  *verification.Service
		identity verification.Identity
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = memdb.Open()
		Expect(err).NotTo(HaveOccurred())

		clock = &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = verification.NewService(
			verificationPostgres.NewVerificationRepository(db),
			verification.Config{VerificationTTL: 5 * time.Minute, ResetTTL: 10 * time.Minute},
			clock, rand.Reader, slogger,
		)
		identity = verification.Identity{UserID: "user-1", Email: "a@x.com"}
	})

	Describe("Issue", func() {
		It("stores only the digest of the token", func() {
			issued, err := service.Issue(ctx, identity, tokenDatamodel.TypeUserVerification)
			Expect(err).NotTo(HaveOccurred())
			Expect(issued.Token).To(HaveLen(32))

			var stored tokenDatamodel.VerificationToken
			Expect(db.First(&stored, "id = ?", issued.Record.ID).Error).NotTo(HaveOccurred())
			Expect(stored.TokenHash).NotTo(Equal(issued.Token))
			Expect(stored.Status).To(Equal(tokenDatamodel.StatusUnverified))
			Expect(stored.ExpiresAt).To(BeTemporally("==", clock.now.Add(5*time.Minute)))
		})

		It("uses the reset ttl for forgot password tokens", func() {
			issued, err := service.Issue(ctx, identity, tokenDatamodel.TypeForgotPassword)
			Expect(err).NotTo(HaveOccurred())
			Expect(issued.Record.ExpiresAt).To(Equal(clock.now.Add(10 * time.Minute)))
		})

		It("cancels the previous token of the same type", func() {
			first, err := service.Issue(ctx, identity, tokenDatamodel.TypeUserVerification)
			Expect(err).NotTo(HaveOccurred())
			clock.Advance(time.Second)
			second, err := service.Issue(ctx, identity, tokenDatamodel.TypeUserVerification)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Find(ctx, identity, first.Token, tokenDatamodel.TypeUserVerification)
			Expect(err).To(MatchError(internal.ErrInvalidVerificationToken))

			found, err := service.Find(ctx, identity, second.Token, tokenDatamodel.TypeUserVerification)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(second.Record.ID))
		})

		It("leaves tokens of another type untouched", func() {
			reset, err := service.Issue(ctx, identity, tokenDatamodel.TypeForgotPassword)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Issue(ctx, identity, tokenDatamodel.TypeUserVerification)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Find(ctx, identity, reset.Token, tokenDatamodel.TypeForgotPassword)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects unknown types", func() {
			_, err := service.Issue(ctx, identity, "magic_link")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Find", func() {
		It("matches by email alone", func() {
			issued, _ := service.Issue(ctx, identity, tokenDatamodel.TypeUserVerification)
			found, err := service.Find(ctx, verification.Identity{Email: "a@x.com"}, issued.Token, tokenDatamodel.TypeUserVerification)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.UserID).To(Equal("user-1"))
		})

		It("does not match another identity", func() {
			issued, _ := service.Issue(ctx, identity, tokenDatamodel.TypeUserVerification)
			_, err := service.Find(ctx, verification.Identity{Email: "b@x.com"}, issued.Token, tokenDatamodel.TypeUserVerification)
			Expect(err).To(MatchError(internal.ErrInvalidVerificationToken))
		})

		It("does not match another type", func() {
			issued, _ := service.Issue(ctx, identity, tokenDatamodel.TypeUserVerification)
			_, err := service.Find(ctx, identity, issued.Token, tokenDatamodel.TypeForgotPassword)
			Expect(err).To(MatchError(internal.ErrInvalidVerificationToken))
		})

		It("treats expired tokens as invalid", func() {
			issued, _ := service.Issue(ctx, identity, tokenDatamodel.TypeUserVerification)
			clock.Advance(5*time.Minute + time.Second)
			_, err := service.Find(ctx, identity, issued.Token, tokenDatamodel.TypeUserVerification)
			Expect(err).To(MatchError(internal.ErrInvalidVerificationToken))
		})

		It("rejects an empty token", func() {
			_, err := service.Find(ctx, identity, "", tokenDatamodel.TypeUserVerification)
			Expect(err).To(MatchError(internal.ErrInvalidVerificationToken))
		})
	})

	Describe("Consume", func() {
		It("is single use", func() {
			issued, _ := service.Issue(ctx, identity, tokenDatamodel.TypeUserVerification)
			found, err := service.Find(ctx, identity, issued.Token, tokenDatamodel.TypeUserVerification)
			Expect(err).NotTo(HaveOccurred())

			Expect(service.Consume(ctx, found.ID)).To(Succeed())
			Expect(service.Consume(ctx, found.ID)).To(MatchError(internal.ErrInvalidVerificationToken))

			_, err = service.Find(ctx, identity, issued.Token, tokenDatamodel.TypeUserVerification)
			Expect(err).To(MatchError(internal.ErrInvalidVerificationToken))
		})
	})

	Describe("bulk invalidation", func() {
		It("cancels every effective token for the user and type", func() {
			issued, _ := service.Issue(ctx, identity, tokenDatamodel.TypeForgotPassword)
			Expect(service.CancelAll(ctx, "user-1", tokenDatamodel.TypeForgotPassword)).To(Succeed())

			var stored tokenDatamodel.VerificationToken
			Expect(db.First(&stored, "id = ?", issued.Record.ID).Error).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(tokenDatamodel.StatusCancelled))
		})

		It("deletes tokens for the user and type", func() {
			_, _ = service.Issue(ctx, identity, tokenDatamodel.TypeForgotPassword)
			Expect(service.DeleteAll(ctx, "user-1", tokenDatamodel.TypeForgotPassword)).To(Succeed())

			var count int64
			db.Model(&tokenDatamodel.VerificationToken{}).Where("user_id = ?", "user-1").Count(&count)
			Expect(count).To(BeZero())
		})
	})
})
