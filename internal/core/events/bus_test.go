package events_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/auth-rbac/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EventBus", func() {
	var (
		bus *events.EventBus
		ctx context.Context
	)

	BeforeEach(func() {
		bus = events.NewEventBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
		ctx = context.Background()
	})

	Describe("PublishSync", func() {
		It("runs handlers in subscription order", func() {
			var order []string
			bus.Subscribe(events.EventTypeUserRegistered, func(_ context.Context, _ events.Event) error {
				order = append(order, "first")
				return nil
			})
			bus.Subscribe(events.EventTypeUserRegistered, func(_ context.Context, _ events.Event) error {
				order = append(order, "second")
				return nil
			})

			Expect(bus.PublishSync(ctx, events.NewUserRegisteredEvent("u-1", "a@x.com", time.Now()))).To(Succeed())
			Expect(order).To(Equal([]string{"first", "second"}))
		})

		It("stops at the first failing handler", func() {
			failure := errors.New("smtp down")
			called := false
			bus.Subscribe(events.EventTypePasswordChanged, func(_ context.Context, _ events.Event) error {
				return failure
			})
			bus.Subscribe(events.EventTypePasswordChanged, func(_ context.Context, _ events.Event) error {
				called = true
				return nil
			})

			err := bus.PublishSync(ctx, events.NewPasswordChangedEvent("u-1", events.PasswordChangeByUser, time.Now()))

			Expect(err).To(MatchError(failure))
			Expect(called).To(BeFalse())
		})

		It("ignores events nobody subscribed to", func() {
			Expect(bus.PublishSync(ctx, events.NewSessionsRevokedEvent("u-1", 2, time.Now()))).To(Succeed())
		})
	})

	Describe("Publish", func() {
		It("delivers asynchronously with a context that outlives the caller", func() {
			var (
				mu       sync.Mutex
				received events.Event
				ctxErr   error
			)
			done := make(chan struct{})
			bus.Subscribe(events.EventTypeVerificationIssued, func(hctx context.Context, e events.Event) error {
				mu.Lock()
				received, ctxErr = e, hctx.Err()
				mu.Unlock()
				close(done)
				return nil
			})

			reqCtx, cancel := context.WithCancel(ctx)
			now := time.Now()
			event := events.NewVerificationIssuedEvent("u-1", "a@x.com", "user_verification", "123456", now.Add(time.Minute), now)
			Expect(bus.Publish(reqCtx, event)).To(Succeed())
			cancel()

			Eventually(done).Should(BeClosed())
			mu.Lock()
			defer mu.Unlock()
			Expect(received.EventID()).To(Equal(event.EventID()))
			Expect(ctxErr).NotTo(HaveOccurred())
		})
	})

	Describe("Drain", func() {
		It("waits for in-flight handlers", func() {
			release := make(chan struct{})
			var finished bool
			var mu sync.Mutex
			bus.Subscribe(events.EventTypeSessionsRevoked, func(_ context.Context, _ events.Event) error {
				<-release
				mu.Lock()
				finished = true
				mu.Unlock()
				return nil
			})
			Expect(bus.Publish(ctx, events.NewSessionsRevokedEvent("u-1", 1, time.Now()))).To(Succeed())

			short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			Expect(bus.Drain(short)).To(MatchError(context.DeadlineExceeded))

			close(release)
			Expect(bus.Drain(ctx)).To(Succeed())
			mu.Lock()
			defer mu.Unlock()
			Expect(finished).To(BeTrue())
		})
	})

	It("turns a panicking handler into an error", func() {
		bus.Subscribe(events.EventTypeUserRegistered, func(_ context.Context, _ events.Event) error {
			panic("nil mailer")
		})

		err := bus.PublishSync(ctx, events.NewUserRegisteredEvent("u-1", "a@x.com", time.Now()))

		Expect(err).To(MatchError(ContainSubstring("nil mailer")))
	})

	It("subscribes one handler to several types", func() {
		var seen []string
		bus.SubscribeMany(func(_ context.Context, e events.Event) error {
			seen = append(seen, e.EventType())
			return nil
		}, events.EventTypePasswordChanged, events.EventTypeSessionsRevoked)

		Expect(bus.PublishSync(ctx, events.NewPasswordChangedEvent("u-1", events.PasswordChangeByAdmin, time.Now()))).To(Succeed())
		Expect(bus.PublishSync(ctx, events.NewSessionsRevokedEvent("u-1", 3, time.Now()))).To(Succeed())
		Expect(seen).To(Equal([]string{events.EventTypePasswordChanged, events.EventTypeSessionsRevoked}))
	})

	It("keeps the verification code out of the generic payload", func() {
		now := time.Now()
		event := events.NewVerificationIssuedEvent("u-1", "a@x.com", "user_verification", "123456", now, now)

		Expect(event.Payload()).NotTo(HaveKey("code"))
		Expect(event.Code).To(Equal("123456"))
	})
})
