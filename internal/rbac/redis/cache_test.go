package redis_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/frahmantamala/auth-rbac/internal/rbac"
	rbacRedis "github.com/frahmantamala/auth-rbac/internal/rbac/redis"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Cache", func() {
	var (
		ctx    context.Context
		client *fakeRedis
		cache  *rbacRedis.Cache
		admin  *rbac.Grants
		plain  *rbac.Grants
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = newFakeRedis()
		cache = rbacRedis.NewCache(client, time.Minute)
		admin = &rbac.Grants{Roles: []string{rbac.RoleAdmin}, Permissions: []string{"user.read", "user.delete"}}
		plain = &rbac.Grants{Roles: []string{rbac.RoleUser}, Permissions: []string{"user.read"}}
	})

	hit := func(userID string) bool {
		_, ok, err := cache.Get(ctx, userID)
		Expect(err).NotTo(HaveOccurred())
		return ok
	}

	It("misses before anything is stored", func() {
		Expect(hit("u1")).To(BeFalse())
	})

	It("returns what was stored under the current generation with the ttl", func() {
		Expect(cache.Set(ctx, "u1", admin)).To(Succeed())

		got, ok, err := cache.Get(ctx, "u1")

		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(admin))
		Expect(client.ttls).To(HaveKeyWithValue("rbac:0:user:u1", time.Minute))
	})

	It("drops one user on Invalidate", func() {
		Expect(cache.Set(ctx, "u1", admin)).To(Succeed())
		Expect(cache.Set(ctx, "u2", plain)).To(Succeed())

		Expect(cache.Invalidate(ctx, "u1")).To(Succeed())

		Expect(hit("u1")).To(BeFalse())
		Expect(hit("u2")).To(BeTrue())
	})

	It("drops every user on InvalidateAll by moving to a new generation", func() {
		Expect(cache.Set(ctx, "u1", admin)).To(Succeed())
		Expect(cache.Set(ctx, "u2", plain)).To(Succeed())

		Expect(cache.InvalidateAll(ctx)).To(Succeed())

		Expect(hit("u1")).To(BeFalse())
		Expect(hit("u2")).To(BeFalse())
		Expect(client.data).To(HaveKeyWithValue("rbac:generation", "1"))

		Expect(cache.Set(ctx, "u1", plain)).To(Succeed())
		got, ok, err := cache.Get(ctx, "u1")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(plain))
		Expect(client.data).To(HaveKey("rbac:1:user:u1"))
	})

	It("serves a resolver that forgets grants after a flush", func() {
		repo := &countingRepo{rows: []rbac.GrantRow{{RoleName: rbac.RoleUser, Module: rbac.ModuleUser, Action: rbac.ActionRead}}}
		resolver := rbac.NewResolver(repo, cache, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

		_, err := resolver.Resolve(ctx, "u1")
		Expect(err).NotTo(HaveOccurred())
		_, err = resolver.Resolve(ctx, "u1")
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.loads).To(Equal(1))

		resolver.InvalidateAll(ctx)
		_, err = resolver.Resolve(ctx, "u1")
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.loads).To(Equal(2))
	})
})
