package rbac

import "context"

// Cache stores resolved grants per user. Implementations must treat a miss
// and an error the same way from the resolver's point of view.
type Cache interface {
	Get(ctx context.Context, userID string) (*Grants, bool, error)
	Set(ctx context.Context, userID string, grants *Grants) error
	Invalidate(ctx context.Context, userID string) error
	InvalidateAll(ctx context.Context) error
}

// NopCache disables caching.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*Grants, bool, error) { return nil, false, nil }
func (NopCache) Set(context.Context, string, *Grants) error         { return nil }
func (NopCache) Invalidate(context.Context, string) error           { return nil }
func (NopCache) InvalidateAll(context.Context) error                { return nil }
