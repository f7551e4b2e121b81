package user

import (
	"context"
	"time"

	userDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/user"
)

// RepositoryAPI is the user persistence port. Finders return nil, nil when
// nothing matches. Conditional writes report whether a row was changed.
type RepositoryAPI interface {
	Create(ctx context.Context, u *userDatamodel.User) error
	// CreateIfEmailFree inserts u unless its email is the primary or pending
	// email of another user. It reports false without error when refused.
	CreateIfEmailFree(ctx context.Context, u *userDatamodel.User) (bool, error)
	FindByID(ctx context.Context, id string) (*userDatamodel.User, error)
	FindByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	FindByNewEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	// EmailTaken reports whether email is the primary or pending email of a
	// user other than exceptUserID.
	EmailTaken(ctx context.Context, email, exceptUserID string) (bool, error)
	UpdateStatus(ctx context.Context, id, status string, at time.Time) (bool, error)
	// SetPendingEmail stores email as pending only while the user is active and
	// no other user holds it as primary or pending email.
	SetPendingEmail(ctx context.Context, id, email string, at time.Time) (bool, error)
	ClearPendingEmail(ctx context.Context, id string, at time.Time) (bool, error)
	// PromotePendingEmail makes the pending email primary if it still equals
	// expected.
	PromotePendingEmail(ctx context.Context, id, expected string, at time.Time) (bool, error)
	// SetEmail overwrites the primary email if no other user holds it.
	SetEmail(ctx context.Context, id, email string, at time.Time) (bool, error)
	UpdatePassword(ctx context.Context, id, hash string, history []string, at time.Time) (bool, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate, at time.Time) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]*userDatamodel.User, int64, error)
	// Delete removes the user with its role assignments, sessions and
	// verification tokens.
	Delete(ctx context.Context, id string) (bool, error)
}
