package user

import (
	"time"

	userDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/user"
)

// User is the public projection of a user. Password material never leaves
// the datamodel.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	NewEmail  *string   `json:"new_email,omitempty"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Status    string    `json:"status"`
	Roles     []string  `json:"roles,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:        u.ID,
		Email:     u.Email,
		NewEmail:  u.NewEmail,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func FromDataModelWithRoles(u *userDatamodel.User, roles []string) *User {
	projection := FromDataModel(u)
	projection.Roles = roles
	return projection
}

// ListFilter pages through users, optionally narrowed to one status.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// ProfileUpdate holds the optional fields of an admin profile edit.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Status    *string
}
