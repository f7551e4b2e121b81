package role

import (
	"github.com/frahmantamala/auth-rbac/internal"
	"github.com/frahmantamala/auth-rbac/internal/core/common/validation"
	"github.com/frahmantamala/auth-rbac/internal/rbac"
	ozzo "github.com/go-ozzo/ozzo-validation"
)

// RoleDTO is the body of POST /roles and PATCH /roles/{id}.
type RoleDTO struct {
	Name string `json:"name"`
}

func (d RoleDTO) Validate() error {
	return ozzo.ValidateStruct(&d,
		ozzo.Field(&d.Name, ozzo.Required, validation.OneOf(internal.ErrCodeInvalidRoleName, rbac.RoleNames...)),
	)
}

// GrantDTO is the body of the /roles/permissions/* actions.
// CanDoTheAction defaults to true when omitted.
type GrantDTO struct {
	RoleID         string `json:"role_id"`
	PermissionID   string `json:"permission_id"`
	CanDoTheAction *bool  `json:"can_do_the_action"`
}

func (d GrantDTO) Validate() error {
	return ozzo.ValidateStruct(&d,
		ozzo.Field(&d.RoleID, validation.ID...),
		ozzo.Field(&d.PermissionID, validation.ID...),
	)
}

func (d GrantDTO) Enabled() bool {
	return d.CanDoTheAction == nil || *d.CanDoTheAction
}

type rolePath struct {
	ID string `json:"id"`
}

func (p rolePath) Validate() error {
	return ozzo.ValidateStruct(&p, ozzo.Field(&p.ID, validation.ID...))
}
