package permission

import (
	"github.com/frahmantamala/auth-rbac/internal"
	"github.com/frahmantamala/auth-rbac/internal/core/common/validation"
	"github.com/frahmantamala/auth-rbac/internal/rbac"
	ozzo "github.com/go-ozzo/ozzo-validation"
)

// PermissionDTO is the body of POST /permissions and PATCH /permissions/{id}.
type PermissionDTO struct {
	Module string `json:"module"`
	Action string `json:"action"`
}

func (d PermissionDTO) Validate() error {
	return ozzo.ValidateStruct(&d,
		ozzo.Field(&d.Module, ozzo.Required, validation.OneOf(internal.ErrCodeInvalidModule, rbac.Modules...)),
		ozzo.Field(&d.Action, ozzo.Required, validation.OneOf(internal.ErrCodeInvalidAction, rbac.Actions...)),
	)
}

type permissionPath struct {
	ID string `json:"id"`
}

func (p permissionPath) Validate() error {
	return ozzo.ValidateStruct(&p, ozzo.Field(&p.ID, validation.ID...))
}
