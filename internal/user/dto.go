package user

import (
	"strconv"

	"github.com/frahmantamala/auth-rbac/internal"
	"github.com/frahmantamala/auth-rbac/internal/core/common/validation"
	userDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/user"
	"github.com/frahmantamala/auth-rbac/internal/rbac"
	ozzo "github.com/go-ozzo/ozzo-validation"
)

// CreateUserDTO is the body of POST /users. Without a password the user is
// invited and has no password until one is set. Roles default to the
// default role.
type CreateUserDTO struct {
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Roles     []string `json:"roles"`
}

func (d CreateUserDTO) Validate() error {
	return ozzo.ValidateStruct(&d,
		ozzo.Field(&d.Email, ozzo.Required, validation.Email),
		ozzo.Field(&d.Password, validation.StrongPassword),
		ozzo.Field(&d.FirstName, ozzo.Length(0, 200)),
		ozzo.Field(&d.LastName, ozzo.Length(0, 200)),
		ozzo.Field(&d.Roles, ozzo.Each(validation.OneOf(internal.ErrCodeInvalidRoleName, rbac.RoleNames...))),
	)
}

// UpdateUserDTO is the body of PATCH /users/{id}.
type UpdateUserDTO struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Status    *string `json:"status"`
}

func (d UpdateUserDTO) Validate() error {
	return ozzo.ValidateStruct(&d,
		ozzo.Field(&d.FirstName, ozzo.NilOrNotEmpty, ozzo.Length(1, 200)),
		ozzo.Field(&d.LastName, ozzo.NilOrNotEmpty, ozzo.Length(1, 200)),
		ozzo.Field(&d.Status, ozzo.NilOrNotEmpty, validation.OneOf(internal.ErrCodeValidationFailed, statuses()...)),
	)
}

func (d UpdateUserDTO) ToProfileUpdate() ProfileUpdate {
	return ProfileUpdate{FirstName: d.FirstName, LastName: d.LastName, Status: d.Status}
}

func statuses() []string {
	return []string{
		userDatamodel.StatusUnverified,
		userDatamodel.StatusActive,
		userDatamodel.StatusInactive,
		userDatamodel.StatusInvited,
	}
}

// ListUsersQuery carries the query string of GET /users.
type ListUsersQuery struct {
	Status string `json:"status"`
	Limit  string `json:"limit"`
	Offset string `json:"offset"`
}

func (q ListUsersQuery) Validate() error {
	return ozzo.ValidateStruct(&q,
		ozzo.Field(&q.Status, validation.OneOf(internal.ErrCodeValidationFailed, statuses()...)),
		ozzo.Field(&q.Limit, ozzo.By(isNonNegativeInt)),
		ozzo.Field(&q.Offset, ozzo.By(isNonNegativeInt)),
	)
}

func (q ListUsersQuery) ToFilter() ListFilter {
	limit, _ := strconv.Atoi(q.Limit)
	offset, _ := strconv.Atoi(q.Offset)
	return ListFilter{Status: q.Status, Limit: limit, Offset: offset}
}

func isNonNegativeInt(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return validation.RuleError{Code: internal.ErrCodeValidationFailed, Message: "must be a non-negative integer"}
	}
	return nil
}

type userPath struct {
	ID string `json:"id"`
}

func (p userPath) Validate() error {
	return ozzo.ValidateStruct(&p, ozzo.Field(&p.ID, validation.ID...))
}

type userRolePath struct {
	ID       string `json:"id"`
	RoleName string `json:"role_name"`
}

func (p userRolePath) Validate() error {
	return ozzo.ValidateStruct(&p,
		ozzo.Field(&p.ID, validation.ID...),
		ozzo.Field(&p.RoleName, ozzo.Required, validation.OneOf(internal.ErrCodeInvalidRoleName, rbac.RoleNames...)),
	)
}
