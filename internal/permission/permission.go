package permission

import (
	"time"

	rbacDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/rbac"
)

type Permission struct {
	ID        string    `json:"id"`
	Module    string    `json:"module"`
	Action    string    `json:"action"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func FromDataModel(p *rbacDatamodel.Permission) *Permission {
	return &Permission{
		ID:        p.ID,
		Module:    p.Module,
		Action:    p.Action,
		Key:       p.Key(),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
