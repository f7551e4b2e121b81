// Package authtoken persists sessions: one row per access and refresh token
// pair, looked up by token digest.
package authtoken

import (
	"time"

	tokenDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/token"
	"github.com/frahmantamala/auth-rbac/internal/credential"
)

// Pair is the token pair handed to the client.
type Pair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Session is a stored pair as seen by callers.
type Session struct {
	ID               string
	UserID           string
	AccessTokenHash  string
	RefreshTokenHash string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	CreatedAt        time.Time
}

// HoldsAccessToken reports whether accessToken belongs to this session.
func (s *Session) HoldsAccessToken(accessToken string) bool {
	return s.AccessTokenHash == credential.HashToken(accessToken)
}

func FromDataModel(t *tokenDatamodel.AuthToken) *Session {
	return &Session{
		ID:               t.ID,
		UserID:           t.UserID,
		AccessTokenHash:  t.AccessTokenHash,
		RefreshTokenHash: t.RefreshTokenHash,
		AccessExpiresAt:  t.AccessExpiresAt,
		RefreshExpiresAt: t.RefreshExpiresAt,
		CreatedAt:        t.CreatedAt,
	}
}
