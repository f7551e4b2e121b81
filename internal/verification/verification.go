// Package verification issues and redeems short-lived single-use codes that
// prove control of an email address or authorize a password reset.
package verification

import (
	"time"

	tokenDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/token"
)

// Identity scopes a token lookup. Empty fields are not used as filters, but
// at least one must be set.
type Identity struct {
	UserID string
	Email  string
}

// Filter is the repository query for an effective token.
type Filter struct {
	UserID    string
	Email     string
	TokenHash string
	Type      string
	Now       time.Time
}

// Issued carries the plaintext token, which is never persisted.
type Issued struct {
	Token  string
	Record *tokenDatamodel.VerificationToken
}

type Config struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

func (c Config) ttl(tokenType string) time.Duration {
	if tokenType == tokenDatamodel.TypeForgotPassword && c.ResetTTL > 0 {
		return c.ResetTTL
	}
	if c.VerificationTTL > 0 {
		return c.VerificationTTL
	}
	return 5 * time.Minute
}

func IsKnownType(tokenType string) bool {
	return tokenType == tokenDatamodel.TypeUserVerification || tokenType == tokenDatamodel.TypeForgotPassword
}
