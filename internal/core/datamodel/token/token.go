package token

import "time"

const (
	TypeUserVerification = "user_verification"
	TypeForgotPassword   = "forgot_password"

	StatusUnverified = "unverified"
	StatusVerified   = "verified"
	StatusCancelled  = "cancelled"
)

// AuthToken is one session: the hashes of an access and refresh token pair.
type AuthToken struct {
	ID               string    `gorm:"primaryKey;size:36"`
	UserID           string    `gorm:"column:user_id;size:36;not null;index"`
	AccessTokenHash  string    `gorm:"column:access_token_hash;size:64;not null;uniqueIndex"`
	RefreshTokenHash string    `gorm:"column:refresh_token_hash;size:64;not null;uniqueIndex"`
	AccessExpiresAt  time.Time `gorm:"column:access_expires_at;not null"`
	RefreshExpiresAt time.Time `gorm:"column:refresh_expires_at;not null"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

func (AuthToken) TableName() string {
	return "auth_tokens"
}

type VerificationToken struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"column:user_id;size:36;not null;index:idx_verification_tokens_user_type"`
	Email     string    `gorm:"column:email;size:255;not null;index"`
	TokenHash string    `gorm:"column:token_hash;size:64;not null;index"`
	Type      string    `gorm:"column:type;size:30;not null;index:idx_verification_tokens_user_type"`
	Status    string    `gorm:"column:status;size:20;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (VerificationToken) TableName() string {
	return "verification_tokens"
}
