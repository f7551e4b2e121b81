package user

import "time"

const (
	StatusUnverified = "unverified"
	StatusActive     = "active"
	StatusInactive   = "inactive"
	StatusInvited    = "invited"
)

// PasswordHistorySize is the number of prior password hashes retained next to
// the current one.
const PasswordHistorySize = 2

type User struct {
	ID              string    `gorm:"primaryKey;size:36"`
	Email           string    `gorm:"column:email;size:255;uniqueIndex;not null"`
	NewEmail        *string   `gorm:"column:new_email;size:255;uniqueIndex"`
	FirstName       string    `gorm:"column:first_name;size:200"`
	LastName        string    `gorm:"column:last_name;size:200"`
	PasswordHash    *string   `gorm:"column:password_hash"`
	PasswordHistory []string  `gorm:"column:password_history;serializer:json"`
	Status          string    `gorm:"column:status;size:20;not null;index"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// PushPasswordHistory returns the history after the current hash is replaced,
// newest first and capped at PasswordHistorySize.
func (u *User) PushPasswordHistory() []string {
	history := make([]string, 0, PasswordHistorySize)
	if u.PasswordHash != nil && *u.PasswordHash != "" {
		history = append(history, *u.PasswordHash)
	}
	for _, h := range u.PasswordHistory {
		if len(history) == PasswordHistorySize {
			break
		}
		history = append(history, h)
	}
	return history
}

// KnownPasswordHashes lists the current hash followed by the retained history.
func (u *User) KnownPasswordHashes() []string {
	hashes := make([]string, 0, PasswordHistorySize+1)
	if u.PasswordHash != nil && *u.PasswordHash != "" {
		hashes = append(hashes, *u.PasswordHash)
	}
	return append(hashes, u.PasswordHistory...)
}
