package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeUserRegistered     = "user.registered"
	EventTypeVerificationIssued = "verification.issued"
	EventTypePasswordChanged    = "password.changed"
	EventTypeSessionsRevoked    = "sessions.revoked"
)

type UserRegisteredEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func NewUserRegisteredEvent(userID, email string, at time.Time) *UserRegisteredEvent {
	return &UserRegisteredEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeUserRegistered,
			Timestamp: at,
			Data: map[string]interface{}{
				"user_id": userID,
				"email":   email,
			},
		},
		UserID: userID,
		Email:  email,
	}
}

// VerificationIssuedEvent carries the plaintext code to whoever delivers it.
// It must never be logged as a whole.
type VerificationIssuedEvent struct {
	BaseEvent
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Purpose   string    `json:"purpose"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewVerificationIssuedEvent(userID, email, purpose, code string, expiresAt, at time.Time) *VerificationIssuedEvent {
	return &VerificationIssuedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeVerificationIssued,
			Timestamp: at,
			Data: map[string]interface{}{
				"user_id":    userID,
				"email":      email,
				"purpose":    purpose,
				"expires_at": expiresAt,
			},
		},
		UserID:    userID,
		Email:     email,
		Purpose:   purpose,
		Code:      code,
		ExpiresAt: expiresAt,
	}
}

const (
	PasswordChangeByUser  = "change"
	PasswordChangeByReset = "reset"
	PasswordChangeByAdmin = "admin"
)

type PasswordChangedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

func NewPasswordChangedEvent(userID, reason string, at time.Time) *PasswordChangedEvent {
	return &PasswordChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePasswordChanged,
			Timestamp: at,
			Data: map[string]interface{}{
				"user_id": userID,
				"reason":  reason,
			},
		},
		UserID: userID,
		Reason: reason,
	}
}

type SessionsRevokedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Count  int64  `json:"count"`
}

func NewSessionsRevokedEvent(userID string, count int64, at time.Time) *SessionsRevokedEvent {
	return &SessionsRevokedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSessionsRevoked,
			Timestamp: at,
			Data: map[string]interface{}{
				"user_id": userID,
				"count":   count,
			},
		},
		UserID: userID,
		Count:  count,
	}
}
