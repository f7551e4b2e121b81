package verification

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/frahmantamala/auth-rbac/internal"
	tokenDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/token"
	"github.com/frahmantamala/auth-rbac/internal/credential"
	"github.com/google/uuid"
)

const tokenBytes = 16

type RepositoryAPI interface {
	Create(ctx context.Context, token *tokenDatamodel.VerificationToken) error
	FindEffective(ctx context.Context, filter Filter) (*tokenDatamodel.VerificationToken, error)
	MarkVerified(ctx context.Context, id string, filter Filter) (bool, error)
	CancelAll(ctx context.Context, userID, tokenType string, filter Filter) (int64, error)
	DeleteAll(ctx context.Context, userID, tokenType string) (int64, error)
}

type Service struct {
	repo   RepositoryAPI
	cfg    Config
	clock  credential.Clock
	random io.Reader
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, cfg Config, clock credential.Clock, random io.Reader, logger *slog.Logger) *Service {
	if clock == nil {
		clock = credential.SystemClock{}
	}
	if random == nil {
		random = credential.RandomSource()
	}
	return &Service{
		repo:   repo,
		cfg:    cfg,
		clock:  clock,
		random: random,
		logger: logger,
	}
}

// Issue creates a new token for identity. Earlier unverified tokens of the
// same type for the user are cancelled first so only one stays effective.
func (s *Service) Issue(ctx context.Context, identity Identity, tokenType string) (*Issued, error) {
	if identity.UserID == "" || identity.Email == "" {
		return nil, fmt.Errorf("verification: identity requires user id and email")
	}
	if !IsKnownType(tokenType) {
		return nil, fmt.Errorf("verification: unknown token type %q", tokenType)
	}

	now := s.clock.Now()
	if _, err := s.repo.CancelAll(ctx, identity.UserID, tokenType, Filter{Now: now}); err != nil {
		return nil, internal.NewInternalError("failed to cancel previous tokens", err)
	}

	plain, err := credential.RandomToken(s.random, tokenBytes)
	if err != nil {
		return nil, internal.NewInternalError("failed to generate token", err)
	}

	record := &tokenDatamodel.VerificationToken{
		ID:        uuid.NewString(),
		UserID:    identity.UserID,
		Email:     identity.Email,
		TokenHash: credential.HashToken(plain),
		Type:      tokenType,
		Status:    tokenDatamodel.StatusUnverified,
		ExpiresAt: now.Add(s.cfg.ttl(tokenType)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, internal.NewInternalError("failed to store verification token", err)
	}

	s.logger.InfoContext(ctx, "verification token issued",
		"user_id", identity.UserID,
		"type", tokenType,
		"expires_at", record.ExpiresAt)

	return &Issued{Token: plain, Record: record}, nil
}

// Find returns the most recently issued unverified, unexpired token matching
// identity, token and type, or ErrInvalidVerificationToken.
func (s *Service) Find(ctx context.Context, identity Identity, token, tokenType string) (*tokenDatamodel.VerificationToken, error) {
	if token == "" || (identity.UserID == "" && identity.Email == "") {
		return nil, internal.ErrInvalidVerificationToken
	}

	record, err := s.repo.FindEffective(ctx, Filter{
		UserID:    identity.UserID,
		Email:     identity.Email,
		TokenHash: credential.HashToken(token),
		Type:      tokenType,
		Now:       s.clock.Now(),
	})
	if err != nil {
		return nil, internal.NewInternalError("failed to look up verification token", err)
	}
	if record == nil {
		return nil, internal.ErrInvalidVerificationToken
	}
	return record, nil
}

// Consume marks the token verified. The update only applies while the token
// is still unverified and unexpired, so a second call fails.
func (s *Service) Consume(ctx context.Context, id string) error {
	ok, err := s.repo.MarkVerified(ctx, id, Filter{Now: s.clock.Now()})
	if err != nil {
		return internal.NewInternalError("failed to consume verification token", err)
	}
	if !ok {
		return internal.ErrInvalidVerificationToken
	}
	return nil
}

func (s *Service) CancelAll(ctx context.Context, userID, tokenType string) error {
	n, err := s.repo.CancelAll(ctx, userID, tokenType, Filter{Now: s.clock.Now()})
	if err != nil {
		return internal.NewInternalError("failed to cancel verification tokens", err)
	}
	s.logger.DebugContext(ctx, "verification tokens cancelled", "user_id", userID, "type", tokenType, "count", n)
	return nil
}

func (s *Service) DeleteAll(ctx context.Context, userID, tokenType string) error {
	if _, err := s.repo.DeleteAll(ctx, userID, tokenType); err != nil {
		return internal.NewInternalError("failed to delete verification tokens", err)
	}
	return nil
}
