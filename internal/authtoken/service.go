package authtoken

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/auth-rbac/internal"
	tokenDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/token"
	"github.com/frahmantamala/auth-rbac/internal/credential"
	"github.com/google/uuid"
)

type RepositoryAPI interface {
	Create(ctx context.Context, token *tokenDatamodel.AuthToken) error
	FindByAccessHash(ctx context.Context, hash string) (*tokenDatamodel.AuthToken, error)
	FindByRefreshHash(ctx context.Context, hash string) (*tokenDatamodel.AuthToken, error)
	// Replace deletes the row holding oldRefreshHash for userID and inserts next
	// in one transaction. It reports false when the old row was already gone.
	Replace(ctx context.Context, userID, oldRefreshHash string, next *tokenDatamodel.AuthToken) (bool, error)
	DeleteByAccessHash(ctx context.Context, hash string) (int64, error)
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}

// Signer is the part of credential.JWTSigner the store relies on.
type Signer interface {
	Generate(subject credential.Subject, kind credential.TokenType) (string, time.Time, error)
	Verify(token string, kind credential.TokenType) (*credential.Claims, error)
	Decode(token string) (*credential.Claims, error)
}

type Service struct {
	repo   RepositoryAPI
	signer Signer
	clock  credential.Clock
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, signer Signer, clock credential.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = credential.SystemClock{}
	}
	return &Service{
		repo:   repo,
		signer: signer,
		clock:  clock,
		logger: logger,
	}
}

func (s *Service) newRow(subject credential.Subject) (*Pair, *tokenDatamodel.AuthToken, error) {
	access, accessExp, err := s.signer.Generate(subject, credential.TokenTypeAccess)
	if err != nil {
		return nil, nil, internal.NewInternalError("failed to generate access token", err)
	}
	refresh, refreshExp, err := s.signer.Generate(subject, credential.TokenTypeRefresh)
	if err != nil {
		return nil, nil, internal.NewInternalError("failed to generate refresh token", err)
	}

	pair := &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}
	row := &tokenDatamodel.AuthToken{
		ID:               uuid.NewString(),
		UserID:           subject.UserID,
		AccessTokenHash:  credential.HashToken(access),
		RefreshTokenHash: credential.HashToken(refresh),
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		CreatedAt:        s.clock.Now(),
	}
	return pair, row, nil
}

// IssuePair signs a new pair for subject and records the session.
func (s *Service) IssuePair(ctx context.Context, subject credential.Subject) (*Pair, error) {
	pair, row, err := s.newRow(subject)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, internal.NewInternalError("failed to store session", err)
	}
	s.logger.InfoContext(ctx, "session issued", "user_id", subject.UserID, "session_id", row.ID)
	return pair, nil
}

// DecodeAccess recovers the claims of a possibly expired access token without
// checking its signature.
func (s *Service) DecodeAccess(accessToken string) (*credential.Claims, error) {
	claims, err := s.signer.Decode(accessToken)
	if err != nil || claims.TokenType != credential.TokenTypeAccess {
		return nil, internal.ErrInvalidAccessToken
	}
	return claims, nil
}

// ValidateRefresh checks that refreshToken is correctly signed, unexpired,
// stored and owned by userID.
func (s *Service) ValidateRefresh(ctx context.Context, refreshToken, userID string) (*Session, error) {
	claims, err := s.signer.Verify(refreshToken, credential.TokenTypeRefresh)
	if err != nil || claims.Subject != userID {
		return nil, internal.ErrInvalidRefreshToken
	}

	row, err := s.repo.FindByRefreshHash(ctx, credential.HashToken(refreshToken))
	if err != nil {
		return nil, internal.NewInternalError("failed to look up session", err)
	}
	if row == nil || row.UserID != userID || !row.RefreshExpiresAt.After(s.clock.Now()) {
		return nil, internal.ErrInvalidRefreshToken
	}
	return FromDataModel(row), nil
}

// Rotate swaps the session holding oldRefreshToken for a freshly signed pair.
// The delete of the old row is conditional, so of two concurrent rotations of
// the same refresh token only one succeeds.
func (s *Service) Rotate(ctx context.Context, oldRefreshToken string, subject credential.Subject) (*Pair, error) {
	pair, row, err := s.newRow(subject)
	if err != nil {
		return nil, err
	}

	replaced, err := s.repo.Replace(ctx, subject.UserID, credential.HashToken(oldRefreshToken), row)
	if err != nil {
		return nil, internal.NewInternalError("failed to rotate session", err)
	}
	if !replaced {
		s.logger.WarnContext(ctx, "refresh token reuse rejected", "user_id", subject.UserID)
		return nil, internal.ErrInvalidRefreshToken
	}
	return pair, nil
}

// Authenticate verifies an access token and confirms its session still exists.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*credential.Claims, error) {
	claims, err := s.signer.Verify(accessToken, credential.TokenTypeAccess)
	if err != nil {
		return nil, internal.ErrInvalidAccessToken
	}

	row, err := s.repo.FindByAccessHash(ctx, credential.HashToken(accessToken))
	if err != nil {
		return nil, internal.NewInternalError("failed to look up session", err)
	}
	if row == nil || row.UserID != claims.Subject {
		return nil, internal.ErrInvalidAccessToken
	}
	return claims, nil
}

// Revoke deletes the session holding accessToken.
func (s *Service) Revoke(ctx context.Context, accessToken string) error {
	n, err := s.repo.DeleteByAccessHash(ctx, credential.HashToken(accessToken))
	if err != nil {
		return internal.NewInternalError("failed to revoke session", err)
	}
	if n == 0 {
		return internal.ErrSessionNotFound
	}
	return nil
}

// RevokeAllForUser deletes every session of userID and returns how many.
func (s *Service) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.DeleteByUserID(ctx, userID)
	if err != nil {
		return 0, internal.NewInternalError("failed to revoke sessions", err)
	}
	s.logger.InfoContext(ctx, "sessions revoked", "user_id", userID, "count", n)
	return n, nil
}

// IsSessionNotFound reports whether err came from revoking an absent session.
func IsSessionNotFound(err error) bool {
	return errors.Is(err, internal.ErrSessionNotFound)
}
