package credential

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	ErrInvalidToken = errors.New("token is invalid")
	ErrExpiredToken = errors.New("token has expired")
)

// Subject is what a token is issued for.
type Subject struct {
	UserID string
	Email  string
	Roles  []string
}

type Claims struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	TokenType TokenType `json:"typ"`
	jwt.RegisteredClaims
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// JWTSigner issues HS256 tokens. Time and the jti randomness are injected so
// issuance is deterministic under test.
type JWTSigner struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      Clock
	random     io.Reader
}

func NewJWTSigner(cfg JWTConfig, clock Clock, random io.Reader) *JWTSigner {
	if clock == nil {
		clock = SystemClock{}
	}
	if random == nil {
		random = RandomSource()
	}
	return &JWTSigner{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		clock:      clock,
		random:     random,
	}
}

func (s *JWTSigner) TTL(kind TokenType) time.Duration {
	if kind == TokenTypeRefresh {
		return s.refreshTTL
	}
	return s.accessTTL
}

// Generate signs a token of the given kind for subject and returns it with its
// expiry. Refresh tokens only carry the subject id.
func (s *JWTSigner) Generate(subject Subject, kind TokenType) (string, time.Time, error) {
	jti, err := uuid.NewRandomFromReader(s.random)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate token id: %w", err)
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.TTL(kind))

	claims := &Claims{
		UserID:    subject.UserID,
		TokenType: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Issuer:    s.issuer,
			Subject:   subject.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if kind == TokenTypeAccess {
		claims.Email = subject.Email
		claims.Roles = subject.Roles
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, issuer, expiry and token kind.
func (s *JWTSigner) Verify(tokenString string, kind TokenType) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.TokenType != kind || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Decode reads the claims without checking the signature or expiry. Callers
// must validate the token against stored state before trusting it.
func (s *JWTSigner) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
