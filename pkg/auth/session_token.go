package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/platinummonkey/taskcore/pkg/model"
)

// MinSecretLength is the minimum HS256 key size accepted.
const MinSecretLength = 32

// ErrInvalidToken is returned for every session-token validation failure.
var ErrInvalidToken = errors.New("invalid session token")

// SessionClaims are the claims embedded in a session token.
type SessionClaims struct {
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// TokenServiceConfig configures session-token signing.
type TokenServiceConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	Leeway time.Duration
}

// TokenService issues and validates session tokens.
type TokenService struct {
	cfg    TokenServiceConfig
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenService validates cfg and creates a service.
func NewTokenService(cfg TokenServiceConfig) (*TokenService, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("session token secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("session token TTL must be positive")
	}

	s := &TokenService{cfg: cfg, now: time.Now}
	s.parser = s.newParser()
	return s, nil
}

func (s *TokenService) newParser() *jwt.Parser {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.cfg.Leeway),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	return jwt.NewParser(opts...)
}

// TTL returns the configured session-token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.cfg.TTL
}

// Issue signs a session token for user carrying the given effective permissions.
func (s *TokenService) Issue(user *model.User, permissions []string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.TTL)

	claims := SessionClaims{
		Email:       user.Email,
		Roles:       user.RoleNames(),
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate verifies token and returns the principal it carries. Every failure
// yields ErrInvalidToken.
func (s *TokenService) Validate(token string) (*Principal, error) {
	claims := &SessionClaims{}
	parsed, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.cfg.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, ErrInvalidToken
	}

	return NewPrincipal(userID, claims.Email, claims.Roles, claims.Permissions), nil
}
