package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campusrun/internal/config"
	"campusrun/internal/domain"
	"campusrun/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
)

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTProvider issues and verifies HS256 bearer tokens. The subject is the
// platform user id.
type JWTProvider struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

var _ domain.IdentityProvider = (*JWTProvider)(nil)

func NewJWTProvider(cfg config.APIAuthConfig) (*JWTProvider, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	ttl := 24 * time.Hour
	if cfg.TokenTTL != "" {
		d, err := time.ParseDuration(cfg.TokenTTL)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid token ttl %q", cfg.TokenTTL)
		}
		ttl = d
	}
	return &JWTProvider{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func validRole(role string) bool {
	return role == models.RoleStudent || role == models.RoleRunner
}

// Issue signs a token for userID acting as role.
func (p *JWTProvider) Issue(userID, role string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	if !validRole(role) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	now := p.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	})
	return token.SignedString(p.secret)
}

func (p *JWTProvider) Resolve(ctx context.Context, raw string) (domain.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if !validRole(c.Role) {
		return domain.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, ErrInvalidRole)
	}

	return domain.Identity{UserID: c.Subject, Role: c.Role}, nil
}
