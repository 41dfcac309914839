// Package jwt issues and verifies signed session tokens.
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// DefaultTokenDuration is the fixed session token lifetime.
const DefaultTokenDuration = time.Hour

// Errors returned by the authenticator.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrEmptySecret  = errors.New("jwt secret key is empty")
)

// Config contains token settings. SecretKey is loaded once at startup.
type Config struct {
	SecretKey     string
	TokenDuration time.Duration
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Claims is the token payload.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	gojwt.RegisteredClaims
}

// Authenticator signs and verifies HS256 tokens.
type Authenticator struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
	parser   *gojwt.Parser
}

// NewAuthenticator creates a token authenticator.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.SecretKey == "" {
		return nil, ErrEmptySecret
	}
	if cfg.TokenDuration <= 0 {
		cfg.TokenDuration = DefaultTokenDuration
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Authenticator{
		secret:   []byte(cfg.SecretKey),
		duration: cfg.TokenDuration,
		now:      cfg.Now,
		parser: gojwt.NewParser(
			gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
			gojwt.WithExpirationRequired(),
			gojwt.WithIssuedAt(),
			gojwt.WithTimeFunc(cfg.Now),
		),
	}, nil
}

// Issue signs a token for the given identity.
func (a *Authenticator) Issue(userID, email string) (string, error) {
	now := a.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(a.duration)),
		},
	}

	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify checks the signature and expiry and returns the decoded claims.
// Any failure yields ErrInvalidToken.
func (a *Authenticator) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := a.parser.ParseWithClaims(tokenString, claims, func(*gojwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenDuration returns the configured token lifetime.
func (a *Authenticator) TokenDuration() time.Duration {
	return a.duration
}
