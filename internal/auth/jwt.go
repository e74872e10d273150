package auth

import (
	"errors"
	"fmt"
	"time"

	"dietcoach/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"

	// OwnerSubject is the only principal: the person being coached.
	OwnerSubject = "owner"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidTokenType = errors.New("invalid token type")
)

type Claims struct {
	TokenType string `json:"token_type,omitempty"` // "access" or "refresh"
	jwt.RegisteredClaims
}

// Issuer signs and validates access and refresh tokens.
type Issuer struct {
	secret        []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshDays   int
	rememberDays  int
	cookieSecure  bool
	now           func() time.Time
}

func NewIssuer(cfg config.AuthConfig) (*Issuer, error) {
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT secret must be at least 32 characters long")
	}
	i := &Issuer{
		secret:        []byte(cfg.JWTSecret),
		refreshSecret: []byte(cfg.JWTSecret + "-refresh"),
		accessTTL:     time.Duration(cfg.AccessTokenMinutes) * time.Minute,
		refreshDays:   cfg.RefreshTokenDays,
		rememberDays:  cfg.RememberDays,
		cookieSecure:  cfg.CookieSecure,
		now:           time.Now,
	}
	if i.accessTTL <= 0 {
		i.accessTTL = 15 * time.Minute
	}
	if i.refreshDays <= 0 {
		i.refreshDays = 7
	}
	if i.rememberDays <= 0 {
		i.rememberDays = 30
	}
	return i, nil
}

func (i *Issuer) CookieSecure() bool {
	return i.cookieSecure
}

// RefreshDays returns the refresh token lifetime for the remember flag.
func (i *Issuer) RefreshDays(remember bool) int {
	if remember {
		return i.rememberDays
	}
	return i.refreshDays
}

func (i *Issuer) AccessToken() (string, error) {
	return i.sign(tokenAccess, i.accessTTL, i.secret)
}

// RefreshToken creates a refresh token that expires after days.
func (i *Issuer) RefreshToken(days int) (string, error) {
	if days <= 0 {
		days = i.refreshDays
	}
	return i.sign(tokenRefresh, time.Duration(days)*24*time.Hour, i.refreshSecret)
}

func (i *Issuer) sign(tokenType string, ttl time.Duration, key []byte) (string, error) {
	now := i.now()
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   OwnerSubject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			// unique per token so two refreshes in the same second differ
			ID: fmt.Sprintf("%d", now.UnixNano()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

func (i *Issuer) ValidateAccess(tokenString string) (*Claims, error) {
	return i.validate(tokenString, tokenAccess, i.secret)
}

func (i *Issuer) ValidateRefresh(tokenString string) (*Claims, error) {
	return i.validate(tokenString, tokenRefresh, i.refreshSecret)
}

func (i *Issuer) validate(tokenString, tokenType string, key []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType {
		return nil, ErrInvalidTokenType
	}
	return claims, nil
}
