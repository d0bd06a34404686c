// Package token mints and verifies the signed access and refresh tokens
// used by the session flows. Access and refresh tokens are signed with
// separate secrets so a leaked access secret cannot forge refresh tokens.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vidstream/internal/apperr"
	"vidstream/internal/domain"
)

// AccessClaims carry the authenticated identity. Username and email are
// convenience fields for consumers; only the subject is authoritative.
type AccessClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// RefreshClaims carry the user id only.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// Config holds the signing material and lifetimes for both token classes.
// Secrets are injected here at construction; the issuer never reads
// process-wide state.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Issuer mints and verifies both token classes.
type Issuer struct {
	cfg Config
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token: access and refresh secrets are required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: access and refresh TTLs must be positive")
	}
	return &Issuer{cfg: cfg}, nil
}

// MintAccessToken signs a short-lived token for the given user.
func (i *Issuer) MintAccessToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.AccessTTL)),
			ID:        uuid.NewString(),
		},
		Username: user.Username,
		Email:    user.Email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.AccessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// MintRefreshToken signs a longer-lived token carrying the user id and a
// unique token id, so two mints for the same user never collide.
func (i *Issuer) MintRefreshToken(userID int64) (string, error) {
	now := time.Now()
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.RefreshTTL)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.RefreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken checks signature and expiry and returns the claims.
func (i *Issuer) VerifyAccessToken(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.verify(raw, claims, i.cfg.AccessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefreshToken checks signature and expiry and returns the claims.
func (i *Issuer) VerifyRefreshToken(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.verify(raw, claims, i.cfg.RefreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (i *Issuer) verify(raw string, claims jwt.Claims, secret []byte) error {
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperr.Unauthorized("token expired")
	case err != nil:
		return apperr.Unauthorized(fmt.Sprintf("invalid token: %v", err))
	case !tok.Valid:
		return apperr.Unauthorized("invalid token")
	}
	return nil
}

// UserID extracts the numeric user id from a verified claims subject.
func UserID(claims jwt.Claims) (int64, error) {
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, apperr.Unauthorized("token subject missing")
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Unauthorized("token subject malformed")
	}
	return id, nil
}
