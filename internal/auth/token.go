package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTokenTTL bounds how long a signed access token is honored.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL bounds how long a session can go unrefreshed.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	refreshTokenBytes = 40
)

// Claims are the identity claims embedded in every access token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies access tokens and generates opaque refresh
// tokens. It is stateless: revocation is the Blocklist's concern and refresh
// token uniqueness is enforced by the store.
type TokenCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenCodec creates a codec signing with the given symmetric secret.
// Zero durations fall back to the defaults.
func NewTokenCodec(secret string, accessTTL, refreshTTL time.Duration) *TokenCodec {
	if accessTTL == 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL == 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &TokenCodec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// SignAccessToken produces a signed, time-bounded access token carrying the
// user's identity claims.
func (c *TokenCodec) SignAccessToken(userID, email string) (string, error) {
	if userID == "" || email == "" {
		return "", ErrInvalidPayload
	}

	now := time.Now().UTC()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
			Issuer:    "authgate",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken validates signature and lifetime and returns the embedded
// claims. Revocation is not checked here; callers consult the Blocklist.
func (c *TokenCodec) VerifyAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.UserID == "" || claims.Email == "" {
		return nil, ErrInvalidPayload
	}
	return claims, nil
}

// GenerateRefreshToken draws an opaque token from a cryptographically secure
// source. 40 random bytes hex-encoded gives 320 bits of entropy; uniqueness is
// enforced by the store's unique constraint.
func (c *TokenCodec) GenerateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// RefreshExpiry returns when a refresh token issued at now stops being valid.
func (c *TokenCodec) RefreshExpiry(now time.Time) time.Time {
	return now.Add(c.refreshTTL)
}

// AccessTokenTTL reports the configured access token lifetime.
func (c *TokenCodec) AccessTokenTTL() time.Duration {
	return c.accessTTL
}
