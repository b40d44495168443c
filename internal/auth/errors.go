package auth

import "errors"

// Input errors: caller-supplied data failed a precondition.
var (
	// ErrInvalidPayload is returned when required token claims are missing or empty.
	ErrInvalidPayload = errors.New("invalid token payload")

	// ErrInvalidRefreshToken is returned when no session matches the presented
	// refresh token. A concurrent-rotation loser sees the same error on purpose,
	// so callers cannot distinguish a stale token from a bogus one.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrInvalidVerificationCode is returned when an email verification code does
	// not match, was already consumed, or has expired.
	ErrInvalidVerificationCode = errors.New("invalid verification code")
)

// Expiry errors: time-based invalidity, distinct from malformed input so
// clients can prompt re-login instead of re-entry.
var (
	// ErrTokenExpired is returned when an access token is past its lifetime.
	ErrTokenExpired = errors.New("access token expired")

	// ErrRefreshTokenExpired is returned when a session's refresh token is past
	// its expiry. The expired session row is left in place; cleanup is a
	// separate sweep.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// ErrTokenMalformed is returned when an access token fails signature or
// structural validation.
var ErrTokenMalformed = errors.New("malformed access token")

// ErrTokenRevoked is returned when an otherwise-valid access token has been
// revoked via logout. Permanent for the token's remaining natural lifetime.
var ErrTokenRevoked = errors.New("access token revoked")
