package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents an authenticated account. A user is created on first
// successful login through either path and reused for every later login keyed
// by email, so the federated and email-code flows converge on one row.
type User struct {
	ID          uuid.UUID
	FederatedID string
	Email       string
	DisplayName string
	LastLoginAt time.Time
	LoginCount  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Session binds one refresh-token lineage to a user and device. Refreshing
// rotates the token in place rather than inserting a new row, so one row
// tracks one device login for its whole life.
type Session struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	RefreshToken string
	ExpiresAt    time.Time
	DeviceInfo   string
	LastUsedAt   time.Time
	IPAddress    string
	CreatedAt    time.Time
}

// VerificationCode is a one-time 6-digit secret proving control of an email
// address. Once accepted it is marked used and never accepted again.
type VerificationCode struct {
	ID        uuid.UUID
	Email     string
	Code      string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// GoogleClaims contains the relevant claims from a Google ID token.
type GoogleClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Device carries optional per-request metadata recorded on the session.
type Device struct {
	Info      string
	IPAddress string
}

// TokenPair is the credential set returned by every successful login and
// refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
