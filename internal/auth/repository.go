package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for user, session, and verification code
// persistence.
type Repository interface {
	// User operations
	FindUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindUserByFederatedID(ctx context.Context, federatedID string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, user User) (User, error)
	RecordUserLogin(ctx context.Context, id uuid.UUID, federatedID, displayName string) error

	// Session operations
	CreateSession(ctx context.Context, session Session) error
	FindSessionByRefreshToken(ctx context.Context, refreshToken string) (*Session, error)
	// RotateSession swaps the session's refresh token conditioned on the old
	// value still being current; it returns false when zero rows matched, which
	// means another caller rotated first or the token never existed.
	RotateSession(ctx context.Context, id uuid.UUID, oldToken string, rotated SessionRotation) (bool, error)
	DeleteSessionsByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	// Verification code operations
	CreateVerificationCode(ctx context.Context, code VerificationCode) error
	// ConsumeVerificationCode marks the matching unused, unexpired code as used.
	// The update is conditioned on used = false so at most one concurrent caller
	// wins; it returns false when no row qualified.
	ConsumeVerificationCode(ctx context.Context, email, code string) (bool, error)
	DeleteExpiredVerificationCodes(ctx context.Context) (int64, error)
}

// SessionRotation is the replacement state written during refresh-token
// rotation.
type SessionRotation struct {
	RefreshToken string
	ExpiresAt    time.Time
	DeviceInfo   string
	LastUsedAt   time.Time
	IPAddress    string
}
